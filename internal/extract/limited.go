package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"golang.org/x/time/rate"

	"github.com/dgallion1/parsemed/internal/chunker"
)

// MaxRetries bounds the retried attempts after the first call.
const MaxRetries = 3

// IsRetryable checks if an error is worth retrying.
func IsRetryable(err error) bool {
	var retryErr *RetryableError
	return errors.As(err, &retryErr)
}

// Backoff returns a duration for attempt n (0-indexed) with jitter.
func Backoff(attempt int) time.Duration {
	base := time.Duration(1<<uint(attempt)) * time.Second
	if base > 30*time.Second {
		base = 30 * time.Second
	}
	jitter := time.Duration(rand.Int64N(int64(base) / 2))
	return base + jitter
}

// LimitOptions configures a Limited completer.
type LimitOptions struct {
	TokensPerSecond int
	BurstTokens     int
	MaxRetries      int
	Backoff         func(attempt int) time.Duration
}

// Limited wraps a Completer with a shared token-bucket limiter, retries
// transient failures with backoff, and records every call in LLMStats.
// It is safe for concurrent use.
type Limited struct {
	next       Completer
	limiter    *rate.Limiter
	burst      int
	maxRetries int
	backoff    func(int) time.Duration
	stats      *LLMStats
	log        *slog.Logger
}

func NewLimited(next Completer, opts LimitOptions, stats *LLMStats, logger *slog.Logger) *Limited {
	if opts.TokensPerSecond <= 0 {
		opts.TokensPerSecond = 30000
	}
	if opts.BurstTokens <= 0 {
		opts.BurstTokens = 2 * opts.TokensPerSecond
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.Backoff == nil {
		opts.Backoff = Backoff
	}
	if stats == nil {
		stats = NewLLMStats(time.Hour)
	}
	if logger == nil {
		logger = slog.Default()
	}
	stats.SetModel(next.Model())
	return &Limited{
		next:       next,
		limiter:    rate.NewLimiter(rate.Limit(opts.TokensPerSecond), opts.BurstTokens),
		burst:      opts.BurstTokens,
		maxRetries: opts.MaxRetries,
		backoff:    opts.Backoff,
		stats:      stats,
		log:        logger,
	}
}

func (l *Limited) Model() string {
	return l.next.Model()
}

// Stats returns the recorder shared with this completer.
func (l *Limited) Stats() *LLMStats {
	return l.stats
}

func (l *Limited) Complete(ctx context.Context, system, prompt string) (string, error) {
	tokens := chunker.EstimateTokens(system) + chunker.EstimateTokens(prompt)
	if tokens > l.burst {
		tokens = l.burst
	}
	if tokens < 1 {
		tokens = 1
	}

	var lastErr error
	for attempt := 0; attempt <= l.maxRetries; attempt++ {
		if attempt > 0 {
			delay := l.backoff(attempt - 1)
			l.stats.RecordRetry()
			l.log.Warn("retrying completion",
				"model", l.next.Model(),
				"attempt", attempt,
				"delay", delay.String(),
				"error", lastErr.Error(),
			)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		if err := l.limiter.WaitN(ctx, tokens); err != nil {
			return "", fmt.Errorf("rate limiter wait: %w", err)
		}

		start := time.Now()
		text, err := l.next.Complete(ctx, system, prompt)
		l.stats.Record(time.Since(start), err)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if !IsRetryable(err) {
			return "", err
		}
	}
	return "", fmt.Errorf("max retries (%d) exceeded: %w", l.maxRetries, lastErr)
}
