package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/dgallion1/parsemed/internal/config"
	"github.com/dgallion1/parsemed/internal/parser"
	"github.com/dgallion1/parsemed/internal/pipeline"
	"github.com/dgallion1/parsemed/internal/sections"
	"github.com/spf13/cobra"
)

var version = "dev"

var headingsFile string

var rootCmd = &cobra.Command{
	Use:   "parsemed",
	Short: "Segment biomedical papers into sections and locate their tables",
	Long: `parsemed reads a paper (PDF, DOCX, XLSX, HTML, Markdown, CSV or text),
splits it into canonical sections and finds its TABLE n. blocks.

Run "parsemed mcp" to serve the same operations over MCP on stdio.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.Version = version
	rootCmd.PersistentFlags().StringVar(&headingsFile, "headings", os.Getenv("HEADINGS_FILE"), "YAML heading vocabulary (default: built-in)")
}

// Execute runs the root command
func Execute() {
	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	cfg := config.Load()
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
}

func parserOptions() parser.Options {
	return parser.Options{PDFFallbackPdftotext: config.Load().PDFFallbackPdftotext}
}

func analyzeFile(path string) (*pipeline.Document, error) {
	seg, err := sections.FromFile(headingsFile)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return pipeline.AnalyzeDocument(data, path, parserOptions(), seg)
}
