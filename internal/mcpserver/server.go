// Package mcpserver exposes section segmentation and table location as
// Model Context Protocol tools.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/dgallion1/parsemed/internal/parser"
	"github.com/dgallion1/parsemed/internal/pipeline"
	"github.com/dgallion1/parsemed/internal/sections"
	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// DocumentQuery names a document on disk or carries its text inline.
type DocumentQuery struct {
	Path string `json:"path,omitempty" jsonschema:"path to a pdf, docx, xlsx, html, markdown, csv or text file"`
	Text string `json:"text,omitempty" jsonschema:"document text, used when path is empty"`
}

type SegmentResponse struct {
	Sections map[string][]string `json:"sections"`
	Order    []string            `json:"order"`
}

type TablesResponse struct {
	PageCount int      `json:"page_count,omitempty"`
	Tables    []string `json:"tables"`
}

// Service holds what the tool handlers share.
type Service struct {
	seg  *sections.Segmenter
	opts parser.Options
	log  *slog.Logger
}

// NewServer registers segment_document and locate_tables on a new server.
func NewServer(version string, seg *sections.Segmenter, opts parser.Options, log *slog.Logger) *mcp.Server {
	if seg == nil {
		seg = sections.Default()
	}
	svc := &Service{seg: seg, opts: opts, log: log}
	srv := mcp.NewServer(&mcp.Implementation{Name: "parsemed", Version: version}, nil)
	mcp.AddTool(srv, tool("segment_document", "Split a biomedical paper into canonical sections (objective, introduction, background, methods, results, conclusions, keywords)."), svc.segment)
	mcp.AddTool(srv, tool("locate_tables", "Find the TABLE n. blocks in a paper and return each as plain text."), svc.tables)
	return srv
}

func tool(name, description string) *mcp.Tool {
	schema, err := jsonschema.For[DocumentQuery](nil)
	if err != nil {
		panic(err)
	}
	return &mcp.Tool{Name: name, Description: description, InputSchema: schema}
}

func (s *Service) load(q DocumentQuery) (*pipeline.Document, error) {
	if q.Path != "" {
		data, err := os.ReadFile(q.Path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", q.Path, err)
		}
		return pipeline.AnalyzeDocument(data, q.Path, s.opts, s.seg)
	}
	if strings.TrimSpace(q.Text) == "" {
		return nil, errors.New("path or text is required")
	}
	doc := &pipeline.Document{Filename: "inline.txt", Text: q.Text}
	doc.Segment(s.seg)
	return doc, nil
}

func (s *Service) segment(ctx context.Context, req *mcp.CallToolRequest, q DocumentQuery) (*mcp.CallToolResult, *SegmentResponse, error) {
	doc, err := s.load(q)
	if err != nil {
		return nil, nil, err
	}
	resp := &SegmentResponse{Sections: doc.Sections, Order: doc.Sections.Keys()}
	s.log.Debug("segment_document", "path", q.Path, "sections", len(resp.Order))
	return textResult(resp)
}

func (s *Service) tables(ctx context.Context, req *mcp.CallToolRequest, q DocumentQuery) (*mcp.CallToolResult, *TablesResponse, error) {
	doc, err := s.load(q)
	if err != nil {
		return nil, nil, err
	}
	resp := &TablesResponse{PageCount: doc.PageCount, Tables: doc.Tables}
	if resp.Tables == nil {
		resp.Tables = []string{}
	}
	s.log.Debug("locate_tables", "path", q.Path, "tables", len(resp.Tables))
	return textResult(resp)
}

func textResult[T any](v *T) (*mcp.CallToolResult, *T, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, nil, err
	}
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: string(b)}}}, v, nil
}
