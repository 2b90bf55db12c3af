package services

import (
	"context"
	"fmt"
	"strings"

	"nightpress/internal/models"
)

// RecapGenerator produces human-readable recap prose from a bounded set of
// published entries. The generative backend is external to the engine; the
// engine only decides when to invoke it and what range to pass.
type RecapGenerator interface {
	SummarizeSession(ctx context.Context, authorID string, entries []*models.Record) (string, error)
	SummarizeDay(ctx context.Context, date string, entries []*models.Record) (string, error)
}

// ExtractiveGenerator is the built-in non-generative fallback: it stitches
// trimmed excerpts together so the engine is runnable without a text
// backend wired in.
type ExtractiveGenerator struct {
	ExcerptLen int
}

// NewExtractiveGenerator creates the fallback generator.
func NewExtractiveGenerator() *ExtractiveGenerator {
	return &ExtractiveGenerator{ExcerptLen: 80}
}

func (g *ExtractiveGenerator) SummarizeSession(_ context.Context, _ string, entries []*models.Record) (string, error) {
	return g.join(entries), nil
}

func (g *ExtractiveGenerator) SummarizeDay(_ context.Context, date string, entries []*models.Record) (string, error) {
	return fmt.Sprintf("%s: %s", date, g.join(entries)), nil
}

func (g *ExtractiveGenerator) join(entries []*models.Record) string {
	excerpts := make([]string, 0, len(entries))
	for _, rec := range entries {
		excerpts = append(excerpts, g.excerpt(rec.Body))
	}
	return strings.Join(excerpts, " / ")
}

func (g *ExtractiveGenerator) excerpt(body string) string {
	body = strings.TrimSpace(strings.ReplaceAll(body, "\n", " "))
	limit := g.ExcerptLen
	if limit <= 0 {
		limit = 80
	}
	runes := []rune(body)
	if len(runes) <= limit {
		return body
	}
	return string(runes[:limit]) + "…"
}
