// Package statusfile writes the human-readable status artifact.
package statusfile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fgeck/gorenew/internal/models"
	"github.com/rs/zerolog"
)

// Document is the content of one status artifact.
type Document struct {
	Heading   string
	Body      string // Telegram HTML; translated to Markdown on write
	UpdatedAt string
}

// Service defines the interface for status artifact writes.
type Service interface {
	Write(ctx context.Context, cfg models.StatusFileConfig, doc Document) (*models.StatusFileResult, error)
}

// Impl implements the statusfile Service interface.
type Impl struct {
	logger zerolog.Logger
}

// New creates a new statusfile service.
func New(logger zerolog.Logger) *Impl {
	return &Impl{logger: logger}
}

// Write overwrites the artifact at cfg.Path. The file is replaced atomically.
func (s *Impl) Write(ctx context.Context, cfg models.StatusFileConfig, doc Document) (*models.StatusFileResult, error) {
	result := &models.StatusFileResult{Path: cfg.Path}

	if !cfg.Enabled || cfg.Path == "" {
		return result, nil
	}
	if err := ctx.Err(); err != nil {
		result.Error = err
		return result, nil
	}

	content := Render(doc)

	dir := filepath.Dir(cfg.Path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		result.Error = fmt.Errorf("failed to create output directory: %w", err)
		return result, nil
	}

	tmp, err := os.CreateTemp(dir, ".status-*")
	if err != nil {
		result.Error = fmt.Errorf("failed to create temp file: %w", err)
		return result, nil
	}
	tmpName := tmp.Name()

	if _, err := tmp.WriteString(content); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		result.Error = fmt.Errorf("failed to write status file: %w", err)
		return result, nil
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		result.Error = fmt.Errorf("failed to close status file: %w", err)
		return result, nil
	}
	if err := os.Chmod(tmpName, 0o644); err != nil { //nolint:gosec // operator-facing file
		s.logger.Debug().Err(err).Msg("failed to chmod status file")
	}
	if err := os.Rename(tmpName, cfg.Path); err != nil {
		_ = os.Remove(tmpName)
		result.Error = fmt.Errorf("failed to replace status file: %w", err)
		return result, nil
	}

	result.Written = true
	s.logger.Debug().Str("path", cfg.Path).Msg("status file written")

	return result, nil
}

var markdownReplacer = strings.NewReplacer(
	"<b>", "**",
	"</b>", "**",
	"<code>", "`",
	"</code>", "`",
	"&lt;", "<",
	"&gt;", ">",
	"&amp;", "&",
)

// ToMarkdown translates the Telegram HTML subset used in notifications.
func ToMarkdown(html string) string {
	return markdownReplacer.Replace(html)
}

// Render produces the file content for doc.
func Render(doc Document) string {
	var b strings.Builder
	b.WriteString("# ")
	b.WriteString(doc.Heading)
	b.WriteString("\n\n")
	b.WriteString(ToMarkdown(doc.Body))
	b.WriteString("\n\n> Last updated: ")
	b.WriteString(doc.UpdatedAt)
	b.WriteString("\n")
	return b.String()
}
