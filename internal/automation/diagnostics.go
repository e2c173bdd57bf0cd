package automation

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/sorteando-crawler/internal/config"
	"github.com/xkilldash9x/sorteando-crawler/internal/observability"
)

const captureTimeout = 5 * time.Second

// DiagnosticFunc captures evidence from a page that failed. It returns the
// page text to attach to the error.
type DiagnosticFunc func(page Page, workflow string, failure *Error) string

// Diagnostics records failure evidence to the log and, optionally, PNG
// screenshots on disk. Nothing it captures is returned to API clients.
type Diagnostics struct {
	cfg    config.DiagnosticsConfig
	logger *zap.Logger
}

// NewDiagnostics returns a collector for the given settings.
func NewDiagnostics(cfg config.DiagnosticsConfig, logger *zap.Logger) *Diagnostics {
	return &Diagnostics{cfg: cfg, logger: logger.Named("diagnostics")}
}

// Capture implements DiagnosticFunc. It runs on a fresh short context since
// the run's own context may already be done.
func (d *Diagnostics) Capture(page Page, workflow string, failure *Error) string {
	ctx, cancel := context.WithTimeout(context.Background(), captureTimeout)
	defer cancel()

	var body string
	if doc, err := page.Snapshot(ctx); err == nil {
		body = doc.BodyText
	} else {
		d.logger.Debug("Could not read page text for diagnostics.", zap.Error(err))
	}

	fields := []zap.Field{
		zap.String("workflow", workflow),
		zap.Stringer("kind", failure.Kind),
		zap.String("state", string(failure.State)),
		zap.String("page_text", observability.Truncate(body, d.cfg.MaxBodyLog)),
	}
	if d.cfg.Screenshots {
		if path, err := d.screenshot(ctx, page, workflow); err != nil {
			d.logger.Warn("Failed to save diagnostic screenshot.", zap.Error(err))
		} else {
			fields = append(fields, zap.String("screenshot", path))
		}
	}
	d.logger.Warn("Captured failure diagnostics.", fields...)
	return body
}

func (d *Diagnostics) screenshot(ctx context.Context, page Page, workflow string) (string, error) {
	png, err := page.Screenshot(ctx)
	if err != nil {
		return "", err
	}
	dir := d.cfg.ScreenshotDir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dir, err)
	}
	path := filepath.Join(dir, fmt.Sprintf("%s-%s-%s.png", workflow, time.Now().UTC().Format("20060102T150405"), uuid.NewString()[:8]))
	if err := os.WriteFile(path, png, 0o644); err != nil {
		return "", fmt.Errorf("failed to write screenshot: %w", err)
	}
	return path, nil
}
