// internal/browser/session.go
package browser

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	cdpruntime "github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/sorteando-crawler/internal/config"
)

const closeTimeout = 10 * time.Second

// Session owns one browser process and the single tab used by one workflow
// run. It is never shared. Close is safe to call any number of times.
type Session struct {
	ctx          context.Context // tab context, carries the CDP target
	cancelTab    context.CancelFunc
	cancelAlloc  context.CancelFunc
	logger       *zap.Logger
	pollInterval time.Duration

	closeOnce sync.Once
	closed    atomic.Bool
}

// Open starts a browser with the configured flags and opens one tab. On any
// failure the process is already torn down and the error wraps ErrLaunch.
func Open(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (*Session, error) {
	id := uuid.NewString()
	log := logger.Named("browser").With(zap.String("session_id", id))

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(Detach(ctx), AllocatorOptions(cfg)...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(log.Sugar().Debugf),
		chromedp.WithErrorf(log.Sugar().Debugf),
	)

	s := &Session{
		ctx:          tabCtx,
		cancelTab:    cancelTab,
		cancelAlloc:  cancelAlloc,
		logger:       log,
		pollInterval: cfg.PollInterval,
	}
	if s.pollInterval <= 0 {
		s.pollInterval = 100 * time.Millisecond
	}

	if cfg.CaptureConsole {
		s.listen()
	}

	// The first Run on the tab context starts the process. It must not run on
	// a derived context, or cancelling that context would close the tab.
	done := make(chan error, 1)
	go func() {
		done <- chromedp.Run(tabCtx, setupActions(cfg)...)
	}()

	launchTimeout := cfg.LaunchTimeout
	if launchTimeout <= 0 {
		launchTimeout = 30 * time.Second
	}
	timer := time.NewTimer(launchTimeout)
	defer timer.Stop()

	select {
	case err := <-done:
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("%w: %v", ErrLaunch, err)
		}
	case <-timer.C:
		s.Close()
		<-done
		return nil, fmt.Errorf("%w: browser did not start within %s", ErrLaunch, launchTimeout)
	case <-ctx.Done():
		s.Close()
		<-done
		return nil, fmt.Errorf("%w: %v", ErrLaunch, ctx.Err())
	}

	log.Debug("Browser session opened.")
	return s, nil
}

// AllocatorOptions translates the browser configuration into exec allocator flags.
func AllocatorOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := make([]chromedp.ExecAllocatorOption, 0, len(chromedp.DefaultExecAllocatorOptions)+16)
	// The defaults include headless; it is re-added below only when configured.
	for _, opt := range chromedp.DefaultExecAllocatorOptions {
		opts = append(opts, opt)
	}
	opts = append(opts,
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-extensions", true),
		chromedp.DisableGPU,
	)

	if cfg.IgnoreTLSErrors {
		opts = append(opts,
			chromedp.Flag("ignore-certificate-errors", true),
			chromedp.Flag("ignore-ssl-errors", true),
			chromedp.Flag("allow-running-insecure-content", true),
		)
	}

	if runtime.GOOS == "linux" {
		opts = append(opts,
			chromedp.NoSandbox,
			chromedp.Flag("disable-setuid-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
		)
	}

	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}

	for _, arg := range cfg.Args {
		arg = strings.TrimLeft(strings.TrimSpace(arg), "-")
		if arg == "" {
			continue
		}
		if key, value, found := strings.Cut(arg, "="); found {
			opts = append(opts, chromedp.Flag(key, value))
		} else {
			opts = append(opts, chromedp.Flag(arg, true))
		}
	}
	return opts
}

func setupActions(cfg config.BrowserConfig) []chromedp.Action {
	// Lifecycle events let navigation finish at DOMContentLoaded.
	actions := []chromedp.Action{network.Enable(), page.SetLifecycleEventsEnabled(true)}
	if len(cfg.Headers) > 0 {
		headers := make(network.Headers, len(cfg.Headers))
		for k, v := range cfg.Headers {
			headers[k] = v
		}
		actions = append(actions, network.SetExtraHTTPHeaders(headers))
	}
	return actions
}

// listen forwards page console output and failed responses to the log.
func (s *Session) listen() {
	chromedp.ListenTarget(s.ctx, func(ev interface{}) {
		switch e := ev.(type) {
		case *cdpruntime.EventConsoleAPICalled:
			parts := make([]string, 0, len(e.Args))
			for _, arg := range e.Args {
				if arg.Description != "" {
					parts = append(parts, arg.Description)
				} else {
					parts = append(parts, string(arg.Value))
				}
			}
			s.logger.Debug("Page console.",
				zap.String("type", string(e.Type)),
				zap.String("text", strings.Join(parts, " ")))
		case *cdpruntime.EventExceptionThrown:
			if e.ExceptionDetails != nil {
				s.logger.Debug("Page exception.", zap.String("text", e.ExceptionDetails.Text))
			}
		case *network.EventResponseReceived:
			if e.Response != nil && e.Response.Status >= 400 {
				s.logger.Warn("Page received an error response.",
					zap.Int64("status", e.Response.Status),
					zap.String("url", e.Response.URL))
			}
		}
	})
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool { return s.closed.Load() }

// Close terminates the tab and the browser process. It never fails; problems
// during teardown are logged.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)

		done := make(chan error, 1)
		go func() { done <- chromedp.Cancel(s.ctx) }()

		select {
		case err := <-done:
			if err != nil && err != context.Canceled {
				s.logger.Debug("Browser did not close cleanly.", zap.Error(err))
			}
		case <-time.After(closeTimeout):
			s.logger.Warn("Browser close timed out; killing the process.")
		}

		s.cancelTab()
		s.cancelAlloc()
		s.logger.Debug("Browser session closed.")
	})
	return nil
}

// run executes actions on the tab, bounded by ctx.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	if s.Closed() {
		return ErrSessionClosed
	}
	opCtx, cancel := CombineContext(s.ctx, ctx)
	defer cancel()
	return chromedp.Run(opCtx, actions...)
}
