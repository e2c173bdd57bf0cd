package automation

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/sorteando-crawler/internal/browser"
	"github.com/xkilldash9x/sorteando-crawler/internal/config"
	"github.com/xkilldash9x/sorteando-crawler/internal/extract"
)

// Service runs the create and register workflows with admission control and
// a deadline per request.
type Service struct {
	target     config.TargetConfig
	timeouts   config.AutomationConfig
	browserCfg config.BrowserConfig
	launch     Launcher
	capture    DiagnosticFunc
	slots      *semaphore.Weighted
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// Option customises a Service.
type Option func(*Service)

// WithLauncher replaces the browser launcher, mainly for tests.
func WithLauncher(l Launcher) Option { return func(s *Service) { s.launch = l } }

// WithDiagnostics sets the failure evidence collector.
func WithDiagnostics(fn DiagnosticFunc) Option { return func(s *Service) { s.capture = fn } }

// NewService builds a Service from the process configuration.
func NewService(cfg *config.Config, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		target:     cfg.Target,
		timeouts:   cfg.Automation,
		browserCfg: cfg.Browser,
		slots:      semaphore.NewWeighted(cfg.Browser.MaxSessions),
		logger:     logger.Named("automation"),
	}
	if cfg.Target.RateLimit > 0 {
		burst := cfg.Target.RateBurst
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.Target.RateLimit), burst)
	}
	s.launch = BrowserLauncher(cfg.Browser, logger)
	s.capture = NewDiagnostics(cfg.Diagnostics, s.logger).Capture
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BrowserLauncher returns a Launcher that starts a real headless browser.
func BrowserLauncher(cfg config.BrowserConfig, logger *zap.Logger) Launcher {
	return func(ctx context.Context) (Page, error) {
		s, err := browser.Open(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// CreateEvent creates an event on the raffle site.
func (s *Service) CreateEvent(ctx context.Context, req CreateEventRequest) (*CreateEventResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	out, err := s.execute(ctx, CreateEventWorkflow(s.target, s.timeouts, req))
	if err != nil {
		return nil, err
	}
	return &CreateEventResult{
		Name:       req.Name,
		Email:      req.Email,
		EventLink:  out.Fields[extract.FieldEventLink],
		AccessCode: out.Fields[extract.FieldAccessCode],
		EventID:    out.Fields[extract.FieldEventID],
	}, nil
}

// Register registers a participant in an existing event.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*RegistrationResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	out, err := s.execute(ctx, RegistrationWorkflow(s.target, s.timeouts, req))
	if err != nil {
		return nil, err
	}
	return &RegistrationResult{
		Name:               req.Name,
		Phone:              req.Phone,
		EventID:            req.EventID,
		RegistrationNumber: out.Fields[extract.FieldRegistrationNumber],
	}, nil
}

// acquire takes a browser slot, waiting at most the configured acquire timeout.
func (s *Service) acquire(ctx context.Context) error {
	if s.browserCfg.AcquireTimeout <= 0 {
		if !s.slots.TryAcquire(1) {
			return errors.New("no free slot")
		}
		return nil
	}
	acquireCtx, cancel := context.WithTimeout(ctx, s.browserCfg.AcquireTimeout)
	defer cancel()
	return s.slots.Acquire(acquireCtx, 1)
}

func (s *Service) execute(ctx context.Context, wf Workflow) (Outcome, error) {
	if err := s.acquire(ctx); err != nil {
		if ctx.Err() != nil {
			return Outcome{}, &Error{Kind: KindCanceled, State: StateCreated, Err: ctx.Err()}
		}
		s.logger.Warn("No browser slot available.", zap.String("workflow", wf.Name))
		return Outcome{}, &Error{Kind: KindBusy, State: StateCreated, Err: fmt.Errorf("all %d browser slots in use", s.browserCfg.MaxSessions)}
	}
	defer s.slots.Release(1)

	runCtx, cancel := context.WithTimeout(ctx, s.timeouts.RequestDeadline)
	defer cancel()

	if s.limiter != nil {
		if err := s.limiter.Wait(runCtx); err != nil {
			if ctx.Err() != nil {
				return Outcome{}, &Error{Kind: KindCanceled, State: StateCreated, Err: err}
			}
			return Outcome{}, &Error{Kind: KindBusy, State: StateCreated, Err: err}
		}
	}

	out := Run(runCtx, wf, s.launch, s.capture, s.logger)
	if out.Err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			out.Err.Err = fmt.Errorf("request deadline of %s exceeded: %w", s.timeouts.RequestDeadline, out.Err.Err)
		}
		s.logger.Warn("Automation run failed.",
			zap.String("workflow", wf.Name),
			zap.Stringer("kind", out.Err.Kind),
			zap.String("state", string(out.Err.State)),
			zap.Strings("missing", out.Err.Missing),
			zap.Duration("took", out.Duration),
			zap.Error(out.Err.Err))
		return out, out.Err
	}

	s.logger.Info("Automation run succeeded.",
		zap.String("workflow", wf.Name),
		zap.Int("transitions", len(out.History)),
		zap.Duration("took", out.Duration))
	return out, nil
}
