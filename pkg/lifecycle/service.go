package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	sserr "github.com/StricklySoft/compliance-auth/pkg/errors"
)

const tracerName = "github.com/StricklySoft/compliance-auth/pkg/lifecycle"

// DefaultCheckTimeout bounds each health check when the caller's context
// has no deadline.
const DefaultCheckTimeout = 5 * time.Second

// Hook pairs a start action with the action that undoes it. Either
// function may be nil.
type Hook struct {
	Name    string
	OnStart func(ctx context.Context) error
	OnStop  func(ctx context.Context) error
}

// HealthCheck probes one dependency. A nil return means healthy.
type HealthCheck func(ctx context.Context) error

// StateChangeHandler observes every accepted transition. Handlers run
// under the state lock and must not call back into the service.
type StateChangeHandler func(old, new State)

// Report is the outcome of [Service.Health]. Checks maps each registered
// check to "ok" or its error text.
type Report struct {
	Name    string            `json:"name"`
	Version string            `json:"version"`
	State   State             `json:"state"`
	Healthy bool              `json:"healthy"`
	Uptime  string            `json:"uptime,omitempty"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// Service owns the start/stop order of a process's dependencies. Hooks
// start in registration order and stop in reverse. It is safe for
// concurrent use.
type Service struct {
	name    string
	version string

	mu        sync.RWMutex
	state     State
	startedAt time.Time
	started   int // hooks whose OnStart succeeded

	hooks    []Hook
	checks   map[string]HealthCheck
	handlers []StateChangeHandler

	tracer trace.Tracer
	logger *slog.Logger
}

func (s *Service) Name() string    { return s.name }
func (s *Service) Version() string { return s.version }

// State returns the current state.
func (s *Service) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// setState applies a validated transition and notifies the handlers. A
// panicking handler is logged and otherwise ignored.
func (s *Service) setState(next State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.state
	if !ValidTransition(old, next) {
		return sserr.Newf(sserr.CodeInternal,
			"lifecycle: invalid state transition from %q to %q", old, next)
	}
	s.state = next
	if next == StateRunning {
		s.startedAt = time.Now().UTC()
	}

	for _, h := range s.handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					s.logger.Error("lifecycle: state change handler panicked",
						"panic", r,
						"service", s.name,
						"old_state", old.String(),
						"new_state", next.String(),
					)
				}
			}()
			h(old, next)
		}()
	}
	return nil
}

// Start runs every OnStart hook in order and moves the service to
// Running. If a hook fails, the hooks that already started are stopped
// in reverse order and the service ends in Failed.
func (s *Service) Start(ctx context.Context) (err error) {
	ctx, span := s.startSpan(ctx, "lifecycle.Start")
	defer func() { finishSpan(span, err) }()

	if err := ctx.Err(); err != nil {
		return sserr.Wrap(err, sserr.CodeTimeout, "lifecycle: start canceled before execution")
	}
	if err := s.setState(StateStarting); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "lifecycle: starting service",
		"service", s.name,
		"version", s.version,
		"hooks", len(s.hooks),
	)

	for i, h := range s.hooks {
		if h.OnStart == nil {
			s.markStarted(i + 1)
			continue
		}
		if err := h.OnStart(ctx); err != nil {
			s.logger.ErrorContext(ctx, "lifecycle: start hook failed",
				"service", s.name,
				"hook", h.Name,
				"error", err,
			)
			if rbErr := s.stopHooks(ctx); rbErr != nil {
				s.logger.ErrorContext(ctx, "lifecycle: rollback after failed start incomplete",
					"service", s.name,
					"error", rbErr,
				)
			}
			_ = s.setState(StateFailed)
			return sserr.Wrapf(err, sserr.CodeInternal, "lifecycle: start hook %q failed", h.Name)
		}
		s.markStarted(i + 1)
	}

	if err := s.setState(StateRunning); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "lifecycle: service running", "service", s.name)
	return nil
}

// Stop runs the OnStop hook of every started hook in reverse order. All
// hooks run even if one fails; the failures are joined and the service
// ends in Failed. Stop on a service that is not running is a no-op.
func (s *Service) Stop(ctx context.Context) (err error) {
	ctx, span := s.startSpan(ctx, "lifecycle.Stop")
	defer func() { finishSpan(span, err) }()

	switch s.State() {
	case StateCreated, StateStopped, StateFailed:
		return nil
	}
	if err := s.setState(StateStopping); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "lifecycle: stopping service", "service", s.name)

	if err := s.stopHooks(ctx); err != nil {
		_ = s.setState(StateFailed)
		return sserr.Wrap(err, sserr.CodeInternal, "lifecycle: stop hooks failed")
	}
	if err := s.setState(StateStopped); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "lifecycle: service stopped", "service", s.name)
	return nil
}

func (s *Service) markStarted(n int) {
	s.mu.Lock()
	s.started = n
	s.mu.Unlock()
}

func (s *Service) stopHooks(ctx context.Context) error {
	s.mu.Lock()
	n := s.started
	s.started = 0
	s.mu.Unlock()

	var errs []error
	for i := n - 1; i >= 0; i-- {
		h := s.hooks[i]
		if h.OnStop == nil {
			continue
		}
		if err := h.OnStop(ctx); err != nil {
			s.logger.ErrorContext(ctx, "lifecycle: stop hook failed",
				"service", s.name,
				"hook", h.Name,
				"error", err,
			)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Health runs every registered check concurrently and reports the
// results. The error is nil only when the service is Running and every
// check passed; otherwise it carries [sserr.CodeUnavailableDependency].
func (s *Service) Health(ctx context.Context) (Report, error) {
	s.mu.RLock()
	report := Report{Name: s.name, Version: s.version, State: s.state}
	if s.state == StateRunning {
		report.Uptime = time.Since(s.startedAt).Truncate(time.Second).String()
	}
	s.mu.RUnlock()

	if report.State != StateRunning {
		return report, sserr.Newf(sserr.CodeUnavailableDependency,
			"lifecycle: service is not running, current state is %q", report.State)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultCheckTimeout)
		defer cancel()
	}

	var (
		mu     sync.Mutex
		failed []string
		g      errgroup.Group
	)
	report.Checks = make(map[string]string, len(s.checks))
	for name, check := range s.checks {
		g.Go(func() error {
			err := check(ctx)
			if err != nil {
				s.logger.WarnContext(ctx, "lifecycle: health check failed",
					"service", s.name, "check", name, "error", err)
			}
			mu.Lock()
			defer mu.Unlock()
			report.Checks[name] = checkResult(err)
			if err != nil {
				failed = append(failed, name)
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(failed) > 0 {
		sort.Strings(failed)
		return report, sserr.Newf(sserr.CodeUnavailableDependency,
			"lifecycle: unhealthy dependencies: %v", failed)
	}
	report.Healthy = true
	return report, nil
}

// checkResult is the public form of a check outcome: "ok", or
// "unhealthy" with the error code when there is one. Error text can name
// hosts and driver internals and stays in the log.
func checkResult(err error) string {
	if err == nil {
		return "ok"
	}
	if code := sserr.GetCode(err); code != "" {
		return "unhealthy (" + string(code) + ")"
	}
	return "unhealthy"
}

func (s *Service) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("service.name", s.name),
			attribute.String("service.version", s.version),
		),
	)
}

func finishSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// Builder assembles a [Service].
//
//	svc, err := lifecycle.NewBuilder("gateway", version).
//	    WithLogger(logger).
//	    Append(lifecycle.Hook{Name: "http", OnStart: srv.start, OnStop: srv.Shutdown}).
//	    WithHealthCheck("postgres", db.Health).
//	    Build()
type Builder struct {
	name     string
	version  string
	logger   *slog.Logger
	hooks    []Hook
	checks   map[string]HealthCheck
	handlers []StateChangeHandler
	err      error
}

// NewBuilder starts a builder for a service called name.
func NewBuilder(name, version string) *Builder {
	return &Builder{name: name, version: version, checks: map[string]HealthCheck{}}
}

func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// Append registers a hook. Hooks start in the order they are appended.
func (b *Builder) Append(h Hook) *Builder {
	b.hooks = append(b.hooks, h)
	return b
}

// WithHealthCheck registers check under name. Names must be unique.
func (b *Builder) WithHealthCheck(name string, check HealthCheck) *Builder {
	switch {
	case b.err != nil:
	case name == "" || check == nil:
		b.err = sserr.New(sserr.CodeValidationRequired,
			"lifecycle: health check needs a name and a function")
	default:
		if _, dup := b.checks[name]; dup {
			b.err = sserr.Newf(sserr.CodeValidation,
				"lifecycle: duplicate health check %q", name)
			break
		}
		b.checks[name] = check
	}
	return b
}

func (b *Builder) OnStateChange(h StateChangeHandler) *Builder {
	if h != nil {
		b.handlers = append(b.handlers, h)
	}
	return b
}

// Build validates the builder and returns the service in
// [StateCreated]. A nil logger falls back to [slog.Default].
func (b *Builder) Build() (*Service, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.name == "" {
		return nil, sserr.New(sserr.CodeValidationRequired, "lifecycle: service name is required")
	}
	if b.version == "" {
		return nil, sserr.New(sserr.CodeValidationRequired, "lifecycle: service version is required")
	}
	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	checks := make(map[string]HealthCheck, len(b.checks))
	for k, v := range b.checks {
		checks[k] = v
	}
	return &Service{
		name:     b.name,
		version:  b.version,
		state:    StateCreated,
		hooks:    append([]Hook(nil), b.hooks...),
		checks:   checks,
		handlers: append([]StateChangeHandler(nil), b.handlers...),
		tracer:   otel.Tracer(tracerName),
		logger:   logger,
	}, nil
}
