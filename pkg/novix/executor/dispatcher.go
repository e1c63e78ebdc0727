package executor

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/novix-ai/novix/pkg/novix/agent"
	"github.com/novix-ai/novix/pkg/novix/config"
	apperrors "github.com/novix-ai/novix/pkg/novix/errors"
	"github.com/novix-ai/novix/pkg/novix/metrics"
	"github.com/novix-ai/novix/pkg/novix/session"
	ctrllog "sigs.k8s.io/controller-runtime/pkg/log"
)

// Delivery modes
const (
	ModeSync = "sync"
	ModePush = "push"
)

// EmitFunc receives fragments in production order. Returning an error stops
// forwarding and cancels the interaction.
type EmitFunc func(agent.Fragment) error

// Dispatcher drives interactions between callers and session agents
type Dispatcher struct {
	registry   *session.Registry
	busyPolicy string
	timeout    time.Duration
	metrics    *metrics.Metrics
	log        logr.Logger
}

// Option configures a Dispatcher
type Option func(*Dispatcher)

// WithBusyPolicy selects what happens when a session already has an
// interaction in flight: config.BusyPolicyReject or config.BusyPolicyQueue
func WithBusyPolicy(policy string) Option {
	return func(d *Dispatcher) {
		d.busyPolicy = policy
	}
}

// WithTimeout bounds the duration of each interaction. Zero disables it.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		d.timeout = timeout
	}
}

// WithMetrics records interaction metrics
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// WithLogger sets the dispatcher logger
func WithLogger(log logr.Logger) Option {
	return func(d *Dispatcher) {
		d.log = log
	}
}

// NewDispatcher creates a Dispatcher over registry
func NewDispatcher(registry *session.Registry, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		registry:   registry,
		busyPolicy: config.BusyPolicyReject,
		log:        logr.Discard(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.log = d.log.WithName("dispatcher")
	return d
}

// Interact drains the whole interaction and returns the fragments in order.
// On failure the fragments produced before the error are returned with it.
func (d *Dispatcher) Interact(ctx context.Context, sessionID, message string) ([]agent.Fragment, error) {
	var fragments []agent.Fragment
	err := d.run(ctx, ModeSync, sessionID, message, func(f agent.Fragment) error {
		fragments = append(fragments, f)
		return nil
	})
	if fragments == nil {
		fragments = []agent.Fragment{}
	}
	return fragments, err
}

// Stream forwards each fragment to emit as soon as the agent produces it.
// Fragments already emitted are not retracted when a later step fails.
func (d *Dispatcher) Stream(ctx context.Context, sessionID, message string, emit EmitFunc) error {
	return d.run(ctx, ModePush, sessionID, message, emit)
}

func (d *Dispatcher) run(ctx context.Context, mode, sessionID, message string, emit EmitFunc) error {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		d.metrics.InteractionDone(mode, result, time.Since(start))
	}()

	if strings.TrimSpace(message) == "" {
		result = metrics.ResultError
		return apperrors.New(apperrors.ErrCodeInvalidInput, "Message is required", nil)
	}

	s, err := d.registry.Get(sessionID)
	if err != nil {
		result = metrics.ResultError
		return err
	}

	if err := d.acquire(ctx, s); err != nil {
		result = metrics.ResultBusy
		return err
	}
	defer s.Release()

	// the session may have been removed while this call waited for it
	if !d.registry.Live(s) {
		result = metrics.ResultError
		return apperrors.New(apperrors.ErrCodeSessionNotFound, "Session not found: "+sessionID, nil)
	}

	// the binding is read once so a concurrent wallet attach applies to the
	// next interaction
	binding := s.Binding()

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	log := d.log.WithValues("sessionID", sessionID, "mode", mode)
	ctx = ctrllog.IntoContext(ctx, log)

	d.registry.Touch(s)
	defer d.registry.Touch(s)

	log.V(1).Info("Interaction started")

	var (
		count    int
		finished bool
		emitErr  error
		runErr   error
	)
	for ev := range binding.Agent.Stream(ctx, s.ThreadID, message) {
		if ev.Err != nil {
			runErr = ev.Err
			continue
		}
		if ev.Done {
			finished = true
			continue
		}
		if emitErr != nil {
			continue
		}
		if emitErr = emit(*ev.Fragment); emitErr != nil {
			// stop the agent; the loop drains until the channel closes
			cancel()
			continue
		}
		count++
		d.metrics.Fragment(string(ev.Fragment.Kind))
	}

	switch {
	case emitErr != nil:
		result = metrics.ResultCanceled
		log.Info("Caller went away, stopped forwarding", "fragments", count, "error", emitErr.Error())
		return apperrors.New(apperrors.ErrCodeInteraction, "failed to deliver response", emitErr)
	case runErr != nil || (!finished && ctx.Err() != nil):
		if runErr == nil {
			runErr = ctx.Err()
		}
		result = metrics.ResultError
		if errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded) {
			result = metrics.ResultCanceled
		}
		log.Error(runErr, "Interaction failed", "fragments", count)
		return interactionError(runErr)
	}

	log.V(1).Info("Interaction finished", "fragments", count, "elapsed", time.Since(start).String())
	return nil
}

func (d *Dispatcher) acquire(ctx context.Context, s *session.Session) error {
	if d.busyPolicy == config.BusyPolicyQueue {
		return s.Acquire(ctx)
	}
	if !s.TryAcquire() {
		return apperrors.New(apperrors.ErrCodeSessionBusy, "Session is busy with another interaction", nil)
	}
	return nil
}

func interactionError(err error) error {
	if apperrors.CodeOf(err) == apperrors.ErrCodeInteraction {
		return err
	}
	msg := "Failed to process interaction"
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		msg = "Interaction timed out"
	case errors.Is(err, context.Canceled):
		msg = "Interaction canceled"
	}
	return apperrors.New(apperrors.ErrCodeInteraction, msg, err)
}
