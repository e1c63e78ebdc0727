package session

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/novix-ai/novix/pkg/novix/agent"
	apperrors "github.com/novix-ai/novix/pkg/novix/errors"
	"github.com/novix-ai/novix/pkg/novix/metrics"
	"github.com/novix-ai/novix/pkg/novix/wallet"
)

// Removal reasons recorded in metrics
const (
	ReasonDeleted = "deleted"
	ReasonExpired = "expired"
)

// Registry owns every live session. Structural changes (insert, remove,
// binding replacement) happen under one lock so lookups never observe a
// half-built record.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	factory agent.Factory
	idleTTL time.Duration
	network string
	metrics *metrics.Metrics
	log     logr.Logger
	now     func() time.Time
	newID   func() string
}

// Option configures a Registry
type Option func(*Registry)

// WithIdleTTL evicts sessions idle for longer than ttl. Zero disables expiry.
func WithIdleTTL(ttl time.Duration) Option {
	return func(r *Registry) {
		r.idleTTL = ttl
	}
}

// WithNetwork sets the network recorded on attached wallets
func WithNetwork(network string) Option {
	return func(r *Registry) {
		r.network = network
	}
}

// WithMetrics records session metrics
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Registry) {
		r.metrics = m
	}
}

// WithLogger sets the registry logger
func WithLogger(log logr.Logger) Option {
	return func(r *Registry) {
		r.log = log
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

// NewRegistry creates an empty registry that builds agents with factory
func NewRegistry(factory agent.Factory, opts ...Option) *Registry {
	r := &Registry{
		sessions: make(map[string]*Session),
		factory:  factory,
		log:      logr.Discard(),
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.log = r.log.WithName("session-registry")
	return r
}

// Create builds a walletless agent with a fresh memory and stores a new
// session. Nothing is stored when the factory fails.
func (r *Registry) Create(ctx context.Context) (*Session, error) {
	memory := agent.NewMemory()

	handle, err := r.factory.Build(ctx, agent.BuildRequest{Memory: memory})
	if err != nil {
		r.log.Error(err, "Failed to initialize agent")
		return nil, asInitError(err)
	}

	r.mu.Lock()
	id := r.newID()
	for r.sessions[id] != nil {
		id = r.newID()
	}
	s := newSession(id, memory, &Binding{Agent: handle}, r.now())
	r.sessions[id] = s
	r.mu.Unlock()

	r.metrics.SessionCreated()
	r.log.Info("Session created", "sessionID", id)
	return s, nil
}

// Get returns the live session with id. A session idle past the TTL is
// reported as not found.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()

	if !ok || r.expired(s, r.now()) {
		return nil, notFound(id)
	}
	return s, nil
}

// Touch marks the session as active now
func (r *Registry) Touch(s *Session) {
	s.touch(r.now())
}

// AttachWallet derives a signer from secret and rebinds the session to an
// agent carrying the wallet tools. Memory and thread are kept. On any
// failure the session is left unchanged.
func (r *Registry) AttachWallet(ctx context.Context, id, secret string) (*Session, error) {
	s, err := r.Get(id)
	if err != nil {
		return nil, err
	}

	w, err := wallet.FromPrivateKey(secret, r.network)
	if err != nil {
		return nil, err
	}

	handle, err := r.factory.Build(ctx, agent.BuildRequest{
		Memory: s.Memory,
		Tools:  wallet.Tools(w),
	})
	if err != nil {
		r.log.Error(err, "Failed to rebuild agent with wallet", "sessionID", id)
		return nil, asInitError(err)
	}

	r.mu.Lock()
	current, ok := r.sessions[id]
	if !ok || current != s {
		r.mu.Unlock()
		return nil, notFound(id)
	}
	s.binding.Store(&Binding{Agent: handle, Wallet: w})
	s.touch(r.now())
	r.mu.Unlock()

	r.metrics.WalletAttached()
	r.log.Info("Wallet attached", "sessionID", id, "address", w.Address())
	return s, nil
}

// Live reports whether s is still the session stored under its id
func (r *Registry) Live(s *Session) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[s.ID] == s
}

// Delete removes the session and reports whether it existed. A session that
// had already expired is dropped but reported as missing, as Get would.
func (r *Registry) Delete(id string) bool {
	now := r.now()

	r.mu.Lock()
	s, ok := r.sessions[id]
	expired := ok && r.expired(s, now)
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	if !ok {
		return false
	}
	if expired {
		r.metrics.SessionRemoved(ReasonExpired)
		r.log.Info("Session expired", "sessionID", id)
		return false
	}
	r.metrics.SessionRemoved(ReasonDeleted)
	r.log.Info("Session removed", "sessionID", id, "turns", s.Memory.Len(s.ThreadID))
	return true
}

// Len returns the number of stored sessions
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// List returns snapshots of live sessions, oldest first
func (r *Registry) List() []Info {
	now := r.now()

	r.mu.RLock()
	out := make([]Info, 0, len(r.sessions))
	for _, s := range r.sessions {
		if r.expired(s, now) {
			continue
		}
		out = append(out, s.Info())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Reap removes sessions idle past the TTL and returns how many were removed.
// Sessions with an interaction in flight are kept.
func (r *Registry) Reap() int {
	if r.idleTTL <= 0 {
		return 0
	}
	now := r.now()

	r.mu.Lock()
	var reaped []string
	for id, s := range r.sessions {
		if r.expired(s, now) && !s.Busy() {
			delete(r.sessions, id)
			reaped = append(reaped, id)
		}
	}
	r.mu.Unlock()

	for _, id := range reaped {
		r.metrics.SessionRemoved(ReasonExpired)
		r.log.Info("Session expired", "sessionID", id)
	}
	return len(reaped)
}

// Run reaps expired sessions every interval until ctx is done
func (r *Registry) Run(ctx context.Context, interval time.Duration) error {
	if r.idleTTL <= 0 || interval <= 0 {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := r.Reap(); n > 0 {
				r.log.V(1).Info("Reaped idle sessions", "count", n, "remaining", r.Len())
			}
		}
	}
}

func (r *Registry) expired(s *Session, now time.Time) bool {
	return r.idleTTL > 0 && !s.Busy() && now.Sub(s.LastActive()) > r.idleTTL
}

func notFound(id string) error {
	return apperrors.New(apperrors.ErrCodeSessionNotFound, fmt.Sprintf("Session not found: %s", id), nil)
}

func asInitError(err error) error {
	if apperrors.CodeOf(err) == apperrors.ErrCodeAgentInit {
		return err
	}
	return apperrors.New(apperrors.ErrCodeAgentInit, "Unable to setup the session", err)
}
