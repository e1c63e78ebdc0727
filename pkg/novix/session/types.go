package session

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/novix-ai/novix/pkg/novix/agent"
	apperrors "github.com/novix-ai/novix/pkg/novix/errors"
	"github.com/novix-ai/novix/pkg/novix/wallet"
)

// Binding is the agent a session currently talks to. A nil Wallet means
// the agent was built without wallet capabilities. Bindings are immutable
// and replaced as a whole.
type Binding struct {
	Agent  agent.Handle
	Wallet *wallet.Wallet
}

// Session associates an identifier with an agent binding and the memory
// that outlives binding changes.
type Session struct {
	ID        string
	CreatedAt time.Time

	// ThreadID keys the session's conversation in Memory
	ThreadID string
	Memory   *agent.Memory

	binding    atomic.Pointer[Binding]
	lastActive atomic.Int64
	gate       chan struct{}
}

func newSession(id string, memory *agent.Memory, b *Binding, now time.Time) *Session {
	s := &Session{
		ID:        id,
		CreatedAt: now,
		ThreadID:  id,
		Memory:    memory,
		gate:      make(chan struct{}, 1),
	}
	s.binding.Store(b)
	s.touch(now)
	return s
}

// Binding returns the current agent binding
func (s *Session) Binding() *Binding {
	return s.binding.Load()
}

// HasWallet reports whether a wallet is attached
func (s *Session) HasWallet() bool {
	return s.Binding().Wallet != nil
}

// LastActive returns the time of the last create, attach or interaction
func (s *Session) LastActive() time.Time {
	return time.Unix(0, s.lastActive.Load())
}

func (s *Session) touch(now time.Time) {
	s.lastActive.Store(now.UnixNano())
}

// TryAcquire claims the session for one interaction without waiting
func (s *Session) TryAcquire() bool {
	select {
	case s.gate <- struct{}{}:
		return true
	default:
		return false
	}
}

// Acquire waits until the session is free or ctx is done
func (s *Session) Acquire(ctx context.Context) error {
	select {
	case s.gate <- struct{}{}:
		return nil
	case <-ctx.Done():
		return apperrors.New(apperrors.ErrCodeSessionBusy, "timed out waiting for session", ctx.Err())
	}
}

// Release frees the session for the next interaction
func (s *Session) Release() {
	select {
	case <-s.gate:
	default:
	}
}

// Busy reports whether an interaction is in flight
func (s *Session) Busy() bool {
	return len(s.gate) > 0
}

// Info is a read-only snapshot of a session
type Info struct {
	ID         string    `json:"id"`
	CreatedAt  time.Time `json:"createdAt"`
	LastActive time.Time `json:"lastActive"`
	HasWallet  bool      `json:"hasWallet"`
	Address    string    `json:"address,omitempty"`
	Busy       bool      `json:"busy"`
	Turns      int       `json:"turns"`
	Tools      []string  `json:"tools"`
}

// Info returns a snapshot of the session
func (s *Session) Info() Info {
	b := s.Binding()
	info := Info{
		ID:         s.ID,
		CreatedAt:  s.CreatedAt,
		LastActive: s.LastActive(),
		HasWallet:  b.Wallet != nil,
		Busy:       s.Busy(),
		Turns:      s.Memory.Len(s.ThreadID),
		Tools:      b.Agent.ToolNames(),
	}
	if b.Wallet != nil {
		info.Address = b.Wallet.Address()
	}
	return info
}
