package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/go-logr/logr/testr"
	"github.com/novix-ai/novix/pkg/novix/agent"
	apperrors "github.com/novix-ai/novix/pkg/novix/errors"
	"github.com/novix-ai/novix/pkg/novix/llm"
	"github.com/novix-ai/novix/pkg/novix/metrics"
	"github.com/novix-ai/novix/pkg/novix/tools"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const keyOne = "0x0000000000000000000000000000000000000000000000000000000000000001"

// MockFactory builds real agents over a scripted LLM client
type MockFactory struct {
	mu     sync.Mutex
	err    error
	builds []agent.BuildRequest
	client *llm.MockClient
}

func NewMockFactory(responses ...*llm.Response) *MockFactory {
	return &MockFactory{client: llm.NewMockClient(responses...)}
}

func (f *MockFactory) Build(ctx context.Context, req agent.BuildRequest) (agent.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.builds = append(f.builds, req)
	registry, err := tools.NewRegistry(req.Tools...)
	if err != nil {
		return nil, err
	}
	return agent.New(f.client, registry, req.Memory), nil
}

func (f *MockFactory) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestRegistry_CreateAndGet(t *testing.T) {
	r := NewRegistry(NewMockFactory(), WithLogger(testr.New(t)))

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		s, err := r.Create(context.Background())
		require.NoError(t, err)
		assert.False(t, seen[s.ID], "identifier reused")
		seen[s.ID] = true

		got, err := r.Get(s.ID)
		require.NoError(t, err)
		assert.Same(t, s, got)
		assert.Equal(t, s.ID, got.ThreadID)
		assert.False(t, got.HasWallet())
	}
	assert.Equal(t, 50, r.Len())
}

func TestRegistry_CreateRetriesCollidingID(t *testing.T) {
	r := NewRegistry(NewMockFactory())
	ids := []string{"a", "a", "b"}
	r.newID = func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}

	first, err := r.Create(context.Background())
	require.NoError(t, err)
	second, err := r.Create(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a", first.ID)
	assert.Equal(t, "b", second.ID)
}

func TestRegistry_CreateFailureLeavesNoRecord(t *testing.T) {
	f := NewMockFactory()
	r := NewRegistry(f)
	_, err := r.Create(context.Background())
	require.NoError(t, err)

	f.fail(errors.New("invalid api key"))
	s, err := r.Create(context.Background())
	require.Error(t, err)
	assert.Nil(t, s)
	assert.ErrorIs(t, err, apperrors.ErrAgentInit)
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_CreateKeepsFactoryInitError(t *testing.T) {
	f := NewMockFactory()
	f.fail(apperrors.New(apperrors.ErrCodeAgentInit, "failed to create LLM client", nil))
	_, err := NewRegistry(f).Create(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create LLM client")
}

func TestRegistry_Delete(t *testing.T) {
	r := NewRegistry(NewMockFactory())
	s, err := r.Create(context.Background())
	require.NoError(t, err)

	assert.True(t, r.Delete(s.ID))
	_, err = r.Get(s.ID)
	assert.ErrorIs(t, err, apperrors.ErrSessionNotFound)

	assert.False(t, r.Delete(s.ID))
	assert.False(t, r.Delete("never-issued"))
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_AttachWalletPreservesMemory(t *testing.T) {
	f := NewMockFactory()
	r := NewRegistry(f, WithNetwork("base-sepolia"))
	s, err := r.Create(context.Background())
	require.NoError(t, err)

	s.Memory.Append(s.ThreadID,
		llm.Message{Role: llm.RoleUser, Content: "hello"},
		llm.Message{Role: llm.RoleAssistant, Content: "hi"})
	before := s.Binding()

	updated, err := r.AttachWallet(context.Background(), s.ID, keyOne)
	require.NoError(t, err)
	assert.Same(t, s, updated)

	after := updated.Binding()
	assert.NotSame(t, before.Agent, after.Agent)
	require.NotNil(t, after.Wallet)
	assert.Equal(t, "0x7E5F4552091A69125d5DfCb7b8C2659029395Bdf", after.Wallet.Address())
	assert.Equal(t, "base-sepolia", after.Wallet.Network())
	assert.True(t, updated.HasWallet())

	// same memory, same thread, history intact
	assert.Same(t, s.Memory, f.builds[1].Memory)
	history := updated.Memory.Load(updated.ThreadID)
	require.Len(t, history, 2)
	assert.Equal(t, "hello", history[0].Content)

	assert.Contains(t, after.Agent.ToolNames(), "get_wallet_details")
	assert.Empty(t, before.Agent.ToolNames())
}

func TestRegistry_AttachWalletFailures(t *testing.T) {
	f := NewMockFactory()
	r := NewRegistry(f)
	s, err := r.Create(context.Background())
	require.NoError(t, err)
	original := s.Binding()

	_, err = r.AttachWallet(context.Background(), "missing", keyOne)
	assert.ErrorIs(t, err, apperrors.ErrSessionNotFound)

	_, err = r.AttachWallet(context.Background(), s.ID, "not-a-key")
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredential)
	assert.Same(t, original, s.Binding())

	f.fail(errors.New("llm down"))
	_, err = r.AttachWallet(context.Background(), s.ID, keyOne)
	assert.ErrorIs(t, err, apperrors.ErrAgentInit)
	assert.Same(t, original, s.Binding())
	assert.False(t, s.HasWallet())
}

func TestRegistry_AttachWalletAfterConcurrentDelete(t *testing.T) {
	r := NewRegistry(nil)
	var id string
	r.factory = agent.FactoryFunc(func(ctx context.Context, req agent.BuildRequest) (agent.Handle, error) {
		if len(req.Tools) > 0 {
			// the session disappears while the agent is being rebuilt
			r.Delete(id)
		}
		registry, _ := tools.NewRegistry(req.Tools...)
		return agent.New(llm.NewMockClient(), registry, req.Memory), nil
	})

	s, err := r.Create(context.Background())
	require.NoError(t, err)
	id = s.ID

	_, err = r.AttachWallet(context.Background(), id, keyOne)
	assert.ErrorIs(t, err, apperrors.ErrSessionNotFound)
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_IdleExpiry(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	r := NewRegistry(NewMockFactory(), WithIdleTTL(time.Minute), WithClock(clock.Now), WithMetrics(m))

	idle, err := r.Create(context.Background())
	require.NoError(t, err)
	busy, err := r.Create(context.Background())
	require.NoError(t, err)
	require.True(t, busy.TryAcquire())

	clock.Advance(30 * time.Second)
	active, err := r.Create(context.Background())
	require.NoError(t, err)

	clock.Advance(45 * time.Second)

	_, err = r.Get(idle.ID)
	assert.ErrorIs(t, err, apperrors.ErrSessionNotFound)
	_, err = r.Get(active.ID)
	assert.NoError(t, err)
	assert.Len(t, r.List(), 2)

	assert.Equal(t, 1, r.Reap())
	assert.Equal(t, 2, r.Len())
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SessionsRemoved.WithLabelValues(ReasonExpired)))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.SessionsActive))

	busy.Release()
	clock.Advance(2 * time.Minute)
	assert.Equal(t, 2, r.Reap())
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_DeleteExpiredReportsMissing(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	r := NewRegistry(NewMockFactory(), WithIdleTTL(time.Minute), WithClock(clock.Now), WithMetrics(m))

	s, err := r.Create(context.Background())
	require.NoError(t, err)
	clock.Advance(2 * time.Minute)

	_, err = r.Get(s.ID)
	assert.ErrorIs(t, err, apperrors.ErrSessionNotFound)
	assert.False(t, r.Delete(s.ID))
	assert.Equal(t, 0, r.Len())
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SessionsRemoved.WithLabelValues(ReasonExpired)))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.SessionsRemoved.WithLabelValues(ReasonDeleted)))
}

func TestRegistry_Live(t *testing.T) {
	r := NewRegistry(NewMockFactory())
	s, err := r.Create(context.Background())
	require.NoError(t, err)
	assert.True(t, r.Live(s))

	require.True(t, r.Delete(s.ID))
	assert.False(t, r.Live(s))
}

func TestRegistry_NoExpiryWhenTTLDisabled(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	r := NewRegistry(NewMockFactory(), WithClock(clock.Now))
	s, err := r.Create(context.Background())
	require.NoError(t, err)

	clock.Advance(24 * time.Hour)
	_, err = r.Get(s.ID)
	assert.NoError(t, err)
	assert.Equal(t, 0, r.Reap())
}

func TestRegistry_Run(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	r := NewRegistry(NewMockFactory(), WithIdleTTL(time.Millisecond), WithClock(clock.Now))
	_, err := r.Create(context.Background())
	require.NoError(t, err)
	clock.Advance(time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx, 5*time.Millisecond) }()

	assert.Eventually(t, func() bool { return r.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	assert.NoError(t, <-done)
}

func TestRegistry_List(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	r := NewRegistry(NewMockFactory(), WithClock(clock.Now))

	var ids []string
	for i := 0; i < 3; i++ {
		s, err := r.Create(context.Background())
		require.NoError(t, err)
		ids = append(ids, s.ID)
		clock.Advance(time.Second)
	}
	_, err := r.AttachWallet(context.Background(), ids[1], keyOne)
	require.NoError(t, err)

	list := r.List()
	require.Len(t, list, 3)
	for i, info := range list {
		assert.Equal(t, ids[i], info.ID)
	}
	assert.True(t, list[1].HasWallet)
	assert.NotEmpty(t, list[1].Address)
	assert.False(t, list[0].HasWallet)
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := NewRegistry(NewMockFactory())

	var wg sync.WaitGroup
	ids := make(chan string, 100)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := r.Create(context.Background())
			if err == nil {
				ids <- s.ID
			}
		}()
	}
	wg.Wait()
	close(ids)

	for id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, _ = r.Get(id)
			_ = r.List()
			assert.True(t, r.Delete(id), fmt.Sprintf("delete %s", id))
		}(id)
	}
	wg.Wait()
	assert.Equal(t, 0, r.Len())
}

func TestSession_Gate(t *testing.T) {
	r := NewRegistry(NewMockFactory())
	s, err := r.Create(context.Background())
	require.NoError(t, err)

	require.True(t, s.TryAcquire())
	assert.True(t, s.Busy())
	assert.False(t, s.TryAcquire())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err = s.Acquire(ctx)
	assert.ErrorIs(t, err, apperrors.ErrSessionBusy)

	s.Release()
	assert.False(t, s.Busy())
	require.NoError(t, s.Acquire(context.Background()))
	s.Release()
}
