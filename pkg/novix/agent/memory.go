package agent

import (
	"sync"

	"github.com/novix-ai/novix/pkg/novix/llm"
)

// Memory is a conversation checkpointer keyed by thread ID.
type Memory struct {
	mu      sync.RWMutex
	threads map[string][]llm.Message
}

// NewMemory creates an empty Memory
func NewMemory() *Memory {
	return &Memory{threads: make(map[string][]llm.Message)}
}

// Load returns a copy of the thread's history
func (m *Memory) Load(threadID string) []llm.Message {
	m.mu.RLock()
	defer m.mu.RUnlock()
	history := m.threads[threadID]
	out := make([]llm.Message, len(history))
	copy(out, history)
	return out
}

// Append adds messages to the thread as one unit
func (m *Memory) Append(threadID string, msgs ...llm.Message) {
	if len(msgs) == 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.threads[threadID] = append(m.threads[threadID], msgs...)
}

// Len returns the number of messages recorded on the thread
func (m *Memory) Len(threadID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.threads[threadID])
}
