// Package session is the in-memory session registry. Sessions hold the
// parsed message list and, once processed, the distillation result.
// Nothing here is durable across restarts.
package session

import (
	"sync"

	"github.com/fyrsmithlabs/distilld/internal/distill"
	"github.com/fyrsmithlabs/distilld/internal/transcript"
)

// Registry maps session IDs to their messages and processed results.
// Safe for concurrent use across sessions; reprocessing the same session
// concurrently is last-write-wins.
type Registry struct {
	mu        sync.RWMutex
	order     []string
	messages  map[string][]transcript.Message
	processed map[string]*distill.ProcessedResult
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		messages:  make(map[string][]transcript.Message),
		processed: make(map[string]*distill.ProcessedResult),
	}
}

// Put stores a session's messages, replacing any previous list.
func (r *Registry) Put(sessionID string, msgs []transcript.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.messages[sessionID]; !exists {
		r.order = append(r.order, sessionID)
	}
	r.messages[sessionID] = msgs
}

// Get returns a session's messages.
func (r *Registry) Get(sessionID string) ([]transcript.Message, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	msgs, ok := r.messages[sessionID]
	return msgs, ok
}

// PutProcessed stores a session's distillation result.
func (r *Registry) PutProcessed(sessionID string, result *distill.ProcessedResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.processed[sessionID] = result
}

// GetProcessed returns a session's distillation result, if processed.
func (r *Registry) GetProcessed(sessionID string) (*distill.ProcessedResult, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result, ok := r.processed[sessionID]
	return result, ok
}

// List returns session IDs in creation order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Delete removes a session and its processed result.
func (r *Registry) Delete(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.messages[sessionID]; exists {
		for i, id := range r.order {
			if id == sessionID {
				r.order = append(r.order[:i], r.order[i+1:]...)
				break
			}
		}
	}
	delete(r.messages, sessionID)
	delete(r.processed, sessionID)
}
