package debate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"agentic_signals/pkg/core/analysis"
	"agentic_signals/pkg/core/llm"
	"agentic_signals/pkg/models"
)

// Manager owns all live debate sessions. Sessions run in background
// goroutines; a cleanup ticker drops concluded sessions after retention.
type Manager struct {
	engine *analysis.Engine
	client *llm.Client
	repo   *Repo
	config Config

	mu       sync.RWMutex
	sessions map[string]*Coordinator

	retention time.Duration
	stop      chan struct{}
	stopOnce  sync.Once
}

// NewManager wires a debate manager. repo may be nil to run without
// persistence.
func NewManager(engine *analysis.Engine, client *llm.Client, repo *Repo, config Config) *Manager {
	m := &Manager{
		engine:    engine,
		client:    client,
		repo:      repo,
		config:    config,
		sessions:  make(map[string]*Coordinator),
		retention: 24 * time.Hour,
		stop:      make(chan struct{}),
	}
	go m.cleanup()
	return m
}

// Start launches a debate over one request per persona and returns the
// session id immediately; the session runs in the background.
func (m *Manager) Start(ticker string, reqs []models.AnalysisRequest) (string, error) {
	if len(reqs) < 2 {
		return "", fmt.Errorf("debate needs at least 2 personas, got %d", len(reqs))
	}

	id := uuid.New().String()
	coordinator := NewCoordinator(id, ticker, reqs, m.engine, m.client, m.repo, m.config)

	m.mu.Lock()
	m.sessions[id] = coordinator
	m.mu.Unlock()

	if m.repo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := m.repo.CreateSession(ctx, id, ticker); err != nil {
			fmt.Printf("[WARNING] Failed to persist debate session: %v\n", err)
		}
	}

	go func() {
		// Background job; detached from the request context on purpose.
		if _, err := coordinator.Run(context.Background()); err != nil {
			fmt.Printf("[WARNING] Debate %s failed: %v\n", id, err)
		}
	}()

	return id, nil
}

// Get resolves a live session.
func (m *Manager) Get(id string) (*Coordinator, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.sessions[id]
	return c, ok
}

// Active returns the ids of sessions that have not concluded.
func (m *Manager) Active() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var active []string
	for id, c := range m.sessions {
		if state := c.State(); state != StateConcluded && state != StateFailed {
			active = append(active, id)
		}
	}
	return active
}

// Transcript returns the message history for a session: from memory while the
// session is live, from the repo for sessions that already aged out.
func (m *Manager) Transcript(ctx context.Context, id string) ([]Message, error) {
	if c, ok := m.Get(id); ok {
		return c.History(), nil
	}
	if m.repo == nil {
		return nil, fmt.Errorf("debate session %s not found", id)
	}
	return m.repo.GetTranscript(ctx, id)
}

// Close stops the cleanup goroutine.
func (m *Manager) Close() {
	m.stopOnce.Do(func() { close(m.stop) })
}

// cleanup drops settled sessions older than the retention window.
func (m *Manager) cleanup() {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.mu.Lock()
			for id, c := range m.sessions {
				state := c.State()
				settled := state == StateConcluded || state == StateFailed
				if settled && time.Since(c.UpdatedAt()) > m.retention {
					delete(m.sessions, id)
				}
			}
			m.mu.Unlock()
		case <-m.stop:
			return
		}
	}
}
