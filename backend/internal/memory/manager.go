package memory

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"helix-navigator/backend/internal/constants"
	"helix-navigator/backend/pkg/logger"
)

// Turn is an immutable snapshot of one completed question/answer exchange
type Turn struct {
	SessionID    string    `json:"session_id"`
	Index        int       `json:"index"`
	Question     string    `json:"question"`
	QuestionType string    `json:"question_type"`
	Entities     []string  `json:"entities,omitempty"`
	Answer       string    `json:"answer"`
	Failed       bool      `json:"failed"`
	CreatedAt    time.Time `json:"created_at"`
}

// session holds the ordered turn history for one conversation. Turns beyond
// the window are evicted oldest-first.
type session struct {
	mu    sync.Mutex
	turns []Turn
	next  int // next turn index; survives eviction
}

// Manager stores bounded per-session conversational history for the process
// lifetime. Different sessions proceed independently; record and read calls
// within one session are serialized.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*session
	window   int
	logger   *zap.Logger
}

// NewManager creates a manager that keeps at most window turns per session
func NewManager(window int) *Manager {
	if window < 1 {
		window = constants.DefaultMemoryWindow
	}
	return &Manager{
		sessions: make(map[string]*session),
		window:   window,
		logger:   logger.Get(),
	}
}

// Record appends a turn to the session, creating the session on first use.
// The turn's Index and CreatedAt are assigned here; the oldest turn is
// evicted once the window is exceeded. Returns the recorded turn.
func (m *Manager) Record(sessionID string, turn Turn) Turn {
	sess := m.session(sessionID, true)

	sess.mu.Lock()
	defer sess.mu.Unlock()

	turn.SessionID = sessionID
	turn.Index = sess.next
	turn.CreatedAt = time.Now()
	sess.next++

	sess.turns = append(sess.turns, turn)
	if len(sess.turns) > m.window {
		sess.turns = sess.turns[len(sess.turns)-m.window:]
	}

	m.logger.Debug("Turn recorded",
		zap.String("session_id", sessionID),
		zap.Int("turn_index", turn.Index),
		zap.Bool("failed", turn.Failed),
	)
	return turn
}

// FormatContext renders the last maxTurns turns as a deterministic text
// block, oldest first, for injection into stage prompts. Unknown or empty
// sessions yield an empty string.
func (m *Manager) FormatContext(sessionID string, maxTurns int) string {
	sess := m.session(sessionID, false)
	if sess == nil {
		return ""
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if len(sess.turns) == 0 {
		return ""
	}
	if maxTurns < 1 || maxTurns > len(sess.turns) {
		maxTurns = len(sess.turns)
	}
	recent := sess.turns[len(sess.turns)-maxTurns:]

	var b strings.Builder
	b.WriteString("Previous conversation:\n")
	for _, turn := range recent {
		fmt.Fprintf(&b, "Q: %s\nA: %s\n", turn.Question, turn.Answer)
	}
	return b.String()
}

// History returns a copy of the session's retained turns, oldest first
func (m *Manager) History(sessionID string) []Turn {
	sess := m.session(sessionID, false)
	if sess == nil {
		return nil
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	turns := make([]Turn, len(sess.turns))
	copy(turns, sess.turns)
	return turns
}

// ClearSession drops all history for one session
func (m *Manager) ClearSession(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
}

// Clear drops all sessions
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = make(map[string]*session)
}

// Window returns the configured per-session turn limit
func (m *Manager) Window() int {
	return m.window
}

func (m *Manager) session(sessionID string, create bool) *session {
	m.mu.RLock()
	sess, ok := m.sessions[sessionID]
	m.mu.RUnlock()
	if ok || !create {
		return sess
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if sess, ok := m.sessions[sessionID]; ok {
		return sess
	}
	sess = &session{}
	m.sessions[sessionID] = sess
	return sess
}
