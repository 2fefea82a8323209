package chat

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/john-mcenroe/landos/internal/api"
	"github.com/john-mcenroe/landos/internal/clock"
)

// ErrEmptyMessage rejects empty or whitespace-only input.
var ErrEmptyMessage = errors.New("message is empty")

// ErrBusy rejects a send while the previous request is still in flight.
var ErrBusy = errors.New("assistant request already in flight")

// progressStages are the cosmetic labels shown while awaiting a response.
// Purely presentational; cancelled on completion.
var progressStages = []struct {
	After time.Duration
	Label string
}{
	{0, "Reading your question…"},
	{900 * time.Millisecond, "Searching land records…"},
	{2200 * time.Millisecond, "Scoring matches…"},
	{4 * time.Second, "Drafting summary…"},
}

type assistant interface {
	Chat(ctx context.Context, messages []api.ChatMessage) (*api.ChatResponse, error)
}

// UI is the interaction surface the manager drives. Implementations render
// to a browser panel, a terminal, or a test fake.
type UI interface {
	// ResetToStarter clears the surface to its empty/"starter" state.
	ResetToStarter()
	ShowUserMessage(text string)
	// ShowProgress displays one cosmetic progress label.
	ShowProgress(label string)
	ShowExplore(resp *api.ChatResponse)
	ShowClarify(resp *api.ChatResponse)
	// ShowRaw renders unparseable or unrecognized assistant output verbatim.
	ShowRaw(text string)
	ShowError(text string)
	// RestoreResults re-applies a session's last ranked result set on switch.
	RestoreResults(results []api.RankedResult)
}

// SessionSummary is what session pickers render.
type SessionSummary struct {
	ID           string
	Title        string
	UpdatedAt    time.Time
	MessageCount int
	Active       bool
}

// Manager owns the session list and the active session's conversation
// buffer. Per session the state machine is idle → awaiting_response → idle;
// a send during awaiting_response is disallowed (ErrBusy).
type Manager struct {
	mu       sync.Mutex
	store    *Store
	api      assistant
	ui       UI
	clk      clock.Clock
	log      *zap.Logger
	sessions []*Session
	activeID string
	buffer   []Message
	awaiting bool
	progress []clock.Timer
}

// NewManager loads persisted state and ensures an active session exists.
func NewManager(store *Store, a assistant, ui UI, clk clock.Clock, log *zap.Logger) *Manager {
	if clk == nil {
		clk = clock.System{}
	}
	m := &Manager{store: store, api: a, ui: ui, clk: clk, log: log}

	st := store.Load()
	m.sessions = st.Chats
	m.activeID = st.ActiveChatID

	if m.sessionByID(m.activeID) == nil {
		if latest := m.latestSession(); latest != nil {
			m.activeID = latest.ID
		}
	}
	if len(m.sessions) == 0 {
		m.newSessionLocked()
		m.persistLocked()
	}
	if s := m.sessionByID(m.activeID); s != nil {
		m.buffer = append([]Message(nil), s.Messages...)
	}
	return m
}

// ActiveID returns the active session id.
func (m *Manager) ActiveID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeID
}

// Awaiting reports whether a request is in flight.
func (m *Manager) Awaiting() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.awaiting
}

// ActiveMessages returns a copy of the active conversation buffer.
func (m *Manager) ActiveMessages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.buffer...)
}

// Sessions lists all sessions, most recently updated first.
func (m *Manager) Sessions() []SessionSummary {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]SessionSummary, 0, len(m.sessions))
	for _, s := range m.sessions {
		title := s.Title
		if title == "" {
			title = "New conversation"
		}
		out = append(out, SessionSummary{
			ID:           s.ID,
			Title:        title,
			UpdatedAt:    s.UpdatedAt,
			MessageCount: len(s.Messages),
			Active:       s.ID == m.activeID,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out
}

// NewSession flush-syncs the current buffer, creates a fresh session at the
// head of the list, makes it active and resets the surface.
func (m *Manager) NewSession() string {
	m.mu.Lock()
	m.syncActiveLocked()
	id := m.newSessionLocked()
	m.persistLocked()
	m.mu.Unlock()

	m.ui.ResetToStarter()
	return id
}

// newSessionLocked prepends an empty session and activates it.
func (m *Manager) newSessionLocked() string {
	now := m.clk.Now()
	s := &Session{ID: uuid.NewString(), CreatedAt: now, UpdatedAt: now}
	m.sessions = append([]*Session{s}, m.sessions...)
	m.activeID = s.ID
	m.buffer = nil
	return s.ID
}

// SwitchSession flush-syncs the current buffer, activates the target and
// replays its stored history into the surface.
func (m *Manager) SwitchSession(id string) error {
	m.mu.Lock()
	target := m.sessionByID(id)
	if target == nil {
		m.mu.Unlock()
		return errors.New("no such session: " + id)
	}
	m.syncActiveLocked()
	m.activeID = id
	m.buffer = append([]Message(nil), target.Messages...)
	messages := append([]Message(nil), target.Messages...)
	results := target.LastResults
	m.persistLocked()
	m.mu.Unlock()

	m.replay(messages, results)
	return nil
}

// replay re-renders a stored message list. Structured assistant payloads
// are parsed and summarized; anything unparseable falls back to raw text.
func (m *Manager) replay(messages []Message, results []api.RankedResult) {
	m.ui.ResetToStarter()
	for _, msg := range messages {
		if msg.Role == api.RoleUser {
			m.ui.ShowUserMessage(msg.Content)
			continue
		}
		var resp api.ChatResponse
		if err := json.Unmarshal([]byte(msg.Content), &resp); err != nil || resp.Type == "" {
			m.ui.ShowRaw(msg.Content)
			continue
		}
		switch resp.Type {
		case api.ChatTypeExplore:
			m.ui.ShowExplore(&resp)
		case api.ChatTypeClarify:
			m.ui.ShowClarify(&resp)
		default:
			m.ui.ShowRaw(msg.Content)
		}
	}
	if len(results) > 0 {
		m.ui.RestoreResults(results)
	}
}

// DeleteSession removes a session. Deleting the active one activates the
// most recently updated survivor, or creates a fresh session if none remain.
func (m *Manager) DeleteSession(id string) error {
	m.mu.Lock()
	idx := -1
	for i, s := range m.sessions {
		if s.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		m.mu.Unlock()
		return errors.New("no such session: " + id)
	}

	wasActive := id == m.activeID
	m.sessions = append(m.sessions[:idx], m.sessions[idx+1:]...)

	if !wasActive {
		m.persistLocked()
		m.mu.Unlock()
		return nil
	}

	if latest := m.latestSession(); latest != nil {
		m.activeID = latest.ID
		m.buffer = append([]Message(nil), latest.Messages...)
		messages := append([]Message(nil), latest.Messages...)
		results := latest.LastResults
		m.persistLocked()
		m.mu.Unlock()
		m.replay(messages, results)
		return nil
	}

	m.newSessionLocked()
	m.persistLocked()
	m.mu.Unlock()
	m.ui.ResetToStarter()
	return nil
}

// Send appends a user turn, persists it immediately (a crash mid-request
// must not lose the prompt), then issues one request carrying the full
// conversation history. The response, or a visible error turn, arrives
// asynchronously on completion.
func (m *Manager) Send(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}

	m.mu.Lock()
	if m.awaiting {
		m.mu.Unlock()
		return ErrBusy
	}
	m.awaiting = true

	m.buffer = append(m.buffer, Message{Role: api.RoleUser, Content: text})
	if s := m.sessionByID(m.activeID); s != nil && s.Title == "" {
		s.Title = DeriveTitle(text)
	}
	m.touchActiveLocked()
	m.persistLocked()

	history := make([]api.ChatMessage, 0, len(m.buffer))
	for _, msg := range m.buffer {
		history = append(history, api.ChatMessage{Role: msg.Role, Content: msg.Content})
	}

	for _, stage := range progressStages {
		label := stage.Label
		m.progress = append(m.progress, m.clk.AfterFunc(stage.After, func() {
			m.ui.ShowProgress(label)
		}))
	}
	sessionID := m.activeID
	m.mu.Unlock()

	m.ui.ShowUserMessage(text)
	go m.completeSend(sessionID, history)
	return nil
}

// completeSend applies the response to the session that issued the request,
// which may no longer be the active one. A switched-away session gets the
// assistant turn in its stored record only; replay renders it on the next
// switch. A deleted session's response is dropped.
func (m *Manager) completeSend(sessionID string, history []api.ChatMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	resp, err := m.api.Chat(ctx, history)

	m.mu.Lock()
	m.awaiting = false
	for _, t := range m.progress {
		t.Stop()
	}
	m.progress = nil

	if err != nil {
		active := m.activeID == sessionID
		m.mu.Unlock()
		// The user turn stays persisted; the error turn is surface-only.
		m.log.Warn("assistant request failed", zap.String("module", "chat"), zap.Error(err))
		if active {
			m.ui.ShowError("The assistant could not be reached. Please try again.")
		}
		return
	}

	raw, marshalErr := json.Marshal(resp)
	if marshalErr != nil {
		raw = []byte(resp.Message)
	}

	s := m.sessionByID(sessionID)
	if s == nil {
		m.mu.Unlock()
		return
	}
	if m.activeID == sessionID {
		m.syncActiveLocked()
	}
	s.Messages = append(s.Messages, Message{Role: api.RoleAssistant, Content: string(raw)})
	if resp.Type == api.ChatTypeExplore {
		s.LastResults = resp.Results
	}
	s.UpdatedAt = m.clk.Now()
	active := m.activeID == sessionID
	if active {
		m.buffer = append([]Message(nil), s.Messages...)
	}
	m.persistLocked()
	m.mu.Unlock()

	if !active {
		return
	}

	switch resp.Type {
	case api.ChatTypeExplore:
		m.ui.ShowExplore(resp)
	case api.ChatTypeClarify:
		m.ui.ShowClarify(resp)
	default:
		if resp.Message != "" {
			m.ui.ShowRaw(resp.Message)
		} else {
			m.ui.ShowRaw(string(raw))
		}
	}
}

// syncActiveLocked flushes the conversation buffer into the active session
// record. Every switch/create path calls this first, so no unsynced buffer
// content can be lost.
func (m *Manager) syncActiveLocked() {
	s := m.sessionByID(m.activeID)
	if s == nil {
		return
	}
	s.Messages = append([]Message(nil), m.buffer...)
}

func (m *Manager) touchActiveLocked() {
	m.syncActiveLocked()
	if s := m.sessionByID(m.activeID); s != nil {
		s.UpdatedAt = m.clk.Now()
	}
}

func (m *Manager) persistLocked() {
	if err := m.store.Save(State{Chats: m.sessions, ActiveChatID: m.activeID}); err != nil {
		m.log.Error("persisting chat state failed", zap.String("module", "chat"), zap.Error(err))
	}
}

func (m *Manager) sessionByID(id string) *Session {
	for _, s := range m.sessions {
		if s.ID == id {
			return s
		}
	}
	return nil
}

func (m *Manager) latestSession() *Session {
	var latest *Session
	for _, s := range m.sessions {
		if latest == nil || s.UpdatedAt.After(latest.UpdatedAt) {
			latest = s
		}
	}
	return latest
}
