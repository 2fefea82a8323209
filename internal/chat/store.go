package chat

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

// SchemaVersion is written with every snapshot so a future layout change
// can migrate instead of shape-sniffing.
const SchemaVersion = 1

// State is the whole persisted record: the session list plus the active id,
// serialized as one unit on every mutating operation.
type State struct {
	Version      int        `json:"version"`
	Chats        []*Session `json:"chats"`
	ActiveChatID string     `json:"active_chat_id"`
}

// Store persists chat state to a single JSON file.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore creates a store writing to path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load reads the persisted state. Missing or corrupt storage yields an
// empty state; startup never fails on it.
func (s *Store) Load() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	empty := State{Version: SchemaVersion}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return empty
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return empty
	}
	if st.Version != SchemaVersion {
		return empty
	}
	return st
}

// Save overwrites the stored state wholesale.
func (s *Store) Save(st State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return err
	}
	st.Version = SchemaVersion
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0644)
}
