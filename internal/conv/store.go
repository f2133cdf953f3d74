package conv

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

// prefs is the durable slice of a conversation: the replacement table and
// the language survive restarts, pending batches and dialogs do not.
type prefs struct {
	Language     string        `json:"language,omitempty"`
	Replacements []Replacement `json:"replacements,omitempty"`
}

// Store holds all conversation states keyed by chat id. States are created
// lazily on first touch and live for the process lifetime.
type Store struct {
	dataDir string
	cache   map[int64]*State
	mu      sync.RWMutex
}

// NewStore creates a Store. If dataDir is non-empty, replacement tables and
// language settings are persisted there as one JSON file per conversation.
func NewStore(dataDir string) *Store {
	return &Store{
		dataDir: dataDir,
		cache:   make(map[int64]*State),
	}
}

// GetOrCreate returns the existing state for chatID or creates a new one,
// loading persisted preferences if present.
func (m *Store) GetOrCreate(chatID int64) *State {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.cache[chatID]; ok {
		return s
	}

	s := &State{ID: chatID, Language: DefaultLanguage, LastActivity: time.Now()}
	if p := m.loadPrefs(chatID); p != nil {
		if p.Language != "" {
			s.Language = p.Language
		}
		s.Replacements = p.Replacements
	}
	m.cache[chatID] = s
	return s
}

// Lookup returns the state for chatID without creating one.
func (m *Store) Lookup(chatID int64) (*State, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.cache[chatID]
	return s, ok
}

// All returns a snapshot of every tracked state.
func (m *Store) All() []*State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*State, 0, len(m.cache))
	for _, s := range m.cache {
		out = append(out, s)
	}
	return out
}

// SavePrefs persists the conversation's replacement table and language.
// A Store without a data dir keeps everything in memory.
func (m *Store) SavePrefs(s *State) error {
	if m.dataDir == "" {
		return nil
	}
	if err := os.MkdirAll(m.dataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	p := prefs{Replacements: s.Replacements}
	if s.Language != DefaultLanguage {
		p.Language = s.Language
	}

	path := filepath.Join(m.dataDir, prefsFilename(s.ID))
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create prefs file: %w", err)
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(p); err != nil {
		return fmt.Errorf("failed to write prefs: %w", err)
	}
	return nil
}

// loadPrefs reads persisted preferences; returns nil if none exist.
func (m *Store) loadPrefs(chatID int64) *prefs {
	if m.dataDir == "" {
		return nil
	}
	data, err := os.ReadFile(filepath.Join(m.dataDir, prefsFilename(chatID)))
	if err != nil {
		return nil
	}
	var p prefs
	if err := json.Unmarshal(data, &p); err != nil {
		return nil
	}
	return &p
}

func prefsFilename(chatID int64) string {
	return strconv.FormatInt(chatID, 10) + ".json"
}
