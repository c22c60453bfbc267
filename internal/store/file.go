package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// FileStore keeps the full state in memory and writes it to a single JSON
// file on every mutation. Saves go through a temp file and rename so a
// crash mid-write never leaves a truncated state file behind.
type FileStore struct {
	mu    sync.RWMutex
	path  string
	users map[string]*userRecord
}

type userRecord struct {
	History []Message `json:"history"`
	Events  []Event   `json:"events"`
	Retired []Event   `json:"retired,omitempty"`
}

// NewFileStore loads existing state from path, or starts empty when the
// file does not exist yet.
func NewFileStore(path string) (*FileStore, error) {
	s := &FileStore{path: path, users: make(map[string]*userRecord)}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("read state file: %w", err)
	}
	if len(data) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(data, &s.users); err != nil {
		return nil, fmt.Errorf("decode state file %s: %w", path, err)
	}
	return s, nil
}

func (s *FileStore) AppendMessage(_ context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	s.user(msg.User).History = append(s.user(msg.User).History, msg)
	return s.saveLocked()
}

func (s *FileStore) History(_ context.Context, user string, limit int) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.users[user]
	if !ok || len(rec.History) == 0 {
		return nil, nil
	}
	arr := rec.History
	if limit <= 0 || limit > len(arr) {
		limit = len(arr)
	}
	out := make([]Message, limit)
	copy(out, arr[len(arr)-limit:])
	return out, nil
}

func (s *FileStore) AddEvent(_ context.Context, ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	s.user(ev.User).Events = append(s.user(ev.User).Events, ev)
	return s.saveLocked()
}

func (s *FileStore) ActiveEvents(_ context.Context) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Event
	for _, rec := range s.users {
		out = append(out, rec.Events...)
	}
	return out, nil
}

func (s *FileStore) UserEvents(_ context.Context, user string) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.users[user]
	if !ok {
		return nil, nil
	}
	out := make([]Event, len(rec.Events))
	copy(out, rec.Events)
	return out, nil
}

func (s *FileStore) UpdateEvents(_ context.Context, evs []Event) error {
	if len(evs) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ev := range evs {
		rec, ok := s.users[ev.User]
		if !ok {
			return fmt.Errorf("%w: %s", ErrEventNotFound, ev.ID)
		}
		idx := -1
		for i := range rec.Events {
			if rec.Events[i].ID == ev.ID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return fmt.Errorf("%w: %s", ErrEventNotFound, ev.ID)
		}
		// Flags are monotonic: never clear one that is already set.
		ev.SentBefore = ev.SentBefore || rec.Events[idx].SentBefore
		ev.SentAfter = ev.SentAfter || rec.Events[idx].SentAfter
		if ev.Retired() {
			if ev.RetiredAt == nil {
				now := time.Now().UTC()
				ev.RetiredAt = &now
			}
			rec.Events = append(rec.Events[:idx], rec.Events[idx+1:]...)
			rec.Retired = append(rec.Retired, ev)
			continue
		}
		rec.Events[idx] = ev
	}
	return s.saveLocked()
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) user(user string) *userRecord {
	rec, ok := s.users[user]
	if !ok {
		rec = &userRecord{}
		s.users[user] = rec
	}
	return rec
}

func (s *FileStore) saveLocked() error {
	data, err := json.MarshalIndent(s.users, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".wibo-state-*")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp state file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}
