package checkout

import (
	"errors"
	"sort"
	"sync"
)

// ErrSessionNotFound is returned when a session with the given ID is not found.
var ErrSessionNotFound = errors.New("session not found")

// ErrEmptyID is returned when trying to store a session with an empty ID.
var ErrEmptyID = errors.New("empty session ID")

// Storage keeps the open checkout sessions.
type Storage interface {
	Set(session *Session) error
	Read(id string) (*Session, error)
	Delete(id string) error
	GetAll() ([]*Session, error)
}

// LocalStorage is an in-memory Storage.
type LocalStorage struct {
	mu sync.RWMutex
	m  map[string]*Session
}

// NewLocalStorage instantiates an empty LocalStorage.
func NewLocalStorage() *LocalStorage {
	return &LocalStorage{
		m: map[string]*Session{},
	}
}

// Returns ErrEmptyID if the session has an empty ID.
func (l *LocalStorage) Set(session *Session) error {
	if session.ID() == "" {
		return ErrEmptyID
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.m[session.ID()] = session
	return nil
}

// Read returns ErrSessionNotFound if the session is not stored.
func (l *LocalStorage) Read(id string) (*Session, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	s, ok := l.m[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

func (l *LocalStorage) Delete(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.m[id]; !ok {
		return ErrSessionNotFound
	}
	delete(l.m, id)
	return nil
}

// GetAll returns the sessions oldest first.
func (l *LocalStorage) GetAll() ([]*Session, error) {
	l.mu.RLock()
	sessions := make([]*Session, 0, len(l.m))
	for _, s := range l.m {
		sessions = append(sessions, s)
	}
	l.mu.RUnlock()

	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].openedAt.Equal(sessions[j].openedAt) {
			return sessions[i].id < sessions[j].id
		}
		return sessions[i].openedAt.Before(sessions[j].openedAt)
	})
	return sessions, nil
}
