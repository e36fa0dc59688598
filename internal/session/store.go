// Package session keeps per-session conversation memory in process.
// Sessions are created lazily on first use, serialized individually, and
// evicted when idle so memory stays bounded in a long-running service.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	defaultIdleTTL     = 30 * time.Minute
	defaultMaxSessions = 10000
)

// Turn is one completed question/answer exchange. Turns are appended
// whole; a question is never stored without its answer.
type Turn struct {
	Question string
	Answer   string
	At       time.Time
}

// Session holds one conversation's ordered turns. The embedded mutex
// serializes a whole chat round, so duplicate submits on the same session
// append in request order while distinct sessions never block each other.
type Session struct {
	sync.Mutex
	id    string
	turns []Turn
}

// Turns returns a copy of the history. Caller must hold the session lock.
func (s *Session) Turns() []Turn {
	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Append records a completed turn. Caller must hold the session lock.
func (s *Session) Append(question, answer string) {
	s.turns = append(s.turns, Turn{Question: question, Answer: answer, At: time.Now()})
}

func (s *Session) ID() string { return s.id }

// NewSessionID generates an opaque session identifier for clients that do
// not supply one.
func NewSessionID() string {
	return uuid.NewString()
}

type entry struct {
	session  *Session
	lastUsed time.Time
}

// Store maps session ids to live sessions.
type Store struct {
	mu          sync.Mutex
	sessions    map[string]*entry
	idleTTL     time.Duration
	maxSessions int

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewStore(idleTTL time.Duration, maxSessions int) *Store {
	if idleTTL <= 0 {
		idleTTL = defaultIdleTTL
	}
	if maxSessions <= 0 {
		maxSessions = defaultMaxSessions
	}
	return &Store{
		sessions:    make(map[string]*entry),
		idleTTL:     idleTTL,
		maxSessions: maxSessions,
		stop:        make(chan struct{}),
	}
}

// Acquire returns the session for id, creating it if unseen, and marks it
// recently used. The caller locks the returned session for the duration
// of its work on it.
func (st *Store) Acquire(id string) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()

	e, ok := st.sessions[id]
	if !ok {
		if len(st.sessions) >= st.maxSessions {
			st.evictOldestLocked()
		}
		e = &entry{session: &Session{id: id}}
		st.sessions[id] = e
	}
	e.lastUsed = time.Now()
	return e.session
}

// Len reports the number of live sessions.
func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

// StartSweeper evicts idle sessions on the given interval until Close.
func (st *Store) StartSweeper(interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	st.wg.Add(1)
	go func() {
		defer st.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-st.stop:
				return
			case <-ticker.C:
				st.evictIdle()
			}
		}
	}()
}

func (st *Store) Close() {
	st.stopOnce.Do(func() { close(st.stop) })
	st.wg.Wait()
}

func (st *Store) evictIdle() {
	cutoff := time.Now().Add(-st.idleTTL)
	st.mu.Lock()
	defer st.mu.Unlock()
	for id, e := range st.sessions {
		if e.lastUsed.After(cutoff) {
			continue
		}
		// Skip sessions with a chat round in flight.
		if !e.session.TryLock() {
			continue
		}
		e.session.Unlock()
		delete(st.sessions, id)
	}
}

// evictOldestLocked drops the least recently used session to stay under
// the cap. Sessions with a chat round in flight are never evicted, so the
// cap can be exceeded while every session is busy. Caller holds st.mu.
func (st *Store) evictOldestLocked() {
	var oldestID string
	var oldest time.Time
	for id, e := range st.sessions {
		if oldestID != "" && !e.lastUsed.Before(oldest) {
			continue
		}
		if !e.session.TryLock() {
			continue
		}
		e.session.Unlock()
		oldestID = id
		oldest = e.lastUsed
	}
	if oldestID != "" {
		delete(st.sessions, oldestID)
	}
}
