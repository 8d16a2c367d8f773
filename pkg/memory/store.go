package memory

import (
	"log"
	"strings"
	"sync"
	"time"
)

// Message is one turn of a conversation.
type Message struct {
	Role      string    `json:"role"` // "user" or "assistant"
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// session holds a bounded message window for one identity.
type session struct {
	messages   []Message
	createdAt  time.Time
	lastActive time.Time
	total      int
}

// SessionStats summarizes one conversation for exports.
type SessionStats struct {
	MessageCount     int       `json:"message_count"`
	MessagesInMemory int       `json:"messages_in_memory"`
	CreatedAt        time.Time `json:"created_at"`
	LastActive       time.Time `json:"last_active"`
}

// Stats summarizes all conversations.
type Stats struct {
	TotalSessions  int `json:"total_sessions"`
	ActiveSessions int `json:"active_sessions"`
	TotalMessages  int `json:"total_messages"`
}

// Store keeps bounded, expiring per-identity conversation history.
// Sessions expire lazily on read; StartSweeper adds an optional periodic
// sweep to reclaim memory.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*session

	maxHistory int
	ttl        time.Duration
	maxChars   int

	done      chan struct{}
	sweeperWG sync.WaitGroup

	now func() time.Time
}

// New creates a Store. maxHistory bounds the message window per session,
// ttl bounds idle time, maxChars bounds assembled context length.
func New(maxHistory int, ttl time.Duration, maxChars int) *Store {
	if maxHistory <= 0 {
		maxHistory = 10
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	if maxChars <= 0 {
		maxChars = 8000
	}
	return &Store{
		sessions:   make(map[string]*session),
		maxHistory: maxHistory,
		ttl:        ttl,
		maxChars:   maxChars,
		done:       make(chan struct{}),
		now:        time.Now,
	}
}

// Append adds a message to the identity's session, creating it if absent
// and evicting the oldest message past the window bound.
func (s *Store) Append(identity, role, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	sess, ok := s.sessions[identity]
	if !ok {
		sess = &session{createdAt: now}
		s.sessions[identity] = sess
	}

	sess.messages = append(sess.messages, Message{Role: role, Text: text, CreatedAt: now})
	if len(sess.messages) > s.maxHistory {
		sess.messages = sess.messages[len(sess.messages)-s.maxHistory:]
	}
	sess.lastActive = now
	sess.total++
}

// Context assembles the session's messages as role-labeled lines, oldest
// to newest, truncated from the front to fit the character budget. An
// expired session is deleted and yields an empty context.
func (s *Store) Context(identity string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[identity]
	if !ok {
		return ""
	}
	if s.now().Sub(sess.lastActive) > s.ttl {
		delete(s.sessions, identity)
		log.Printf("memory: session for identity %s expired", identity)
		return ""
	}

	lines := make([]string, 0, len(sess.messages))
	for _, m := range sess.messages {
		label := "User"
		if m.Role == "assistant" {
			label = "Assistant"
		}
		lines = append(lines, label+": "+m.Text)
	}

	// Drop oldest lines until the assembled context fits; the most recent
	// message is preserved preferentially.
	for len(lines) > 1 && contextLen(lines) > s.maxChars {
		lines = lines[1:]
	}
	ctx := strings.Join(lines, "\n")
	if len(ctx) > s.maxChars {
		ctx = ctx[len(ctx)-s.maxChars:]
	}
	return ctx
}

// Messages returns a copy of the identity's live message window.
func (s *Store) Messages(identity string) []Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[identity]
	if !ok || s.now().Sub(sess.lastActive) > s.ttl {
		return nil
	}
	out := make([]Message, len(sess.messages))
	copy(out, sess.messages)
	return out
}

// Clear deletes the identity's session and reports whether one existed.
func (s *Store) Clear(identity string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[identity]
	delete(s.sessions, identity)
	return ok
}

// SessionStats returns statistics for one identity's conversation, or
// false if no live session exists.
func (s *Store) SessionStats(identity string) (SessionStats, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[identity]
	if !ok || s.now().Sub(sess.lastActive) > s.ttl {
		return SessionStats{}, false
	}
	return SessionStats{
		MessageCount:     sess.total,
		MessagesInMemory: len(sess.messages),
		CreatedAt:        sess.createdAt,
		LastActive:       sess.lastActive,
	}, true
}

// Stats returns global conversation statistics.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	st := Stats{TotalSessions: len(s.sessions)}
	for _, sess := range s.sessions {
		if now.Sub(sess.lastActive) <= s.ttl {
			st.ActiveSessions++
		}
		st.TotalMessages += sess.total
	}
	return st
}

// Sweep removes expired sessions and returns how many were reclaimed.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for identity, sess := range s.sessions {
		if now.Sub(sess.lastActive) > s.ttl {
			delete(s.sessions, identity)
			removed++
		}
	}
	if removed > 0 {
		log.Printf("memory: swept %d expired session(s)", removed)
	}
	return removed
}

// StartSweeper runs Sweep on the given interval until Close is called.
func (s *Store) StartSweeper(interval time.Duration) {
	if interval <= 0 {
		return
	}
	s.sweeperWG.Add(1)
	go func() {
		defer s.sweeperWG.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.done:
				return
			case <-ticker.C:
				s.Sweep()
			}
		}
	}()
}

// Close stops the sweeper goroutine, if any.
func (s *Store) Close() {
	close(s.done)
	s.sweeperWG.Wait()
}

func contextLen(lines []string) int {
	n := 0
	for i, l := range lines {
		if i > 0 {
			n++ // joining newline
		}
		n += len(l)
	}
	return n
}
