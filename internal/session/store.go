// Package session holds the client-resident chat session state: the active
// character, the ordered message log and the single outstanding assistant
// placeholder. All transitions are synchronous and guarded by one mutex, so
// a second send can never slip in while a reply is in flight.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"character-companion/backend/internal/models"
)

var (
	// ErrBusy signals a send issued while a reply is already outstanding.
	// The log is left unchanged.
	ErrBusy = errors.New("a reply is already outstanding")
	// ErrNoCharacter signals an operation that needs an active character.
	ErrNoCharacter = errors.New("no character selected")
	// ErrStaleReply signals a reply for a session that has been replaced.
	ErrStaleReply = errors.New("reply arrived for a superseded session")
	// ErrNotAwaiting signals a reply when no placeholder is outstanding.
	ErrNotAwaiting = errors.New("no reply is outstanding")
)

// State enumerates the session lifecycle.
type State int

const (
	StateIdle State = iota
	StateActive
	StateAwaitingReply
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateAwaitingReply:
		return "awaiting_reply"
	default:
		return "idle"
	}
}

// Token identifies one dispatch epoch. Every operation that replaces the
// session bumps the epoch, so a late reply carrying an old token is dropped
// instead of being applied to a newer session's log.
type Token uint64

// HistoryLoader rehydrates a prior conversation from the persistence
// boundary when a chat is resumed.
type HistoryLoader interface {
	LoadMessages(ctx context.Context, chatID uint) ([]models.Message, error)
}

// Snapshot is an immutable view of the session handed to observers.
type Snapshot struct {
	State     State
	Character *models.Character
	ChatID    uint
	Messages  []models.Message
}

// Store owns one session at a time. It is created per browsing session and
// torn down with it; callers mutate it only through the methods below and
// observe it through Subscribe.
type Store struct {
	mu        sync.Mutex
	state     State
	character *models.Character
	chatID    uint
	log       Log
	epoch     Token

	nextObserver int
	observers    map[int]func(Snapshot)
}

// NewStore creates an empty store in the idle state.
func NewStore() *Store {
	return &Store{observers: make(map[int]func(Snapshot))}
}

// Subscribe registers an observer called after every mutation. The returned
// function removes it.
func (s *Store) Subscribe(fn func(Snapshot)) func() {
	s.mu.Lock()
	id := s.nextObserver
	s.nextObserver++
	s.observers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

// SelectCharacter replaces the whole session with a fresh one for the given
// character. Prior messages are discarded, never merged, even when the same
// character is reselected. Any in-flight dispatch is invalidated.
func (s *Store) SelectCharacter(character models.Character) {
	s.mu.Lock()
	c := character
	s.character = &c
	s.chatID = 0
	s.log.Clear()
	s.state = StateActive
	s.epoch++
	snap := s.snapshotLocked()
	obs := s.observersLocked()
	s.mu.Unlock()

	notify(obs, snap)
}

// ResumeChat rehydrates a prior conversation for the given character. The
// loaded history replaces the log wholesale.
func (s *Store) ResumeChat(ctx context.Context, character models.Character, chatID uint, loader HistoryLoader) error {
	history, err := loader.LoadMessages(ctx, chatID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	c := character
	s.character = &c
	s.chatID = chatID
	s.log.Replace(history)
	s.state = StateActive
	s.epoch++
	snap := s.snapshotLocked()
	obs := s.observersLocked()
	s.mu.Unlock()

	notify(obs, snap)
	return nil
}

// Reset tears the session down to idle. Any in-flight dispatch is invalidated.
func (s *Store) Reset() {
	s.mu.Lock()
	s.character = nil
	s.chatID = 0
	s.log.Clear()
	s.state = StateIdle
	s.epoch++
	snap := s.snapshotLocked()
	obs := s.observersLocked()
	s.mu.Unlock()

	notify(obs, snap)
}

// SendMessage optimistically appends the user message and the assistant
// placeholder, then moves to the awaiting-reply state. While a reply is
// outstanding further sends are rejected with ErrBusy and the log is left
// untouched. The returned token must accompany the eventual reply.
func (s *Store) SendMessage(text string) (Token, error) {
	s.mu.Lock()

	switch s.state {
	case StateIdle:
		s.mu.Unlock()
		return 0, ErrNoCharacter
	case StateAwaitingReply:
		s.mu.Unlock()
		return 0, ErrBusy
	}

	now := time.Now()
	// A placeholder retained by a failed round trip is superseded by this
	// send; the log never holds two pending entries.
	s.log.DropTrailingPlaceholder()
	s.log.Append(models.Message{
		ExternalID: uuid.NewString(),
		ChatID:     s.chatID,
		Author:     models.AuthorUser,
		Content:    text,
		CreatedAt:  now,
	})
	s.log.Append(models.Message{
		ExternalID: uuid.NewString(),
		ChatID:     s.chatID,
		Author:     models.AuthorAssistant,
		Content:    "", // pending sentinel
		CreatedAt:  now,
	})
	s.state = StateAwaitingReply
	token := s.epoch
	snap := s.snapshotLocked()
	obs := s.observersLocked()
	s.mu.Unlock()

	notify(obs, snap)
	return token, nil
}

// ReceiveReply resolves the outstanding placeholder with the confirmed
// assistant message. A fresh start also learns its persisted chat id here.
// Replies carrying a stale token are dropped.
func (s *Store) ReceiveReply(token Token, chatID uint, confirmed models.Message) error {
	s.mu.Lock()

	if token != s.epoch {
		s.mu.Unlock()
		return ErrStaleReply
	}
	if s.state != StateAwaitingReply {
		s.mu.Unlock()
		return ErrNotAwaiting
	}

	if chatID != 0 {
		s.chatID = chatID
	}
	s.log.FillTrailingPlaceholder(confirmed)
	s.state = StateActive
	snap := s.snapshotLocked()
	obs := s.observersLocked()
	s.mu.Unlock()

	notify(obs, snap)
	return nil
}

// ReceiveError reverts to the active state after a failed or timed-out round
// trip. The optimistic user message and the placeholder are retained so the
// caller can surface a retry; the session is never torn down by a reply
// failure.
func (s *Store) ReceiveError(token Token) error {
	s.mu.Lock()

	if token != s.epoch {
		s.mu.Unlock()
		return ErrStaleReply
	}
	if s.state != StateAwaitingReply {
		s.mu.Unlock()
		return ErrNotAwaiting
	}

	s.state = StateActive
	snap := s.snapshotLocked()
	obs := s.observersLocked()
	s.mu.Unlock()

	notify(obs, snap)
	return nil
}

// State returns the current lifecycle state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Character returns the active character, or nil when idle.
func (s *Store) Character() *models.Character {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.character == nil {
		return nil
	}
	c := *s.character
	return &c
}

// ChatID returns the persisted chat id, zero until the first exchange.
func (s *Store) ChatID() uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chatID
}

// Messages returns a copy of the log in conversation order.
func (s *Store) Messages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.log.Messages()
}

// PendingCount returns the number of outstanding placeholders (0 or 1).
func (s *Store) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.log.PendingCount()
}

func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{
		State:    s.state,
		ChatID:   s.chatID,
		Messages: s.log.Messages(),
	}
	if s.character != nil {
		c := *s.character
		snap.Character = &c
	}
	return snap
}

func (s *Store) observersLocked() []func(Snapshot) {
	obs := make([]func(Snapshot), 0, len(s.observers))
	for _, fn := range s.observers {
		obs = append(obs, fn)
	}
	return obs
}

// notify runs outside the lock so observers may call back into the store.
func notify(observers []func(Snapshot), snap Snapshot) {
	for _, fn := range observers {
		fn(snap)
	}
}
