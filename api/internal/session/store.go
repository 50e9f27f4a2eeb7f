package session

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"screen-bot/api/internal/capture"
)

var (
	// ErrBadSlot is returned for slot numbers outside 1..SlotCount.
	ErrBadSlot = errors.New("slot out of range")
	// ErrBusy is returned when a batch run already owns the session.
	ErrBusy = errors.New("batch in progress")
)

// ReleaseFunc deletes an artifact. capture.Artifact.Release by default.
type ReleaseFunc func(capture.Artifact) error

type Options struct {
	Now     func() time.Time
	Release ReleaseFunc
	Logger  *slog.Logger
}

// Store maps user identity to session. The map lock is always taken before a
// session lock, never the other way round.
type Store struct {
	mu       sync.Mutex
	sessions map[int64]*Session

	now     func() time.Time
	release ReleaseFunc
	log     *slog.Logger
}

func NewStore(opt Options) *Store {
	if opt.Now == nil {
		opt.Now = time.Now
	}
	if opt.Release == nil {
		opt.Release = capture.Artifact.Release
	}
	if opt.Logger == nil {
		opt.Logger = slog.Default()
	}
	return &Store{
		sessions: make(map[int64]*Session),
		now:      opt.Now,
		release:  opt.Release,
		log:      opt.Logger.With("component", "session"),
	}
}

// GetOrCreate returns the user's session, creating an empty one on first use.
func (st *Store) GetOrCreate(userID, chatID int64) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()

	if s, ok := st.sessions[userID]; ok {
		return s
	}
	s := &Session{UserID: userID, ChatID: chatID, startTime: st.now()}
	st.sessions[userID] = s
	st.log.Debug("session created", "user", userID, "chat", chatID)
	return s
}

// Get returns the session without creating it.
func (st *Store) Get(userID int64) (*Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[userID]
	return s, ok
}

// Len is the number of live sessions.
func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

// Put stores art in slot (1-based) of the user's session. A previous artifact
// in that slot is released first; if that fails it is kept and retried on
// the next Reset, Clear or sweep. On error the caller still owns art.
func (st *Store) Put(userID, chatID int64, slot int, art capture.Artifact) (replaced bool, err error) {
	if slot < 1 || slot > SlotCount {
		return false, fmt.Errorf("%w: %d", ErrBadSlot, slot)
	}
	s := st.lockLive(userID, chatID)
	defer s.mu.Unlock()

	if s.active {
		return false, ErrBusy
	}
	i := slot - 1
	if old := s.slots[i]; old != nil {
		replaced = true
		if err := st.release(*old); err != nil {
			st.log.Warn("release overwritten artifact", "user", userID, "slot", slot, "path", old.Path, "error", err)
			s.orphans = append(s.orphans, *old)
		}
	}
	a := art
	s.slots[i] = &a
	s.texts[i] = ""
	s.extracted[i] = false
	return replaced, nil
}

// lockLive returns the user's session locked, retrying when the sweep
// removed it between lookup and lock.
func (st *Store) lockLive(userID, chatID int64) *Session {
	for {
		s := st.GetOrCreate(userID, chatID)
		s.mu.Lock()
		if !s.removed {
			return s
		}
		s.mu.Unlock()
	}
}

// Begin marks the session active and returns its occupied slots in
// ascending order. The sweep skips active sessions. Every successful Begin
// must be followed by Reset.
func (st *Store) Begin(s *Session) ([]Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active {
		return nil, ErrBusy
	}
	s.active = true

	var items []Item
	for i, a := range s.slots {
		if a != nil {
			items = append(items, Item{Slot: i + 1, Artifact: *a})
		}
	}
	return items, nil
}

// SetExtracted records the transcription for slot.
func (st *Store) SetExtracted(s *Session, slot int, text string) {
	if slot < 1 || slot > SlotCount {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts[slot-1] = text
	s.extracted[slot-1] = true
}

// Consume releases the artifact of slot and empties the slot; the
// extracted text, if any, stays until Reset.
func (st *Store) Consume(s *Session, slot int) error {
	if slot < 1 || slot > SlotCount {
		return fmt.Errorf("%w: %d", ErrBadSlot, slot)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	a := s.slots[slot-1]
	if a == nil {
		return nil
	}
	s.slots[slot-1] = nil
	return st.release(*a)
}

// Reset releases whatever the session still holds, clears slots and texts
// and restarts its clock. The map entry stays.
func (st *Store) Reset(s *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := st.releaseAll(s)
	s.clear(st.now())
	s.active = false
	return err
}

// Clear resets the user's session unless a batch owns it. Missing sessions
// are not an error.
func (st *Store) Clear(userID int64) error {
	s, ok := st.Get(userID)
	if !ok {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		return ErrBusy
	}
	err := st.releaseAll(s)
	s.clear(st.now())
	return err
}

// SweepExpired purges every idle session older than timeout. Each occupied
// slot is released before the session leaves the map. Release failures are
// logged, joined into the returned error and do not stop the sweep.
func (st *Store) SweepExpired(now time.Time, timeout time.Duration) ([]capture.Artifact, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	var (
		released []capture.Artifact
		errs     []error
	)
	for id, s := range st.sessions {
		s.mu.Lock()
		if s.active || now.Sub(s.startTime) <= timeout {
			s.mu.Unlock()
			continue
		}
		for i, a := range s.slots {
			if a == nil {
				continue
			}
			if err := st.release(*a); err != nil {
				st.log.Warn("release expired artifact", "user", id, "slot", i+1, "path", a.Path, "error", err)
				errs = append(errs, fmt.Errorf("user %d slot %d: %w", id, i+1, err))
			} else {
				released = append(released, *a)
			}
			s.slots[i] = nil
		}
		for _, a := range s.orphans {
			if err := st.release(a); err != nil {
				st.log.Warn("release expired artifact", "user", id, "path", a.Path, "error", err)
				errs = append(errs, fmt.Errorf("user %d %s: %w", id, a.Path, err))
			} else {
				released = append(released, a)
			}
		}
		s.orphans = nil
		s.removed = true
		delete(st.sessions, id)
		s.mu.Unlock()
		st.log.Debug("session expired", "user", id)
	}
	return released, errors.Join(errs...)
}

// releaseAll is called with s.mu held. Artifacts that fail to release stay
// on the session as orphans for the next attempt.
func (st *Store) releaseAll(s *Session) error {
	var errs []error
	kept := s.orphans[:0]
	for _, a := range s.orphans {
		if err := st.release(a); err != nil {
			st.log.Warn("release orphaned artifact", "user", s.UserID, "path", a.Path, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", a.Path, err))
			kept = append(kept, a)
		}
	}
	s.orphans = kept
	for i, a := range s.slots {
		if a == nil {
			continue
		}
		if err := st.release(*a); err != nil {
			st.log.Warn("release artifact", "user", s.UserID, "slot", i+1, "path", a.Path, "error", err)
			errs = append(errs, fmt.Errorf("slot %d: %w", i+1, err))
			s.orphans = append(s.orphans, *a)
		}
		s.slots[i] = nil
	}
	return errors.Join(errs...)
}
