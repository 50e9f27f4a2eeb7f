package session

import (
	"sync"
	"time"

	"screen-bot/api/internal/capture"
)

// SlotCount is the number of stackable captures per session (digits 1..9).
const SlotCount = 9

// Session is one user's stack of screenshots. All fields below mu are
// guarded by it; go through Store to mutate.
type Session struct {
	UserID int64
	ChatID int64

	mu        sync.Mutex
	slots     [SlotCount]*capture.Artifact
	texts     [SlotCount]string
	extracted [SlotCount]bool
	orphans   []capture.Artifact // release failed; retried by Reset, Clear and the sweep
	startTime time.Time
	active    bool // a batch run owns the session
	removed   bool // swept; callers holding a stale pointer must re-fetch
}

// Item is an occupied slot handed to the batch pipeline. Slot is 1-based.
type Item struct {
	Slot     int
	Artifact capture.Artifact
}

// Snapshot is a copy of the session state for display and tests.
type Snapshot struct {
	UserID         int64
	ChatID         int64
	Slots          [SlotCount]*capture.Artifact
	ExtractedTexts [SlotCount]*string
	StartTime      time.Time
	Active         bool
}

// Occupied returns the 1-based numbers of non-empty slots in ascending order.
func (s Snapshot) Occupied() []int {
	var out []int
	for i, a := range s.Slots {
		if a != nil {
			out = append(out, i+1)
		}
	}
	return out
}

// Empty reports whether no slot and no extracted text is held.
func (s Snapshot) Empty() bool {
	for i := range s.Slots {
		if s.Slots[i] != nil || s.ExtractedTexts[i] != nil {
			return false
		}
	}
	return true
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		UserID:    s.UserID,
		ChatID:    s.ChatID,
		StartTime: s.startTime,
		Active:    s.active,
	}
	for i := range s.slots {
		if a := s.slots[i]; a != nil {
			cp := *a
			snap.Slots[i] = &cp
		}
		if s.extracted[i] {
			txt := s.texts[i]
			snap.ExtractedTexts[i] = &txt
		}
	}
	return snap
}

// clear drops slot and text state. Caller holds mu and has released artifacts.
func (s *Session) clear(now time.Time) {
	s.slots = [SlotCount]*capture.Artifact{}
	s.texts = [SlotCount]string{}
	s.extracted = [SlotCount]bool{}
	s.startTime = now
}
