package roster

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/minqi/luckydraw/internal/domain"
)

// Store is the authoritative participant list. It is a leaf component: it
// does no locking and publishes no events. The draw engine owns it and
// routes every mutation through its own lock.
type Store struct {
	participants []domain.Participant
	lastID       int64
}

func NewStore() *Store {
	return &Store{}
}

// nextID assigns ids from the current unix-millis clock with a little
// jitter. Bulk imports land many entries within one millisecond, so ids
// behind the clock are bumped past the previous one instead.
func (s *Store) nextID() int64 {
	id := time.Now().UnixMilli()
	if id <= s.lastID {
		id = s.lastID + 1 + int64(rand.Intn(3))
	}
	s.lastID = id
	return id
}

// Add appends a participant with a fresh id. A name that trims to empty is
// a no-op; a non-positive weight is coerced to 1.
func (s *Store) Add(name string, weight int) (domain.Participant, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Participant{}, false
	}
	if weight < 1 {
		weight = 1
	}

	p := domain.Participant{
		ID:     s.nextID(),
		Name:   name,
		Weight: weight,
	}
	s.participants = append(s.participants, p)
	return p, true
}

// Remove deletes the entry with the given id; absent ids are a no-op.
func (s *Store) Remove(id int64) bool {
	for i, p := range s.participants {
		if p.ID == id {
			s.participants = append(s.participants[:i], s.participants[i+1:]...)
			return true
		}
	}
	return false
}

// ToggleExclude flips the excluded flag of the entry with the given id.
func (s *Store) ToggleExclude(id int64) bool {
	for i := range s.participants {
		if s.participants[i].ID == id {
			s.participants[i].Excluded = !s.participants[i].Excluded
			return true
		}
	}
	return false
}

// Exclude marks the entry with the given id as excluded. Used by the draw
// engine's auto-exclude side effect.
func (s *Store) Exclude(id int64) {
	for i := range s.participants {
		if s.participants[i].ID == id {
			s.participants[i].Excluded = true
			return
		}
	}
}

// RestoreAll clears the excluded flag on every entry.
func (s *Store) RestoreAll() {
	for i := range s.participants {
		s.participants[i].Excluded = false
	}
}

// ClearAll empties the roster.
func (s *Store) ClearAll() {
	s.participants = nil
}

// Replace swaps in a previously persisted roster.
func (s *Store) Replace(ps []domain.Participant) {
	s.participants = append([]domain.Participant(nil), ps...)
	for _, p := range ps {
		if p.ID > s.lastID {
			s.lastID = p.ID
		}
	}
}

// Snapshot returns a copy of the roster in insertion order.
func (s *Store) Snapshot() []domain.Participant {
	return append([]domain.Participant(nil), s.participants...)
}

func (s *Store) Len() int { return len(s.participants) }

// ActiveCount is the number of participants not currently excluded.
func (s *Store) ActiveCount() int {
	n := 0
	for _, p := range s.participants {
		if !p.Excluded {
			n++
		}
	}
	return n
}

// ExcludedCount is the number of participants currently excluded.
func (s *Store) ExcludedCount() int {
	return len(s.participants) - s.ActiveCount()
}

// Search returns participants whose name contains the query,
// case-insensitively. An empty query returns the whole roster.
func (s *Store) Search(query string) []domain.Participant {
	if query == "" {
		return s.Snapshot()
	}
	q := strings.ToLower(query)
	var out []domain.Participant
	for _, p := range s.participants {
		if strings.Contains(strings.ToLower(p.Name), q) {
			out = append(out, p)
		}
	}
	return out
}

// ExportJSON renders the roster as pretty-printed JSON together with a
// date-stamped filename for the download/save dialog.
func (s *Store) ExportJSON() ([]byte, string, error) {
	b, err := json.MarshalIndent(s.participants, "", "  ")
	if err != nil {
		return nil, "", fmt.Errorf("export roster: %w", err)
	}
	name := fmt.Sprintf("participants-%s.json", time.Now().Format("2006-01-02"))
	return b, name, nil
}
