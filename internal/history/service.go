package history

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/minqi/luckydraw/internal/domain"
)

// Service owns the list of completed-session records, most recent first.
// Records are immutable once appended; the only way to delete them is the
// bulk Clear. Like the roster store it is a leaf: the draw engine routes
// every mutation through its own lock.
type Service struct {
	records []domain.HistoryRecord
}

func NewService() *Service {
	return &Service{}
}

// Append prepends a record so List stays most-recent-first.
func (s *Service) Append(rec domain.HistoryRecord) {
	s.records = append([]domain.HistoryRecord{rec}, s.records...)
}

// List returns a copy of all records, most recent first.
func (s *Service) List() []domain.HistoryRecord {
	return append([]domain.HistoryRecord(nil), s.records...)
}

func (s *Service) Len() int { return len(s.records) }

// Clear deletes every record.
func (s *Service) Clear() {
	s.records = nil
}

// Replace swaps in previously persisted records.
func (s *Service) Replace(recs []domain.HistoryRecord) {
	s.records = append([]domain.HistoryRecord(nil), recs...)
}

// ExportJSON renders the history as pretty-printed JSON together with a
// date-stamped filename for the download/save dialog.
func (s *Service) ExportJSON() ([]byte, string, error) {
	b, err := json.MarshalIndent(s.records, "", "  ")
	if err != nil {
		return nil, "", fmt.Errorf("export history: %w", err)
	}
	name := fmt.Sprintf("history-%s.json", time.Now().Format("2006-01-02"))
	return b, name, nil
}
