// Package persist is the storage boundary of the application: three logical
// JSON documents (roster, configuration, history) behind a load-at-startup /
// save-on-change contract. The draw engine never talks to a store directly;
// the Saver reacts to its change events and writes fire-and-forget.
package persist

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/minqi/luckydraw/internal/domain"
)

const (
	docRoster  = "participants"
	docConfig  = "config"
	docHistory = "history"
)

// Snapshot is the full persisted state.
type Snapshot struct {
	Roster  []domain.Participant
	Config  domain.DrawConfig
	History []domain.HistoryRecord
}

// Store persists and restores a Snapshot. Load reports false when no data
// has ever been saved.
type Store interface {
	Load(ctx context.Context) (Snapshot, bool, error)
	Save(ctx context.Context, s Snapshot) error
}

func encodeDocs(s Snapshot) (rosterB, configB, historyB []byte, err error) {
	if rosterB, err = json.Marshal(s.Roster); err != nil {
		return nil, nil, nil, fmt.Errorf("encode roster: %w", err)
	}
	if configB, err = json.Marshal(s.Config); err != nil {
		return nil, nil, nil, fmt.Errorf("encode config: %w", err)
	}
	if historyB, err = json.Marshal(s.History); err != nil {
		return nil, nil, nil, fmt.Errorf("encode history: %w", err)
	}
	return rosterB, configB, historyB, nil
}

func decodeDocs(ctx context.Context, rosterB, configB, historyB []byte) (Snapshot, error) {
	s := Snapshot{Config: domain.DefaultConfig()}

	if len(rosterB) > 0 {
		if err := json.Unmarshal(rosterB, &s.Roster); err != nil {
			return Snapshot{}, fmt.Errorf("decode roster: %w", err)
		}
	}
	if len(configB) > 0 {
		if err := json.Unmarshal(configB, &s.Config); err != nil {
			return Snapshot{}, fmt.Errorf("decode config: %w", err)
		}
	}
	if len(historyB) > 0 {
		s.History = decodeHistory(ctx, historyB)
	}

	return s, nil
}

// decodeHistory discards stored history defensively when it is in the
// legacy shape (winners as bare name strings rather than participant
// objects) or otherwise unreadable. The rest of the snapshot still loads.
func decodeHistory(ctx context.Context, data []byte) []domain.HistoryRecord {
	var probe []struct {
		Winners []json.RawMessage `json:"winners"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		slog.WarnContext(ctx, "persist: unreadable history document, discarding", "error", err)
		return nil
	}
	if len(probe) > 0 && len(probe[0].Winners) > 0 && probe[0].Winners[0][0] == '"' {
		slog.WarnContext(ctx, "persist: legacy history format (winners as strings), discarding")
		return nil
	}

	var recs []domain.HistoryRecord
	if err := json.Unmarshal(data, &recs); err != nil {
		slog.WarnContext(ctx, "persist: history document does not match current schema, discarding", "error", err)
		return nil
	}
	return recs
}
