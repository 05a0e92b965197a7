package persist

import (
	"context"
	"log/slog"

	"github.com/minqi/luckydraw/internal/domain"
	"github.com/minqi/luckydraw/internal/event"
)

// Source is the live state the saver snapshots. The draw engine satisfies
// it.
type Source interface {
	PersistedState() ([]domain.Participant, domain.DrawConfig, []domain.HistoryRecord)
}

// Saver subscribes to state.changed and writes the current snapshot through
// the configured store. Failures are logged and the in-memory state stays
// authoritative; the next change retries, so the persisted copy is
// eventually the last state before shutdown.
type Saver struct {
	source Source
	store  Store
}

func NewSaver(eb *event.Bus, source Source, store Store) *Saver {
	s := &Saver{source: source, store: store}

	eb.Subscribe(domain.EventNameStateChanged, func(ctx context.Context, e event.Event) error {
		s.save(ctx, e.(domain.EventStateChanged).Reason)
		return nil
	})

	return s
}

func (s *Saver) save(ctx context.Context, reason string) {
	roster, cfg, hist := s.source.PersistedState()

	err := s.store.Save(ctx, Snapshot{Roster: roster, Config: cfg, History: hist})
	if err != nil {
		slog.WarnContext(ctx, "persist: save failed, continuing unpersisted",
			"reason", reason,
			"error", err,
		)
		return
	}

	slog.DebugContext(ctx, "persist: saved", "reason", reason)
}

// Flush writes the snapshot immediately, used on shutdown.
func (s *Saver) Flush(ctx context.Context) {
	s.save(ctx, "shutdown")
}
