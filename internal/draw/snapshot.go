package draw

import (
	"github.com/minqi/luckydraw/internal/domain"
)

func (e *Engine) roundComplete(i int) bool {
	if i < 0 || i >= len(e.cfg.TournamentRounds) {
		return false
	}
	return len(e.roundWinnersAt(i)) >= e.cfg.TournamentRounds[i].Count
}

// ReplaceRoster swaps in a previously persisted roster at startup.
func (e *Engine) ReplaceRoster(ps []domain.Participant) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.roster.Replace(ps)
}

// ReplaceHistory swaps in previously persisted history records at startup.
func (e *Engine) ReplaceHistory(recs []domain.HistoryRecord) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.hist.Replace(recs)
}

// PersistedState returns consistent copies of the three persisted documents
// under a single lock acquisition. The saver calls this on every
// state.changed event.
func (e *Engine) PersistedState() ([]domain.Participant, domain.DrawConfig, []domain.HistoryRecord) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.roster.Snapshot(), e.configLocked(), e.hist.List()
}
