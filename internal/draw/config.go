package draw

import (
	"context"

	"github.com/minqi/luckydraw/internal/domain"
	"github.com/minqi/luckydraw/internal/errors"
)

// Config returns a copy of the active draw configuration.
func (e *Engine) Config() domain.DrawConfig {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.configLocked()
}

func (e *Engine) configLocked() domain.DrawConfig {
	cfg := e.cfg
	cfg.TournamentRounds = append([]domain.TournamentRound(nil), e.cfg.TournamentRounds...)
	return cfg
}

// ReplaceConfig swaps in a previously persisted configuration, coercing
// anything structurally off back to a safe value.
func (e *Engine) ReplaceConfig(cfg domain.DrawConfig) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if cfg.Mode != domain.ModeClassic && cfg.Mode != domain.ModeTournament {
		cfg.Mode = domain.ModeClassic
	}
	switch cfg.ClassicMethod {
	case domain.MethodAll, domain.MethodOneByOne, domain.MethodBatch:
	default:
		cfg.ClassicMethod = domain.MethodOneByOne
	}
	if cfg.ClassicCount < 1 {
		cfg.ClassicCount = 1
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 1
	}
	if len(cfg.TournamentRounds) == 0 {
		cfg.TournamentRounds = domain.DefaultConfig().TournamentRounds
	}

	e.cfg = cfg
	e.cfg.TournamentRounds = append([]domain.TournamentRound(nil), cfg.TournamentRounds...)

	// Hand-edited documents can carry rounds that grow; re-establish the
	// non-increasing invariant the round editors maintain.
	for i := range e.cfg.TournamentRounds {
		if e.cfg.TournamentRounds[i].Count < 1 {
			e.cfg.TournamentRounds[i].Count = 1
		}
		if i > 0 && e.cfg.TournamentRounds[i].Count > e.cfg.TournamentRounds[i-1].Count {
			e.cfg.TournamentRounds[i].Count = e.cfg.TournamentRounds[i-1].Count
		}
	}
}

// ResetConfig restores the defaults. The roster and history are untouched.
func (e *Engine) ResetConfig(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.cfg = domain.DefaultConfig()
	e.publish(ctx, domain.EventStateChanged{Reason: "config.reset"})
}

func (e *Engine) SetMode(ctx context.Context, m domain.Mode) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if m != domain.ModeClassic && m != domain.ModeTournament {
		return errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("unknown mode %q", m))
	}
	if e.rolling {
		return errors.New(errors.CodeFailedPrecondition,
			errors.WithMessagef("cannot switch mode while drawing"))
	}

	e.cfg.Mode = m
	e.publish(ctx, domain.EventStateChanged{Reason: "config.mode"})
	return nil
}

func (e *Engine) SetAutoExclude(ctx context.Context, v bool) {
	e.setFlag(ctx, "config.autoExclude", func() { e.cfg.AutoExclude = v })
}

func (e *Engine) SetSoundEnabled(ctx context.Context, v bool) {
	e.setFlag(ctx, "config.sound", func() { e.cfg.SoundEnabled = v })
}

func (e *Engine) SetHideNamesWhileRolling(ctx context.Context, v bool) {
	e.setFlag(ctx, "config.hideNames", func() { e.cfg.HideNamesWhileRolling = v })
}

func (e *Engine) SetParticleEffects(ctx context.Context, v bool) {
	e.setFlag(ctx, "config.particles", func() { e.cfg.ParticleEffects = v })
}

func (e *Engine) SetPrizeName(ctx context.Context, name string) {
	e.setFlag(ctx, "config.prize", func() { e.cfg.PrizeName = name })
}

func (e *Engine) setFlag(ctx context.Context, reason string, apply func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	apply()
	e.publish(ctx, domain.EventStateChanged{Reason: reason})
}

// SetClassicCount clamps the target to the number of participants that can
// actually win, and drags the batch size down with it when needed.
func (e *Engine) SetClassicCount(ctx context.Context, n int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if n < 1 {
		n = 1
	}
	if limit := e.roster.ActiveCount(); limit > 0 && n > limit {
		n = limit
	}

	e.cfg.ClassicCount = n
	if e.cfg.BatchSize > n {
		e.cfg.BatchSize = n
	}
	e.publish(ctx, domain.EventStateChanged{Reason: "config.classicCount"})
}

func (e *Engine) SetBatchSize(ctx context.Context, n int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if n < 1 {
		n = 1
	}
	if n > e.cfg.ClassicCount {
		n = e.cfg.ClassicCount
	}

	e.cfg.BatchSize = n
	e.publish(ctx, domain.EventStateChanged{Reason: "config.batchSize"})
}

// SetClassicMethod switches the reveal method. Switching to batch seeds the
// batch size at half the target, rounded up.
func (e *Engine) SetClassicMethod(ctx context.Context, m domain.Method) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch m {
	case domain.MethodAll, domain.MethodOneByOne, domain.MethodBatch:
	default:
		return errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("unknown draw method %q", m))
	}

	e.cfg.ClassicMethod = m
	if m == domain.MethodBatch {
		half := (e.cfg.ClassicCount + 1) / 2
		if half < 1 {
			half = 1
		}
		e.cfg.BatchSize = half
	}
	e.publish(ctx, domain.EventStateChanged{Reason: "config.method"})
	return nil
}

// SetRoundCount edits one tournament round's target and propagates the
// constraints: round 1 is clamped to the participant count, every other
// round to its predecessor, and the clamp cascades forward so no round ever
// exceeds the round before it.
func (e *Engine) SetRoundCount(ctx context.Context, roundID, count int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	idx := -1
	for i, r := range e.cfg.TournamentRounds {
		if r.ID == roundID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return errors.New(errors.CodeNotFound,
			errors.WithMessagef("round %d not found", roundID))
	}

	if count < 1 {
		count = 1
	}
	if idx == 0 {
		if limit := e.roster.ActiveCount(); limit > 0 && count > limit {
			count = limit
		}
	} else if prev := e.cfg.TournamentRounds[idx-1].Count; count > prev {
		count = prev
	}

	e.cfg.TournamentRounds[idx].Count = count
	for i := idx + 1; i < len(e.cfg.TournamentRounds); i++ {
		if e.cfg.TournamentRounds[i].Count > e.cfg.TournamentRounds[i-1].Count {
			e.cfg.TournamentRounds[i].Count = e.cfg.TournamentRounds[i-1].Count
		}
	}

	e.publish(ctx, domain.EventStateChanged{Reason: "config.roundCount"})
	return nil
}

func (e *Engine) SetRoundName(ctx context.Context, roundID int, name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i, r := range e.cfg.TournamentRounds {
		if r.ID == roundID {
			e.cfg.TournamentRounds[i].Name = name
			e.publish(ctx, domain.EventStateChanged{Reason: "config.roundName"})
			return nil
		}
	}
	return errors.New(errors.CodeNotFound,
		errors.WithMessagef("round %d not found", roundID))
}

// AddRound appends a new round with a target of 1, which trivially respects
// the predecessor constraint.
func (e *Engine) AddRound(ctx context.Context) domain.TournamentRound {
	e.mu.Lock()
	defer e.mu.Unlock()

	maxID := 0
	for _, r := range e.cfg.TournamentRounds {
		if r.ID > maxID {
			maxID = r.ID
		}
	}

	r := domain.TournamentRound{ID: maxID + 1, Count: 1}
	e.cfg.TournamentRounds = append(e.cfg.TournamentRounds, r)
	e.publish(ctx, domain.EventStateChanged{Reason: "config.roundAdd"})
	return r
}

// RemoveRound deletes a round; the last remaining round cannot be removed.
func (e *Engine) RemoveRound(ctx context.Context, roundID int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.cfg.TournamentRounds) <= 1 {
		return errors.New(errors.CodeFailedPrecondition,
			errors.WithMessagef("a tournament needs at least one round"))
	}

	for i, r := range e.cfg.TournamentRounds {
		if r.ID == roundID {
			e.cfg.TournamentRounds = append(e.cfg.TournamentRounds[:i], e.cfg.TournamentRounds[i+1:]...)
			// Re-propagate so a removed middle round cannot leave a
			// successor larger than its new predecessor.
			for j := 1; j < len(e.cfg.TournamentRounds); j++ {
				if e.cfg.TournamentRounds[j].Count > e.cfg.TournamentRounds[j-1].Count {
					e.cfg.TournamentRounds[j].Count = e.cfg.TournamentRounds[j-1].Count
				}
			}
			e.publish(ctx, domain.EventStateChanged{Reason: "config.roundRemove"})
			return nil
		}
	}
	return errors.New(errors.CodeNotFound,
		errors.WithMessagef("round %d not found", roundID))
}

// History access is routed through the engine for the same locking reason
// as the roster.

func (e *Engine) History() []domain.HistoryRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hist.List()
}

func (e *Engine) ClearHistory(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.hist.Clear()
	e.publish(ctx, domain.EventStateChanged{Reason: "history.clear"})
}

func (e *Engine) ExportHistory() ([]byte, string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hist.ExportJSON()
}
