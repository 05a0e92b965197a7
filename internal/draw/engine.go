package draw

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/minqi/luckydraw/internal/domain"
	"github.com/minqi/luckydraw/internal/errors"
	"github.com/minqi/luckydraw/internal/event"
	"github.com/minqi/luckydraw/internal/history"
	"github.com/minqi/luckydraw/internal/roster"
)

type Config struct {
	Roster   *roster.Store
	History  *history.Service
	EventBus *event.Bus

	// Rand and Now are injectable for deterministic tests; both default to
	// the obvious thing.
	Rand *rand.Rand
	Now  func() time.Time
}

// Engine is the draw state machine. It owns the roster, the draw
// configuration and the transient session state; every mutation - including
// roster edits coming from the participants view - is routed through it so
// there is a single lock and a single place that publishes change events.
//
// Sampling happens synchronously at Stop time. While the engine is rolling
// the only thing the UI gets from it is RollingName, which never mutates
// state, so the cosmetic animation has no bearing on who wins.
type Engine struct {
	mu sync.Mutex

	roster *roster.Store
	hist   *history.Service
	eb     *event.Bus
	rng    *rand.Rand
	now    func() time.Time

	cfg domain.DrawConfig

	// session state, cleared by Reset
	rolling        bool
	winners        []domain.Participant
	classicWinners []domain.Participant
	currentRound   int
	roundWinners   [][]domain.Participant

	// serialized identity of the last winner set a draw.completed event was
	// published for, so re-renders never re-trigger confetti
	celebrated string
}

func NewEngine(c Config) *Engine {
	e := &Engine{
		roster: c.Roster,
		hist:   c.History,
		eb:     c.EventBus,
		rng:    c.Rand,
		now:    c.Now,
		cfg:    domain.DefaultConfig(),
	}

	if e.roster == nil {
		e.roster = roster.NewStore()
	}
	if e.hist == nil {
		e.hist = history.NewService()
	}
	if e.rng == nil {
		e.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if e.now == nil {
		e.now = time.Now
	}

	return e
}

// State is the engine's read model, everything the presentation layer needs
// to render a frame.
type State struct {
	IsDrawing         bool                   `json:"isDrawing"`
	Mode              domain.Mode            `json:"mode"`
	Winners           []domain.Participant   `json:"winners"`
	ClassicWinners    []domain.Participant   `json:"classicWinners"`
	ClassicTarget     int                    `json:"classicTarget"`
	CurrentRoundIndex int                    `json:"currentRoundIndex"`
	RoundWinners      [][]domain.Participant `json:"roundWinners"`
	RoundComplete     bool                   `json:"roundComplete"`
	SessionComplete   bool                   `json:"sessionComplete"`
	CanAdvanceRound   bool                   `json:"canAdvanceRound"`
	EligibleCount     int                    `json:"eligibleCount"`
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stateLocked()
}

func (e *Engine) stateLocked() State {
	st := State{
		IsDrawing:         e.rolling,
		Mode:              e.cfg.Mode,
		Winners:           append([]domain.Participant(nil), e.winners...),
		ClassicWinners:    append([]domain.Participant(nil), e.classicWinners...),
		ClassicTarget:     e.cfg.ClassicCount,
		CurrentRoundIndex: e.currentRound,
		EligibleCount:     len(e.eligible()),
	}

	st.RoundWinners = make([][]domain.Participant, len(e.roundWinners))
	for i, rw := range e.roundWinners {
		st.RoundWinners[i] = append([]domain.Participant(nil), rw...)
	}

	switch e.cfg.Mode {
	case domain.ModeClassic:
		st.SessionComplete = len(e.classicWinners) >= e.cfg.ClassicCount
	case domain.ModeTournament:
		complete := e.roundComplete(e.currentRound)
		last := e.currentRound == len(e.cfg.TournamentRounds)-1
		st.RoundComplete = complete
		st.SessionComplete = complete && last
		st.CanAdvanceRound = complete && !last
	}

	return st
}

// Start enters the rolling state. There is no guard: starting with an empty
// eligible pool is allowed, the eventual Stop simply yields no winners.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rolling = true
}

// Stop exits the rolling state and performs the authoritative sampling for
// this action: it recomputes the eligible pool, draws this action's batch
// without replacement, applies auto-exclusion, advances the session
// accumulators, and emits a history record when the session completes.
func (e *Engine) Stop(ctx context.Context) State {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.rolling = false

	pool := e.eligible()
	count := e.batchCount(len(pool))
	if count == 0 {
		e.winners = nil
		return e.stateLocked()
	}

	batch := e.sample(pool, count)
	e.winners = batch

	dirty := false
	switch e.cfg.Mode {
	case domain.ModeClassic:
		e.classicWinners = append(e.classicWinners, batch...)
		if e.cfg.AutoExclude {
			for _, w := range batch {
				e.roster.Exclude(w.ID)
			}
			dirty = true
		}
		if len(e.classicWinners) >= e.cfg.ClassicCount {
			e.emitClassicRecord(ctx)
			dirty = true
		}

	case domain.ModeTournament:
		for len(e.roundWinners) < len(e.cfg.TournamentRounds) {
			e.roundWinners = append(e.roundWinners, nil)
		}
		e.roundWinners[e.currentRound] = append(e.roundWinners[e.currentRound], batch...)

		last := e.currentRound == len(e.cfg.TournamentRounds)-1
		if last && e.roundComplete(e.currentRound) {
			e.emitTournamentRecord(ctx)
			dirty = true
		}
	}

	e.celebrate(ctx, batch)
	if dirty {
		e.publish(ctx, domain.EventStateChanged{Reason: "draw.stop"})
	}

	return e.stateLocked()
}

// Reset returns the engine to Idle with empty session state. The roster and
// the configuration are untouched.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.rolling = false
	e.winners = nil
	e.classicWinners = nil
	e.roundWinners = nil
	e.currentRound = 0
	e.celebrated = ""
}

// NextRound advances to the next tournament round once the current one has
// reached its target. The per-round winner history is kept; only the batch
// display is cleared.
func (e *Engine) NextRound() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cfg.Mode != domain.ModeTournament {
		return errors.New(errors.CodeFailedPrecondition,
			errors.WithMessagef("next round: not in tournament mode"))
	}
	if !e.roundComplete(e.currentRound) {
		return errors.New(errors.CodeFailedPrecondition,
			errors.WithMessagef("next round: round %d has not reached its target", e.currentRound+1))
	}
	if e.currentRound >= len(e.cfg.TournamentRounds)-1 {
		return errors.New(errors.CodeFailedPrecondition,
			errors.WithMessagef("next round: already at the final round"))
	}

	e.currentRound++
	e.winners = nil
	e.celebrated = ""
	return nil
}

// RollingName returns one uniformly random eligible name for the cosmetic
// rolling display. It returns false as soon as the engine is not rolling,
// which is the animation's signal to stop ticking.
func (e *Engine) RollingName() (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.rolling {
		return "", false
	}
	pool := e.eligible()
	if len(pool) == 0 {
		return "", false
	}
	return pool[e.rng.Intn(len(pool))].Name, true
}

// eligible computes the candidate pool for the next sampling action, fresh
// every time.
func (e *Engine) eligible() []domain.Participant {
	all := e.roster.Snapshot()

	switch e.cfg.Mode {
	case domain.ModeTournament:
		if e.currentRound == 0 {
			return filterOut(activeOnly(all), e.roundWinnersAt(0))
		}
		// Later rounds draw from the previous round's survivors. A manual
		// exclusion mid-tournament still disqualifies.
		survivors := e.roundWinnersAt(e.currentRound - 1)
		var pool []domain.Participant
		for _, p := range all {
			if p.Excluded {
				continue
			}
			if !containsID(survivors, p.ID) {
				continue
			}
			if containsID(e.roundWinnersAt(e.currentRound), p.ID) {
				continue
			}
			pool = append(pool, p)
		}
		return pool

	default: // classic
		return filterOut(activeOnly(all), e.classicWinners)
	}
}

func (e *Engine) roundWinnersAt(i int) []domain.Participant {
	if i < 0 || i >= len(e.roundWinners) {
		return nil
	}
	return e.roundWinners[i]
}

// batchCount determines how many winners this Stop action draws, capped by
// the pool size. Zero means the action is a no-op.
func (e *Engine) batchCount(poolSize int) int {
	var count int

	switch e.cfg.Mode {
	case domain.ModeTournament:
		if e.roundComplete(e.currentRound) {
			return 0
		}
		count = 1
	default:
		remaining := e.cfg.ClassicCount - len(e.classicWinners)
		if remaining <= 0 {
			return 0
		}
		switch e.cfg.ClassicMethod {
		case domain.MethodAll:
			count = remaining
		case domain.MethodBatch:
			count = min(e.cfg.BatchSize, remaining)
		default:
			count = 1
		}
	}

	return min(count, poolSize)
}

// sample draws count distinct participants uniformly without replacement by
// repeatedly picking a random index into a shrinking copy of the pool - a
// partial Fisher-Yates shuffle.
func (e *Engine) sample(pool []domain.Participant, count int) []domain.Participant {
	work := append([]domain.Participant(nil), pool...)
	winners := make([]domain.Participant, 0, count)

	for len(winners) < count && len(work) > 0 {
		i := e.rng.Intn(len(work))
		winners = append(winners, work[i])
		work[i] = work[len(work)-1]
		work = work[:len(work)-1]
	}

	return winners
}

func (e *Engine) emitClassicRecord(ctx context.Context) {
	rec := domain.HistoryRecord{
		ID:                   e.now().UnixMilli(),
		Date:                 e.now().Format("2006-01-02 15:04"),
		Mode:                 domain.ModeClassic,
		PrizeName:            e.cfg.PrizeName,
		Winners:              append([]domain.Participant(nil), e.classicWinners...),
		TotalParticipants:    e.roster.ActiveCount(),
		ParticipantsSnapshot: e.roster.Snapshot(),
	}
	e.hist.Append(rec)
	e.publish(ctx, domain.EventHistoryAppended{Record: rec})
}

func (e *Engine) emitTournamentRecord(ctx context.Context) {
	rounds := make([]domain.RoundResult, len(e.cfg.TournamentRounds))
	for i, r := range e.cfg.TournamentRounds {
		rounds[i] = domain.RoundResult{
			Name:    r.Name,
			Winners: append([]domain.Participant(nil), e.roundWinnersAt(i)...),
		}
	}

	final := e.roundWinnersAt(len(e.cfg.TournamentRounds) - 1)
	rec := domain.HistoryRecord{
		ID:                   e.now().UnixMilli(),
		Date:                 e.now().Format("2006-01-02 15:04"),
		Mode:                 domain.ModeTournament,
		PrizeName:            e.cfg.PrizeName,
		Winners:              append([]domain.Participant(nil), final...),
		TotalParticipants:    e.roster.ActiveCount(),
		Rounds:               rounds,
		ParticipantsSnapshot: e.roster.Snapshot(),
	}
	e.hist.Append(rec)
	e.publish(ctx, domain.EventHistoryAppended{Record: rec})
}

// celebrate publishes a draw.completed event unless one was already
// published for the exact same winner set.
func (e *Engine) celebrate(ctx context.Context, batch []domain.Participant) {
	if len(batch) == 0 {
		return
	}

	ids := make([]string, len(batch))
	for i, w := range batch {
		ids[i] = fmt.Sprintf("%d", w.ID)
	}
	key := strings.Join(ids, ",")
	if key == e.celebrated {
		return
	}
	e.celebrated = key

	e.publish(ctx, domain.EventDrawCompleted{
		Winners: append([]domain.Participant(nil), batch...),
		Key:     key,
	})
}

func (e *Engine) publish(ctx context.Context, ev event.Event) {
	if e.eb == nil {
		return
	}
	e.eb.Publish(ctx, ev)
}

func containsID(ps []domain.Participant, id int64) bool {
	for _, p := range ps {
		if p.ID == id {
			return true
		}
	}
	return false
}

func activeOnly(ps []domain.Participant) []domain.Participant {
	var out []domain.Participant
	for _, p := range ps {
		if !p.Excluded {
			out = append(out, p)
		}
	}
	return out
}

func filterOut(ps, won []domain.Participant) []domain.Participant {
	var out []domain.Participant
	for _, p := range ps {
		if !containsID(won, p.ID) {
			out = append(out, p)
		}
	}
	return out
}
