package domain

// Mode selects how a draw session is run.
type Mode string

const (
	ModeClassic    Mode = "classic"
	ModeTournament Mode = "tournament"
)

// Method selects how classic-mode winners are revealed.
type Method string

const (
	MethodAll      Method = "all"
	MethodOneByOne Method = "one-by-one"
	MethodBatch    Method = "batch"
)

// Participant is one entry in the roster. Weight is carried for display and
// import/export compatibility; the selection algorithm is uniform and does
// not consume it.
type Participant struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Weight   int    `json:"weight"`
	Excluded bool   `json:"excluded"`
}

// TournamentRound is one elimination round. Count is the number of
// participants that survive the round.
type TournamentRound struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// DrawConfig is the single process-wide draw configuration. It doubles as
// the persisted configuration document, so the presentation-only settings
// (sound, name hiding, particles) travel with it.
type DrawConfig struct {
	SoundEnabled          bool `json:"soundEnabled"`
	AutoExclude           bool `json:"autoExclude"`
	HideNamesWhileRolling bool `json:"hideNamesWhileRolling"`
	ParticleEffects       bool `json:"particleEffects"`

	Mode Mode `json:"mode"`

	ClassicCount  int    `json:"classicCount"`
	ClassicMethod Method `json:"classicMethod"`
	BatchSize     int    `json:"batchSize"`
	PrizeName     string `json:"prizeName"`

	TournamentRounds []TournamentRound `json:"tournamentRounds"`
}

// DefaultConfig is the configuration a fresh install starts with.
func DefaultConfig() DrawConfig {
	return DrawConfig{
		SoundEnabled:    true,
		AutoExclude:     true,
		ParticleEffects: true,
		Mode:            ModeClassic,
		ClassicCount:    1,
		ClassicMethod:   MethodOneByOne,
		BatchSize:       1,
		TournamentRounds: []TournamentRound{
			{ID: 1, Name: "", Count: 1},
		},
	}
}

// RoundResult is the per-round breakdown stored on tournament history records.
type RoundResult struct {
	Name    string        `json:"name"`
	Winners []Participant `json:"winners"`
}

// HistoryRecord summarizes one completed draw session. Immutable once
// created; records are kept most-recent-first.
type HistoryRecord struct {
	ID                   int64         `json:"id"`
	Date                 string        `json:"date"`
	Mode                 Mode          `json:"mode"`
	PrizeName            string        `json:"prizeName"`
	Winners              []Participant `json:"winners"`
	TotalParticipants    int           `json:"totalParticipants"`
	Rounds               []RoundResult `json:"rounds,omitempty"`
	ParticipantsSnapshot []Participant `json:"participantsSnapshot,omitempty"`
}
