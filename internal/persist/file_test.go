package persist

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minqi/luckydraw/internal/domain"
)

func sampleSnapshot() Snapshot {
	cfg := domain.DefaultConfig()
	cfg.Mode = domain.ModeTournament
	cfg.PrizeName = "一等奖"
	cfg.TournamentRounds = []domain.TournamentRound{
		{ID: 1, Name: "半决赛", Count: 2},
		{ID: 2, Name: "决赛", Count: 1},
	}

	winner := domain.Participant{ID: 2, Name: "李娜", Weight: 1}
	return Snapshot{
		Roster: []domain.Participant{
			{ID: 1, Name: "张伟", Weight: 2},
			winner,
			{ID: 3, Name: "Zhang San", Weight: 1, Excluded: true},
		},
		Config: cfg,
		History: []domain.HistoryRecord{
			{
				ID:                1700000000000,
				Date:              "2025-12-17 10:30",
				Mode:              domain.ModeClassic,
				PrizeName:         "一等奖",
				Winners:           []domain.Participant{winner},
				TotalParticipants: 2,
			},
		},
	}
}

func TestFile_RoundTrip(t *testing.T) {
	ctx := context.Background()

	f, err := NewFile(t.TempDir())
	require.NoError(t, err)

	_, ok, err := f.Load(ctx)
	require.NoError(t, err)
	require.False(t, ok, "empty data dir means nothing was ever saved")

	want := sampleSnapshot()
	require.NoError(t, f.Save(ctx, want))

	got, ok, err := f.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want.Roster, got.Roster)
	assert.Equal(t, want.Config, got.Config)
	assert.Equal(t, want.History, got.History)
}

func TestFile_LegacyHistoryIsDiscarded(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	f, err := NewFile(dir)
	require.NoError(t, err)
	require.NoError(t, f.Save(ctx, sampleSnapshot()))

	// History written by an older build stored winners as bare name strings.
	legacy := `[{"id":1,"date":"2024-01-01 09:00","mode":"classic","winners":["张伟","李娜"],"totalParticipants":5}]`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "history.json"), []byte(legacy), 0o644))

	got, ok, err := f.Load(ctx)
	require.NoError(t, err, "legacy history must not fail the whole load")
	require.True(t, ok)
	assert.Empty(t, got.History)
	assert.Len(t, got.Roster, 3, "roster and config still load")
}

func TestFile_UnreadableHistoryIsDiscarded(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	f, err := NewFile(dir)
	require.NoError(t, err)
	require.NoError(t, f.Save(ctx, sampleSnapshot()))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "history.json"), []byte("{not json"), 0o644))

	got, ok, err := f.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Empty(t, got.History)
}

func TestFile_RosterAloneStillCounts(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	f, err := NewFile(dir)
	require.NoError(t, err)

	// No config.json, but a roster survived. It must load rather than be
	// shadowed and clobbered by the next save.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "participants.json"), []byte(`[{"id":1,"name":"张伟","weight":1}]`), 0o644))

	got, ok, err := f.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, got.Roster, 1)
	assert.Equal(t, domain.DefaultConfig(), got.Config)
}

func TestFile_MissingConfigDefaults(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	f, err := NewFile(dir)
	require.NoError(t, err)

	// A config file with only a roster alongside still loads, with the
	// config falling back to the defaults.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte("{}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "participants.json"), []byte(`[{"id":1,"name":"a","weight":1}]`), 0o644))

	got, ok, err := f.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, got.Roster, 1)
	assert.Equal(t, domain.DefaultConfig().TournamentRounds, got.Config.TournamentRounds)
}
