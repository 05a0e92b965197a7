package draw

import (
	"context"

	"github.com/minqi/luckydraw/internal/domain"
	"github.com/minqi/luckydraw/internal/roster"
)

// Roster operations are routed through the engine so they share its lock
// and its change events. The store itself stays a dumb list.

func (e *Engine) Participants(query string) []domain.Participant {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.roster.Search(query)
}

// RosterCounts reports total / active / excluded for the participants view
// header.
func (e *Engine) RosterCounts() (total, active, excluded int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.roster.Len(), e.roster.ActiveCount(), e.roster.ExcludedCount()
}

func (e *Engine) AddParticipant(ctx context.Context, name string, weight int) (domain.Participant, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.roster.Add(name, weight)
	if ok {
		e.publish(ctx, domain.EventStateChanged{Reason: "roster.add"})
	}
	return p, ok
}

func (e *Engine) RemoveParticipant(ctx context.Context, id int64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.roster.Remove(id) {
		e.publish(ctx, domain.EventStateChanged{Reason: "roster.remove"})
	}
}

func (e *Engine) ToggleExclude(ctx context.Context, id int64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.roster.ToggleExclude(id) {
		e.publish(ctx, domain.EventStateChanged{Reason: "roster.toggle"})
	}
}

func (e *Engine) RestoreAll(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.roster.RestoreAll()
	e.publish(ctx, domain.EventStateChanged{Reason: "roster.restore"})
}

func (e *Engine) ClearParticipants(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.roster.ClearAll()
	e.publish(ctx, domain.EventStateChanged{Reason: "roster.clear"})
}

// ImportParticipants parses and appends a bulk import payload. Parse errors
// leave the roster untouched; a parseable payload is partially accepted with
// invalid rows counted in the report.
func (e *Engine) ImportParticipants(ctx context.Context, data []byte) (roster.ImportReport, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	entries, err := roster.ParseImport(data)
	if err != nil {
		return roster.ImportReport{}, err
	}

	rep := e.roster.BulkImport(entries)
	if rep.Added > 0 {
		e.publish(ctx, domain.EventStateChanged{Reason: "roster.import"})
	}
	return rep, nil
}

func (e *Engine) ExportParticipants() ([]byte, string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.roster.ExportJSON()
}
