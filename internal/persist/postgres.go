package persist

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres stores each document as a JSONB row in a single table, for
// deployments that want the state to survive the host machine.
type Postgres struct {
	db *pgxpool.Pool
}

func NewPostgres(ctx context.Context, db *pgxpool.Pool) (*Postgres, error) {
	const ddl = `
CREATE TABLE IF NOT EXISTS documents (
	name        TEXT PRIMARY KEY,
	body        JSONB NOT NULL,
	update_time TIMESTAMPTZ NOT NULL DEFAULT now()
);`

	if _, err := db.Exec(ctx, ddl); err != nil {
		return nil, fmt.Errorf("persist: ensure documents table: %w", err)
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Load(ctx context.Context) (Snapshot, bool, error) {
	configB, err := p.selectOptional(ctx, docConfig)
	if err != nil {
		return Snapshot{}, false, err
	}
	rosterB, err := p.selectOptional(ctx, docRoster)
	if err != nil {
		return Snapshot{}, false, err
	}
	historyB, err := p.selectOptional(ctx, docHistory)
	if err != nil {
		return Snapshot{}, false, err
	}

	if configB == nil && rosterB == nil && historyB == nil {
		return Snapshot{}, false, nil
	}

	s, err := decodeDocs(ctx, rosterB, configB, historyB)
	if err != nil {
		return Snapshot{}, false, err
	}
	return s, true, nil
}

func (p *Postgres) Save(ctx context.Context, s Snapshot) (err error) {
	rosterB, configB, historyB, err := encodeDocs(s)
	if err != nil {
		return err
	}

	tx, err := p.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("persist: begin: %w", err)
	}
	defer func() {
		if err != nil {
			err = stderrors.Join(err, tx.Rollback(ctx))
		}
	}()

	const stmt = `
INSERT INTO documents (name, body, update_time) VALUES ($1, $2, now())
ON CONFLICT (name) DO UPDATE SET body = EXCLUDED.body, update_time = now();`

	for doc, b := range map[string][]byte{
		docRoster:  rosterB,
		docConfig:  configB,
		docHistory: historyB,
	} {
		if _, err = tx.Exec(ctx, stmt, doc, b); err != nil {
			return fmt.Errorf("persist: upsert %s: %w", doc, err)
		}
	}

	return tx.Commit(ctx)
}

func (p *Postgres) selectOptional(ctx context.Context, doc string) ([]byte, error) {
	const stmt = `SELECT body FROM documents WHERE name = $1;`

	var b []byte
	err := p.db.QueryRow(ctx, stmt, doc).Scan(&b)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("persist: select %s: %w", doc, err)
	}
	return b, nil
}
