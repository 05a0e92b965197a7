package persist

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Redis stores each document under a prefixed key. It is the key-value
// fallback backend, the same role the browser store plays for the web
// build of the app.
type Redis struct {
	client redis.UniversalClient
	prefix string
}

func NewRedis(client redis.UniversalClient, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) key(doc string) string {
	return fmt.Sprintf("%s:%s", r.prefix, doc)
}

func (r *Redis) Load(ctx context.Context) (Snapshot, bool, error) {
	configB, err := r.getOptional(ctx, r.key(docConfig))
	if err != nil {
		return Snapshot{}, false, err
	}
	rosterB, err := r.getOptional(ctx, r.key(docRoster))
	if err != nil {
		return Snapshot{}, false, err
	}
	historyB, err := r.getOptional(ctx, r.key(docHistory))
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

func (r *Redis) Save(ctx context.Context, s Snapshot) error {
	rosterB, configB, historyB, err := encodeDocs(s)
	if err != nil {
		return err
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.key(docRoster), rosterB, 0)
	pipe.Set(ctx, r.key(docConfig), configB, 0)
	pipe.Set(ctx, r.key(docHistory), historyB, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("persist: redis save: %w", err)
	}
	return nil
}

func (r *Redis) getOptional(ctx context.Context, key string) ([]byte, error) {
	b, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("persist: redis get %s: %w", key, err)
	}
	return b, nil
}
