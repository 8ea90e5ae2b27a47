package cache

import (
	"context"
	"time"
)

// KVStore is the key-value surface the tenant state layer runs on. All
// operations are context-bounded and best-effort: implementations degrade
// instead of surfacing transport failures to the engine.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error

	// Capped list operations, used for the per-tenant deployment-event log.
	RPush(ctx context.Context, key string, value string, ttl time.Duration, maxLen int) error
	LRange(ctx context.Context, key string) ([]string, error)
}

// opTimeout bounds every individual store operation so a wedged backend can
// never stall an analysis stage.
const opTimeout = 500 * time.Millisecond

func boundedCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, opTimeout)
}
