package cache

import (
	"context"
	"sync"
	"time"

	"github.com/platformbuilds/becertain-core/pkg/logger"
)

// autoSwapStore starts on the in-memory fallback and keeps redialing the
// configured Redis/Valkey node in the background. Once a dial succeeds it
// swaps the active backend; if a later operation reports a transport error
// the next redial cycle takes over again. Swap is transparent to callers.
type autoSwapStore struct {
	mu     sync.RWMutex
	active KVStore
	remote bool

	addr     string
	db       int
	password string
	cooldown time.Duration
	logger   logger.Logger

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewAutoSwapStore returns a KVStore that prefers the remote backend at addr
// and degrades to a capped in-memory store while it is unreachable. Redial
// attempts are spaced by cooldown (default 10s).
func NewAutoSwapStore(addr string, db int, password string, cooldown time.Duration, maxFallbackItems int, log logger.Logger) KVStore {
	if cooldown <= 0 {
		cooldown = 10 * time.Second
	}
	s := &autoSwapStore{
		active:   NewMemoryStore(maxFallbackItems, log),
		addr:     addr,
		db:       db,
		password: password,
		cooldown: cooldown,
		logger:   log,
		stopCh:   make(chan struct{}),
	}

	if remote, err := NewRedisStore(addr, db, password, log); err == nil {
		s.active = remote
		s.remote = true
		log.Info("connected to tenant state store", "addr", addr)
	} else {
		log.Warn("tenant state store unreachable, using in-memory fallback", "addr", addr, "error", err)
		go s.redialLoop()
	}

	return s
}

func (s *autoSwapStore) redialLoop() {
	ticker := time.NewTicker(s.cooldown)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.mu.RLock()
			connected := s.remote
			s.mu.RUnlock()
			if connected {
				return
			}
			remote, err := NewRedisStore(s.addr, s.db, s.password, s.logger)
			if err != nil {
				s.logger.Debug("state store redial failed", "addr", s.addr, "error", err)
				continue
			}
			s.mu.Lock()
			s.active = remote
			s.remote = true
			s.mu.Unlock()
			s.logger.Info("tenant state store reconnected", "addr", s.addr)
			return
		}
	}
}

// Stop terminates the background redial loop. Safe to call more than once.
func (s *autoSwapStore) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

func (s *autoSwapStore) backend() KVStore {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

func (s *autoSwapStore) Get(ctx context.Context, key string) ([]byte, error) {
	return s.backend().Get(ctx, key)
}

func (s *autoSwapStore) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return s.backend().Set(ctx, key, value, ttl)
}

func (s *autoSwapStore) Delete(ctx context.Context, key string) error {
	return s.backend().Delete(ctx, key)
}

func (s *autoSwapStore) RPush(ctx context.Context, key string, value string, ttl time.Duration, maxLen int) error {
	return s.backend().RPush(ctx, key, value, ttl, maxLen)
}

func (s *autoSwapStore) LRange(ctx context.Context, key string) ([]string, error) {
	return s.backend().LRange(ctx, key)
}
