package progress

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sysu-ecnc-dev/dragon-boat-lineup/backend/internal/config"
)

// 只有持有者才能释放锁，防止过期后误删其他任务的锁
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// 续期自己持有的锁；锁已过期时重新加锁，被其他任务持有时返回 0
var refreshScript = redis.NewScript(`
local holder = redis.call("GET", KEYS[1])
if holder == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
if not holder then
	redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2])
	return 1
end
return 0
`)

func lockKey(sessionID string) string {
	return fmt.Sprintf("search_lock_%s", sessionID)
}

func progressKey(jobID string) string {
	return fmt.Sprintf("search_progress_%s", jobID)
}

// Store 在 redis 中保存搜索进度和每支队伍的搜索锁
type Store struct {
	cfg *config.Config
	rdb *redis.Client
}

func NewStore(cfg *config.Config, rdb *redis.Client) *Store {
	return &Store{
		cfg: cfg,
		rdb: rdb,
	}
}

// AcquireLock 尝试为队伍加上搜索锁，锁已被其他任务持有时返回 false
func (s *Store) AcquireLock(ctx context.Context, sessionID, jobID string) (bool, error) {
	expiration := time.Duration(s.cfg.Redis.LockExpiration) * time.Second
	return s.rdb.SetNX(ctx, lockKey(sessionID), jobID, expiration).Result()
}

func (s *Store) ReleaseLock(ctx context.Context, sessionID, jobID string) error {
	return releaseScript.Run(ctx, s.rdb, []string{lockKey(sessionID)}, jobID).Err()
}

// RefreshLock 重置搜索锁的过期时间，锁已被其他任务持有时返回 false
func (s *Store) RefreshLock(ctx context.Context, sessionID, jobID string) (bool, error) {
	expiration := time.Duration(s.cfg.Redis.LockExpiration) * time.Second
	n, err := refreshScript.Run(ctx, s.rdb, []string{lockKey(sessionID)}, jobID, expiration.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// LockHolder 返回持有锁的任务 ID，没有加锁时返回空字符串
func (s *Store) LockHolder(ctx context.Context, sessionID string) (string, error) {
	jobID, err := s.rdb.Get(ctx, lockKey(sessionID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return jobID, err
}

func (s *Store) SetProgress(ctx context.Context, jobID string, fraction float64) error {
	expiration := time.Duration(s.cfg.Redis.ProgressExpiration) * time.Second
	return s.rdb.Set(ctx, progressKey(jobID), strconv.FormatFloat(clamp(fraction), 'f', 4, 64), expiration).Err()
}

// GetProgress 返回 [0, 1] 之间的进度，没有记录时返回 0
func (s *Store) GetProgress(ctx context.Context, jobID string) (float64, error) {
	val, err := s.rdb.Get(ctx, progressKey(jobID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(val, 64)
}

func clamp(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}
