package worker

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// progressReporter 在搜索线程中只记录最新进度，由单独的 goroutine 按固定间隔写入 redis
// 同一个 goroutine 还负责在任务执行期间续期队伍的搜索锁
type progressReporter struct {
	store     ProgressStore
	sessionID string
	jobID     string
	interval  time.Duration

	latest  atomic.Uint64 // math.Float64bits
	written float64

	lockEvery  time.Duration // 续期间隔，为 0 时不续期
	refreshed  time.Time
	onLockLost func()

	stop chan struct{}
	wg   sync.WaitGroup
}

// newProgressReporter 创建 reporter，锁在 lockTTL 的三分之一时间内续期一次
func newProgressReporter(store ProgressStore, sessionID, jobID string, interval, lockTTL time.Duration, onLockLost func()) *progressReporter {
	if interval <= 0 {
		interval = time.Second
	}
	return &progressReporter{
		store:      store,
		sessionID:  sessionID,
		jobID:      jobID,
		interval:   interval,
		written:    -1,
		lockEvery:  lockTTL / 3,
		refreshed:  time.Now(),
		onLockLost: onLockLost,
		stop:       make(chan struct{}),
	}
}

// Report 可以被搜索过程频繁调用，不会阻塞
func (r *progressReporter) Report(fraction float64) {
	r.latest.Store(math.Float64bits(fraction))
}

func (r *progressReporter) Start(ctx context.Context) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		tick := r.interval
		if r.lockEvery > 0 && r.lockEvery < tick {
			tick = r.lockEvery
		}
		ticker := time.NewTicker(tick)
		defer ticker.Stop()

		lastFlush := time.Now()
		for {
			select {
			case <-ctx.Done():
				return
			case <-r.stop:
				r.flush()
				return
			case <-ticker.C:
				if time.Since(lastFlush) >= r.interval {
					r.flush()
					lastFlush = time.Now()
				}
				r.keepLock()
			}
		}
	}()
}

// Stop 写入最后一次进度并等待 goroutine 退出
func (r *progressReporter) Stop() {
	close(r.stop)
	r.wg.Wait()
}

func (r *progressReporter) flush() {
	fraction := math.Float64frombits(r.latest.Load())
	if fraction == r.written {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.interval)
	defer cancel()

	if err := r.store.SetProgress(ctx, r.jobID, fraction); err != nil {
		slog.Warn("无法写入搜索进度", "job", r.jobID, "error", err)
		return
	}
	r.written = fraction
}

func (r *progressReporter) keepLock() {
	if r.lockEvery <= 0 || time.Since(r.refreshed) < r.lockEvery {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), max(r.interval, time.Second))
	defer cancel()

	held, err := r.store.RefreshLock(ctx, r.sessionID, r.jobID)
	if err != nil {
		// 下一次 tick 重试
		slog.Warn("无法续期搜索锁", "session", r.sessionID, "job", r.jobID, "error", err)
		return
	}
	r.refreshed = time.Now()

	if !held && r.onLockLost != nil {
		slog.Error("搜索锁已被其他任务持有，停止搜索", "session", r.sessionID, "job", r.jobID)
		r.onLockLost()
		r.onLockLost = nil
	}
}
