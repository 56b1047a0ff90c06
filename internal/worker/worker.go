package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/sysu-ecnc-dev/dragon-boat-lineup/backend/internal/config"
	"github.com/sysu-ecnc-dev/dragon-boat-lineup/backend/internal/domain"
	"github.com/sysu-ecnc-dev/dragon-boat-lineup/backend/internal/export"
	"github.com/sysu-ecnc-dev/dragon-boat-lineup/backend/internal/metrics"
	"github.com/sysu-ecnc-dev/dragon-boat-lineup/backend/internal/scheduler"
	"github.com/sysu-ecnc-dev/dragon-boat-lineup/backend/internal/utils"
)

// Store 为 worker 需要的持久化操作，由 repository.Repository 实现
type Store interface {
	GetSessionByID(id string) (*domain.Session, error)
	GetSearchJob(id string) (*domain.SearchJob, error)
	UpdateSearchJob(job *domain.SearchJob) error
	GetSavedLineups(sessionID string) ([]*domain.LineupCandidate, error)
	ReplaceSavedLineups(sessionID string, lineups []*domain.LineupCandidate) error
	ReplaceRacePlans(sessionID string, plans []*domain.RacePlan) error
}

// ProgressStore 由 progress.Store 实现
type ProgressStore interface {
	SetProgress(ctx context.Context, jobID string, fraction float64) error
	RefreshLock(ctx context.Context, sessionID, jobID string) (bool, error)
	ReleaseLock(ctx context.Context, sessionID, jobID string) error
}

type Publisher interface {
	PublishMail(ctx context.Context, msg domain.MailMessage) error
}

type Worker struct {
	cfg       *config.Config
	store     Store
	progress  ProgressStore
	publisher Publisher
	metrics   *metrics.Metrics
}

func New(cfg *config.Config, store Store, progress ProgressStore, publisher Publisher, m *metrics.Metrics) *Worker {
	return &Worker{
		cfg:       cfg,
		store:     store,
		progress:  progress,
		publisher: publisher,
		metrics:   m,
	}
}

// Handle 执行一个搜索任务，lastAttempt 为 true 时失败的消息不会再重新入队
// 搜索本身的失败记录在任务状态中，只有读写任务失败时才返回错误
// 返回错误且消息还会重试时保留搜索锁，由重试的任务继续持有
func (w *Worker) Handle(ctx context.Context, jobID string, lastAttempt bool) (err error) {
	job, err := w.store.GetSearchJob(jobID)
	if err != nil {
		return fmt.Errorf("无法读取搜索任务 %s: %w", jobID, err)
	}
	if job.Finished() {
		slog.Warn("搜索任务已经完成，忽略重复的消息", "job", job.ID, "status", job.Status)
		return nil
	}

	owned := true
	defer func() {
		if !owned || (err != nil && !lastAttempt) {
			return
		}
		if err := w.progress.ReleaseLock(context.Background(), job.SessionID, job.ID); err != nil {
			slog.Error("无法释放搜索锁", "session", job.SessionID, "job", job.ID, "error", err)
		}
	}()

	// 任务在队列中等待的时间也计入了锁的过期时间，开始前先续期
	held, err := w.refreshLock(job)
	if err != nil {
		return fmt.Errorf("无法续期搜索锁 %s: %w", job.ID, err)
	}
	if !held {
		owned = false
		slog.Error("搜索锁已被其他任务持有，放弃执行", "job", job.ID, "session", job.SessionID)
		return w.finish(job, 0, domain.ErrSearchInProgress)
	}

	job.Status = domain.SearchJobRunning
	if err := w.store.UpdateSearchJob(job); err != nil {
		return fmt.Errorf("无法更新搜索任务 %s: %w", job.ID, err)
	}

	logger := slog.With("job", job.ID, "session", job.SessionID, "kind", job.Kind)
	logger.Info("开始执行搜索任务")

	jobCtx, cancel := context.WithTimeout(ctx, time.Duration(w.cfg.Worker.JobTimeout)*time.Second)
	defer cancel()
	runCtx, abort := context.WithCancelCause(jobCtx)
	defer abort(nil)

	done := w.metrics.SearchStarted(string(job.Kind))
	reporter := newProgressReporter(w.progress, job.SessionID, job.ID,
		time.Duration(w.cfg.Worker.ProgressInterval)*time.Second,
		time.Duration(w.cfg.Redis.LockExpiration)*time.Second,
		func() { abort(domain.ErrSearchInProgress) },
	)
	reporter.Start(runCtx)

	var count int
	var searchErr error
	switch job.Kind {
	case domain.SearchJobEnumerateLineups:
		count, searchErr = w.enumerateLineups(runCtx, job, reporter.Report)
	case domain.SearchJobPlanRaces:
		count, searchErr = w.planRaces(runCtx, job, reporter.Report)
	default:
		searchErr = fmt.Errorf("未知的搜索类型 %s", job.Kind)
	}
	reporter.Stop()

	if searchErr != nil && errors.Is(context.Cause(runCtx), domain.ErrSearchInProgress) {
		owned = false
		searchErr = fmt.Errorf("%w: 搜索锁已失效", domain.ErrSearchInProgress)
	}
	if searchErr == nil {
		if err := w.progress.SetProgress(context.Background(), job.ID, 1); err != nil {
			logger.Error("无法写入搜索进度", "error", err)
		}
	}

	err = w.finish(job, count, searchErr)
	done(string(job.Status), count)
	logger.Info("搜索任务结束", "status", job.Status, "results", count, "error", job.Error)
	return err
}

func (w *Worker) refreshLock(job *domain.SearchJob) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(w.cfg.Redis.OperationExpiration)*time.Second)
	defer cancel()

	return w.progress.RefreshLock(ctx, job.SessionID, job.ID)
}

// finish 根据搜索结果设置任务的最终状态并保存
func (w *Worker) finish(job *domain.SearchJob, count int, searchErr error) error {
	now := time.Now()
	job.FinishedAt = &now
	job.ResultCount = count
	switch {
	case searchErr == nil:
		job.Status = domain.SearchJobSucceeded
	case errors.Is(searchErr, domain.ErrNoValidResults):
		job.Status = domain.SearchJobNoResults
		job.Error = searchErr.Error()
	default:
		job.Status = domain.SearchJobFailed
		job.Error = searchErr.Error()
	}

	if err := w.store.UpdateSearchJob(job); err != nil {
		return fmt.Errorf("无法更新搜索任务 %s: %w", job.ID, err)
	}
	return nil
}

func (w *Worker) enumerateLineups(ctx context.Context, job *domain.SearchJob, report scheduler.ProgressFunc) (int, error) {
	var params domain.EnumerateLineupsParams
	if err := json.Unmarshal(job.Params, &params); err != nil {
		return 0, fmt.Errorf("%w: 无法解析枚举参数: %w", domain.ErrValidation, err)
	}

	session, err := w.store.GetSessionByID(job.SessionID)
	if err != nil {
		return 0, err
	}

	parameters := scheduler.DefaultEnumeratorParameters()
	parameters.MaxWeightDifference = params.MaxWeightDifference
	parameters.MinMalePaddlers = params.MinMalePaddlers
	parameters.MaxMalePaddlers = params.MaxMalePaddlers
	parameters.CombinationCeiling = w.cfg.Search.CombinationCeiling
	parameters.ResultLimit = w.cfg.Search.SavedLineupLimit

	e, err := scheduler.NewEnumerator(parameters, session.ID, session.Paddlers, session.Boat, session.Pins)
	if err != nil {
		return 0, err
	}

	results, found, err := e.Enumerate(ctx, report)
	if err != nil {
		return 0, err
	}

	pool, err := w.store.GetSavedLineups(session.ID)
	if err != nil {
		return 0, err
	}
	merged := scheduler.MergeIntoPool(pool, results, w.cfg.Search.SavedLineupLimit)
	if err := w.store.ReplaceSavedLineups(session.ID, merged); err != nil {
		return 0, fmt.Errorf("阵容保存失败: %w", err)
	}

	slog.Info("阵容枚举完成", "session", session.ID, "found", found, "kept", len(results), "pool", len(merged))
	return found, nil
}

func (w *Worker) planRaces(ctx context.Context, job *domain.SearchJob, report scheduler.ProgressFunc) (int, error) {
	var params domain.PlanRacesParams
	if err := json.Unmarshal(job.Params, &params); err != nil {
		return 0, fmt.Errorf("%w: 无法解析比赛方案参数: %w", domain.ErrValidation, err)
	}

	pool, err := w.store.GetSavedLineups(job.SessionID)
	if err != nil {
		return 0, err
	}

	seed := params.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	parameters := scheduler.DefaultPlannerParameters()
	parameters.NumRaces = params.NumRaces
	parameters.MinRacesPerPaddler = params.MinRacesPerPaddler
	parameters.FixedLineups = params.FixedLineups
	parameters.ExhaustiveCeiling = w.cfg.Search.ExhaustiveCeiling
	parameters.SampleLimit = w.cfg.Search.SampleLimit
	parameters.SampleTarget = w.cfg.Search.SampleTarget
	parameters.ZeroResultCutoff = w.cfg.Search.ZeroResultCutoff
	parameters.TopLineupCount = w.cfg.Search.TopLineupCount
	parameters.TopLineupBias = w.cfg.Search.TopLineupBias
	parameters.ResultLimit = w.cfg.Search.RacePlanLimit
	parameters.Rand = rand.New(rand.NewSource(seed))

	pl, err := scheduler.NewPlanner(parameters, job.SessionID, pool)
	if err != nil {
		return 0, err
	}

	plans, err := pl.Plan(ctx, report)
	if err != nil {
		return 0, err
	}

	kept := plans[:min(len(plans), max(w.cfg.Search.SavedRacePlanLimit, 0))]
	if err := w.store.ReplaceRacePlans(job.SessionID, kept); err != nil {
		return 0, fmt.Errorf("比赛方案保存失败: %w", err)
	}

	if job.NotifyEmail != "" && len(kept) > 0 {
		w.notify(ctx, job, params, kept)
	}

	return len(plans), nil
}

// notify 发送通知邮件，失败只记录日志
func (w *Worker) notify(ctx context.Context, job *domain.SearchJob, params domain.PlanRacesParams, plans []*domain.RacePlan) {
	sessionName := ""
	if session, err := w.store.GetSessionByID(job.SessionID); err == nil {
		sessionName = session.Name
	}

	var buf bytes.Buffer
	if err := export.WriteRacePlans(&buf, plans); err != nil {
		slog.Error("无法导出比赛方案", "job", job.ID, "error", err)
		return
	}

	msg := domain.MailMessage{
		Type: domain.MailTypeRacePlansReady,
		To:   job.NotifyEmail,
		Data: domain.RacePlansReadyMailData{
			SessionID:   job.SessionID,
			SessionName: sessionName,
			JobID:       job.ID,
			PlanCount:   len(plans),
			BestScore:   plans[0].TotalScore(),
			NumRaces:    params.NumRaces,
			Sampled:     plans[0].Sampled,

			AttachmentName: fmt.Sprintf("%s-race-plans.csv", utils.PinyinSlug(sessionName)),
			Attachment:     buf.Bytes(),
		},
	}

	publishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Duration(w.cfg.RabbitMQ.PublishTimeout)*time.Second)
	defer cancel()

	if err := w.publisher.PublishMail(publishCtx, msg); err != nil {
		slog.Error("无法发送通知邮件", "job", job.ID, "to", job.NotifyEmail, "error", err)
	}
}
