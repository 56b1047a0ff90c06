package worker

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/dragon-boat-lineup/backend/internal/config"
	"github.com/sysu-ecnc-dev/dragon-boat-lineup/backend/internal/domain"
	"github.com/sysu-ecnc-dev/dragon-boat-lineup/backend/internal/metrics"
)

type fakeStore struct {
	sessions map[string]*domain.Session
	jobs     map[string]*domain.SearchJob
	lineups  map[string][]*domain.LineupCandidate
	plans    map[string][]*domain.RacePlan
	updates  []domain.SearchJobStatus

	// failUpdate 为第几次 UpdateSearchJob 调用返回错误，从 1 开始
	failUpdate int
	calls      int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		sessions: make(map[string]*domain.Session),
		jobs:     make(map[string]*domain.SearchJob),
		lineups:  make(map[string][]*domain.LineupCandidate),
		plans:    make(map[string][]*domain.RacePlan),
	}
}

func (s *fakeStore) GetSessionByID(id string) (*domain.Session, error) {
	if session, ok := s.sessions[id]; ok {
		return session, nil
	}
	return nil, sql.ErrNoRows
}

func (s *fakeStore) GetSearchJob(id string) (*domain.SearchJob, error) {
	if job, ok := s.jobs[id]; ok {
		return job, nil
	}
	return nil, sql.ErrNoRows
}

func (s *fakeStore) UpdateSearchJob(job *domain.SearchJob) error {
	s.calls++
	if s.calls == s.failUpdate {
		return errors.New("db down")
	}
	s.updates = append(s.updates, job.Status)
	job.Version++
	s.jobs[job.ID] = job
	return nil
}

func (s *fakeStore) GetSavedLineups(sessionID string) ([]*domain.LineupCandidate, error) {
	return s.lineups[sessionID], nil
}

func (s *fakeStore) ReplaceSavedLineups(sessionID string, lineups []*domain.LineupCandidate) error {
	s.lineups[sessionID] = lineups
	return nil
}

func (s *fakeStore) ReplaceRacePlans(sessionID string, plans []*domain.RacePlan) error {
	s.plans[sessionID] = plans
	return nil
}

type fakeProgress struct {
	mu        sync.Mutex
	progress  map[string]float64
	released  []string
	refreshed int
	lost      bool // 锁已被其他任务持有
}

func newFakeProgress() *fakeProgress {
	return &fakeProgress{progress: make(map[string]float64)}
}

func (p *fakeProgress) SetProgress(_ context.Context, jobID string, fraction float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.progress[jobID] = fraction
	return nil
}

func (p *fakeProgress) RefreshLock(_ context.Context, _, _ string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refreshed++
	return !p.lost, nil
}

func (p *fakeProgress) ReleaseLock(_ context.Context, sessionID, _ string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.released = append(p.released, sessionID)
	return nil
}

type fakePublisher struct {
	messages []domain.MailMessage
}

func (p *fakePublisher) PublishMail(_ context.Context, msg domain.MailMessage) error {
	p.messages = append(p.messages, msg)
	return nil
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.RabbitMQ.PublishTimeout = 1
	cfg.Redis.OperationExpiration = 1
	cfg.Redis.LockExpiration = 1800
	cfg.Worker.JobTimeout = 60
	cfg.Worker.ProgressInterval = 1
	cfg.Search.CombinationCeiling = 1_000_000
	cfg.Search.SavedLineupLimit = 200
	cfg.Search.ExhaustiveCeiling = 5_000_000
	cfg.Search.SampleLimit = 1_000_000
	cfg.Search.SampleTarget = 5000
	cfg.Search.ZeroResultCutoff = 100_000
	cfg.Search.TopLineupCount = 20
	cfg.Search.TopLineupBias = 0.7
	cfg.Search.RacePlanLimit = 1000
	cfg.Search.SavedRacePlanLimit = 10
	return cfg
}

type fixture struct {
	store     *fakeStore
	progress  *fakeProgress
	publisher *fakePublisher
	worker    *Worker
}

func newFixture() *fixture {
	f := &fixture{
		store:     newFakeStore(),
		progress:  newFakeProgress(),
		publisher: &fakePublisher{},
	}
	f.worker = New(testConfig(), f.store, f.progress, f.publisher, metrics.New(prometheus.NewRegistry()))
	return f
}

func (f *fixture) addJob(t *testing.T, sessionID string, kind domain.SearchJobKind, params any, email string) *domain.SearchJob {
	t.Helper()

	raw, err := json.Marshal(params)
	require.NoError(t, err)

	job := &domain.SearchJob{
		ID:          fmt.Sprintf("job-%d", len(f.store.jobs)+1),
		SessionID:   sessionID,
		Kind:        kind,
		Status:      domain.SearchJobPending,
		Params:      raw,
		NotifyEmail: email,
	}
	f.store.jobs[job.ID] = job
	return job
}

// enumerationSession 有 22 名桨手：6 名只划左边，6 名只划右边，10 名两边都可以
func enumerationSession(t *testing.T) *domain.Session {
	t.Helper()

	rng := rand.New(rand.NewSource(3))
	s := domain.NewSession("珠江龙舟队")
	for i := 0; i < 22; i++ {
		side := domain.SideBoth
		switch {
		case i < 6:
			side = domain.SideLeft
		case i < 12:
			side = domain.SideRight
		}
		require.NoError(t, s.AddPaddler(&domain.Paddler{
			ID:     fmt.Sprintf("p%02d", i),
			Name:   fmt.Sprintf("桨手%02d", i),
			Weight: float64(550+rng.Intn(300)) / 10,
			Side:   side,
			Gender: domain.GenderMale,
		}))
	}
	return s
}

// racePool 生成 6 个阵容，第 g 个阵容不包含第 4g 到 4g+3 名桨手
func racePool(sessionID string) []*domain.LineupCandidate {
	roster := make([]*domain.Paddler, 24)
	for i := range roster {
		roster[i] = &domain.Paddler{
			ID:        fmt.Sprintf("p%02d", i),
			Name:      fmt.Sprintf("桨手%02d", i),
			Weight:    60 + float64(i%5),
			Side:      domain.SideBoth,
			Gender:    domain.GenderMale,
			TTResults: float64(100 + i),
		}
	}

	pool := make([]*domain.LineupCandidate, 0, 6)
	for g := 0; g < 6; g++ {
		var boat domain.Boat
		seat := 0
		for i, p := range roster {
			if i/4 == g {
				continue
			}
			boat[seat/domain.Sides][seat%domain.Sides] = p
			seat++
		}
		pool = append(pool, domain.NewLineupCandidate(sessionID, boat, roster))
	}
	return pool
}

func TestHandleEnumerateLineups(t *testing.T) {
	f := newFixture()
	s := enumerationSession(t)
	f.store.sessions[s.ID] = s

	job := f.addJob(t, s.ID, domain.SearchJobEnumerateLineups, domain.EnumerateLineupsParams{
		MaxWeightDifference: 100,
		MinMalePaddlers:     0,
		MaxMalePaddlers:     20,
	}, "")

	require.NoError(t, f.worker.Handle(context.Background(), job.ID, false))

	assert.Equal(t, domain.SearchJobSucceeded, job.Status)
	assert.Empty(t, job.Error)
	assert.NotNil(t, job.FinishedAt)
	assert.Positive(t, job.ResultCount)
	assert.Equal(t, []domain.SearchJobStatus{domain.SearchJobRunning, domain.SearchJobSucceeded}, f.store.updates)

	pool := f.store.lineups[s.ID]
	require.NotEmpty(t, pool)
	assert.LessOrEqual(t, len(pool), 200)

	assert.Equal(t, []string{s.ID}, f.progress.released)
	assert.Equal(t, 1.0, f.progress.progress[job.ID])
}

func TestHandleEnumerateMergesIntoExistingPool(t *testing.T) {
	f := newFixture()
	s := enumerationSession(t)
	f.store.sessions[s.ID] = s

	params := domain.EnumerateLineupsParams{MaxWeightDifference: 100, MaxMalePaddlers: 20}
	first := f.addJob(t, s.ID, domain.SearchJobEnumerateLineups, params, "")
	require.NoError(t, f.worker.Handle(context.Background(), first.ID, false))
	before := len(f.store.lineups[s.ID])

	second := f.addJob(t, s.ID, domain.SearchJobEnumerateLineups, params, "")
	require.NoError(t, f.worker.Handle(context.Background(), second.ID, false))

	// 同样的参数得到同样的阵容，去重后数量不变
	assert.Len(t, f.store.lineups[s.ID], before)
}

func TestHandlePlanRaces(t *testing.T) {
	f := newFixture()
	s := domain.NewSession("珠江龙舟队")
	f.store.sessions[s.ID] = s
	f.store.lineups[s.ID] = racePool(s.ID)

	job := f.addJob(t, s.ID, domain.SearchJobPlanRaces, domain.PlanRacesParams{
		NumRaces:           3,
		MinRacesPerPaddler: 2,
		Seed:               1,
	}, "coach@example.com")

	require.NoError(t, f.worker.Handle(context.Background(), job.ID, false))

	// 3 场比赛必须使用 3 个不同的阵容，共 C(6, 3) 个方案
	assert.Equal(t, domain.SearchJobSucceeded, job.Status)
	assert.Equal(t, 20, job.ResultCount)

	plans := f.store.plans[s.ID]
	require.Len(t, plans, 10)
	for i := 1; i < len(plans); i++ {
		assert.GreaterOrEqual(t, plans[i-1].TotalScore(), plans[i].TotalScore())
	}
	for _, plan := range plans {
		assert.GreaterOrEqual(t, plan.Stats.MinRaces, 2)
	}

	require.Len(t, f.publisher.messages, 1)
	msg := f.publisher.messages[0]
	assert.Equal(t, domain.MailTypeRacePlansReady, msg.Type)
	assert.Equal(t, "coach@example.com", msg.To)

	data, ok := msg.Data.(domain.RacePlansReadyMailData)
	require.True(t, ok)
	assert.Equal(t, 10, data.PlanCount)
	assert.Equal(t, "珠江龙舟队", data.SessionName)
	assert.Equal(t, "zhujianglongzhoudui-race-plans.csv", data.AttachmentName)
	assert.True(t, strings.HasPrefix(string(data.Attachment), "Plan,Race,Position"))
}

func TestHandleImpossibleConstraintsFailsJob(t *testing.T) {
	f := newFixture()
	s := domain.NewSession("测试队")
	f.store.sessions[s.ID] = s
	f.store.lineups[s.ID] = racePool(s.ID)

	job := f.addJob(t, s.ID, domain.SearchJobPlanRaces, domain.PlanRacesParams{
		NumRaces:           3,
		MinRacesPerPaddler: 4,
	}, "coach@example.com")

	require.NoError(t, f.worker.Handle(context.Background(), job.ID, false))

	assert.Equal(t, domain.SearchJobFailed, job.Status)
	assert.Contains(t, job.Error, domain.ErrImpossibleConstraints.Error())
	assert.Empty(t, f.store.plans[s.ID])
	assert.Empty(t, f.publisher.messages)
	assert.Equal(t, []string{s.ID}, f.progress.released)
}

func TestHandleNoValidResults(t *testing.T) {
	f := newFixture()
	s := enumerationSession(t)
	f.store.sessions[s.ID] = s

	// 名单中全是男性，男性人数上限为 0 时没有合法阵容
	job := f.addJob(t, s.ID, domain.SearchJobEnumerateLineups, domain.EnumerateLineupsParams{
		MaxWeightDifference: 100,
		MinMalePaddlers:     0,
		MaxMalePaddlers:     0,
	}, "")

	require.NoError(t, f.worker.Handle(context.Background(), job.ID, false))
	assert.Equal(t, domain.SearchJobNoResults, job.Status)
	assert.Zero(t, job.ResultCount)
	assert.Empty(t, f.store.lineups[s.ID])
}

func TestHandleIgnoresFinishedJob(t *testing.T) {
	f := newFixture()
	job := f.addJob(t, "s", domain.SearchJobPlanRaces, domain.PlanRacesParams{}, "")
	job.Status = domain.SearchJobSucceeded

	require.NoError(t, f.worker.Handle(context.Background(), job.ID, false))
	assert.Empty(t, f.store.updates)
	assert.Empty(t, f.progress.released)
}

func TestHandleMissingJob(t *testing.T) {
	f := newFixture()
	require.ErrorIs(t, f.worker.Handle(context.Background(), "missing", false), sql.ErrNoRows)
}

// stillRunning 还原保存失败后数据库中的任务状态
func stillRunning(job *domain.SearchJob) {
	job.Status = domain.SearchJobRunning
	job.Error = ""
	job.FinishedAt = nil
}

func TestHandleKeepsLockWhenRetried(t *testing.T) {
	f := newFixture()
	s := domain.NewSession("珠江龙舟队")
	f.store.sessions[s.ID] = s
	f.store.lineups[s.ID] = racePool(s.ID)
	params := domain.PlanRacesParams{NumRaces: 3, MinRacesPerPaddler: 2, Seed: 1}

	// 保存最终状态失败，消息会重新入队，锁留给重试的任务
	job := f.addJob(t, s.ID, domain.SearchJobPlanRaces, params, "")
	f.store.failUpdate = 2
	require.Error(t, f.worker.Handle(context.Background(), job.ID, false))
	assert.Empty(t, f.progress.released)
	stillRunning(job)

	// 重试时任务仍然是 running，再次失败后不会再重试，释放锁
	f.store.calls = 0
	require.Error(t, f.worker.Handle(context.Background(), job.ID, true))
	assert.Equal(t, []string{s.ID}, f.progress.released)
	stillRunning(job)

	// 重试成功
	f.store.failUpdate = 0
	f.progress.released = nil
	require.NoError(t, f.worker.Handle(context.Background(), job.ID, false))
	assert.Equal(t, domain.SearchJobSucceeded, job.Status)
	assert.Equal(t, []string{s.ID}, f.progress.released)
}

func TestHandleRefreshesLockBeforeRunning(t *testing.T) {
	f := newFixture()
	s := domain.NewSession("珠江龙舟队")
	f.store.sessions[s.ID] = s
	f.store.lineups[s.ID] = racePool(s.ID)

	job := f.addJob(t, s.ID, domain.SearchJobPlanRaces, domain.PlanRacesParams{NumRaces: 3, MinRacesPerPaddler: 2, Seed: 1}, "")
	require.NoError(t, f.worker.Handle(context.Background(), job.ID, false))
	assert.GreaterOrEqual(t, f.progress.refreshed, 1)
}

func TestHandleLockHeldByAnotherJob(t *testing.T) {
	f := newFixture()
	s := enumerationSession(t)
	f.store.sessions[s.ID] = s
	f.progress.lost = true

	job := f.addJob(t, s.ID, domain.SearchJobEnumerateLineups, domain.EnumerateLineupsParams{MaxWeightDifference: 100, MaxMalePaddlers: 20}, "")
	require.NoError(t, f.worker.Handle(context.Background(), job.ID, false))

	assert.Equal(t, domain.SearchJobFailed, job.Status)
	assert.Equal(t, domain.ErrSearchInProgress.Error(), job.Error)
	assert.Empty(t, f.store.lineups[s.ID])
	// 锁不属于这个任务，不能释放
	assert.Empty(t, f.progress.released)
}

func TestHandleNegativeSavedPlanLimit(t *testing.T) {
	f := newFixture()
	f.worker.cfg.Search.SavedRacePlanLimit = -1
	s := domain.NewSession("珠江龙舟队")
	f.store.sessions[s.ID] = s
	f.store.lineups[s.ID] = racePool(s.ID)

	job := f.addJob(t, s.ID, domain.SearchJobPlanRaces, domain.PlanRacesParams{NumRaces: 3, MinRacesPerPaddler: 2, Seed: 1}, "")
	require.NotPanics(t, func() {
		require.NoError(t, f.worker.Handle(context.Background(), job.ID, false))
	})
	assert.Empty(t, f.store.plans[s.ID])
}

func TestReporterRefreshesLock(t *testing.T) {
	p := newFakeProgress()
	r := newProgressReporter(p, "s", "job-1", 10*time.Millisecond, 30*time.Millisecond, nil)
	r.Start(context.Background())

	require.Eventually(t, func() bool {
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.refreshed >= 2
	}, time.Second, 5*time.Millisecond)
	r.Stop()
}

func TestReporterStopsSearchWhenLockLost(t *testing.T) {
	p := newFakeProgress()
	p.lost = true

	ctx, cancel := context.WithCancelCause(context.Background())
	defer cancel(nil)
	r := newProgressReporter(p, "s", "job-1", 10*time.Millisecond, 30*time.Millisecond, func() {
		cancel(domain.ErrSearchInProgress)
	})
	r.Start(ctx)

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("search was not stopped")
	}
	r.Stop()
	assert.ErrorIs(t, context.Cause(ctx), domain.ErrSearchInProgress)
}
