package handler

import (
	"context"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	zh_translations "github.com/go-playground/validator/v10/translations/zh"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sysu-ecnc-dev/dragon-boat-lineup/backend/internal/config"
	"github.com/sysu-ecnc-dev/dragon-boat-lineup/backend/internal/domain"
	"github.com/sysu-ecnc-dev/dragon-boat-lineup/backend/internal/metrics"
)

// Store 由 repository.Repository 实现
type Store interface {
	CreateSession(s *domain.Session) error
	GetSessionByID(id string) (*domain.Session, error)
	GetAllSessions() ([]*domain.Session, error)
	UpdateSession(s *domain.Session) error
	DeleteSession(id string) error

	GetSavedLineups(sessionID string) ([]*domain.LineupCandidate, error)
	GetSavedLineup(sessionID, lineupID string) (*domain.LineupCandidate, error)
	DeleteSavedLineup(sessionID, lineupID string) error

	GetRacePlans(sessionID string) ([]*domain.RacePlan, error)
	GetRacePlan(sessionID, planID string) (*domain.RacePlan, error)

	CreateSearchJob(job *domain.SearchJob) error
	GetSearchJob(id string) (*domain.SearchJob, error)
	UpdateSearchJob(job *domain.SearchJob) error
}

// SearchState 由 progress.Store 实现
type SearchState interface {
	AcquireLock(ctx context.Context, sessionID, jobID string) (bool, error)
	ReleaseLock(ctx context.Context, sessionID, jobID string) error
	LockHolder(ctx context.Context, sessionID string) (string, error)
	GetProgress(ctx context.Context, jobID string) (float64, error)
}

// JobPublisher 由 queue.Publisher 实现
type JobPublisher interface {
	PublishSearchJob(ctx context.Context, jobID string) error
}

type Handler struct {
	validate    *validator.Validate
	config      *config.Config
	repository  Store
	translator  ut.Translator
	publisher   JobPublisher
	searchState SearchState
	metrics     *metrics.Metrics

	Mux *chi.Mux
}

func NewHandler(cfg *config.Config, repo Store, publisher JobPublisher, searchState SearchState, m *metrics.Metrics) (*Handler, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	zh := zh.New()
	uni := ut.New(zh, zh)
	trans, _ := uni.GetTranslator("zh")
	if err := zh_translations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, err
	}

	return &Handler{
		validate:    validate,
		config:      cfg,
		repository:  repo,
		translator:  trans,
		publisher:   publisher,
		searchState: searchState,
		metrics:     m,

		Mux: chi.NewRouter(),
	}, nil
}

func (h *Handler) RegisterRoutes() {
	h.Mux.Use(h.logger)
	h.Mux.Use(h.recoverer)

	h.Mux.Handle("/metrics", promhttp.Handler())

	h.Mux.Get("/jobs/{jobID}", h.GetSearchJob)

	h.Mux.Route("/sessions", func(r chi.Router) {
		r.Post("/", h.CreateSession)
		r.Get("/", h.GetAllSessions)
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Use(h.sessionCtx)
			r.Get("/", h.GetSession)
			r.With(h.preventMutationDuringSearch).Patch("/", h.UpdateSession)
			r.With(h.preventMutationDuringSearch).Delete("/", h.DeleteSession)

			r.Get("/snapshot", h.GetSnapshot)
			r.With(h.preventMutationDuringSearch).Put("/snapshot", h.RestoreSnapshot)

			r.Route("/paddlers", func(r chi.Router) {
				r.Get("/export", h.ExportRoster)
				r.Group(func(r chi.Router) {
					// 搜索期间名单不能修改
					r.Use(h.preventMutationDuringSearch)
					r.Post("/", h.AddPaddler)
					r.Delete("/", h.ClearRoster)
					r.Post("/import", h.ImportRoster)
					r.Route("/{paddlerID}", func(r chi.Router) {
						r.Patch("/", h.UpdatePaddler)
						r.Delete("/", h.RemovePaddler)
						r.Post("/toggle-boat", h.ToggleInBoat)
						r.Post("/cycle-side", h.CycleSide)
					})
				})
			})

			r.Route("/boat", func(r chi.Router) {
				r.Get("/", h.GetBoat)
				r.Group(func(r chi.Router) {
					r.Use(h.preventMutationDuringSearch)
					r.Post("/seats/{seat}/pin", h.TogglePin)
					r.Put("/seats/{seat}", h.MoveToSeat)
					r.Post("/balance", h.BalanceBoat)
					r.Post("/auto-generate", h.AutoGenerateBoat)
					r.Post("/optimize-rows", h.OptimizeRows)
					r.Post("/clear", h.ClearBoat)
				})
			})

			r.Route("/lineups", func(r chi.Router) {
				r.Get("/", h.GetSavedLineups)
				r.Group(func(r chi.Router) {
					r.Use(h.preventMutationDuringSearch)
					r.Post("/generate", h.GenerateLineups)
					r.Post("/{lineupID}/apply", h.ApplyLineup)
					r.Delete("/{lineupID}", h.DeleteSavedLineup)
				})
			})

			r.Route("/race-plans", func(r chi.Router) {
				r.Get("/", h.GetRacePlans)
				r.Get("/export", h.ExportRacePlans)
				r.Get("/{planID}", h.GetRacePlan)
				r.Group(func(r chi.Router) {
					r.Use(h.preventMutationDuringSearch)
					r.Post("/generate", h.GenerateRacePlans)
					r.Post("/{planID}/apply", h.ApplyRacePlan)
				})
			})
		})
	})
}
