package handler

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"
	"github.com/sysu-ecnc-dev/dragon-boat-lineup/backend/internal/domain"
	"github.com/sysu-ecnc-dev/dragon-boat-lineup/backend/internal/export"
	"github.com/sysu-ecnc-dev/dragon-boat-lineup/backend/internal/scheduler"
	"github.com/sysu-ecnc-dev/dragon-boat-lineup/backend/internal/utils"
)

func (h *Handler) GetRacePlans(w http.ResponseWriter, r *http.Request) {
	s := r.Context().Value(SessionCtx).(*domain.Session)

	plans, err := h.repository.GetRacePlans(s.ID)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取比赛方案成功", plans)
}

func (h *Handler) GetRacePlan(w http.ResponseWriter, r *http.Request) {
	s := r.Context().Value(SessionCtx).(*domain.Session)

	plan, ok := h.loadRacePlan(w, r, s)
	if !ok {
		return
	}

	h.successResponse(w, r, "获取比赛方案成功", plan)
}

func (h *Handler) loadRacePlan(w http.ResponseWriter, r *http.Request, s *domain.Session) (*domain.RacePlan, bool) {
	plan, err := h.repository.GetRacePlan(s.ID, chi.URLParam(r, "planID"))
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			h.errorResponse(w, r, "比赛方案不存在")
		default:
			h.internalServerError(w, r, err)
		}
		return nil, false
	}
	return plan, true
}

type fixedRaceRequest struct {
	LineupIndex int `json:"lineupIndex" validate:"gte=0"`
	Race        int `json:"race" validate:"gte=0"`
}

// GenerateRacePlans 检查约束是否可能满足后创建搜索任务
func (h *Handler) GenerateRacePlans(w http.ResponseWriter, r *http.Request) {
	s := r.Context().Value(SessionCtx).(*domain.Session)

	var req struct {
		NumRaces           int                `json:"numRaces" validate:"required,gte=1,lte=20"`
		MinRacesPerPaddler int                `json:"minRacesPerPaddler" validate:"gte=0,ltefield=NumRaces"`
		FixedLineups       []fixedRaceRequest `json:"fixedLineups" validate:"dive"`
		Seed               int64              `json:"seed"`
		NotifyEmail        string             `json:"notifyEmail" validate:"omitempty,email"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	pool, err := h.repository.GetSavedLineups(s.ID)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	params := domain.PlanRacesParams{
		NumRaces:           req.NumRaces,
		MinRacesPerPaddler: req.MinRacesPerPaddler,
		FixedLineups: lo.Map(req.FixedLineups, func(f fixedRaceRequest, _ int) domain.FixedRace {
			return domain.FixedRace{LineupIndex: f.LineupIndex, Race: f.Race}
		}),
		Seed: req.Seed,
	}

	parameters := scheduler.DefaultPlannerParameters()
	parameters.NumRaces = params.NumRaces
	parameters.MinRacesPerPaddler = params.MinRacesPerPaddler
	parameters.FixedLineups = params.FixedLineups
	if _, err := scheduler.NewPlanner(parameters, s.ID, pool); err != nil {
		h.domainError(w, r, err)
		return
	}

	h.startSearchJob(w, r, s, domain.SearchJobPlanRaces, params, req.NotifyEmail)
}

// ApplyRacePlan 将方案中第一场比赛的阵容放到船上
func (h *Handler) ApplyRacePlan(w http.ResponseWriter, r *http.Request) {
	s := r.Context().Value(SessionCtx).(*domain.Session)

	plan, ok := h.loadRacePlan(w, r, s)
	if !ok {
		return
	}

	if err := scheduler.ApplyRacePlan(s, plan); err != nil {
		h.domainError(w, r, err)
		return
	}

	h.saveSession(w, r, s, "应用比赛方案成功", newBoatView(s))
}

func (h *Handler) ExportRacePlans(w http.ResponseWriter, r *http.Request) {
	s := r.Context().Value(SessionCtx).(*domain.Session)

	plans, err := h.repository.GetRacePlans(s.ID)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}
	if len(plans) == 0 {
		h.errorResponse(w, r, "没有可以导出的比赛方案")
		return
	}

	filename := fmt.Sprintf("%s-race-plans.csv", utils.PinyinSlug(s.Name))
	h.writeCSV(w, r, filename, func(w io.Writer) error {
		return export.WriteRacePlans(w, plans)
	})
}
