package handler

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sysu-ecnc-dev/dragon-boat-lineup/backend/internal/domain"
	"github.com/sysu-ecnc-dev/dragon-boat-lineup/backend/internal/scheduler"
	"github.com/sysu-ecnc-dev/dragon-boat-lineup/backend/internal/utils"
)

func (h *Handler) GetSavedLineups(w http.ResponseWriter, r *http.Request) {
	s := r.Context().Value(SessionCtx).(*domain.Session)

	lineups, err := h.repository.GetSavedLineups(s.ID)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取已保存阵容成功", lineups)
}

// GenerateLineups 先在请求中检查参数和搜索空间，再把枚举交给 worker
func (h *Handler) GenerateLineups(w http.ResponseWriter, r *http.Request) {
	s := r.Context().Value(SessionCtx).(*domain.Session)

	var req struct {
		MaxWeightDifference float64 `json:"maxWeightDifference" validate:"gte=0"`
		MinMalePaddlers     int     `json:"minMalePaddlers" validate:"gte=0,lte=20"`
		MaxMalePaddlers     int     `json:"maxMalePaddlers" validate:"gte=0,lte=20,gtefield=MinMalePaddlers"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	parameters := scheduler.DefaultEnumeratorParameters()
	parameters.MaxWeightDifference = req.MaxWeightDifference
	parameters.MinMalePaddlers = req.MinMalePaddlers
	parameters.MaxMalePaddlers = req.MaxMalePaddlers
	parameters.CombinationCeiling = h.config.Search.CombinationCeiling
	if _, err := scheduler.NewEnumerator(parameters, s.ID, s.Paddlers, s.Boat, s.Pins); err != nil {
		h.domainError(w, r, err)
		return
	}

	h.startSearchJob(w, r, s, domain.SearchJobEnumerateLineups, domain.EnumerateLineupsParams{
		MaxWeightDifference: req.MaxWeightDifference,
		MinMalePaddlers:     req.MinMalePaddlers,
		MaxMalePaddlers:     req.MaxMalePaddlers,
	}, "")
}

// ApplyLineup 将已保存的阵容放到船上，已经被删除的桨手会留下空位
func (h *Handler) ApplyLineup(w http.ResponseWriter, r *http.Request) {
	s := r.Context().Value(SessionCtx).(*domain.Session)

	lineup, err := h.repository.GetSavedLineup(s.ID, chi.URLParam(r, "lineupID"))
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			h.errorResponse(w, r, "阵容不存在")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	if err := utils.ValidIfExistsDuplicatePaddler(&lineup.Boat); err != nil {
		h.domainError(w, r, err)
		return
	}
	s.ApplyBoat(lineup.Boat)

	h.saveSession(w, r, s, "应用阵容成功", newBoatView(s))
}

func (h *Handler) DeleteSavedLineup(w http.ResponseWriter, r *http.Request) {
	s := r.Context().Value(SessionCtx).(*domain.Session)

	if err := h.repository.DeleteSavedLineup(s.ID, chi.URLParam(r, "lineupID")); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			h.errorResponse(w, r, "阵容不存在")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.successResponse(w, r, "删除阵容成功", nil)
}
