package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sysu-ecnc-dev/dragon-boat-lineup/backend/internal/domain"
	"github.com/sysu-ecnc-dev/dragon-boat-lineup/backend/internal/scheduler"
)

type boatView struct {
	Boat       domain.Boat        `json:"boat"`
	FixedSeats domain.Pins        `json:"fixedSeats"`
	Unseated   []*domain.Paddler  `json:"paddlersNotInBoat"`
	Stats      domain.LineupStats `json:"stats"`
}

func newBoatView(s *domain.Session) boatView {
	return boatView{
		Boat:       s.Boat,
		FixedSeats: s.Pins,
		Unseated:   s.Unseated(),
		Stats:      s.Boat.Stats(),
	}
}

func (h *Handler) GetBoat(w http.ResponseWriter, r *http.Request) {
	s := r.Context().Value(SessionCtx).(*domain.Session)

	h.successResponse(w, r, "获取座位表成功", newBoatView(s))
}

func (h *Handler) seatParam(w http.ResponseWriter, r *http.Request) (domain.SeatPosition, bool) {
	pos, err := domain.ParseSeatPosition(chi.URLParam(r, "seat"))
	if err != nil || !pos.Valid() {
		h.errorResponse(w, r, "座位无效")
		return domain.SeatPosition{}, false
	}
	return pos, true
}

func (h *Handler) TogglePin(w http.ResponseWriter, r *http.Request) {
	s := r.Context().Value(SessionCtx).(*domain.Session)

	pos, ok := h.seatParam(w, r)
	if !ok {
		return
	}

	pinned, err := s.TogglePin(pos)
	h.metrics.BoatOperation("toggle_pin", err)
	if err != nil {
		h.domainError(w, r, err)
		return
	}

	msg := "已取消固定座位"
	if pinned {
		msg = "已固定座位"
	}
	h.saveSession(w, r, s, msg, newBoatView(s))
}

func (h *Handler) MoveToSeat(w http.ResponseWriter, r *http.Request) {
	s := r.Context().Value(SessionCtx).(*domain.Session)

	pos, ok := h.seatParam(w, r)
	if !ok {
		return
	}

	var req struct {
		PaddlerID string `json:"paddlerID" validate:"required"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	err := s.MoveToSeat(req.PaddlerID, pos)
	h.metrics.BoatOperation("move", err)
	if err != nil {
		h.domainError(w, r, err)
		return
	}

	h.saveSession(w, r, s, "移动桨手成功", newBoatView(s))
}

func (h *Handler) BalanceBoat(w http.ResponseWriter, r *http.Request) {
	s := r.Context().Value(SessionCtx).(*domain.Session)

	b, err := scheduler.Balance(s.Boat, s.Pins)
	h.metrics.BoatOperation("balance", err)
	if err != nil {
		h.domainError(w, r, err)
		return
	}
	s.ApplyBoat(b)

	h.saveSession(w, r, s, "左右平衡完成", newBoatView(s))
}

func (h *Handler) AutoGenerateBoat(w http.ResponseWriter, r *http.Request) {
	s := r.Context().Value(SessionCtx).(*domain.Session)

	b, err := scheduler.AutoGenerate(s.Paddlers, s.Boat, s.Pins)
	h.metrics.BoatOperation("auto_generate", err)
	if err != nil {
		h.domainError(w, r, err)
		return
	}
	s.ApplyBoat(b)

	h.saveSession(w, r, s, "自动生成阵容完成", newBoatView(s))
}

func (h *Handler) OptimizeRows(w http.ResponseWriter, r *http.Request) {
	s := r.Context().Value(SessionCtx).(*domain.Session)

	b := scheduler.OptimizeRows(s.Boat, s.Pins)
	h.metrics.BoatOperation("optimize_rows", nil)
	s.ApplyBoat(b)

	h.saveSession(w, r, s, "前后排优化完成", newBoatView(s))
}

func (h *Handler) ClearBoat(w http.ResponseWriter, r *http.Request) {
	s := r.Context().Value(SessionCtx).(*domain.Session)

	s.ClearBoat()
	h.metrics.BoatOperation("clear", nil)

	h.saveSession(w, r, s, "已清空座位", newBoatView(s))
}
