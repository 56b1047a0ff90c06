package handler

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/sysu-ecnc-dev/dragon-boat-lineup/backend/internal/domain"
)

func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name" validate:"required,max=64"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	s := domain.NewSession(req.Name)
	if err := h.repository.CreateSession(s); err != nil {
		switch constraintName(err) {
		case "sessions_name_key":
			h.errorResponse(w, r, "队伍名称已存在")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.successResponse(w, r, "创建队伍成功", s)
}

func (h *Handler) GetAllSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.repository.GetAllSessions()
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取所有队伍成功", sessions)
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	s := r.Context().Value(SessionCtx).(*domain.Session)

	h.successResponse(w, r, "获取队伍成功", s)
}

func (h *Handler) UpdateSession(w http.ResponseWriter, r *http.Request) {
	s := r.Context().Value(SessionCtx).(*domain.Session)

	var req struct {
		Name *string `json:"name" validate:"omitnil,min=1,max=64"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	if req.Name != nil {
		s.Name = *req.Name
	}

	h.saveSession(w, r, s, "更新队伍成功", s)
}

func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	s := r.Context().Value(SessionCtx).(*domain.Session)

	if err := h.repository.DeleteSession(s.ID); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			h.errorResponse(w, r, "队伍不存在")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.successResponse(w, r, "删除队伍成功", nil)
}

func (h *Handler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	s := r.Context().Value(SessionCtx).(*domain.Session)

	h.successResponse(w, r, "获取快照成功", s.Snapshot())
}

// RestoreSnapshot 用上传的快照替换队伍的名单和座位
func (h *Handler) RestoreSnapshot(w http.ResponseWriter, r *http.Request) {
	s := r.Context().Value(SessionCtx).(*domain.Session)

	var snap domain.Snapshot
	if err := h.readJSON(r, &snap); err != nil {
		h.badRequest(w, r, err)
		return
	}

	if err := s.Restore(snap); err != nil {
		h.domainError(w, r, err)
		return
	}

	h.saveSession(w, r, s, "恢复快照成功", s)
}
