package handler

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sysu-ecnc-dev/dragon-boat-lineup/backend/internal/domain"
)

func (h *Handler) logInternalServerError(r *http.Request, err error) {
	slog.Error("服务器内部错误", "method", r.Method, "path", r.URL.Path, "error", err)
}

func (h *Handler) readJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logInternalServerError(r, err)
		http.Error(w, "服务器内部错误", http.StatusInternalServerError)
	}
}

type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

func (h *Handler) errorResponse(w http.ResponseWriter, r *http.Request, msg string) {
	h.writeJSON(w, r, http.StatusOK, Response{
		Success: false,
		Message: msg,
		Data:    nil,
	})
}

func (h *Handler) badRequest(w http.ResponseWriter, r *http.Request, err error) {
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		h.errorResponse(w, r, err.Error())
		return
	}

	h.errorResponse(w, r, validationErrors[0].Translate(h.translator))
}

func (h *Handler) internalServerError(w http.ResponseWriter, r *http.Request, err error) {
	h.logInternalServerError(r, err)
	h.writeJSON(w, r, http.StatusInternalServerError, Response{
		Success: false,
		Message: "服务器内部错误",
		Data:    nil,
	})
}

func (h *Handler) successResponse(w http.ResponseWriter, r *http.Request, msg string, data any) {
	h.writeJSON(w, r, http.StatusOK, Response{
		Success: true,
		Message: msg,
		Data:    data,
	})
}

// domainError 将领域错误转换为响应，未知错误按服务器内部错误处理
func (h *Handler) domainError(w http.ResponseWriter, r *http.Request, err error) {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.As(err, &validationErrors):
		h.errorResponse(w, r, validationErrors[0].Translate(h.translator))
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrPaddlerNotFound),
		errors.Is(err, domain.ErrSeatEmpty),
		errors.Is(err, domain.ErrSeatPinned),
		errors.Is(err, domain.ErrSideNotAllowed),
		errors.Is(err, domain.ErrInsufficientSeats),
		errors.Is(err, domain.ErrNothingToBalance),
		errors.Is(err, domain.ErrInsufficientRoster),
		errors.Is(err, domain.ErrInvalidSeatConfiguration),
		errors.Is(err, domain.ErrSearchSpaceTooLarge),
		errors.Is(err, domain.ErrImpossibleConstraints),
		errors.Is(err, domain.ErrNoValidResults),
		errors.Is(err, domain.ErrSearchInProgress):
		h.errorResponse(w, r, err.Error())
	default:
		h.internalServerError(w, r, err)
	}
}

// saveSession 持久化修改后的队伍
// 版本冲突时返回错误；其他存储错误只记录日志，修改结果仍然返回给客户端
func (h *Handler) saveSession(w http.ResponseWriter, r *http.Request, s *domain.Session, msg string, data any) {
	if err := h.repository.UpdateSession(s); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			h.errorResponse(w, r, "队伍已被修改，请刷新后重试")
			return
		case constraintName(err) == "sessions_name_key":
			h.errorResponse(w, r, "队伍名称已存在")
			return
		}
		slog.Error("无法保存队伍", "session", s.ID, "error", err)
		h.successResponse(w, r, msg+"，但保存失败", data)
		return
	}

	h.successResponse(w, r, msg, data)
}

func (h *Handler) writeCSV(w http.ResponseWriter, r *http.Request, filename string, write func(io.Writer) error) {
	var buf bytes.Buffer
	if err := write(&buf); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logInternalServerError(r, err)
	}
}

func constraintName(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.ConstraintName
	}
	return ""
}
