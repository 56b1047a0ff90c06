package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sysu-ecnc-dev/dragon-boat-lineup/backend/internal/domain"
)

// startSearchJob 为队伍加上搜索锁，创建任务并投递到搜索队列
func (h *Handler) startSearchJob(w http.ResponseWriter, r *http.Request, s *domain.Session, kind domain.SearchJobKind, params any, notifyEmail string) {
	raw, err := json.Marshal(params)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	job := &domain.SearchJob{
		ID:          uuid.NewString(),
		SessionID:   s.ID,
		Kind:        kind,
		Status:      domain.SearchJobPending,
		Params:      raw,
		NotifyEmail: notifyEmail,
	}

	ctx, cancel := h.redisContext()
	defer cancel()

	acquired, err := h.searchState.AcquireLock(ctx, s.ID, job.ID)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}
	if !acquired {
		h.errorResponse(w, r, domain.ErrSearchInProgress.Error())
		return
	}

	if err := h.repository.CreateSearchJob(job); err != nil {
		h.releaseLock(s.ID, job.ID)
		switch constraintName(err) {
		case "search_jobs_session_id_fkey":
			// 队伍在加锁之前被删除
			h.errorResponse(w, r, "队伍不存在")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	publishCtx, publishCancel := context.WithTimeout(context.Background(), time.Duration(h.config.RabbitMQ.PublishTimeout)*time.Second)
	defer publishCancel()

	if err := h.publisher.PublishSearchJob(publishCtx, job.ID); err != nil {
		now := time.Now()
		job.Status = domain.SearchJobFailed
		job.Error = "任务投递失败"
		job.FinishedAt = &now
		if err := h.repository.UpdateSearchJob(job); err != nil {
			slog.Error("无法更新搜索任务", "job", job.ID, "error", err)
		}
		h.releaseLock(s.ID, job.ID)
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "搜索任务已创建", job)
}

func (h *Handler) releaseLock(sessionID, jobID string) {
	ctx, cancel := h.redisContext()
	defer cancel()

	if err := h.searchState.ReleaseLock(ctx, sessionID, jobID); err != nil {
		slog.Error("无法释放搜索锁", "session", sessionID, "job", jobID, "error", err)
	}
}

// GetSearchJob 返回任务状态，未结束的任务附带 redis 中的进度
func (h *Handler) GetSearchJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if err := uuid.Validate(jobID); err != nil {
		h.errorResponse(w, r, "任务ID无效")
		return
	}

	job, err := h.repository.GetSearchJob(jobID)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			h.errorResponse(w, r, "搜索任务不存在")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	switch {
	case job.Status == domain.SearchJobSucceeded:
		job.Progress = 1
	case !job.Finished():
		ctx, cancel := h.redisContext()
		defer cancel()

		progress, err := h.searchState.GetProgress(ctx, job.ID)
		if err != nil {
			slog.Warn("无法读取搜索进度", "job", job.ID, "error", err)
		}
		job.Progress = progress
	}

	h.successResponse(w, r, "获取搜索任务成功", job)
}
