package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/sysu-ecnc-dev/dragon-boat-lineup/backend/internal/domain"
	"github.com/sysu-ecnc-dev/dragon-boat-lineup/backend/internal/export"
	"github.com/sysu-ecnc-dev/dragon-boat-lineup/backend/internal/utils"
)

func (h *Handler) AddPaddler(w http.ResponseWriter, r *http.Request) {
	s := r.Context().Value(SessionCtx).(*domain.Session)

	var req struct {
		Name      string        `json:"name" validate:"required,max=64"`
		Weight    float64       `json:"weight" validate:"gt=0,lte=300"`
		Side      domain.Side   `json:"side" validate:"oneof=left right both"`
		Gender    domain.Gender `json:"gender" validate:"omitempty,oneof=M F"`
		TTResults float64       `json:"ttResults" validate:"gte=0"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	if req.Gender == "" {
		req.Gender = domain.GenderMale
	}
	p := &domain.Paddler{
		Name:      strings.TrimSpace(req.Name),
		Weight:    req.Weight,
		Side:      req.Side,
		Gender:    req.Gender,
		TTResults: req.TTResults,
	}
	if err := s.AddPaddler(p); err != nil {
		h.domainError(w, r, err)
		return
	}

	h.saveSession(w, r, s, "添加桨手成功", p)
}

func (h *Handler) UpdatePaddler(w http.ResponseWriter, r *http.Request) {
	s := r.Context().Value(SessionCtx).(*domain.Session)

	var req struct {
		Name      *string        `json:"name" validate:"omitnil,min=1,max=64"`
		Weight    *float64       `json:"weight" validate:"omitnil,gt=0,lte=300"`
		Side      *domain.Side   `json:"side" validate:"omitnil,oneof=left right both"`
		Gender    *domain.Gender `json:"gender" validate:"omitnil,oneof=M F"`
		TTResults *float64       `json:"ttResults" validate:"omitnil,gte=0"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	p, err := s.UpdatePaddler(chi.URLParam(r, "paddlerID"), domain.PaddlerUpdate{
		Name:      req.Name,
		Weight:    req.Weight,
		Side:      req.Side,
		Gender:    req.Gender,
		TTResults: req.TTResults,
	})
	if err != nil {
		h.domainError(w, r, err)
		return
	}

	h.saveSession(w, r, s, "更新桨手成功", p)
}

func (h *Handler) RemovePaddler(w http.ResponseWriter, r *http.Request) {
	s := r.Context().Value(SessionCtx).(*domain.Session)

	if err := s.RemovePaddler(chi.URLParam(r, "paddlerID")); err != nil {
		h.domainError(w, r, err)
		return
	}

	h.saveSession(w, r, s, "删除桨手成功", nil)
}

func (h *Handler) ClearRoster(w http.ResponseWriter, r *http.Request) {
	s := r.Context().Value(SessionCtx).(*domain.Session)

	s.ClearRoster()

	h.saveSession(w, r, s, "清空名单成功", s)
}

func (h *Handler) ToggleInBoat(w http.ResponseWriter, r *http.Request) {
	s := r.Context().Value(SessionCtx).(*domain.Session)

	seated, err := s.ToggleInBoat(chi.URLParam(r, "paddlerID"))
	if err != nil {
		h.domainError(w, r, err)
		return
	}

	msg := "桨手已移出船"
	if seated {
		msg = "桨手已上船"
	}
	h.saveSession(w, r, s, msg, newBoatView(s))
}

func (h *Handler) CycleSide(w http.ResponseWriter, r *http.Request) {
	s := r.Context().Value(SessionCtx).(*domain.Session)

	p, err := s.CycleSide(chi.URLParam(r, "paddlerID"))
	if err != nil {
		h.domainError(w, r, err)
		return
	}

	h.saveSession(w, r, s, "切换划桨边成功", p)
}

// ImportRoster 接受 multipart 表单中的 file 字段，或者直接以请求体上传 CSV
func (h *Handler) ImportRoster(w http.ResponseWriter, r *http.Request) {
	s := r.Context().Value(SessionCtx).(*domain.Session)

	r.Body = http.MaxBytesReader(w, r.Body, h.config.Server.MaxUploadSize)

	var src io.Reader = r.Body
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, _, err := r.FormFile("file")
		if err != nil {
			h.errorResponse(w, r, "无法读取上传的文件")
			return
		}
		defer file.Close()
		src = file
	}

	report, err := export.ImportRoster(s, src)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			h.errorResponse(w, r, fmt.Sprintf("文件大小不能超过 %d 字节", maxBytesErr.Limit))
			return
		}
		h.domainError(w, r, err)
		return
	}

	msg := fmt.Sprintf("导入完成：新增 %d 名，更新 %d 名，忽略 %d 行", report.Added, report.Updated, len(report.Rejected))
	h.saveSession(w, r, s, msg, report)
}

func (h *Handler) ExportRoster(w http.ResponseWriter, r *http.Request) {
	s := r.Context().Value(SessionCtx).(*domain.Session)

	filename := fmt.Sprintf("%s-roster.csv", utils.PinyinSlug(s.Name))
	h.writeCSV(w, r, filename, func(w io.Writer) error {
		return export.WriteRoster(w, s.Paddlers)
	})
}
