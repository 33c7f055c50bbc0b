package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sohosai/sos26-sub000/domain/apperr"
	"github.com/sohosai/sos26-sub000/domain/inquiry"
	"github.com/sohosai/sos26-sub000/domain/model"
)

func (h *Handler) listInquiries(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context(), actorFrom(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"inquiries": list})
}

func (h *Handler) createInquiry(w http.ResponseWriter, r *http.Request) {
	var in inquiry.CreateInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}
	created, err := h.service.Create(r.Context(), actorFrom(r.Context()), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"inquiry": created})
}

func (h *Handler) getInquiry(w http.ResponseWriter, r *http.Request) {
	d, err := h.service.Get(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "inquiryId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *Handler) listActivities(w http.ResponseWriter, r *http.Request) {
	acts, err := h.service.ListActivities(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "inquiryId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"activities": acts})
}

func (h *Handler) addComment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Body string `json:"body"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	c, err := h.service.AddComment(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "inquiryId"), req.Body)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"comment": c})
}

// updateStatus は解決済みへの変更だけを受け付ける。戻すときは reopen を使う
func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status model.InquiryStatus `json:"status"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Status != model.InquiryStatusResolved {
		writeError(w, apperr.InvalidRequest("status must be %s", model.InquiryStatusResolved))
		return
	}
	i, err := h.service.Resolve(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "inquiryId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"inquiry": i})
}

func (h *Handler) reopen(w http.ResponseWriter, r *http.Request) {
	i, err := h.service.Reopen(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "inquiryId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"inquiry": i})
}

func (h *Handler) addAssignee(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string     `json:"userId"`
		Side   model.Side `json:"side"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	actor := actorFrom(r.Context())
	// 企画側の窓口から立場を省略したら企画側
	if req.Side == "" && actor.Side == model.SideProject {
		req.Side = model.SideProject
	}
	a, err := h.service.AddAssignee(r.Context(), actor, chi.URLParam(r, "inquiryId"), req.UserID, req.Side)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"assignee": a})
}

func (h *Handler) removeAssignee(w http.ResponseWriter, r *http.Request) {
	err := h.service.RemoveAssignee(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "inquiryId"), chi.URLParam(r, "assigneeId"))
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) updateViewers(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Viewers []struct {
			Scope       model.ViewerScope `json:"scope"`
			BureauValue string            `json:"bureauValue"`
			UserID      string            `json:"userId"`
		} `json:"viewers"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	viewers := make([]model.Viewer, len(req.Viewers))
	for i, v := range req.Viewers {
		viewers[i] = model.Viewer{Scope: v.Scope, BureauValue: v.BureauValue, UserID: v.UserID}
	}
	replaced, err := h.service.UpdateViewers(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "inquiryId"), viewers)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"viewers": replaced})
}

func (h *Handler) addAttachment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FileID string `json:"fileId"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.FileID == "" {
		writeError(w, apperr.InvalidRequest("fileId is required"))
		return
	}
	a, err := h.service.AddAttachment(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "inquiryId"), req.FileID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"attachment": a})
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	s, err := h.service.Summarize(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "inquiryId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"summary": s})
}
