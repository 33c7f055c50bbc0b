package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sohosai/sos26-sub000/domain/apperr"
	"github.com/sohosai/sos26-sub000/domain/fileaccess"
	"github.com/sohosai/sos26-sub000/domain/model"
)

const maxFileSize = 100 << 20

var (
	errFileNotFound = apperr.New(apperr.KindNotFound, "file not found")
	errFileDenied   = apperr.New(apperr.KindForbidden, "file access denied")
)

func (h *Handler) createFile(w http.ResponseWriter, r *http.Request) {
	if h.presigner == nil {
		writeError(w, errStorageDisabled)
		return
	}
	var req struct {
		FileName string `json:"fileName"`
		MimeType string `json:"mimeType"`
		Size     int64  `json:"size"`
		IsPublic bool   `json:"isPublic"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	name := path.Base(strings.TrimSpace(req.FileName))
	if name == "" || name == "." || name == "/" {
		writeError(w, apperr.InvalidRequest("fileName is required"))
		return
	}
	if req.MimeType == "" {
		req.MimeType = "application/octet-stream"
	}
	if req.Size <= 0 || req.Size > maxFileSize {
		writeError(w, apperr.InvalidRequest("size must be between 1 and %d", maxFileSize))
		return
	}

	actor := actorFrom(r.Context())
	id := h.newID()
	f := &model.UploadedFile{
		ID:         id,
		Key:        fmt.Sprintf("files/%s/%s", id, name),
		FileName:   name,
		MimeType:   req.MimeType,
		Size:       req.Size,
		UploaderID: actor.UserID,
		IsPublic:   req.IsPublic,
		CreatedAt:  time.Now(),
	}
	uploadURL, err := h.presigner.PresignPut(r.Context(), f.Key, f.MimeType)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.ds.SaveFile(r.Context(), f); err != nil {
		writeError(w, fmt.Errorf("SaveFile failed: %w", err))
		return
	}
	slog.Info("File registered", slog.String("fileID", f.ID), slog.String("userID", actor.UserID))
	writeJSON(w, http.StatusCreated, map[string]any{"file": f, "uploadUrl": uploadURL})
}

// readableFile はアップロードした本人か、チェーンのどれかが許可したときだけファイルを返す
func (h *Handler) readableFile(ctx context.Context, fileID, userID string) (*model.UploadedFile, error) {
	f, err := h.ds.GetFile(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("GetFile failed: %w", err)
	}
	if f == nil {
		return nil, errFileNotFound
	}
	if f.UploaderID == userID {
		return f, nil
	}
	member, err := h.getCommitteeMember(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("GetCommitteeMember failed: %w", err)
	}
	ok, err := h.chain.CanAccessFile(ctx, f.ID, fileaccess.Requester{UserID: userID, Committee: member})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errFileDenied
	}
	return f, nil
}

func (h *Handler) getFile(w http.ResponseWriter, r *http.Request) {
	if h.presigner == nil {
		writeError(w, errStorageDisabled)
		return
	}
	f, err := h.readableFile(r.Context(), chi.URLParam(r, "fileId"), actorFrom(r.Context()).UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	url, err := h.presigner.PresignGet(r.Context(), f.Key, f.FileName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"file": f, "url": url})
}

func (h *Handler) createFileToken(w http.ResponseWriter, r *http.Request) {
	userID := actorFrom(r.Context()).UserID
	f, err := h.readableFile(r.Context(), chi.URLParam(r, "fileId"), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	token := h.signer.Generate(f.ID, userID, h.tokenTTL)
	writeJSON(w, http.StatusCreated, map[string]any{
		"token": token,
		"url":   fmt.Sprintf("/files/%s/content?token=%s", f.ID, token),
	})
}

// getFileContent は資格情報を送れないクライアント向けに、トークンだけで署名付きURLへリダイレクトする
func (h *Handler) getFileContent(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "fileId")
	claims, ok := h.signer.Verify(r.URL.Query().Get("token"), fileID)
	if !ok {
		writeError(w, errInvalidFileToken)
		return
	}
	if h.presigner == nil {
		writeError(w, errStorageDisabled)
		return
	}
	f, err := h.ds.GetFile(r.Context(), claims.FileID)
	if err != nil {
		writeError(w, fmt.Errorf("GetFile failed: %w", err))
		return
	}
	if f == nil {
		writeError(w, errFileNotFound)
		return
	}
	url, err := h.presigner.PresignGet(r.Context(), f.Key, f.FileName)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Cache-Control", "private, no-store")
	http.Redirect(w, r, url, http.StatusFound)
}
