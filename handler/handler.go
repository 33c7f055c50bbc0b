package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"
	"github.com/sohosai/sos26-sub000/domain/apperr"
	"github.com/sohosai/sos26-sub000/domain/fileaccess"
	"github.com/sohosai/sos26-sub000/domain/infra"
	"github.com/sohosai/sos26-sub000/domain/inquiry"
	"github.com/sohosai/sos26-sub000/domain/model"
)

// 認証は前段のゲートウェイで済んでいて、検証済みのユーザーIDがこのヘッダで渡される
const userIDHeader = "X-User-ID"

const maxBodyBytes = 1 << 20

var (
	errUnauthenticated  = apperr.New(apperr.KindForbidden, "authentication required")
	errNotCommittee     = apperr.New(apperr.KindForbidden, "committee membership required")
	errStorageDisabled  = apperr.New(apperr.KindNotFound, "object storage is not configured")
	errInvalidFileToken = apperr.New(apperr.KindForbidden, "invalid or expired token")
)

type Options struct {
	TokenTTL       time.Duration
	MemberCacheTTL time.Duration
}

type Handler struct {
	ds          infra.Datastore
	service     *inquiry.Service
	chain       *fileaccess.Chain
	signer      *fileaccess.Signer
	presigner   infra.Presigner
	tokenTTL    time.Duration
	memberCache *ttlcache.Cache[string, *model.CommitteeMember]
	newID       func() string
}

// presigner は nil でもよい。その場合ファイルの登録・取得は使えない
func NewHandler(ds infra.Datastore, service *inquiry.Service, chain *fileaccess.Chain, signer *fileaccess.Signer, presigner infra.Presigner, o Options) *Handler {
	if o.TokenTTL <= 0 {
		o.TokenTTL = fileaccess.DefaultTokenTTL
	}
	if o.MemberCacheTTL <= 0 {
		o.MemberCacheTTL = time.Minute
	}
	h := &Handler{
		ds:          ds,
		service:     service,
		chain:       chain,
		signer:      signer,
		presigner:   presigner,
		tokenTTL:    o.TokenTTL,
		memberCache: ttlcache.New(ttlcache.WithTTL[string, *model.CommitteeMember](o.MemberCacheTTL)),
		newID:       uuid.NewString,
	}
	go h.memberCache.Start()
	return h
}

func (h *Handler) Stop() {
	h.memberCache.Stop()
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/committee/inquiries", func(r chi.Router) {
		r.Use(h.requireCommittee)
		r.Get("/", h.listInquiries)
		r.Post("/", h.createInquiry)
		r.Route("/{inquiryId}", h.inquiryRoutes(true))
	})

	r.Route("/project/{projectId}/inquiries", func(r chi.Router) {
		r.Use(h.requireUser)
		r.Get("/", h.listInquiries)
		r.Post("/", h.createInquiry)
		r.Route("/{inquiryId}", h.inquiryRoutes(false))
	})

	r.Route("/files", func(r chi.Router) {
		// トークンで取得するときはユーザーを要求しない
		r.Get("/{fileId}/content", h.getFileContent)
		r.Group(func(r chi.Router) {
			r.Use(h.requireUser)
			r.Post("/", h.createFile)
			r.Get("/{fileId}", h.getFile)
			r.Post("/{fileId}/token", h.createFileToken)
		})
	})
	return r
}

func (h *Handler) inquiryRoutes(committee bool) func(chi.Router) {
	return func(r chi.Router) {
		r.Get("/", h.getInquiry)
		r.Get("/activities", h.listActivities)
		r.Post("/comments", h.addComment)
		r.Patch("/status", h.updateStatus)
		r.Patch("/reopen", h.reopen)
		r.Post("/assignees", h.addAssignee)
		r.Delete("/assignees/{assigneeId}", h.removeAssignee)
		r.Post("/attachments", h.addAttachment)
		if committee {
			r.Put("/viewers", h.updateViewers)
			r.Get("/summary", h.summary)
		}
	}
}

// Handle は LISTEN_SOCKET で待ち受け、ctx が終わるとシャットダウンする
func (h *Handler) Handle(ctx context.Context, bind string) error {
	srv := &http.Server{
		Addr:              bind,
		Handler:           h.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("Shutdown failed: %w", err)
		}
		return nil
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		slog.Info("Request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("duration", time.Since(start)),
		)
	})
}

type ctxKey int

const actorKey ctxKey = iota

func actorFrom(ctx context.Context) inquiry.Actor {
	a, _ := ctx.Value(actorKey).(inquiry.Actor)
	return a
}

func (h *Handler) getCommitteeMember(ctx context.Context, userID string) (*model.CommitteeMember, error) {
	cacheKey := "member_" + userID
	if item := h.memberCache.Get(cacheKey); item != nil {
		return item.Value(), nil
	}
	m, err := h.ds.GetCommitteeMember(ctx, userID)
	if err != nil {
		return nil, err
	}
	// 委員でない結果 (nil) もキャッシュする
	h.memberCache.Set(cacheKey, m, ttlcache.DefaultTTL)
	return m, nil
}

func (h *Handler) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get(userIDHeader)
		if userID == "" {
			writeError(w, errUnauthenticated)
			return
		}
		actor := inquiry.Actor{
			UserID:    userID,
			Side:      model.SideProject,
			ProjectID: chi.URLParam(r, "projectId"),
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorKey, actor)))
	})
}

func (h *Handler) requireCommittee(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get(userIDHeader)
		if userID == "" {
			writeError(w, errUnauthenticated)
			return
		}
		member, err := h.getCommitteeMember(r.Context(), userID)
		if err != nil {
			writeError(w, fmt.Errorf("GetCommitteeMember failed: %w", err))
			return
		}
		if member == nil {
			writeError(w, errNotCommittee)
			return
		}
		actor := inquiry.Actor{
			UserID:    userID,
			Side:      model.SideCommittee,
			Committee: member,
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorKey, actor)))
	})
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperr.Wrap(apperr.KindInvalidRequest, "invalid request body", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Encode failed", slog.Any("err", err))
	}
}

type errorResponse struct {
	Code    apperr.Kind `json:"code"`
	Message string      `json:"message"`
}

func writeError(w http.ResponseWriter, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error("Request failed", slog.Any("err", err))
	}
	writeJSON(w, status, errorResponse{Code: apperr.KindOf(err), Message: apperr.PublicMessage(err)})
}
