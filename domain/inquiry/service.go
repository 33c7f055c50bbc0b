// Package inquiry は問い合わせの権限判定とステータス遷移を扱う
package inquiry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sohosai/sos26-sub000/domain/apperr"
	"github.com/sohosai/sos26-sub000/domain/infra"
	"github.com/sohosai/sos26-sub000/domain/model"
)

var (
	ErrInquiryNotFound  = apperr.New(apperr.KindNotFound, "inquiry not found")
	ErrAssigneeNotFound = apperr.New(apperr.KindNotFound, "assignee not found")
	ErrProjectNotFound  = apperr.New(apperr.KindNotFound, "project not found")
	ErrFileNotFound     = apperr.New(apperr.KindNotFound, "file not found")
	ErrForbidden        = apperr.New(apperr.KindForbidden, "permission denied")
	ErrInvalidState     = apperr.New(apperr.KindInvalidRequest, "invalid inquiry state")
	ErrAssigneeExists   = apperr.New(apperr.KindAlreadyExists, "user is already an assignee")
	ErrAttachmentExists = apperr.New(apperr.KindAlreadyExists, "file is already attached")
	ErrCreatorAssignee  = apperr.New(apperr.KindInvalidRequest, "creator assignee cannot be removed")
	ErrNotEligible      = apperr.New(apperr.KindInvalidRequest, "user cannot be assigned on this side")
	ErrSummaryDisabled  = apperr.New(apperr.KindNotFound, "summary is not available")
)

// Actor は認証済みの操作者。Side で実委側・企画側どちらの窓口からの操作かを表す
type Actor struct {
	UserID string
	Side   model.Side
	// 企画側の操作のときの企画
	ProjectID string
	// 現在委員でなければ nil
	Committee *model.CommitteeMember
}

type Summarizer interface {
	GenerateSummary(context.Context, model.InquiryConversation) (string, error)
}

type Service struct {
	ds         infra.Datastore
	notifier   infra.Notifier
	summarizer Summarizer
	now        func() time.Time
	newID      func() string
}

type Option func(*Service)

func WithNotifier(n infra.Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

func WithSummarizer(sum Summarizer) Option {
	return func(s *Service) { s.summarizer = sum }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(ds infra.Datastore, opts ...Option) *Service {
	s := &Service{
		ds:       ds,
		notifier: infra.NopNotifier{},
		now:      timeNow,
		newID:    uuid.NewString,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func timeNow() time.Time {
	loc, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		loc = time.UTC
	}
	return time.Now().In(loc)
}

func (s *Service) activity(inquiryID string, typ model.ActivityType, actorID, targetID string) *model.Activity {
	return &model.Activity{
		ID:        s.newID(),
		InquiryID: inquiryID,
		Type:      typ,
		ActorID:   actorID,
		TargetID:  targetID,
		CreatedAt: s.now(),
	}
}

func (s *Service) loadAccess(ctx context.Context, inquiryID string, withViewers bool) (Access, error) {
	assignees, err := s.ds.ListAssignees(ctx, inquiryID)
	if err != nil {
		return Access{}, fmt.Errorf("ListAssignees failed: %w", err)
	}
	access := Access{Assignees: assignees}
	if withViewers {
		access.Viewers, err = s.ds.ListViewers(ctx, inquiryID)
		if err != nil {
			return Access{}, fmt.Errorf("ListViewers failed: %w", err)
		}
	}
	return access, nil
}

type need int

const (
	needView need = iota
	needMutate
)

// authorize は問い合わせを読み込み、操作者が need を満たすか判定する
func (s *Service) authorize(ctx context.Context, actor Actor, inquiryID string, n need) (*model.Inquiry, Access, error) {
	inquiry, err := s.ds.GetInquiry(ctx, inquiryID)
	if err != nil {
		return nil, Access{}, fmt.Errorf("GetInquiry failed: %w", err)
	}
	if inquiry == nil {
		return nil, Access{}, ErrInquiryNotFound
	}

	switch actor.Side {
	case model.SideProject:
		// 他の企画の問い合わせは存在しないものとして扱う
		if actor.ProjectID == "" || inquiry.ProjectID != actor.ProjectID {
			return nil, Access{}, ErrInquiryNotFound
		}
		access, err := s.loadAccess(ctx, inquiry.ID, false)
		if err != nil {
			return nil, Access{}, err
		}
		if !CanActAsProject(access, actor.UserID) {
			return nil, Access{}, ErrForbidden
		}
		return inquiry, access, nil
	case model.SideCommittee:
		if actor.Committee == nil {
			return nil, Access{}, ErrForbidden
		}
		access, err := s.loadAccess(ctx, inquiry.ID, true)
		if err != nil {
			return nil, Access{}, err
		}
		allowed := CanView(access, actor.Committee)
		if n == needMutate {
			allowed = CanMutate(access, actor.Committee)
		}
		if !allowed {
			return nil, Access{}, ErrForbidden
		}
		return inquiry, access, nil
	}
	return nil, Access{}, ErrForbidden
}

type CreateInput struct {
	Title     string `json:"title"`
	Body      string `json:"body"`
	ProjectID string `json:"projectId"`
}

func (in CreateInput) validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return apperr.InvalidRequest("title is required")
	}
	if strings.TrimSpace(in.Body) == "" {
		return apperr.InvalidRequest("body is required")
	}
	if in.ProjectID == "" {
		return apperr.InvalidRequest("projectId is required")
	}
	return nil
}

// Create は問い合わせと作成者の担当者を作る。実委から作ると対応中、企画から作ると未対応で始まる
func (s *Service) Create(ctx context.Context, actor Actor, in CreateInput) (*model.Inquiry, error) {
	if actor.Side == model.SideProject {
		in.ProjectID = actor.ProjectID
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	project, err := s.ds.GetProject(ctx, in.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("GetProject failed: %w", err)
	}
	if project == nil {
		return nil, ErrProjectNotFound
	}

	switch actor.Side {
	case model.SideCommittee:
		if actor.Committee == nil {
			return nil, ErrForbidden
		}
	case model.SideProject:
		ok, err := s.ds.IsProjectMember(ctx, project.ID, actor.UserID)
		if err != nil {
			return nil, fmt.Errorf("IsProjectMember failed: %w", err)
		}
		if !ok {
			return nil, ErrForbidden
		}
	default:
		return nil, ErrForbidden
	}

	now := s.now()
	inquiry := &model.Inquiry{
		ID:          s.newID(),
		Title:       strings.TrimSpace(in.Title),
		Body:        in.Body,
		Status:      initialStatus(actor.Side),
		CreatorRole: actor.Side,
		ProjectID:   project.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	creator := &model.Assignee{
		ID:         s.newID(),
		InquiryID:  inquiry.ID,
		UserID:     actor.UserID,
		Side:       actor.Side,
		IsCreator:  true,
		AssignedAt: now,
	}
	if err := s.ds.CreateInquiry(ctx, inquiry, creator); err != nil {
		return nil, fmt.Errorf("CreateInquiry failed: %w", err)
	}
	slog.Info("Inquiry created", slog.String("inquiryID", inquiry.ID), slog.String("userID", actor.UserID), slog.String("side", string(actor.Side)))
	s.notifier.InquiryCreated(ctx, inquiry)
	return inquiry, nil
}

type Detail struct {
	Inquiry     *model.Inquiry            `json:"inquiry"`
	Assignees   []model.Assignee          `json:"assignees"`
	Viewers     []model.Viewer            `json:"viewers,omitempty"`
	Comments    []model.InquiryComment    `json:"comments"`
	Attachments []model.InquiryAttachment `json:"attachments"`
}

func (s *Service) Get(ctx context.Context, actor Actor, inquiryID string) (*Detail, error) {
	inquiry, access, err := s.authorize(ctx, actor, inquiryID, needView)
	if err != nil {
		return nil, err
	}
	comments, err := s.ds.ListComments(ctx, inquiry.ID)
	if err != nil {
		return nil, fmt.Errorf("ListComments failed: %w", err)
	}
	attachments, err := s.ds.ListAttachments(ctx, inquiry.ID)
	if err != nil {
		return nil, fmt.Errorf("ListAttachments failed: %w", err)
	}
	d := &Detail{
		Inquiry:     inquiry,
		Assignees:   access.Assignees,
		Comments:    comments,
		Attachments: attachments,
	}
	// 閲覧者ルールは実委側にだけ見せる
	if actor.Side == model.SideCommittee {
		d.Viewers = access.Viewers
	}
	return d, nil
}

// List は操作者が閲覧できる問い合わせを新しい順に返す
func (s *Service) List(ctx context.Context, actor Actor) ([]model.Inquiry, error) {
	var projectID string
	switch actor.Side {
	case model.SideCommittee:
		if actor.Committee == nil {
			return nil, ErrForbidden
		}
	case model.SideProject:
		if actor.ProjectID == "" {
			return nil, ErrForbidden
		}
		projectID = actor.ProjectID
	default:
		return nil, ErrForbidden
	}

	inquiries, err := s.ds.ListInquiries(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("ListInquiries failed: %w", err)
	}
	visible := make([]model.Inquiry, 0, len(inquiries))
	for _, i := range inquiries {
		access, err := s.loadAccess(ctx, i.ID, actor.Side == model.SideCommittee)
		if err != nil {
			return nil, err
		}
		if actor.Side == model.SideProject && CanActAsProject(access, actor.UserID) ||
			actor.Side == model.SideCommittee && CanView(access, actor.Committee) {
			visible = append(visible, i)
		}
	}
	return visible, nil
}

func (s *Service) AddComment(ctx context.Context, actor Actor, inquiryID, body string) (*model.InquiryComment, error) {
	if strings.TrimSpace(body) == "" {
		return nil, apperr.InvalidRequest("body is required")
	}
	inquiry, _, err := s.authorize(ctx, actor, inquiryID, needMutate)
	if err != nil {
		return nil, err
	}
	if inquiry.Status == model.InquiryStatusResolved {
		return nil, fmt.Errorf("%w: inquiry is resolved", ErrInvalidState)
	}

	c := &model.InquiryComment{
		ID:         s.newID(),
		InquiryID:  inquiry.ID,
		Body:       body,
		SenderID:   actor.UserID,
		SenderSide: actor.Side,
		CreatedAt:  s.now(),
	}
	if err := s.ds.AddComment(ctx, c, model.InquiryStatusResolved); err != nil {
		if errors.Is(err, infra.ErrStatusConflict) {
			return nil, fmt.Errorf("%w: inquiry is resolved", ErrInvalidState)
		}
		return nil, fmt.Errorf("AddComment failed: %w", err)
	}
	s.notifier.CommentAdded(ctx, inquiry, c)
	return c, nil
}

func (s *Service) Resolve(ctx context.Context, actor Actor, inquiryID string) (*model.Inquiry, error) {
	return s.changeStatus(ctx, actor, inquiryID, resolveTransition, model.ActivityStatusResolved)
}

func (s *Service) Reopen(ctx context.Context, actor Actor, inquiryID string) (*model.Inquiry, error) {
	return s.changeStatus(ctx, actor, inquiryID, reopenTransition, model.ActivityStatusReopened)
}

func (s *Service) changeStatus(
	ctx context.Context,
	actor Actor,
	inquiryID string,
	transition func(model.InquiryStatus) (infra.StatusTransition, error),
	typ model.ActivityType,
) (*model.Inquiry, error) {
	inquiry, _, err := s.authorize(ctx, actor, inquiryID, needMutate)
	if err != nil {
		return nil, err
	}
	t, err := transition(inquiry.Status)
	if err != nil {
		return nil, err
	}
	act := s.activity(inquiry.ID, typ, actor.UserID, "")
	if err := s.ds.UpdateInquiryStatus(ctx, inquiry.ID, t, act); err != nil {
		if errors.Is(err, infra.ErrStatusConflict) {
			return nil, fmt.Errorf("%w: status changed concurrently", ErrInvalidState)
		}
		return nil, fmt.Errorf("UpdateInquiryStatus failed: %w", err)
	}
	inquiry.Status = t.To
	inquiry.UpdatedAt = act.CreatedAt
	slog.Info("Inquiry status updated", slog.String("inquiryID", inquiry.ID), slog.String("from", string(t.From)), slog.String("to", string(t.To)), slog.String("userID", actor.UserID))
	s.notifier.StatusChanged(ctx, inquiry)
	return inquiry, nil
}

// UpdateViewers は閲覧者ルールを丸ごと置き換える。実委側からのみ操作できる
func (s *Service) UpdateViewers(ctx context.Context, actor Actor, inquiryID string, viewers []model.Viewer) ([]model.Viewer, error) {
	if actor.Side != model.SideCommittee {
		return nil, ErrForbidden
	}
	inquiry, _, err := s.authorize(ctx, actor, inquiryID, needMutate)
	if err != nil {
		return nil, err
	}
	if err := ValidateViewers(viewers); err != nil {
		return nil, err
	}

	now := s.now()
	replaced := make([]model.Viewer, len(viewers))
	for i, v := range viewers {
		replaced[i] = model.Viewer{
			ID:          s.newID(),
			InquiryID:   inquiry.ID,
			Scope:       v.Scope,
			BureauValue: v.BureauValue,
			UserID:      v.UserID,
			Position:    i,
			CreatedAt:   now,
		}
	}
	act := s.activity(inquiry.ID, model.ActivityViewerUpdated, actor.UserID, "")
	if err := s.ds.ReplaceViewers(ctx, inquiry.ID, replaced, act); err != nil {
		if errors.Is(err, infra.ErrNotFound) {
			return nil, ErrInquiryNotFound
		}
		return nil, fmt.Errorf("ReplaceViewers failed: %w", err)
	}
	return replaced, nil
}

func (s *Service) ListActivities(ctx context.Context, actor Actor, inquiryID string) ([]model.Activity, error) {
	inquiry, _, err := s.authorize(ctx, actor, inquiryID, needView)
	if err != nil {
		return nil, err
	}
	activities, err := s.ds.ListActivities(ctx, inquiry.ID)
	if err != nil {
		return nil, fmt.Errorf("ListActivities failed: %w", err)
	}
	return activities, nil
}

// AddAttachment は操作者自身がアップロードしたファイルを問い合わせに添付する
func (s *Service) AddAttachment(ctx context.Context, actor Actor, inquiryID, fileID string) (*model.InquiryAttachment, error) {
	inquiry, _, err := s.authorize(ctx, actor, inquiryID, needMutate)
	if err != nil {
		return nil, err
	}
	if inquiry.Status == model.InquiryStatusResolved {
		return nil, fmt.Errorf("%w: inquiry is resolved", ErrInvalidState)
	}
	f, err := s.ds.GetFile(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("GetFile failed: %w", err)
	}
	if f == nil {
		return nil, ErrFileNotFound
	}
	if f.UploaderID != actor.UserID {
		return nil, ErrForbidden
	}

	a := &model.InquiryAttachment{
		ID:           s.newID(),
		InquiryID:    inquiry.ID,
		FileID:       f.ID,
		UploadedByID: actor.UserID,
		CreatedAt:    s.now(),
	}
	if err := s.ds.AddAttachment(ctx, a, model.InquiryStatusResolved); err != nil {
		switch {
		case errors.Is(err, infra.ErrDuplicate):
			return nil, ErrAttachmentExists
		case errors.Is(err, infra.ErrStatusConflict):
			return nil, fmt.Errorf("%w: inquiry is resolved", ErrInvalidState)
		}
		return nil, fmt.Errorf("AddAttachment failed: %w", err)
	}
	return a, nil
}

// Summarize はやりとりの要約を生成する。実委側のみ
func (s *Service) Summarize(ctx context.Context, actor Actor, inquiryID string) (string, error) {
	if actor.Side != model.SideCommittee {
		return "", ErrForbidden
	}
	detail, err := s.Get(ctx, actor, inquiryID)
	if err != nil {
		return "", err
	}
	if s.summarizer == nil {
		return "", ErrSummaryDisabled
	}

	conv := model.InquiryConversation{
		TimeStamp:      detail.Inquiry.CreatedAt.Format("2006-01-02 15:04:05"),
		Status:         detail.Inquiry.Status,
		InquiryTitle:   detail.Inquiry.Title,
		InquiryContent: detail.Inquiry.Body,
	}
	for _, a := range detail.Assignees {
		conv.Assignees = append(conv.Assignees, fmt.Sprintf("%s(%s)", a.UserID, a.Side))
	}
	for _, c := range detail.Comments {
		conv.Conversations = append(conv.Conversations, model.Conversation{
			TimeStamp: c.CreatedAt,
			Text:      c.Body,
			User:      c.SenderID,
			Side:      c.SenderSide,
		})
	}
	summary, err := s.summarizer.GenerateSummary(ctx, conv)
	if err != nil {
		return "", fmt.Errorf("GenerateSummary failed: %w", err)
	}
	return summary, nil
}
