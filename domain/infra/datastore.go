package infra

import (
	"context"
	"errors"
	"time"

	"github.com/sohosai/sos26-sub000/domain/model"
)

var (
	// 一意制約に違反した
	ErrDuplicate = errors.New("duplicate record")
	// 期待したステータスではなかった
	ErrStatusConflict = errors.New("inquiry status conflict")
	// 更新・削除対象が存在しない
	ErrNotFound = errors.New("record not found")
)

// StatusTransition は From のときだけ To に遷移させる
type StatusTransition struct {
	From model.InquiryStatus
	To   model.InquiryStatus
}

// Datastore は永続化層。複数レコードにまたがる書き込みはメソッド単位でアトミックに行う。
// Get 系は見つからなければ nil, nil を返す
type Datastore interface {
	// 問い合わせと作成者の担当者を同時に保存する
	CreateInquiry(context.Context, *model.Inquiry, *model.Assignee) error
	GetInquiry(context.Context, string) (*model.Inquiry, error)
	// projectID が空なら全件
	ListInquiries(ctx context.Context, projectID string) ([]model.Inquiry, error)
	// ステータス遷移と監査ログを同時に書く。現在のステータスが From でなければ ErrStatusConflict
	UpdateInquiryStatus(context.Context, string, StatusTransition, *model.Activity) error

	// 担当者と監査ログを同時に書く。auto が指定されていて現在のステータスが auto.From なら遷移も行い true を返す
	AddAssignee(ctx context.Context, a *model.Assignee, act *model.Activity, auto *StatusTransition) (bool, error)
	GetAssignee(ctx context.Context, inquiryID, assigneeID string) (*model.Assignee, error)
	ListAssignees(context.Context, string) ([]model.Assignee, error)
	// 作成者は削除しない。対象がなければ ErrNotFound
	RemoveAssignee(context.Context, *model.Assignee, *model.Activity) error

	ListViewers(context.Context, string) ([]model.Viewer, error)
	// 閲覧者を全削除してから作り直す
	ReplaceViewers(ctx context.Context, inquiryID string, viewers []model.Viewer, act *model.Activity) error

	// 問い合わせのステータスが blocked のときは ErrStatusConflict
	AddComment(ctx context.Context, c *model.InquiryComment, blocked model.InquiryStatus) error
	ListComments(context.Context, string) ([]model.InquiryComment, error)
	// 古い順
	ListActivities(context.Context, string) ([]model.Activity, error)

	AddAttachment(ctx context.Context, a *model.InquiryAttachment, blocked model.InquiryStatus) error
	ListAttachments(context.Context, string) ([]model.InquiryAttachment, error)
	ListAttachmentsByFile(context.Context, string) ([]model.InquiryAttachment, error)

	SaveFile(context.Context, *model.UploadedFile) error
	GetFile(context.Context, string) (*model.UploadedFile, error)

	SaveProject(context.Context, *model.Project) error
	GetProject(context.Context, string) (*model.Project, error)
	AddProjectMember(context.Context, *model.ProjectMember) error
	IsProjectMember(ctx context.Context, projectID, userID string) (bool, error)

	SaveCommitteeMember(context.Context, *model.CommitteeMember) error
	// 現在委員である人だけを返す
	GetCommitteeMember(context.Context, string) (*model.CommitteeMember, error)
	RemoveCommitteeMember(context.Context, string) error
}

func timeNow() time.Time {
	loc, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		loc = time.UTC
	}
	return time.Now().In(loc)
}
