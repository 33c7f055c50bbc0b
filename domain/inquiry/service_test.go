package inquiry

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sohosai/sos26-sub000/domain/apperr"
	"github.com/sohosai/sos26-sub000/domain/fileaccess"
	"github.com/sohosai/sos26-sub000/domain/infra"
	"github.com/sohosai/sos26-sub000/domain/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *recordingNotifier) record(e string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
}

func (n *recordingNotifier) InquiryCreated(_ context.Context, i *model.Inquiry) {
	n.record("created:" + i.ID)
}

func (n *recordingNotifier) AssigneeAdded(_ context.Context, _ *model.Inquiry, a *model.Assignee) {
	n.record("assigned:" + a.UserID)
}

func (n *recordingNotifier) StatusChanged(_ context.Context, i *model.Inquiry) {
	n.record("status:" + string(i.Status))
}

func (n *recordingNotifier) CommentAdded(_ context.Context, _ *model.Inquiry, c *model.InquiryComment) {
	n.record("comment:" + c.SenderID)
}

type fakeSummarizer struct {
	got model.InquiryConversation
	err error
}

func (f *fakeSummarizer) GenerateSummary(_ context.Context, conv model.InquiryConversation) (string, error) {
	f.got = conv
	return "summary", f.err
}

type testEnv struct {
	ds       *infra.DataBase
	svc      *Service
	notifier *recordingNotifier
	members  map[string]*model.CommitteeMember
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	ctx := context.Background()

	ds, err := infra.NewDataBase(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { ds.Close() })

	require.NoError(t, ds.SaveProject(ctx, &model.Project{ID: "p1", Name: "模擬店", OwnerID: "owner", SubOwnerID: "sub"}))
	require.NoError(t, ds.SaveProject(ctx, &model.Project{ID: "p2", Name: "展示", OwnerID: "owner2"}))
	require.NoError(t, ds.AddProjectMember(ctx, &model.ProjectMember{ID: "pm1", ProjectID: "p1", UserID: "member"}))

	members := map[string]*model.CommitteeMember{
		"admin":  member("admin", model.BureauHeadquarters, model.PermissionInquiryAdmin),
		"staff":  member("staff", model.BureauPlanning),
		"staff2": member("staff2", model.BureauFinance),
		"pr":     member("pr", model.BureauPublicRelations),
		"gone":   member("gone", model.BureauFinance),
	}
	for _, m := range members {
		require.NoError(t, ds.SaveCommitteeMember(ctx, m))
	}
	require.NoError(t, ds.RemoveCommitteeMember(ctx, "gone"))

	// 監査ログの並びを安定させるため1秒ずつ進める
	var mu sync.Mutex
	base := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	tick := 0
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	n := &recordingNotifier{}
	svc := NewService(ds, append([]Option{WithNotifier(n), WithClock(clock)}, opts...)...)
	return &testEnv{ds: ds, svc: svc, notifier: n, members: members}
}

func (e *testEnv) committee(userID string) Actor {
	return Actor{UserID: userID, Side: model.SideCommittee, Committee: e.members[userID]}
}

func projectActor(userID, projectID string) Actor {
	return Actor{UserID: userID, Side: model.SideProject, ProjectID: projectID}
}

func (e *testEnv) projectInquiry(t *testing.T) *model.Inquiry {
	t.Helper()
	i, err := e.svc.Create(context.Background(), projectActor("owner", "p1"), CreateInput{Title: "電源について", Body: "使える電力を教えてください"})
	require.NoError(t, err)
	return i
}

func (e *testEnv) status(t *testing.T, id string) model.InquiryStatus {
	t.Helper()
	i, err := e.ds.GetInquiry(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, i)
	return i.Status
}

func (e *testEnv) activityTypes(t *testing.T, id string) []model.ActivityType {
	t.Helper()
	acts, err := e.ds.ListActivities(context.Background(), id)
	require.NoError(t, err)
	var types []model.ActivityType
	for _, a := range acts {
		types = append(types, a.Type)
	}
	return types
}

func assertKind(t *testing.T, want apperr.Kind, err error) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, want, apperr.KindOf(err), err.Error())
}

func TestService_Create(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)

	t.Run("committee creates in progress", func(t *testing.T) {
		i, err := e.svc.Create(ctx, e.committee("staff"), CreateInput{Title: "確認", Body: "書類を提出してください", ProjectID: "p1"})
		require.NoError(t, err)
		assert.Equal(t, model.InquiryStatusInProgress, i.Status)
		assert.Equal(t, model.SideCommittee, i.CreatorRole)

		assignees, err := e.ds.ListAssignees(ctx, i.ID)
		require.NoError(t, err)
		require.Len(t, assignees, 1)
		assert.Equal(t, "staff", assignees[0].UserID)
		assert.Equal(t, model.SideCommittee, assignees[0].Side)
		assert.True(t, assignees[0].IsCreator)
	})

	t.Run("project creates unassigned", func(t *testing.T) {
		i, err := e.svc.Create(ctx, projectActor("member", "p1"), CreateInput{Title: "質問", Body: "搬入時間は？", ProjectID: "p2"})
		require.NoError(t, err)
		assert.Equal(t, model.InquiryStatusUnassigned, i.Status)
		// 企画側は自分の企画にしか作れない
		assert.Equal(t, "p1", i.ProjectID)

		assignees, err := e.ds.ListAssignees(ctx, i.ID)
		require.NoError(t, err)
		require.Len(t, assignees, 1)
		assert.Equal(t, model.SideProject, assignees[0].Side)
		assert.True(t, assignees[0].IsCreator)
	})

	t.Run("rejects", func(t *testing.T) {
		_, err := e.svc.Create(ctx, projectActor("stranger", "p1"), CreateInput{Title: "a", Body: "b"})
		assertKind(t, apperr.KindForbidden, err)

		_, err = e.svc.Create(ctx, Actor{UserID: "nobody", Side: model.SideCommittee}, CreateInput{Title: "a", Body: "b", ProjectID: "p1"})
		assertKind(t, apperr.KindForbidden, err)

		_, err = e.svc.Create(ctx, e.committee("staff"), CreateInput{Title: " ", Body: "b", ProjectID: "p1"})
		assertKind(t, apperr.KindInvalidRequest, err)

		_, err = e.svc.Create(ctx, e.committee("staff"), CreateInput{Title: "a", Body: "b", ProjectID: "nope"})
		assertKind(t, apperr.KindNotFound, err)
	})

	assert.Len(t, e.notifier.events, 2)
}

func TestService_AddAssignee_AutoTransition(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	i := e.projectInquiry(t)

	// 企画側担当者の追加では遷移しない
	_, err := e.svc.AddAssignee(ctx, projectActor("owner", "p1"), i.ID, "member", model.SideProject)
	require.NoError(t, err)
	assert.Equal(t, model.InquiryStatusUnassigned, e.status(t, i.ID))

	a, err := e.svc.AddAssignee(ctx, e.committee("admin"), i.ID, "staff", model.SideCommittee)
	require.NoError(t, err)
	assert.Equal(t, model.SideCommittee, a.Side)
	assert.False(t, a.IsCreator)
	assert.Equal(t, model.InquiryStatusInProgress, e.status(t, i.ID))

	// 対応中のまま
	_, err = e.svc.AddAssignee(ctx, e.committee("staff"), i.ID, "staff2", model.SideCommittee)
	require.NoError(t, err)
	assert.Equal(t, model.InquiryStatusInProgress, e.status(t, i.ID))

	// 解決済みのまま
	_, err = e.svc.Resolve(ctx, e.committee("staff"), i.ID)
	require.NoError(t, err)
	_, err = e.svc.AddAssignee(ctx, e.committee("staff"), i.ID, "pr", model.SideCommittee)
	require.NoError(t, err)
	assert.Equal(t, model.InquiryStatusResolved, e.status(t, i.ID))

	assert.Equal(t, []model.ActivityType{
		model.ActivityAssigneeAdded,
		model.ActivityAssigneeAdded,
		model.ActivityAssigneeAdded,
		model.ActivityStatusResolved,
		model.ActivityAssigneeAdded,
	}, e.activityTypes(t, i.ID))

	acts, err := e.ds.ListActivities(ctx, i.ID)
	require.NoError(t, err)
	assert.Equal(t, "admin", acts[1].ActorID)
	assert.Equal(t, "staff", acts[1].TargetID)

	assert.Equal(t, []string{
		"created:" + i.ID,
		"assigned:member",
		"assigned:staff",
		"status:IN_PROGRESS",
		"assigned:staff2",
		"status:RESOLVED",
		"assigned:pr",
	}, e.notifier.events)
}

func TestService_AddAssignee_Rejects(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	i := e.projectInquiry(t)
	_, err := e.svc.AddAssignee(ctx, e.committee("admin"), i.ID, "staff", model.SideCommittee)
	require.NoError(t, err)

	tests := []struct {
		name   string
		actor  Actor
		userID string
		side   model.Side
		want   apperr.Kind
	}{
		{"same user twice", e.committee("admin"), "staff", model.SideCommittee, apperr.KindAlreadyExists},
		{"same user on the other side", e.committee("admin"), "staff", model.SideProject, apperr.KindAlreadyExists},
		{"creator again", e.committee("admin"), "owner", model.SideProject, apperr.KindAlreadyExists},
		{"not a project member", e.committee("admin"), "stranger", model.SideProject, apperr.KindInvalidRequest},
		{"member of another project", e.committee("admin"), "owner2", model.SideProject, apperr.KindInvalidRequest},
		{"former committee member", e.committee("admin"), "gone", model.SideCommittee, apperr.KindInvalidRequest},
		{"not a committee member", e.committee("admin"), "member", model.SideCommittee, apperr.KindInvalidRequest},
		{"unknown side", e.committee("admin"), "pr", "OTHER", apperr.KindInvalidRequest},
		{"empty user", e.committee("admin"), "", model.SideCommittee, apperr.KindInvalidRequest},
		{"viewer cannot assign", e.committee("pr"), "staff2", model.SideCommittee, apperr.KindForbidden},
		{"project adds committee", projectActor("owner", "p1"), "staff2", model.SideCommittee, apperr.KindForbidden},
		{"project non assignee", projectActor("member", "p1"), "sub", model.SideProject, apperr.KindForbidden},
		{"other project", projectActor("owner2", "p2"), "owner2", model.SideProject, apperr.KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.svc.AddAssignee(ctx, tt.actor, i.ID, tt.userID, tt.side)
			assertKind(t, tt.want, err)
		})
	}

	assignees, err := e.ds.ListAssignees(ctx, i.ID)
	require.NoError(t, err)
	assert.Len(t, assignees, 2)

	_, err = e.svc.AddAssignee(ctx, e.committee("admin"), "missing", "staff2", model.SideCommittee)
	assertKind(t, apperr.KindNotFound, err)
}

func TestService_AddAssignee_Concurrent(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	i := e.projectInquiry(t)

	const n = 5
	var wg sync.WaitGroup
	errs := make([]error, n)
	for k := 0; k < n; k++ {
		wg.Add(1)
		go func(k int) {
			defer wg.Done()
			_, errs[k] = e.svc.AddAssignee(ctx, e.committee("admin"), i.ID, "staff", model.SideCommittee)
		}(k)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.Equal(t, apperr.KindAlreadyExists, apperr.KindOf(err), err.Error())
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, model.InquiryStatusInProgress, e.status(t, i.ID))
	assert.Equal(t, []model.ActivityType{model.ActivityAssigneeAdded}, e.activityTypes(t, i.ID))
}

func TestService_RemoveAssignee(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	i := e.projectInquiry(t)
	staff, err := e.svc.AddAssignee(ctx, e.committee("admin"), i.ID, "staff", model.SideCommittee)
	require.NoError(t, err)
	pm, err := e.svc.AddAssignee(ctx, projectActor("owner", "p1"), i.ID, "member", model.SideProject)
	require.NoError(t, err)

	assignees, err := e.ds.ListAssignees(ctx, i.ID)
	require.NoError(t, err)
	var creator model.Assignee
	for _, a := range assignees {
		if a.IsCreator {
			creator = a
		}
	}
	require.Equal(t, "owner", creator.UserID)

	// 作成者は誰からも外せない
	for _, actor := range []Actor{e.committee("admin"), e.committee("staff"), projectActor("owner", "p1")} {
		err := e.svc.RemoveAssignee(ctx, actor, i.ID, creator.ID)
		assertKind(t, apperr.KindInvalidRequest, err)
		assert.ErrorIs(t, err, ErrCreatorAssignee)
	}

	// 企画側から実委側担当者は外せない
	assertKind(t, apperr.KindForbidden, e.svc.RemoveAssignee(ctx, projectActor("owner", "p1"), i.ID, staff.ID))

	require.NoError(t, e.svc.RemoveAssignee(ctx, projectActor("owner", "p1"), i.ID, pm.ID))
	assertKind(t, apperr.KindNotFound, e.svc.RemoveAssignee(ctx, projectActor("owner", "p1"), i.ID, pm.ID))

	// 外れても状態は変わらない
	require.NoError(t, e.svc.RemoveAssignee(ctx, e.committee("admin"), i.ID, staff.ID))
	assert.Equal(t, model.InquiryStatusInProgress, e.status(t, i.ID))

	acts, err := e.ds.ListActivities(ctx, i.ID)
	require.NoError(t, err)
	require.Len(t, acts, 4)
	assert.Equal(t, model.ActivityAssigneeRemoved, acts[2].Type)
	assert.Equal(t, "member", acts[2].TargetID)
	assert.Equal(t, model.ActivityAssigneeRemoved, acts[3].Type)
	assert.Equal(t, "staff", acts[3].TargetID)
	assert.Equal(t, "admin", acts[3].ActorID)
}

func TestService_ViewerOnlyCannotMutate(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	i, err := e.svc.Create(ctx, e.committee("staff"), CreateInput{Title: "広報物", Body: "ポスターの確認", ProjectID: "p1"})
	require.NoError(t, err)

	_, err = e.svc.Get(ctx, e.committee("pr"), i.ID)
	assertKind(t, apperr.KindForbidden, err)

	_, err = e.svc.UpdateViewers(ctx, e.committee("staff"), i.ID, []model.Viewer{bureauRule(model.BureauPublicRelations)})
	require.NoError(t, err)

	d, err := e.svc.Get(ctx, e.committee("pr"), i.ID)
	require.NoError(t, err)
	assert.Equal(t, i.ID, d.Inquiry.ID)
	require.Len(t, d.Viewers, 1)

	_, err = e.svc.AddComment(ctx, e.committee("pr"), i.ID, "見ました")
	assertKind(t, apperr.KindForbidden, err)
	_, err = e.svc.Resolve(ctx, e.committee("pr"), i.ID)
	assertKind(t, apperr.KindForbidden, err)
	_, err = e.svc.UpdateViewers(ctx, e.committee("pr"), i.ID, []model.Viewer{allRule})
	assertKind(t, apperr.KindForbidden, err)

	// 閲覧者ルールに一致しない委員は見られない
	_, err = e.svc.Get(ctx, e.committee("staff2"), i.ID)
	assertKind(t, apperr.KindForbidden, err)
	_, err = e.svc.ListActivities(ctx, e.committee("staff2"), i.ID)
	assertKind(t, apperr.KindForbidden, err)

	// 管理者は担当でなくても操作できる
	_, err = e.svc.AddComment(ctx, e.committee("admin"), i.ID, "確認します")
	require.NoError(t, err)
}

func TestService_ResolveAndReopen(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	i := e.projectInquiry(t)

	// 未対応からも解決できる
	_, err := e.svc.Reopen(ctx, e.committee("admin"), i.ID)
	assertKind(t, apperr.KindInvalidRequest, err)
	resolved, err := e.svc.Resolve(ctx, e.committee("admin"), i.ID)
	require.NoError(t, err)
	assert.Equal(t, model.InquiryStatusResolved, resolved.Status)

	_, err = e.svc.Resolve(ctx, e.committee("admin"), i.ID)
	assertKind(t, apperr.KindInvalidRequest, err)
	assert.ErrorIs(t, err, ErrInvalidState)

	before := len(e.activityTypes(t, i.ID))
	reopened, err := e.svc.Reopen(ctx, e.committee("admin"), i.ID)
	require.NoError(t, err)
	assert.Equal(t, model.InquiryStatusInProgress, reopened.Status)
	assert.Equal(t, model.InquiryStatusInProgress, e.status(t, i.ID))

	types := e.activityTypes(t, i.ID)
	require.Len(t, types, before+1)
	assert.Equal(t, model.ActivityStatusReopened, types[len(types)-1])

	_, err = e.svc.Reopen(ctx, e.committee("admin"), i.ID)
	assertKind(t, apperr.KindInvalidRequest, err)
	assert.Len(t, e.activityTypes(t, i.ID), before+1)

	// 企画側担当者も解決できる
	_, err = e.svc.Resolve(ctx, projectActor("owner", "p1"), i.ID)
	require.NoError(t, err)
	_, err = e.svc.Reopen(ctx, projectActor("member", "p1"), i.ID)
	assertKind(t, apperr.KindForbidden, err)
}

func TestService_AddComment(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	i := e.projectInquiry(t)

	c, err := e.svc.AddComment(ctx, projectActor("owner", "p1"), i.ID, "追記です")
	require.NoError(t, err)
	assert.Equal(t, model.SideProject, c.SenderSide)

	_, err = e.svc.AddComment(ctx, e.committee("staff"), i.ID, "回答します")
	assertKind(t, apperr.KindForbidden, err)
	_, err = e.svc.AddAssignee(ctx, e.committee("admin"), i.ID, "staff", model.SideCommittee)
	require.NoError(t, err)
	_, err = e.svc.AddComment(ctx, e.committee("staff"), i.ID, "回答します")
	require.NoError(t, err)

	_, err = e.svc.AddComment(ctx, e.committee("staff"), i.ID, "  ")
	assertKind(t, apperr.KindInvalidRequest, err)

	_, err = e.svc.Resolve(ctx, e.committee("staff"), i.ID)
	require.NoError(t, err)
	for _, actor := range []Actor{e.committee("staff"), e.committee("admin"), projectActor("owner", "p1")} {
		_, err = e.svc.AddComment(ctx, actor, i.ID, "もう一点")
		assertKind(t, apperr.KindInvalidRequest, err)
	}

	comments, err := e.ds.ListComments(ctx, i.ID)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, "owner", comments[0].SenderID)
	assert.Equal(t, "staff", comments[1].SenderID)

	d, err := e.svc.Get(ctx, projectActor("owner", "p1"), i.ID)
	require.NoError(t, err)
	assert.Len(t, d.Comments, 2)
	assert.Empty(t, d.Viewers)
}

func TestService_UpdateViewers(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	i, err := e.svc.Create(ctx, e.committee("staff"), CreateInput{Title: "会計", Body: "領収書について", ProjectID: "p1"})
	require.NoError(t, err)

	_, err = e.svc.UpdateViewers(ctx, e.committee("staff"), i.ID, []model.Viewer{userRule("pr"), bureauRule(model.BureauFinance)})
	require.NoError(t, err)
	replaced, err := e.svc.UpdateViewers(ctx, e.committee("staff"), i.ID, []model.Viewer{allRule})
	require.NoError(t, err)
	require.Len(t, replaced, 1)

	viewers, err := e.ds.ListViewers(ctx, i.ID)
	require.NoError(t, err)
	require.Len(t, viewers, 1)
	assert.Equal(t, model.ViewerScopeAll, viewers[0].Scope)

	_, err = e.svc.UpdateViewers(ctx, e.committee("staff"), i.ID, []model.Viewer{bureauRule("CAFETERIA")})
	assertKind(t, apperr.KindInvalidRequest, err)
	_, err = e.svc.UpdateViewers(ctx, projectActor("owner", "p1"), i.ID, nil)
	assertKind(t, apperr.KindForbidden, err)

	// 空にすると誰も閲覧者ではなくなる
	_, err = e.svc.UpdateViewers(ctx, e.committee("staff"), i.ID, nil)
	require.NoError(t, err)
	_, err = e.svc.Get(ctx, e.committee("staff2"), i.ID)
	assertKind(t, apperr.KindForbidden, err)

	assert.Equal(t, []model.ActivityType{
		model.ActivityViewerUpdated,
		model.ActivityViewerUpdated,
		model.ActivityViewerUpdated,
	}, e.activityTypes(t, i.ID))
	assert.Equal(t, model.InquiryStatusInProgress, e.status(t, i.ID))
}

func TestService_List(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	mine, err := e.svc.Create(ctx, e.committee("staff"), CreateInput{Title: "1", Body: "a", ProjectID: "p1"})
	require.NoError(t, err)
	shared, err := e.svc.Create(ctx, e.committee("staff2"), CreateInput{Title: "2", Body: "b", ProjectID: "p1"})
	require.NoError(t, err)
	_, err = e.svc.UpdateViewers(ctx, e.committee("staff2"), shared.ID, []model.Viewer{bureauRule(model.BureauPlanning)})
	require.NoError(t, err)
	other, err := e.svc.Create(ctx, projectActor("owner2", "p2"), CreateInput{Title: "3", Body: "c"})
	require.NoError(t, err)

	ids := func(list []model.Inquiry) []string {
		var out []string
		for _, i := range list {
			out = append(out, i.ID)
		}
		return out
	}

	list, err := e.svc.List(ctx, e.committee("staff"))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{mine.ID, shared.ID}, ids(list))

	list, err = e.svc.List(ctx, e.committee("admin"))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{mine.ID, shared.ID, other.ID}, ids(list))

	// 企画側は自分が担当の問い合わせだけ
	list, err = e.svc.List(ctx, projectActor("owner", "p1"))
	require.NoError(t, err)
	assert.Empty(t, list)
	list, err = e.svc.List(ctx, projectActor("owner2", "p2"))
	require.NoError(t, err)
	assert.Equal(t, []string{other.ID}, ids(list))

	_, err = e.svc.List(ctx, Actor{UserID: "x", Side: model.SideCommittee})
	assertKind(t, apperr.KindForbidden, err)
}

func TestService_AttachmentAndChecker(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	i := e.projectInquiry(t)
	require.NoError(t, e.ds.SaveFile(ctx, &model.UploadedFile{ID: "f1", Key: "files/f1", FileName: "layout.pdf", UploaderID: "owner"}))
	require.NoError(t, e.ds.SaveFile(ctx, &model.UploadedFile{ID: "f2", Key: "files/f2", FileName: "other.pdf", UploaderID: "staff"}))

	_, err := e.svc.AddAttachment(ctx, projectActor("owner", "p1"), i.ID, "f2")
	assertKind(t, apperr.KindForbidden, err)
	_, err = e.svc.AddAttachment(ctx, projectActor("owner", "p1"), i.ID, "missing")
	assertKind(t, apperr.KindNotFound, err)
	_, err = e.svc.AddAttachment(ctx, projectActor("owner", "p1"), i.ID, "f1")
	require.NoError(t, err)
	_, err = e.svc.AddAttachment(ctx, projectActor("owner", "p1"), i.ID, "f1")
	assertKind(t, apperr.KindAlreadyExists, err)

	chain := fileaccess.NewChain(e.svc.AttachmentChecker())
	can := func(r fileaccess.Requester) bool {
		ok, err := chain.CanAccessFile(ctx, "f1", r)
		require.NoError(t, err)
		return ok
	}
	assert.True(t, can(fileaccess.Requester{UserID: "owner"}))
	assert.True(t, can(fileaccess.Requester{UserID: "admin", Committee: e.members["admin"]}))
	assert.False(t, can(fileaccess.Requester{UserID: "staff", Committee: e.members["staff"]}))
	assert.False(t, can(fileaccess.Requester{UserID: "member"}))

	_, err = e.svc.AddAssignee(ctx, e.committee("admin"), i.ID, "staff", model.SideCommittee)
	require.NoError(t, err)
	assert.True(t, can(fileaccess.Requester{UserID: "staff", Committee: e.members["staff"]}))

	ok, err := chain.CanAccessFile(ctx, "f2", fileaccess.Requester{UserID: "owner"})
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = e.svc.Resolve(ctx, e.committee("staff"), i.ID)
	require.NoError(t, err)
	_, err = e.svc.AddAttachment(ctx, e.committee("staff"), i.ID, "f2")
	assertKind(t, apperr.KindInvalidRequest, err)
}

func TestService_Summarize(t *testing.T) {
	ctx := context.Background()

	t.Run("disabled", func(t *testing.T) {
		e := newTestEnv(t)
		i := e.projectInquiry(t)
		_, err := e.svc.Summarize(ctx, e.committee("admin"), i.ID)
		assertKind(t, apperr.KindNotFound, err)
	})

	t.Run("enabled", func(t *testing.T) {
		sum := &fakeSummarizer{}
		e := newTestEnv(t, WithSummarizer(sum))
		i := e.projectInquiry(t)
		_, err := e.svc.AddComment(ctx, projectActor("owner", "p1"), i.ID, "追記")
		require.NoError(t, err)

		_, err = e.svc.Summarize(ctx, projectActor("owner", "p1"), i.ID)
		assertKind(t, apperr.KindForbidden, err)
		_, err = e.svc.Summarize(ctx, e.committee("staff"), i.ID)
		assertKind(t, apperr.KindForbidden, err)

		got, err := e.svc.Summarize(ctx, e.committee("admin"), i.ID)
		require.NoError(t, err)
		assert.Equal(t, "summary", got)
		assert.Equal(t, i.Title, sum.got.InquiryTitle)
		require.Len(t, sum.got.Conversations, 1)
		assert.Equal(t, "追記", sum.got.Conversations[0].Text)

		sum.err = errors.New("rate limited")
		_, err = e.svc.Summarize(ctx, e.committee("admin"), i.ID)
		assert.Error(t, err)
		assert.Equal(t, apperr.KindUnknown, apperr.KindOf(err))
	})
}
