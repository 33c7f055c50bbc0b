package inquiry

import "github.com/sohosai/sos26-sub000/domain/model"

// Access は権限判定に使う問い合わせの担当者と閲覧者ルール
type Access struct {
	Assignees []model.Assignee
	Viewers   []model.Viewer
}

func (a Access) IsAssignee(userID string, side model.Side) bool {
	for _, as := range a.Assignees {
		if as.UserID == userID && as.Side == side {
			return true
		}
	}
	return false
}

// CanView: 管理権限 → 実委側担当者 → 閲覧者ルールの順に判定する
func CanView(access Access, member *model.CommitteeMember) bool {
	if member == nil {
		return false
	}
	if CanMutate(access, member) {
		return true
	}
	return MatchViewers(access.Viewers, member.UserID, member.Bureau)
}

// CanMutate は閲覧者ルールを見ない。閲覧者であっても操作はできない
func CanMutate(access Access, member *model.CommitteeMember) bool {
	if member == nil {
		return false
	}
	if member.HasPermission(model.PermissionInquiryAdmin) {
		return true
	}
	return access.IsAssignee(member.UserID, model.SideCommittee)
}

// 企画側は企画側担当者であれば閲覧も操作もできる
func CanActAsProject(access Access, userID string) bool {
	return access.IsAssignee(userID, model.SideProject)
}
