package model

import "time"

type ActivityType string

const (
	ActivityAssigneeAdded   ActivityType = "ASSIGNEE_ADDED"
	ActivityAssigneeRemoved ActivityType = "ASSIGNEE_REMOVED"
	ActivityViewerUpdated   ActivityType = "VIEWER_UPDATED"
	ActivityStatusResolved  ActivityType = "STATUS_RESOLVED"
	ActivityStatusReopened  ActivityType = "STATUS_REOPENED"
)

// 監査ログ。追記のみで更新・削除はしない
type Activity struct {
	ID        string       `gorm:"primary_key;type:varchar(36)" json:"id"`
	InquiryID string       `gorm:"type:varchar(36);index" json:"inquiryId"`
	Type      ActivityType `gorm:"type:varchar(30)" json:"type"`
	ActorID   string       `gorm:"type:varchar(50)" json:"actorId"`
	TargetID  string       `gorm:"type:varchar(50)" json:"targetId,omitempty"` // 担当者の追加・削除のときの対象ユーザー
	CreatedAt time.Time    `gorm:"index" json:"createdAt"`
}
