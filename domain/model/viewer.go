package model

import "time"

type ViewerScope string

const (
	ViewerScopeAll        ViewerScope = "ALL"
	ViewerScopeBureau     ViewerScope = "BUREAU"
	ViewerScopeIndividual ViewerScope = "INDIVIDUAL"
)

// 閲覧者ルール。Scope に応じて BureauValue か UserID のどちらか一方だけが入る
type Viewer struct {
	ID          string      `gorm:"primary_key;type:varchar(36)" json:"id"`
	InquiryID   string      `gorm:"type:varchar(36);index" json:"inquiryId"`
	Scope       ViewerScope `gorm:"type:varchar(20)" json:"scope"`
	BureauValue string      `gorm:"type:varchar(50)" json:"bureauValue,omitempty"`
	UserID      string      `gorm:"type:varchar(50)" json:"userId,omitempty"`
	Position    int         `json:"-"` // 登録順
	CreatedAt   time.Time   `json:"createdAt"`
}
