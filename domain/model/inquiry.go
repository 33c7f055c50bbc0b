package model

import "time"

type InquiryStatus string

const (
	InquiryStatusUnassigned InquiryStatus = "UNASSIGNED"
	InquiryStatusInProgress InquiryStatus = "IN_PROGRESS"
	InquiryStatusResolved   InquiryStatus = "RESOLVED"
)

// Side は担当者・投稿者がどちらの立場かを表す
type Side string

const (
	SideProject   Side = "PROJECT"
	SideCommittee Side = "COMMITTEE"
)

func (s Side) Valid() bool {
	return s == SideProject || s == SideCommittee
}

type Inquiry struct {
	ID          string        `gorm:"primary_key;type:varchar(36)" json:"id"`
	Title       string        `gorm:"type:varchar(255)" json:"title"`
	Body        string        `gorm:"type:text" json:"body"`
	Status      InquiryStatus `gorm:"type:varchar(20);index" json:"status"`
	CreatorRole Side          `gorm:"type:varchar(20)" json:"creatorRole"`
	ProjectID   string        `gorm:"type:varchar(36);index" json:"projectId"` // 対象の企画
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

type InquiryComment struct {
	ID         string    `gorm:"primary_key;type:varchar(36)" json:"id"`
	InquiryID  string    `gorm:"type:varchar(36);index" json:"inquiryId"`
	Body       string    `gorm:"type:text" json:"body"`
	SenderID   string    `gorm:"type:varchar(50)" json:"senderId"`
	SenderSide Side      `gorm:"type:varchar(20)" json:"senderSide"`
	CreatedAt  time.Time `json:"createdAt"`
}

// 問い合わせに添付されたファイル
type InquiryAttachment struct {
	ID           string    `gorm:"primary_key;type:varchar(36)" json:"id"`
	InquiryID    string    `gorm:"type:varchar(36);unique_index:idx_attachment_inquiry_file" json:"inquiryId"`
	FileID       string    `gorm:"type:varchar(36);unique_index:idx_attachment_inquiry_file;index" json:"fileId"`
	UploadedByID string    `gorm:"type:varchar(50)" json:"uploadedById"`
	CreatedAt    time.Time `json:"createdAt"`
}
