package model

import "time"

// 担当者。(InquiryID, UserID) は立場に関係なく一意
type Assignee struct {
	ID         string    `gorm:"primary_key;type:varchar(36)" json:"id"`
	InquiryID  string    `gorm:"type:varchar(36);unique_index:idx_assignee_inquiry_user" json:"inquiryId"`
	UserID     string    `gorm:"type:varchar(50);unique_index:idx_assignee_inquiry_user" json:"userId"`
	Side       Side      `gorm:"type:varchar(20)" json:"side"`
	IsCreator  bool      `json:"isCreator"` // 作成者は削除できない
	AssignedAt time.Time `json:"assignedAt"`
}
