package model

import (
	"fmt"
	"time"
)

type Conversation struct {
	TimeStamp time.Time `json:"created_at"`
	Text      string    `json:"content"`
	User      string    `json:"user_name"`
	Side      Side      `json:"side"`
}

// 要約の入力にする問い合わせ1件分のやりとり
type InquiryConversation struct {
	TimeStamp      string         `json:"created_at"`
	Status         InquiryStatus  `json:"status"`
	Assignees      []string       `json:"assignees"`
	InquiryTitle   string         `json:"inquiry_title"`
	InquiryContent string         `json:"inquiry_content"`
	Conversations  []Conversation `json:"conversations"`
}

func (c Conversation) String() string {
	return fmt.Sprintf("time:%s author:%s(%s) content:%s", c.TimeStamp, c.User, c.Side, c.Text)
}

func (c InquiryConversation) String() string {
	return fmt.Sprintf("time:%s status:%s assignees:%v title:%s content:%s conversations:%v", c.TimeStamp, c.Status, c.Assignees, c.InquiryTitle, c.InquiryContent, c.Conversations)
}
