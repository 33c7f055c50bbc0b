package model

import (
	"strings"
	"time"
)

type Bureau string

const (
	BureauFinance           Bureau = "FINANCE"
	BureauGeneralAffairs    Bureau = "GENERAL_AFFAIRS"
	BureauPublicRelations   Bureau = "PUBLIC_RELATIONS"
	BureauExternal          Bureau = "EXTERNAL"
	BureauPromotion         Bureau = "PROMOTION"
	BureauPlanning          Bureau = "PLANNING"
	BureauHeadquarters      Bureau = "HEADQUARTERS"
	BureauInformationSystem Bureau = "INFORMATION_SYSTEM"
)

var bureaus = []Bureau{
	BureauFinance,
	BureauGeneralAffairs,
	BureauPublicRelations,
	BureauExternal,
	BureauPromotion,
	BureauPlanning,
	BureauHeadquarters,
	BureauInformationSystem,
}

func (b Bureau) Valid() bool {
	for _, v := range bureaus {
		if v == b {
			return true
		}
	}
	return false
}

type Permission string

const (
	PermissionInquiryAdmin Permission = "INQUIRY_ADMIN"
	PermissionNoticeAdmin  Permission = "NOTICE_ADMIN"
)

// 実委人。DeletedAt が入っていれば現在は委員ではない
type CommitteeMember struct {
	UserID      string     `gorm:"primary_key;type:varchar(50)" json:"userId"`
	Bureau      Bureau     `gorm:"type:varchar(50)" json:"bureau"`
	Permissions string     `gorm:"type:text" json:"-"` // CSV "INQUIRY_ADMIN,NOTICE_ADMIN"
	CreatedAt   time.Time  `json:"createdAt"`
	DeletedAt   *time.Time `sql:"index" json:"-"`
}

func (c *CommitteeMember) HasPermission(p Permission) bool {
	if c == nil {
		return false
	}
	for _, v := range strings.Split(c.Permissions, ",") {
		if Permission(strings.TrimSpace(v)) == p {
			return true
		}
	}
	return false
}

func (c *CommitteeMember) SetPermissions(ps ...Permission) {
	var s []string
	for _, p := range ps {
		s = append(s, string(p))
	}
	c.Permissions = strings.Join(s, ",")
}
