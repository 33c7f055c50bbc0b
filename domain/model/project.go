package model

import "time"

type Project struct {
	ID         string    `gorm:"primary_key;type:varchar(36)" json:"id"`
	Name       string    `gorm:"type:varchar(255)" json:"name"`
	OwnerID    string    `gorm:"type:varchar(50)" json:"ownerId"`
	SubOwnerID string    `gorm:"type:varchar(50)" json:"subOwnerId,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// IsLeader は責任者か副責任者かを返す
func (p *Project) IsLeader(userID string) bool {
	if userID == "" {
		return false
	}
	return p.OwnerID == userID || p.SubOwnerID == userID
}

type ProjectMember struct {
	ID        string    `gorm:"primary_key;type:varchar(36)" json:"id"`
	ProjectID string    `gorm:"type:varchar(36);unique_index:idx_project_member" json:"projectId"`
	UserID    string    `gorm:"type:varchar(50);unique_index:idx_project_member" json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}
