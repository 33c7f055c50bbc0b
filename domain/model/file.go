package model

import "time"

// アップロード済みファイルのメタデータ。本体はオブジェクトストレージにある
type UploadedFile struct {
	ID         string    `gorm:"primary_key;type:varchar(36)" json:"id"`
	Key        string    `gorm:"type:varchar(255)" json:"-"`
	FileName   string    `gorm:"type:varchar(255)" json:"fileName"`
	MimeType   string    `gorm:"type:varchar(100)" json:"mimeType"`
	Size       int64     `json:"size"`
	UploaderID string    `gorm:"type:varchar(50);index" json:"uploaderId"`
	IsPublic   bool      `json:"isPublic"`
	CreatedAt  time.Time `json:"createdAt"`
}
