package model

import (
	"time"
)

// FileType is the attachment type directory (code + human name + group).
type FileType struct {
	ID    uint   `json:"id" gorm:"primaryKey"`
	Code  string `json:"code" gorm:"type:varchar(64);uniqueIndex;not null"`
	Name  string `json:"name" gorm:"type:varchar(100)"`
	Group string `json:"group" gorm:"type:varchar(64);index"`
}

// Attachment is addressed by (attached-to kind, attached-to id, slot code).
// Transitions that require a document check for at least one active
// attachment at the designated slot.
type Attachment struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	FileURL      string    `json:"file_url" gorm:"type:text"`
	Hyperlink    string    `json:"hyperlink" gorm:"type:text"`
	FileTypeID   *uint     `json:"file_type_id" gorm:"index"`
	ContentKind  string    `json:"content_kind" gorm:"type:varchar(50);index:idx_attachment_target;not null"`
	ContentID    uint      `json:"content_id" gorm:"index:idx_attachment_target;not null"`
	Code         string    `json:"code" gorm:"type:varchar(64);index:idx_attachment_target"`
	UploadedByID uint      `json:"uploaded_by_id" gorm:"index"`
	UploadedAt   time.Time `json:"uploaded_at"`
	Active       bool      `json:"active" gorm:"default:true"`
}
