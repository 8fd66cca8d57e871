package model

import (
	"encoding/json"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// User represents the shared identity record. Authentication is external;
// this layer owns identity and preference state only.
type User struct {
	ID          uint           `json:"id" gorm:"primaryKey"`
	Email       string         `json:"email" gorm:"type:varchar(254);uniqueIndex;not null"`
	FirstName   string         `json:"first_name" gorm:"type:varchar(100)"`
	MiddleName  string         `json:"middle_name" gorm:"type:varchar(100)"`
	LastName    string         `json:"last_name" gorm:"type:varchar(100)"`
	IsActive    bool           `json:"is_active" gorm:"default:true"`
	IsStaff     bool           `json:"is_staff" gorm:"default:false"`
	IsSuperuser bool           `json:"is_superuser" gorm:"default:false"`
	Preferences datatypes.JSON `json:"preferences"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// BeforeSave case-folds the email so uniqueness holds regardless of input
// casing.
func (u *User) BeforeSave(tx *gorm.DB) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	return nil
}

// UserPreferences is the decoded shape of User.Preferences.
type UserPreferences struct {
	WorkspaceID    uint  `json:"workspace_id,omitempty"`
	OrganizationID uint  `json:"organization_id,omitempty"`
	PrimaryOrgID   *uint `json:"primary_organization_id,omitempty"`
}

// DecodePreferences decodes the user's preference blob. An empty or
// malformed document decodes to the zero value.
func DecodePreferences(u *User) UserPreferences {
	var prefs UserPreferences
	if len(u.Preferences) > 0 {
		_ = json.Unmarshal(u.Preferences, &prefs)
	}
	return prefs
}

// APIToken is a long-lived token bound to a user. The token value is stored
// bcrypt-hashed; the plaintext is shown once at creation time.
type APIToken struct {
	ID         uint       `json:"id" gorm:"primaryKey"`
	UserID     uint       `json:"user_id" gorm:"index;not null"`
	KeyPrefix  string     `json:"key_prefix" gorm:"type:varchar(12);index;not null"`
	KeyHash    string     `json:"-" gorm:"type:varchar(100);not null"`
	Active     bool       `json:"active" gorm:"default:true"`
	LastUsedAt *time.Time `json:"last_used_at"`
	CreatedAt  time.Time  `json:"created_at"`
}
