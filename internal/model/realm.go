package model

import (
	"time"
)

// Group names granted through realms.
const (
	GroupUNICEFUser      = "UNICEF User"
	GroupAuditFocalPoint = "UNICEF Audit Focal Point"
	GroupAuditor         = "Auditor"
	GroupThirdPartyMon   = "Third Party Monitor"
	GroupFMUser          = "FM User"
	GroupPME             = "PME"
	GroupPSEAAssessor    = "PSEA Assessor"
)

// KnownGroups lists every grantable group.
var KnownGroups = []string{
	GroupUNICEFUser,
	GroupAuditFocalPoint,
	GroupAuditor,
	GroupThirdPartyMon,
	GroupFMUser,
	GroupPME,
	GroupPSEAAssessor,
}

// KnownGroup reports whether the name is a grantable group.
func KnownGroup(name string) bool {
	for _, g := range KnownGroups {
		if g == name {
			return true
		}
	}
	return false
}

// Realm grants a user a group in one workspace while acting for one
// organization. Adding or removing a realm is the only way to grant or revoke
// group membership; removing the last active realm for (user, workspace)
// denies the user access to that workspace.
type Realm struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	UserID         uint      `json:"user_id" gorm:"index;not null;uniqueIndex:idx_realm_unique,priority:1"`
	WorkspaceID    uint      `json:"workspace_id" gorm:"index;not null;uniqueIndex:idx_realm_unique,priority:2"`
	OrganizationID uint      `json:"organization_id" gorm:"index;not null;uniqueIndex:idx_realm_unique,priority:3"`
	GroupName      string    `json:"group_name" gorm:"type:varchar(100);not null;uniqueIndex:idx_realm_unique,priority:4"`
	Active         bool      `json:"active" gorm:"default:true"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	// Relations
	User         User         `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Workspace    Workspace    `json:"workspace,omitempty" gorm:"foreignKey:WorkspaceID"`
	Organization Organization `json:"organization,omitempty" gorm:"foreignKey:OrganizationID"`
}
