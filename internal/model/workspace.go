package model

import (
	"time"
)

// PublicSchemaName is the designated workspace holding shared tables only.
const PublicSchemaName = "public"

// Workspace represents one country-office data namespace. The SchemaName
// selects the Postgres schema all tenant-scoped queries run against.
// Workspaces are created once per country office and never deleted.
type Workspace struct {
	ID               uint      `json:"id" gorm:"primaryKey"`
	SchemaName       string    `json:"schema_name" gorm:"type:varchar(63);uniqueIndex;not null"`
	BusinessAreaCode string    `json:"business_area_code" gorm:"type:varchar(10);index"`
	CountryShortCode string    `json:"country_short_code" gorm:"type:varchar(10)"`
	LongName         string    `json:"long_name" gorm:"type:varchar(255)"`
	LocalCurrency    string    `json:"local_currency" gorm:"type:varchar(5)"`
	Active           bool      `json:"active" gorm:"default:true"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// IsPublic reports whether this is the shared-tables-only workspace.
func (w *Workspace) IsPublic() bool {
	return w.SchemaName == PublicSchemaName
}
