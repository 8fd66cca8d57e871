package model

import (
	"time"
)

// Organization types; VendorNumber is the finance-registry key.
const (
	OrganizationTypeUNAgency   = "UN_AGENCY"
	OrganizationTypeCSO        = "CSO"
	OrganizationTypeGovernment = "GOVERNMENT"
	OrganizationTypeBilateral  = "BILATERAL"
	OrganizationTypeAuditor    = "AUDITOR"
	OrganizationTypeTPM        = "TPM"
)

// UNICEFVendorNumber identifies the UNICEF organization itself in the shared
// directory. A user is "UNICEF" iff they hold an active realm for it.
const UNICEFVendorNumber = "000"

// Organization is the shared partner/firm directory entry.
type Organization struct {
	ID               uint      `json:"id" gorm:"primaryKey"`
	Name             string    `json:"name" gorm:"type:varchar(255);not null"`
	VendorNumber     string    `json:"vendor_number" gorm:"type:varchar(30);uniqueIndex;not null"`
	OrganizationType string    `json:"organization_type" gorm:"type:varchar(30);index"`
	CSOType          *string   `json:"cso_type,omitempty" gorm:"type:varchar(50)"`
	ShortName        string    `json:"short_name" gorm:"type:varchar(50)"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// IsUNICEF reports whether this is the UNICEF organization.
func (o *Organization) IsUNICEF() bool {
	return o.VendorNumber == UNICEFVendorNumber
}
