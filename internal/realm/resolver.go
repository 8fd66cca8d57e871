// Package realm answers "what groups does this user effectively have in this
// workspace, acting for which organization". Resolution is a pure lookup over
// the shared realm table; there is no per-user group list anywhere else.
package realm

import (
	"context"
	"errors"
	"sort"

	"gorm.io/gorm"

	"github.com/unicef/etools-core/internal/model"
	"github.com/unicef/etools-core/pkg/database"
)

// Resolver resolves group membership from active realms.
type Resolver struct {
	db *gorm.DB
}

// NewResolver builds a resolver over the shared schema. Passing nil uses the
// process-wide shared pool.
func NewResolver(db *gorm.DB) *Resolver {
	return &Resolver{db: db}
}

func (r *Resolver) shared(ctx context.Context) *gorm.DB {
	if r.db != nil {
		return r.db.WithContext(ctx)
	}
	return database.Shared().WithContext(ctx)
}

// Groups returns the active group names for (user, workspace, organization).
// With orgID nil it returns the union across all the user's organizations in
// the workspace.
func (r *Resolver) Groups(ctx context.Context, userID, workspaceID uint, orgID *uint) ([]string, error) {
	q := r.shared(ctx).Model(&model.Realm{}).
		Where("user_id = ? AND workspace_id = ? AND active = ?", userID, workspaceID, true)
	if orgID != nil {
		q = q.Where("organization_id = ?", *orgID)
	}
	var groups []string
	if err := q.Distinct().Pluck("group_name", &groups).Error; err != nil {
		return nil, err
	}
	sort.Strings(groups)
	return groups, nil
}

// Organizations returns the organizations the user can act for in the
// workspace, ordered by vendor number.
func (r *Resolver) Organizations(ctx context.Context, userID, workspaceID uint) ([]model.Organization, error) {
	var orgs []model.Organization
	err := r.shared(ctx).
		Joins("JOIN realms ON realms.organization_id = organizations.id").
		Where("realms.user_id = ? AND realms.workspace_id = ? AND realms.active = ?", userID, workspaceID, true).
		Distinct().
		Order("organizations.vendor_number").
		Find(&orgs).Error
	return orgs, err
}

// DefaultOrganization picks the user's default organization in a workspace:
// the profile's primary organization, else UNICEF if the user has a UNICEF
// realm there, else the lexicographically first by vendor number.
func (r *Resolver) DefaultOrganization(ctx context.Context, user *model.User, workspaceID uint) (*model.Organization, error) {
	orgs, err := r.Organizations(ctx, user.ID, workspaceID)
	if err != nil {
		return nil, err
	}
	if len(orgs) == 0 {
		return nil, nil
	}

	prefs := model.DecodePreferences(user)
	if prefs.PrimaryOrgID != nil {
		for i := range orgs {
			if orgs[i].ID == *prefs.PrimaryOrgID {
				return &orgs[i], nil
			}
		}
	}
	for i := range orgs {
		if orgs[i].IsUNICEF() {
			return &orgs[i], nil
		}
	}
	// orgs is already ordered by vendor number
	return &orgs[0], nil
}

// HasAnyRealm reports whether the user has any active realm in any workspace.
// Users without one are denied access entirely.
func (r *Resolver) HasAnyRealm(ctx context.Context, userID uint) (bool, error) {
	var n int64
	err := r.shared(ctx).Model(&model.Realm{}).
		Where("user_id = ? AND active = ?", userID, true).
		Count(&n).Error
	return n > 0, err
}

// IsUNICEFUser reports whether the user holds an active realm for the UNICEF
// organization anywhere.
func (r *Resolver) IsUNICEFUser(ctx context.Context, userID uint) (bool, error) {
	var n int64
	err := r.shared(ctx).Model(&model.Realm{}).
		Joins("JOIN organizations ON organizations.id = realms.organization_id").
		Where("realms.user_id = ? AND realms.active = ? AND organizations.vendor_number = ?",
			userID, true, model.UNICEFVendorNumber).
		Count(&n).Error
	return n > 0, err
}

// Grant adds (or re-activates) a realm. The only way membership is granted.
func (r *Resolver) Grant(ctx context.Context, userID, workspaceID, organizationID uint, group string) (*model.Realm, error) {
	db := r.shared(ctx)
	var existing model.Realm
	err := db.Where("user_id = ? AND workspace_id = ? AND organization_id = ? AND group_name = ?",
		userID, workspaceID, organizationID, group).First(&existing).Error
	switch {
	case err == nil:
		if !existing.Active {
			existing.Active = true
			if err := db.Save(&existing).Error; err != nil {
				return nil, err
			}
		}
		return &existing, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		realm := model.Realm{
			UserID:         userID,
			WorkspaceID:    workspaceID,
			OrganizationID: organizationID,
			GroupName:      group,
			Active:         true,
		}
		if err := db.Create(&realm).Error; err != nil {
			return nil, err
		}
		return &realm, nil
	default:
		return nil, err
	}
}

// Revoke deactivates a realm. Membership computed from it disappears
// immediately.
func (r *Resolver) Revoke(ctx context.Context, userID, workspaceID, organizationID uint, group string) error {
	return r.shared(ctx).Model(&model.Realm{}).
		Where("user_id = ? AND workspace_id = ? AND organization_id = ? AND group_name = ?",
			userID, workspaceID, organizationID, group).
		Update("active", false).Error
}
