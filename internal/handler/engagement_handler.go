package handler

import (
	"errors"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/unicef/etools-core/internal/apperr"
	"github.com/unicef/etools-core/internal/middleware"
	"github.com/unicef/etools-core/internal/model"
	"github.com/unicef/etools-core/internal/tenancy"
)

// NewEngagementResource builds the audit engagement HTTP surface.
func NewEngagementResource(deps *Deps) *Resource {
	return &Resource{
		Deps: deps,
		Kind: "engagement",
		New:  func() Object { return &model.Engagement{} },
		Fetch: func(db *gorm.DB, id uint) (Object, error) {
			var e model.Engagement
			if err := db.First(&e, id).Error; err != nil {
				return nil, err
			}
			return &e, nil
		},
		ListPage: func(db *gorm.DB, limit, offset int) (interface{}, int64, error) {
			var total int64
			if err := db.Model(&model.Engagement{}).Count(&total).Error; err != nil {
				return nil, 0, err
			}
			var page []model.Engagement
			err := db.Order("id").Limit(limit).Offset(offset).Find(&page).Error
			return page, total, err
		},
		Columns: map[string]string{
			"kind":         "kind",
			"partner":      "partner_id",
			"auditor_firm": "auditor_firm_id",
			"total_value":  "total_value",
			"end_date":     "end_date",

			"partner_contacted_at":           "partner_contacted_at",
			"date_of_field_visit":            "date_of_field_visit",
			"date_of_draft_report_to_ip":     "date_of_draft_report_to_ip",
			"date_of_comments_by_ip":         "date_of_comments_by_ip",
			"date_of_draft_report_to_unicef": "date_of_draft_report_to_unicef",
			"date_of_comments_by_unicef":     "date_of_comments_by_unicef",

			"focal_points":   "focal_points",
			"staff_members":  "staff_members",
			"findings":       "findings",
			"cancel_comment": "cancel_comment",
		},
		RefCode: func(obj Object) string {
			e := obj.(*model.Engagement)
			if code, ok := model.EngagementKindCode[e.Kind]; ok {
				return code
			}
			return "AUDIT"
		},
		ExportStatuses: map[string]bool{"final": true},
		OnCreate: func(c echo.Context, obj Object, payload map[string]interface{}) error {
			e := obj.(*model.Engagement)
			actor, _ := middleware.CurrentUser(c)
			e.CreatedByID = actor.ID

			kind, _ := payload["kind"].(string)
			if _, ok := model.EngagementKindCode[kind]; !ok {
				return apperr.WithField(apperr.PayloadInvalid, "kind", "unknown engagement kind")
			}
			e.Kind = kind

			partnerID, ok := payloadUint(payload, "partner")
			if !ok {
				return apperr.WithField(apperr.RequiredFieldMissing, "partner", "partner is required")
			}
			if err := requireWorkablePartner(c, partnerID); err != nil {
				return err
			}
			e.PartnerID = partnerID
			return nil
		},
	}
}

// payloadUint reads a numeric JSON value as an id.
func payloadUint(payload map[string]interface{}, key string) (uint, bool) {
	switch v := payload[key].(type) {
	case float64:
		if v > 0 {
			return uint(v), true
		}
	case int:
		if v > 0 {
			return uint(v), true
		}
	}
	return 0, false
}

// requireWorkablePartner rejects new workflow objects against blocked or
// soft-deleted partners.
func requireWorkablePartner(c echo.Context, partnerID uint) error {
	db, err := tenancy.DB(c.Request().Context())
	if err != nil {
		return err
	}
	var partner model.Partner
	if err := db.First(&partner, partnerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.WithField(apperr.PayloadInvalid, "partner", "unknown partner")
		}
		return err
	}
	if partner.Blocked {
		return apperr.WithField(apperr.PayloadInvalid, "partner", "partner is blocked")
	}
	if partner.DeletedFlag {
		return apperr.WithField(apperr.PayloadInvalid, "partner", "partner is marked deleted")
	}
	return nil
}
