package handler

import (
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/unicef/etools-core/internal/middleware"
	"github.com/unicef/etools-core/internal/model"
)

// NewTPMVisitResource builds the third-party monitoring visit HTTP surface.
func NewTPMVisitResource(deps *Deps) *Resource {
	return &Resource{
		Deps: deps,
		Kind: "tpmvisit",
		New:  func() Object { return &model.TPMVisit{} },
		Fetch: func(db *gorm.DB, id uint) (Object, error) {
			var v model.TPMVisit
			if err := db.First(&v, id).Error; err != nil {
				return nil, err
			}
			return &v, nil
		},
		ListPage: func(db *gorm.DB, limit, offset int) (interface{}, int64, error) {
			var total int64
			if err := db.Model(&model.TPMVisit{}).Count(&total).Error; err != nil {
				return nil, 0, err
			}
			var page []model.TPMVisit
			err := db.Order("id").Limit(limit).Offset(offset).Find(&page).Error
			return page, total, err
		},
		Columns: map[string]string{
			"tpm_partner":           "tpm_partner_id",
			"partner":               "partner_id",
			"team_members":          "team_members",
			"unicef_focal_points":   "unicef_focal_points",
			"start_date":            "start_date",
			"end_date":              "end_date",
			"reject_comment":        "reject_comment",
			"report_reject_comment": "report_reject_comment",
			"cancel_comment":        "cancel_comment",
		},
		RefCode: func(Object) string { return "TPM" },
		OnCreate: func(c echo.Context, obj Object, payload map[string]interface{}) error {
			v := obj.(*model.TPMVisit)
			actor, _ := middleware.CurrentUser(c)
			v.CreatedByID = actor.ID
			if partnerID, ok := payloadUint(payload, "partner"); ok {
				if err := requireWorkablePartner(c, partnerID); err != nil {
					return err
				}
				v.PartnerID = &partnerID
			}
			return nil
		},
	}
}
