package handler

import (
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/unicef/etools-core/internal/apperr"
	"github.com/unicef/etools-core/internal/middleware"
	"github.com/unicef/etools-core/internal/model"
)

// NewPSEAAssessmentResource builds the PSEA assessment HTTP surface.
func NewPSEAAssessmentResource(deps *Deps) *Resource {
	return &Resource{
		Deps: deps,
		Kind: "pseaassessment",
		New:  func() Object { return &model.PSEAAssessment{} },
		Fetch: func(db *gorm.DB, id uint) (Object, error) {
			var p model.PSEAAssessment
			if err := db.First(&p, id).Error; err != nil {
				return nil, err
			}
			return &p, nil
		},
		ListPage: func(db *gorm.DB, limit, offset int) (interface{}, int64, error) {
			var total int64
			if err := db.Model(&model.PSEAAssessment{}).Count(&total).Error; err != nil {
				return nil, 0, err
			}
			var page []model.PSEAAssessment
			err := db.Order("id").Limit(limit).Offset(offset).Find(&page).Error
			return page, total, err
		},
		Columns: map[string]string{
			"partner":         "partner_id",
			"assessor":        "assessor_id",
			"focal_points":    "focal_points",
			"assessment_date": "assessment_date",
			"overall_rating":  "overall_rating",
			"answers":         "answers",
			"reject_comment":  "reject_comment",
		},
		RefCode: func(Object) string { return "PSEA" },
		OnCreate: func(c echo.Context, obj Object, payload map[string]interface{}) error {
			p := obj.(*model.PSEAAssessment)
			actor, _ := middleware.CurrentUser(c)
			p.CreatedByID = actor.ID

			partnerID, ok := payloadUint(payload, "partner")
			if !ok {
				return apperr.WithField(apperr.RequiredFieldMissing, "partner", "partner is required")
			}
			if err := requireWorkablePartner(c, partnerID); err != nil {
				return err
			}
			p.PartnerID = partnerID
			return nil
		},
	}
}
