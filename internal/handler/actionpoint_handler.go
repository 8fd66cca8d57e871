package handler

import (
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/unicef/etools-core/internal/apperr"
	"github.com/unicef/etools-core/internal/middleware"
	"github.com/unicef/etools-core/internal/model"
)

// NewActionPointResource builds the action point HTTP surface.
func NewActionPointResource(deps *Deps) *Resource {
	return &Resource{
		Deps: deps,
		Kind: "actionpoint",
		New:  func() Object { return &model.ActionPoint{} },
		Fetch: func(db *gorm.DB, id uint) (Object, error) {
			var a model.ActionPoint
			if err := db.First(&a, id).Error; err != nil {
				return nil, err
			}
			return &a, nil
		},
		ListPage: func(db *gorm.DB, limit, offset int) (interface{}, int64, error) {
			var total int64
			if err := db.Model(&model.ActionPoint{}).Count(&total).Error; err != nil {
				return nil, 0, err
			}
			var page []model.ActionPoint
			err := db.Order("id").Limit(limit).Offset(offset).Find(&page).Error
			return page, total, err
		},
		Columns: map[string]string{
			"description":   "description",
			"due_date":      "due_date",
			"partner":       "partner_id",
			"assigned_to":   "assigned_to_id",
			"assigned_by":   "assigned_by_id",
			"comments":      "comments",
			"high_priority": "high_priority",
		},
		RefCode: func(Object) string { return "APD" },
		OnCreate: func(c echo.Context, obj Object, payload map[string]interface{}) error {
			a := obj.(*model.ActionPoint)
			actor, _ := middleware.CurrentUser(c)
			a.CreatedByID = actor.ID
			a.AssignerID = actor.ID

			assignedTo, ok := payloadUint(payload, "assigned_to")
			if !ok {
				return apperr.WithField(apperr.RequiredFieldMissing, "assigned_to", "assignee is required")
			}
			a.AssignedToID = assignedTo

			if partnerID, ok := payloadUint(payload, "partner"); ok {
				if err := requireWorkablePartner(c, partnerID); err != nil {
					return err
				}
				a.PartnerID = &partnerID
			}
			return nil
		},
	}
}
