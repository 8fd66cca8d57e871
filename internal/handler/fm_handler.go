package handler

import (
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/unicef/etools-core/internal/middleware"
	"github.com/unicef/etools-core/internal/model"
)

// NewMonitoringActivityResource builds the field monitoring activity HTTP
// surface.
func NewMonitoringActivityResource(deps *Deps) *Resource {
	return &Resource{
		Deps: deps,
		Kind: "monitoringactivity",
		New:  func() Object { return &model.MonitoringActivity{} },
		Fetch: func(db *gorm.DB, id uint) (Object, error) {
			var m model.MonitoringActivity
			if err := db.First(&m, id).Error; err != nil {
				return nil, err
			}
			return &m, nil
		},
		ListPage: func(db *gorm.DB, limit, offset int) (interface{}, int64, error) {
			var total int64
			if err := db.Model(&model.MonitoringActivity{}).Count(&total).Error; err != nil {
				return nil, 0, err
			}
			var page []model.MonitoringActivity
			err := db.Order("id").Limit(limit).Offset(offset).Find(&page).Error
			return page, total, err
		},
		Columns: map[string]string{
			"partner":              "partner_id",
			"visit_lead":           "visit_lead_id",
			"team_members":         "team_members",
			"report_reviewers":     "report_reviewers",
			"start_date":           "start_date",
			"end_date":             "end_date",
			"reject_reason":        "reject_reason",
			"report_reject_reason": "report_reject_reason",
			"cancel_reason":        "cancel_reason",
		},
		RefCode: func(Object) string { return "FM" },
		OnCreate: func(c echo.Context, obj Object, payload map[string]interface{}) error {
			m := obj.(*model.MonitoringActivity)
			actor, _ := middleware.CurrentUser(c)
			m.CreatedByID = actor.ID
			if partnerID, ok := payloadUint(payload, "partner"); ok {
				if err := requireWorkablePartner(c, partnerID); err != nil {
					return err
				}
				m.PartnerID = &partnerID
			}
			return nil
		},
	}
}
