package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/unicef/etools-core/internal/model"
	"github.com/unicef/etools-core/internal/tenancy"
)

// ListActivities queries the workspace audit log. Filters: target_kind +
// target_id, actor, and a since/until time window (RFC 3339).
func ListActivities(c echo.Context) error {
	db, err := tenancy.DB(c.Request().Context())
	if err != nil {
		return fail(c, err)
	}

	q := db.Model(&model.Activity{})
	if kind := c.QueryParam("target_kind"); kind != "" {
		q = q.Where("target_kind = ?", kind)
		if id, err := strconv.ParseUint(c.QueryParam("target_id"), 10, 32); err == nil {
			q = q.Where("target_id = ?", uint(id))
		}
	}
	if actor, err := strconv.ParseUint(c.QueryParam("actor"), 10, 32); err == nil {
		q = q.Where("actor_id = ?", uint(actor))
	}
	if since := c.QueryParam("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid since timestamp"})
		}
		q = q.Where("at >= ?", t)
	}
	if until := c.QueryParam("until"); until != "" {
		t, err := time.Parse(time.RFC3339, until)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid until timestamp"})
		}
		q = q.Where("at < ?", t)
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	if offset < 0 {
		offset = 0
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return fail(c, err)
	}
	var activities []model.Activity
	if err := q.Order("at DESC, id DESC").Limit(limit).Offset(offset).
		Find(&activities).Error; err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"results": activities,
		"count":   total,
		"limit":   limit,
		"offset":  offset,
	})
}
