package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/unicef/etools-core/internal/model"
	"github.com/unicef/etools-core/internal/tenancy"
)

// ListPartners returns the workspace's partners. Hidden and soft-deleted
// partners are excluded unless show_hidden is set.
func ListPartners(c echo.Context) error {
	db, err := tenancy.DB(c.Request().Context())
	if err != nil {
		return fail(c, err)
	}

	q := db.Model(&model.Partner{}).Where("deleted_flag = ?", false)
	if c.QueryParam("show_hidden") != "true" {
		q = q.Where("hidden = ?", false)
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
	var partners []model.Partner
	if err := q.Order("id").Limit(limit).Offset(offset).Find(&partners).Error; err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"results": partners,
		"count":   total,
		"limit":   limit,
		"offset":  offset,
	})
}

// GetPartner returns one partner with its live HACT counters.
func GetPartner(c echo.Context) error {
	id, err := uintParam(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid partner id"})
	}
	db, err := tenancy.DB(c.Request().Context())
	if err != nil {
		return fail(c, err)
	}
	var partner model.Partner
	if err := db.First(&partner, id).Error; err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "partner not found"})
	}
	return c.JSON(http.StatusOK, echo.Map{"partner": partner})
}

// GetPartnerHactHistory returns a partner's frozen yearly HACT blocks.
func GetPartnerHactHistory(c echo.Context) error {
	id, err := uintParam(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid partner id"})
	}
	db, err := tenancy.DB(c.Request().Context())
	if err != nil {
		return fail(c, err)
	}
	var history []model.HactHistory
	if err := db.Where("partner_id = ?", id).
		Order("year DESC").
		Find(&history).Error; err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"history": history})
}
