package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/unicef/etools-core/internal/middleware"
	"github.com/unicef/etools-core/internal/model"
	"github.com/unicef/etools-core/internal/tenancy"
	"github.com/unicef/etools-core/pkg/logger"
)

// ListAttachments returns the active attachments for one target object.
func ListAttachments(c echo.Context) error {
	kind := c.QueryParam("content_kind")
	contentID, err := uintQueryParam(c, "content_id")
	if kind == "" || err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "content_kind and content_id are required"})
	}
	db, err := tenancy.DB(c.Request().Context())
	if err != nil {
		return fail(c, err)
	}
	var attachments []model.Attachment
	if err := db.Where("content_kind = ? AND content_id = ? AND active = ?", kind, contentID, true).
		Order("id").
		Find(&attachments).Error; err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"attachments": attachments})
}

// CreateAttachment records an uploaded file against a target object's slot.
// Storage itself is external; only the reference lives here.
func CreateAttachment(c echo.Context) error {
	log := logger.FromContext(c)
	user, ok := middleware.CurrentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	var req struct {
		ContentKind string `json:"content_kind"`
		ContentID   uint   `json:"content_id"`
		Code        string `json:"code"`
		FileURL     string `json:"file_url"`
		Hyperlink   string `json:"hyperlink"`
		FileTypeID  *uint  `json:"file_type_id"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.ContentKind == "" || req.ContentID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "content_kind and content_id are required"})
	}
	if req.FileURL == "" && req.Hyperlink == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "file_url or hyperlink is required"})
	}

	db, err := tenancy.DB(c.Request().Context())
	if err != nil {
		return fail(c, err)
	}
	attachment := model.Attachment{
		ContentKind:  req.ContentKind,
		ContentID:    req.ContentID,
		Code:         req.Code,
		FileURL:      req.FileURL,
		Hyperlink:    req.Hyperlink,
		FileTypeID:   req.FileTypeID,
		UploadedByID: user.ID,
		UploadedAt:   time.Now(),
		Active:       true,
	}
	if err := db.Create(&attachment).Error; err != nil {
		return fail(c, err)
	}
	log.Info("Attachment recorded",
		zap.String("content_kind", req.ContentKind),
		zap.Uint("content_id", req.ContentID),
		zap.String("code", req.Code))
	return c.JSON(http.StatusCreated, echo.Map{"attachment": attachment})
}

// DeleteAttachment deactivates an attachment. The row stays for the audit
// record.
func DeleteAttachment(c echo.Context) error {
	id, err := uintParam(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid attachment id"})
	}
	db, err := tenancy.DB(c.Request().Context())
	if err != nil {
		return fail(c, err)
	}
	res := db.Model(&model.Attachment{}).Where("id = ?", id).Update("active", false)
	if res.Error != nil {
		return fail(c, res.Error)
	}
	if res.RowsAffected == 0 {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "attachment not found"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "attachment removed"})
}

// ListFileTypes returns the attachment type directory.
func ListFileTypes(c echo.Context) error {
	db, err := tenancy.DB(c.Request().Context())
	if err != nil {
		return fail(c, err)
	}
	var types []model.FileType
	if err := db.Order("code").Find(&types).Error; err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"file_types": types})
}

func uintQueryParam(c echo.Context, name string) (uint, error) {
	v, err := strconv.ParseUint(c.QueryParam(name), 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(v), nil
}
