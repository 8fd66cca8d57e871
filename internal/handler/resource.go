package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/unicef/etools-core/internal/apperr"
	"github.com/unicef/etools-core/internal/middleware"
	"github.com/unicef/etools-core/internal/model"
	"github.com/unicef/etools-core/internal/permission"
	"github.com/unicef/etools-core/internal/snapshot"
	"github.com/unicef/etools-core/internal/tenancy"
	"github.com/unicef/etools-core/internal/vision"
	"github.com/unicef/etools-core/internal/workflow"
	"github.com/unicef/etools-core/pkg/logger"
)

// Object is what a workflow resource exposes to the HTTP layer: the workflow
// contract plus the permission accessors.
type Object interface {
	workflow.Object
	permission.Subject
}

// Deps bundles the engines every resource handler shares. Exporter is nil
// when no registry endpoint is configured.
type Deps struct {
	Workflow   *workflow.Engine
	Permission *permission.Engine
	Snapshots  *snapshot.Writer
	Exporter   *vision.Exporter
}

// Resource is one workflow entity's HTTP surface. All five workflow kinds
// share the same endpoint shapes; the config supplies the typed pieces.
type Resource struct {
	Deps *Deps

	// Kind is the entity name; it selects the machine, the permission rows
	// and the snapshot target kind.
	Kind string
	// New returns an empty instance.
	New func() Object
	// Fetch loads one instance by id from the pinned workspace.
	Fetch func(db *gorm.DB, id uint) (Object, error)
	// ListPage loads a page ordered by id.
	ListPage func(db *gorm.DB, limit, offset int) (interface{}, int64, error)
	// Columns maps permission field names to database columns. Only mapped
	// fields are writable through the API.
	Columns map[string]string
	// RefCode yields the reference number kind code for a new instance;
	// empty string skips reference assignment.
	RefCode func(obj Object) string
	// OnCreate fills entity-specific defaults from the request before
	// insert (author, kind, linked partner). It may reject the payload.
	OnCreate func(c echo.Context, obj Object, payload map[string]interface{}) error
	// ExportStatuses lists statuses whose arrival pushes the object to the
	// registry. Nil means the kind is never exported.
	ExportStatuses map[string]bool
}

// RegisterRoutes mounts the standard endpoint set on a group.
func (r *Resource) RegisterRoutes(g *echo.Group) {
	g.GET("", r.List)
	g.POST("", r.Create)
	g.GET("/:id", r.Retrieve)
	g.PATCH("/:id", r.Update)
	g.DELETE("/:id", r.Delete)
	g.POST("/:id/transition", r.Transition)
	g.GET("/:id/activity", r.Activity)
}

func (r *Resource) batch(c echo.Context, obj Object) (*permission.Batch, *model.User, error) {
	actor, ok := middleware.CurrentUser(c)
	if !ok {
		return nil, nil, apperr.New(apperr.Unauthenticated, "authentication required")
	}
	ctx := c.Request().Context()
	ws, err := tenancy.Current(ctx)
	if err != nil {
		return nil, nil, err
	}
	batch, err := r.Deps.Permission.NewBatch(ctx, permission.Request{
		Actor:          actor,
		Workspace:      ws,
		OrganizationID: tenancy.Organization(ctx),
		Module:         permission.ModuleForEntity(r.Kind),
		Object:         obj,
	})
	if err != nil {
		return nil, nil, err
	}
	return batch, actor, nil
}

func (r *Resource) permissions(c echo.Context, obj Object) (*permission.Set, error) {
	batch, _, err := r.batch(c, obj)
	if err != nil {
		return nil, err
	}
	return batch.Evaluate(permission.EntityFields(r.Kind), permission.EntityActions(r.Kind))
}

// List returns a page of objects. Pagination is limit/offset with a capped
// page size.
func (r *Resource) List(c echo.Context) error {
	db, err := tenancy.DB(c.Request().Context())
	if err != nil {
		return fail(c, err)
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	if offset < 0 {
		offset = 0
	}

	page, total, err := r.ListPage(db, limit, offset)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"results": page,
		"count":   total,
		"limit":   limit,
		"offset":  offset,
	})
}

// Retrieve returns one object together with the caller's permissions block.
func (r *Resource) Retrieve(c echo.Context) error {
	obj, err := r.load(c)
	if err != nil {
		return fail(c, err)
	}
	perms, err := r.permissions(c, obj)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		r.Kind:        obj,
		"permissions": perms,
	})
}

// Create inserts a new object in its machine's initial status. Every
// submitted field must be editable on a new instance.
func (r *Resource) Create(c echo.Context) error {
	log := logger.FromContext(c)
	var payload map[string]interface{}
	if err := c.Bind(&payload); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	obj := r.New()
	batch, actor, err := r.batch(c, obj)
	if err != nil {
		return fail(c, err)
	}
	updates, err := r.editableColumns(batch, payload)
	if err != nil {
		return fail(c, err)
	}
	if r.OnCreate != nil {
		if err := r.OnCreate(c, obj, payload); err != nil {
			return fail(c, err)
		}
	}

	ctx := c.Request().Context()
	ws, err := tenancy.Current(ctx)
	if err != nil {
		return fail(c, err)
	}
	db, err := tenancy.DB(ctx)
	if err != nil {
		return fail(c, err)
	}

	desc, ok := workflow.Lookup(r.Kind)
	if !ok {
		return fail(c, apperr.Newf(apperr.Internal, "no machine for %s", r.Kind))
	}
	now := time.Now()
	obj.SetStatus(desc.Initial, now)

	err = db.Transaction(func(tx *gorm.DB) error {
		if r.RefCode != nil {
			if err := model.AssignReferenceNumber(tx, ws, obj.TableName(), now.Year(), r.RefCode(obj),
				func(ref string) { setReference(obj, ref) }); err != nil {
				return err
			}
		}
		if err := tx.Create(obj).Error; err != nil {
			return err
		}
		if len(updates) > 0 {
			if err := tx.Table(obj.TableName()).
				Where("id = ?", obj.ObjectID()).
				Updates(updates).Error; err != nil {
				return err
			}
		}
		_, err := r.Deps.Snapshots.Record(tx, actor.ID, model.ActivityKindCreate,
			r.Kind, obj.ObjectID(), nil, obj.TrackedFields())
		return err
	})
	if err != nil {
		return fail(c, err)
	}

	fresh, err := r.Fetch(db, obj.ObjectID())
	if err != nil {
		return fail(c, err)
	}
	perms, err := r.permissions(c, fresh)
	if err != nil {
		return fail(c, err)
	}
	log.Info("Object created",
		zap.String("kind", r.Kind),
		zap.Uint("id", fresh.ObjectID()))
	return c.JSON(http.StatusCreated, echo.Map{
		r.Kind:        fresh,
		"permissions": perms,
	})
}

// Update applies a partial edit. A submitted field the caller may not edit
// in the object's current status fails the whole request.
func (r *Resource) Update(c echo.Context) error {
	log := logger.FromContext(c)
	obj, err := r.load(c)
	if err != nil {
		return fail(c, err)
	}
	var payload map[string]interface{}
	if err := c.Bind(&payload); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	batch, actor, err := r.batch(c, obj)
	if err != nil {
		return fail(c, err)
	}
	updates, err := r.editableColumns(batch, payload)
	if err != nil {
		return fail(c, err)
	}
	if len(updates) == 0 {
		return c.JSON(http.StatusOK, echo.Map{r.Kind: obj})
	}

	ctx := c.Request().Context()
	db, err := tenancy.DB(ctx)
	if err != nil {
		return fail(c, err)
	}

	before := obj.TrackedFields()
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Table(obj.TableName()).
			Where("id = ?", obj.ObjectID()).
			Updates(updates).Error; err != nil {
			return err
		}
		fresh, err := r.Fetch(tx, obj.ObjectID())
		if err != nil {
			return err
		}
		_, err = r.Deps.Snapshots.Record(tx, actor.ID, model.ActivityKindUpdate,
			r.Kind, obj.ObjectID(), before, fresh.TrackedFields())
		return err
	})
	if err != nil {
		return fail(c, err)
	}

	fresh, err := r.Fetch(db, obj.ObjectID())
	if err != nil {
		return fail(c, err)
	}
	perms, err := r.permissions(c, fresh)
	if err != nil {
		return fail(c, err)
	}
	log.Info("Object updated",
		zap.String("kind", r.Kind),
		zap.Uint("id", fresh.ObjectID()))
	return c.JSON(http.StatusOK, echo.Map{
		r.Kind:        fresh,
		"permissions": perms,
	})
}

// Delete soft-deletes an object still in its machine's initial status, when
// the caller holds blanket edit on it. Anything past the initial status is
// part of the audit record and can only be cancelled.
func (r *Resource) Delete(c echo.Context) error {
	log := logger.FromContext(c)
	obj, err := r.load(c)
	if err != nil {
		return fail(c, err)
	}
	desc, ok := workflow.Lookup(r.Kind)
	if !ok {
		return fail(c, apperr.Newf(apperr.Internal, "no machine for %s", r.Kind))
	}
	if obj.CurrentStatus() != desc.Initial {
		return fail(c, apperr.Newf(apperr.PermissionDenied,
			"%s past %q cannot be deleted", r.Kind, desc.Initial))
	}

	batch, actor, err := r.batch(c, obj)
	if err != nil {
		return fail(c, err)
	}
	allowed, err := batch.Allowed("*", model.PermissionKindEdit)
	if err != nil {
		return fail(c, err)
	}
	if !allowed {
		return fail(c, apperr.New(apperr.PermissionDenied, "not allowed to delete this object"))
	}

	db, err := tenancy.DB(c.Request().Context())
	if err != nil {
		return fail(c, err)
	}
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Table(obj.TableName()).
			Where("id = ?", obj.ObjectID()).
			Update("deleted_at", time.Now()).Error; err != nil {
			return err
		}
		_, err := r.Deps.Snapshots.Record(tx, actor.ID, model.ActivityKindDelete,
			r.Kind, obj.ObjectID(), obj.TrackedFields(), nil)
		return err
	})
	if err != nil {
		return fail(c, err)
	}
	log.Info("Object deleted",
		zap.String("kind", r.Kind),
		zap.Uint("id", obj.ObjectID()))
	return c.JSON(http.StatusOK, echo.Map{"message": "deleted"})
}

// Transition runs a workflow action. The body carries the action name and
// the transition payload.
func (r *Resource) Transition(c echo.Context) error {
	log := logger.FromContext(c)
	obj, err := r.load(c)
	if err != nil {
		return fail(c, err)
	}
	actor, ok := middleware.CurrentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	var req struct {
		Action  string                 `json:"action"`
		Payload map[string]interface{} `json:"payload"`
	}
	if err := c.Bind(&req); err != nil || req.Action == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "action is required"})
	}
	if req.Payload == nil {
		req.Payload = map[string]interface{}{}
	}

	ctx := c.Request().Context()
	if err := r.Deps.Workflow.Transition(ctx, obj, req.Action, actor, req.Payload); err != nil {
		return fail(c, err)
	}

	db, err := tenancy.DB(ctx)
	if err != nil {
		return fail(c, err)
	}
	fresh, err := r.Fetch(db, obj.ObjectID())
	if err != nil {
		return fail(c, err)
	}
	perms, err := r.permissions(c, fresh)
	if err != nil {
		return fail(c, err)
	}
	log.Info("Transition applied",
		zap.String("kind", r.Kind),
		zap.Uint("id", fresh.ObjectID()),
		zap.String("action", req.Action),
		zap.String("status", fresh.CurrentStatus()))

	// Registry export happens after commit and never fails the request.
	if r.Deps.Exporter != nil && r.ExportStatuses[fresh.CurrentStatus()] {
		if err := r.Deps.Exporter.Export(ctx, r.Kind, fresh); err != nil {
			log.Error("Registry export failed",
				zap.String("kind", r.Kind),
				zap.Uint("id", fresh.ObjectID()),
				zap.Error(err))
		}
	}
	return c.JSON(http.StatusOK, echo.Map{
		r.Kind:        fresh,
		"permissions": perms,
	})
}

// Activity returns the object's audit trail, newest first.
func (r *Resource) Activity(c echo.Context) error {
	obj, err := r.load(c)
	if err != nil {
		return fail(c, err)
	}
	db, err := tenancy.DB(c.Request().Context())
	if err != nil {
		return fail(c, err)
	}
	var activities []model.Activity
	if err := db.Where("target_kind = ? AND target_id = ?", r.Kind, obj.ObjectID()).
		Order("id DESC").
		Find(&activities).Error; err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"activities": activities})
}

func (r *Resource) load(c echo.Context) (Object, error) {
	id, err := uintParam(c, "id")
	if err != nil {
		return nil, apperr.New(apperr.NotFound, "invalid object id")
	}
	db, err := tenancy.DB(c.Request().Context())
	if err != nil {
		return nil, err
	}
	obj, err := r.Fetch(db, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Newf(apperr.NotFound, "%s %d not found", r.Kind, id)
		}
		return nil, err
	}
	return obj, nil
}

// editableColumns filters the payload to declared fields and verifies each
// against the edit permission. A field missing from the declaration is
// rejected; a declared field without edit permission is a rigid edit.
func (r *Resource) editableColumns(batch *permission.Batch, payload map[string]interface{}) (map[string]interface{}, error) {
	updates := map[string]interface{}{}
	for field, value := range payload {
		column, ok := r.Columns[field]
		if !ok {
			return nil, apperr.WithField(apperr.PayloadInvalid, field, "unknown field")
		}
		allowed, err := batch.Allowed(field, model.PermissionKindEdit)
		if err != nil {
			return nil, err
		}
		if !allowed {
			return nil, apperr.WithField(apperr.RigidFieldEdit, field,
				"field is not editable in the current status")
		}
		updates[column] = value
	}
	return updates, nil
}

func setReference(obj Object, ref string) {
	if s, ok := obj.(interface{ SetReference(string) }); ok {
		s.SetReference(ref)
	}
}

func uintParam(c echo.Context, name string) (uint, error) {
	v, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(v), nil
}
