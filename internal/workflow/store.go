package workflow

import (
	"context"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/unicef/etools-core/internal/apperr"
	"github.com/unicef/etools-core/internal/model"
	"github.com/unicef/etools-core/internal/snapshot"
	"github.com/unicef/etools-core/internal/tenancy"
)

// Store is the engine's view of the tenant data store. The production
// implementation wraps the workspace-pinned gorm handle; tests substitute a
// memory store.
type Store interface {
	// InTransaction runs fn against a store bound to one unit of work.
	InTransaction(ctx context.Context, fn func(tx Store) error) error
	// LockStatus takes the row lock and returns the current status.
	LockStatus(ctx context.Context, obj Object) (string, error)
	SaveStatus(ctx context.Context, obj Object, to string, at time.Time) error
	UpdateFields(ctx context.Context, obj Object, fields map[string]interface{}) error
	AppendLog(ctx context.Context, rec *model.TransitionLog) error
	CountActiveAttachments(ctx context.Context, obj Object, slot string) (int64, error)
	WriteSnapshot(ctx context.Context, actorID uint, kind string, obj Object, before, after map[string]interface{}) error
	IncrementHactCounter(ctx context.Context, partnerID uint, counter, sourceKind string, sourceID uint) error
	EnqueueNotification(ctx context.Context, rec *model.NotificationOutbox) error
	LatestFinalAnswers(ctx context.Context, partnerID, excludeID uint) (datatypes.JSON, error)
}

// GormStore is the production Store over the pinned workspace schema.
type GormStore struct {
	db        *gorm.DB // nil outside a transaction; resolved from ctx
	Snapshots *snapshot.Writer
	Hact      HactIncrementer
}

// HactIncrementer applies one guarded counter increment inside the caller's
// transaction.
type HactIncrementer interface {
	Increment(tx *gorm.DB, partnerID uint, counter, sourceKind string, sourceID uint) error
}

// NewStore builds the production store.
func NewStore(snapshots *snapshot.Writer, hact HactIncrementer) *GormStore {
	return &GormStore{Snapshots: snapshots, Hact: hact}
}

func (s *GormStore) handle(ctx context.Context) (*gorm.DB, error) {
	if s.db != nil {
		return s.db, nil
	}
	return tenancy.DB(ctx)
}

// InTransaction opens one gorm transaction and rebinds the store to it.
func (s *GormStore) InTransaction(ctx context.Context, fn func(tx Store) error) error {
	db, err := s.handle(ctx)
	if err != nil {
		return err
	}
	return db.Transaction(func(tx *gorm.DB) error {
		bound := &GormStore{db: tx, Snapshots: s.Snapshots, Hact: s.Hact}
		return fn(bound)
	})
}

// LockStatus acquires the row-level lock and reads the fresh status.
func (s *GormStore) LockStatus(ctx context.Context, obj Object) (string, error) {
	db, err := s.handle(ctx)
	if err != nil {
		return "", err
	}
	var status string
	err = db.Raw("SELECT status FROM "+obj.TableName()+" WHERE id = ? FOR UPDATE", obj.ObjectID()).
		Scan(&status).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", apperr.Newf(apperr.NotFound, "%s %d not found", obj.ObjectKind(), obj.ObjectID())
	}
	if err != nil {
		return "", err
	}
	if status == "" {
		return "", apperr.Newf(apperr.NotFound, "%s %d not found", obj.ObjectKind(), obj.ObjectID())
	}
	return status, nil
}

func (s *GormStore) SaveStatus(ctx context.Context, obj Object, to string, at time.Time) error {
	db, err := s.handle(ctx)
	if err != nil {
		return err
	}
	return db.Table(obj.TableName()).
		Where("id = ?", obj.ObjectID()).
		Updates(map[string]interface{}{"status": to, "status_date": at}).Error
}

func (s *GormStore) UpdateFields(ctx context.Context, obj Object, fields map[string]interface{}) error {
	db, err := s.handle(ctx)
	if err != nil {
		return err
	}
	return db.Table(obj.TableName()).Where("id = ?", obj.ObjectID()).Updates(fields).Error
}

func (s *GormStore) AppendLog(ctx context.Context, rec *model.TransitionLog) error {
	db, err := s.handle(ctx)
	if err != nil {
		return err
	}
	return db.Create(rec).Error
}

func (s *GormStore) CountActiveAttachments(ctx context.Context, obj Object, slot string) (int64, error) {
	db, err := s.handle(ctx)
	if err != nil {
		return 0, err
	}
	var n int64
	err = db.Model(&model.Attachment{}).
		Where("content_kind = ? AND content_id = ? AND code = ? AND active = ?",
			obj.ObjectKind(), obj.ObjectID(), slot, true).
		Count(&n).Error
	return n, err
}

func (s *GormStore) WriteSnapshot(ctx context.Context, actorID uint, kind string, obj Object, before, after map[string]interface{}) error {
	db, err := s.handle(ctx)
	if err != nil {
		return err
	}
	_, err = s.Snapshots.Record(db, actorID, kind, obj.ObjectKind(), obj.ObjectID(), before, after)
	return err
}

func (s *GormStore) IncrementHactCounter(ctx context.Context, partnerID uint, counter, sourceKind string, sourceID uint) error {
	db, err := s.handle(ctx)
	if err != nil {
		return err
	}
	return s.Hact.Increment(db, partnerID, counter, sourceKind, sourceID)
}

func (s *GormStore) EnqueueNotification(ctx context.Context, rec *model.NotificationOutbox) error {
	db, err := s.handle(ctx)
	if err != nil {
		return err
	}
	return db.Create(rec).Error
}

func (s *GormStore) LatestFinalAnswers(ctx context.Context, partnerID, excludeID uint) (datatypes.JSON, error) {
	db, err := s.handle(ctx)
	if err != nil {
		return nil, err
	}
	var prev model.PSEAAssessment
	err = db.Where("partner_id = ? AND status = ? AND id <> ?", partnerID, model.PSEAStatusFinal, excludeID).
		Order("status_date DESC").
		First(&prev).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return prev.Answers, nil
}
