package store

import (
	"context"
	"errors"
	"time"

	"github.com/ianbrucey/war-room-sub000/internal/model"
	"gorm.io/gorm"
)

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{
		db: db,
	}
}

var _ Store = (*GormStore)(nil)

type GormStore struct {
	db *gorm.DB
}

func (g *GormStore) CreateCase(ctx context.Context, c *model.Case) error {
	return g.db.WithContext(ctx).Create(c).Error
}

func (g *GormStore) GetCase(ctx context.Context, id string) (*model.Case, error) {
	var c model.Case
	err := g.db.WithContext(ctx).Where("id = ?", id).First(&c).Error
	return &c, err
}

func (g *GormStore) ListCases(ctx context.Context) ([]*model.Case, error) {
	var cases []*model.Case
	err := g.db.WithContext(ctx).Order("created_at").Find(&cases).Error
	return cases, err
}

func (g *GormStore) CreateDocument(ctx context.Context, doc *model.Document) error {
	err := g.db.WithContext(ctx).Create(doc).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// Two concurrent uploads can race the folder-name claim into the
		// unique index on (case_id, folder_name).
		return ErrFolderNameTaken
	}
	return err
}

func (g *GormStore) GetDocument(ctx context.Context, id string) (*model.Document, error) {
	var doc model.Document
	err := g.db.WithContext(ctx).Where("id = ?", id).First(&doc).Error
	return &doc, err
}

func (g *GormStore) ListDocuments(ctx context.Context, caseID string) ([]*model.Document, error) {
	var docs []*model.Document
	err := g.db.WithContext(ctx).Where("case_id = ?", caseID).Order("uploaded_at").Find(&docs).Error
	return docs, err
}

func (g *GormStore) ListStaleDocuments(ctx context.Context, caseID string, olderThan time.Time) ([]*model.Document, error) {
	var docs []*model.Document
	err := g.db.WithContext(ctx).
		Where("case_id = ?", caseID).
		Where("processing_status NOT IN ?", []model.ProcessingStatus{model.StatusComplete, model.StatusFailed}).
		Where("updated_at < ?", olderThan).
		Find(&docs).Error
	return docs, err
}

func (g *GormStore) FolderNameTaken(ctx context.Context, caseID, folderName string) (bool, error) {
	var count int64
	err := g.db.WithContext(ctx).Model(&model.Document{}).
		Where("case_id = ? AND folder_name = ?", caseID, folderName).
		Count(&count).Error
	return count > 0, err
}

// TransitionStatus performs a compare-and-set on processing_status. The WHERE
// guard makes it the per-document mutual exclusion point: two concurrent stage
// executions cannot both observe the expected status.
func (g *GormStore) TransitionStatus(ctx context.Context, id string, from, to model.ProcessingStatus, updates map[string]interface{}) error {
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["processing_status"] = to

	res := g.db.WithContext(ctx).Model(&model.Document{}).
		Where("id = ? AND processing_status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStatusConflict
	}

	return nil
}

func (g *GormStore) MarkFailed(ctx context.Context, id string, stage model.Stage, cause, errMsg string) error {
	res := g.db.WithContext(ctx).Model(&model.Document{}).
		Where("id = ? AND processing_status NOT IN ?", id, []model.ProcessingStatus{model.StatusComplete, model.StatusFailed}).
		Updates(map[string]interface{}{
			"processing_status": model.StatusFailed,
			"failed_stage":      stage,
			"failure_cause":     cause,
			"failure_error":     errMsg,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStatusConflict
	}

	return nil
}

func (g *GormStore) DeleteDocument(ctx context.Context, id string) error {
	return g.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Document{}).Error
}

func (g *GormStore) Migrate() error {
	return model.Migrate(g.db)
}

func (g *GormStore) Transaction(ctx context.Context, f func(tx Store) error) error {
	return g.db.Transaction(func(tx *gorm.DB) error {
		return f(&GormStore{db: tx})
	})
}
