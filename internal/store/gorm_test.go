package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/ianbrucey/war-room-sub000/internal/model"
	"github.com/ianbrucey/war-room-sub000/internal/tester"
)

func newTestStore(t *testing.T) *GormStore {
	tester.Setup()
	return NewGormStore(tester.TestDB())
}

func newTestDoc(caseID string) *model.Document {
	return &model.Document{
		ID:               uuid.NewString(),
		CaseID:           caseID,
		Filename:         "motion.pdf",
		FolderName:       "motion_" + uuid.NewString()[:8],
		FileType:         model.FileTypePDF,
		ProcessingStatus: model.StatusPending,
		UploadedAt:       time.Now(),
	}
}

func TestTransitionStatus(t *testing.T) {
	st := newTestStore(t)
	ctx := context.TODO()

	doc := newTestDoc(uuid.NewString())
	assert.NoError(t, st.CreateDocument(ctx, doc))

	err := st.TransitionStatus(ctx, doc.ID, model.StatusPending, model.StatusExtracting, nil)
	assert.NoError(t, err)

	got, err := st.GetDocument(ctx, doc.ID)
	assert.NoError(t, err)
	assert.Equal(t, model.StatusExtracting, got.ProcessingStatus)

	// the same transition again loses the CAS guard
	err = st.TransitionStatus(ctx, doc.ID, model.StatusPending, model.StatusExtracting, nil)
	assert.ErrorIs(t, err, ErrStatusConflict)
}

func TestTransitionStatusAppliesUpdates(t *testing.T) {
	st := newTestStore(t)
	ctx := context.TODO()

	doc := newTestDoc(uuid.NewString())
	doc.ProcessingStatus = model.StatusExtracting
	assert.NoError(t, st.CreateDocument(ctx, doc))

	updates := map[string]interface{}{
		"has_text_extraction": true,
		"page_count":          3,
		"word_count":          120,
	}
	assert.NoError(t, st.TransitionStatus(ctx, doc.ID, model.StatusExtracting, model.StatusAnalyzing, updates))

	got, err := st.GetDocument(ctx, doc.ID)
	assert.NoError(t, err)
	assert.Equal(t, model.StatusAnalyzing, got.ProcessingStatus)
	assert.True(t, got.HasTextExtraction)
	assert.Equal(t, 3, got.PageCount)
	assert.Equal(t, 120, got.WordCount)
}

func TestMarkFailed(t *testing.T) {
	st := newTestStore(t)
	ctx := context.TODO()

	doc := newTestDoc(uuid.NewString())
	doc.ProcessingStatus = model.StatusAnalyzing
	assert.NoError(t, st.CreateDocument(ctx, doc))

	err := st.MarkFailed(ctx, doc.ID, model.StageAnalyze, model.CauseAdapterTransient, "timeout")
	assert.NoError(t, err)

	got, err := st.GetDocument(ctx, doc.ID)
	assert.NoError(t, err)
	assert.Equal(t, model.StatusFailed, got.ProcessingStatus)
	assert.Equal(t, model.StageAnalyze, got.FailedStage)
	assert.Equal(t, model.CauseAdapterTransient, got.FailureCause)

	// terminal documents cannot be failed again
	err = st.MarkFailed(ctx, doc.ID, model.StageAnalyze, model.CauseAdapterTransient, "timeout")
	assert.ErrorIs(t, err, ErrStatusConflict)
}

func TestFolderNameTaken(t *testing.T) {
	st := newTestStore(t)
	ctx := context.TODO()

	caseID := uuid.NewString()
	doc := newTestDoc(caseID)
	doc.FolderName = "motion_to_dismiss"
	assert.NoError(t, st.CreateDocument(ctx, doc))

	taken, err := st.FolderNameTaken(ctx, caseID, "motion_to_dismiss")
	assert.NoError(t, err)
	assert.True(t, taken)

	taken, err = st.FolderNameTaken(ctx, caseID, "motion_to_dismiss_1")
	assert.NoError(t, err)
	assert.False(t, taken)

	// folder names are scoped per case
	taken, err = st.FolderNameTaken(ctx, uuid.NewString(), "motion_to_dismiss")
	assert.NoError(t, err)
	assert.False(t, taken)
}

func TestCreateDocumentDuplicateFolderName(t *testing.T) {
	st := newTestStore(t)
	ctx := context.TODO()

	caseID := uuid.NewString()
	first := newTestDoc(caseID)
	first.FolderName = "motion_to_dismiss"
	assert.NoError(t, st.CreateDocument(ctx, first))

	// a concurrent upload that claimed the same name hits the unique index
	second := newTestDoc(caseID)
	second.FolderName = "motion_to_dismiss"
	assert.ErrorIs(t, st.CreateDocument(ctx, second), ErrFolderNameTaken)

	// the same name in another case is fine
	third := newTestDoc(uuid.NewString())
	third.FolderName = "motion_to_dismiss"
	assert.NoError(t, st.CreateDocument(ctx, third))
}

func TestListStaleDocuments(t *testing.T) {
	st := newTestStore(t)
	ctx := context.TODO()

	caseID := uuid.NewString()

	stale := newTestDoc(caseID)
	stale.ProcessingStatus = model.StatusExtracting
	assert.NoError(t, st.CreateDocument(ctx, stale))

	done := newTestDoc(caseID)
	done.ProcessingStatus = model.StatusComplete
	assert.NoError(t, st.CreateDocument(ctx, done))

	// both records have fresh timestamps: nothing is stale yet
	docs, err := st.ListStaleDocuments(ctx, caseID, time.Now().Add(-time.Minute))
	assert.NoError(t, err)
	assert.Empty(t, docs)

	// non-terminal records older than the cutoff are stale, terminal ones never
	docs, err = st.ListStaleDocuments(ctx, caseID, time.Now().Add(time.Minute))
	assert.NoError(t, err)
	assert.Len(t, docs, 1)
	assert.Equal(t, stale.ID, docs[0].ID)
}
