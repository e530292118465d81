package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/ianbrucey/war-room-sub000/internal/artifact"
	"github.com/ianbrucey/war-room-sub000/internal/model"
	"github.com/ianbrucey/war-room-sub000/internal/store"
	"github.com/ianbrucey/war-room-sub000/internal/tester"
)

type testEnv struct {
	store     *store.GormStore
	artifacts *artifact.FSStore
	caseID    string
}

func newTestEnv(t *testing.T) *testEnv {
	tester.Setup()

	env := &testEnv{
		store:     store.NewGormStore(tester.TestDB()),
		artifacts: artifact.NewFSStore(t.TempDir()),
		caseID:    uuid.NewString(),
	}

	c := &model.Case{ID: env.caseID, Title: "test case", CreatedAt: time.Now()}
	assert.NoError(t, env.store.CreateCase(context.TODO(), c))

	return env
}

func (env *testEnv) addDocument(t *testing.T, status model.ProcessingStatus) *model.Document {
	doc := &model.Document{
		ID:               uuid.NewString(),
		CaseID:           env.caseID,
		Filename:         "motion.txt",
		FolderName:       "motion_" + uuid.NewString()[:8],
		FileType:         model.FileTypeText,
		ProcessingStatus: status,
		UploadedAt:       time.Now(),
	}
	assert.NoError(t, env.store.CreateDocument(context.TODO(), doc))
	return doc
}

// ageDocument backdates updated_at so the record counts as stale.
func (env *testEnv) ageDocument(t *testing.T, id string) {
	old := time.Now().Add(-time.Hour)
	err := tester.TestDB().Exec("UPDATE documents SET updated_at = ? WHERE id = ?", old, id).Error
	assert.NoError(t, err)
}

func TestReconcileNoOpOnConsistentCase(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.TODO()

	// one complete document with all artifacts in place
	doc := env.addDocument(t, model.StatusComplete)
	assert.NoError(t, env.artifacts.WriteOriginal(ctx, env.caseID, doc.FolderName, ".txt", []byte("text")))
	assert.NoError(t, env.artifacts.WriteExtractedText(ctx, env.caseID, doc.FolderName, []byte("text")))
	assert.NoError(t, env.artifacts.WriteMetadata(ctx, env.caseID, doc.FolderName, []byte(`{"executive_summary":"s"}`)))

	r := New(env.store, env.artifacts, 10*time.Minute, 7*24*time.Hour)
	report, err := r.Reconcile(ctx, env.caseID)
	assert.NoError(t, err)
	assert.Equal(t, Report{}, *report)

	got, err := env.store.GetDocument(ctx, doc.ID)
	assert.NoError(t, err)
	assert.Equal(t, model.StatusComplete, got.ProcessingStatus)
}

func TestReconcileOrphanedRecord(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.TODO()

	// record exists, no artifact content was ever written
	doc := env.addDocument(t, model.StatusPending)
	env.ageDocument(t, doc.ID)

	r := New(env.store, env.artifacts, 10*time.Minute, 7*24*time.Hour)
	report, err := r.Reconcile(ctx, env.caseID)
	assert.NoError(t, err)
	assert.Equal(t, 1, report.OrphanedRecords)

	got, err := env.store.GetDocument(ctx, doc.ID)
	assert.NoError(t, err)
	assert.Equal(t, model.StatusFailed, got.ProcessingStatus)
	assert.Equal(t, model.CauseMissingArtifact, got.FailureCause)
}

func TestReconcileCrashBetweenArtifactWriteAndCommit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.TODO()

	// crash after the extracted-text write but before the status commit:
	// the record is stuck in extracting with the stage output present
	doc := env.addDocument(t, model.StatusExtracting)
	assert.NoError(t, env.artifacts.WriteOriginal(ctx, env.caseID, doc.FolderName, ".txt", []byte("text")))
	assert.NoError(t, env.artifacts.WriteExtractedText(ctx, env.caseID, doc.FolderName, []byte("--- Page 1 ---\ntext")))
	env.ageDocument(t, doc.ID)

	r := New(env.store, env.artifacts, 10*time.Minute, 7*24*time.Hour)
	report, err := r.Reconcile(ctx, env.caseID)
	assert.NoError(t, err)
	assert.Equal(t, 1, report.RepairedStale)

	got, err := env.store.GetDocument(ctx, doc.ID)
	assert.NoError(t, err)
	assert.Equal(t, model.StatusAnalyzing, got.ProcessingStatus)
	assert.True(t, got.HasTextExtraction)
}

func TestReconcileRewindsUnfinishedExtraction(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.TODO()

	// crash before the extracted-text write: re-queue the stage
	doc := env.addDocument(t, model.StatusExtracting)
	assert.NoError(t, env.artifacts.WriteOriginal(ctx, env.caseID, doc.FolderName, ".txt", []byte("text")))
	env.ageDocument(t, doc.ID)

	r := New(env.store, env.artifacts, 10*time.Minute, 7*24*time.Hour)
	report, err := r.Reconcile(ctx, env.caseID)
	assert.NoError(t, err)
	assert.Equal(t, 1, report.RepairedStale)

	got, err := env.store.GetDocument(ctx, doc.ID)
	assert.NoError(t, err)
	assert.Equal(t, model.StatusPending, got.ProcessingStatus)
}

func TestReconcileFailsAbandonedAnalysis(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.TODO()

	doc := env.addDocument(t, model.StatusAnalyzing)
	assert.NoError(t, env.artifacts.WriteOriginal(ctx, env.caseID, doc.FolderName, ".txt", []byte("text")))
	assert.NoError(t, env.artifacts.WriteExtractedText(ctx, env.caseID, doc.FolderName, []byte("text")))
	env.ageDocument(t, doc.ID)

	r := New(env.store, env.artifacts, 10*time.Minute, 7*24*time.Hour)
	report, err := r.Reconcile(ctx, env.caseID)
	assert.NoError(t, err)
	assert.Equal(t, 1, report.RepairedStale)

	got, err := env.store.GetDocument(ctx, doc.ID)
	assert.NoError(t, err)
	assert.Equal(t, model.StatusFailed, got.ProcessingStatus)
	assert.Equal(t, model.StageAnalyze, got.FailedStage)
}

func TestReconcileArchivesOrphanedFolder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.TODO()

	// artifact folder with no owning record
	assert.NoError(t, env.artifacts.WriteOriginal(ctx, env.caseID, "ghost_folder", ".txt", []byte("text")))

	// zero grace so the fresh folder counts as abandoned
	r := New(env.store, env.artifacts, 0, 7*24*time.Hour)
	report, err := r.Reconcile(ctx, env.caseID)
	assert.NoError(t, err)
	assert.Equal(t, 1, report.ArchivedFolders)

	folders, err := env.artifacts.ListFolders(ctx, env.caseID)
	assert.NoError(t, err)
	assert.Empty(t, folders)
}
