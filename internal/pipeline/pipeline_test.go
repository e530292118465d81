package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/ianbrucey/war-room-sub000/internal/artifact"
	"github.com/ianbrucey/war-room-sub000/internal/extract"
	"github.com/ianbrucey/war-room-sub000/internal/fault"
	"github.com/ianbrucey/war-room-sub000/internal/model"
	"github.com/ianbrucey/war-room-sub000/internal/notify"
	"github.com/ianbrucey/war-room-sub000/internal/store"
	"github.com/ianbrucey/war-room-sub000/internal/tester"
)

type testEnv struct {
	store     *store.GormStore
	artifacts *artifact.FSStore
	extractor *tester.FakeExtractor
	analyzer  *tester.FakeAnalyzer
	indexer   *tester.FakeIndexer
	recorder  *tester.RecordingNotifier
	pipe      *Pipeline
	caseID    string
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	tester.Setup()

	env := &testEnv{
		store:     store.NewGormStore(tester.TestDB()),
		artifacts: artifact.NewFSStore(t.TempDir()),
		extractor: &tester.FakeExtractor{},
		analyzer:  &tester.FakeAnalyzer{},
		indexer:   &tester.FakeIndexer{},
		recorder:  &tester.RecordingNotifier{},
		caseID:    uuid.NewString(),
	}

	if opts.RetryAttempts == 0 {
		opts.RetryAttempts = 3
	}
	if opts.RetryBaseWait == 0 {
		opts.RetryBaseWait = time.Millisecond
	}
	if opts.MaxConcurrent == 0 {
		opts.MaxConcurrent = 4
	}
	if opts.MaxFileBytes == 0 {
		opts.MaxFileBytes = 1 << 20
	}

	env.pipe = New(env.store, env.artifacts, env.extractor, env.analyzer, env.indexer, env.recorder, nil, opts)

	c := &model.Case{ID: env.caseID, Title: "test case", CreatedAt: time.Now()}
	assert.NoError(t, env.store.CreateCase(context.TODO(), c))

	return env
}

func TestIngestHappyPath(t *testing.T) {
	env := newTestEnv(t, Options{})
	ctx := context.TODO()

	content := []byte("page one text\fpage two text")
	doc, err := env.pipe.Ingest(ctx, env.caseID, content, "motion_to_dismiss.txt")
	assert.NoError(t, err)
	assert.Equal(t, "motion_to_dismiss", doc.FolderName)

	env.pipe.Wait()

	got, err := env.store.GetDocument(ctx, doc.ID)
	assert.NoError(t, err)
	assert.Equal(t, model.StatusComplete, got.ProcessingStatus)
	assert.Equal(t, 2, got.PageCount)
	assert.True(t, got.HasTextExtraction)
	assert.True(t, got.HasMetadata)
	assert.True(t, got.RagIndexed)
	assert.Equal(t, "test-collection", got.IndexStoreRef)
	assert.NotNil(t, got.ProcessedAt)

	// flags correspond to artifacts
	has, err := env.artifacts.HasExtractedText(ctx, env.caseID, got.FolderName)
	assert.NoError(t, err)
	assert.True(t, has)
	has, err = env.artifacts.HasMetadata(ctx, env.caseID, got.FolderName)
	assert.NoError(t, err)
	assert.True(t, has)

	assert.Contains(t, env.indexer.Indexed, doc.ID)
}

func TestIngestEmitsMonotonicProgress(t *testing.T) {
	env := newTestEnv(t, Options{})

	doc, err := env.pipe.Ingest(context.TODO(), env.caseID, []byte("some text"), "notes.txt")
	assert.NoError(t, err)

	env.pipe.Wait()

	var percents []int
	for _, event := range env.recorder.Events() {
		if event.DocumentID == doc.ID {
			percents = append(percents, event.Percent)
		}
	}
	assert.NotEmpty(t, percents)
	assert.Equal(t, notify.PercentFor(model.StatusComplete), percents[len(percents)-1])
	for i := 1; i < len(percents); i++ {
		assert.GreaterOrEqual(t, percents[i], percents[i-1])
	}
}

func TestIngestOversizedRejected(t *testing.T) {
	env := newTestEnv(t, Options{MaxFileBytes: 16})
	ctx := context.TODO()

	doc, err := env.pipe.Ingest(ctx, env.caseID, []byte("this content is definitely over sixteen bytes"), "huge.txt")
	assert.ErrorIs(t, err, ErrFileTooLarge)

	env.pipe.Wait()

	got, err := env.store.GetDocument(ctx, doc.ID)
	assert.NoError(t, err)
	assert.Equal(t, model.StatusFailed, got.ProcessingStatus)
	assert.Equal(t, model.StageUpload, got.FailedStage)
	assert.Equal(t, model.CauseInputRejected, got.FailureCause)

	// no adapter was invoked
	assert.Equal(t, 0, env.extractor.Calls)
	assert.Equal(t, 0, env.analyzer.Calls)
	assert.Equal(t, 0, env.indexer.Calls)
}

func TestIngestUnsupportedType(t *testing.T) {
	env := newTestEnv(t, Options{})
	ctx := context.TODO()

	doc, err := env.pipe.Ingest(ctx, env.caseID, []byte("audio bytes"), "deposition.mp3")
	assert.ErrorIs(t, err, ErrUnsupportedFileType)

	got, err := env.store.GetDocument(ctx, doc.ID)
	assert.NoError(t, err)
	assert.Equal(t, model.StatusFailed, got.ProcessingStatus)
	assert.Equal(t, model.CauseInputRejected, got.FailureCause)
	assert.Equal(t, 0, env.extractor.Calls)
}

func TestIngestRejectsTypeExtractorCannotHandle(t *testing.T) {
	env := newTestEnv(t, Options{})
	ctx := context.TODO()

	// no OCR configured: the text layer alone cannot handle docx
	pipe := New(env.store, env.artifacts, extract.NewTextLayer(0), env.analyzer, env.indexer, env.recorder, nil, Options{})

	doc, err := pipe.Ingest(ctx, env.caseID, []byte("word document bytes"), "brief.docx")
	assert.ErrorIs(t, err, ErrUnsupportedFileType)
	pipe.Wait()

	got, err := env.store.GetDocument(ctx, doc.ID)
	assert.NoError(t, err)
	assert.Equal(t, model.StatusFailed, got.ProcessingStatus)
	assert.Equal(t, model.StageUpload, got.FailedStage)
	assert.Equal(t, model.CauseInputRejected, got.FailureCause)
	assert.Equal(t, 0, env.analyzer.Calls)

	// the rejected original is not stored
	has, err := env.artifacts.HasOriginal(ctx, env.caseID, got.FolderName)
	assert.NoError(t, err)
	assert.False(t, has)
}

func TestAnalyzeTransientFailureExhaustsRetries(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.analyzer.Err = fault.Transient(errors.New("analysis timed out"))
	ctx := context.TODO()

	doc, err := env.pipe.Ingest(ctx, env.caseID, []byte("page text"), "motion.txt")
	assert.NoError(t, err)

	env.pipe.Wait()

	got, err := env.store.GetDocument(ctx, doc.ID)
	assert.NoError(t, err)
	assert.Equal(t, model.StatusFailed, got.ProcessingStatus)
	assert.Equal(t, model.StageAnalyze, got.FailedStage)
	// exhausting the retry budget converts the transient failure to permanent
	assert.Equal(t, model.CauseAdapterPermanent, got.FailureCause)
	assert.Equal(t, 3, env.analyzer.Calls)

	// the completed extraction stage keeps its results
	assert.True(t, got.HasTextExtraction)
	assert.False(t, got.HasMetadata)
}

func TestPermanentFailureNotRetried(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.analyzer.Err = errors.New("malformed response")
	ctx := context.TODO()

	doc, err := env.pipe.Ingest(ctx, env.caseID, []byte("page text"), "motion.txt")
	assert.NoError(t, err)

	env.pipe.Wait()

	got, err := env.store.GetDocument(ctx, doc.ID)
	assert.NoError(t, err)
	assert.Equal(t, model.StatusFailed, got.ProcessingStatus)
	assert.Equal(t, model.CauseAdapterPermanent, got.FailureCause)
	assert.Equal(t, 1, env.analyzer.Calls)
}

func TestTransientFailureRecovers(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.analyzer.Err = fault.Transient(errors.New("503"))
	env.analyzer.Fails = 2
	ctx := context.TODO()

	doc, err := env.pipe.Ingest(ctx, env.caseID, []byte("page text"), "motion.txt")
	assert.NoError(t, err)

	env.pipe.Wait()

	got, err := env.store.GetDocument(ctx, doc.ID)
	assert.NoError(t, err)
	assert.Equal(t, model.StatusComplete, got.ProcessingStatus)
	assert.Equal(t, 3, env.analyzer.Calls)
}

func TestRetryReentersOnlyFailedStage(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.analyzer.Err = fault.Transient(errors.New("timeout"))
	ctx := context.TODO()

	doc, err := env.pipe.Ingest(ctx, env.caseID, []byte("page text"), "motion.txt")
	assert.NoError(t, err)
	env.pipe.Wait()

	got, err := env.store.GetDocument(ctx, doc.ID)
	assert.NoError(t, err)
	assert.Equal(t, model.StatusFailed, got.ProcessingStatus)
	extractCalls := env.extractor.Calls

	env.analyzer.Err = nil
	assert.NoError(t, env.pipe.Retry(ctx, doc.ID))
	env.pipe.Wait()

	got, err = env.store.GetDocument(ctx, doc.ID)
	assert.NoError(t, err)
	assert.Equal(t, model.StatusComplete, got.ProcessingStatus)
	assert.Empty(t, got.FailureCause)

	// extraction was not re-run, and no duplicate record appeared
	assert.Equal(t, extractCalls, env.extractor.Calls)
	docs, err := env.store.ListDocuments(ctx, env.caseID)
	assert.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestRetryRejectsNonFailedDocument(t *testing.T) {
	env := newTestEnv(t, Options{})
	ctx := context.TODO()

	doc, err := env.pipe.Ingest(ctx, env.caseID, []byte("page text"), "motion.txt")
	assert.NoError(t, err)
	env.pipe.Wait()

	assert.ErrorIs(t, env.pipe.Retry(ctx, doc.ID), ErrNotRetryable)
}

func TestDeleteRemovesAllStores(t *testing.T) {
	env := newTestEnv(t, Options{})
	ctx := context.TODO()

	doc, err := env.pipe.Ingest(ctx, env.caseID, []byte("page text"), "motion.txt")
	assert.NoError(t, err)
	env.pipe.Wait()

	assert.NoError(t, env.pipe.Delete(ctx, doc.ID))

	_, err = env.store.GetDocument(ctx, doc.ID)
	assert.Error(t, err)

	has, err := env.artifacts.HasOriginal(ctx, env.caseID, doc.FolderName)
	assert.NoError(t, err)
	assert.False(t, has)

	assert.Contains(t, env.indexer.Deleted, doc.ID)
}

func TestFolderNameCollisionSuffixed(t *testing.T) {
	env := newTestEnv(t, Options{})
	ctx := context.TODO()

	first, err := env.pipe.Ingest(ctx, env.caseID, []byte("a"), "motion.txt")
	assert.NoError(t, err)
	second, err := env.pipe.Ingest(ctx, env.caseID, []byte("b"), "motion.txt")
	assert.NoError(t, err)
	env.pipe.Wait()

	assert.Equal(t, "motion", first.FolderName)
	assert.Equal(t, "motion_1", second.FolderName)
}
