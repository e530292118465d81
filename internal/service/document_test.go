package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ianbrucey/war-room-sub000/internal/artifact"
	"github.com/ianbrucey/war-room-sub000/internal/index"
	"github.com/ianbrucey/war-room-sub000/internal/manifest"
	"github.com/ianbrucey/war-room-sub000/internal/model"
	"github.com/ianbrucey/war-room-sub000/internal/pipeline"
	"github.com/ianbrucey/war-room-sub000/internal/store"
	"github.com/ianbrucey/war-room-sub000/internal/tester"
)

func newTestService(t *testing.T) (*DocumentService, *pipeline.Pipeline) {
	tester.Setup()

	st := store.NewGormStore(tester.TestDB())
	artifacts := artifact.NewFSStore(t.TempDir())
	indexer := &tester.FakeIndexer{}
	agg := manifest.NewAggregator(st, artifacts, nil)

	pipe := pipeline.New(st, artifacts, &tester.FakeExtractor{}, &tester.FakeAnalyzer{}, indexer, nil, agg, pipeline.Options{
		MaxFileBytes:  1 << 20,
		MaxConcurrent: 2,
		RetryAttempts: 3,
		RetryBaseWait: time.Millisecond,
	})

	return NewDocumentService(st, pipe, agg, indexer), pipe
}

func TestServiceIngestAndQuery(t *testing.T) {
	svc, pipe := newTestService(t)
	ctx := context.TODO()

	c, err := svc.CreateCase(ctx, "Smith v. Jones")
	assert.NoError(t, err)
	assert.NotEmpty(t, c.ID)

	doc, err := svc.Ingest(ctx, c.ID, []byte("motion text about jurisdiction"), "motion.txt")
	assert.NoError(t, err)

	pipe.Wait()

	got, err := svc.GetDocument(ctx, doc.ID)
	assert.NoError(t, err)
	assert.Equal(t, model.StatusComplete, got.ProcessingStatus)

	docs, err := svc.ListDocuments(ctx, c.ID)
	assert.NoError(t, err)
	assert.Len(t, docs, 1)

	m, err := svc.GetManifest(ctx, c.ID)
	assert.NoError(t, err)
	assert.Len(t, m.Documents, 1)
	assert.Contains(t, m.Parties, "Plaintiff")

	hits, err := svc.Search(ctx, c.ID, "jurisdiction", index.Filters{}, 5)
	assert.NoError(t, err)
	assert.Len(t, hits, 1)
	assert.Equal(t, doc.ID, hits[0].DocumentID)
}

func TestServiceIngestUnknownCase(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Ingest(context.TODO(), "no-such-case", []byte("text"), "motion.txt")
	assert.Error(t, err)
}
