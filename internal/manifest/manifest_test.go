package manifest

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
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

func (env *testEnv) addAnalyzedDocument(t *testing.T, filename string, meta *model.DocumentMetadata) *model.Document {
	doc := &model.Document{
		ID:               uuid.NewString(),
		CaseID:           env.caseID,
		Filename:         filename,
		FolderName:       artifact.FolderName(filename) + "_" + uuid.NewString()[:8],
		FileType:         model.FileTypeText,
		DocumentType:     meta.DocumentType,
		ProcessingStatus: model.StatusComplete,
		HasMetadata:      true,
		UploadedAt:       time.Now(),
	}
	assert.NoError(t, env.store.CreateDocument(context.TODO(), doc))

	raw, err := json.Marshal(meta)
	assert.NoError(t, err)
	assert.NoError(t, env.artifacts.WriteMetadata(context.TODO(), env.caseID, doc.FolderName, raw))

	return doc
}

func TestGetManifestMergesDocuments(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.TODO()

	motion := env.addAnalyzedDocument(t, "motion.txt", &model.DocumentMetadata{
		ExecutiveSummary: "motion to dismiss",
		DocumentType:     "Motion",
		KeyParties:       []string{"Smith", "Jones"},
		MainArguments:    []string{"lack of jurisdiction"},
		ImportantDates: []model.Dated{
			{Date: "2024-03-01", Description: "hearing", Page: 2},
		},
	})
	response := env.addAnalyzedDocument(t, "response.txt", &model.DocumentMetadata{
		ExecutiveSummary: "response in opposition",
		DocumentType:     "Response",
		KeyParties:       []string{"Jones", "Acme Corp"},
		MainArguments:    []string{"jurisdiction is proper"},
		ImportantDates: []model.Dated{
			{Date: "2024-01-15", Description: "filing", Page: 1},
		},
	})

	agg := NewAggregator(env.store, env.artifacts, nil)
	m, err := agg.GetManifest(ctx, env.caseID)
	assert.NoError(t, err)

	// parties deduplicated and sorted
	assert.Equal(t, []string{"Acme Corp", "Jones", "Smith"}, m.Parties)
	assert.Len(t, m.Claims, 2)

	// timeline sorted by date across documents
	assert.Len(t, m.Timeline, 2)
	assert.Equal(t, "2024-01-15", m.Timeline[0].Date)
	assert.Equal(t, response.ID, m.Timeline[0].DocumentID)
	assert.Equal(t, "2024-03-01", m.Timeline[1].Date)
	assert.Equal(t, motion.ID, m.Timeline[1].DocumentID)

	assert.Len(t, m.Documents, 2)
}

func TestGetManifestIncludesUnanalyzedDocuments(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.TODO()

	doc := &model.Document{
		ID:               uuid.NewString(),
		CaseID:           env.caseID,
		Filename:         "pending.txt",
		FolderName:       "pending",
		FileType:         model.FileTypeText,
		ProcessingStatus: model.StatusExtracting,
		UploadedAt:       time.Now(),
	}
	assert.NoError(t, env.store.CreateDocument(ctx, doc))

	agg := NewAggregator(env.store, env.artifacts, nil)
	m, err := agg.GetManifest(ctx, env.caseID)
	assert.NoError(t, err)

	assert.Len(t, m.Documents, 1)
	assert.Equal(t, model.StatusExtracting, m.Documents[0].ProcessingStatus)
	assert.Empty(t, m.Documents[0].Summary)
	assert.Empty(t, m.Parties)
	assert.Empty(t, m.Timeline)
}

// memoryCache implements the generation-checked cache contract in memory.
// With bumpOnGet set it simulates an invalidation landing right after the
// generation snapshot, while the manifest is still being built.
type memoryCache struct {
	mu        sync.Mutex
	gen       int
	entries   map[string]*model.CaseManifest
	bumpOnGet bool
}

func (c *memoryCache) Get(ctx context.Context, caseID string) (*model.CaseManifest, string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	gen := strconv.Itoa(c.gen)
	m := c.entries[caseID]
	if c.bumpOnGet {
		c.gen++
		delete(c.entries, caseID)
	}
	return m, gen, nil
}

func (c *memoryCache) Set(ctx context.Context, caseID string, m *model.CaseManifest, gen string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != strconv.Itoa(c.gen) {
		return nil
	}
	if c.entries == nil {
		c.entries = make(map[string]*model.CaseManifest)
	}
	c.entries[caseID] = m
	return nil
}

func (c *memoryCache) Invalidate(ctx context.Context, caseID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	delete(c.entries, caseID)
	return nil
}

func TestGetManifestCachesResult(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.TODO()

	env.addAnalyzedDocument(t, "motion.txt", &model.DocumentMetadata{
		ExecutiveSummary: "motion to dismiss",
		DocumentType:     "Motion",
	})

	mc := &memoryCache{}
	agg := NewAggregator(env.store, env.artifacts, mc)

	m, err := agg.GetManifest(ctx, env.caseID)
	assert.NoError(t, err)
	assert.Len(t, m.Documents, 1)
	assert.Contains(t, mc.entries, env.caseID)

	// served from the cache until invalidated
	env.addAnalyzedDocument(t, "response.txt", &model.DocumentMetadata{
		ExecutiveSummary: "response in opposition",
		DocumentType:     "Response",
	})
	m, err = agg.GetManifest(ctx, env.caseID)
	assert.NoError(t, err)
	assert.Len(t, m.Documents, 1)

	agg.Invalidate(ctx, env.caseID)
	m, err = agg.GetManifest(ctx, env.caseID)
	assert.NoError(t, err)
	assert.Len(t, m.Documents, 2)
}

func TestGetManifestStaleBuildNotCached(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.TODO()

	env.addAnalyzedDocument(t, "motion.txt", &model.DocumentMetadata{
		ExecutiveSummary: "motion to dismiss",
		DocumentType:     "Motion",
	})

	mc := &memoryCache{bumpOnGet: true}
	agg := NewAggregator(env.store, env.artifacts, mc)

	m, err := agg.GetManifest(ctx, env.caseID)
	assert.NoError(t, err)
	assert.Len(t, m.Documents, 1)

	// the generation moved during the build, so nothing was cached
	assert.Empty(t, mc.entries)
}

func TestGetManifestEmptyCase(t *testing.T) {
	env := newTestEnv(t)

	agg := NewAggregator(env.store, env.artifacts, nil)
	m, err := agg.GetManifest(context.TODO(), env.caseID)
	assert.NoError(t, err)
	assert.Equal(t, env.caseID, m.CaseID)
	assert.Empty(t, m.Documents)
}
