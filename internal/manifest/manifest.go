package manifest

import (
	"context"
	"encoding/json"
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/sirupsen/logrus"

	"github.com/ianbrucey/war-room-sub000/internal/artifact"
	"github.com/ianbrucey/war-room-sub000/internal/cache"
	"github.com/ianbrucey/war-room-sub000/internal/model"
	"github.com/ianbrucey/war-room-sub000/internal/store"
)

// Aggregator derives a case manifest from document records and their
// metadata artifacts. Only documents that finished analysis contribute;
// in-flight and failed documents appear in the document list with their
// current status but add nothing to parties, timeline or claims.
type Aggregator struct {
	store     store.Store
	artifacts artifact.Store
	cache     cache.ManifestCache
}

func NewAggregator(st store.Store, artifacts artifact.Store, mc cache.ManifestCache) *Aggregator {
	if mc == nil {
		mc = cache.NewNopManifestCache()
	}

	return &Aggregator{store: st, artifacts: artifacts, cache: mc}
}

func (a *Aggregator) GetManifest(ctx context.Context, caseID string) (*model.CaseManifest, error) {
	cached, gen, err := a.cache.Get(ctx, caseID)
	if err != nil {
		logrus.Warnf("manifest cache read failed for case %s: %v", caseID, err)
	}
	if cached != nil {
		return cached, nil
	}

	manifest, err := a.build(ctx, caseID)
	if err != nil {
		return nil, err
	}

	// The generation token keeps a build that raced an invalidation from
	// being cached as current.
	if err := a.cache.Set(ctx, caseID, manifest, gen); err != nil {
		logrus.Warnf("manifest cache write failed for case %s: %v", caseID, err)
	}

	return manifest, nil
}

// Invalidate drops the cached manifest for a case. The pipeline calls this
// after every document mutation.
func (a *Aggregator) Invalidate(ctx context.Context, caseID string) {
	if err := a.cache.Invalidate(ctx, caseID); err != nil {
		logrus.Warnf("manifest cache invalidate failed for case %s: %v", caseID, err)
	}
}

func (a *Aggregator) build(ctx context.Context, caseID string) (*model.CaseManifest, error) {
	docs, err := a.store.ListDocuments(ctx, caseID)
	if err != nil {
		return nil, err
	}

	manifest := &model.CaseManifest{CaseID: caseID}
	parties := mapset.NewSet[string]()
	claims := mapset.NewSet[string]()

	for _, doc := range docs {
		entry := model.ManifestDocument{
			ID:               doc.ID,
			Filename:         doc.Filename,
			DocumentType:     doc.DocumentType,
			ProcessingStatus: doc.ProcessingStatus,
			PageCount:        doc.PageCount,
		}

		if doc.HasMetadata {
			meta, err := a.readMetadata(ctx, doc)
			if err != nil {
				logrus.Warnf("manifest skipping metadata of document %s: %v", doc.ID, err)
			} else {
				entry.Summary = meta.ExecutiveSummary
				a.merge(manifest, doc, meta, parties, claims)
			}
		}

		manifest.Documents = append(manifest.Documents, entry)
	}

	manifest.Parties = parties.ToSlice()
	manifest.Claims = claims.ToSlice()
	sort.Strings(manifest.Parties)
	sort.Strings(manifest.Claims)
	sort.SliceStable(manifest.Timeline, func(i, j int) bool {
		return manifest.Timeline[i].Date < manifest.Timeline[j].Date
	})

	return manifest, nil
}

func (a *Aggregator) readMetadata(ctx context.Context, doc *model.Document) (*model.DocumentMetadata, error) {
	raw, err := a.artifacts.ReadMetadata(ctx, doc.CaseID, doc.FolderName)
	if err != nil {
		return nil, err
	}

	meta := &model.DocumentMetadata{}
	if err := json.Unmarshal(raw, meta); err != nil {
		return nil, err
	}

	return meta, nil
}

func (a *Aggregator) merge(manifest *model.CaseManifest, doc *model.Document, meta *model.DocumentMetadata, parties, claims mapset.Set[string]) {
	for _, p := range meta.KeyParties {
		if p != "" {
			parties.Add(p)
		}
	}

	for _, arg := range meta.MainArguments {
		if arg != "" {
			claims.Add(arg)
		}
	}

	for _, d := range meta.ImportantDates {
		if d.Date == "" {
			continue
		}
		manifest.Timeline = append(manifest.Timeline, model.TimelineEntry{
			Date:        d.Date,
			Description: d.Description,
			DocumentID:  doc.ID,
			Page:        d.Page,
		})
	}
}
