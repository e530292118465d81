package index

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"github.com/sirupsen/logrus"

	"github.com/ianbrucey/war-room-sub000/internal/fault"
)

var _ Indexer = (*QdrantIndex)(nil)

const maxExcerptLen = 500

// QdrantIndex stores one point per page in a qdrant collection. Points carry
// case and document payload fields so deletes and case-scoped searches are
// filter operations.
type QdrantIndex struct {
	client     *qdrant.Client
	embedder   Embedder
	collection string
}

// QdrantOptions configures the index backend.
type QdrantOptions struct {
	Host       string
	Port       int
	Collection string
	VectorDim  uint64
}

func NewQdrantIndex(ctx context.Context, embedder Embedder, opts QdrantOptions) (*QdrantIndex, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: opts.Host,
		Port: opts.Port,
	})
	if err != nil {
		return nil, err
	}

	exists, err := client.CollectionExists(ctx, opts.Collection)
	if err != nil {
		return nil, err
	}
	if !exists {
		err = client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: opts.Collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     opts.VectorDim,
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return nil, err
		}
		logrus.Infof("created index collection %q", opts.Collection)
	}

	return &QdrantIndex{client: client, embedder: embedder, collection: opts.Collection}, nil
}

func (q *QdrantIndex) IndexDocument(ctx context.Context, caseID, docID, docType string, pages []string) (string, string, error) {
	if len(pages) == 0 {
		return "", "", fmt.Errorf("index: no pages to index for document %s", docID)
	}

	// Replace any prior entries so re-indexing stays idempotent.
	if err := q.DeleteDocument(ctx, caseID, docID); err != nil {
		return "", "", err
	}

	vectors, err := q.embedder.Embed(ctx, pages)
	if err != nil {
		return "", "", err
	}

	points := make([]*qdrant.PointStruct, len(pages))
	for i, page := range pages {
		excerpt := page
		if len(excerpt) > maxExcerptLen {
			excerpt = excerpt[:maxExcerptLen]
		}
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(uuid.New().String()),
			Vectors: qdrant.NewVectors(vectors[i]...),
			Payload: qdrant.NewValueMap(map[string]any{
				"case_id":       caseID,
				"document_id":   docID,
				"document_type": docType,
				"page":          int64(i + 1),
				"text":          excerpt,
			}),
		}
	}

	_, err = q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Points:         points,
	})
	if err != nil {
		return "", "", fault.Transient(err)
	}

	return q.collection, caseID + "/" + docID, nil
}

func (q *QdrantIndex) Search(ctx context.Context, caseID, query string, filters Filters, limit int) ([]Hit, error) {
	vectors, err := q.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}

	must := []*qdrant.Condition{
		qdrant.NewMatch("case_id", caseID),
	}
	if filters.DocumentID != "" {
		must = append(must, qdrant.NewMatch("document_id", filters.DocumentID))
	}
	if filters.DocumentType != "" {
		must = append(must, qdrant.NewMatch("document_type", filters.DocumentType))
	}

	if limit <= 0 {
		limit = 10
	}

	results, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQuery(vectors[0]...),
		Filter:         &qdrant.Filter{Must: must},
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fault.Transient(err)
	}

	hits := make([]Hit, 0, len(results))
	for _, point := range results {
		payload := point.GetPayload()
		hits = append(hits, Hit{
			DocumentID: payload["document_id"].GetStringValue(),
			Excerpt:    payload["text"].GetStringValue(),
			Page:       int(payload["page"].GetIntegerValue()),
			Score:      point.GetScore(),
		})
	}

	return hits, nil
}

func (q *QdrantIndex) DeleteDocument(ctx context.Context, caseID, docID string) error {
	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.collection,
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("case_id", caseID),
				qdrant.NewMatch("document_id", docID),
			},
		}),
	})
	if err != nil {
		return fault.Transient(err)
	}
	return nil
}
