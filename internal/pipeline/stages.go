package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	mrand "math/rand/v2"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ianbrucey/war-room-sub000/internal/artifact"
	"github.com/ianbrucey/war-room-sub000/internal/extract"
	"github.com/ianbrucey/war-room-sub000/internal/fault"
	"github.com/ianbrucey/war-room-sub000/internal/model"
	"github.com/ianbrucey/war-room-sub000/internal/store"
)

// process drives a document through the remaining stages. The loop keys on
// the persisted status, so a document resumed after a retry enters exactly
// the stage it failed in.
func (p *Pipeline) process(ctx context.Context, docID, caseID string) {
	logger := logrus.WithFields(logrus.Fields{
		"case_id":     caseID,
		"document_id": docID,
	})

	for {
		if ctx.Err() != nil {
			logger.Info("stage work cancelled")
			return
		}

		doc, err := p.store.GetDocument(ctx, docID)
		if err != nil {
			logger.Warnf("stage loop stopped, record unreadable: %v", err)
			return
		}

		var stage model.Stage
		switch doc.ProcessingStatus {
		case model.StatusPending:
			stage, err = model.StageExtract, p.beginExtract(ctx, doc)
		case model.StatusExtracting:
			stage, err = model.StageExtract, p.runExtract(ctx, doc)
		case model.StatusAnalyzing:
			stage, err = model.StageAnalyze, p.runAnalyze(ctx, doc)
		case model.StatusIndexing:
			stage, err = model.StageIndex, p.runIndex(ctx, doc)
		default:
			return
		}

		if err == nil {
			continue
		}
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			// Result discarded, status untouched. A delete cancelled us, or
			// shutdown did; the reconciler repairs the latter.
			logger.WithField("stage", stage).Info("stage result discarded after cancellation")
			return
		}
		if errors.Is(err, store.ErrStatusConflict) {
			// Another worker owns the document.
			logger.WithField("stage", stage).Info("stage commit lost to a concurrent transition")
			return
		}

		p.fail(doc, stage, err)
		return
	}
}

func (p *Pipeline) beginExtract(ctx context.Context, doc *model.Document) error {
	if err := p.store.TransitionStatus(ctx, doc.ID, model.StatusPending, model.StatusExtracting, nil); err != nil {
		return err
	}
	p.invalidated(ctx, doc.CaseID)
	p.emit(doc.CaseID, doc.ID, model.StatusExtracting, "extracting text")
	return nil
}

func (p *Pipeline) runExtract(ctx context.Context, doc *model.Document) error {
	content, _, err := p.artifacts.ReadOriginal(ctx, doc.CaseID, doc.FolderName)
	if err != nil {
		return err
	}

	var result *extract.Result
	err = p.withRetry(ctx, doc, "extract", func() error {
		var err error
		result, err = p.extractor.Extract(ctx, content, doc.FileType)
		return err
	})
	if err != nil {
		return err
	}

	if err := p.artifacts.WriteExtractedText(ctx, doc.CaseID, doc.FolderName, []byte(result.Text)); err != nil {
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	updates := map[string]interface{}{
		"has_text_extraction": true,
		"page_count":          result.PageCount,
		"word_count":          result.WordCount,
	}
	if err := p.store.TransitionStatus(ctx, doc.ID, model.StatusExtracting, model.StatusAnalyzing, updates); err != nil {
		return err
	}
	p.invalidated(ctx, doc.CaseID)
	p.emit(doc.CaseID, doc.ID, model.StatusAnalyzing, "analyzing document")
	return nil
}

func (p *Pipeline) runAnalyze(ctx context.Context, doc *model.Document) error {
	text, err := p.artifacts.ReadExtractedText(ctx, doc.CaseID, doc.FolderName)
	if err != nil {
		return err
	}

	var meta *model.DocumentMetadata
	err = p.withRetry(ctx, doc, "analyze", func() error {
		var err error
		meta, err = p.analyzer.Analyze(ctx, string(text), doc.Filename)
		return err
	})
	if err != nil {
		return err
	}

	raw, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	if err := p.artifacts.WriteMetadata(ctx, doc.CaseID, doc.FolderName, raw); err != nil {
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	updates := map[string]interface{}{
		"has_metadata":  true,
		"document_type": meta.DocumentType,
	}
	if err := p.store.TransitionStatus(ctx, doc.ID, model.StatusAnalyzing, model.StatusIndexing, updates); err != nil {
		return err
	}
	p.invalidated(ctx, doc.CaseID)
	p.emit(doc.CaseID, doc.ID, model.StatusIndexing, "indexing for search")
	return nil
}

func (p *Pipeline) runIndex(ctx context.Context, doc *model.Document) error {
	text, err := p.artifacts.ReadExtractedText(ctx, doc.CaseID, doc.FolderName)
	if err != nil {
		return err
	}

	pages := extract.SplitPages(string(text))

	var storeRef, fileRef string
	err = p.withRetry(ctx, doc, "index", func() error {
		var err error
		storeRef, fileRef, err = p.indexer.IndexDocument(ctx, doc.CaseID, doc.ID, doc.DocumentType, pages)
		return err
	})
	if err != nil {
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	now := time.Now()
	updates := map[string]interface{}{
		"rag_indexed":     true,
		"index_store_ref": storeRef,
		"index_file_ref":  fileRef,
		"processed_at":    &now,
	}
	if err := p.store.TransitionStatus(ctx, doc.ID, model.StatusIndexing, model.StatusComplete, updates); err != nil {
		return err
	}
	p.invalidated(ctx, doc.CaseID)
	p.emit(doc.CaseID, doc.ID, model.StatusComplete, "processing complete")
	return nil
}

// withRetry runs fn up to the attempt budget, backing off only on transient
// failures. Permanent failures surface immediately.
func (p *Pipeline) withRetry(ctx context.Context, doc *model.Document, op string, fn func() error) error {
	wait := p.retryBaseWait
	var err error
	for attempt := 1; ; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !fault.IsTransient(err) {
			return err
		}
		if attempt >= p.retryAttempts {
			return fault.Exhausted(err)
		}

		delay := jitter(wait)
		logrus.WithFields(logrus.Fields{
			"case_id":     doc.CaseID,
			"document_id": doc.ID,
			"attempt":     attempt,
		}).Warnf("%s failed, retrying in %s: %v", op, delay, err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		wait *= 2
	}
}

// jitter spreads a delay across 50%..150% of its nominal value.
func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d/2 + time.Duration(mrand.Int64N(int64(d)))
}

// fail records a terminal failure with its stage and cause.
func (p *Pipeline) fail(doc *model.Document, stage model.Stage, err error) {
	cause := classifyCause(err)

	ctx := context.Background()
	if markErr := p.store.MarkFailed(ctx, doc.ID, stage, cause, err.Error()); markErr != nil {
		logrus.WithFields(logrus.Fields{
			"case_id":     doc.CaseID,
			"document_id": doc.ID,
		}).Errorf("could not record stage failure: %v", markErr)
		return
	}
	p.invalidated(ctx, doc.CaseID)

	logrus.WithFields(logrus.Fields{
		"case_id":     doc.CaseID,
		"document_id": doc.ID,
		"stage":       stage,
		"cause":       cause,
	}).Warnf("document failed: %v", err)
	p.emit(doc.CaseID, doc.ID, model.StatusFailed, err.Error())
}

// classifyCause maps a stage error to its recorded failure cause. A transient
// failure that spent its retry budget arrives here exhausted and is recorded
// as a permanent adapter failure.
func classifyCause(err error) string {
	switch {
	case errors.Is(err, extract.ErrInputRejected):
		return model.CauseInputRejected
	case errors.Is(err, artifact.ErrNotFound):
		return model.CauseMissingArtifact
	case fault.IsTransient(err):
		return model.CauseAdapterTransient
	default:
		return model.CauseAdapterPermanent
	}
}
