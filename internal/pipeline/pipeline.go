// Package pipeline orchestrates the document intake stages. It owns every
// status transition: capability adapters never touch the document record, and
// artifact writes always land before the status commit that announces them.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ianbrucey/war-room-sub000/internal/analyze"
	"github.com/ianbrucey/war-room-sub000/internal/artifact"
	"github.com/ianbrucey/war-room-sub000/internal/extract"
	"github.com/ianbrucey/war-room-sub000/internal/index"
	"github.com/ianbrucey/war-room-sub000/internal/model"
	"github.com/ianbrucey/war-room-sub000/internal/notify"
	"github.com/ianbrucey/war-room-sub000/internal/store"
)

var (
	// ErrUnsupportedFileType is returned at intake for file kinds the
	// pipeline does not process. Audio is deliberately among them.
	ErrUnsupportedFileType = errors.New("unsupported file type")
	// ErrFileTooLarge is returned at intake for files over the configured
	// size limit.
	ErrFileTooLarge = errors.New("file exceeds maximum size")
	// ErrNotRetryable is returned when Retry is called on a document that is
	// not in a failed state.
	ErrNotRetryable = errors.New("document is not in a retryable state")
)

// Options configures a Pipeline.
type Options struct {
	MaxFileBytes  int64
	MaxConcurrent int
	RetryAttempts int
	RetryBaseWait time.Duration
}

// Invalidator is notified after every document mutation so derived views can
// drop stale state. The manifest aggregator satisfies it.
type Invalidator interface {
	Invalidate(ctx context.Context, caseID string)
}

// Pipeline is the stage orchestrator. One instance serves all cases; stage
// work for distinct documents runs concurrently up to MaxConcurrent.
type Pipeline struct {
	store      store.Store
	artifacts  artifact.Store
	extractor  extract.Extractor
	analyzer   analyze.Analyzer
	indexer    index.Indexer
	notifier   notify.Notifier
	invalidate Invalidator

	maxFileBytes  int64
	retryAttempts int
	retryBaseWait time.Duration

	sem chan struct{}
	wg  sync.WaitGroup

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

func New(st store.Store, artifacts artifact.Store, extractor extract.Extractor, analyzer analyze.Analyzer, indexer index.Indexer, notifier notify.Notifier, invalidate Invalidator, opts Options) *Pipeline {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 1
	}
	if opts.RetryAttempts <= 0 {
		opts.RetryAttempts = 1
	}
	if opts.RetryBaseWait <= 0 {
		opts.RetryBaseWait = 500 * time.Millisecond
	}
	if notifier == nil {
		notifier = notify.Multi{}
	}

	return &Pipeline{
		store:         st,
		artifacts:     artifacts,
		extractor:     extractor,
		analyzer:      analyzer,
		indexer:       indexer,
		notifier:      notifier,
		invalidate:    invalidate,
		maxFileBytes:  opts.MaxFileBytes,
		retryAttempts: opts.RetryAttempts,
		retryBaseWait: opts.RetryBaseWait,
		sem:           make(chan struct{}, opts.MaxConcurrent),
		cancels:       make(map[string]context.CancelFunc),
	}
}

// Ingest accepts an upload: it creates the document record and the original
// artifact synchronously, then hands the document to the async stage loop.
// Inputs over the size limit or of an unsupported kind produce an immediate
// failed record without invoking any adapter.
func (p *Pipeline) Ingest(ctx context.Context, caseID string, content []byte, filename string) (*model.Document, error) {
	doc := &model.Document{
		ID:               uuid.NewString(),
		CaseID:           caseID,
		Filename:         filename,
		ProcessingStatus: model.StatusPending,
		UploadedAt:       time.Now(),
	}

	fileType, supported := model.DetectFileType(filename, content)
	doc.FileType = fileType
	doc.DocumentType = analyze.ClassifyFilename(filename)

	var rejection error
	switch {
	case !supported || fileType == model.FileTypeAudio:
		rejection = ErrUnsupportedFileType
	case !p.extractor.Supports(fileType):
		// A known kind the configured extraction strategy cannot handle,
		// e.g. docx without an OCR adapter. Rejected before any stage runs.
		rejection = ErrUnsupportedFileType
	case p.maxFileBytes > 0 && int64(len(content)) > p.maxFileBytes:
		rejection = ErrFileTooLarge
	}

	for {
		folder, err := p.claimFolderName(ctx, caseID, filename)
		if err != nil {
			return nil, err
		}
		doc.FolderName = folder

		if rejection == nil {
			ext := originalExt(filename, fileType)
			if err := p.artifacts.WriteOriginal(ctx, caseID, folder, ext, content); err != nil {
				return nil, fmt.Errorf("write original: %w", err)
			}
		}

		err = p.store.CreateDocument(ctx, doc)
		if err == nil {
			break
		}
		if !errors.Is(err, store.ErrFolderNameTaken) {
			return nil, err
		}
		// Lost the claim to a concurrent upload of the same name. Drop the
		// orphaned artifact and claim again; the winner's row now makes the
		// taken check see the collision.
		if rejection == nil {
			if delErr := p.artifacts.DeleteFolder(ctx, caseID, folder); delErr != nil && !errors.Is(delErr, artifact.ErrNotFound) {
				logrus.Warnf("could not drop artifact folder %s after losing a name claim: %v", folder, delErr)
			}
		}
	}
	p.invalidated(ctx, caseID)

	if rejection != nil {
		if err := p.store.MarkFailed(ctx, doc.ID, model.StageUpload, model.CauseInputRejected, rejection.Error()); err != nil {
			return nil, err
		}
		doc.ProcessingStatus = model.StatusFailed
		doc.FailedStage = model.StageUpload
		doc.FailureCause = model.CauseInputRejected
		p.emit(doc.CaseID, doc.ID, model.StatusFailed, rejection.Error())
		return doc, rejection
	}

	p.emit(caseID, doc.ID, model.StatusPending, "document queued")
	p.dispatch(doc.ID, caseID)

	return doc, nil
}

// Retry re-enters only the failed stage of a failed document. The artifacts
// of completed stages are reused as-is.
func (p *Pipeline) Retry(ctx context.Context, docID string) error {
	doc, err := p.store.GetDocument(ctx, docID)
	if err != nil {
		return err
	}
	if doc.ProcessingStatus != model.StatusFailed {
		return ErrNotRetryable
	}

	resume, err := resumeStatus(doc.FailedStage)
	if err != nil {
		return err
	}

	updates := map[string]interface{}{
		"failed_stage":  "",
		"failure_cause": "",
		"failure_error": "",
	}
	if err := p.store.TransitionStatus(ctx, docID, model.StatusFailed, resume, updates); err != nil {
		return err
	}
	p.invalidated(ctx, doc.CaseID)

	p.emit(doc.CaseID, docID, resume, "retrying from stage "+string(doc.FailedStage))
	p.dispatch(docID, doc.CaseID)

	return nil
}

// Delete removes the record, artifacts and index entries of a document. The
// record removal is authoritative; store deletions are best-effort, with
// partial failures logged and left to the reconciler's garbage collection.
func (p *Pipeline) Delete(ctx context.Context, docID string) error {
	doc, err := p.store.GetDocument(ctx, docID)
	if err != nil {
		return err
	}

	p.cancel(docID)

	if err := p.store.DeleteDocument(ctx, docID); err != nil {
		return err
	}
	p.invalidated(ctx, doc.CaseID)

	if err := p.indexer.DeleteDocument(ctx, doc.CaseID, doc.ID); err != nil {
		logrus.WithFields(logrus.Fields{
			"case_id":     doc.CaseID,
			"document_id": doc.ID,
		}).Warnf("delete partial failure, index entries remain: %v", err)
	}
	if err := p.artifacts.DeleteFolder(ctx, doc.CaseID, doc.FolderName); err != nil && !errors.Is(err, artifact.ErrNotFound) {
		logrus.WithFields(logrus.Fields{
			"case_id":     doc.CaseID,
			"document_id": doc.ID,
			"folder":      doc.FolderName,
		}).Warnf("delete partial failure, artifact folder remains: %v", err)
	}

	return nil
}

// Resume re-dispatches non-terminal documents of a case that have no live
// worker. The reconcile sweep calls this after repairs so pending and
// rewound documents make progress again.
func (p *Pipeline) Resume(ctx context.Context, caseID string) error {
	docs, err := p.store.ListDocuments(ctx, caseID)
	if err != nil {
		return err
	}

	for _, doc := range docs {
		if doc.ProcessingStatus.Terminal() {
			continue
		}
		p.mu.Lock()
		_, running := p.cancels[doc.ID]
		p.mu.Unlock()
		if running {
			continue
		}
		p.dispatch(doc.ID, doc.CaseID)
	}

	return nil
}

// Wait blocks until all in-flight stage work finishes. Used on shutdown and
// by tests.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

// claimFolderName sanitizes the filename into a folder segment and resolves
// collisions within the case by suffixing.
func (p *Pipeline) claimFolderName(ctx context.Context, caseID, filename string) (string, error) {
	base := artifact.FolderName(filename)
	name := base
	for i := 1; ; i++ {
		taken, err := p.store.FolderNameTaken(ctx, caseID, name)
		if err != nil {
			return "", err
		}
		if !taken {
			return name, nil
		}
		name = fmt.Sprintf("%s_%d", base, i)
	}
}

func (p *Pipeline) dispatch(docID, caseID string) {
	ctx, cancel := context.WithCancel(context.Background())
	p.mu.Lock()
	p.cancels[docID] = cancel
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer func() {
			p.mu.Lock()
			delete(p.cancels, docID)
			p.mu.Unlock()
			cancel()
		}()

		p.sem <- struct{}{}
		defer func() { <-p.sem }()

		p.process(ctx, docID, caseID)
	}()
}

func (p *Pipeline) cancel(docID string) {
	p.mu.Lock()
	cancel, ok := p.cancels[docID]
	p.mu.Unlock()
	if ok {
		cancel()
	}
}

func (p *Pipeline) invalidated(ctx context.Context, caseID string) {
	if p.invalidate != nil {
		p.invalidate.Invalidate(ctx, caseID)
	}
}

func (p *Pipeline) emit(caseID, docID string, status model.ProcessingStatus, message string) {
	p.notifier.Emit(notify.Event{
		CaseID:     caseID,
		DocumentID: docID,
		Stage:      status,
		Percent:    notify.PercentFor(status),
		Message:    message,
		Timestamp:  time.Now(),
	})
}

// originalExt keeps the upload's own extension when it is a supported one,
// falling back to the canonical extension of the detected type.
func originalExt(filename string, fileType model.FileType) string {
	if ext := strings.ToLower(filepath.Ext(filename)); ext != "" {
		if ft, ok := model.DetectFileType(filename, nil); ok && ft == fileType {
			return ext
		}
	}
	return fileType.Extension()
}

// resumeStatus maps a failed stage to the status from which that stage runs.
func resumeStatus(stage model.Stage) (model.ProcessingStatus, error) {
	switch stage {
	case model.StageUpload:
		return model.StatusPending, nil
	case model.StageExtract:
		return model.StatusExtracting, nil
	case model.StageAnalyze:
		return model.StatusAnalyzing, nil
	case model.StageIndex:
		return model.StatusIndexing, nil
	default:
		return "", fmt.Errorf("unknown failed stage %q", stage)
	}
}
