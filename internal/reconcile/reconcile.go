// Package reconcile repairs divergence between document records and artifact
// store content. It runs as a background sweep and acquires no document
// locks: every repair is a guarded status transition that loses gracefully
// to concurrent pipeline work.
package reconcile

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ianbrucey/war-room-sub000/internal/artifact"
	"github.com/ianbrucey/war-room-sub000/internal/model"
	"github.com/ianbrucey/war-room-sub000/internal/store"
)

// Report summarizes one reconcile pass over a case. A consistent case yields
// a zero Report.
type Report struct {
	OrphanedRecords  int
	RepairedStale    int
	ArchivedFolders  int
	RemovedFromTrash int
}

// Reconciler scans a case for the three divergence classes: orphaned
// records, stale in-flight documents, and orphaned artifact folders.
type Reconciler struct {
	store     store.Store
	artifacts artifact.Store

	// StaleAfter is how long an in-flight document may go untouched before
	// it counts as abandoned.
	StaleAfter time.Duration
	// TrashRetention is how long archived folders stay in the trash.
	TrashRetention time.Duration
}

func New(st store.Store, artifacts artifact.Store, staleAfter, trashRetention time.Duration) *Reconciler {
	return &Reconciler{
		store:          st,
		artifacts:      artifacts,
		StaleAfter:     staleAfter,
		TrashRetention: trashRetention,
	}
}

// Reconcile runs one pass over a case. It is safe to call concurrently with
// live pipeline work and is a no-op on a consistent case.
func (r *Reconciler) Reconcile(ctx context.Context, caseID string) (*Report, error) {
	report := &Report{}

	if err := r.repairStale(ctx, caseID, report); err != nil {
		return report, err
	}
	if err := r.collectOrphanedFolders(ctx, caseID, report); err != nil {
		return report, err
	}

	if *report != (Report{}) {
		logrus.WithFields(logrus.Fields{
			"case_id":            caseID,
			"orphaned_records":   report.OrphanedRecords,
			"repaired_stale":     report.RepairedStale,
			"archived_folders":   report.ArchivedFolders,
			"removed_from_trash": report.RemovedFromTrash,
		}).Info("reconcile pass repaired divergence")
	}

	return report, nil
}

// repairStale handles records stuck in a non-terminal status with no live
// worker: crash leftovers and records whose artifacts never materialized.
func (r *Reconciler) repairStale(ctx context.Context, caseID string, report *Report) error {
	cutoff := time.Now().Add(-r.StaleAfter)
	docs, err := r.store.ListStaleDocuments(ctx, caseID, cutoff)
	if err != nil {
		return err
	}

	for _, doc := range docs {
		if err := r.repairDocument(ctx, doc, report); err != nil {
			logrus.WithFields(logrus.Fields{
				"case_id":     caseID,
				"document_id": doc.ID,
			}).Warnf("reconcile could not repair document: %v", err)
		}
	}

	return nil
}

func (r *Reconciler) repairDocument(ctx context.Context, doc *model.Document, report *Report) error {
	hasOriginal, err := r.artifacts.HasOriginal(ctx, doc.CaseID, doc.FolderName)
	if err != nil {
		return err
	}

	// A record with no backing content cannot make progress; fail it so the
	// divergence is visible and retryable.
	if !hasOriginal {
		if err := r.store.MarkFailed(ctx, doc.ID, model.StageUpload, model.CauseMissingArtifact, "no artifact content for document"); err != nil {
			if errors.Is(err, store.ErrStatusConflict) {
				return nil
			}
			return err
		}
		report.OrphanedRecords++
		return nil
	}

	// A crash between an artifact write and its status commit leaves the
	// document parked in the in-progress status. The artifact check decides
	// whether the stage finished: rewind to re-run it if not, roll forward
	// if it did. The guarded transition loses to any live worker.
	switch doc.ProcessingStatus {
	case model.StatusPending:
		// Consistent: queued but never picked up. The sweep job re-dispatches.
		return nil
	case model.StatusExtracting:
		done, err := r.artifacts.HasExtractedText(ctx, doc.CaseID, doc.FolderName)
		if err != nil {
			return err
		}
		if done {
			return r.transition(doc, model.StatusExtracting, model.StatusAnalyzing, map[string]interface{}{"has_text_extraction": true}, report)
		}
		return r.transition(doc, model.StatusExtracting, model.StatusPending, nil, report)
	case model.StatusAnalyzing:
		done, err := r.artifacts.HasMetadata(ctx, doc.CaseID, doc.FolderName)
		if err != nil {
			return err
		}
		if done {
			return r.transition(doc, model.StatusAnalyzing, model.StatusIndexing, map[string]interface{}{"has_metadata": true}, report)
		}
		// Analysis input is the extracted text; re-enter the stage.
		return r.repairTo(doc, model.StatusAnalyzing, model.StageAnalyze, report)
	case model.StatusIndexing:
		// Index writes are replaced wholesale on re-run, so re-entering the
		// stage is always safe.
		return r.repairTo(doc, model.StatusIndexing, model.StageIndex, report)
	default:
		return nil
	}
}

// transition applies a guarded repair transition, counting it on success.
func (r *Reconciler) transition(doc *model.Document, from, to model.ProcessingStatus, updates map[string]interface{}, report *Report) error {
	err := r.store.TransitionStatus(context.Background(), doc.ID, from, to, updates)
	if errors.Is(err, store.ErrStatusConflict) {
		return nil
	}
	if err != nil {
		return err
	}
	report.RepairedStale++
	return nil
}

// repairTo fails an abandoned in-flight document with the stage recorded, so
// the standard retry path re-enters exactly that stage.
func (r *Reconciler) repairTo(doc *model.Document, from model.ProcessingStatus, stage model.Stage, report *Report) error {
	err := r.store.MarkFailed(context.Background(), doc.ID, stage, model.CauseAdapterTransient, "stage abandoned, no worker heartbeat")
	if errors.Is(err, store.ErrStatusConflict) {
		return nil
	}
	if err != nil {
		return err
	}
	report.RepairedStale++
	return nil
}

// collectOrphanedFolders archives artifact folders with no owning record,
// then drops trash entries past the retention window.
func (r *Reconciler) collectOrphanedFolders(ctx context.Context, caseID string, report *Report) error {
	docs, err := r.store.ListDocuments(ctx, caseID)
	if err != nil {
		return err
	}
	owned := make(map[string]struct{}, len(docs))
	for _, doc := range docs {
		owned[doc.FolderName] = struct{}{}
	}

	folders, err := r.artifacts.ListFolders(ctx, caseID)
	if err != nil {
		return err
	}

	grace := time.Now().Add(-r.StaleAfter)
	for _, folder := range folders {
		if _, ok := owned[folder.Name]; ok {
			continue
		}
		// Young folders may belong to an ingest whose record commit has not
		// landed yet.
		if folder.ModTime.After(grace) {
			continue
		}
		if err := r.artifacts.ArchiveFolder(ctx, caseID, folder.Name); err != nil {
			logrus.WithFields(logrus.Fields{
				"case_id": caseID,
				"folder":  folder.Name,
			}).Warnf("reconcile could not archive orphaned folder: %v", err)
			continue
		}
		report.ArchivedFolders++
	}

	purged, err := r.artifacts.PurgeTrash(ctx, caseID, time.Now().Add(-r.TrashRetention))
	if err != nil {
		logrus.WithField("case_id", caseID).Warnf("reconcile could not purge trash: %v", err)
		return nil
	}
	report.RemovedFromTrash = purged

	return nil
}
