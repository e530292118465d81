package jobs

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/ianbrucey/war-room-sub000/internal/pipeline"
	"github.com/ianbrucey/war-room-sub000/internal/reconcile"
	"github.com/ianbrucey/war-room-sub000/internal/store"
)

// ReconcileSweepTask runs a reconcile pass over every case, then re-dispatches
// documents the repairs made runnable again.
type ReconcileSweepTask struct {
	store      store.Store
	reconciler *reconcile.Reconciler
	pipeline   *pipeline.Pipeline
	cron       string
}

func NewReconcileSweepTask(interval string, st store.Store, reconciler *reconcile.Reconciler, p *pipeline.Pipeline) *ReconcileSweepTask {
	return &ReconcileSweepTask{
		store:      st,
		reconciler: reconciler,
		pipeline:   p,
		cron:       interval,
	}
}

func (t *ReconcileSweepTask) ID() string {
	return "reconcile_sweep"
}

func (t *ReconcileSweepTask) Name() string {
	return "reconcile_sweep"
}

func (t *ReconcileSweepTask) Schedule() string {
	return t.cron
}

func (t *ReconcileSweepTask) Run() {
	ctx := context.Background()

	cases, err := t.store.ListCases(ctx)
	if err != nil {
		logrus.Errorf("reconcile sweep could not list cases: %v", err)
		return
	}

	for _, c := range cases {
		if _, err := t.reconciler.Reconcile(ctx, c.ID); err != nil {
			logrus.WithField("case_id", c.ID).Errorf("reconcile sweep failed: %v", err)
			continue
		}
		if err := t.pipeline.Resume(ctx, c.ID); err != nil {
			logrus.WithField("case_id", c.ID).Errorf("could not resume pending documents: %v", err)
		}
	}
}
