package services

import (
	"context"
	"fmt"

	"live-auction/pkg/logger"

	"github.com/robfig/cron/v3"
)

// Reconciler periodically re-derives timers and live rooms from the durable store.
type Reconciler struct {
	cron      *cron.Cron
	lifecycle *LifecycleManager
	spec      string
	log       logger.Logger
}

func NewReconciler(lifecycle *LifecycleManager, spec string, log logger.Logger) *Reconciler {
	return &Reconciler{
		cron:      cron.New(),
		lifecycle: lifecycle,
		spec:      spec,
		log:       log,
	}
}

func (r *Reconciler) Start(ctx context.Context) error {
	r.log.Info("Starting reconciler", "spec", r.spec)

	_, err := r.cron.AddFunc(r.spec, func() {
		if err := r.lifecycle.Reconcile(ctx); err != nil {
			r.log.Error("Reconciliation failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("reconciler: invalid spec %q: %w", r.spec, err)
	}

	r.cron.Start()
	return nil
}

func (r *Reconciler) Stop() {
	r.log.Info("Stopping reconciler")
	<-r.cron.Stop().Done()
}
