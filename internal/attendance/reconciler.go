package attendance

import (
	"context"

	"go.uber.org/zap"

	"campusattend/internal/metrics"
	"campusattend/internal/queue"
)

// Reconciler consumes class.cancelled events and re-applies the excused
// cascade, converging records written by marks that raced a cancellation.
type Reconciler struct {
	engine *Engine
	log    *zap.Logger
}

// NewReconciler creates a reconciler for engine.
func NewReconciler(engine *Engine, log *zap.Logger) *Reconciler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Reconciler{engine: engine, log: log}
}

// Run consumes q until ctx is done.
func (r *Reconciler) Run(ctx context.Context, q queue.Queue) error {
	messages, err := q.Consume(ctx)
	if err != nil {
		return err
	}
	r.log.Info("reconciler started")
	for msg := range messages {
		r.Handle(ctx, msg)
	}
	r.log.Info("reconciler stopped")
	return nil
}

// Handle processes one event. Failures are logged and counted; the event is not retried.
func (r *Reconciler) Handle(ctx context.Context, msg queue.Message) {
	if msg.Type != queue.TypeClassCancelled {
		metrics.QueueEvent(msg.Type, "ignored")
		return
	}
	classID := string(msg.Body)
	n, err := r.engine.ReconcileCancelled(ctx, classID)
	if err != nil {
		metrics.QueueEvent(msg.Type, "failed")
		r.log.Error("reconcile cancelled class failed", zap.String("class_id", classID), zap.Error(err))
		return
	}
	metrics.QueueEvent(msg.Type, "processed")
	r.log.Debug("reconciled", zap.String("class_id", classID), zap.Int64("excused", n))
}
