package storage

import "statpool/internal/model"

// Storage defines a sink for reconcile audit records.
type Storage interface {
	PutReconcileBatch(records []model.ReconcileRecord) error
}

// Nop discards every record. Used when auditing is not configured.
type Nop struct{}

func (Nop) PutReconcileBatch([]model.ReconcileRecord) error { return nil }
