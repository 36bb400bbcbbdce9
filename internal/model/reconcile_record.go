package model

// Reconcile outcomes.
const (
	ReconcileUpdated     = "updated"
	ReconcileUnchanged   = "unchanged"
	ReconcileNotFound    = "not_found"
	ReconcileWriteFailed = "write_failed"
)

// ReconcileRecord is one audit entry describing a reconciliation pass over a
// pool: what was compared, what diverged, and the corrective write if any.
type ReconcileRecord struct {
	PoolID    uint64   `json:"pool_id"`
	Outcome   string   `json:"outcome"`
	Fields    []string `json:"fields,omitempty"`
	TxHash    string   `json:"tx_hash,omitempty"`
	CheckedAt string   `json:"checked_at"`
}
