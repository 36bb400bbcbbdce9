package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"statpool/internal/model"
)

// JsonlAudit appends reconcile outcomes to a line-delimited JSON file, the
// durable audit trail when no database is configured. Each batch is one
// open-append-close cycle so a crash between batches loses nothing already
// written.
type JsonlAudit struct {
	mu   sync.Mutex
	path string
}

// NewJsonlAudit builds an audit sink appending to path.
func NewJsonlAudit(path string) *JsonlAudit {
	return &JsonlAudit{path: path}
}

// PutReconcileBatch appends a batch of records as JSON lines.
func (a *JsonlAudit) PutReconcileBatch(records []model.ReconcileRecord) error {
	if len(records) == 0 {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if dir := filepath.Dir(a.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create audit dir: %w", err)
		}
	}

	file, err := os.OpenFile(a.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open audit file: %w", err)
	}

	enc := json.NewEncoder(file)
	for _, record := range records {
		if err := enc.Encode(record); err != nil {
			file.Close()
			return fmt.Errorf("append audit record: %w", err)
		}
	}
	return file.Close()
}
