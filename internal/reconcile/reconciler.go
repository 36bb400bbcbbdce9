// Package reconcile compares ledger-held pool attributes against the
// attributes derived from the external feed and issues a corrective write
// when, and only when, they diverge.
package reconcile

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"statpool/internal/fault"
	"statpool/internal/model"
	"statpool/internal/storage"
)

// Outcome is the result of one reconciliation pass.
type Outcome int

const (
	Unchanged Outcome = iota
	Updated
	NotFound
	WriteFailed
)

func (o Outcome) String() string {
	switch o {
	case Unchanged:
		return model.ReconcileUnchanged
	case Updated:
		return model.ReconcileUpdated
	case NotFound:
		return model.ReconcileNotFound
	case WriteFailed:
		return model.ReconcileWriteFailed
	}
	return "unknown"
}

// Source yields the feed row backing a pool, if the current selection has
// one.
type Source interface {
	Row(poolID uint64) (model.StatRow, bool)
}

// StatsLedger is the corrective-write capability.
type StatsLedger interface {
	UpdatePlayerStats(ctx context.Context, poolID uint64, attrs model.PoolAttributes) (string, error)
}

// Config holds reconciler policy.
type Config struct {
	// StrictFeed escalates a missing feed row to an error instead of a
	// skip-with-warning.
	StrictFeed bool
}

// Reconciler detects divergence between feed-derived and ledger-held
// attributes. It holds no mutable state; on-chain attributes must be
// re-read by the caller before every invocation.
type Reconciler struct {
	cfg    Config
	source Source
	ledger StatsLedger
	audit  storage.Storage
	logger *zap.Logger
	now    func() time.Time
}

// New builds a Reconciler. The audit sink may be nil.
func New(cfg Config, source Source, ledger StatsLedger, audit storage.Storage, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if audit == nil {
		audit = storage.Nop{}
	}
	return &Reconciler{
		cfg:    cfg,
		source: source,
		ledger: ledger,
		audit:  audit,
		logger: logger,
		now:    time.Now,
	}
}

// Reconcile compares the freshly-read on-chain attributes for poolID against
// the canonical feed-derived tuple and corrects the ledger on divergence.
// The comparison is the idempotency guard: immediately reconciling again
// after an update yields Unchanged.
func (r *Reconciler) Reconcile(ctx context.Context, poolID uint64, onChain model.PoolAttributes) (Outcome, error) {
	row, ok := r.source.Row(poolID)
	if !ok {
		r.record(poolID, NotFound, nil, "")
		if r.cfg.StrictFeed {
			return NotFound, fmt.Errorf("%w: pool %d", fault.ErrFeedRowMissing, poolID)
		}
		r.logger.Warn("no feed row for pool, skipping reconcile", zap.Uint64("pool_id", poolID))
		return NotFound, nil
	}

	canonical := CanonicalAttributes(row)
	diverged := DiffFields(onChain, canonical)
	if len(diverged) == 0 {
		r.record(poolID, Unchanged, nil, "")
		r.logger.Debug("pool attributes up to date", zap.Uint64("pool_id", poolID))
		return Unchanged, nil
	}

	r.logger.Info("pool attributes diverged, issuing corrective write",
		zap.Uint64("pool_id", poolID),
		zap.Strings("fields", diverged),
	)

	txHash, err := r.ledger.UpdatePlayerStats(ctx, poolID, canonical)
	if err != nil {
		r.record(poolID, WriteFailed, diverged, "")
		return WriteFailed, fmt.Errorf("corrective write for pool %d: %w", poolID, err)
	}

	r.record(poolID, Updated, diverged, txHash)
	r.logger.Info("pool attributes corrected",
		zap.Uint64("pool_id", poolID),
		zap.String("tx", txHash),
	)
	return Updated, nil
}

func (r *Reconciler) record(poolID uint64, outcome Outcome, fields []string, txHash string) {
	err := r.audit.PutReconcileBatch([]model.ReconcileRecord{{
		PoolID:    poolID,
		Outcome:   outcome.String(),
		Fields:    fields,
		TxHash:    txHash,
		CheckedAt: r.now().UTC().Format(time.RFC3339),
	}})
	if err != nil {
		r.logger.Warn("audit write failed", zap.Uint64("pool_id", poolID), zap.Error(err))
	}
}

// CanonicalAttributes derives the off-chain attribute tuple for a feed row.
// Role is normalized to the two roles the ledger recognizes; any value
// carrying the batsman marker maps to Batsman, everything else to Bowler.
func CanonicalAttributes(row model.StatRow) model.PoolAttributes {
	role := model.RoleBowler
	if strings.Contains(row.Role, model.RoleBatsman) {
		role = model.RoleBatsman
	}
	return model.PoolAttributes{
		PlayerName: row.Player,
		Matches:    row.Matches,
		Runs:       row.Runs,
		Wickets:    row.Wickets,
		Fifties:    row.Fifties,
		Centuries:  row.Centuries,
		StrikeRate: row.StrikeRate,
		Category:   row.Category,
		Role:       role,
		Image:      row.Image,
		Date:       row.Date,
	}
}

// DiffFields lists the attribute fields where the two tuples differ. Price
// is not part of the tuple and is never compared.
func DiffFields(onChain, canonical model.PoolAttributes) []string {
	var fields []string
	if onChain.PlayerName != canonical.PlayerName {
		fields = append(fields, "player_name")
	}
	if onChain.Matches != canonical.Matches {
		fields = append(fields, "matches")
	}
	if onChain.Runs != canonical.Runs {
		fields = append(fields, "runs")
	}
	if onChain.Wickets != canonical.Wickets {
		fields = append(fields, "wickets")
	}
	if onChain.Fifties != canonical.Fifties {
		fields = append(fields, "fifties")
	}
	if onChain.Centuries != canonical.Centuries {
		fields = append(fields, "centuries")
	}
	if onChain.StrikeRate != canonical.StrikeRate {
		fields = append(fields, "strike_rate")
	}
	if onChain.Category != canonical.Category {
		fields = append(fields, "category")
	}
	if onChain.Role != canonical.Role {
		fields = append(fields, "role")
	}
	if onChain.Image != canonical.Image {
		fields = append(fields, "image")
	}
	if onChain.Date != canonical.Date {
		fields = append(fields, "date")
	}
	return fields
}
