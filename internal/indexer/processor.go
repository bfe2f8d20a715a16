package indexer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"vaultScope/internal/metrics"
	"vaultScope/internal/model"
	"vaultScope/internal/storage"
)

// Config holds runtime settings for the processor. CheckpointEvery is the
// number of processed events between checkpoint writes.
type Config struct {
	CheckpointPath    string
	CheckpointEnabled bool
	CheckpointEvery   int
	MaxRetries        int
	RetryBackoff      time.Duration
}

// Applier mutates entities for one event inside a store transaction.
type Applier interface {
	Apply(ctx context.Context, tx storage.Tx, ev model.Event) error
}

// RejectWriter receives records that could not be parsed.
type RejectWriter interface {
	Write(value interface{}) error
}

// Summary counts the outcome of every record read during a run.
type Summary struct {
	Total      int
	Applied    int
	Duplicates int
	Rejected   int
}

// Processor feeds events from a Source through the reducer, one store
// transaction per event.
type Processor struct {
	cfg        Config
	store      storage.Store
	reducer    Applier
	metrics    *metrics.Metrics
	logger     *zap.Logger
	checkpoint *CheckpointStore
}

// NewProcessor builds a Processor with its dependencies. m may be nil.
func NewProcessor(cfg Config, store storage.Store, reducer Applier, m *metrics.Metrics, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CheckpointEvery <= 0 {
		cfg.CheckpointEvery = 1
	}
	return &Processor{
		cfg:        cfg,
		store:      store,
		reducer:    reducer,
		metrics:    m,
		logger:     logger,
		checkpoint: NewCheckpointStore(cfg.CheckpointPath, cfg.CheckpointEnabled),
	}
}

// Run drains source. Malformed records are written to rejects (which may be
// nil) and counted; store failures that survive the retries end the run.
func (p *Processor) Run(ctx context.Context, source Source, rejects RejectWriter) (Summary, error) {
	var summary Summary
	if p.store == nil {
		return summary, fmt.Errorf("store is nil")
	}
	if p.reducer == nil {
		return summary, fmt.Errorf("reducer is nil")
	}

	var (
		last    model.EventMeta
		seenAny bool
		high    model.EventMeta
		dirty   int
	)

	cp, ok, err := p.checkpoint.Load()
	if err != nil {
		return summary, err
	}
	if ok {
		// Position is informational; replays are filtered by the applied ledger.
		high = cp.Position()
		p.logger.Info("resume from checkpoint",
			zap.Uint64("last_block", cp.LastBlock),
			zap.Uint64("last_log_index", cp.LastLogIndex),
		)
	}

	flush := func() error {
		if dirty == 0 {
			return nil
		}
		if err := p.checkpoint.Save(high); err != nil {
			return err
		}
		dirty = 0
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			if err := flush(); err != nil {
				p.logger.Warn("checkpoint save failed", zap.Error(err))
			}
			return summary, ctx.Err()
		default:
		}

		record, err := source.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if !errors.Is(err, model.ErrMalformedEvent) {
				return summary, err
			}
			summary.Total++
			summary.Rejected++
			p.reject(rejects, model.RejectedEvent{Error: err.Error()}, "")
			continue
		}
		summary.Total++

		ev, err := model.ParseEvent(record)
		if err != nil {
			summary.Rejected++
			p.reject(rejects, model.RejectedFromRecord(record, err), string(model.NormalizeEventName(record.EventName)))
			continue
		}
		kind := string(ev.Kind())

		if seenAny && ev.Meta.Before(last) {
			p.logger.Warn("event out of order",
				zap.String("event_id", ev.Meta.ID()),
				zap.Uint64("block_number", ev.Meta.BlockNumber),
				zap.Uint64("log_index", ev.Meta.LogIndex),
				zap.Uint64("previous_block", last.BlockNumber),
				zap.Uint64("previous_log_index", last.LogIndex),
			)
		}
		last, seenAny = ev.Meta, true

		start := time.Now()
		duplicate, err := p.apply(ctx, ev)
		if err != nil {
			if flushErr := flush(); flushErr != nil {
				p.logger.Warn("checkpoint save failed", zap.Error(flushErr))
			}
			return summary, fmt.Errorf("apply event %s: %w", ev.Meta.ID(), err)
		}

		if duplicate {
			summary.Duplicates++
			p.metrics.Event(kind, metrics.OutcomeDuplicate)
			p.logger.Debug("event already applied", zap.String("event_id", ev.Meta.ID()))
		} else {
			summary.Applied++
			p.metrics.Event(kind, metrics.OutcomeApplied)
			p.metrics.ObserveApply(kind, time.Since(start))
			p.metrics.SetLastBlock(ev.Meta.BlockNumber)
		}

		if high.Before(ev.Meta) {
			high = ev.Meta
		}
		dirty++
		if dirty >= p.cfg.CheckpointEvery {
			if err := flush(); err != nil {
				return summary, err
			}
		}
	}

	if err := flush(); err != nil {
		return summary, err
	}

	p.logger.Info("apply complete",
		zap.Int("total", summary.Total),
		zap.Int("applied", summary.Applied),
		zap.Int("duplicates", summary.Duplicates),
		zap.Int("rejected", summary.Rejected),
	)
	return summary, nil
}

// apply runs the reducer for ev in one store transaction and records the event
// as applied. It reports true without touching entities when ev was applied
// before.
func (p *Processor) apply(ctx context.Context, ev model.Event) (bool, error) {
	id := ev.Meta.ID()
	var duplicate bool
	err := withRetry(ctx, p.cfg.MaxRetries, p.cfg.RetryBackoff, func(ctx context.Context) error {
		duplicate = false
		err := p.store.Update(ctx, func(tx storage.Tx) error {
			applied, err := tx.IsApplied(ctx, id)
			if err != nil {
				return err
			}
			if applied {
				duplicate = true
				return nil
			}
			if err := p.reducer.Apply(ctx, tx, ev); err != nil {
				return err
			}
			return tx.MarkApplied(ctx, id)
		})
		if err != nil {
			p.logger.Warn("store update failed", zap.Error(err), zap.String("event_id", id))
		}
		return err
	})
	return duplicate, err
}

func (p *Processor) reject(w RejectWriter, rejected model.RejectedEvent, kind string) {
	if kind == "" {
		kind = "unknown"
	}
	p.metrics.Event(kind, metrics.OutcomeRejected)
	p.logger.Warn("event rejected",
		zap.String("tx_hash", rejected.TxHash),
		zap.Uint64("log_index", rejected.LogIndex),
		zap.String("event_name", rejected.EventName),
		zap.String("error", rejected.Error),
	)
	if w == nil {
		return
	}
	if err := w.Write(rejected); err != nil {
		p.logger.Warn("write rejected event failed", zap.Error(err))
	}
}
