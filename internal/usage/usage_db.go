// Package usage provides token-usage accounting for the chat relay.
// This file implements optional PostgreSQL persistence of per-request usage
// rows. Writes are buffered and flushed in the background; persistence is
// best-effort observability and never blocks or fails a chat response.
package usage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"github.com/sparkmatch/chatrelay/internal/config"
)

const createUsageTableSQL = `
CREATE TABLE IF NOT EXISTS chatrelay_usage (
	id                    BIGSERIAL PRIMARY KEY,
	recorded_at           TIMESTAMPTZ NOT NULL,
	request_id            TEXT NOT NULL,
	model                 TEXT NOT NULL,
	status                TEXT NOT NULL,
	input_tokens          BIGINT NOT NULL,
	cache_creation_tokens BIGINT NOT NULL,
	cache_read_tokens     BIGINT NOT NULL,
	output_tokens         BIGINT NOT NULL,
	cache_hit_rate        DOUBLE PRECISION NOT NULL,
	savings_usd           DOUBLE PRECISION NOT NULL,
	latency_ms            BIGINT NOT NULL
)`

// usageRow is one buffered insert.
type usageRow struct {
	recordedAt time.Time
	sample     Sample
	breakdown  CostBreakdown
}

// DB persists usage samples to PostgreSQL in batches.
type DB struct {
	pool          *pgxpool.Pool
	flushInterval time.Duration

	mu     sync.Mutex
	buffer []usageRow

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewDB opens the usage database and ensures the table exists.
func NewDB(ctx context.Context, cfg config.UsageDBConfig) (*DB, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("usage database DSN is required")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse usage DSN: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect usage database: %w", err)
	}

	if _, err := pool.Exec(ctx, createUsageTableSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create usage table: %w", err)
	}

	db := &DB{
		pool:          pool,
		flushInterval: time.Duration(cfg.FlushIntervalSeconds) * time.Second,
		done:          make(chan struct{}),
	}
	if db.flushInterval <= 0 {
		db.flushInterval = 10 * time.Second
	}

	db.wg.Add(1)
	go db.flushLoop()

	log.Info("usage database initialized")
	return db, nil
}

// Sink returns a usage sink that buffers samples for persistence.
func (db *DB) Sink() Sink {
	return func(sample Sample, breakdown CostBreakdown) {
		db.mu.Lock()
		db.buffer = append(db.buffer, usageRow{
			recordedAt: time.Now().UTC(),
			sample:     sample,
			breakdown:  breakdown,
		})
		db.mu.Unlock()
	}
}

func (db *DB) flushLoop() {
	defer db.wg.Done()

	ticker := time.NewTicker(db.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			db.flush()
		case <-db.done:
			db.flush()
			return
		}
	}
}

func (db *DB) flush() {
	db.mu.Lock()
	rows := db.buffer
	db.buffer = nil
	db.mu.Unlock()

	if len(rows) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, row := range rows {
		_, err := db.pool.Exec(ctx,
			`INSERT INTO chatrelay_usage
			 (recorded_at, request_id, model, status, input_tokens,
			  cache_creation_tokens, cache_read_tokens, output_tokens,
			  cache_hit_rate, savings_usd, latency_ms)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
			row.recordedAt, row.sample.RequestID, row.sample.Model, row.sample.Status,
			row.sample.Stats.InputTokens, row.sample.Stats.CacheCreationTokens,
			row.sample.Stats.CacheReadTokens, row.sample.Stats.OutputTokens,
			row.sample.Stats.CacheHitRate(), row.breakdown.Savings,
			row.sample.Latency.Milliseconds())
		if err != nil {
			log.Warnf("usage row insert failed: %v", err)
			return
		}
	}

	log.Debugf("flushed %d usage rows", len(rows))
}

// Close flushes pending rows and closes the pool.
func (db *DB) Close() {
	db.closeOnce.Do(func() {
		close(db.done)
		db.wg.Wait()
		db.pool.Close()
	})
}
