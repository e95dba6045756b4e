package jobqueue

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Worker polls a job table, claims batches with SKIP LOCKED and hands
// each claimed job to the dispatcher. Delivery is at-least-once.
type Worker struct {
	pool       *pgxpool.Pool
	table      pgx.Identifier
	dispatcher Dispatcher
	opts       WorkerOptions

	lockKey int64

	m          *metrics
	tableLabel string
}

func NewWorker(pool *pgxpool.Pool, table pgx.Identifier, dispatcher Dispatcher, opts WorkerOptions) (*Worker, error) {
	if pool == nil {
		return nil, invalidConfig("pool is required")
	}
	if len(table) == 0 {
		return nil, invalidConfig("table is required")
	}
	if dispatcher == nil {
		return nil, invalidConfig("dispatcher is required")
	}

	opts.setDefaults()

	w := &Worker{
		pool:       pool,
		table:      table,
		dispatcher: dispatcher,
		opts:       opts,
		m:          getMetrics(),
		tableLabel: TableLabel(table),
		lockKey:    advisoryLockKey("jobqueue:" + TableLabel(table)),
	}
	if w.opts.Logger == nil {
		w.opts.Logger = logrusNop()
	}
	return w, nil
}

func (w *Worker) Run(ctx context.Context) error {
	if ctx == nil {
		return invalidConfig("ctx is required")
	}

	if w.opts.SingleActive {
		return w.runSingleActive(ctx)
	}

	w.m.workerLeader.WithLabelValues(w.tableLabel).Set(1)
	return w.runLoop(ctx, nil)
}

func (w *Worker) runSingleActive(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		conn, err := w.pool.Acquire(ctx)
		if err != nil {
			w.opts.Logger.WithError(err).Warn("jobqueue: failed to acquire connection for single-active worker")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(w.opts.PollInterval):
				continue
			}
		}

		leader, err := w.tryAcquireLeader(ctx, conn)
		if err != nil {
			conn.Release()
			w.opts.Logger.WithError(err).Warn("jobqueue: failed to attempt advisory lock")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(w.opts.PollInterval):
				continue
			}
		}

		if !leader {
			w.m.workerLeader.WithLabelValues(w.tableLabel).Set(0)
			conn.Release()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(w.opts.PollInterval):
				continue
			}
		}

		w.m.workerLeader.WithLabelValues(w.tableLabel).Set(1)
		w.opts.Logger.WithField("table", w.tableLabel).Info("jobqueue: worker became leader")

		err = w.runLoop(ctx, conn)
		_ = w.releaseLeader(context.Background(), conn)
		conn.Release()
		return err
	}
}

func (w *Worker) runLoop(ctx context.Context, conn *pgxpool.Conn) error {
	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()

	nextDepthAt := time.Now()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		if time.Now().After(nextDepthAt) {
			if err := w.observeQueueDepth(ctx, conn); err != nil {
				w.opts.Logger.WithError(err).Debug("jobqueue: observe queue depth failed")
			}
			nextDepthAt = time.Now().Add(w.opts.ObserveQueueDepthEvery)
		}

		if err := w.processOnce(ctx, conn); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			w.opts.Logger.WithError(err).Warn("jobqueue: process tick failed")
		}
	}
}

type claimed struct {
	ID        uuid.UUID
	Topic     string
	Payload   []byte
	EventID   uuid.UUID
	Sequence  int64
	Attempts  int
	ClaimedAt time.Time
}

func (w *Worker) processOnce(ctx context.Context, conn *pgxpool.Conn) error {
	now := time.Now()
	cutoff := now.Add(-w.opts.LockTTL)

	claimed, err := w.claim(ctx, conn, now, cutoff)
	if err != nil {
		return err
	}
	if len(claimed) == 0 {
		return nil
	}

	for _, c := range claimed {
		dispatchCtx := ctx
		var cancel func()
		if w.opts.DispatchTimeout > 0 {
			dispatchCtx, cancel = context.WithTimeout(ctx, w.opts.DispatchTimeout)
		}

		job := DispatchedJob{
			Meta: Meta{
				Table:    w.table,
				Topic:    c.Topic,
				EventID:  c.EventID,
				Sequence: c.Sequence,
				Attempts: c.Attempts,
			},
			Payload: c.Payload,
		}

		start := time.Now()
		err := w.dispatcher.Dispatch(dispatchCtx, job)
		if cancel != nil {
			cancel()
		}

		latency := time.Since(start)
		if err == nil {
			w.recordDispatch(c.Topic, "success", latency)
			if ackErr := w.ack(ctx, conn, c.ID); ackErr != nil {
				w.opts.Logger.WithError(ackErr).WithFields(logFields(c, w.tableLabel)).Warn("jobqueue: ack failed")
			}
			continue
		}

		w.recordDispatch(c.Topic, "failure", latency)
		lastErr := truncateError(err, w.opts.LastErrorMaxLen)

		if c.Attempts >= w.opts.MaxAttempts {
			w.m.deadTotal.WithLabelValues(w.tableLabel, c.Topic).Inc()
			if deadErr := w.dead(ctx, conn, c.ID, lastErr); deadErr != nil {
				w.opts.Logger.WithError(deadErr).WithFields(logFields(c, w.tableLabel)).Warn("jobqueue: dead update failed")
			}
			if w.opts.OnDead != nil {
				w.opts.OnDead(ctx, job, lastErr)
			}
			continue
		}

		next := time.Now().Add(backoff(c.Attempts, w.opts.MaxBackoff) + jitter(w.opts.Rand, w.opts.JitterMax))
		if nackErr := w.nack(ctx, conn, c.ID, lastErr, next); nackErr != nil {
			w.opts.Logger.WithError(nackErr).WithFields(logFields(c, w.tableLabel)).Warn("jobqueue: nack failed")
		}
	}

	return nil
}

func (w *Worker) claim(ctx context.Context, conn *pgxpool.Conn, now, lockCutoff time.Time) ([]claimed, error) {
	exec := txExec{pool: w.pool, conn: conn}
	tx, err := exec.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.rollback(ctx)

	tableName := w.table.Sanitize()
	q := fmt.Sprintf(
		`SELECT id, topic, payload, event_id, sequence, attempts
		   FROM %s
		  WHERE completed_at IS NULL
		    AND available_at <= $1
		    AND attempts < $2
		    AND (locked_at IS NULL OR locked_at < $3)
		  ORDER BY available_at, sequence
		  LIMIT $4
		  FOR UPDATE SKIP LOCKED`,
		tableName,
	)
	rows, err := tx.tx.Query(ctx, q, now, w.opts.MaxAttempts, lockCutoff, w.opts.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("jobqueue claim select: %w", err)
	}
	defer rows.Close()

	var items []claimed
	var ids []uuid.UUID
	for rows.Next() {
		var c claimed
		if err := rows.Scan(&c.ID, &c.Topic, &c.Payload, &c.EventID, &c.Sequence, &c.Attempts); err != nil {
			return nil, fmt.Errorf("jobqueue claim scan: %w", err)
		}
		c.Attempts++
		c.ClaimedAt = now
		items = append(items, c)
		ids = append(ids, c.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("jobqueue claim rows: %w", err)
	}
	if len(ids) == 0 {
		if err := tx.commit(ctx); err != nil {
			return nil, err
		}
		return nil, nil
	}

	update := fmt.Sprintf(`UPDATE %s SET locked_at = $1, attempts = attempts + 1 WHERE id = ANY($2)`, tableName)
	if _, err := tx.tx.Exec(ctx, update, now, pgtype.FlatArray[uuid.UUID](ids)); err != nil {
		return nil, fmt.Errorf("jobqueue claim update: %w", err)
	}

	if err := tx.commit(ctx); err != nil {
		return nil, err
	}

	return items, nil
}

func (w *Worker) ack(ctx context.Context, conn *pgxpool.Conn, id uuid.UUID) error {
	exec := txExec{pool: w.pool, conn: conn}
	tx, err := exec.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.rollback(ctx)

	tableName := w.table.Sanitize()
	q := fmt.Sprintf(
		`UPDATE %s
		    SET completed_at = now(),
		        locked_at = NULL,
		        last_error = NULL
		  WHERE id = $1 AND completed_at IS NULL`,
		tableName,
	)
	if _, err := tx.tx.Exec(ctx, q, id); err != nil {
		return fmt.Errorf("jobqueue ack: %w", err)
	}
	return tx.commit(ctx)
}

func (w *Worker) nack(ctx context.Context, conn *pgxpool.Conn, id uuid.UUID, lastError string, nextAvailable time.Time) error {
	exec := txExec{pool: w.pool, conn: conn}
	tx, err := exec.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.rollback(ctx)

	tableName := w.table.Sanitize()
	q := fmt.Sprintf(
		`UPDATE %s
		    SET locked_at = NULL,
		        last_error = $2,
		        available_at = $3
		  WHERE id = $1 AND completed_at IS NULL`,
		tableName,
	)
	if _, err := tx.tx.Exec(ctx, q, id, lastError, nextAvailable); err != nil {
		return fmt.Errorf("jobqueue nack: %w", err)
	}
	return tx.commit(ctx)
}

// dead retires an exhausted job for good. Stage jobs carry no value
// once their import moved on or was marked failed, so the row is
// completed with its last error kept as the record of what happened.
func (w *Worker) dead(ctx context.Context, conn *pgxpool.Conn, id uuid.UUID, lastError string) error {
	exec := txExec{pool: w.pool, conn: conn}
	tx, err := exec.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.rollback(ctx)

	tableName := w.table.Sanitize()
	q := fmt.Sprintf(
		`UPDATE %s
		    SET locked_at = NULL,
		        last_error = $2,
		        completed_at = now()
		  WHERE id = $1 AND completed_at IS NULL`,
		tableName,
	)
	if _, err := tx.tx.Exec(ctx, q, id, lastError); err != nil {
		return fmt.Errorf("jobqueue dead: %w", err)
	}
	return tx.commit(ctx)
}

func (w *Worker) observeQueueDepth(ctx context.Context, conn *pgxpool.Conn) error {
	exec := txExec{pool: w.pool, conn: conn}
	db := exec.queryer()

	tableName := w.table.Sanitize()
	pendingQ := fmt.Sprintf(`SELECT count(*) FROM %s WHERE completed_at IS NULL`, tableName)
	lockedQ := fmt.Sprintf(`SELECT count(*) FROM %s WHERE completed_at IS NULL AND locked_at IS NOT NULL`, tableName)

	var pending, locked int64
	if err := db.QueryRow(ctx, pendingQ).Scan(&pending); err != nil {
		return fmt.Errorf("jobqueue pending count: %w", err)
	}
	if err := db.QueryRow(ctx, lockedQ).Scan(&locked); err != nil {
		return fmt.Errorf("jobqueue locked count: %w", err)
	}

	w.m.pending.WithLabelValues(w.tableLabel).Set(float64(pending))
	w.m.locked.WithLabelValues(w.tableLabel).Set(float64(locked))
	return nil
}

func (w *Worker) recordDispatch(topic, result string, latency time.Duration) {
	w.m.dispatchTotal.WithLabelValues(w.tableLabel, topic, result).Inc()
	w.m.dispatchLatency.WithLabelValues(w.tableLabel, topic, result).Observe(latency.Seconds())
}

func (w *Worker) tryAcquireLeader(ctx context.Context, conn *pgxpool.Conn) (bool, error) {
	var ok bool
	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1::bigint)`, w.lockKey).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}

func (w *Worker) releaseLeader(ctx context.Context, conn *pgxpool.Conn) error {
	var ok bool
	if err := conn.QueryRow(ctx, `SELECT pg_advisory_unlock($1::bigint)`, w.lockKey).Scan(&ok); err != nil {
		return err
	}
	return nil
}

func advisoryLockKey(s string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return int64(h.Sum64())
}

type txExec struct {
	pool *pgxpool.Pool
	conn *pgxpool.Conn
}

func (e txExec) begin(ctx context.Context) (*txWrap, error) {
	if e.conn != nil {
		tx, err := e.conn.BeginTx(ctx, pgx.TxOptions{})
		if err != nil {
			return nil, err
		}
		return &txWrap{tx: tx}, nil
	}
	tx, err := e.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	return &txWrap{tx: tx}, nil
}

func (e txExec) queryer() queryer {
	if e.conn != nil {
		return e.conn
	}
	return e.pool
}

type queryer interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type txWrap struct {
	tx pgx.Tx
}

func (t *txWrap) commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		return err
	}
	return nil
}

func (t *txWrap) rollback(ctx context.Context) {
	_ = t.tx.Rollback(ctx)
}

func logFields(c claimed, table string) map[string]any {
	return map[string]any{
		"table":    table,
		"topic":    c.Topic,
		"event_id": c.EventID.String(),
		"sequence": c.Sequence,
		"attempts": c.Attempts,
	}
}
