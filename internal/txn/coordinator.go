package txn

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"ms-booking/internal/apperrors"
	"ms-booking/internal/logger"
	"ms-booking/internal/metrics"
)

// UnitOfWork is run inside one transaction. Every statement must go through
// tx. It may be invoked several times for one Run call, so it must not keep
// side effects outside the transaction.
type UnitOfWork func(ctx context.Context, tx bun.Tx) error

type Options struct {
	Isolation sql.IsolationLevel
	// Timeout bounds the whole logical operation, retries included, when the
	// caller's context carries no deadline.
	Timeout        time.Duration
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func DefaultOptions() Options {
	return Options{
		Isolation:      sql.LevelSerializable,
		Timeout:        10 * time.Second,
		MaxRetries:     5,
		InitialBackoff: 20 * time.Millisecond,
		MaxBackoff:     500 * time.Millisecond,
	}
}

// Coordinator runs units of work atomically and retries the transient
// failures a serializable database produces under contention.
type Coordinator struct {
	db      *bun.DB
	opts    Options
	log     *logger.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

func New(db *bun.DB, opts Options, log *logger.Logger, m *metrics.Metrics) *Coordinator {
	if log == nil {
		log = logger.Discard()
	}
	return &Coordinator{
		db:      db,
		opts:    opts,
		log:     log,
		metrics: m,
		tracer:  otel.Tracer("ms-booking/internal/txn"),
	}
}

// DB exposes the pool for reads that need no transaction.
func (c *Coordinator) DB() *bun.DB {
	return c.db
}

// Run executes fn in a fresh transaction, committing on nil and rolling back
// otherwise. Serialization and connectivity failures re-run fn from scratch
// up to MaxRetries times. Any returned error is an *apperrors.Error.
func (c *Coordinator) Run(ctx context.Context, name string, fn UnitOfWork) error {
	if _, ok := ctx.Deadline(); !ok && c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	op := "tx " + name
	runID := uuid.NewString()
	start := time.Now()
	attempt := 0

	operation := func() error {
		attempt++
		c.metrics.TxAttempt(name)
		c.log.LogTx(name, runID, fmt.Sprintf("attempt %d", attempt))

		err := c.attempt(ctx, name, runID, attempt, fn)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return backoff.Permanent(apperrors.Wrap(apperrors.KindTimeout, op, ctx.Err()))
		}
		classified := Classify(op, err)
		if !apperrors.IsRetryable(classified) {
			return backoff.Permanent(classified)
		}
		return classified
	}

	notify := func(err error, wait time.Duration) {
		c.metrics.TxRetry(name, string(apperrors.KindOf(err)))
		c.log.Warn("TX", fmt.Sprintf("[%s] %s - attempt %d failed, retrying in %s: %v", name, runID, attempt, wait, err))
	}

	err := backoff.RetryNotify(operation, c.policy(ctx), notify)
	elapsed := time.Since(start).Seconds()
	if err == nil {
		c.metrics.TxDone(name, "ok", elapsed)
		c.log.LogTx(name, runID, fmt.Sprintf("committed after %d attempt(s)", attempt))
		return nil
	}

	// RetryNotify reports the context error rather than the last failure
	// once the context is done.
	var final *apperrors.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		final = apperrors.Wrap(apperrors.KindTimeout, op, err)
	} else {
		final = Classify(op, err)
	}
	c.metrics.TxDone(name, string(final.Kind), elapsed)
	c.log.LogTx(name, runID, fmt.Sprintf("rolled back after %d attempt(s): %v", attempt, final))
	return final
}

func (c *Coordinator) attempt(ctx context.Context, name, runID string, n int, fn UnitOfWork) (err error) {
	ctx, span := c.tracer.Start(ctx, "tx."+name, trace.WithAttributes(
		attribute.String("tx.name", name),
		attribute.String("tx.run_id", runID),
		attribute.Int("tx.attempt", n),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	return c.db.RunInTx(ctx, c.txOptions(), func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, tx)
	})
}

// txOptions drops the isolation level on SQLite: it is serializable by
// construction and its drivers refuse explicit levels.
func (c *Coordinator) txOptions() *sql.TxOptions {
	if c.db.Dialect().Name() == dialect.SQLite {
		return &sql.TxOptions{}
	}
	return &sql.TxOptions{Isolation: c.opts.Isolation}
}

func (c *Coordinator) policy(ctx context.Context) backoff.BackOffContext {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.opts.InitialBackoff
	eb.MaxInterval = c.opts.MaxBackoff
	eb.MaxElapsedTime = 0
	eb.Reset()

	retries := c.opts.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(eb, uint64(retries)), ctx)
}
