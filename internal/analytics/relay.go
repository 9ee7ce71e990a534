package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/uptrace/bun"

	"ms-booking/internal/apperrors"
	"ms-booking/internal/kafka"
	"ms-booking/internal/logger"
	"ms-booking/internal/metrics"
	"ms-booking/internal/models"
	"ms-booking/internal/txn"
)

// Publisher delivers a batch downstream, all or nothing. *kafka.Producer
// implements it.
type Publisher interface {
	Publish(ctx context.Context, msgs ...kafka.Message) error
}

type Transactor interface {
	Run(ctx context.Context, name string, fn txn.UnitOfWork) error
}

// Envelope is the JSON value of each forwarded message. Consumers dedupe on
// AnalyticsID since delivery is at least once.
type Envelope struct {
	AnalyticsID int64                  `json:"analyticsId"`
	EventType   string                 `json:"eventType"`
	UserID      int64                  `json:"userId"`
	Data        map[string]interface{} `json:"data"`
	CreatedAt   time.Time              `json:"createdAt"`
}

// Relay forwards committed analytics rows to the downstream sink and records
// each delivery, so the analytics table itself stays append-only.
type Relay struct {
	Tx        Transactor
	DB        *DB
	Publisher Publisher
	BatchSize int
	Interval  time.Duration
	Logger    *logger.Logger
	Metrics   *metrics.Metrics
}

func NewRelay(tx Transactor, db *DB, pub Publisher, batchSize int, interval time.Duration, log *logger.Logger, m *metrics.Metrics) *Relay {
	if batchSize <= 0 {
		batchSize = 100
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Relay{Tx: tx, DB: db, Publisher: pub, BatchSize: batchSize, Interval: interval, Logger: log, Metrics: m}
}

// ForwardBatch publishes the oldest undelivered events and marks them
// delivered in the same transaction. A failed publish leaves them pending
// for the next batch.
func (r *Relay) ForwardBatch(ctx context.Context) (int, error) {
	sent := 0
	err := r.Tx.Run(ctx, "forward_analytics", func(ctx context.Context, tx bun.Tx) error {
		sent = 0
		events, err := r.DB.ListUndelivered(ctx, tx, r.BatchSize)
		if err != nil || len(events) == 0 {
			return err
		}

		msgs := make([]kafka.Message, 0, len(events))
		ids := make([]int64, 0, len(events))
		for _, e := range events {
			m, err := toMessage(e)
			if err != nil {
				return err
			}
			msgs = append(msgs, m)
			ids = append(ids, e.ID)
		}

		if err := r.Publisher.Publish(ctx, msgs...); err != nil {
			return apperrors.Wrap(apperrors.KindConnectivity, "publish analytics", err)
		}
		if err := r.DB.MarkDelivered(ctx, tx, ids, time.Now().UTC()); err != nil {
			return err
		}
		sent = len(events)
		return nil
	})
	if err != nil {
		return 0, err
	}
	if sent > 0 {
		r.Metrics.Forwarded(sent)
		r.Logger.LogKafka("RELAY", "analytics", fmt.Sprintf("forwarded %d event(s)", sent))
	}
	return sent, nil
}

// Run forwards batches every Interval until ctx is done. A full batch is
// followed immediately by another.
func (r *Relay) Run(ctx context.Context) error {
	r.Logger.Info("RELAY", fmt.Sprintf("Analytics relay started (batch %d, every %s)", r.BatchSize, r.Interval))
	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()

	for {
		n, err := r.ForwardBatch(ctx)
		if err != nil && ctx.Err() == nil {
			r.Logger.Error("RELAY", fmt.Sprintf("Forward batch failed: %v", err))
		}
		if err == nil && n == r.BatchSize {
			continue
		}

		select {
		case <-ctx.Done():
			r.Logger.Info("RELAY", "Analytics relay stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func toMessage(e models.AnalyticsEvent) (kafka.Message, error) {
	value, err := json.Marshal(Envelope{
		AnalyticsID: e.ID,
		EventType:   e.EventType,
		UserID:      e.UserID,
		Data:        e.Data,
		CreatedAt:   e.CreatedAt,
	})
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode analytics %d: %w", e.ID, err)
	}

	key := strconv.FormatInt(e.UserID, 10)
	if ref, ok := e.Data["bookingReference"].(string); ok && ref != "" {
		key = ref
	}
	return kafka.Message{
		Key:   key,
		Value: value,
		Headers: map[string]string{
			"event_type":   e.EventType,
			"analytics_id": strconv.FormatInt(e.ID, 10),
		},
	}, nil
}
