package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"

	"github.com/Iurilui616/APICHARLENO/internal/metrics"
	"github.com/Iurilui616/APICHARLENO/internal/model"
)

const (
	// ConsumerGroup is the Redis consumer group name.
	ConsumerGroup = "audit_workers"

	// DefaultBatchSize is the max events per batch.
	DefaultBatchSize = 200

	// DefaultBlockTimeout is how long to block waiting for messages.
	DefaultBlockTimeout = 5 * time.Second
)

// Repository defines the interface for auth event persistence.
type Repository interface {
	BulkInsertAuthEvents(ctx context.Context, events []*model.AuthEvent) error
}

// Worker processes auth events from the Redis stream into Postgres.
type Worker struct {
	redis        *redis.Client
	repo         Repository
	logger       *slog.Logger
	metrics      metrics.Recorder
	consumerID   string
	batchSize    int
	blockTimeout time.Duration

	started bool
	cancel  context.CancelFunc
	done    chan struct{}
	mu      sync.Mutex
}

// NewWorker creates a new audit worker.
func NewWorker(client *redis.Client, repo Repository, logger *slog.Logger, consumerID string, recorder metrics.Recorder) *Worker {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Worker{
		redis:        client,
		repo:         repo,
		logger:       logger.With("component", "audit.worker", "consumer_id", consumerID),
		metrics:      recorder,
		consumerID:   consumerID,
		batchSize:    DefaultBatchSize,
		blockTimeout: DefaultBlockTimeout,
	}
}

// Run starts the worker loop. Blocks until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return errors.New("worker already started")
	}
	w.started = true
	w.done = make(chan struct{})
	ctx, w.cancel = context.WithCancel(ctx)
	w.mu.Unlock()

	defer close(w.done)

	// Ensure consumer group exists
	if err := w.ensureConsumerGroup(ctx); err != nil {
		return fmt.Errorf("ensure consumer group: %w", err)
	}

	w.logger.Info("audit worker started")

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("audit worker stopping")
			return ctx.Err()
		default:
			if err := w.processOnce(ctx); err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				w.logger.Error("process error", "error", err)
				time.Sleep(1 * time.Second)
			}
		}
	}
}

// Shutdown gracefully stops the worker, completing any in-flight batch.
// It implements server.ShutdownFunc for integration with graceful shutdown.
func (w *Worker) Shutdown(ctx context.Context) error {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return nil
	}
	cancel := w.cancel
	done := w.done
	w.mu.Unlock()

	w.logger.Info("audit worker shutdown initiated")

	if cancel != nil {
		cancel()
	}

	// Wait for worker to finish or context timeout
	if done != nil {
		select {
		case <-done:
			w.logger.Info("audit worker shutdown complete")
			return nil
		case <-ctx.Done():
			w.logger.Warn("audit worker shutdown timed out")
			return ctx.Err()
		}
	}
	return nil
}

// ensureConsumerGroup creates the consumer group if it doesn't exist.
func (w *Worker) ensureConsumerGroup(ctx context.Context) error {
	err := w.redis.XGroupCreateMkStream(ctx, StreamKey, ConsumerGroup, "0").Err()
	if err != nil && !isConsumerGroupExistsError(err) {
		return err
	}
	return nil
}

// processOnce reads and persists a single batch.
func (w *Worker) processOnce(ctx context.Context) error {
	streams, err := w.redis.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    ConsumerGroup,
		Consumer: w.consumerID,
		Streams:  []string{StreamKey, ">"},
		Count:    int64(w.batchSize),
		Block:    w.blockTimeout,
	}).Result()

	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil // No messages available
		}
		return fmt.Errorf("xreadgroup: %w", err)
	}

	if len(streams) == 0 || len(streams[0].Messages) == 0 {
		return nil
	}

	messages := streams[0].Messages
	w.metrics.ObserveAuditBatchSize(len(messages))

	events := make([]*model.AuthEvent, 0, len(messages))
	ackIDs := make([]string, 0, len(messages))

	for _, msg := range messages {
		event, err := decodeMessage(msg)
		if err != nil {
			// Poison message: ack and skip, never block the stream on it
			w.logger.Warn("skipping malformed auth event",
				"stream_id", msg.ID,
				"error", err,
			)
			w.metrics.IncAuditEventProcessed("skipped")
			ackIDs = append(ackIDs, msg.ID)
			continue
		}
		events = append(events, event)
		ackIDs = append(ackIDs, msg.ID)
	}

	if len(events) > 0 {
		if err := w.repo.BulkInsertAuthEvents(ctx, events); err != nil {
			// Leave messages pending; they will be redelivered
			w.metrics.IncAuditEventProcessed("failed")
			return fmt.Errorf("bulk insert: %w", err)
		}
		for range events {
			w.metrics.IncAuditEventProcessed("success")
		}
	}

	if len(ackIDs) > 0 {
		if err := w.redis.XAck(ctx, StreamKey, ConsumerGroup, ackIDs...).Err(); err != nil {
			return fmt.Errorf("xack: %w", err)
		}
	}

	w.logger.Debug("audit batch processed",
		"batch_size", len(messages),
		"persisted", len(events),
	)

	return nil
}

// decodeMessage converts a stream message to an AuthEvent.
func decodeMessage(msg redis.XMessage) (*model.AuthEvent, error) {
	raw, ok := msg.Values["payload"].(string)
	if !ok {
		return nil, errors.New("missing payload field")
	}

	var payload EventPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}

	if payload.Event == "" {
		return nil, errors.New("empty event type")
	}

	return &model.AuthEvent{
		ID:         ulid.Make().String(),
		Event:      payload.Event,
		Username:   payload.Username,
		KeyPrefix:  payload.KeyPrefix,
		IPHash:     payload.IPHash,
		OccurredAt: time.UnixMilli(payload.OccurredAt).UTC(),
	}, nil
}

// isConsumerGroupExistsError checks for the BUSYGROUP error from XGROUP CREATE.
func isConsumerGroupExistsError(err error) bool {
	return err != nil && len(err.Error()) >= 9 && err.Error()[:9] == "BUSYGROUP"
}
