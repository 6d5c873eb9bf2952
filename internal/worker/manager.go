package worker

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"rollermate/internal/logging"
	"rollermate/internal/queue"
)

const (
	DefaultWorkerCount  = 2
	DefaultBatchSize    = 10
	DefaultBlockTimeout = 5 * time.Second
)

// Manager runs worker goroutines that consume the activity stream.
type Manager struct {
	consumer    queue.Consumer
	handler     *Handler
	workerCount int
	batchSize   int64
	blockTime   time.Duration
	log         zerolog.Logger

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

type ManagerConfig struct {
	WorkerCount  int
	BatchSize    int64
	BlockTimeout time.Duration
}

func NewManager(consumer queue.Consumer, handler *Handler, cfg ManagerConfig) *Manager {
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = DefaultWorkerCount
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.BlockTimeout <= 0 {
		cfg.BlockTimeout = DefaultBlockTimeout
	}

	return &Manager{
		consumer:    consumer,
		handler:     handler,
		workerCount: cfg.WorkerCount,
		batchSize:   cfg.BatchSize,
		blockTime:   cfg.BlockTimeout,
		log:         logging.For("WorkerManager"),
	}
}

// Start ensures the consumer group and launches the workers. Call Stop to
// shut them down.
func (m *Manager) Start(ctx context.Context) error {
	m.ctx, m.cancel = context.WithCancel(ctx)

	if err := m.consumer.EnsureGroup(m.ctx, queue.StreamActivity, queue.ConsumerGroupNotifications); err != nil {
		m.cancel()
		return err
	}

	for i := 1; i <= m.workerCount; i++ {
		m.wg.Add(1)
		go m.runWorker(i, consumerNameForWorker(i))
	}

	m.log.Info().
		Int("workers", m.workerCount).
		Str("stream", queue.StreamActivity).
		Str("group", queue.ConsumerGroupNotifications).
		Msg("workers started")
	return nil
}

// Stop cancels the workers and waits for them to exit.
func (m *Manager) Stop() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	m.wg.Wait()
	m.log.Info().Msg("all workers stopped")
}

func (m *Manager) runWorker(workerID int, consumerName string) {
	defer m.wg.Done()
	log := m.log.With().Int("worker", workerID).Logger()

	// Messages left unacknowledged by a previous run go first.
	m.processPending(log, consumerName)

	for {
		select {
		case <-m.ctx.Done():
			log.Debug().Msg("shutting down")
			return
		default:
			m.processMessages(log, consumerName)
		}
	}
}

func (m *Manager) processPending(log zerolog.Logger, consumerName string) {
	for {
		messages, err := m.consumer.ReadPending(m.ctx, queue.StreamActivity, queue.ConsumerGroupNotifications, consumerName, m.batchSize)
		if err != nil {
			log.Error().Err(err).Msg("read pending FAILED")
			return
		}
		if len(messages) == 0 {
			return
		}
		log.Info().Int("count", len(messages)).Msg("replaying pending messages")
		m.handleMessages(log, messages)
	}
}

func (m *Manager) processMessages(log zerolog.Logger, consumerName string) {
	messages, err := m.consumer.Read(
		m.ctx,
		queue.StreamActivity,
		queue.ConsumerGroupNotifications,
		consumerName,
		m.batchSize,
		m.blockTime,
	)
	if err != nil {
		if m.ctx.Err() != nil {
			return
		}
		log.Error().Err(err).Msg("read FAILED")
		select {
		case <-time.After(time.Second):
		case <-m.ctx.Done():
		}
		return
	}

	m.handleMessages(log, messages)
}

// handleMessages acks every message, failed ones included, so a poison
// event cannot block the group.
func (m *Manager) handleMessages(log zerolog.Logger, messages []queue.Message) {
	for _, msg := range messages {
		if err := m.handler.HandleEvent(m.ctx, msg.Event); err != nil {
			log.Error().Err(err).Str("msg_id", msg.ID).Msg("handler error")
		}

		if err := m.consumer.Ack(m.ctx, queue.StreamActivity, queue.ConsumerGroupNotifications, msg.ID); err != nil {
			log.Error().Err(err).Str("msg_id", msg.ID).Msg("ack FAILED")
		}
	}
}

func consumerNameForWorker(workerID int) string {
	return "worker-" + strconv.Itoa(workerID)
}
