package writer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/evangeline-go/evangeline/internal/connection"
	"github.com/evangeline-go/evangeline/internal/metrics"
)

// BatchSender runs a pgx batch. *pgxpool.Pool and *pgx.Conn satisfy it.
type BatchSender interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// WriterConfig holds batching settings.
type WriterConfig struct {
	BatchSize     int
	FlushInterval time.Duration
	WriteTimeout  time.Duration // per-flush database deadline
}

// DefaultWriterConfig returns default batching settings.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		BatchSize:     500,
		FlushInterval: time.Second,
		WriteTimeout:  30 * time.Second,
	}
}

// WriterMetrics contains writer statistics.
type WriterMetrics struct {
	Inserts   int64
	Conflicts int64
	Errors    int64
	Flushes   int64
}

const insertMessageSQL = `
	INSERT INTO messages (archive_id, message_id, session_id, author, content, received_at)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT DO NOTHING
`

// messageRow is one row of the messages table.
type messageRow struct {
	ArchiveID  uuid.UUID
	MessageID  *string // nil when the instance did not send an id
	SessionID  uuid.UUID
	Author     string
	Content    string
	ReceivedAt int64 // µs since epoch
}

// MessageWriter consumes MESSAGE_CREATE events from a queue and writes them
// to the messages table in batches.
type MessageWriter struct {
	cfg    WriterConfig
	logger *slog.Logger

	input *Queue[connection.MessageCreateEvent]
	db    BatchSender

	// Batching
	batch   []messageRow
	batchMu sync.Mutex

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	metrics WriterMetrics
}

// NewMessageWriter creates a new MessageWriter.
func NewMessageWriter(
	cfg WriterConfig,
	input *Queue[connection.MessageCreateEvent],
	db BatchSender,
	logger *slog.Logger,
) *MessageWriter {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = DefaultWriterConfig().BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultWriterConfig().FlushInterval
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultWriterConfig().WriteTimeout
	}
	return &MessageWriter{
		cfg:    cfg,
		input:  input,
		db:     db,
		logger: logger,
		batch:  make([]messageRow, 0, cfg.BatchSize),
		ctx:    context.Background(),
	}
}

// Start begins consuming events and writing to the database.
func (w *MessageWriter) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(2)
	go w.consumeLoop()
	go w.flushLoop()

	w.logger.Info("message writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop shuts down the writer. Events still queued are written before it returns.
func (w *MessageWriter) Stop(ctx context.Context) error {
	w.logger.Info("stopping message writer")

	if w.cancel != nil {
		w.cancel()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		w.logger.Warn("message writer stop timed out")
		return ctx.Err()
	}

	for _, ev := range w.input.PopBatch(0) {
		w.add(ev)
	}
	if err := w.flush(ctx); err != nil {
		return fmt.Errorf("final flush: %w", err)
	}

	w.logger.Info("message writer stopped", "inserts", w.Stats().Inserts)
	return nil
}

// Stats returns current metrics.
func (w *MessageWriter) Stats() WriterMetrics {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return w.metrics
}

// QueueStats returns statistics of the input queue.
func (w *MessageWriter) QueueStats() QueueStats {
	return w.input.Stats()
}

// consumeLoop moves events from the queue into the current batch.
func (w *MessageWriter) consumeLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.input.Ready():
			for _, ev := range w.input.PopBatch(w.cfg.BatchSize) {
				w.handleEvent(ev)
			}
			metrics.ArchiveQueueDepth.Set(float64(w.input.Len()))
		}
	}
}

// flushLoop periodically flushes the batch.
func (w *MessageWriter) flushLoop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.flushDetached()
		}
	}
}

// handleEvent adds an event to the batch and flushes when the batch is full.
func (w *MessageWriter) handleEvent(ev connection.MessageCreateEvent) {
	if w.add(ev) {
		w.flushDetached()
	}
}

// flushDetached flushes from the loops. Cancelling the loops must not abort
// a write that already took rows out of the batch, so the write runs on a
// context that outlives them.
func (w *MessageWriter) flushDetached() {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(w.ctx), w.cfg.WriteTimeout)
	defer cancel()
	w.flush(ctx)
}

func (w *MessageWriter) add(ev connection.MessageCreateEvent) (full bool) {
	row := transform(ev)

	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	w.batch = append(w.batch, row)
	return len(w.batch) >= w.cfg.BatchSize
}

// transform converts an event to a messageRow.
func transform(ev connection.MessageCreateEvent) messageRow {
	row := messageRow{
		ArchiveID:  uuid.New(),
		SessionID:  ev.SessionID,
		Author:     ev.Message.Author,
		Content:    ev.Message.Content,
		ReceivedAt: ev.ReceivedAt.UnixMicro(),
	}
	if ev.Message.ID != "" {
		id := ev.Message.ID.String()
		row.MessageID = &id
	}
	return row
}

// flush writes the current batch to the database.
func (w *MessageWriter) flush(ctx context.Context) error {
	w.batchMu.Lock()
	if len(w.batch) == 0 {
		w.batchMu.Unlock()
		return nil
	}

	// Take ownership of current batch
	batch := w.batch
	w.batch = make([]messageRow, 0, w.cfg.BatchSize)
	w.batchMu.Unlock()

	start := time.Now()

	conflicts, err := w.batchInsert(ctx, batch)
	if err != nil {
		metrics.ArchiveFlushErrors.Inc()
		w.logger.Error("batch insert failed", "error", err, "count", len(batch))
		w.batchMu.Lock()
		w.metrics.Errors++
		w.batchMu.Unlock()
		return err
	}

	inserted := len(batch) - conflicts
	metrics.ArchiveRows.Add(float64(inserted))
	metrics.ArchiveConflicts.Add(float64(conflicts))

	w.batchMu.Lock()
	w.metrics.Inserts += int64(inserted)
	w.metrics.Conflicts += int64(conflicts)
	w.metrics.Flushes++
	w.batchMu.Unlock()

	w.logger.Debug("flushed messages",
		"count", len(batch),
		"conflicts", conflicts,
		"duration", time.Since(start),
	)
	return nil
}

// batchInsert inserts rows using pgx.Batch with ON CONFLICT DO NOTHING.
func (w *MessageWriter) batchInsert(ctx context.Context, rows []messageRow) (conflicts int, err error) {
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(insertMessageSQL, r.ArchiveID, r.MessageID, r.SessionID, r.Author, r.Content, r.ReceivedAt)
	}

	results := w.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		ct, err := results.Exec()
		if err != nil {
			return 0, err
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}

	return conflicts, nil
}
