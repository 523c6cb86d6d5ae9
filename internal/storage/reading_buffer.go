package storage

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/agrisense/agrisense/internal/metrics"
)

// ReadingBuffer buffers sensor readings for batch insertion. It
// flushes on either batch size threshold or time interval, whichever
// comes first, and drops oldest entries when the buffer reaches max
// capacity.
type ReadingBuffer struct {
	repo          ReadingRepository
	batchSize     int
	flushInterval time.Duration
	maxSize       int

	mu       sync.Mutex
	buffer   []*ReadingRecord
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopped  atomic.Bool
	dropped  atomic.Int64
	flushed  atomic.Int64
	inserted atomic.Int64
}

// ReadingBufferConfig holds ReadingBuffer configuration.
type ReadingBufferConfig struct {
	// BatchSize is the number of readings that triggers a flush.
	BatchSize int

	// FlushInterval is the time interval that triggers a flush.
	FlushInterval time.Duration

	// MaxSize is the maximum buffer size. When reached, oldest
	// readings are dropped.
	MaxSize int
}

// NewReadingBuffer creates a new reading buffer and starts its flush loop.
func NewReadingBuffer(repo ReadingRepository, config *ReadingBufferConfig) *ReadingBuffer {
	if config.BatchSize == 0 {
		config.BatchSize = 500
	}
	if config.FlushInterval == 0 {
		config.FlushInterval = 5 * time.Second
	}
	if config.MaxSize == 0 {
		config.MaxSize = 50000
	}

	b := &ReadingBuffer{
		repo:          repo,
		batchSize:     config.BatchSize,
		flushInterval: config.FlushInterval,
		maxSize:       config.MaxSize,
		buffer:        make([]*ReadingRecord, 0, config.BatchSize),
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}

	go b.flushLoop()
	return b
}

// Add adds a single reading to the buffer.
func (b *ReadingBuffer) Add(rec *ReadingRecord) error {
	return b.AddBatch([]*ReadingRecord{rec})
}

// AddBatch adds multiple readings to the buffer.
func (b *ReadingBuffer) AddBatch(records []*ReadingRecord) error {
	if b.stopped.Load() {
		return nil
	}

	b.mu.Lock()

	newLen := len(b.buffer) + len(records)
	if newLen > b.maxSize {
		toDrop := newLen - b.maxSize
		if toDrop >= len(b.buffer) {
			b.drop(len(b.buffer))
			b.buffer = b.buffer[:0]
			keep := b.maxSize
			if keep > len(records) {
				keep = len(records)
			}
			drop := len(records) - keep
			b.drop(drop)
			records = records[drop:]
			log.Printf("warning: reading buffer overflow, dropped %d readings", toDrop)
		} else {
			b.drop(toDrop)
			b.buffer = b.buffer[toDrop:]
			log.Printf("warning: reading buffer overflow, dropped %d oldest readings", toDrop)
		}
	}

	b.buffer = append(b.buffer, records...)
	shouldFlush := len(b.buffer) >= b.batchSize
	metrics.BufferPending.Set(float64(len(b.buffer)))
	b.mu.Unlock()

	if shouldFlush {
		return b.Flush()
	}
	return nil
}

// Flush forces a flush of the current buffer.
func (b *ReadingBuffer) Flush() error {
	b.mu.Lock()
	if len(b.buffer) == 0 {
		b.mu.Unlock()
		return nil
	}

	toFlush := b.buffer
	b.buffer = make([]*ReadingRecord, 0, b.batchSize)
	b.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := b.repo.InsertBatch(ctx, toFlush); err != nil {
		metrics.BufferFlushErrors.Inc()
		// Put readings back so they are flushed next.
		b.mu.Lock()
		b.buffer = append(toFlush, b.buffer...)
		if len(b.buffer) > b.maxSize {
			excess := len(b.buffer) - b.maxSize
			b.drop(excess)
			b.buffer = b.buffer[excess:]
		}
		metrics.BufferPending.Set(float64(len(b.buffer)))
		b.mu.Unlock()
		return err
	}

	b.flushed.Add(1)
	b.inserted.Add(int64(len(toFlush)))
	metrics.BufferFlushesTotal.Inc()
	metrics.BufferInsertedTotal.Add(float64(len(toFlush)))
	return nil
}

// drop counts discarded readings. Lock must be held.
func (b *ReadingBuffer) drop(n int) {
	if n <= 0 {
		return
	}
	b.dropped.Add(int64(n))
	metrics.BufferDroppedTotal.Add(float64(n))
}

func (b *ReadingBuffer) flushLoop() {
	defer close(b.doneCh)
	ticker := time.NewTicker(b.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := b.Flush(); err != nil {
				log.Printf("reading buffer flush error: %v", err)
			}
		case <-b.stopCh:
			if err := b.Flush(); err != nil {
				log.Printf("reading buffer final flush error: %v", err)
			}
			return
		}
	}
}

// Close stops the buffer and flushes remaining readings.
func (b *ReadingBuffer) Close() error {
	if b.stopped.Swap(true) {
		return nil
	}
	close(b.stopCh)
	<-b.doneCh
	return nil
}

// Stats returns buffer statistics.
func (b *ReadingBuffer) Stats() ReadingBufferStats {
	b.mu.Lock()
	pending := len(b.buffer)
	b.mu.Unlock()

	return ReadingBufferStats{
		Pending:  pending,
		Dropped:  b.dropped.Load(),
		Flushed:  b.flushed.Load(),
		Inserted: b.inserted.Load(),
	}
}

// ReadingBufferStats contains buffer statistics.
type ReadingBufferStats struct {
	// Pending is the number of readings waiting to be flushed.
	Pending int

	// Dropped is the total number of readings dropped due to backpressure.
	Dropped int64

	// Flushed is the total number of flush operations.
	Flushed int64

	// Inserted is the total number of readings successfully inserted.
	Inserted int64
}
