package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

var (
	// ErrIngestBusy indicates the pipeline queue is full.
	ErrIngestBusy = errors.New("ingestion busy")
	// ErrPipelineClosed indicates the pipeline no longer accepts input.
	ErrPipelineClosed = errors.New("pipeline closed")
)

const (
	flushTriggerSize     = "size"
	flushTriggerTimeout  = "timeout"
	flushTriggerShutdown = "shutdown"

	rejectBusy   = "busy"
	rejectClosed = "closed"
)

// PipelineStats is a point-in-time view of a pipeline's counters.
type PipelineStats struct {
	QueueLen  int
	QueueCap  int
	Accepted  int64
	Batches   int64
	Flushed   int64
	Failures  int64
	Forwarded int64
}

// gate serialises input against close so no send can race a closed channel.
// closing wakes blocked senders so close never waits on a full queue.
type gate[T any] struct {
	mu       sync.RWMutex
	closed   bool
	closing  chan struct{}
	once     sync.Once
	queue    chan T
	accepted atomic.Int64
}

func newGate[T any](capacity int) *gate[T] {
	return &gate[T]{queue: make(chan T, capacity), closing: make(chan struct{})}
}

func (g *gate[T]) send(ctx context.Context, item T, wait bool) error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.closed {
		return ErrPipelineClosed
	}
	if !wait {
		select {
		case g.queue <- item:
			g.accepted.Add(1)
			return nil
		default:
			return ErrIngestBusy
		}
	}
	select {
	case g.queue <- item:
		g.accepted.Add(1)
		return nil
	case <-g.closing:
		return ErrPipelineClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *gate[T]) close() {
	g.once.Do(func() {
		close(g.closing)
		g.mu.Lock()
		g.closed = true
		close(g.queue)
		g.mu.Unlock()
	})
}
