package storage

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

type AuditWriter struct {
	db   *DB
	ch   chan *Execution
	vch  chan *ViolationRecord
	wg   sync.WaitGroup
	done chan struct{}
}

func NewAuditWriter(db *DB, bufferSize int) *AuditWriter {
	if bufferSize < 1 {
		bufferSize = 10000
	}
	return &AuditWriter{
		db:   db,
		ch:   make(chan *Execution, bufferSize),
		vch:  make(chan *ViolationRecord, bufferSize),
		done: make(chan struct{}),
	}
}

func (w *AuditWriter) Start() {
	w.wg.Add(1)
	go w.processLoop()
}

func (w *AuditWriter) Log(exec *Execution) {
	select {
	case w.ch <- exec:
	default:
		log.Warn().Str("request_id", exec.RequestID).Msg("audit buffer full, dropping log entry")
	}
}

func (w *AuditWriter) LogViolation(v *ViolationRecord) {
	select {
	case w.vch <- v:
	default:
		log.Warn().Str("request_id", v.RequestID).Msg("violation buffer full, dropping record")
	}
}

func (w *AuditWriter) Flush(timeout time.Duration) {
	close(w.done)

	doneCh := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(doneCh)
	}()

	select {
	case <-doneCh:
		log.Info().Msg("audit writer flushed")
	case <-time.After(timeout):
		log.Warn().Msg("audit writer flush timed out")
	}
}

func (w *AuditWriter) processLoop() {
	defer w.wg.Done()

	for {
		select {
		case exec := <-w.ch:
			w.writeWithRetry(exec)
		case v := <-w.vch:
			w.writeViolationWithRetry(v)
		case <-w.done:
			// Drain remaining entries
			for {
				select {
				case exec := <-w.ch:
					w.writeWithRetry(exec)
				case v := <-w.vch:
					w.writeViolationWithRetry(v)
				default:
					return
				}
			}
		}
	}
}

func (w *AuditWriter) writeWithRetry(exec *Execution) {
	w.retry(exec.RequestID, func(ctx context.Context) error {
		return w.db.LogExecution(ctx, exec)
	})
}

func (w *AuditWriter) writeViolationWithRetry(v *ViolationRecord) {
	w.retry(v.RequestID, func(ctx context.Context) error {
		return w.db.LogViolation(ctx, v)
	})
}

func (w *AuditWriter) retry(requestID string, write func(context.Context) error) {
	const maxRetries = 3

	for attempt := 0; attempt <= maxRetries; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := write(ctx)
		cancel()

		if err == nil {
			return
		}

		if attempt < maxRetries {
			backoff := time.Duration(math.Pow(2, float64(attempt))) * 100 * time.Millisecond
			log.Warn().
				Err(err).
				Str("request_id", requestID).
				Int("attempt", attempt+1).
				Dur("backoff", backoff).
				Msg("audit write failed, retrying")
			time.Sleep(backoff)
		} else {
			log.Error().
				Err(err).
				Str("request_id", requestID).
				Msg("audit write failed permanently after retries")
		}
	}
}
