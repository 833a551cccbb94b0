// -----------------------------------------------------------------------
// Worker pool - pulls task messages off the queue, dispatches them to the
// registered executors, and advances each document's task chain
// -----------------------------------------------------------------------

package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/lectio/internal/models"
	"github.com/ternarybob/lectio/internal/queue"
	"github.com/ternarybob/lectio/internal/storage/badger"
)

// Executor runs one task kind against a document and returns the output
// document.
type Executor interface {
	Execute(ctx context.Context, doc models.DocumentRef, args map[string]string) (models.DocumentRef, error)
}

// Pool manages a set of workers processing task messages. Each document
// moves through its batch's stages as a chain: completing one task
// enqueues the next against the task's output.
type Pool struct {
	queueMgr     *queue.Manager
	batches      *badger.BatchStorage
	executors    map[string]Executor
	logger       arbor.ILogger
	numWorkers   int
	pollInterval time.Duration
	wg           sync.WaitGroup
	ctx          context.Context
	cancel       context.CancelFunc
}

// NewPool creates a worker pool.
func NewPool(queueMgr *queue.Manager, batches *badger.BatchStorage, logger arbor.ILogger, numWorkers int, pollInterval time.Duration) *Pool {
	ctx, cancel := context.WithCancel(context.Background())

	if numWorkers < 1 {
		numWorkers = 1
	}
	if pollInterval <= 0 {
		pollInterval = 250 * time.Millisecond
	}
	return &Pool{
		queueMgr:     queueMgr,
		batches:      batches,
		executors:    make(map[string]Executor),
		logger:       logger,
		numWorkers:   numWorkers,
		pollInterval: pollInterval,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// RegisterExecutor registers an executor for a task kind.
func (p *Pool) RegisterExecutor(kind string, executor Executor) {
	p.executors[kind] = executor
	p.logger.Info().
		Str("task_kind", kind).
		Msg("Executor registered")
}

// Start starts the worker pool.
func (p *Pool) Start() {
	p.logger.Info().
		Int("num_workers", p.numWorkers).
		Msg("Starting worker pool")

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop stops the worker pool gracefully.
func (p *Pool) Stop() {
	p.logger.Info().Msg("Stopping worker pool...")
	p.cancel()
	p.wg.Wait()
	p.logger.Info().Msg("Worker pool stopped")
}

// worker is the main worker loop.
func (p *Pool) worker(workerID int) {
	defer p.wg.Done()

	p.logger.Debug().
		Int("worker_id", workerID).
		Msg("Worker started")

	for {
		select {
		case <-p.ctx.Done():
			p.logger.Debug().
				Int("worker_id", workerID).
				Msg("Worker stopping")
			return
		default:
			p.processNextTask(workerID)
		}
	}
}

// processNextTask processes the next task message from the queue.
func (p *Pool) processNextTask(workerID int) {
	msg, rcpt, err := p.queueMgr.Receive(p.ctx)
	if err != nil {
		// Queue empty or context cancelled
		select {
		case <-p.ctx.Done():
		case <-time.After(p.pollInterval):
		}
		return
	}

	p.logger.Info().
		Int("worker_id", workerID).
		Str("batch_id", msg.BatchID).
		Str("task_kind", msg.Task.Kind).
		Str("document", msg.Document.String()).
		Msg("Processing task")

	executor, ok := p.executors[msg.Task.Kind]
	if !ok {
		p.recordFailure(msg, fmt.Sprintf("no executor registered for task kind %s", msg.Task.Kind))
		p.deleteMessage(msg, rcpt)
		return
	}

	// OCR runs can outlast the visibility timeout; heartbeat extensions
	// keep the in-flight message from being redelivered.
	stopHeartbeat := p.startHeartbeat(msg, rcpt)
	output, err := executor.Execute(p.ctx, msg.Document, msg.Task.Args)
	stopHeartbeat()

	if err != nil {
		p.logger.Error().
			Err(err).
			Str("batch_id", msg.BatchID).
			Str("task_kind", msg.Task.Kind).
			Str("document", msg.Document.String()).
			Msg("Task failed")
		p.recordFailure(msg, err.Error())
		p.deleteMessage(msg, rcpt)
		return
	}

	p.recordSuccess(msg, output)
	p.deleteMessage(msg, rcpt)
}

// startHeartbeat extends the message's visibility at half the timeout
// until the returned stop function is called.
func (p *Pool) startHeartbeat(msg *models.QueueMessage, rcpt *queue.Receipt) func() {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(p.queueMgr.VisibilityTimeout() / 2)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-p.ctx.Done():
				return
			case <-ticker.C:
				if err := rcpt.Extend(); err != nil {
					p.logger.Warn().
						Err(err).
						Str("batch_id", msg.BatchID).
						Msg("Failed to extend message visibility")
				}
			}
		}
	}()
	return func() { close(done) }
}

// recordSuccess advances the document's chain: the next task of the stage
// runs on the output, then the first task of the next stage, until the
// chain ends and the output joins the batch results.
func (p *Pool) recordSuccess(msg *models.QueueMessage, output models.DocumentRef) {
	var next *models.QueueMessage

	_, err := p.batches.UpdateBatch(p.ctx, msg.BatchID, func(b *models.Batch) error {
		if msg.Stage >= len(b.Stages) {
			return fmt.Errorf("message references stage %d of %d", msg.Stage, len(b.Stages))
		}
		b.Progress[msg.Stage].Completed++

		stage, taskIdx := msg.Stage, msg.TaskIndex+1
		if taskIdx >= len(b.Stages[stage]) {
			stage, taskIdx = stage+1, 0
		}
		if stage < len(b.Stages) {
			next = &models.QueueMessage{
				BatchID:   b.ID,
				Stage:     stage,
				TaskIndex: taskIdx,
				Task:      b.Stages[stage][taskIdx],
				Document:  output,
			}
			return nil
		}

		b.MarkDocDone(&output)
		if b.AllDocsDone() {
			b.MarkCompleted()
			p.logger.Info().
				Str("batch_id", b.ID).
				Str("status", string(b.Status)).
				Msg("Batch finished")
		}
		return nil
	})
	if err != nil {
		p.logger.Error().
			Err(err).
			Str("batch_id", msg.BatchID).
			Msg("Failed to record task completion")
		return
	}

	if next != nil {
		if err := p.queueMgr.Enqueue(p.ctx, *next); err != nil {
			p.logger.Error().
				Err(err).
				Str("batch_id", msg.BatchID).
				Str("task_kind", next.Task.Kind).
				Msg("Failed to enqueue next task")
		}
	}
}

// recordFailure terminates the document's chain and records the error
// against the batch.
func (p *Pool) recordFailure(msg *models.QueueMessage, message string) {
	_, err := p.batches.UpdateBatch(p.ctx, msg.BatchID, func(b *models.Batch) error {
		if msg.Stage < len(b.Progress) {
			b.Progress[msg.Stage].Failed++
		}
		b.AppendError(msg.Task, msg.Document, message)
		b.MarkDocDone(nil)
		if b.AllDocsDone() {
			b.MarkCompleted()
			p.logger.Warn().
				Str("batch_id", b.ID).
				Str("status", string(b.Status)).
				Msg("Batch finished with errors")
		}
		return nil
	})
	if err != nil {
		p.logger.Error().
			Err(err).
			Str("batch_id", msg.BatchID).
			Msg("Failed to record task failure")
	}
}

func (p *Pool) deleteMessage(msg *models.QueueMessage, rcpt *queue.Receipt) {
	if err := rcpt.Delete(); err != nil {
		p.logger.Error().
			Err(err).
			Str("batch_id", msg.BatchID).
			Msg("Failed to delete message from queue")
	}
}
