// -----------------------------------------------------------------------
// Task queue - persistent Badger-backed queue with visibility timeouts.
// A task message that is received but never deleted becomes visible again
// after the timeout; one that exhausts its receives moves to the dead
// letter prefix instead of poisoning the workers.
// -----------------------------------------------------------------------

package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/ternarybob/lectio/internal/models"
)

// Envelope wraps a task message with queue bookkeeping.
type Envelope struct {
	ID           string              `json:"id"`
	Body         models.QueueMessage `json:"body"`
	EnqueuedAt   time.Time           `json:"enqueued_at"`
	VisibleAt    time.Time           `json:"visible_at"`
	ReceiveCount int                 `json:"receive_count"`
}

// Manager implements a persistent queue on a Badger database.
type Manager struct {
	db                *badger.DB
	queueName         string
	visibilityTimeout time.Duration
	maxReceive        int
}

// NewManager creates a new Badger-backed queue manager
func NewManager(db *badger.DB, queueName string, visibilityTimeout time.Duration, maxReceive int) (*Manager, error) {
	if db == nil {
		return nil, errors.New("badger db is required")
	}
	if queueName == "" {
		return nil, errors.New("queue name is required")
	}
	if visibilityTimeout <= 0 {
		visibilityTimeout = 10 * time.Minute
	}
	if maxReceive <= 0 {
		maxReceive = 3
	}

	return &Manager{
		db:                db,
		queueName:         queueName,
		visibilityTimeout: visibilityTimeout,
		maxReceive:        maxReceive,
	}, nil
}

// Enqueue adds a task message to the queue
func (m *Manager) Enqueue(ctx context.Context, msg models.QueueMessage) error {
	id := uuid.New().String()

	env := Envelope{
		ID:         id,
		Body:       msg,
		EnqueuedAt: time.Now(),
		VisibleAt:  time.Now(), // Immediately visible
	}

	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal queue envelope: %w", err)
	}

	// Message data lives at queue:{name}:msg:{id}; a visibility index at
	// queue:{name}:index:{visibleAt}:{id} keeps ready messages scannable in
	// timestamp order.
	return m.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(m.msgKey(id), data); err != nil {
			return err
		}
		return txn.Set(m.indexKey(env.VisibleAt, id), []byte{})
	})
}

// Receipt controls an in-flight message: Delete acknowledges it once
// processing succeeds, Extend pushes its visibility deadline out by
// another visibility timeout for long-running tasks.
type Receipt struct {
	Delete func() error
	Extend func() error
}

// Receive pulls the next visible task from the queue. It returns the
// message and its receipt; a message that is never deleted reappears
// after the visibility timeout.
func (m *Manager) Receive(ctx context.Context) (*models.QueueMessage, *Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	var env Envelope
	var msgID string
	var oldIndexKey []byte

	err := m.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		prefix := []byte(fmt.Sprintf("queue:%s:index:", m.queueName))
		it := txn.NewIterator(opts)
		defer it.Close()

		now := time.Now()
		found := false

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().KeyCopy(nil)

			ts, id, err := m.parseIndexKey(key)
			if err != nil {
				continue
			}

			// Keys sort by timestamp, so the first future entry ends the scan.
			if ts.After(now) {
				break
			}

			itemMsg, err := txn.Get(m.msgKey(id))
			if err != nil {
				if err == badger.ErrKeyNotFound {
					// Index without data, clean up and keep scanning
					if err := txn.Delete(key); err != nil {
						return err
					}
					continue
				}
				return err
			}

			if err := itemMsg.Value(func(val []byte) error {
				return json.Unmarshal(val, &env)
			}); err != nil {
				return err
			}

			if env.ReceiveCount >= m.maxReceive {
				// Exhausted its receives, move to the dead letter prefix
				data, err := json.Marshal(env)
				if err != nil {
					return err
				}
				if err := txn.Set(m.deadKey(id), data); err != nil {
					return err
				}
				if err := txn.Delete(key); err != nil {
					return err
				}
				if err := txn.Delete(m.msgKey(id)); err != nil {
					return err
				}
				continue
			}

			found = true
			msgID = id
			oldIndexKey = key
			break
		}

		if !found {
			return models.ErrNoMessage
		}

		// Claim: bump receive count and push visibility out
		env.ReceiveCount++
		env.VisibleAt = time.Now().Add(m.visibilityTimeout)

		newData, err := json.Marshal(env)
		if err != nil {
			return err
		}
		if err := txn.Set(m.msgKey(msgID), newData); err != nil {
			return err
		}
		if err := txn.Delete(oldIndexKey); err != nil {
			return err
		}
		return txn.Set(m.indexKey(env.VisibleAt, msgID), []byte{})
	})

	if err != nil {
		return nil, nil, err
	}

	deleteFn := func() error {
		return m.db.Update(func(txn *badger.Txn) error {
			item, err := txn.Get(m.msgKey(msgID))
			if err != nil {
				if err == badger.ErrKeyNotFound {
					return nil // Already deleted
				}
				return err
			}

			var current Envelope
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &current)
			}); err != nil {
				return err
			}

			if err := txn.Delete(m.indexKey(current.VisibleAt, msgID)); err != nil && err != badger.ErrKeyNotFound {
				return err
			}
			return txn.Delete(m.msgKey(msgID))
		})
	}

	extendFn := func() error {
		return m.db.Update(func(txn *badger.Txn) error {
			item, err := txn.Get(m.msgKey(msgID))
			if err != nil {
				if err == badger.ErrKeyNotFound {
					return nil // Already deleted or dead-lettered
				}
				return err
			}

			var current Envelope
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &current)
			}); err != nil {
				return err
			}

			if err := txn.Delete(m.indexKey(current.VisibleAt, msgID)); err != nil && err != badger.ErrKeyNotFound {
				return err
			}

			current.VisibleAt = time.Now().Add(m.visibilityTimeout)
			data, err := json.Marshal(current)
			if err != nil {
				return err
			}
			if err := txn.Set(m.msgKey(msgID), data); err != nil {
				return err
			}
			return txn.Set(m.indexKey(current.VisibleAt, msgID), []byte{})
		})
	}

	return &env.Body, &Receipt{Delete: deleteFn, Extend: extendFn}, nil
}

// VisibilityTimeout returns the queue's redelivery timeout.
func (m *Manager) VisibilityTimeout() time.Duration {
	return m.visibilityTimeout
}

// DeadLetters returns the envelopes that exhausted their receives.
func (m *Manager) DeadLetters(ctx context.Context) ([]Envelope, error) {
	var dead []Envelope
	err := m.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		prefix := []byte(fmt.Sprintf("queue:%s:dead:", m.queueName))
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var env Envelope
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &env)
			}); err != nil {
				return err
			}
			dead = append(dead, env)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list dead letters: %w", err)
	}
	return dead, nil
}

// Len returns the number of queued (non-dead) messages.
func (m *Manager) Len(ctx context.Context) (int, error) {
	count := 0
	err := m.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		prefix := []byte(fmt.Sprintf("queue:%s:msg:", m.queueName))
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Helpers

func (m *Manager) msgKey(id string) []byte {
	return []byte(fmt.Sprintf("queue:%s:msg:%s", m.queueName, id))
}

func (m *Manager) deadKey(id string) []byte {
	return []byte(fmt.Sprintf("queue:%s:dead:%s", m.queueName, id))
}

func (m *Manager) indexKey(visibleAt time.Time, id string) []byte {
	ts := visibleAt.UnixNano()
	// Zero pad to 20 digits so string ordering matches numeric ordering
	return []byte(fmt.Sprintf("queue:%s:index:%020d:%s", m.queueName, ts, id))
}

func (m *Manager) parseIndexKey(key []byte) (time.Time, string, error) {
	prefixStr := fmt.Sprintf("queue:%s:index:", m.queueName)
	if len(key) <= len(prefixStr) {
		return time.Time{}, "", fmt.Errorf("invalid key length")
	}

	suffix := string(key[len(prefixStr):])
	// Suffix is "{20-digit-ts}:{id}"
	if len(suffix) < 21 {
		return time.Time{}, "", fmt.Errorf("invalid suffix length")
	}

	tsStr := suffix[:20]
	id := suffix[21:]

	var ts int64
	if _, err := fmt.Sscanf(tsStr, "%d", &ts); err != nil {
		return time.Time{}, "", err
	}

	return time.Unix(0, ts), id, nil
}
