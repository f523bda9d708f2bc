package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"portal-chat/domain"
	apperrors "portal-chat/errors"
)

const (
	messageKeyPrefix = "msg:"
	sequenceKey      = "meta:last_sequence"
)

// MessageRepository persists the chat log in BadgerDB.
//
// Keys are formatted as "msg:{sequence_padded}" with 20-digit zero padding so
// Badger's lexicographic iteration order is the numeric sequence order. The
// highest assigned sequence lives under its own key and is written in the
// same transaction as each record: a failed commit can never advance the
// counter, which keeps sequences gapless.
type MessageRepository struct {
	db  *badger.DB
	log *slog.Logger

	mu      sync.Mutex
	lastSeq uint64
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) (*MessageRepository, error) {
	r := &MessageRepository{db: db, log: log}
	err := db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(sequenceKey))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			seq, err := strconv.ParseUint(string(val), 10, 64)
			if err != nil {
				return err
			}
			r.lastSeq = seq
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("load sequence counter: %w", err)
	}
	return r, nil
}

func messageKey(seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", messageKeyPrefix, seq))
}

// Append assigns the next sequence and the server clock, then persists the
// record and the counter atomically. The in-memory counter only advances
// after a successful commit, so a persistence failure leaves the store state
// unchanged and the caller gets the error.
func (r *MessageRepository) Append(sender, text string) (domain.Message, error) {
	sender = strings.TrimSpace(sender)
	text = strings.TrimSpace(text)
	if sender == "" {
		return domain.Message{}, apperrors.ErrEmptySender
	}
	if text == "" {
		return domain.Message{}, apperrors.ErrEmptyText
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	msg := domain.Message{
		ID:        uuid.New(),
		Sequence:  r.lastSeq + 1,
		Sender:    sender,
		Text:      text,
		Timestamp: time.Now().UTC(),
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return domain.Message{}, fmt.Errorf("encode message: %w", err)
	}

	err = r.db.Update(func(txn *badger.Txn) error {
		counter := []byte(strconv.FormatUint(msg.Sequence, 10))
		if err := txn.Set([]byte(sequenceKey), counter); err != nil {
			return err
		}
		return txn.Set(messageKey(msg.Sequence), payload)
	})
	if err != nil {
		return domain.Message{}, fmt.Errorf("persist message: %w", err)
	}

	r.lastSeq = msg.Sequence
	return msg, nil
}

// Query returns every message with sequence > fromSequence in ascending
// order. fromSequence 0 yields the full backlog.
func (r *MessageRepository) Query(fromSequence uint64) ([]domain.Message, error) {
	var messages []domain.Message
	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(messageKeyPrefix)
		for it.Seek(messageKey(fromSequence + 1)); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var msg domain.Message
				if err := json.Unmarshal(val, &msg); err != nil {
					return err
				}
				messages = append(messages, msg)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read messages: %w", err)
	}
	return messages, nil
}

// Purge deletes every message. The sequence counter is deliberately left in
// place: sequences assigned after a purge stay strictly above everything
// that came before, so a number is never reused.
func (r *MessageRepository) Purge() (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var keys [][]byte
	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(messageKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("scan messages: %w", err)
	}

	// A write batch splits the deletes over as many transactions as needed;
	// a single Update would hit the transaction size cap on a large backlog.
	// The mutex keeps appends out until the batch is flushed.
	wb := r.db.NewWriteBatch()
	defer wb.Cancel()
	for _, key := range keys {
		if err := wb.Delete(key); err != nil {
			return 0, fmt.Errorf("purge messages: %w", err)
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, fmt.Errorf("purge messages: %w", err)
	}
	r.log.Info(fmt.Sprintf("%d messages purged", len(keys)))
	return len(keys), nil
}

// LastSequence is the watermark source for backfill snapshots.
func (r *MessageRepository) LastSequence() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastSeq
}
