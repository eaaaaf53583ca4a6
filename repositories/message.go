//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	"talkify/domain"
)

// IMessageRepository is the durable message store boundary. Writes
// are idempotent: the key is derived from caller-assigned fields, so
// storing the same message twice overwrites identical bytes.
type IMessageRepository interface {
	StoreMessage(message domain.Message) error
	GetRecent(roomID string, limit int) ([]domain.Message, error)
}

type MessageRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) MessageRepository {
	return MessageRepository{db: db, log: log}
}

// StoreMessage persists a message in BadgerDB.
// The key is formatted as "msg:{room_id}:{timestamp_padded}:{uuid}" to:
//  1. Ensure chronological sorting using 19-digit zero padding (lexicographical order).
//  2. Prevent data loss by using the message id as a collision disconnector
//     if two messages arrive at the same nanosecond.
func (m MessageRepository) StoreMessage(message domain.Message) error {
	key := messageKey(message)
	bytes, err := json.Marshal(message)
	if err != nil {
		return err
	}
	return m.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), bytes)
	})
}

// GetRecent retrieves the most recent messages of a room using a
// reverse prefix scan, newest first. Thanks to the padded timestamp in
// the key, no post-sort is needed. A room with no messages yields an
// empty result, not an error.
func (m MessageRepository) GetRecent(roomID string, limit int) ([]domain.Message, error) {
	var raw [][]byte
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := []byte(fmt.Sprintf("msg:%s:", roomID))
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		// Seek past the newest possible key of the prefix, then
		// walk backwards.
		seekKey := append(append([]byte{}, prefix...), []byte("9999999999999999999")...)
		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(raw) == limit {
				break
			}
			err := it.Item().Value(func(value []byte) error {
				raw = append(raw, append([]byte{}, value...))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var messages []domain.Message
	for _, b := range raw {
		var message domain.Message
		if err = json.Unmarshal(b, &message); err != nil {
			// A corrupt record must not hide the rest of the
			// history.
			m.log.Error("Skipping unreadable stored message", "error", err)
			continue
		}
		messages = append(messages, message)
	}
	return messages, nil
}

func messageKey(message domain.Message) string {
	return fmt.Sprintf("msg:%s:%019d:%s",
		message.RoomID,
		message.CreatedAt.UnixNano(),
		message.ID,
	)
}
