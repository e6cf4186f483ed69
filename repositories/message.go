//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"chat-relay/domain"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

const messagePrefix = "msg:"

type IMessageRepository interface {
	CreateMessage(ctx context.Context, sender, recipient, text string, createdAt time.Time) (domain.Message, error)
	GetConversation(userID, otherID string, cursor *string) ([]domain.Message, *string, error)
}

type MessageRepository struct {
	db            *badger.DB
	log           *slog.Logger
	limitMessages *int
}

func NewMessageRepository(db *badger.DB, log *slog.Logger, limitMessages *int) MessageRepository {
	return MessageRepository{db: db, log: log, limitMessages: limitMessages}
}

// CreateMessage persists a message in BadgerDB and returns it with its new id.
// The key is formatted as "msg:{len}:{low_id}:{len}:{high_id}:{timestamp_padded}:{uuid}" so that:
//  1. Both directions of a conversation share one prefix.
//  2. The length prefixes keep one pair's prefix from matching another
//     pair's keys, whatever the ids contain.
//  3. Messages sort chronologically thanks to the 19-digit zero padding.
//  4. The uuid separates two messages stored in the same nanosecond.
func (m MessageRepository) CreateMessage(ctx context.Context, sender, recipient, text string, createdAt time.Time) (domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return domain.Message{}, err
	}
	message := domain.Message{
		ID:        uuid.New(),
		Sender:    sender,
		Recipient: recipient,
		Text:      text,
		CreatedAt: createdAt.UTC(),
	}
	key := fmt.Sprintf("%s%019d:%s",
		conversationPrefix(sender, recipient),
		message.CreatedAt.UnixNano(),
		message.ID,
	)
	err := m.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), encodeMessage(message))
	})
	if err != nil {
		return domain.Message{}, err
	}
	return message, nil
}

// GetConversation returns the messages exchanged between two identities,
// oldest first. When limitMessages is reached the returned cursor points at
// the last message read; passing it back resumes right after it.
func (m MessageRepository) GetConversation(userID, otherID string, cursor *string) ([]domain.Message, *string, error) {
	var (
		messages []domain.Message
		next     *string
	)
	prefixStr := conversationPrefix(userID, otherID)
	prefix := []byte(prefixStr)

	err := m.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Prefix = prefix
		it := txn.NewIterator(options)
		defer it.Close()

		seekKey := prefix
		if cursor != nil {
			seekKey = append([]byte(prefixStr), []byte(*cursor)...)
		}
		it.Seek(seekKey)
		if cursor != nil && it.ValidForPrefix(prefix) && string(it.Item().Key()) == string(seekKey) {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if m.limitMessages != nil && len(messages) == *m.limitMessages {
				m.log.Debug(fmt.Sprintf("Maximum of %d messages reached", *m.limitMessages))
				last := lastCursor(messages)
				next = &last
				break
			}
			err := it.Item().Value(func(value []byte) error {
				message, err := decodeMessage(value)
				if err != nil {
					return err
				}
				if !belongsTo(message, userID, otherID) {
					m.log.Warn("Skipping message stored under another conversation",
						"key", string(it.Item().Key()), "sender", message.Sender, "recipient", message.Recipient)
					return nil
				}
				messages = append(messages, message)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return messages, next, nil
}

func conversationPrefix(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return fmt.Sprintf("%s%d:%s:%d:%s:", messagePrefix, len(a), a, len(b), b)
}

func belongsTo(message domain.Message, userID, otherID string) bool {
	return (message.Sender == userID && message.Recipient == otherID) ||
		(message.Sender == otherID && message.Recipient == userID)
}

func lastCursor(messages []domain.Message) string {
	last := messages[len(messages)-1]
	return fmt.Sprintf("%019d:%s", last.CreatedAt.UnixNano(), last.ID)
}

// ScanMessages walks every stored message in key order, across all
// conversations. Undecodable records are reported through fn's err argument
// and the walk goes on.
func ScanMessages(db *badger.DB, fn func(key string, message domain.Message, err error)) error {
	return db.View(func(txn *badger.Txn) error {
		prefix := []byte(messagePrefix)
		options := badger.DefaultIteratorOptions
		options.Prefix = prefix
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			key := string(item.Key())
			err := item.Value(func(value []byte) error {
				message, err := decodeMessage(value)
				fn(key, message, err)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}
