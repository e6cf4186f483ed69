package repositories

import (
	"chat-relay/domain"
	"fmt"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers of the stored records. They are part of the on-disk format
// and must never be renumbered.
const (
	messageFieldID        protowire.Number = 1
	messageFieldSender    protowire.Number = 2
	messageFieldRecipient protowire.Number = 3
	messageFieldText      protowire.Number = 4
	messageFieldCreatedAt protowire.Number = 5

	userFieldID           protowire.Number = 1
	userFieldUsername     protowire.Number = 2
	userFieldPasswordHash protowire.Number = 3
	userFieldCreatedAt    protowire.Number = 4
)

func encodeMessage(m domain.Message) []byte {
	var b []byte
	b = appendString(b, messageFieldID, m.ID.String())
	b = appendString(b, messageFieldSender, m.Sender)
	b = appendString(b, messageFieldRecipient, m.Recipient)
	b = appendString(b, messageFieldText, m.Text)
	b = protowire.AppendTag(b, messageFieldCreatedAt, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.CreatedAt.UnixNano()))
	return b
}

func decodeMessage(b []byte) (domain.Message, error) {
	var (
		m  domain.Message
		id string
	)
	err := consumeFields(b, func(num protowire.Number, s string, v uint64) {
		switch num {
		case messageFieldID:
			id = s
		case messageFieldSender:
			m.Sender = s
		case messageFieldRecipient:
			m.Recipient = s
		case messageFieldText:
			m.Text = s
		case messageFieldCreatedAt:
			m.CreatedAt = time.Unix(0, int64(v)).UTC()
		}
	})
	if err != nil {
		return domain.Message{}, err
	}
	if m.ID, err = uuid.Parse(id); err != nil {
		return domain.Message{}, fmt.Errorf("message id: %w", err)
	}
	return m, nil
}

func encodeUser(u domain.User) []byte {
	var b []byte
	b = appendString(b, userFieldID, u.ID)
	b = appendString(b, userFieldUsername, u.Username)
	b = appendString(b, userFieldPasswordHash, u.PasswordHash)
	b = protowire.AppendTag(b, userFieldCreatedAt, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(u.CreatedAt.Unix()))
	return b
}

func decodeUser(b []byte) (domain.User, error) {
	var u domain.User
	err := consumeFields(b, func(num protowire.Number, s string, v uint64) {
		switch num {
		case userFieldID:
			u.ID = s
		case userFieldUsername:
			u.Username = s
		case userFieldPasswordHash:
			u.PasswordHash = s
		case userFieldCreatedAt:
			u.CreatedAt = time.Unix(int64(v), 0).UTC()
		}
	})
	return u, err
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

// consumeFields walks a flat record of string and varint fields.
// Unknown fields are skipped so older binaries can read newer records.
func consumeFields(b []byte, field func(num protowire.Number, s string, v uint64)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		switch typ {
		case protowire.BytesType:
			s, n := protowire.ConsumeString(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			field(num, s, 0)
			b = b[n:]
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			field(num, "", v)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	return nil
}
