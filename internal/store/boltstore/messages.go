package boltstore

import (
	"context"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"parley/internal/domain"
)

// SaveMessage stores m and appends it to its conversation.
func (s *Store) SaveMessage(_ context.Context, m domain.Message) (domain.Message, error) {
	if m.ID == "" {
		m.ID = domain.MessageID(uuid.NewString())
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = s.now()
		m.UpdatedAt = m.CreatedAt
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		msgs := tx.Bucket([]byte(messagesBucket))
		if msgs.Get([]byte(m.ID)) != nil {
			return domain.AlreadyExists("message id taken")
		}
		if err := putJSON(msgs, string(m.ID), m); err != nil {
			return err
		}
		thread, err := tx.Bucket([]byte(threadsBucket)).CreateBucketIfNotExists([]byte(threadKey(m)))
		if err != nil {
			return err
		}
		seq, err := thread.NextSequence()
		if err != nil {
			return err
		}
		return thread.Put(itob(seq), []byte(m.ID))
	})
	if err != nil {
		return domain.Message{}, wrap(err, "boltstore.SaveMessage")
	}
	return m, nil
}

// GetMessage returns the message with id, tombstones included.
func (s *Store) GetMessage(_ context.Context, id domain.MessageID) (domain.Message, error) {
	var m domain.Message
	err := s.db.View(func(tx *bolt.Tx) error {
		ok, err := getJSON(tx.Bucket([]byte(messagesBucket)), string(id), &m)
		if err != nil {
			return err
		}
		if !ok {
			return domain.NotFound("message not found")
		}
		return nil
	})
	return m, wrap(err, "boltstore.GetMessage")
}

// UpdateMessage overwrites an existing message in place.
func (s *Store) UpdateMessage(_ context.Context, m domain.Message) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		msgs := tx.Bucket([]byte(messagesBucket))
		if msgs.Get([]byte(m.ID)) == nil {
			return domain.NotFound("message not found")
		}
		return putJSON(msgs, string(m.ID), m)
	})
	return wrap(err, "boltstore.UpdateMessage")
}

// Conversation returns the live direct messages between a and b, oldest first.
func (s *Store) Conversation(_ context.Context, a, b domain.UserID) ([]domain.Message, error) {
	out, err := s.thread(directKey(a, b))
	return out, wrap(err, "boltstore.Conversation")
}

// GroupConversation returns the live messages of group id, oldest first.
func (s *Store) GroupConversation(_ context.Context, id domain.GroupID) ([]domain.Message, error) {
	out, err := s.thread(groupKey(id))
	return out, wrap(err, "boltstore.GroupConversation")
}

func (s *Store) thread(key string) ([]domain.Message, error) {
	out := []domain.Message{}
	err := s.db.View(func(tx *bolt.Tx) error {
		thread := tx.Bucket([]byte(threadsBucket)).Bucket([]byte(key))
		if thread == nil {
			return nil
		}
		msgs := tx.Bucket([]byte(messagesBucket))
		c := thread.Cursor()
		for k, id := c.First(); k != nil; k, id = c.Next() {
			var m domain.Message
			ok, err := getJSON(msgs, string(id), &m)
			if err != nil {
				return err
			}
			if ok && !m.Deleted {
				out = append(out, m)
			}
		}
		return nil
	})
	return out, err
}

func threadKey(m domain.Message) string {
	if m.IsGroup() {
		return groupKey(m.GroupID)
	}
	return directKey(m.SenderID, m.ReceiverID)
}

func directKey(a, b domain.UserID) string {
	if b < a {
		a, b = b, a
	}
	return "dm\x00" + string(a) + "\x00" + string(b)
}

func groupKey(id domain.GroupID) string { return "group\x00" + string(id) }
