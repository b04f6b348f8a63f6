package boltstore

import (
	"context"
	"encoding/json"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"parley/internal/domain"
)

// CreateUser inserts u. Emails are unique, case-insensitively.
func (s *Store) CreateUser(_ context.Context, u domain.User) (domain.User, error) {
	u.Email = normalizeEmail(u.Email)
	if u.Email == "" {
		return domain.User{}, domain.InvalidArg("email is required")
	}
	if u.ID == "" {
		u.ID = domain.UserID(uuid.NewString())
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.now()
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		emails := tx.Bucket([]byte(emailsBucket))
		if emails.Get([]byte(u.Email)) != nil {
			return domain.AlreadyExists("email already registered")
		}
		users := tx.Bucket([]byte(usersBucket))
		if users.Get([]byte(u.ID)) != nil {
			return domain.AlreadyExists("user id taken")
		}
		if err := emails.Put([]byte(u.Email), []byte(u.ID)); err != nil {
			return err
		}
		return putJSON(users, string(u.ID), u)
	})
	if err != nil {
		return domain.User{}, wrap(err, "boltstore.CreateUser")
	}
	return u, nil
}

// GetUser returns the user with id.
func (s *Store) GetUser(_ context.Context, id domain.UserID) (domain.User, error) {
	var u domain.User
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		u, err = loadUser(tx, id)
		return err
	})
	return u, wrap(err, "boltstore.GetUser")
}

// GetUserByEmail returns the user registered with email.
func (s *Store) GetUserByEmail(_ context.Context, email string) (domain.User, error) {
	var u domain.User
	err := s.db.View(func(tx *bolt.Tx) error {
		id := tx.Bucket([]byte(emailsBucket)).Get([]byte(normalizeEmail(email)))
		if id == nil {
			return domain.NotFound("user not found")
		}
		var err error
		u, err = loadUser(tx, domain.UserID(id))
		return err
	})
	return u, wrap(err, "boltstore.GetUserByEmail")
}

// ListUsers returns every user except the given one, ordered by name.
func (s *Store) ListUsers(_ context.Context, except domain.UserID) ([]domain.User, error) {
	var out []domain.User
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(usersBucket)).ForEach(func(k, v []byte) error {
			if domain.UserID(k) == except {
				return nil
			}
			var u domain.User
			if err := json.Unmarshal(v, &u); err != nil {
				return err
			}
			out = append(out, u)
			return nil
		})
	})
	if err != nil {
		return nil, wrap(err, "boltstore.ListUsers")
	}
	slices.SortFunc(out, func(a, b domain.User) int {
		if c := strings.Compare(strings.ToLower(a.FullName), strings.ToLower(b.FullName)); c != 0 {
			return c
		}
		return strings.Compare(string(a.ID), string(b.ID))
	})
	return out, nil
}

// SetLastSeen records when id went offline.
func (s *Store) SetLastSeen(_ context.Context, id domain.UserID, at time.Time) error {
	return wrap(s.updateUser(id, func(u *domain.User) error {
		u.LastSeen = at
		return nil
	}), "boltstore.SetLastSeen")
}

// SetPinned pins or unpins peer in id's chat list. Pinning twice fails.
func (s *Store) SetPinned(_ context.Context, id, peer domain.UserID, pinned bool) (domain.User, error) {
	return s.toggle(id, peer, pinned, "pinned", func(u *domain.User) *[]domain.UserID { return &u.Pinned })
}

// SetArchived archives or unarchives peer in id's chat list. Archiving twice fails.
func (s *Store) SetArchived(_ context.Context, id, peer domain.UserID, archived bool) (domain.User, error) {
	return s.toggle(id, peer, archived, "archived", func(u *domain.User) *[]domain.UserID { return &u.Archived })
}

func (s *Store) toggle(
	id, peer domain.UserID,
	on bool,
	what string,
	field func(*domain.User) *[]domain.UserID,
) (domain.User, error) {
	var out domain.User
	err := s.db.Update(func(tx *bolt.Tx) error {
		if _, err := loadUser(tx, peer); err != nil {
			return err
		}
		u, err := loadUser(tx, id)
		if err != nil {
			return err
		}
		list := field(&u)
		has := slices.Contains(*list, peer)
		switch {
		case on && has:
			return domain.InvalidArg("chat already " + what)
		case on:
			*list = append(*list, peer)
		case has:
			*list = slices.DeleteFunc(*list, func(x domain.UserID) bool { return x == peer })
		}
		out = u
		return putJSON(tx.Bucket([]byte(usersBucket)), string(u.ID), u)
	})
	if err != nil {
		return domain.User{}, wrap(err, "boltstore.toggle."+what)
	}
	return out, nil
}

func (s *Store) updateUser(id domain.UserID, fn func(*domain.User) error) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		u, err := loadUser(tx, id)
		if err != nil {
			return err
		}
		if err := fn(&u); err != nil {
			return err
		}
		return putJSON(tx.Bucket([]byte(usersBucket)), string(u.ID), u)
	})
}

func loadUser(tx *bolt.Tx, id domain.UserID) (domain.User, error) {
	var u domain.User
	ok, err := getJSON(tx.Bucket([]byte(usersBucket)), string(id), &u)
	if err != nil {
		return domain.User{}, err
	}
	if !ok {
		return domain.User{}, domain.NotFound("user not found")
	}
	return u, nil
}

func normalizeEmail(e string) string { return strings.ToLower(strings.TrimSpace(e)) }
