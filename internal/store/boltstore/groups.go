package boltstore

import (
	"context"
	"slices"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"parley/internal/domain"
)

// CreateGroup stores g. The admin is always a member and every member must exist.
func (s *Store) CreateGroup(_ context.Context, g domain.Group) (domain.Group, error) {
	if g.Name == "" {
		return domain.Group{}, domain.InvalidArg("group name is required")
	}
	if g.Admin == "" {
		return domain.Group{}, domain.InvalidArg("group admin is required")
	}
	if g.ID == "" {
		g.ID = domain.GroupID(uuid.NewString())
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = s.now()
	}
	g.Members = dedupe(append([]domain.UserID{g.Admin}, g.Members...))

	err := s.db.Update(func(tx *bolt.Tx) error {
		for _, m := range g.Members {
			if _, err := loadUser(tx, m); err != nil {
				return err
			}
		}
		if err := putJSON(tx.Bucket([]byte(groupsBucket)), string(g.ID), g); err != nil {
			return err
		}
		return setMemberships(tx, g.ID, g.Members, true)
	})
	if err != nil {
		return domain.Group{}, wrap(err, "boltstore.CreateGroup")
	}
	return g, nil
}

// GetGroup returns the group with id.
func (s *Store) GetGroup(_ context.Context, id domain.GroupID) (domain.Group, error) {
	var g domain.Group
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		g, err = loadGroup(tx, id)
		return err
	})
	return g, wrap(err, "boltstore.GetGroup")
}

// AddMembers adds members to group id, ignoring those already present.
func (s *Store) AddMembers(_ context.Context, id domain.GroupID, members []domain.UserID) (domain.Group, error) {
	var out domain.Group
	err := s.db.Update(func(tx *bolt.Tx) error {
		g, err := loadGroup(tx, id)
		if err != nil {
			return err
		}
		for _, m := range members {
			if _, err := loadUser(tx, m); err != nil {
				return err
			}
		}
		g.Members = dedupe(append(g.Members, members...))
		if err := putJSON(tx.Bucket([]byte(groupsBucket)), string(g.ID), g); err != nil {
			return err
		}
		out = g
		return setMemberships(tx, g.ID, members, true)
	})
	if err != nil {
		return domain.Group{}, wrap(err, "boltstore.AddMembers")
	}
	return out, nil
}

// RemoveMembers drops members from group id. If the admin leaves, the
// longest-standing remaining member takes over; an empty group is deleted.
func (s *Store) RemoveMembers(_ context.Context, id domain.GroupID, members []domain.UserID) (domain.Group, error) {
	var out domain.Group
	err := s.db.Update(func(tx *bolt.Tx) error {
		g, err := loadGroup(tx, id)
		if err != nil {
			return err
		}
		g.Members = slices.DeleteFunc(g.Members, func(m domain.UserID) bool {
			return slices.Contains(members, m)
		})
		if err := setMemberships(tx, g.ID, members, false); err != nil {
			return err
		}
		groups := tx.Bucket([]byte(groupsBucket))
		if len(g.Members) == 0 {
			out = g
			return groups.Delete([]byte(g.ID))
		}
		if !g.HasMember(g.Admin) {
			g.Admin = g.Members[0]
		}
		out = g
		return putJSON(groups, string(g.ID), g)
	})
	if err != nil {
		return domain.Group{}, wrap(err, "boltstore.RemoveMembers")
	}
	return out, nil
}

// GroupsFor returns the groups member belongs to, oldest first.
func (s *Store) GroupsFor(_ context.Context, member domain.UserID) ([]domain.Group, error) {
	out := []domain.Group{}
	err := s.db.View(func(tx *bolt.Tx) error {
		mine := tx.Bucket([]byte(membershipsBucket)).Bucket([]byte(member))
		if mine == nil {
			return nil
		}
		return mine.ForEach(func(k, _ []byte) error {
			g, err := loadGroup(tx, domain.GroupID(k))
			if err != nil {
				return err
			}
			out = append(out, g)
			return nil
		})
	})
	if err != nil {
		return nil, wrap(err, "boltstore.GroupsFor")
	}
	slices.SortFunc(out, func(a, b domain.Group) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out, nil
}

func loadGroup(tx *bolt.Tx, id domain.GroupID) (domain.Group, error) {
	var g domain.Group
	ok, err := getJSON(tx.Bucket([]byte(groupsBucket)), string(id), &g)
	if err != nil {
		return domain.Group{}, err
	}
	if !ok {
		return domain.Group{}, domain.NotFound("group not found")
	}
	return g, nil
}

func setMemberships(tx *bolt.Tx, id domain.GroupID, members []domain.UserID, in bool) error {
	root := tx.Bucket([]byte(membershipsBucket))
	for _, m := range members {
		bkt, err := root.CreateBucketIfNotExists([]byte(m))
		if err != nil {
			return err
		}
		if in {
			err = bkt.Put([]byte(id), []byte{})
		} else {
			err = bkt.Delete([]byte(id))
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func dedupe(ids []domain.UserID) []domain.UserID {
	seen := make(map[domain.UserID]struct{}, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
