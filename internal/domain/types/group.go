package types

import (
	"slices"
	"time"
)

// Group is a named set of members sharing one conversation.
type Group struct {
	ID          GroupID   `json:"_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Admin       UserID    `json:"admin"`
	Members     []UserID  `json:"members"`
	CreatedAt   time.Time `json:"createdAt"`
}

// HasMember reports whether id belongs to g.
func (g Group) HasMember(id UserID) bool { return slices.Contains(g.Members, id) }

// NewGroup is the body of a group creation request.
type NewGroup struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Members     []UserID `json:"members"`
}

// MemberChange is the body of add-members and remove-members requests.
type MemberChange struct {
	Members []UserID `json:"members"`
}
