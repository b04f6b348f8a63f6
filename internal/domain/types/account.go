package types

import "time"

// AccountProfile is the locally saved login for one server.
type AccountProfile struct {
	ServerURL string `json:"server_url"`
	UserID    UserID `json:"user_id"`
	Email     string `json:"email"`
	FullName  string `json:"full_name"`
	Token     string `json:"token"`
}

// User is a server-side account record.
type User struct {
	ID            UserID    `json:"_id"`
	FullName      string    `json:"fullName"`
	Email         string    `json:"email"`
	ProfilePic    string    `json:"profilePic,omitempty"`
	PasswordHash  []byte    `json:"passwordHash,omitempty"`
	PublicKeyPEM  string    `json:"publicKey,omitempty"`
	PrivateKeyPEM string    `json:"privateKey,omitempty"`
	Pinned        []UserID  `json:"pinnedChats,omitempty"`
	Archived      []UserID  `json:"archivedChats,omitempty"`
	LastSeen      time.Time `json:"lastSeen"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Public returns the user without credentials or key material.
func (u User) Public() PublicUser {
	return PublicUser{
		ID:         u.ID,
		FullName:   u.FullName,
		Email:      u.Email,
		ProfilePic: u.ProfilePic,
		LastSeen:   u.LastSeen,
		CreatedAt:  u.CreatedAt,
	}
}

// PublicUser is the user shape returned to other clients.
type PublicUser struct {
	ID         UserID    `json:"_id"`
	FullName   string    `json:"fullName"`
	Email      string    `json:"email"`
	ProfilePic string    `json:"profilePic,omitempty"`
	LastSeen   time.Time `json:"lastSeen"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Signup is the body of an account creation request.
type Signup struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login is the body of a login request.
type Login struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Session is returned by signup and login.
type Session struct {
	User  PublicUser `json:"user"`
	Token string     `json:"token"`
}
