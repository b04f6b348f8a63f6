package types

import "time"

// UndecryptablePlaceholder is rendered in place of text that failed to decrypt.
const UndecryptablePlaceholder = "[Encrypted message - unable to decrypt]"

// EncryptedEnvelope is the wire form of an encrypted message body.
// All fields are standard base64.
type EncryptedEnvelope struct {
	Ciphertext        string `json:"ciphertext"`
	IV                string `json:"iv"`
	WrappedSessionKey string `json:"wrappedSessionKey,omitempty"`
}

// OutgoingEnvelope is the body a client posts when sending a message.
//
// Exactly one of Text and EncryptedText is set, according to IsEncrypted.
// Warning is set when encryption failed and the text goes out in the clear.
type OutgoingEnvelope struct {
	Text          string             `json:"text,omitempty"`
	EncryptedText *EncryptedEnvelope `json:"encryptedText,omitempty"`
	IsEncrypted   bool               `json:"isEncrypted"`
	Image         string             `json:"image,omitempty"`

	Warning error `json:"-"`
}

// Message is a persisted direct or group message.
type Message struct {
	ID            MessageID          `json:"_id"`
	SenderID      UserID             `json:"senderId"`
	ReceiverID    UserID             `json:"receiverId,omitempty"`
	GroupID       GroupID            `json:"groupId,omitempty"`
	Text          string             `json:"text,omitempty"`
	EncryptedText *EncryptedEnvelope `json:"encryptedText,omitempty"`
	IsEncrypted   bool               `json:"isEncrypted"`
	Image         string             `json:"image,omitempty"`
	Edited        bool               `json:"edited,omitempty"`
	Deleted       bool               `json:"deleted,omitempty"`
	CreatedAt     time.Time          `json:"createdAt"`
	UpdatedAt     time.Time          `json:"updatedAt"`
}

// IsGroup reports whether m was sent to a group.
func (m Message) IsGroup() bool { return m.GroupID != "" }

// Counterparty returns the other participant of a direct message as seen by self.
func (m Message) Counterparty(self UserID) UserID {
	if m.SenderID == self {
		return m.ReceiverID
	}
	return m.SenderID
}

// DisplayMessage is a message with its body resolved to plaintext for rendering.
type DisplayMessage struct {
	Message
	Body      string `json:"body"`
	Decrypted bool   `json:"decrypted"`
}

// DeletedMessage is the payload of a messageDeleted event.
type DeletedMessage struct {
	ID MessageID `json:"_id"`
}
