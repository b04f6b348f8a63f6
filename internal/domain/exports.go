package domain

import (
	interfaces "parley/internal/domain/interfaces"
	types "parley/internal/domain/types"
)

// Type aliases expose domain types from the types subpackage for compact imports.
type (
	UserID            = types.UserID
	ConnectionID      = types.ConnectionID
	MessageID         = types.MessageID
	GroupID           = types.GroupID
	Fingerprint       = types.Fingerprint
	SymmetricKey      = types.SymmetricKey
	Identity          = types.Identity
	SessionKey        = types.SessionKey
	EncryptedEnvelope = types.EncryptedEnvelope
	OutgoingEnvelope  = types.OutgoingEnvelope
	Message           = types.Message
	DisplayMessage    = types.DisplayMessage
	DeletedMessage    = types.DeletedMessage
	ConnectionState   = types.ConnectionState
	ConnectionRecord  = types.ConnectionRecord
	Event             = types.Event
	TypingTarget      = types.TypingTarget
	TypingNotice      = types.TypingNotice
	AccountProfile    = types.AccountProfile
	User              = types.User
	PublicUser        = types.PublicUser
	Signup            = types.Signup
	Login             = types.Login
	Session           = types.Session
	Group             = types.Group
	NewGroup          = types.NewGroup
	MemberChange      = types.MemberChange
)

// Interface aliases expose domain interfaces from the interfaces subpackage.
type (
	KeyDirectory      = interfaces.KeyDirectory
	UserStore         = interfaces.UserStore
	LastSeenStore     = interfaces.LastSeenStore
	MessageStore      = interfaces.MessageStore
	GroupStore        = interfaces.GroupStore
	AccountStore      = interfaces.AccountStore
	IdentityStore     = interfaces.IdentityStore
	Transport         = interfaces.Transport
	MessageAPI        = interfaces.MessageAPI
	RelayClient       = interfaces.RelayClient
	KeyStore          = interfaces.KeyStore
	SessionKeyManager = interfaces.SessionKeyManager
	MessageService    = interfaces.MessageService
	Pusher            = interfaces.Pusher
)

// Constant re-exports.
const (
	UndecryptablePlaceholder = types.UndecryptablePlaceholder

	EventNewMessage      = types.EventNewMessage
	EventNewGroupMessage = types.EventNewGroupMessage
	EventMessageUpdated  = types.EventMessageUpdated
	EventMessageDeleted  = types.EventMessageDeleted
	EventOnlineUsers     = types.EventOnlineUsers
	EventUserTyping      = types.EventUserTyping
	EventUserStopTyping  = types.EventUserStopTyping
	EventStartTyping     = types.EventStartTyping
	EventStopTyping      = types.EventStopTyping

	ConnConnecting   = types.ConnConnecting
	ConnConnected    = types.ConnConnected
	ConnDisconnected = types.ConnDisconnected
)

// NewEvent marshals payload into an Event called name.
func NewEvent(name string, payload any) (Event, error) { return types.NewEvent(name, payload) }
