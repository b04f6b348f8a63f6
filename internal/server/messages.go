package server

import (
	"net/http"

	"parley/internal/domain"
)

func (s *Server) conversation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	msgs, err := s.Messages.Conversation(ctx, UserFrom(ctx), domain.UserID(r.PathValue("id")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNilMessages(msgs))
}

func (s *Server) sendMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var body domain.OutgoingEnvelope
	if err := decode(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	to := domain.UserID(r.PathValue("id"))
	if _, err := s.Users.GetUser(ctx, to); err != nil {
		writeError(w, r, err)
		return
	}
	saved, err := s.Router.Route(ctx, domain.Message{
		SenderID:      UserFrom(ctx),
		ReceiverID:    to,
		Text:          body.Text,
		EncryptedText: body.EncryptedText,
		IsEncrypted:   body.IsEncrypted,
		Image:         body.Image,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

type editBody struct {
	Text string `json:"text"`
}

func (s *Server) editMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var body editBody
	if err := decode(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	m, err := s.Router.Edit(ctx, UserFrom(ctx), domain.MessageID(r.PathValue("id")), body.Text)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) deleteMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := s.Router.Delete(ctx, UserFrom(ctx), domain.MessageID(r.PathValue("id"))); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageBody{Message: "message deleted"})
}

func nonNilMessages(msgs []domain.Message) []domain.Message {
	if msgs == nil {
		return []domain.Message{}
	}
	return msgs
}
