package server

import (
	"net/http"
	"slices"
	"strings"

	"github.com/google/uuid"

	"parley/internal/domain"
)

func (s *Server) createGroup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req domain.NewGroup
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, r, domain.InvalidArg("group name is required"))
		return
	}
	me := UserFrom(ctx)
	members := []domain.UserID{me}
	for _, id := range req.Members {
		if id == "" || slices.Contains(members, id) {
			continue
		}
		if _, err := s.Users.GetUser(ctx, id); err != nil {
			writeError(w, r, err)
			return
		}
		members = append(members, id)
	}
	if len(members) < 2 {
		writeError(w, r, domain.InvalidArg("a group needs at least one other member"))
		return
	}
	g, err := s.Groups.CreateGroup(ctx, domain.Group{
		ID:          domain.GroupID(uuid.NewString()),
		Name:        req.Name,
		Description: req.Description,
		Admin:       me,
		Members:     members,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

// adminGroup loads the path's group and checks the caller administers it.
func (s *Server) adminGroup(r *http.Request) (domain.Group, error) {
	g, err := s.Groups.GetGroup(r.Context(), domain.GroupID(r.PathValue("groupId")))
	if err != nil {
		return domain.Group{}, err
	}
	if g.Admin != UserFrom(r.Context()) {
		return domain.Group{}, domain.Forbidden("only the group admin can change members")
	}
	return g, nil
}

func (s *Server) memberGroup(r *http.Request) (domain.Group, error) {
	g, err := s.Groups.GetGroup(r.Context(), domain.GroupID(r.PathValue("groupId")))
	if err != nil {
		return domain.Group{}, err
	}
	if !g.HasMember(UserFrom(r.Context())) {
		return domain.Group{}, domain.Forbidden("not a member of this group")
	}
	return g, nil
}

func (s *Server) addMembers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	g, err := s.adminGroup(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req domain.MemberChange
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if len(req.Members) == 0 {
		writeError(w, r, domain.InvalidArg("members are required"))
		return
	}
	for _, id := range req.Members {
		if _, err := s.Users.GetUser(ctx, id); err != nil {
			writeError(w, r, err)
			return
		}
	}
	g, err = s.Groups.AddMembers(ctx, g.ID, req.Members)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) removeMembers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	g, err := s.adminGroup(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req domain.MemberChange
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if slices.Contains(req.Members, g.Admin) {
		writeError(w, r, domain.InvalidArg("the admin leaves with leave-group"))
		return
	}
	g, err = s.Groups.RemoveMembers(ctx, g.ID, req.Members)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) leaveGroup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	g, err := s.memberGroup(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := s.Groups.RemoveMembers(ctx, g.ID, []domain.UserID{UserFrom(ctx)}); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageBody{Message: "left group"})
}

func (s *Server) myGroups(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	gs, err := s.Groups.GroupsFor(ctx, UserFrom(ctx))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if gs == nil {
		gs = []domain.Group{}
	}
	writeJSON(w, http.StatusOK, gs)
}

func (s *Server) groupConversation(w http.ResponseWriter, r *http.Request) {
	g, err := s.memberGroup(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	msgs, err := s.Messages.GroupConversation(r.Context(), g.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNilMessages(msgs))
}

func (s *Server) sendGroupMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var body domain.OutgoingEnvelope
	if err := decode(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	saved, err := s.Router.RouteGroup(ctx, domain.Message{
		SenderID:      UserFrom(ctx),
		GroupID:       domain.GroupID(r.PathValue("groupId")),
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
