package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tgienger/tracker/internal/apperr"
	"github.com/tgienger/tracker/internal/auth"
	"github.com/tgienger/tracker/internal/models"
)

type createThreadRequest struct {
	Title string `json:"title" validate:"required"`
}

type postMessageRequest struct {
	Body     string  `json:"body" validate:"required"`
	ParentID *string `json:"parentId"`
}

type openChatRequest struct {
	With string `json:"with" validate:"required"`
}

func (s *Server) listThreads(c echo.Context) error {
	threads, err := s.conversations.ListThreads(c.Request().Context())
	if err != nil {
		return err
	}
	if threads == nil {
		threads = []models.Thread{}
	}
	return c.JSON(http.StatusOK, threads)
}

func (s *Server) createThread(c echo.Context) error {
	var req createThreadRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	thread, err := s.conversations.CreateThread(c.Request().Context(), req.Title, auth.UserFrom(c).Username)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, thread)
}

func (s *Server) getThread(c echo.Context) error {
	detail, err := s.conversations.GetThread(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, detail)
}

func (s *Server) addMessage(c echo.Context) error {
	var req postMessageRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	thread, msg, err := s.conversations.AddMessage(c.Request().Context(), c.Param("id"), auth.UserFrom(c).Username, req.Body, req.ParentID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, map[string]any{"thread": thread, "message": msg})
}

func (s *Server) listChats(c echo.Context) error {
	chats, err := s.conversations.ListChatsForUser(c.Request().Context(), auth.UserFrom(c).Username)
	if err != nil {
		return err
	}
	if chats == nil {
		chats = []models.Chat{}
	}
	return c.JSON(http.StatusOK, chats)
}

func (s *Server) openChat(c echo.Context) error {
	var req openChatRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	chat, err := s.conversations.GetOrCreateChat(c.Request().Context(), auth.UserFrom(c).Username, req.With)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, chat)
}

// participantChat loads the chat named in the path and checks the acting
// user takes part in it
func (s *Server) participantChat(c echo.Context) (models.Chat, error) {
	chat, err := s.conversations.GetChat(c.Request().Context(), c.Param("id"))
	if err != nil {
		return models.Chat{}, err
	}
	if !chat.HasParticipant(auth.UserFrom(c).Username) {
		return models.Chat{}, apperr.Forbidden("Not a participant of this chat")
	}
	return chat, nil
}

func (s *Server) chatMessages(c echo.Context) error {
	chat, err := s.participantChat(c)
	if err != nil {
		return err
	}
	msgs, err := s.conversations.ChatMessages(c.Request().Context(), chat.ID)
	if err != nil {
		return err
	}
	if msgs == nil {
		msgs = []models.ChatMessage{}
	}
	return c.JSON(http.StatusOK, msgs)
}

func (s *Server) addChatMessage(c echo.Context) error {
	chat, err := s.participantChat(c)
	if err != nil {
		return err
	}
	var req postMessageRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	chat, msg, err := s.conversations.AddChatMessage(c.Request().Context(), chat.ID, auth.UserFrom(c).Username, req.Body)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, map[string]any{"chat": chat, "message": msg})
}
