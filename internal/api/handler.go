package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	app_errors "servimatt/chat/internal/errors"
	"servimatt/chat/internal/interfaces"
	"servimatt/chat/internal/model"
	"servimatt/chat/internal/store"
)

// CreateConversationRequest is the DTO for creating an empty conversation.
type CreateConversationRequest struct {
	Title string `json:"title" validate:"required,max=200" example:"Trip plans"`
}

// UpdateTitleRequest is the DTO for renaming a conversation.
type UpdateTitleRequest struct {
	Title string `json:"title" validate:"required,min=1,max=200" example:"My Custom Chat Title"`
}

// SelectionRequest changes the selected conversation. A null or empty
// conversation_id opens a new chat. current_input is the unsent text of the
// conversation being left.
type SelectionRequest struct {
	ConversationID *string `json:"conversation_id"`
	CurrentInput   string  `json:"current_input" validate:"max=32000"`
}

// DraftResponse carries the input text to show for a conversation.
type DraftResponse struct {
	ConversationID string `json:"conversation_id"`
	Text           string `json:"text"`
}

// DraftRequest stores unsent input for a conversation ("" is the new chat).
type DraftRequest struct {
	ConversationID string `json:"conversation_id"`
	Text           string `json:"text" validate:"max=32000"`
}

// SendMessageRequest sends into the selected conversation, or a new one.
type SendMessageRequest struct {
	Content string `json:"content" validate:"required,max=32000" example:"Hi there, how are you today?"`
}

// ChatHandler serves the chat client's state and actions over HTTP.
type ChatHandler struct {
	chat     interfaces.ChatService
	settings interfaces.SettingsService
}

func NewChatHandler(chat interfaces.ChatService, settings interfaces.SettingsService) *ChatHandler {
	return &ChatHandler{chat: chat, settings: settings}
}

func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid request payload", app_errors.ErrValidation)
	}
	return validateRequest(dst)
}

// GetState godoc
// @Summary      Get the client state
// @Description  Returns conversations, the selection, the selected conversation's messages and the loading, streaming and error flags.
// @Tags         State
// @Produce      json
// @Success      200  {object}  store.View
// @Router       /v1/state [get]
func (h *ChatHandler) GetState(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.chat.View())
}

// StreamEvents godoc
// @Summary      Stream state changes
// @Description  Sends the current state and then one event per change, as Server-Sent Events. Intermediate states may be skipped for slow clients; the latest state is always delivered.
// @Tags         State
// @Produce      text/event-stream
// @Success      200  {object}  store.View  "Stream of states"
// @Router       /v1/events [get]
func (h *ChatHandler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	if _, ok := w.(http.Flusher); !ok {
		sendStreamError(w, "Streaming is not supported by this connection")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	updates := make(chan store.View, 1)
	unsubscribe := h.chat.Subscribe(func(v store.View) {
		select {
		case updates <- v:
			return
		default:
		}
		// Replace the undelivered state with the newer one.
		select {
		case <-updates:
		default:
		}
		select {
		case updates <- v:
		default:
		}
	})
	defer unsubscribe()

	if err := writeStreamEvent(w, h.chat.View()); err != nil {
		slog.Warn("Could not write initial state, client likely disconnected", "error", err)
		return
	}

	for {
		select {
		case <-r.Context().Done():
			slog.Info("Event stream client disconnected")
			return
		case v := <-updates:
			if err := writeStreamEvent(w, v); err != nil {
				slog.Warn("Could not write to event stream, client likely disconnected", "error", err)
				return
			}
		}
	}
}

// ListConversations godoc
// @Summary      List conversations
// @Description  Reloads the conversation list, most recently updated first.
// @Tags         Conversations
// @Produce      json
// @Success      200  {array}   model.Conversation
// @Failure      500  {object}  ErrorResponse
// @Router       /v1/conversations [get]
func (h *ChatHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	conversations, err := h.chat.Refresh(r.Context())
	if err != nil {
		respondWithError(w, err)
		return
	}
	if conversations == nil {
		conversations = []model.Conversation{}
	}
	respondWithJSON(w, http.StatusOK, conversations)
}

// CreateConversation godoc
// @Summary      Create a conversation
// @Description  Creates an empty conversation and selects it.
// @Tags         Conversations
// @Accept       json
// @Produce      json
// @Param        request  body      CreateConversationRequest  true  "Title"
// @Success      201      {object}  model.Conversation
// @Failure      400      {object}  ErrorResponse
// @Failure      500      {object}  ErrorResponse
// @Router       /v1/conversations [post]
func (h *ChatHandler) CreateConversation(w http.ResponseWriter, r *http.Request) {
	var req CreateConversationRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, err)
		return
	}
	conv, err := h.chat.CreateConversation(r.Context(), req.Title)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, conv)
}

// UpdateConversationTitle godoc
// @Summary      Rename a conversation
// @Tags         Conversations
// @Accept       json
// @Produce      json
// @Param        conversationID  path      string              true  "Conversation ID"
// @Param        request         body      UpdateTitleRequest  true  "New title"
// @Success      200             {object}  model.Conversation
// @Failure      400             {object}  ErrorResponse
// @Failure      404             {object}  ErrorResponse
// @Router       /v1/conversations/{conversationID}/title [put]
func (h *ChatHandler) UpdateConversationTitle(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")
	var req UpdateTitleRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, err)
		return
	}
	conv, err := h.chat.RenameConversation(r.Context(), conversationID, req.Title)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, conv)
}

// DeleteConversation godoc
// @Summary      Delete a conversation
// @Description  Deletes a conversation with its messages and draft. Deleting an unknown id succeeds.
// @Tags         Conversations
// @Produce      json
// @Param        conversationID  path      string  true  "Conversation ID"
// @Success      200             {object}  StatusResponse
// @Failure      500             {object}  ErrorResponse
// @Router       /v1/conversations/{conversationID} [delete]
func (h *ChatHandler) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")
	if err := h.chat.DeleteConversation(r.Context(), conversationID); err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// SelectConversation godoc
// @Summary      Change the selection
// @Description  Saves current_input as the draft of the conversation being left, selects the conversation and loads its messages. Returns the draft to show.
// @Tags         State
// @Accept       json
// @Produce      json
// @Param        request  body      SelectionRequest  true  "Selection"
// @Success      200      {object}  DraftResponse
// @Failure      400      {object}  ErrorResponse
// @Failure      404      {object}  ErrorResponse
// @Router       /v1/selection [put]
func (h *ChatHandler) SelectConversation(w http.ResponseWriter, r *http.Request) {
	var req SelectionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, err)
		return
	}
	if req.ConversationID == nil || *req.ConversationID == "" {
		respondWithJSON(w, http.StatusOK, DraftResponse{Text: h.chat.NewChat(req.CurrentInput)})
		return
	}
	draft, err := h.chat.SelectConversation(r.Context(), *req.ConversationID, req.CurrentInput)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, DraftResponse{ConversationID: *req.ConversationID, Text: draft})
}

// SendMessage godoc
// @Summary      Send a message
// @Description  Sends into the selected conversation, creating one when none is selected. The reply streams in the background; follow it on /v1/events.
// @Tags         Messages
// @Accept       json
// @Produce      json
// @Param        request  body      SendMessageRequest  true  "Message"
// @Success      202      {object}  StatusResponse
// @Failure      400      {object}  ErrorResponse
// @Failure      409      {object}  ErrorResponse
// @Router       /v1/messages [post]
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req SendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, err)
		return
	}
	if err := h.chat.SendMessageAsync(req.Content); err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusAccepted, StatusResponse{Status: "accepted"})
}

// GetDraft godoc
// @Summary      Get a draft
// @Tags         Drafts
// @Produce      json
// @Param        conversation_id  query     string  false  "Conversation ID; empty for the new chat"
// @Success      200              {object}  DraftResponse
// @Router       /v1/draft [get]
func (h *ChatHandler) GetDraft(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("conversation_id")
	respondWithJSON(w, http.StatusOK, DraftResponse{ConversationID: id, Text: h.chat.GetDraft(id)})
}

// SetDraft godoc
// @Summary      Store a draft
// @Tags         Drafts
// @Accept       json
// @Produce      json
// @Param        request  body      DraftRequest  true  "Draft"
// @Success      200      {object}  StatusResponse
// @Failure      400      {object}  ErrorResponse
// @Router       /v1/draft [put]
func (h *ChatHandler) SetDraft(w http.ResponseWriter, r *http.Request) {
	var req DraftRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, err)
		return
	}
	h.chat.SetDraft(req.ConversationID, req.Text)
	respondWithJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// ClearError godoc
// @Summary      Dismiss the current error
// @Tags         State
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Router       /v1/error [delete]
func (h *ChatHandler) ClearError(w http.ResponseWriter, r *http.Request) {
	h.chat.ClearError()
	respondWithJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// GetSettings godoc
// @Summary      Get generation settings
// @Tags         Settings
// @Produce      json
// @Success      200  {object}  model.Settings
// @Failure      500  {object}  ErrorResponse
// @Router       /v1/settings [get]
func (h *ChatHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.settings.Get(r.Context())
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, settings)
}

// UpdateSettings godoc
// @Summary      Update generation settings
// @Tags         Settings
// @Accept       json
// @Produce      json
// @Param        settings  body      model.Settings  true  "Settings"
// @Success      200       {object}  StatusResponse
// @Failure      400       {object}  ErrorResponse
// @Failure      500       {object}  ErrorResponse
// @Router       /v1/settings [post]
func (h *ChatHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var settings model.Settings
	if err := decodeJSON(r, &settings); err != nil {
		respondWithError(w, err)
		return
	}
	if err := h.settings.Save(r.Context(), &settings); err != nil {
		respondWithError(w, err)
		return
	}
	slog.Info("Settings updated", "model", settings.Model)
	respondWithJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}
