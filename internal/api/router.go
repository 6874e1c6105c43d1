package api

import (
	"net/http"
	"time"

	// Registers the generated OpenAPI spec with swag.
	_ "servimatt/chat/docs"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"
)

// NewRouter wires every route of the API.
func NewRouter(chatHandler *ChatHandler, modelHandler *ModelHandler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/api/swagger/*", httpSwagger.WrapHandler)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {
		// Plain JSON routes get a request timeout.
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))

			r.Get("/state", chatHandler.GetState)
			r.Put("/selection", chatHandler.SelectConversation)
			r.Delete("/error", chatHandler.ClearError)

			r.Get("/conversations", chatHandler.ListConversations)
			r.Post("/conversations", chatHandler.CreateConversation)
			r.Put("/conversations/{conversationID}/title", chatHandler.UpdateConversationTitle)
			r.Delete("/conversations/{conversationID}", chatHandler.DeleteConversation)

			r.Post("/messages", chatHandler.SendMessage)

			r.Get("/draft", chatHandler.GetDraft)
			r.Put("/draft", chatHandler.SetDraft)

			r.Get("/settings", chatHandler.GetSettings)
			r.Post("/settings", chatHandler.UpdateSettings)

			r.Get("/models", modelHandler.HandleListModels)
		})

		// The event stream stays open for as long as the client listens.
		r.Get("/events", chatHandler.StreamEvents)
	})

	return r
}
