package api

import (
	"net/http"

	"servimatt/chat/internal/interfaces"
)

// ModelHandler serves the provider's model list.
type ModelHandler struct {
	service interfaces.ModelService
}

func NewModelHandler(svc interfaces.ModelService) *ModelHandler {
	return &ModelHandler{service: svc}
}

// HandleListModels godoc
// @Summary      List models
// @Description  Lists the models offered by the completion provider.
// @Tags         Models
// @Produce      json
// @Success      200  {object}  llm.ListModelsResponse
// @Failure      502  {object}  ErrorResponse
// @Failure      503  {object}  ErrorResponse
// @Router       /v1/models [get]
func (h *ModelHandler) HandleListModels(w http.ResponseWriter, r *http.Request) {
	models, err := h.service.List(r.Context())
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, models)
}
