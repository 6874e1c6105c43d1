package service

import (
	"context"
	"fmt"
	"slices"
	"strings"

	app_errors "servimatt/chat/internal/errors"
	"servimatt/chat/internal/llm"
)

const probePrompt = "Reply with the single word OK."

// ModelService lists the models the completion provider offers.
type ModelService struct {
	llm llm.LLMProvider
}

func NewModelService(llmProvider llm.LLMProvider) *ModelService {
	return &ModelService{llm: llmProvider}
}

// List returns the provider's models sorted by id.
func (s *ModelService) List(ctx context.Context) (*llm.ListModelsResponse, error) {
	resp, err := s.llm.ListModels(ctx)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(resp.Models, func(a, b llm.Model) int { return strings.Compare(a.ID, b.ID) })
	return resp, nil
}

// Probe asks modelID for a short non-streamed completion and returns its
// answer. It confirms that the credential, the endpoint and the model work.
func (s *ModelService) Probe(ctx context.Context, modelID string) (string, error) {
	modelID = strings.TrimSpace(modelID)
	if modelID == "" {
		return "", fmt.Errorf("%w: model is required", app_errors.ErrValidation)
	}
	return s.llm.Complete(ctx, &llm.CompletionRequest{
		Model:     modelID,
		Messages:  []llm.Message{{Role: "user", Content: probePrompt}},
		MaxTokens: 5,
	})
}
