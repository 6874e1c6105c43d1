package api_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"servimatt/chat/internal/api"
	app_errors "servimatt/chat/internal/errors"
	"servimatt/chat/internal/interfaces/mocks"
	"servimatt/chat/internal/llm"
)

func setupModelHandler(t *testing.T) (*api.ModelHandler, *mocks.MockModelService) {
	mockModelSvc := mocks.NewMockModelService(t)
	return api.NewModelHandler(mockModelSvc), mockModelSvc
}

func TestModelHandler_HandleListModels(t *testing.T) {
	testCases := []struct {
		name         string
		err          error
		expectedCode int
	}{
		{name: "Failure - Missing key", err: fmt.Errorf("%w: API key is not set", app_errors.ErrNotConfigured), expectedCode: http.StatusServiceUnavailable},
		{name: "Failure - Provider error", err: &llm.APIError{StatusCode: 500, Message: "upstream down"}, expectedCode: http.StatusBadGateway},
		{name: "Failure - Unknown error", err: errors.New("boom"), expectedCode: http.StatusInternalServerError},
	}

	t.Run("Success", func(t *testing.T) {
		handler, mockSvc := setupModelHandler(t)
		mockSvc.On("List", mock.Anything).Return(&llm.ListModelsResponse{Models: []llm.Model{{ID: "gpt-4o"}}}, nil).Once()

		rr := httptest.NewRecorder()
		handler.HandleListModels(rr, httptest.NewRequest(http.MethodGet, "/v1/models", nil))

		assert.Equal(t, http.StatusOK, rr.Code)
		var resp llm.ListModelsResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, "gpt-4o", resp.Models[0].ID)
	})

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			handler, mockSvc := setupModelHandler(t)
			mockSvc.On("List", mock.Anything).Return(nil, tc.err).Once()

			rr := httptest.NewRecorder()
			handler.HandleListModels(rr, httptest.NewRequest(http.MethodGet, "/v1/models", nil))

			assert.Equal(t, tc.expectedCode, rr.Code)
		})
	}
}
