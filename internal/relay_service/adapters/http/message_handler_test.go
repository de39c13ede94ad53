package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	httptransport "github.com/chanrelay/chanrelay/internal/relay_service/adapters/http"
	"github.com/chanrelay/chanrelay/internal/relay_service/domain"
)

type MockMessageService struct {
	mock.Mock
}

func (m *MockMessageService) Publish(ctx context.Context, text string) (*domain.Message, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Message), args.Error(1)
}

func (m *MockMessageService) RecentMessages(ctx context.Context) ([]*domain.Message, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Message), args.Error(1)
}

func newMessageHandler(service *MockMessageService) *httptransport.MessageHandler {
	return httptransport.NewMessageHandler(service, discardLogger(), validator.New())
}

func TestMessageHandler_Publish_Success(t *testing.T) {
	service := new(MockMessageService)
	handler := newMessageHandler(service)

	stored := domain.NewMessage("ext-new", "123@c.us", "hello", true, false, domain.StatusSent)
	service.On("Publish", mock.Anything, "hello").Return(stored, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/api/messages", bytes.NewReader([]byte(`{"text":"hello"}`)))
	rr := httptest.NewRecorder()
	handler.HandlePublish(rr, req)

	require.Equal(t, http.StatusCreated, rr.Code)
	var resp httptransport.PublishMessageResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "sent", resp.Status)
	assert.Equal(t, "hello", resp.Message)
	assert.Equal(t, "ext-new", resp.ID)

	service.AssertExpectations(t)
}

func TestMessageHandler_Publish_MissingTextRejected(t *testing.T) {
	service := new(MockMessageService)
	handler := newMessageHandler(service)

	req := httptest.NewRequest(http.MethodPost, "/api/messages", bytes.NewReader([]byte(`{}`)))
	rr := httptest.NewRecorder()
	handler.HandlePublish(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	service.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestMessageHandler_Publish_InvalidJSONRejected(t *testing.T) {
	service := new(MockMessageService)
	handler := newMessageHandler(service)

	req := httptest.NewRequest(http.MethodPost, "/api/messages", bytes.NewReader([]byte(`{broken`)))
	rr := httptest.NewRecorder()
	handler.HandlePublish(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	service.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestMessageHandler_Publish_GatewayFailureSurfaces(t *testing.T) {
	service := new(MockMessageService)
	handler := newMessageHandler(service)

	service.On("Publish", mock.Anything, "hello").
		Return(nil, errors.New("gateway send failed: connection refused")).Once()

	req := httptest.NewRequest(http.MethodPost, "/api/messages", bytes.NewReader([]byte(`{"text":"hello"}`)))
	rr := httptest.NewRecorder()
	handler.HandlePublish(rr, req)

	assert.Equal(t, http.StatusBadGateway, rr.Code)
	service.AssertExpectations(t)
}

func TestMessageHandler_List_ReturnsRecentMessages(t *testing.T) {
	service := new(MockMessageService)
	handler := newMessageHandler(service)

	stored := []*domain.Message{
		domain.NewMessage("ext-2", "123@c.us", "newer", false, false, domain.StatusPublished),
		domain.NewMessage("ext-1", "123@c.us", "older", false, false, domain.StatusPublished),
	}
	service.On("RecentMessages", mock.Anything).Return(stored, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/api/messages", nil)
	rr := httptest.NewRecorder()
	handler.HandleList(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp []*domain.Message
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp, 2)
	assert.Equal(t, "ext-2", resp[0].ExternalID)
	assert.Equal(t, "ext-1", resp[1].ExternalID)

	service.AssertExpectations(t)
}

func TestMessageHandler_List_StoreFailure(t *testing.T) {
	service := new(MockMessageService)
	handler := newMessageHandler(service)

	service.On("RecentMessages", mock.Anything).Return(nil, errors.New("connection reset")).Once()

	req := httptest.NewRequest(http.MethodGet, "/api/messages", nil)
	rr := httptest.NewRecorder()
	handler.HandleList(rr, req)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}
