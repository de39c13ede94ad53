package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	httptransport "github.com/chanrelay/chanrelay/internal/relay_service/adapters/http"
	"github.com/chanrelay/chanrelay/internal/relay_service/domain"
)

type MockEventSink struct {
	mock.Mock
}

func (m *MockEventSink) HandleEvent(ctx context.Context, event domain.Event) {
	m.Called(ctx, event)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func postWebhook(t *testing.T, handler *httptransport.WebhookHandler, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/waha/webhook", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	handler.HandleWebhook(rr, req)
	return rr
}

func assertAcked(t *testing.T, rr *httptest.ResponseRecorder) {
	t.Helper()
	require.Equal(t, http.StatusOK, rr.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "received", resp["status"])
}

func TestWebhookHandler_DispatchesKnownEvent(t *testing.T) {
	sink := new(MockEventSink)
	handler := httptransport.NewWebhookHandler(sink, discardLogger())

	sink.On("HandleEvent", mock.Anything, mock.MatchedBy(func(event domain.Event) bool {
		msg, ok := event.(*domain.NewMessageEvent)
		return ok && msg.Body == "hi"
	})).Once()

	rr := postWebhook(t, handler, []byte(`{"event":"message","payload":{"id":"ext-1","from":"123@c.us","body":"hi"}}`))

	assertAcked(t, rr)
	sink.AssertExpectations(t)
}

// droppedEventCount reads the current reconciliation counter value for a
// webhook kind discarded at the intake.
func droppedEventCount(t *testing.T, kind string) float64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != "relay_webhook_events_total" {
			continue
		}
		for _, metric := range family.GetMetric() {
			matchedKind, matchedOutcome := false, false
			for _, label := range metric.GetLabel() {
				switch {
				case label.GetName() == "kind" && label.GetValue() == kind:
					matchedKind = true
				case label.GetName() == "outcome" && label.GetValue() == "dropped":
					matchedOutcome = true
				}
			}
			if matchedKind && matchedOutcome {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func TestWebhookHandler_UnknownKindDroppedButAcked(t *testing.T) {
	sink := new(MockEventSink)
	handler := httptransport.NewWebhookHandler(sink, discardLogger())

	before := droppedEventCount(t, "group.join")

	rr := postWebhook(t, handler, []byte(`{"event":"group.join","payload":{}}`))

	assertAcked(t, rr)
	sink.AssertNotCalled(t, "HandleEvent", mock.Anything, mock.Anything)
	assert.Equal(t, before+1, droppedEventCount(t, "group.join"))
}

func TestWebhookHandler_MalformedJSONStillAcked(t *testing.T) {
	sink := new(MockEventSink)
	handler := httptransport.NewWebhookHandler(sink, discardLogger())

	rr := postWebhook(t, handler, []byte(`{not json at all`))

	assertAcked(t, rr)
	sink.AssertNotCalled(t, "HandleEvent", mock.Anything, mock.Anything)
}

func TestWebhookHandler_MalformedPayloadStillAcked(t *testing.T) {
	sink := new(MockEventSink)
	handler := httptransport.NewWebhookHandler(sink, discardLogger())

	rr := postWebhook(t, handler, []byte(`{"event":"message","payload":["not","an","object"]}`))

	assertAcked(t, rr)
	sink.AssertNotCalled(t, "HandleEvent", mock.Anything, mock.Anything)
}
