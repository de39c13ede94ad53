package http

// PublishMessageRequest is the body of an outbound publish call.
type PublishMessageRequest struct {
	Text string `json:"text" validate:"required"`
}

// PublishMessageResponse is returned after a successful publish.
type PublishMessageResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	ID      string `json:"id"`
}

// WebhookAckResponse is returned to the gateway for every webhook delivery,
// whatever the internal outcome.
type WebhookAckResponse struct {
	Status string `json:"status"`
}

// GenericErrorResponse for API errors.
type GenericErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
