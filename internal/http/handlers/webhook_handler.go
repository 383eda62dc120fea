// Webhook HTTP handler.
//
// This file exposes the provider-facing endpoint:
//   - POST    {prefix}/{token}   (ingest one chat event)
//   - OPTIONS {prefix}/{token}   (CORS preflight, 204)
//
// The handler is transport-thin: it reads the raw body, hands it to the
// WebhookService together with the token, and translates the result or the
// service error into the response envelope.
package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-crm-webhooks/internal/services"
)

// WebhookService is the ingestion contract consumed by the handler. It must
// be safe for concurrent use and honor ctx cancellation.
type WebhookService interface {
	Ingest(ctx context.Context, token string, body []byte) (*services.IngestResult, error)
}

// Handlers groups the HTTP endpoints of the service.
type Handlers struct {
	webhooks WebhookService
}

// New constructs a Handlers bound to the given service.
func New(webhooks WebhookService) *Handlers {
	return &Handlers{webhooks: webhooks}
}

// IgnoredResponse acknowledges an event that was deliberately not stored.
type IgnoredResponse struct {
	Success bool   `json:"success" example:"true"`
	Ignored bool   `json:"ignored" example:"true"`
	Reason  string `json:"reason"  example:"tool_role"`
}

// MessageResponse reports a stored (or already stored) chat message.
type MessageResponse struct {
	Success        bool   `json:"success"         example:"true"`
	Type           string `json:"type"            example:"message"`
	ConversationID string `json:"conversation_id" example:"2f0c8a3e-2b7e-4b8e-9a53-1d7a6f3f1c11"`
	MessageID      string `json:"message_id"      example:"8d1e3f5a-6c2b-4e7d-9f10-3a4b5c6d7e8f"`
	Duplicate      bool   `json:"duplicate"       example:"false"`
}

// TakeoverResponse reports a human takeover. Applied is false when the
// conversation had already been taken over.
type TakeoverResponse struct {
	Success        bool   `json:"success"         example:"true"`
	Type           string `json:"type"            example:"takeover"`
	ConversationID string `json:"conversation_id" example:"2f0c8a3e-2b7e-4b8e-9a53-1d7a6f3f1c11"`
	Applied        bool   `json:"applied"         example:"true"`
}

// ReceiveWebhook godoc
// @ID          receiveWebhook
// @Summary     Ingest a chat-provider webhook
// @Description Stores a chat message or applies a human takeover for the tenant that owns {token}.
// @Description Tool-role events are acknowledged and ignored. Redeliveries with the same messageId are deduplicated.
// @Tags        Webhooks
// @Accept      json
// @Produce     json
//
// @Param       token  path  string  true  "Webhook source token"
// @Param       body   body  object  true  "Provider event (contextId, role, message, messageId, contactPhone, ...)"
//
// @Success     200  {object}  handlers.MessageResponse   "Message stored (or duplicate)"
// @Success     200  {object}  handlers.TakeoverResponse  "Takeover handled"
// @Success     200  {object}  handlers.IgnoredResponse   "Event ignored"
// @Failure     400  {object}  handlers.ErrorResponse     "Malformed JSON or missing field"
// @Failure     404  {object}  handlers.ErrorResponse     "Unknown or inactive token"
// @Failure     405  {object}  handlers.ErrorResponse     "Method not allowed"
// @Failure     413  {object}  handlers.ErrorResponse     "Payload too large"
// @Failure     500  {object}  handlers.ErrorResponse     "Store failure"
// @Router      /api/webhooks/chat/{token} [post]
func (h *Handlers) ReceiveWebhook(c *gin.Context) {
	token := c.Param("token")
	// The router never matches an empty segment; this covers handlers mounted
	// without the :token parameter.
	if token == "" {
		fail(c, http.StatusNotFound, ErrCodeNotFound, services.ErrUnknownToken.Error())
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			fail(c, http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge, "payload too large")
			return
		}
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "could not read request body")
		return
	}

	res, err := h.webhooks.Ingest(c.Request.Context(), token, body)
	if err != nil {
		h.failIngest(c, err)
		return
	}

	switch res.Kind {
	case services.KindIgnored:
		ok(c, http.StatusOK, IgnoredResponse{Success: true, Ignored: true, Reason: res.IgnoredReason})
	case services.KindTakeover:
		ok(c, http.StatusOK, TakeoverResponse{
			Success:        true,
			Type:           services.KindTakeover.String(),
			ConversationID: res.ConversationID,
			Applied:        res.Applied,
		})
	default:
		ok(c, http.StatusOK, MessageResponse{
			Success:        true,
			Type:           services.KindMessage.String(),
			ConversationID: res.ConversationID,
			MessageID:      res.MessageID,
			Duplicate:      res.Duplicate,
		})
	}
}

// Preflight answers CORS preflight requests for the webhook route.
func (h *Handlers) Preflight(c *gin.Context) {
	noContent(c)
}

func (h *Handlers) failIngest(c *gin.Context, err error) {
	var se *services.StoreError
	switch {
	case errors.Is(err, services.ErrUnknownToken):
		fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
	case errors.Is(err, services.ErrMalformedPayload):
		fail(c, http.StatusBadRequest, ErrCodeInvalidJSON, err.Error())
	case errors.Is(err, services.ErrMissingContextID):
		fail(c, http.StatusBadRequest, ErrCodeMissingContextID, err.Error())
	case errors.Is(err, services.ErrMissingRole):
		fail(c, http.StatusBadRequest, ErrCodeMissingRole, err.Error())
	case errors.As(err, &se):
		failWithDetails(c, http.StatusInternalServerError, ErrCodeStoreFailed, "failed to persist webhook", se.Error())
	default:
		failWithDetails(c, http.StatusInternalServerError, ErrCodeInternal, "internal error", err.Error())
	}
}
