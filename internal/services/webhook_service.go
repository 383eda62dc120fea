// Package services – WebhookService
//
// WebhookService runs the ingestion flow for one inbound webhook: resolve
// the token to a tenant, normalize the payload, then either ignore it, apply
// a human takeover, or store a message. The store's unique constraints on
// (organization, context id) and (conversation, provider message id) are
// the only concurrency control; each step is a single atomic statement and
// the steps run sequentially without an enclosing transaction.
//
// Observability: Ingest opens a span per request with the tenant and the
// classification as attributes; every outcome is counted in
// webhook_events_total.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tbourn/go-crm-webhooks/internal/domain"
	"github.com/tbourn/go-crm-webhooks/internal/observability"
	"github.com/tbourn/go-crm-webhooks/internal/repo"
	"github.com/tbourn/go-crm-webhooks/internal/tenantcache"
)

const tracerName = "services/WebhookService"

// IngestResult describes what Ingest did with an event.
type IngestResult struct {
	Kind           Kind
	OrganizationID string
	ConversationID string
	MessageID      string
	// Duplicate is true when the provider message id had already been
	// stored; MessageID then refers to the original row.
	Duplicate bool
	// Applied is false when a takeover hit an already taken-over
	// conversation.
	Applied bool
	// IgnoredReason explains a KindIgnored result.
	IgnoredReason string
}

// WebhookService ingests provider webhooks into conversations and messages.
type WebhookService struct {
	DB     *gorm.DB
	Tokens tenantcache.Cache
	Policy repo.LastMessagePolicy

	// Now is the clock used for takeover times and missing timestamps.
	Now func() time.Time
}

// NewWebhookService wires a service with the real clock. A nil cache
// disables token caching.
func NewWebhookService(db *gorm.DB, tokens tenantcache.Cache, policy repo.LastMessagePolicy) *WebhookService {
	if tokens == nil {
		tokens = tenantcache.Nop{}
	}
	if policy == "" {
		policy = repo.LastMessageMax
	}
	return &WebhookService{DB: db, Tokens: tokens, Policy: policy, Now: time.Now}
}

// Ingest processes one webhook delivered for token.
//
// Errors: ErrUnknownToken, ErrMalformedPayload, ErrMissingContextID,
// ErrMissingRole, or *StoreError. Nothing is written unless all validation
// passed.
func (s *WebhookService) Ingest(ctx context.Context, token string, body []byte) (res *IngestResult, err error) {
	ctx, span := observability.Start(ctx, tracerName, "Ingest")
	defer func() {
		observability.Fail(span, err)
		span.End()
		webhookEvents.WithLabelValues(outcomeOf(res, err)).Inc()
	}()

	entry, err := s.resolveToken(ctx, token)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("org.id", entry.OrganizationID))
	lg := loggerFrom(ctx).With().Str("org_id", entry.OrganizationID).Logger()

	ev, err := Normalize(body, s.now())
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("webhook.kind", ev.Kind.String()))

	if ev.Kind == KindIgnored {
		lg.Debug().Str("role", ev.Role).Msg("tool-role event ignored")
		return &IngestResult{Kind: KindIgnored, OrganizationID: entry.OrganizationID, IgnoredReason: "tool_role"}, nil
	}
	if ev.ContextID == "" {
		return nil, ErrMissingContextID
	}
	if ev.Kind == KindMessage && ev.Role == "" {
		return nil, ErrMissingRole
	}
	span.SetAttributes(attribute.String("webhook.context_id", ev.ContextID))

	contactID, dealID, dealKnown := s.resolveContact(ctx, lg, entry.OrganizationID, ev.SenderPhone)

	conv, err := repo.UpsertConversation(ctx, s.DB, repo.UpsertConversationParams{
		OrganizationID: entry.OrganizationID,
		ContextID:      ev.ContextID,
		ChannelType:    ev.ChannelType,
		ChannelID:      ev.ChannelID,
		CustomerPhone:  ev.SenderPhone,
		CustomerName:   ev.CustomerName,
		ContactID:      contactID,
		DealID:         dealID,
		KeepDeal:       !dealKnown,
		EventAt:        ev.Timestamp,
	})
	if err != nil {
		return nil, storeErr("upsert conversation", err)
	}
	span.SetAttributes(attribute.String("conversation.id", conv.ID))

	res = &IngestResult{Kind: ev.Kind, OrganizationID: entry.OrganizationID, ConversationID: conv.ID}

	if ev.Kind == KindTakeover {
		if ev.TakenOverBy == "" {
			lg.Warn().Str("conversation_id", conv.ID).Msg("takeover without an agent id")
		}
		applied, err := repo.MarkTakeover(ctx, s.DB, conv.ID, optional(ev.TakenOverBy), s.now())
		if err != nil {
			return nil, storeErr("mark takeover", err)
		}
		res.Applied = applied
		lg.Info().Str("conversation_id", conv.ID).Bool("applied", applied).Msg("human takeover")
		return res, nil
	}

	msg, created, err := repo.SaveMessage(ctx, s.DB, &domain.Message{
		ConversationID:    conv.ID,
		ProviderMessageID: optional(ev.MessageID),
		Role:              ev.Role,
		Text:              optional(ev.Text),
		Images:            jsonOrNil(ev.Images),
		Audios:            jsonOrNil(ev.Audios),
		RawPayload:        datatypes.JSON(ev.Raw),
		ProviderTimestamp: ev.Timestamp,
	})
	if err != nil {
		return nil, storeErr("save message", err)
	}
	res.MessageID = msg.ID
	res.Duplicate = !created

	if created {
		if _, err := repo.BumpLastMessageAt(ctx, s.DB, conv.ID, ev.Timestamp, s.Policy); err != nil {
			return nil, storeErr("bump last message", err)
		}
	}

	lg.Debug().
		Str("conversation_id", conv.ID).
		Str("message_id", msg.ID).
		Bool("duplicate", res.Duplicate).
		Msg("message ingested")
	return res, nil
}

// resolveToken maps a token to its active source, consulting the cache
// first. Only hits from the store are cached.
func (s *WebhookService) resolveToken(ctx context.Context, token string) (tenantcache.Entry, error) {
	if token == "" {
		return tenantcache.Entry{}, ErrUnknownToken
	}

	e, err := s.Tokens.Get(ctx, token)
	switch {
	case err == nil:
		tokenCacheLookups.WithLabelValues("hit").Inc()
		return e, nil
	case errors.Is(err, tenantcache.ErrMiss):
		tokenCacheLookups.WithLabelValues("miss").Inc()
	default:
		tokenCacheLookups.WithLabelValues("error").Inc()
		loggerFrom(ctx).Warn().Err(err).Msg("token cache read failed")
	}

	src, err := repo.GetActiveSourceByToken(ctx, s.DB, token)
	if errors.Is(err, repo.ErrNotFound) {
		return tenantcache.Entry{}, ErrUnknownToken
	}
	if err != nil {
		return tenantcache.Entry{}, storeErr("lookup webhook source", err)
	}

	e = tenantcache.Entry{SourceID: src.ID, OrganizationID: src.OrganizationID}
	if err := s.Tokens.Set(ctx, token, e); err != nil {
		loggerFrom(ctx).Warn().Err(err).Msg("token cache write failed")
	}
	return e, nil
}

// resolveContact links the event to a CRM contact and that contact's newest
// deal. Lookup failures are logged. A nil contact id tells the upsert to
// leave existing links alone; dealKnown is false when the deal lookup failed,
// so the stored deal link is kept.
func (s *WebhookService) resolveContact(ctx context.Context, lg zerolog.Logger, orgID, phone string) (contactID, dealID *string, dealKnown bool) {
	if phone == "" {
		return nil, nil, false
	}
	c, err := repo.FindContactByPhone(ctx, s.DB, orgID, phone)
	if err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			lg.Warn().Err(err).Msg("contact lookup failed")
		}
		return nil, nil, false
	}
	contactID = &c.ID

	d, err := repo.LatestDealForContact(ctx, s.DB, orgID, c.ID)
	switch {
	case err == nil:
		return contactID, &d.ID, true
	case errors.Is(err, repo.ErrNotFound):
		return contactID, nil, true
	default:
		lg.Warn().Err(err).Str("contact_id", c.ID).Msg("deal lookup failed")
		return contactID, nil, false
	}
}

func (s *WebhookService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func outcomeOf(res *IngestResult, err error) string {
	var se *StoreError
	switch {
	case errors.As(err, &se):
		return outcomeError
	case err != nil:
		return outcomeRejected
	case res == nil:
		return outcomeError
	}
	switch res.Kind {
	case KindIgnored:
		return outcomeIgnored
	case KindTakeover:
		return outcomeTakeover
	}
	if res.Duplicate {
		return outcomeDuplicate
	}
	return outcomeMessage
}

// loggerFrom returns the request logger stored on ctx, or the global one.
func loggerFrom(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &log.Logger
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func jsonOrNil(raw []byte) datatypes.JSON {
	if raw == nil {
		return nil
	}
	return datatypes.JSON(raw)
}
