// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the conversation upsert and the two
// conditional updates (takeover, last-activity bump) of the ingest flow.
//
// All writes rely on the store's unique constraints and single-statement
// conditional updates; there is no application-level locking.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-crm-webhooks/internal/domain"
)

// LastMessagePolicy decides how an incoming event timestamp is applied to
// Conversation.LastMessageAt.
type LastMessagePolicy string

const (
	// LastMessageMax only moves the marker forward, so late deliveries of
	// older events leave it untouched.
	LastMessageMax LastMessagePolicy = "max"
	// LastMessageOverwrite always writes the incoming timestamp.
	LastMessageOverwrite LastMessagePolicy = "overwrite"
)

// UpsertConversationParams carries one event's view of a conversation.
// Empty strings mean "not supplied" and never overwrite stored values.
// ContactID non-nil means phone resolution succeeded for this event; only
// then are the contact and deal links replaced.
type UpsertConversationParams struct {
	OrganizationID string
	ContextID      string
	ChannelType    string
	ChannelID      string
	CustomerPhone  string
	CustomerName   string
	ContactID      *string
	DealID         *string
	// KeepDeal leaves an existing deal_id alone when ContactID is set. Used
	// when the deal lookup failed and DealID says nothing.
	KeepDeal bool
	EventAt  time.Time
}

// UpsertConversation inserts the conversation for (organization, context id)
// or updates the supplied fields of the existing row in one atomic
// statement, then reads the row back.
func UpsertConversation(ctx context.Context, db *gorm.DB, p UpsertConversationParams) (*domain.Conversation, error) {
	now := time.Now().UTC()
	conv := &domain.Conversation{
		ID:             uuid.NewString(),
		OrganizationID: p.OrganizationID,
		ContextID:      p.ContextID,
		ChannelType:    p.ChannelType,
		ChannelID:      p.ChannelID,
		CustomerPhone:  p.CustomerPhone,
		CustomerName:   p.CustomerName,
		ContactID:      p.ContactID,
		DealID:         p.DealID,
		LastMessageAt:  p.EventAt.UTC(),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	cols := []string{"updated_at"}
	for _, f := range []struct{ col, val string }{
		{"channel_type", p.ChannelType},
		{"channel_id", p.ChannelID},
		{"customer_phone", p.CustomerPhone},
		{"customer_name", p.CustomerName},
	} {
		if f.val != "" {
			cols = append(cols, f.col)
		}
	}
	if p.ContactID != nil {
		cols = append(cols, "contact_id")
		if !p.KeepDeal {
			cols = append(cols, "deal_id")
		}
	}

	err := db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "organization_id"}, {Name: "context_id"}},
			DoUpdates: clause.AssignmentColumns(cols),
		}).
		Create(conv).Error
	if err != nil {
		return nil, err
	}
	return GetConversationByContext(ctx, db, p.OrganizationID, p.ContextID)
}

// GetConversationByContext fetches a conversation by its natural key.
func GetConversationByContext(ctx context.Context, db *gorm.DB, orgID, contextID string) (*domain.Conversation, error) {
	var c domain.Conversation
	err := db.WithContext(ctx).
		Where("organization_id = ? AND context_id = ?", orgID, contextID).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// MarkTakeover records the first human takeover of a conversation. It
// reports false when the conversation was already taken over, in which
// case nothing changes.
func MarkTakeover(ctx context.Context, db *gorm.DB, conversationID string, by *string, at time.Time) (bool, error) {
	at = at.UTC()
	res := db.WithContext(ctx).
		Model(&domain.Conversation{}).
		Where("id = ? AND human_takeover_at IS NULL", conversationID).
		Updates(map[string]any{
			"human_takeover_at": at,
			"taken_over_by":     by,
			"last_message_at":   at,
			"updated_at":        at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// BumpLastMessageAt applies an event timestamp to the conversation's
// activity marker according to policy. It reports whether the row changed.
func BumpLastMessageAt(ctx context.Context, db *gorm.DB, conversationID string, at time.Time, policy LastMessagePolicy) (bool, error) {
	at = at.UTC()
	q := db.WithContext(ctx).
		Model(&domain.Conversation{}).
		Where("id = ?", conversationID)
	if policy != LastMessageOverwrite {
		q = q.Where("last_message_at IS NULL OR last_message_at < ?", at)
	}
	res := q.Updates(map[string]any{
		"last_message_at": at,
		"updated_at":      time.Now().UTC(),
	})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
