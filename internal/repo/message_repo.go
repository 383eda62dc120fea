// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Message model.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-crm-webhooks/internal/domain"
)

// SaveMessage writes m once. With a provider message id the insert is
// conflict-ignoring on (conversation_id, provider_message_id) and a
// redelivery returns the row stored first with created=false. Without a
// provider id it is a plain insert.
func SaveMessage(ctx context.Context, db *gorm.DB, m *domain.Message) (stored *domain.Message, created bool, err error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	m.ProviderTimestamp = m.ProviderTimestamp.UTC()

	tx := db.WithContext(ctx).Omit(clause.Associations)
	if m.ProviderMessageID == nil {
		if err := tx.Create(m).Error; err != nil {
			return nil, false, err
		}
		return m, true, nil
	}

	res := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "conversation_id"}, {Name: "provider_message_id"}},
		DoNothing: true,
	}).Create(m)
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected > 0 {
		return m, true, nil
	}

	existing, err := GetMessageByProviderID(ctx, db, m.ConversationID, *m.ProviderMessageID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// GetMessageByProviderID fetches a message by its dedupe key.
func GetMessageByProviderID(ctx context.Context, db *gorm.DB, conversationID, providerID string) (*domain.Message, error) {
	var m domain.Message
	err := db.WithContext(ctx).
		Where("conversation_id = ? AND provider_message_id = ?", conversationID, providerID).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListMessages returns messages in provider order (ProviderTimestamp ASC, ID ASC).
func ListMessages(ctx context.Context, db *gorm.DB, conversationID string, limit int) ([]domain.Message, error) {
	var out []domain.Message
	q := db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("provider_timestamp ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// CountMessages returns the number of messages stored for a conversation.
func CountMessages(ctx context.Context, db *gorm.DB, conversationID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("conversation_id = ?", conversationID).
		Count(&total).Error
	return total, err
}
