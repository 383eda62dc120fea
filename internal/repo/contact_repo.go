// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file holds the read-only CRM lookups used to link a
// conversation to an existing contact and deal.
package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/tbourn/go-crm-webhooks/internal/domain"
)

// FindContactByPhone returns the tenant's contact whose phone matches
// exactly. When several contacts share a phone the oldest wins, so the
// result is stable across deliveries.
func FindContactByPhone(ctx context.Context, db *gorm.DB, orgID, phone string) (*domain.Contact, error) {
	var c domain.Contact
	err := db.WithContext(ctx).
		Where("organization_id = ? AND phone = ?", orgID, phone).
		Order("created_at asc, id asc").
		First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// LatestDealForContact returns the most recently created deal of contactID
// within the tenant.
func LatestDealForContact(ctx context.Context, db *gorm.DB, orgID, contactID string) (*domain.Deal, error) {
	var d domain.Deal
	err := db.WithContext(ctx).
		Where("organization_id = ? AND contact_id = ?", orgID, contactID).
		Order("created_at desc, id desc").
		First(&d).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}
