// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for organizations
// and the webhook sources that map secret tokens to them.
//
// Error semantics:
//   - Missing rows surface as ErrNotFound (gorm.ErrRecordNotFound).
//   - Other DB errors are propagated unchanged.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-crm-webhooks/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateOrganization inserts a new tenant.
func CreateOrganization(ctx context.Context, db *gorm.DB, name string) (*domain.Organization, error) {
	o := &domain.Organization{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(o).Error; err != nil {
		return nil, err
	}
	return o, nil
}

// GetOrganization fetches a tenant by id.
func GetOrganization(ctx context.Context, db *gorm.DB, id string) (*domain.Organization, error) {
	var o domain.Organization
	if err := db.WithContext(ctx).Where("id = ?", id).First(&o).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

// CreateWebhookSource inserts an active source bound to orgID.
func CreateWebhookSource(ctx context.Context, db *gorm.DB, orgID, name, token string) (*domain.WebhookSource, error) {
	now := time.Now().UTC()
	s := &domain.WebhookSource{
		ID:             uuid.NewString(),
		OrganizationID: orgID,
		Token:          token,
		Name:           name,
		Active:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := db.WithContext(ctx).Create(s).Error; err != nil {
		return nil, err
	}
	return s, nil
}

// GetActiveSourceByToken returns the active source for token. Unknown and
// inactive tokens are indistinguishable to the caller: both yield ErrNotFound.
func GetActiveSourceByToken(ctx context.Context, db *gorm.DB, token string) (*domain.WebhookSource, error) {
	var s domain.WebhookSource
	err := db.WithContext(ctx).
		Where("token = ? AND active = ?", token, true).
		First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

// DeactivateSourceByToken flips a source to inactive. It returns ErrNotFound
// when no source has that token. Deactivating twice is not an error.
func DeactivateSourceByToken(ctx context.Context, db *gorm.DB, token string) error {
	res := db.WithContext(ctx).
		Model(&domain.WebhookSource{}).
		Where("token = ?", token).
		Updates(map[string]any{"active": false, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListSources returns every source of an organization, newest first.
func ListSources(ctx context.Context, db *gorm.DB, orgID string) ([]domain.WebhookSource, error) {
	var out []domain.WebhookSource
	err := db.WithContext(ctx).
		Where("organization_id = ?", orgID).
		Order("created_at desc").
		Find(&out).Error
	return out, err
}
