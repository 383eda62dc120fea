// Package services – SourceService
//
// SourceService onboards tenants and manages the webhook sources whose
// secret tokens form the per-tenant webhook URLs.
package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/tbourn/go-crm-webhooks/internal/domain"
	"github.com/tbourn/go-crm-webhooks/internal/repo"
	"github.com/tbourn/go-crm-webhooks/internal/tenantcache"
)

// tokenBytes is the entropy of generated tokens (hex-encoded to 64 chars).
const tokenBytes = 32

// SourceService provides onboarding operations for organizations and their
// webhook sources.
type SourceService struct {
	DB     *gorm.DB
	Tokens tenantcache.Cache

	// NewToken generates secrets; tests may replace it.
	NewToken func() (string, error)
}

// NewSourceService constructs a SourceService. A nil cache is allowed.
func NewSourceService(db *gorm.DB, tokens tenantcache.Cache) *SourceService {
	if tokens == nil {
		tokens = tenantcache.Nop{}
	}
	return &SourceService{DB: db, Tokens: tokens, NewToken: randomToken}
}

// CreateOrganization registers a tenant. Blank names fall back to "Unnamed".
func (s *SourceService) CreateOrganization(ctx context.Context, name string) (*domain.Organization, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "Unnamed"
	}
	org, err := repo.CreateOrganization(ctx, s.DB, name)
	if err != nil {
		return nil, storeErr("create organization", err)
	}
	return org, nil
}

// CreateSource issues a new active webhook source with a fresh secret token
// for orgID. The token is returned on the source and never shown again by
// List.
func (s *SourceService) CreateSource(ctx context.Context, orgID, name string) (*domain.WebhookSource, error) {
	if _, err := repo.GetOrganization(ctx, s.DB, orgID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrOrganizationNotFound
		}
		return nil, storeErr("get organization", err)
	}
	token, err := s.NewToken()
	if err != nil {
		return nil, err
	}
	src, err := repo.CreateWebhookSource(ctx, s.DB, orgID, strings.TrimSpace(name), token)
	if err != nil {
		return nil, storeErr("create webhook source", err)
	}
	return src, nil
}

// Deactivate disables the source for token and evicts it from the token
// cache, so the webhook URL answers 404 from the next request on.
func (s *SourceService) Deactivate(ctx context.Context, token string) error {
	if err := repo.DeactivateSourceByToken(ctx, s.DB, token); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrSourceNotFound
		}
		return storeErr("deactivate webhook source", err)
	}
	if err := s.Tokens.Invalidate(ctx, token); err != nil {
		loggerFrom(ctx).Warn().Err(err).Msg("token cache invalidation failed")
	}
	return nil
}

// List returns the organization's sources, newest first.
func (s *SourceService) List(ctx context.Context, orgID string) ([]domain.WebhookSource, error) {
	out, err := repo.ListSources(ctx, s.DB, orgID)
	if err != nil {
		return nil, storeErr("list webhook sources", err)
	}
	return out, nil
}

func randomToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
