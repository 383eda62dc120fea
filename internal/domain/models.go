// Package domain defines the persistence models for tenants, their webhook
// sources, the CRM records used for contact resolution, and the chat
// conversations and messages ingested from the chat provider. These types
// are mapped with GORM and shared by the repository and service layers.
package domain

import (
	"time"
)

// Organization is a tenant. Every other row is scoped by its ID.
type Organization struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	Name      string    `json:"name"       gorm:"type:varchar(255);not null"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for Organization.
func (Organization) TableName() string { return "organizations" }

// WebhookSource binds an opaque secret token to exactly one organization.
// The token is the only credential an inbound webhook carries, so it is
// never serialized back to API clients.
//
// Fields:
//   - Token: URL-embedded secret, unique across all tenants.
//   - Active: inactive sources are treated exactly like unknown tokens.
type WebhookSource struct {
	ID             string    `json:"id"              gorm:"type:char(36);primaryKey"`
	OrganizationID string    `json:"organization_id" gorm:"type:char(36);not null;index"`
	Token          string    `json:"-"               gorm:"type:varchar(128);not null;uniqueIndex:ux_webhook_sources_token"`
	Name           string    `json:"name"            gorm:"type:varchar(255);not null;default:''"`
	Active         bool      `json:"active"          gorm:"not null;default:true"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	Organization Organization `json:"-" gorm:"foreignKey:OrganizationID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for WebhookSource.
func (WebhookSource) TableName() string { return "webhook_sources" }

// Contact is a CRM person record. The webhook flow only reads contacts to
// link a conversation by exact phone match within the tenant.
type Contact struct {
	ID             string    `json:"id"              gorm:"type:char(36);primaryKey"`
	OrganizationID string    `json:"organization_id" gorm:"type:char(36);not null;index:idx_contacts_org_phone,priority:1"`
	Name           string    `json:"name"            gorm:"type:varchar(255);not null;default:''"`
	Phone          string    `json:"phone"           gorm:"type:varchar(64);not null;default:'';index:idx_contacts_org_phone,priority:2"`
	CreatedAt      time.Time `json:"created_at"`
}

// TableName returns the database table name for Contact.
func (Contact) TableName() string { return "contacts" }

// Deal is a CRM pipeline card attached to a contact. The most recently
// created deal of a resolved contact is linked to its conversation.
type Deal struct {
	ID             string    `json:"id"              gorm:"type:char(36);primaryKey"`
	OrganizationID string    `json:"organization_id" gorm:"type:char(36);not null;index:idx_deals_org_contact,priority:1"`
	ContactID      string    `json:"contact_id"      gorm:"type:char(36);not null;index:idx_deals_org_contact,priority:2"`
	Title          string    `json:"title"           gorm:"type:varchar(255);not null;default:''"`
	CreatedAt      time.Time `json:"created_at"      gorm:"index:idx_deals_org_contact,priority:3"`
}

// TableName returns the database table name for Deal.
func (Deal) TableName() string { return "deals" }
