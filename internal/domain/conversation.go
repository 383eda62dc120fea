package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Conversation is one chat thread with an end customer, identified by the
// provider's context id within a tenant.
//
// Fields:
//   - (OrganizationID, ContextID): unique; the upsert key for every event.
//   - ChannelType / ChannelID: provider channel kind and its sub-id.
//   - ContactID / DealID: best-effort CRM links resolved by phone; nil when
//     no contact matched and never cleared by a later failed resolution.
//   - LastMessageAt: activity marker, advanced by each stored message.
//   - HumanTakeoverAt / TakenOverBy: set once, by the first takeover event.
type Conversation struct {
	ID              string     `json:"id"                          gorm:"type:char(36);primaryKey"`
	OrganizationID  string     `json:"organization_id"             gorm:"type:char(36);not null;uniqueIndex:ux_conversations_org_context,priority:1"`
	ContextID       string     `json:"context_id"                  gorm:"type:varchar(255);not null;uniqueIndex:ux_conversations_org_context,priority:2"`
	ChannelType     string     `json:"channel_type"                gorm:"type:varchar(64);not null;default:''"`
	ChannelID       string     `json:"channel_id"                  gorm:"type:varchar(255);not null;default:''"`
	CustomerPhone   string     `json:"customer_phone"              gorm:"type:varchar(64);not null;default:''"`
	CustomerName    string     `json:"customer_name"               gorm:"type:varchar(255);not null;default:''"`
	ContactID       *string    `json:"contact_id,omitempty"        gorm:"type:char(36);index"`
	DealID          *string    `json:"deal_id,omitempty"           gorm:"type:char(36);index"`
	LastMessageAt   time.Time  `json:"last_message_at"             gorm:"not null;index"`
	HumanTakeoverAt *time.Time `json:"human_takeover_at,omitempty"`
	TakenOverBy     *string    `json:"taken_over_by,omitempty"     gorm:"type:varchar(255)"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`

	Organization Organization `json:"-" gorm:"foreignKey:OrganizationID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Conversation.
func (Conversation) TableName() string { return "conversations" }

// Message is one provider event stored under a conversation. Rows are
// written once and never updated.
//
// Fields:
//   - ProviderMessageID: provider id; (ConversationID, ProviderMessageID) is
//     unique so redelivered webhooks collapse into one row. Nil ids never
//     conflict, which means events without an id cannot be deduplicated.
//   - Text: normalized message text, nil when the event carried none.
//   - Images / Audios: provider media descriptors, stored opaquely.
//   - RawPayload: the complete request body, kept for forensic replay.
//   - ProviderTimestamp: event time reported by the provider (or receive
//     time when it was missing or unparsable).
type Message struct {
	ID                string         `json:"id"                            gorm:"type:char(36);primaryKey"`
	ConversationID    string         `json:"conversation_id"               gorm:"type:char(36);not null;index:idx_conversation_msgs,priority:1;uniqueIndex:ux_messages_conversation_provider,priority:1"`
	ProviderMessageID *string        `json:"provider_message_id,omitempty" gorm:"type:varchar(255);uniqueIndex:ux_messages_conversation_provider,priority:2"`
	Role              string         `json:"role"                          gorm:"type:varchar(32);not null"`
	Text              *string        `json:"text,omitempty"                gorm:"type:text"`
	Images            datatypes.JSON `json:"images"`
	Audios            datatypes.JSON `json:"audios"`
	RawPayload        datatypes.JSON `json:"raw_payload"`
	ProviderTimestamp time.Time      `json:"provider_timestamp"            gorm:"not null;index:idx_conversation_msgs,priority:2"`
	CreatedAt         time.Time      `json:"created_at"`

	// Conversation is the parent thread. Messages are cascade-deleted if
	// their conversation is removed.
	Conversation Conversation `json:"-" gorm:"foreignKey:ConversationID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }
