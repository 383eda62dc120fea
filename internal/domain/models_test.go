package domain

import (
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newDomainDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:domain_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// Enforce FKs so cascades actually execute.
	db.Exec("PRAGMA foreign_keys=ON;")
	if err := db.AutoMigrate(&Organization{}, &WebhookSource{}, &Contact{}, &Deal{}, &Conversation{}, &Message{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func TestTableNames(t *testing.T) {
	cases := map[string]string{
		(Organization{}).TableName():  "organizations",
		(WebhookSource{}).TableName(): "webhook_sources",
		(Contact{}).TableName():       "contacts",
		(Deal{}).TableName():          "deals",
		(Conversation{}).TableName():  "conversations",
		(Message{}).TableName():       "messages",
	}
	for got, want := range cases {
		if got != want {
			t.Fatalf("TableName() = %q; want %q", got, want)
		}
	}
}

func TestMigrations_UniqueKeys(t *testing.T) {
	db := newDomainDB(t)
	m := db.Migrator()

	if !m.HasIndex(&WebhookSource{}, "ux_webhook_sources_token") {
		t.Fatalf("expected unique token index")
	}
	if !m.HasIndex(&Conversation{}, "ux_conversations_org_context") {
		t.Fatalf("expected unique (organization_id, context_id) index")
	}
	if !m.HasIndex(&Message{}, "ux_messages_conversation_provider") {
		t.Fatalf("expected unique (conversation_id, provider_message_id) index")
	}

	now := time.Now().UTC()
	if err := db.Create(&Organization{ID: "o1", Name: "Acme", CreatedAt: now}).Error; err != nil {
		t.Fatalf("insert org: %v", err)
	}

	c1 := &Conversation{ID: "c1", OrganizationID: "o1", ContextID: "ctx", LastMessageAt: now}
	if err := db.Create(c1).Error; err != nil {
		t.Fatalf("insert conversation: %v", err)
	}
	dup := &Conversation{ID: "c2", OrganizationID: "o1", ContextID: "ctx", LastMessageAt: now}
	if err := db.Create(dup).Error; err == nil {
		t.Fatalf("expected unique violation for duplicate (org, context)")
	}

	pid := "m1"
	msg := &Message{ID: "x1", ConversationID: "c1", ProviderMessageID: &pid, Role: "user", RawPayload: datatypes.JSON(`{}`), ProviderTimestamp: now}
	if err := db.Create(msg).Error; err != nil {
		t.Fatalf("insert message: %v", err)
	}
	again := &Message{ID: "x2", ConversationID: "c1", ProviderMessageID: &pid, Role: "user", RawPayload: datatypes.JSON(`{}`), ProviderTimestamp: now}
	if err := db.Create(again).Error; err == nil {
		t.Fatalf("expected unique violation for duplicate provider message id")
	}

	// Messages without a provider id never conflict.
	for _, id := range []string{"n1", "n2"} {
		row := &Message{ID: id, ConversationID: "c1", Role: "user", RawPayload: datatypes.JSON(`{}`), ProviderTimestamp: now}
		if err := db.Create(row).Error; err != nil {
			t.Fatalf("insert %s without provider id: %v", id, err)
		}
	}
}

func TestCascade_ConversationDeleteRemovesMessages(t *testing.T) {
	db := newDomainDB(t)
	now := time.Now().UTC()

	if err := db.Create(&Organization{ID: "o1", Name: "Acme", CreatedAt: now}).Error; err != nil {
		t.Fatalf("insert org: %v", err)
	}
	if err := db.Create(&Conversation{ID: "c1", OrganizationID: "o1", ContextID: "ctx", LastMessageAt: now}).Error; err != nil {
		t.Fatalf("insert conversation: %v", err)
	}
	text := "Oi"
	if err := db.Create(&Message{ID: "x1", ConversationID: "c1", Role: "user", Text: &text, RawPayload: datatypes.JSON(`{"message":"Oi"}`), ProviderTimestamp: now}).Error; err != nil {
		t.Fatalf("insert message: %v", err)
	}

	if err := db.Delete(&Conversation{}, "id = ?", "c1").Error; err != nil {
		t.Fatalf("delete conversation: %v", err)
	}
	var cnt int64
	if err := db.Model(&Message{}).Where("conversation_id = ?", "c1").Count(&cnt).Error; err != nil {
		t.Fatalf("count messages: %v", err)
	}
	if cnt != 0 {
		t.Fatalf("expected messages to cascade-delete, got %d", cnt)
	}
}
