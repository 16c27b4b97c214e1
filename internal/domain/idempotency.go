package domain

import "time"

// Idempotency records the assistant message produced for a chat turn that
// carried an Idempotency-Key, keyed by (bot_id, scope, key). Scope is the
// conversation id the turn was sent to, empty for a turn that opened a new
// conversation. RequestHash binds the key to the request content: a retry
// with the same content replays the message, different content conflicts.
type Idempotency struct {
	ID             string    `gorm:"type:varchar(64);primaryKey"`
	BotID          string    `gorm:"type:varchar(64);not null;uniqueIndex:ux_bot_scope_key,priority:1"`
	Scope          string    `gorm:"type:varchar(64);not null;default:'';uniqueIndex:ux_bot_scope_key,priority:2"`
	Key            string    `gorm:"type:varchar(200);not null;uniqueIndex:ux_bot_scope_key,priority:3"`
	RequestHash    string    `gorm:"type:varchar(64);not null"`
	ConversationID string    `gorm:"type:varchar(64);not null"`
	MessageID      string    `gorm:"type:varchar(64);not null"`
	Status         int       `gorm:"not null"`
	CreatedAt      time.Time `gorm:"not null;autoCreateTime"`
	ExpiresAt      time.Time `gorm:"not null;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }
