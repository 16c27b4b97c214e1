// Package domain defines the persistence models for bots, prompt steps,
// version snapshots, widgets, suggested prompts, conversations and their
// messages. These types are mapped with GORM and shared across the
// repository, service and HTTP layers.
package domain

import (
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DefaultModel is the completion model used when a bot has none configured.
const DefaultModel = "gpt-3.5-turbo"

// Message roles accepted by the chat surface.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Prompt step numbers.
const (
	StepPersona = 1 // personality / purpose / tone bundle
	StepRules   = 2 // rules + FAQ bundle
)

// Bot is one chatbot persona owned by exactly one dashboard user.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - UserID: owning user; indexed for dashboard listings.
//   - Name / Industry / Language: descriptive metadata shown in the dashboard.
//   - Model: completion model identifier; see ModelOrDefault.
//   - Prompt: optional free-form preset used when no structured steps exist.
type Bot struct {
	ID        string         `json:"id"         gorm:"type:char(36);primaryKey"`
	UserID    string         `json:"user_id"    gorm:"type:varchar(64);not null;index:idx_user_bots"`
	Name      string         `json:"name"       gorm:"type:varchar(255);not null"`
	Industry  string         `json:"industry"   gorm:"type:varchar(128)"`
	Language  string         `json:"language"   gorm:"type:varchar(35)"`
	Model     string         `json:"model"      gorm:"type:varchar(64)"`
	Prompt    string         `json:"prompt"     gorm:"type:text"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-"          gorm:"index"`
}

// TableName returns the database table name for Bot.
func (Bot) TableName() string { return "bots" }

// ModelOrDefault returns the configured model or DefaultModel when unset.
func (b Bot) ModelOrDefault() string {
	if m := strings.TrimSpace(b.Model); m != "" {
		return m
	}
	return DefaultModel
}

// PromptStep is one structured authoring step of a bot. A bot has at most one
// row per step number; edits overwrite the row in place.
type PromptStep struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	BotID     string    `json:"bot_id"     gorm:"type:char(36);not null;uniqueIndex:ux_bot_step,priority:1"`
	Step      int       `json:"step"       gorm:"not null;uniqueIndex:ux_bot_step,priority:2;check:step IN (1,2)"`
	Content   string    `json:"content"    gorm:"type:text;not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Bot Bot `json:"-" gorm:"foreignKey:BotID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for PromptStep.
func (PromptStep) TableName() string { return "prompt_steps" }

// SnapshotStep is the element type stored in VersionSnapshot.Data.
type SnapshotStep struct {
	Step    int    `json:"step"`
	Content string `json:"content"`
}

// VersionSnapshot is an immutable copy of a bot's prompt steps. Rows are
// insert-only; the latest version is the one with the greatest CreatedAt.
type VersionSnapshot struct {
	ID        string         `json:"id"         gorm:"type:char(36);primaryKey"`
	BotID     string         `json:"bot_id"     gorm:"type:char(36);not null;index:idx_bot_versions,priority:1"`
	Label     string         `json:"label"      gorm:"type:varchar(255)"`
	Data      datatypes.JSON `json:"data"`
	CreatedAt time.Time      `json:"created_at" gorm:"index:idx_bot_versions,priority:2"`

	Bot Bot `json:"-" gorm:"foreignKey:BotID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for VersionSnapshot.
func (VersionSnapshot) TableName() string { return "bot_versions" }

// WidgetConfig is the persisted configuration of one embeddable chat surface.
// Optional cosmetic fields are nullable; defaults are applied by the widget
// resolver, never stored.
type WidgetConfig struct {
	ID             string    `json:"id"              gorm:"type:char(36);primaryKey"`
	BotID          string    `json:"bot_id"          gorm:"type:char(36);not null;index"`
	UserID         string    `json:"user_id"         gorm:"type:varchar(64);not null;index"`
	Title          string    `json:"title"           gorm:"type:varchar(255);not null"`
	WelcomeMessage string    `json:"welcome_message" gorm:"type:text"`
	Theme          *string   `json:"theme"           gorm:"type:varchar(16)"`
	Color          *string   `json:"color"           gorm:"type:varchar(16)"`
	AvatarURL      *string   `json:"avatar_url"      gorm:"type:text"`
	LogoURL        *string   `json:"logo_url"        gorm:"type:text"`
	ButtonIconURL  *string   `json:"button_icon_url" gorm:"type:text"`
	Position       *string   `json:"position"        gorm:"type:varchar(16)"`
	Width          *int      `json:"width"`
	Height         *int      `json:"height"`
	BubbleSize     *int      `json:"bubble_size"`
	PopupText      *string   `json:"popup_text"      gorm:"type:text"`
	PopupDelay     *int      `json:"popup_delay"`
	MessageLimit   int       `json:"message_limit"   gorm:"not null"`
	IsActive       bool      `json:"is_active"       gorm:"not null"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	Bot Bot `json:"-" gorm:"foreignKey:BotID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for WidgetConfig.
func (WidgetConfig) TableName() string { return "widgets" }

// SuggestedPrompt is a canned question for a bot. When FixedResponse is set,
// chat turns whose question matches exactly are answered without the LLM.
type SuggestedPrompt struct {
	ID            string    `json:"id"             gorm:"type:char(36);primaryKey"`
	BotID         string    `json:"bot_id"         gorm:"type:char(36);not null;index"`
	Question      string    `json:"question"       gorm:"type:text;not null"`
	FixedResponse *string   `json:"fixed_response" gorm:"type:text"`
	Context       *string   `json:"context"        gorm:"type:text"`
	CreatedAt     time.Time `json:"created_at"`

	Bot Bot `json:"-" gorm:"foreignKey:BotID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for SuggestedPrompt.
func (SuggestedPrompt) TableName() string { return "suggested_prompts" }

// APIKey is the OpenAI key stored for a dashboard user. The key itself is
// never serialized.
type APIKey struct {
	UserID    string    `json:"user_id"    gorm:"type:varchar(64);primaryKey"`
	Key       string    `json:"-"          gorm:"type:text;not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for APIKey.
func (APIKey) TableName() string { return "api_keys" }

// Hint returns a masked form of the key suitable for display ("sk-…abcd").
func (k APIKey) Hint() string {
	s := strings.TrimSpace(k.Key)
	if len(s) <= 8 {
		return "…"
	}
	return s[:3] + "…" + s[len(s)-4:]
}

// Conversation groups the turns exchanged with a bot through one chat surface.
//
// Fields:
//   - BotID: the bot answering the conversation (indexed).
//   - WidgetID: the widget the conversation was started from, if any.
//   - VisitorID: subject of the optional chat token; empty for anonymous visitors.
//   - Title: generated from the first user message.
type Conversation struct {
	ID        string         `json:"id"         gorm:"type:char(36);primaryKey"`
	BotID     string         `json:"bot_id"     gorm:"type:char(36);not null;index:idx_bot_conversations"`
	WidgetID  *string        `json:"widget_id"  gorm:"type:char(36)"`
	VisitorID string         `json:"visitor_id" gorm:"type:varchar(64)"`
	Title     string         `json:"title"      gorm:"type:varchar(255);not null;default:'New chat'"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-"          gorm:"index"`

	Bot Bot `json:"-" gorm:"foreignKey:BotID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Conversation.
func (Conversation) TableName() string { return "conversations" }

// Message sources.
const (
	SourceUser  = "user"
	SourceLLM   = "llm"
	SourceFixed = "fixed"
)

// Message is a single persisted turn of a conversation.
type Message struct {
	ID             string         `json:"id"              gorm:"type:char(36);primaryKey"`
	ConversationID string         `json:"conversation_id" gorm:"type:char(36);not null;index:idx_conversation_msgs,priority:1"`
	Role           string         `json:"role"            gorm:"type:varchar(16);not null;check:role IN ('user','assistant')"`
	Content        string         `json:"content"         gorm:"type:text;not null"`
	Source         string         `json:"source"          gorm:"type:varchar(16);not null;default:'user'"`
	CreatedAt      time.Time      `json:"created_at"      gorm:"index:idx_conversation_msgs,priority:2"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `json:"-"               gorm:"index"`

	Conversation Conversation `json:"-" gorm:"foreignKey:ConversationID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }

// Feedback is a visitor rating (+1/-1) on an assistant message. One rating
// per message.
type Feedback struct {
	ID             string    `json:"id"              gorm:"type:char(36);primaryKey"`
	MessageID      string    `json:"message_id"      gorm:"type:char(36);not null;uniqueIndex:ux_feedback_message"`
	ConversationID string    `json:"conversation_id" gorm:"type:char(36);not null;index"`
	Value          int       `json:"value"           gorm:"not null;check:value IN (-1,1)"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	Message Message `json:"-" gorm:"foreignKey:MessageID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Feedback.
func (Feedback) TableName() string { return "feedback" }
