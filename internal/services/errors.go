// Package services holds the business logic behind the HTTP surface: chat
// turns, bot authoring, widgets and visitor feedback. This file centralizes
// the service-level error values so handlers can map them to HTTP statuses
// with errors.Is.
package services

import "errors"

// Chat turn errors.
var (
	// ErrNoMessages is returned when a turn carries no messages at all.
	ErrNoMessages = errors.New("messages array is required")

	// ErrInvalidLastMessage is returned when the last message is not a
	// non-empty user message.
	ErrInvalidLastMessage = errors.New("last message must be a non-empty user message")

	// ErrInvalidRole is returned when a prior message is neither a user nor
	// an assistant message.
	ErrInvalidRole = errors.New("message role must be user or assistant")

	// ErrTooLong is returned when the new user message exceeds the limit.
	ErrTooLong = errors.New("message too long")

	// ErrInvalidToken is returned when the optional chat token fails verification.
	ErrInvalidToken = errors.New("invalid chat token")

	// ErrMessageLimit is returned when a widget's per-conversation message
	// limit has been reached.
	ErrMessageLimit = errors.New("message limit reached for this conversation")

	// ErrNoAPIKey is returned when the bot owner has not stored an API key.
	ErrNoAPIKey = errors.New("no API key configured for this bot; add one in the dashboard settings")

	// ErrUpstream wraps failures of the completion API.
	ErrUpstream = errors.New("failed to get a response from the language model")

	// ErrIdempotencyConflict is returned when an Idempotency-Key already
	// used in the same conversation arrives with a different message.
	ErrIdempotencyConflict = errors.New("idempotency key already used for a different message")

	// ErrConversationNotFound indicates a conversation id that does not
	// belong to the bot.
	ErrConversationNotFound = errors.New("conversation not found")
)

// Bot and widget errors.
var (
	// ErrBotNotFound indicates the bot does not exist or is not owned by the caller.
	ErrBotNotFound = errors.New("bot not found")

	// ErrWidgetNotFound indicates the widget does not exist, is inactive for
	// chat, or belongs to a different bot.
	ErrWidgetNotFound = errors.New("widget not found")

	// ErrInvalidInput is returned for malformed dashboard writes.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidLanguage is returned for a bot language that is not a BCP 47 tag.
	ErrInvalidLanguage = errors.New("language must be a BCP 47 tag")

	// ErrMalformedGeneration is returned when the model's generated prompt
	// document is not in the five-section format.
	ErrMalformedGeneration = errors.New("generated prompt is not in the expected section format")
)

// Feedback errors.
var (
	// ErrInvalidFeedback is returned when a feedback value is not -1 or 1.
	ErrInvalidFeedback = errors.New("feedback value must be -1 or 1")

	// ErrMessageNotFound indicates that the message does not exist in the
	// given conversation.
	ErrMessageNotFound = errors.New("message not found")

	// ErrForbiddenFeedback is returned for feedback on a non-assistant message.
	ErrForbiddenFeedback = errors.New("cannot leave feedback on this message")

	// ErrDuplicateFeedback is returned when the message has already been rated.
	ErrDuplicateFeedback = errors.New("feedback already exists")
)
