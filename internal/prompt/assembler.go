// Package prompt builds the message sequence sent to the completion API for
// one chat turn, and converts a bot's structured authoring steps into the
// sectioned preset document ("~Personality ... ~Personality", ...).
//
// Everything in this package is pure: no I/O, no logging, no globals beyond
// constants and compiled schemas.
package prompt

import "strings"

// Roles used in assembled message lists.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// GuardrailPreamble is prepended as the first system message of every chat
// completion, ahead of the bot's own preset.
const GuardrailPreamble = "You are a customer-facing assistant embedded on a company website. " +
	"Never invent, guess or fabricate private company information such as prices, internal policies, " +
	"contact details, employee names, addresses, opening hours or figures that are not explicitly given to you. " +
	"If the answer is not in your instructions, say that you do not know and suggest contacting the company directly."

// DefaultPreset substitutes a missing or blank bot preset.
const DefaultPreset = "You are a helpful assistant."

// Message is one entry of a chat completion request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Assemble returns, in order: the system preamble, the bot preset (or
// DefaultPreset when blank), every prior message unchanged, and the new user
// message. The result always has len(prior)+3 entries.
func Assemble(systemPreamble, botPreset string, prior []Message, newUserMessage string) []Message {
	if strings.TrimSpace(botPreset) == "" {
		botPreset = DefaultPreset
	}
	out := make([]Message, 0, len(prior)+3)
	out = append(out,
		Message{Role: RoleSystem, Content: systemPreamble},
		Message{Role: RoleSystem, Content: botPreset},
	)
	out = append(out, prior...)
	out = append(out, Message{Role: RoleUser, Content: newUserMessage})
	return out
}
