package chat

import "time"

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one transcript entry. It is never modified once appended.
type Message struct {
	ID      int64     `json:"id"`
	Role    Role      `json:"role"`
	Text    string    `json:"text"`
	Spoken  bool      `json:"spoken,omitempty"`
	IsError bool      `json:"isError,omitempty"`
	At      time.Time `json:"at"`
}

// Texts used for assistant entries when the robot gives nothing better.
const (
	TextNoResponse       = "No response"
	TextRequestFailed    = "Request failed"
	TextContactError     = "Error contacting robot"
	TextResetFailed      = "Failed to reset memory."
	TextResetUnreachable = "Could not connect to robot."
)
