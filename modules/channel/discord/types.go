package discord

import "fmt"

// Message is the subset of a Discord message object pulse reads back.
type Message struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel_id"`
	Content   string `json:"content"`
}

// User is the subset of a Discord user object returned by /users/@me.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Bot      bool   `json:"bot"`
}

// allowedMentions disables every ping; usernames in lists must never notify.
type allowedMentions struct {
	Parse []string `json:"parse"`
}

// attachmentRef links a multipart file part to the message payload.
type attachmentRef struct {
	ID       int    `json:"id"`
	Filename string `json:"filename"`
}

// createMessageRequest is the body (or payload_json part) of
// POST /channels/{id}/messages.
type createMessageRequest struct {
	Content         string          `json:"content"`
	AllowedMentions allowedMentions `json:"allowed_mentions"`
	Attachments     []attachmentRef `json:"attachments,omitempty"`
}

// rateLimitBody is the JSON body Discord sends with a 429.
type rateLimitBody struct {
	Message    string  `json:"message"`
	RetryAfter float64 `json:"retry_after"`
	Global     bool    `json:"global"`
}

// APIError is a non-2xx response from the Discord API.
type APIError struct {
	Status  int    `json:"-"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements error.
func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("discord: HTTP %d", e.Status)
	}
	return fmt.Sprintf("discord: HTTP %d: %s (code %d)", e.Status, e.Message, e.Code)
}
