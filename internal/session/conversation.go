package session

import (
	"github.com/BerylCAtieno/milo-api/internal/models"
)

type State string

const (
	StateIdle          State = "idle"
	StateComposing     State = "composing"
	StateAwaitingReply State = "awaiting_reply"
	StateDelivered     State = "delivered"
	StateFailed        State = "failed"
)

// FallbackReply is appended in place of a reply when generation fails.
const FallbackReply = "There was a problem retrieving a response. Please try again."

// Conversation is one tab's transcript and its position in the
// idle -> composing -> awaiting_reply -> delivered|failed cycle.
// It is not safe for concurrent use; Session serializes access.
type Conversation struct {
	state    State
	messages []models.ChatMessage
}

func newConversation() *Conversation {
	return &Conversation{state: StateIdle}
}

func (c *Conversation) State() State {
	return c.state
}

// Messages returns a copy of the transcript.
func (c *Conversation) Messages() []models.ChatMessage {
	out := make([]models.ChatMessage, len(c.messages))
	copy(out, c.messages)
	return out
}

// Compose marks the user as typing. It is a no-op while a reply is pending.
func (c *Conversation) Compose() {
	if c.state != StateAwaitingReply {
		c.state = StateComposing
	}
}

// Submit appends the user message before any reply exists and returns the
// history that preceded it. A second submission while one is pending is
// accepted.
func (c *Conversation) Submit(text string) []models.ChatMessage {
	c.Compose()
	history := c.Messages()
	c.messages = append(c.messages, models.ChatMessage{Sender: models.SenderUser, Text: text})
	c.state = StateAwaitingReply
	return history
}

func (c *Conversation) Deliver(reply string) {
	c.messages = append(c.messages, models.ChatMessage{Sender: models.SenderAssistant, Text: reply})
	c.state = StateDelivered
}

// Fail appends the fixed fallback text. There is no automatic retry.
func (c *Conversation) Fail() {
	c.messages = append(c.messages, models.ChatMessage{Sender: models.SenderAssistant, Text: FallbackReply})
	c.state = StateFailed
}

func (c *Conversation) reset() {
	c.messages = nil
	c.state = StateIdle
}
