package conversation

import "context"

// MessageRef identifies a message sent through the chat transport.
type MessageRef struct {
	ChatID    int64
	MessageID int
}

// IsZero reports whether the reference points at no message.
func (r MessageRef) IsZero() bool {
	return r.MessageID == 0
}

// Button is an inline keyboard button carrying action data.
type Button struct {
	Label string
	Data  string
}

// Reply is a message body with an optional inline keyboard (rows of buttons).
type Reply struct {
	Text     string
	Keyboard [][]Button
}

// Interaction is the chat surface a handler answers through, regardless of
// whether the user typed a message or pressed a button.
type Interaction interface {
	// Respond sends a new message to the user's chat.
	Respond(ctx context.Context, r Reply) (MessageRef, error)
	// Edit replaces a previously sent message. An identical edit is not an error.
	Edit(ctx context.Context, ref MessageRef, r Reply) error
	// Delete removes a message; callers may ignore the error.
	Delete(ctx context.Context, ref MessageRef) error
	// Notice shows a short transient notification (toast for button presses).
	Notice(ctx context.Context, text string) error
}
