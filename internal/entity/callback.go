package entity

// CallbackEventType represents the type of callback event
type CallbackEventType string

const (
	CallbackEventTypeReply CallbackEventType = "reply"
)

// CallbackEvent represents a callback event
type CallbackEvent struct {
	Event     CallbackEventType `json:"event"`
	Timestamp string            `json:"timestamp"` // ISO-8601 UTC
	Data      any               `json:"data"`
}

// CallbackReplyData is delivered to a channel gateway for one inbound message.
type CallbackReplyData struct {
	SenderID string `json:"sender_id"`
	Text     string `json:"text"`
	ImageURL string `json:"image_url,omitempty"`
}

// MessageRequest is the inbound body of POST /messages.
type MessageRequest struct {
	SenderID    string      `json:"sender_id"`
	Text        string      `json:"text"`
	Kind        MessageKind `json:"kind"`
	CallbackURL string      `json:"callback_url,omitempty"`
}
