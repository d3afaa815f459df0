package entity

import (
	"fmt"
	"time"
)

type MessageKind string

const (
	MessageKindText  MessageKind = "text"
	MessageKindVoice MessageKind = "voice"
)

func (k *MessageKind) Validate() error {
	switch *k {
	case MessageKindText, MessageKindVoice:
		return nil
	default:
		return fmt.Errorf("unknown message kind: %s", *k)
	}
}

// Route is the classification tag of an inbound message.
type Route string

const (
	RouteCached  Route = "cached"
	RouteGeneral Route = "general"
	RouteSafety  Route = "safety"
)

// Classification is the router decision for one message.
type Classification struct {
	Route        Route `json:"route"`
	ImageRequest bool  `json:"image_request"`
	// CachedKey is the reply-table key when Route is cached.
	CachedKey string `json:"cached_key,omitempty"`
}

// InboundMessage is what a channel hands to the assistant.
type InboundMessage struct {
	SenderID string
	Text     string
	Kind     MessageKind
	// Audio holds the voice payload when Kind is voice and Text is empty.
	Audio         []byte
	AudioFilename string
}

// Reply is what the assistant hands back to a channel.
type Reply struct {
	Text     string `json:"reply"`
	ImageURL string `json:"image_url,omitempty"`
}

// Outcome labels how a message was resolved in the audit log.
type Outcome string

const (
	OutcomeAnswered            Outcome = "answered"
	OutcomeNotInDocuments      Outcome = "not_in_documents"
	OutcomeRateLimited         Outcome = "rate_limited"
	OutcomeTooLong             Outcome = "too_long"
	OutcomeSuspicious          Outcome = "suspicious"
	OutcomeTranscriptionFailed Outcome = "transcription_failed"
	OutcomeEmpty               Outcome = "empty"
	OutcomeFailed              Outcome = "failed"
)

// ConversationEvent is the write-only audit record for one handled message.
type ConversationEvent struct {
	ID            string      `json:"id"`
	SenderID      string      `json:"sender_id"`
	Input         string      `json:"input"`
	Output        string      `json:"output"`
	Kind          MessageKind `json:"kind"`
	Route         Route       `json:"route,omitempty"`
	Outcome       Outcome     `json:"outcome"`
	Sources       []string    `json:"sources,omitempty"`
	ImageIncluded bool        `json:"image_included"`
	CreatedAt     time.Time   `json:"created_at"`
}

// SafetyLog is written for every safety-routed message in addition to its conversation event.
type SafetyLog struct {
	ID            string          `json:"id"`
	EventID       string          `json:"event_id"`
	SenderID      string          `json:"sender_id"`
	Query         string          `json:"query"`
	Sources       []string        `json:"sources"`
	Grounded      bool            `json:"grounded"`
	Complexity    ComplexityLevel `json:"complexity"`
	ImageIncluded bool            `json:"image_included"`
	CreatedAt     time.Time       `json:"created_at"`
}
