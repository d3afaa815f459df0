package assistant

import (
	"fmt"
	"strings"
	"time"
)

const (
	ErrorReply = "Unable to process your request at the moment.\n" +
		"Please try again or contact your HSE officer directly."
	VoiceFailedReply  = "Voice message could not be understood. Please try again or send a text message."
	EmptyMessageReply = "Please send a short safety question or greeting."
	SuspiciousReply   = "I can only answer workplace safety questions from our safety documents. Please rephrase your question."
	GeneralFallback   = "SafeGuardAI here. Ask me any workplace safety question."
	urgentContactLine = "For urgent safety concerns, contact your HSE officer directly."
)

func rateLimitedReply(limit int, window, retryAfter time.Duration) string {
	return fmt.Sprintf(
		"You have exceeded the message limit.\n"+
			"You have sent %d messages in the last %s.\n"+
			"You can try again in about %s.\n"+
			urgentContactLine,
		limit, windowLabel(window), humanDuration(retryAfter),
	)
}

func tooLongReply(length, max int) string {
	return fmt.Sprintf(
		"Your message is too long (%d characters).\nPlease keep your question under %d characters.",
		length, max,
	)
}

// windowLabel reads as "hour" or "30 minutes" after "in the last".
func windowLabel(d time.Duration) string {
	s := humanDuration(d)
	s = strings.TrimPrefix(s, "an ")
	return strings.TrimPrefix(s, "a ")
}

// humanDuration renders d rounded up to whole minutes, or hours when even.
func humanDuration(d time.Duration) string {
	minutes := int((d + time.Minute - 1) / time.Minute)
	switch {
	case minutes <= 1:
		return "a minute"
	case minutes == 60:
		return "an hour"
	case minutes%60 == 0:
		return fmt.Sprintf("%d hours", minutes/60)
	default:
		return fmt.Sprintf("%d minutes", minutes)
	}
}
