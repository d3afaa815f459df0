package render

const (
	MsgWelcome = `Hello, I'm SafeGuardAI, your workplace safety assistant.

Ask me any safety question in plain words or send a voice note. I answer only from our company safety documents and name the documents I used.

Examples:
- What PPE do I need for welding?
- What are the lockout/tagout steps?
- Show me the PPE for working at height`

	MsgHelp = `*Commands*
/start - introduction
/help - this message

Send a question as text or as a voice note.
Add "show me" or "draw" to get an illustration with the answer.
For emergencies contact your HSE officer directly.`

	ErrGeneric     = `Something went wrong. Please try again or contact your HSE officer directly.`
	ErrUnsupported = `I can read text and voice messages only. Please type your safety question or record a voice note.`
	ErrUnknownCmd  = `Unknown command. Use /help to see what I can do.`
)

// FloodWarning escalates with the number of warnings already sent in a row.
func FloodWarning(count int) string {
	switch {
	case count <= 1:
		return "You are sending messages too quickly. Please wait a moment."
	case count == 2:
		return "Too many messages. Please wait about 30 seconds before the next one."
	default:
		return "You are still sending messages too often. Please wait a minute."
	}
}
