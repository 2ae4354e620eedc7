package events

// Lifecycle events published to a session's channel. Every pipeline stage
// emits START, END and ERROR; streamed stages additionally emit one RESPONSE
// per output chunk.
const (
	ChatStart    = "SRA_CHAT_START"
	ChatResponse = "SRA_CHAT_RESPONSE"
	ChatEnd      = "SRA_CHAT_END"
	ChatError    = "SRA_CHAT_ERROR"

	NewChatStart    = "SRA_NEW_CHAT_START"
	NewChatResponse = "SRA_NEW_CHAT_RESPONSE"
	NewChatEnd      = "SRA_NEW_CHAT_END"
	NewChatError    = "SRA_NEW_CHAT_ERROR"

	ImageGenerationStart = "SRA_IMAGE_GENERATION_START"
	ImageGenerationEnd   = "SRA_IMAGE_GENERATION_END"
	ImageGenerationError = "SRA_IMAGE_GENERATION_ERROR"
)

const GeneralError = "general_error"

type Payload struct {
	SessionId string `json:"session_id"`
	MessageId string `json:"message_id"`
	Payload   any    `json:"payload"`
}

type ErrorPayload struct {
	ErrorCode string `json:"error_code"`
	SessionId string `json:"session_id"`
	MessageId string `json:"message_id"`
	Payload   string `json:"payload"`
}

// Publisher delivers a named event to a session's channel. Delivery is
// fire-and-forget: implementations log and swallow failures, a pipeline must
// never abort because an event could not be delivered.
type Publisher interface {
	Emit(event string, data any, channelId string)
}
