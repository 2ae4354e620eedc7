package sra

import (
	"context"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"sra-backend/internal/events"
	"sra-backend/internal/llm"
	"sra-backend/internal/sra/prompts"
)

const upliftingInstruction = "Using provided image generate an empowering positive message to the user, " +
	"when generating the message consider the system prompt and provided image details as well, " +
	"Please don't include quotes in the response message."

// SendUpliftingMessage streams an encouraging follow-up grounded in the
// freshly generated artwork and records it on the turn.
func (s *Service) SendUpliftingMessage(ctx context.Context, req Request, imageUrl string) {
	slog.Debug("generating uplifting message", "session_id", req.SessionId)
	s.emit(events.NewChatStart, req, true)

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, prompts.System),
		llm.VisionMessage(upliftingInstruction, imageUrl),
	}

	var response strings.Builder
	_, err := s.model.GenerateContent(ctx, messages,
		llms.WithTemperature(0.3),
		llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
			if len(chunk) == 0 {
				return nil
			}
			response.Write(chunk)
			s.emit(events.NewChatResponse, req, string(chunk))
			return nil
		}),
	)
	if err != nil {
		slog.Error("error streaming uplifting message", "session_id", req.SessionId, "error", err)
		s.emitError(events.NewChatError, req, genericErrorMessage)
		return
	}

	if err := s.store.UpsertSystemResponse(ctx, req.SessionId, req.MessageId, req.Email, response.String()); err != nil {
		slog.Error("error saving uplifting message", "session_id", req.SessionId, "message_id", req.MessageId, "error", err)
		s.emitError(events.NewChatError, req, genericErrorMessage)
		return
	}

	s.emit(events.NewChatEnd, req, false)
}
