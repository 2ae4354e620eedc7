package sra

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"sra-backend/internal/events"
	"sra-backend/internal/history"
	"sra-backend/internal/llm"
	"sra-backend/internal/sra/prompts"
)

// Reply streams the conversational answer to the user's turn. The reply is
// grounded in the session's most recent upload when one exists: text content
// is retrieved into prompt context, an image is attached to the user message.
// The complete response is persisted when the stream ends.
func (s *Service) Reply(ctx context.Context, req Request) {
	s.emit(events.ChatStart, req, true)

	systemPrompt := prompts.System
	if custom := s.store.ActiveUserPrompt(ctx, req.Email); custom != "" {
		slog.Debug("user custom prompt available", "email", req.Email)
		systemPrompt = fmt.Sprintf(
			"Generic System prompt\n%s\n\nThe user has provided the following custom instructions:\n\n%s\n\nPlease prioritize and strictly adhere to the user's custom instructions above all else when generating your response.",
			systemPrompt, custom,
		)
	}

	turns := s.store.RecentTurns(ctx, req.SessionId, history.DefaultWindow)
	upload := s.store.LatestUpload(ctx, req.SessionId)

	var messages []llms.MessageContent
	switch {
	case upload != nil && upload.FileContent != nil && *upload.FileContent != "":
		docContext, err := s.documentContext(ctx, upload, req.Prompt)
		if err != nil {
			slog.Error("error retrieving document context", "session_id", req.SessionId, "error", err)
			s.emitError(events.ChatError, req, genericErrorMessage)
			return
		}
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt+"\n\nContext: "+docContext))
		messages = append(messages, llm.HistoryMessages(turns)...)
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, req.Prompt))

	case upload != nil && upload.FileUrl != nil && *upload.FileUrl != "":
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt))
		messages = append(messages, llm.HistoryMessages(turns)...)
		messages = append(messages, llm.VisionMessage(req.Prompt, *upload.FileUrl))

	default:
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt))
		messages = append(messages, llm.HistoryMessages(turns)...)
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, req.Prompt))
	}

	var response strings.Builder
	_, err := s.model.GenerateContent(ctx, messages,
		llms.WithTemperature(0.1),
		llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
			if len(chunk) == 0 {
				return nil
			}
			response.Write(chunk)
			s.emit(events.ChatResponse, req, string(chunk))
			return nil
		}),
	)
	if err != nil {
		slog.Error("error streaming reply", "session_id", req.SessionId, "error", err)
		s.emitError(events.ChatError, req, genericErrorMessage)
		return
	}

	slog.Debug("reply stream ended", "session_id", req.SessionId, "length", response.Len())

	if err := s.store.UpsertSystemResponse(ctx, req.SessionId, req.MessageId, req.Email, response.String()); err != nil {
		slog.Error("error saving reply", "session_id", req.SessionId, "message_id", req.MessageId, "error", err)
		s.emitError(events.ChatError, req, genericErrorMessage)
		return
	}

	s.emit(events.ChatEnd, req, false)
}
