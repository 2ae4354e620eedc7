package sra

import (
	"context"
	"log/slog"

	"github.com/tmc/langchaingo/llms"

	"sra-backend/internal/events"
	"sra-backend/internal/history"
	"sra-backend/internal/llm"
	"sra-backend/internal/sra/prompts"
)

// GenerateFromDocument builds an image prompt grounded in the session's most
// recent upload, then generates artwork from it. A text upload contributes
// retrieved passages, an image upload is described directly.
func (s *Service) GenerateFromDocument(ctx context.Context, req Request) string {
	s.emit(events.ImageGenerationStart, req, true)

	upload := s.store.LatestUpload(ctx, req.SessionId)
	if upload == nil {
		s.emitError(events.ImageGenerationError, req, noDocumentMessage)
		return ""
	}

	turns := s.store.RecentTurns(ctx, req.SessionId, history.DefaultWindow)

	var messages []llms.MessageContent
	switch {
	case upload.FileContent != nil && *upload.FileContent != "":
		docContext, err := s.documentContext(ctx, upload, req.Prompt)
		if err != nil {
			slog.Error("error retrieving document context", "session_id", req.SessionId, "error", err)
			s.emitError(events.ImageGenerationError, req, genericErrorMessage)
			return ""
		}
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, prompts.DocumentImage+"\n\nContext: "+docContext))
		messages = append(messages, llm.HistoryMessages(turns)...)
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, req.Prompt))

	case upload.FileUrl != nil && *upload.FileUrl != "":
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, prompts.DocumentImage))
		messages = append(messages, llm.HistoryMessages(turns)...)
		messages = append(messages, llm.VisionMessage(req.Prompt, *upload.FileUrl))

	default:
		s.emitError(events.ImageGenerationError, req, noDocumentMessage)
		return ""
	}

	imagePrompt, err := llm.Completion(ctx, s.model, messages, llms.WithTemperature(0.1))
	if err != nil {
		slog.Error("error building document image prompt", "session_id", req.SessionId, "error", err)
		s.emitError(events.ImageGenerationError, req, genericErrorMessage)
		return ""
	}

	return s.finishImage(ctx, req, imagePrompt)
}
