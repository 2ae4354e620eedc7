package sra

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tmc/langchaingo/llms"

	"sra-backend/internal/docparse"
	"sra-backend/internal/events"
	"sra-backend/internal/llm"
)

// GenerateFromUploadedImage derives a prompt from the session's most recent
// uploaded image and generates new artwork resembling it.
func (s *Service) GenerateFromUploadedImage(ctx context.Context, req Request) string {
	s.emit(events.ImageGenerationStart, req, true)

	upload := s.store.LatestUpload(ctx, req.SessionId)
	if upload == nil {
		s.emitError(events.ImageGenerationError, req, noDocumentMessage)
		return ""
	}
	if !docparse.IsImageType(upload.FileType) || upload.FileUrl == nil || *upload.FileUrl == "" {
		s.emitError(events.ImageGenerationError, req, noReferenceImageMessage)
		return ""
	}

	describe := fmt.Sprintf("Describe this image a prompt to generate a similar image like this please only provide a prompt %s", req.Prompt)
	imagePrompt, err := llm.Completion(ctx, s.model,
		[]llms.MessageContent{llm.VisionMessage(describe, *upload.FileUrl)},
		llms.WithTemperature(0.1),
	)
	if err != nil {
		slog.Error("error describing uploaded image", "session_id", req.SessionId, "error", err)
		s.emitError(events.ImageGenerationError, req, genericErrorMessage)
		return ""
	}

	return s.finishImage(ctx, req, imagePrompt)
}
