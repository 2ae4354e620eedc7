package sra

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tmc/langchaingo/llms"

	"sra-backend/internal/events"
	"sra-backend/internal/llm"
)

// GenerateVariant produces a fresh take on the session's most recently
// generated artwork, steered by the user's requested modification. Plain
// variant requests and custom variant requests share this pipeline.
func (s *Service) GenerateVariant(ctx context.Context, req Request) string {
	s.emit(events.ImageGenerationStart, req, true)

	sourceUrl := s.store.LatestGeneratedImage(ctx, req.SessionId)
	if sourceUrl == "" {
		s.emitError(events.ImageGenerationError, req, noGeneratedImageMessage)
		return ""
	}

	describe := fmt.Sprintf("Describe this image a prompt to generate a similar image but with this user requested modification %s", req.Prompt)
	imagePrompt, err := llm.Completion(ctx, s.model,
		[]llms.MessageContent{llm.VisionMessage(describe, sourceUrl)},
		llms.WithTemperature(0.1),
	)
	if err != nil {
		slog.Error("error describing generated image", "session_id", req.SessionId, "error", err)
		s.emitError(events.ImageGenerationError, req, genericErrorMessage)
		return ""
	}

	return s.finishImage(ctx, req, imagePrompt)
}
