package sra

import (
	"context"

	"sra-backend/internal/events"
)

// GenerateResonanceArt runs the direct text-to-image pipeline: the user's
// prompt goes straight into the shared generation tail.
func (s *Service) GenerateResonanceArt(ctx context.Context, req Request) string {
	s.emit(events.ImageGenerationStart, req, true)
	return s.finishImage(ctx, req, req.Prompt)
}
