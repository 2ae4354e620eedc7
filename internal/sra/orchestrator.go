package sra

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"sra-backend/internal/database"
	"sra-backend/internal/events"
	"sra-backend/internal/intent"
)

// HandleQuery runs one full user turn: debit the query, stream the reply
// while the intent classifier runs, then dispatch at most one image pipeline
// followed by its follow-up message. A top-level failure is reported on the
// chat channel with the raw error text.
func (s *Service) HandleQuery(ctx context.Context, req Request) {
	if err := s.handleQuery(ctx, req); err != nil {
		slog.Error("error responding to user query", "session_id", req.SessionId, "error", err)
		s.emitError(events.ChatError, req, err.Error())
	}
}

func (s *Service) handleQuery(ctx context.Context, req Request) error {
	description := fmt.Sprintf("SRA query by %s on %s", req.Email, time.Now().UTC())
	if err := s.billing.Debit(ctx, req.Email, database.ActionResonanceArtQuery, description); err != nil {
		return err
	}

	var prediction *intent.Prediction
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		s.Reply(groupCtx, req)
		return nil
	})
	group.Go(func() error {
		prediction = s.classifier.Classify(groupCtx, intent.Request{
			UserPrompt:          req.Prompt,
			AspectRatio:         req.AspectRatio,
			ArtStyle:            req.ArtStyle,
			ArtStyleDescription: req.ArtStyleDescription,
			SessionId:           req.SessionId,
			MessageId:           req.MessageId,
		})
		return nil
	})
	if err := group.Wait(); err != nil {
		return err
	}

	// An absent prediction means the turn ends with the reply.
	if prediction == nil {
		return nil
	}

	pipeline, pipelineName := s.pipelineFor(prediction)
	if pipeline == nil {
		return nil
	}
	slog.Debug("dispatching image pipeline", "session_id", req.SessionId, "pipeline", pipelineName)

	description = fmt.Sprintf("SRA image generation based on %s by %s on %s", pipelineName, req.Email, time.Now().UTC())
	if err := s.billing.Debit(ctx, req.Email, database.ActionResonanceArtImageGen, description); err != nil {
		return err
	}

	imageUrl := pipeline(ctx, req)
	if imageUrl == "" {
		return nil
	}

	s.SendUpliftingMessage(ctx, req, imageUrl)
	return nil
}

// pipelineFor picks the single pipeline to run for a prediction, checking
// flags in precedence order. A variant request and a custom variant request
// run the same pipeline.
func (s *Service) pipelineFor(p *intent.Prediction) (func(context.Context, Request) string, string) {
	switch {
	case p.IsImageBasedOnUploadedDocument:
		return s.GenerateFromDocument, "uploaded document"
	case p.IsImageBasedOnUploadedImage:
		return s.GenerateFromUploadedImage, "uploaded image"
	case p.IsImageVariant:
		return s.GenerateVariant, "image variant"
	case p.IsCustomVariant:
		return s.GenerateVariant, "custom variant"
	case p.IsImageGeneration:
		return s.GenerateResonanceArt, "resonance art"
	}
	return nil, ""
}
