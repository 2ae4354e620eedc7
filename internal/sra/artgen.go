package sra

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/tmc/langchaingo/llms"

	"sra-backend/internal/events"
	"sra-backend/internal/imaging"
	"sra-backend/internal/llm"
	"sra-backend/internal/sra/prompts"
	"sra-backend/internal/storage"
)

// Prompts longer than this are summarized before being sent to the image
// provider.
const maxArtPromptChars = 4000

// aspectSpec maps a requested aspect ratio onto a provider size plus an
// optional post-generation crop, used when the provider cannot produce the
// ratio natively.
type aspectSpec struct {
	size   string
	cropTo string
}

var aspectSpecs = map[string]aspectSpec{
	"1:1":  {size: "1024x1024"},
	"16:9": {size: "1792x1024"},
	"3:4":  {size: "1024x1792", cropTo: "1024x1400"},
	"4:3":  {size: "1792x1024", cropTo: "1792x1400"},
	"9:16": {size: "1024x1792"},
}

func aspectFor(ratio string) aspectSpec {
	if spec, ok := aspectSpecs[ratio]; ok {
		return spec
	}
	return aspectSpecs["1:1"]
}

// Generator produces an image for a finished prompt at a provider size and
// returns the provider-hosted url.
type Generator interface {
	Generate(ctx context.Context, prompt, size string) (string, error)
}

type DallEGenerator struct {
	client openai.Client
}

var _ Generator = (*DallEGenerator)(nil)

func NewDallEGenerator(apiKey string) *DallEGenerator {
	return &DallEGenerator{client: openai.NewClient(option.WithAPIKey(apiKey))}
}

var generateSizes = map[string]openai.ImageGenerateParamsSize{
	"1024x1024": openai.ImageGenerateParamsSize1024x1024,
	"1792x1024": openai.ImageGenerateParamsSize1792x1024,
	"1024x1792": openai.ImageGenerateParamsSize1024x1792,
}

func (g *DallEGenerator) Generate(ctx context.Context, prompt, size string) (string, error) {
	generateSize, ok := generateSizes[size]
	if !ok {
		generateSize = openai.ImageGenerateParamsSize1024x1024
	}

	res, err := g.client.Images.Generate(ctx, openai.ImageGenerateParams{
		Prompt: prompt,
		Model:  openai.ImageModelDallE3,
		N:      openai.Int(1),
		Size:   generateSize,
	})
	if err != nil {
		return "", fmt.Errorf("error generating image: %w", err)
	}
	if len(res.Data) == 0 || res.Data[0].URL == "" {
		return "", fmt.Errorf("image generation returned no data")
	}
	return res.Data[0].URL, nil
}

// generateArt runs the shared generation tail every pipeline ends in: the
// prompt length guard, prompt enrichment, the provider call, and the
// crop-and-store step. Returns the durable url of the stored artwork.
func (s *Service) generateArt(ctx context.Context, req Request, imageDesc string) (string, error) {
	slog.Debug("starting image generation", "aspect_ratio", req.AspectRatio, "art_style", req.ArtStyle)

	if utf8.RuneCountInString(imageDesc) > maxArtPromptChars {
		summary, err := llm.Completion(ctx, s.model,
			[]llms.MessageContent{llms.TextParts(llms.ChatMessageTypeHuman,
				prompts.Format(prompts.PromptSummary, map[string]string{"user_prompt": imageDesc}))},
			llms.WithModel(llm.SummarizerModel),
			llms.WithTemperature(0.3),
		)
		if err != nil {
			return "", fmt.Errorf("error summarizing image prompt: %w", err)
		}
		imageDesc = summary
	}

	imagePrompt := fmt.Sprintf(
		"user prompt: %s\nart style: %s\nart style description: %s\nPlease generate an image based on the user prompt",
		imageDesc, req.ArtStyle, req.ArtStyleDescription,
	)

	enriched, err := llm.Completion(ctx, s.model,
		[]llms.MessageContent{llms.TextParts(llms.ChatMessageTypeHuman,
			prompts.Format(prompts.ImageGeneration, map[string]string{"image_desc": imagePrompt}))},
		llms.WithTemperature(0.9),
	)
	if err != nil {
		return "", fmt.Errorf("error building image prompt: %w", err)
	}

	spec := aspectFor(req.AspectRatio)
	providerUrl, err := s.generator.Generate(ctx, enriched, spec.size)
	if err != nil {
		return "", err
	}

	key := fmt.Sprintf("spectral_resonance_art_%d.png", time.Now().Unix())
	if spec.cropTo != "" {
		data, err := storage.FetchBytes(ctx, providerUrl)
		if err != nil {
			return "", err
		}
		cropped, err := imaging.CenterCrop(data, spec.cropTo)
		if err != nil {
			return "", fmt.Errorf("error cropping image: %w", err)
		}
		return s.objects.PutObject(ctx, key, "image/png", bytes.NewReader(cropped))
	}
	return s.objects.UploadFromURL(ctx, providerUrl, key, "image/png")
}

// finishImage generates the artwork for a finished prompt, records it on the
// turn, and emits the closing lifecycle event. Returns the stored url, or
// empty if the pipeline failed.
func (s *Service) finishImage(ctx context.Context, req Request, imagePrompt string) string {
	imageUrl, err := s.generateArt(ctx, req, imagePrompt)
	if err != nil {
		slog.Error("error generating image", "session_id", req.SessionId, "error", err)
		s.emitError(events.ImageGenerationError, req, genericErrorMessage)
		return ""
	}

	if err := s.store.AttachImage(ctx, req.SessionId, req.MessageId, imageUrl); err != nil {
		slog.Error("error saving generated image", "session_id", req.SessionId, "message_id", req.MessageId, "error", err)
	}

	s.emit(events.ImageGenerationEnd, req, imageUrl)
	return imageUrl
}
