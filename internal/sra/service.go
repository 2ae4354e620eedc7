// Package sra implements the Spectral Resonance Art session orchestrator:
// the streamed conversational reply, intent-driven image generation
// pipelines, and the follow-up message that accompanies each artwork.
package sra

import (
	"context"

	"github.com/tmc/langchaingo/embeddings"

	"sra-backend/internal/billing"
	"sra-backend/internal/database"
	"sra-backend/internal/events"
	"sra-backend/internal/history"
	"sra-backend/internal/intent"
	"sra-backend/internal/llm"
	"sra-backend/internal/retrieval"
	"sra-backend/internal/storage"
)

// User-facing messages carried on error events. Pipelines report failures to
// the session channel and return; errors never propagate past a pipeline.
const (
	genericErrorMessage     = "Something went wrong while processing your request please try again"
	noDocumentMessage       = "Sorry, we couldn't find any reference document to generate a custom variant"
	noReferenceImageMessage = "Sorry, we couldn't find any reference images to generate a custom variant make sure image format is jpg, jpeg, png"
	noGeneratedImageMessage = "Sorry, we couldn't find any image to generate a custom variant"
)

const indexCacheSize = 32

// Request carries one user turn through the orchestrator.
type Request struct {
	SessionId           string
	MessageId           string
	Prompt              string
	AspectRatio         string
	ArtStyle            string
	ArtStyleDescription string
	Email               string
	ChannelId           string
}

type Service struct {
	model      llm.Model
	embedder   embeddings.Embedder
	generator  Generator
	publisher  events.Publisher
	store      *history.Store
	billing    billing.Service
	objects    storage.ObjectStore
	classifier *intent.Classifier
	indexes    *retrieval.IndexCache
}

func NewService(
	model llm.Model,
	embedder embeddings.Embedder,
	generator Generator,
	publisher events.Publisher,
	store *history.Store,
	billingService billing.Service,
	objects storage.ObjectStore,
) *Service {
	return &Service{
		model:      model,
		embedder:   embedder,
		generator:  generator,
		publisher:  publisher,
		store:      store,
		billing:    billingService,
		objects:    objects,
		classifier: intent.NewClassifier(model, store),
		indexes:    retrieval.NewIndexCache(indexCacheSize),
	}
}

func (s *Service) emit(event string, req Request, payload any) {
	s.publisher.Emit(event, events.Payload{
		SessionId: req.SessionId,
		MessageId: req.MessageId,
		Payload:   payload,
	}, req.ChannelId)
}

func (s *Service) emitError(event string, req Request, message string) {
	s.publisher.Emit(event, events.ErrorPayload{
		ErrorCode: events.GeneralError,
		SessionId: req.SessionId,
		MessageId: req.MessageId,
		Payload:   message,
	}, req.ChannelId)
}

// documentContext returns the passages of the uploaded document most
// relevant to the query, ready to inline as prompt context.
func (s *Service) documentContext(ctx context.Context, upload *database.FileUpload, query string) (string, error) {
	index, err := s.indexes.GetOrBuild(ctx, s.embedder, upload.Id, *upload.FileContent)
	if err != nil {
		return "", err
	}
	return index.Query(ctx, query, retrieval.TopK)
}
