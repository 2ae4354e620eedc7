package sra

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"sra-backend/internal/billing"
	"sra-backend/internal/database"
	"sra-backend/internal/events"
	"sra-backend/internal/history"
	"sra-backend/internal/llm"
)

// scriptedModel routes calls by their options: a function-call request gets
// the scripted prediction, a streaming request gets the scripted chunks, and
// everything else gets the scripted completion.
type scriptedModel struct {
	mu sync.Mutex

	prediction   string
	streamChunks []string
	completion   string
	summary      string

	summarized bool
}

func (m *scriptedModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	opts := llms.CallOptions{}
	for _, opt := range options {
		opt(&opts)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(opts.Functions) > 0 {
		if m.prediction == "" {
			return nil, fmt.Errorf("classifier unavailable")
		}
		return &llms.ContentResponse{Choices: []*llms.ContentChoice{{
			FuncCall: &llms.FunctionCall{Name: "analyze_image_request", Arguments: m.prediction},
		}}}, nil
	}

	if opts.StreamingFunc != nil {
		var full strings.Builder
		for _, chunk := range m.streamChunks {
			full.WriteString(chunk)
			if err := opts.StreamingFunc(ctx, []byte(chunk)); err != nil {
				return nil, err
			}
		}
		return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: full.String()}}}, nil
	}

	if opts.Model == llm.SummarizerModel {
		m.summarized = true
		return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: m.summary}}}, nil
	}

	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: m.completion}}}, nil
}

func (m *scriptedModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return m.completion, nil
}

type fakeGenerator struct {
	mu      sync.Mutex
	prompts []string
	sizes   []string
	url     string
	err     error
}

func (g *fakeGenerator) Generate(ctx context.Context, prompt, size string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, prompt)
	g.sizes = append(g.sizes, size)
	if g.err != nil {
		return "", g.err
	}
	return g.url, nil
}

// fakeObjectStore returns deterministic urls and captures the last object
// written, so crop output can be inspected.
type fakeObjectStore struct {
	mu       sync.Mutex
	lastKey  string
	lastData []byte
}

func (s *fakeObjectStore) PutObject(ctx context.Context, key, contentType string, data io.Reader) (string, error) {
	body, err := io.ReadAll(data)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.lastKey = key
	s.lastData = body
	s.mu.Unlock()
	return "https://media.test/" + key, nil
}

func (s *fakeObjectStore) UploadFromURL(ctx context.Context, srcUrl, key, contentType string) (string, error) {
	s.mu.Lock()
	s.lastKey = key
	s.mu.Unlock()
	return "https://media.test/" + key, nil
}

type fakeEmbedder struct{}

func embedText(text string) []float32 {
	vec := make([]float32, 8)
	for i, r := range text {
		vec[i%8] += float32(r % 13)
	}
	return vec
}

func (fakeEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))
	for i, text := range texts {
		vecs[i] = embedText(text)
	}
	return vecs, nil
}

func (fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return embedText(text), nil
}

const (
	testEmail   = "jane@example.com"
	testChannel = "channel-1"
)

func setupService(t *testing.T, model llm.Model, generator Generator, publisher events.Publisher) (*Service, *fakeObjectStore, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.GetMigrator(db).Migrate())

	require.NoError(t, db.Create(&database.User{
		Id:            uuid.New(),
		Email:         testEmail,
		Name:          "Jane",
		CreditBalance: decimal.NewFromInt(100),
	}).Error)
	require.NoError(t, db.Create(&database.CostPerAction{
		Action: database.ActionResonanceArtQuery, Endpoint: "/sra/query", Cost: decimal.NewFromInt(5),
	}).Error)
	require.NoError(t, db.Create(&database.CostPerAction{
		Action: database.ActionResonanceArtImageGen, Endpoint: "/sra/query", Cost: decimal.NewFromInt(10),
	}).Error)

	objects := &fakeObjectStore{}
	svc := NewService(model, fakeEmbedder{}, generator, publisher, history.NewStore(db), billing.NewCreditService(db), objects)
	return svc, objects, db
}

func testRequest() Request {
	return Request{
		SessionId:   "session-1",
		MessageId:   "message-1",
		Prompt:      "make me a poster of a calm ocean at dawn",
		AspectRatio: "1:1",
		ArtStyle:    "watercolor",
		Email:       testEmail,
		ChannelId:   testChannel,
	}
}

func TestQueryTurnEventSequence(t *testing.T) {
	model := &scriptedModel{
		prediction:   `{"is_image_generation": true, "no_of_images": 1}`,
		streamChunks: []string{"Here is ", "your artwork."},
		completion:   "a calm ocean at dawn, watercolor, soft light",
	}
	generator := &fakeGenerator{url: "https://provider.test/raw.png"}
	publisher := events.NewInMemoryPublisher()
	svc, _, db := setupService(t, model, generator, publisher)

	svc.HandleQuery(context.Background(), testRequest())

	assert.Equal(t, []string{
		events.ChatStart,
		events.ChatResponse,
		events.ChatResponse,
		events.ChatEnd,
		events.ImageGenerationStart,
		events.ImageGenerationEnd,
		events.NewChatStart,
		events.NewChatResponse,
		events.NewChatResponse,
		events.NewChatEnd,
	}, publisher.EventNames())

	recorded := publisher.Events()
	for _, e := range recorded {
		assert.Equal(t, testChannel, e.ChannelId)
	}

	// The image END event carries the stored url.
	endPayload := recorded[5].Data.(events.Payload)
	imageUrl, ok := endPayload.Payload.(string)
	require.True(t, ok)
	assert.Contains(t, imageUrl, "spectral_resonance_art_")

	// One system turn for the message: the uplifting message overwrote the
	// reply, the image url is attached.
	var turns []database.ChatTurn
	require.NoError(t, db.Where("session_id = ? AND is_user = ?", "session-1", false).Find(&turns).Error)
	require.Len(t, turns, 1)
	assert.Equal(t, "Here is your artwork.", *turns[0].Response)
	assert.Equal(t, imageUrl, *turns[0].ImageUrl)

	// Both the query and the image generation were debited.
	var user database.User
	require.NoError(t, db.Where("email = ?", testEmail).First(&user).Error)
	assert.True(t, user.CreditBalance.Equal(decimal.NewFromInt(85)), "balance %s", user.CreditBalance)
}

func TestDocumentPipelineTakesPrecedence(t *testing.T) {
	model := &scriptedModel{
		prediction:   `{"is_image_based_on_uploaded_document": true, "is_image_generation": true, "no_of_images": 1}`,
		streamChunks: []string{"Sure."},
		completion:   "an illustration of the quarterly report themes",
	}
	generator := &fakeGenerator{url: "https://provider.test/raw.png"}
	publisher := events.NewInMemoryPublisher()
	svc, _, db := setupService(t, model, generator, publisher)

	content := "The report highlights oceans of opportunity across every region."
	require.NoError(t, db.Create(&database.FileUpload{
		Id: uuid.New(), SessionId: "session-1", FileType: "text/plain", FileContent: &content,
	}).Error)

	svc.HandleQuery(context.Background(), testRequest())

	starts := 0
	for _, name := range publisher.EventNames() {
		if name == events.ImageGenerationStart {
			starts++
		}
	}
	assert.Equal(t, 1, starts, "exactly one pipeline must run")

	generator.mu.Lock()
	defer generator.mu.Unlock()
	require.Len(t, generator.prompts, 1)
}

func TestAbsentPredictionEndsTurnAfterReply(t *testing.T) {
	model := &scriptedModel{
		prediction:   "",
		streamChunks: []string{"Just ", "chatting."},
	}
	generator := &fakeGenerator{url: "https://provider.test/raw.png"}
	publisher := events.NewInMemoryPublisher()
	svc, _, db := setupService(t, model, generator, publisher)

	svc.HandleQuery(context.Background(), testRequest())

	assert.Equal(t, []string{
		events.ChatStart,
		events.ChatResponse,
		events.ChatResponse,
		events.ChatEnd,
	}, publisher.EventNames())

	var turn database.ChatTurn
	require.NoError(t, db.Where("session_id = ? AND is_user = ?", "session-1", false).First(&turn).Error)
	assert.Equal(t, "Just chatting.", *turn.Response)

	// Only the query debit happened.
	var user database.User
	require.NoError(t, db.Where("email = ?", testEmail).First(&user).Error)
	assert.True(t, user.CreditBalance.Equal(decimal.NewFromInt(95)), "balance %s", user.CreditBalance)
}

func TestVariantWithoutSourceImageReportsError(t *testing.T) {
	model := &scriptedModel{
		prediction:   `{"is_custom_variant": true, "no_of_images": 1}`,
		streamChunks: []string{"On it."},
	}
	generator := &fakeGenerator{url: "https://provider.test/raw.png"}
	publisher := events.NewInMemoryPublisher()
	svc, _, _ := setupService(t, model, generator, publisher)

	svc.HandleQuery(context.Background(), testRequest())

	names := publisher.EventNames()
	assert.Contains(t, names, events.ImageGenerationError)
	assert.NotContains(t, names, events.ImageGenerationEnd)
	assert.NotContains(t, names, events.NewChatStart)

	for _, e := range publisher.Events() {
		if e.Event == events.ImageGenerationError {
			payload := e.Data.(events.ErrorPayload)
			assert.Equal(t, events.GeneralError, payload.ErrorCode)
			assert.Equal(t, noGeneratedImageMessage, payload.Payload)
		}
	}

	generator.mu.Lock()
	defer generator.mu.Unlock()
	assert.Empty(t, generator.prompts)
}

func TestDocumentPipelineWithoutUploadsReportsError(t *testing.T) {
	model := &scriptedModel{
		prediction:   `{"is_image_based_on_uploaded_document": true, "no_of_images": 1}`,
		streamChunks: []string{"Sure."},
	}
	generator := &fakeGenerator{url: "https://provider.test/raw.png"}
	publisher := events.NewInMemoryPublisher()
	svc, _, _ := setupService(t, model, generator, publisher)

	svc.HandleQuery(context.Background(), testRequest())

	names := publisher.EventNames()
	assert.Contains(t, names, events.ImageGenerationError)
	assert.NotContains(t, names, events.ImageGenerationEnd)
	assert.NotContains(t, names, events.NewChatStart)

	for _, e := range publisher.Events() {
		if e.Event == events.ImageGenerationError {
			payload := e.Data.(events.ErrorPayload)
			assert.Equal(t, events.GeneralError, payload.ErrorCode)
			assert.Equal(t, noDocumentMessage, payload.Payload)
		}
	}

	generator.mu.Lock()
	defer generator.mu.Unlock()
	assert.Empty(t, generator.prompts)
}

func TestUploadedImagePipelineWithoutUploadsReportsError(t *testing.T) {
	model := &scriptedModel{
		prediction:   `{"is_image_based_on_uploaded_image": true, "no_of_images": 1}`,
		streamChunks: []string{"Sure."},
	}
	generator := &fakeGenerator{url: "https://provider.test/raw.png"}
	publisher := events.NewInMemoryPublisher()
	svc, _, _ := setupService(t, model, generator, publisher)

	svc.HandleQuery(context.Background(), testRequest())

	names := publisher.EventNames()
	assert.Contains(t, names, events.ImageGenerationError)
	assert.NotContains(t, names, events.ImageGenerationEnd)
	assert.NotContains(t, names, events.NewChatStart)

	for _, e := range publisher.Events() {
		if e.Event == events.ImageGenerationError {
			payload := e.Data.(events.ErrorPayload)
			assert.Equal(t, events.GeneralError, payload.ErrorCode)
			assert.Equal(t, noDocumentMessage, payload.Payload)
		}
	}

	generator.mu.Lock()
	defer generator.mu.Unlock()
	assert.Empty(t, generator.prompts)
}

func TestInsufficientCreditsAbortsTurn(t *testing.T) {
	model := &scriptedModel{
		prediction:   `{"is_image_generation": true, "no_of_images": 1}`,
		streamChunks: []string{"hi"},
	}
	publisher := events.NewInMemoryPublisher()
	svc, _, db := setupService(t, model, &fakeGenerator{url: "u"}, publisher)

	require.NoError(t, db.Model(&database.User{}).
		Where("email = ?", testEmail).
		Update("credit_balance", decimal.NewFromInt(1)).Error)

	svc.HandleQuery(context.Background(), testRequest())

	names := publisher.EventNames()
	require.Equal(t, []string{events.ChatError}, names)

	payload := publisher.Events()[0].Data.(events.ErrorPayload)
	assert.Contains(t, payload.Payload, "insufficient credits")
}

func TestVariantUsesLatestGeneratedImage(t *testing.T) {
	model := &scriptedModel{
		prediction:   `{"is_image_variant": true, "no_of_images": 1}`,
		streamChunks: []string{"Variant ", "coming up."},
		completion:   "the same scene but at night",
	}
	generator := &fakeGenerator{url: "https://provider.test/raw.png"}
	publisher := events.NewInMemoryPublisher()
	svc, _, db := setupService(t, model, generator, publisher)

	source := "https://media.test/earlier.png"
	require.NoError(t, db.Create(&database.ChatTurn{
		SessionId: "session-1", MessageId: "m0", IsUser: false, ImageUrl: &source,
	}).Error)

	svc.HandleQuery(context.Background(), testRequest())

	names := publisher.EventNames()
	assert.Contains(t, names, events.ImageGenerationEnd)
	assert.Contains(t, names, events.NewChatEnd)

	generator.mu.Lock()
	defer generator.mu.Unlock()
	require.Len(t, generator.prompts, 1)
}
