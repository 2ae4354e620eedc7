package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"sra-backend/internal/history"
	"sra-backend/internal/llm"
	"sra-backend/internal/sra/prompts"
)

type ContextUsage struct {
	UsesUploadedImage    bool `json:"uses_uploaded_image"`
	UsesUploadedDocument bool `json:"uses_uploaded_document"`
	UsesChatHistory      bool `json:"uses_chat_history"`
}

// Prediction is the classifier's structured view of what the user asked for.
// Several flags may be true at once; the dispatcher applies its own
// precedence. It is never persisted.
type Prediction struct {
	IsGeneralQuery                 bool `json:"is_general_query"`
	IsImageGeneration              bool `json:"is_image_generation"`
	IsImageVariant                 bool `json:"is_image_variant"`
	IsCustomVariant                bool `json:"is_custom_variant"`
	IsImageEdit                    bool `json:"is_image_edit"`
	IsImageBasedOnUploadedDocument bool `json:"is_image_based_on_uploaded_document"`
	IsImageBasedOnUploadedImage    bool `json:"is_image_based_on_uploaded_image"`
	IsNeedMoreClarity              bool `json:"is_need_more_clarity"`

	NoOfImages   int          `json:"no_of_images"`
	ContextUsage ContextUsage `json:"context_usage"`
}

type Request struct {
	UserPrompt          string
	AspectRatio         string
	ArtStyle            string
	ArtStyleDescription string
	SessionId           string
	MessageId           string
}

type Classifier struct {
	model llm.Model
	store *history.Store
}

func NewClassifier(model llm.Model, store *history.Store) *Classifier {
	return &Classifier{model: model, store: store}
}

// Classify produces a prediction for the user's turn. On any failure (LLM
// error, missing or malformed function call) it returns nil: the caller must
// treat an absent prediction as "take no generation action".
func (c *Classifier) Classify(ctx context.Context, req Request) *Prediction {
	turns := c.store.RecentTurns(ctx, req.SessionId, history.DefaultWindow)
	uploads := c.store.Uploads(ctx, req.SessionId)

	var b strings.Builder
	fmt.Fprintf(&b, "input: %s\n", req.UserPrompt)
	fmt.Fprintf(&b, "aspect_ratio: %s\nart_style: %s\nart_style_description: %s\n", req.AspectRatio, req.ArtStyle, req.ArtStyleDescription)
	fmt.Fprintf(&b, "session_id: %s\nmessage_id: %s\n", req.SessionId, req.MessageId)

	b.WriteString("uploaded_files:\n")
	for _, upload := range uploads {
		kind := "document"
		if upload.FileUrl != nil {
			kind = "binary"
		}
		fmt.Fprintf(&b, "- type=%s kind=%s uploaded_at=%s\n", upload.FileType, kind, upload.CreatedAt.Format("2006-01-02 15:04:05"))
	}

	b.WriteString("chat_history:\n")
	for _, turn := range turns {
		if turn.IsUser && turn.Message != nil {
			fmt.Fprintf(&b, "user: %s\n", *turn.Message)
		} else if !turn.IsUser && turn.Response != nil {
			fmt.Fprintf(&b, "assistant: %s\n", *turn.Response)
		}
	}

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompts.Format(prompts.IntentExtraction, map[string]string{"context": b.String()})),
	}

	resp, err := c.model.GenerateContent(ctx, messages,
		llms.WithTemperature(0.2),
		llms.WithFunctions([]llms.FunctionDefinition{requestSchema}),
	)
	if err != nil {
		slog.Error("error analyzing user prompt", "session_id", req.SessionId, "error", err)
		return nil
	}
	if len(resp.Choices) == 0 || resp.Choices[0].FuncCall == nil {
		slog.Warn("classifier returned no function call", "session_id", req.SessionId)
		return nil
	}

	var prediction Prediction
	if err := json.Unmarshal([]byte(resp.Choices[0].FuncCall.Arguments), &prediction); err != nil {
		slog.Error("error parsing classifier output", "session_id", req.SessionId, "error", err)
		return nil
	}
	if prediction.NoOfImages == 0 {
		prediction.NoOfImages = 1
	}

	slog.Info("analyzed user prompt", "session_id", req.SessionId, "prediction", fmt.Sprintf("%+v", prediction))
	return &prediction
}

var requestSchema = llms.FunctionDefinition{
	Name:        "analyze_image_request",
	Description: "Analyze the user's image request",
	Parameters: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"is_general_query": map[string]any{
				"type":        "boolean",
				"description": "True if the user is asking a general question not related to image generation or editing.",
			},
			"is_image_generation": map[string]any{
				"type":        "boolean",
				"description": "True if the user is requesting to generate a new image.",
			},
			"is_image_variant": map[string]any{
				"type":        "boolean",
				"description": "True if the user is requesting a variant of an uploaded image without providing specific details.",
			},
			"is_custom_variant": map[string]any{
				"type":        "boolean",
				"description": "True if the user is requesting a custom variant of an uploaded image with specific modifications.",
			},
			"is_image_edit": map[string]any{
				"type":        "boolean",
				"description": "True if the user is requesting to edit a specific portion of an uploaded image (assuming a mask layer is provided).",
			},
			"is_image_based_on_uploaded_document": map[string]any{
				"type":        "boolean",
				"description": "True if the user is requesting an image based on an uploaded document.",
			},
			"is_image_based_on_uploaded_image": map[string]any{
				"type":        "boolean",
				"description": "True if the user is requesting an image based on an uploaded image.",
			},
			"is_need_more_clarity": map[string]any{
				"type":        "boolean",
				"description": "True if the user's request lacks sufficient details about how the image should look.",
			},
			"no_of_images": map[string]any{
				"type":        "integer",
				"description": "The number of images requested by the user. Default to 1 if not specified.",
			},
			"context_usage": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"uses_uploaded_image":    map[string]any{"type": "boolean"},
					"uses_uploaded_document": map[string]any{"type": "boolean"},
					"uses_chat_history":      map[string]any{"type": "boolean"},
				},
				"description": "Indicates whether the request makes use of uploaded images, documents, or chat history.",
			},
		},
		"required": []string{
			"is_general_query",
			"is_image_generation",
			"is_image_variant",
			"is_custom_variant",
			"is_image_edit",
			"is_image_based_on_uploaded_document",
			"is_image_based_on_uploaded_image",
			"is_need_more_clarity",
			"no_of_images",
			"context_usage",
		},
	},
}
