package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"sra-backend/internal/database"
)

// Model is the completion interface the pipelines consume; langchaingo's
// OpenAI client satisfies it, tests substitute fakes.
type Model = llms.Model

const (
	ChatModel       = "gpt-4o"
	SummarizerModel = "gpt-4o-mini"
)

func NewOpenAI(apiKey string) (*openai.LLM, error) {
	client, err := openai.New(openai.WithToken(apiKey), openai.WithModel(ChatModel))
	if err != nil {
		return nil, fmt.Errorf("could not create OpenAI client: %w", err)
	}
	return client, nil
}

// Completion runs a single generation and returns the first choice's text.
func Completion(ctx context.Context, model Model, messages []llms.MessageContent, options ...llms.CallOption) (string, error) {
	resp, err := model.GenerateContent(ctx, messages, options...)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("llm returned no choices")
	}
	return resp.Choices[0].Content, nil
}

// VisionMessage builds a human message pairing text with an image attachment.
func VisionMessage(text, imageUrl string) llms.MessageContent {
	return llms.MessageContent{
		Role: llms.ChatMessageTypeHuman,
		Parts: []llms.ContentPart{
			llms.TextPart(text),
			llms.ImageURLPart(imageUrl),
		},
	}
}

// HistoryMessages maps persisted turns into alternating human/AI messages for
// prompting. Turns missing their text field are skipped.
func HistoryMessages(turns []database.ChatTurn) []llms.MessageContent {
	var messages []llms.MessageContent
	for _, turn := range turns {
		if turn.IsUser {
			if turn.Message != nil && *turn.Message != "" {
				messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, *turn.Message))
			}
		} else if turn.Response != nil && *turn.Response != "" {
			messages = append(messages, llms.TextParts(llms.ChatMessageTypeAI, *turn.Response))
		}
	}
	return messages
}
