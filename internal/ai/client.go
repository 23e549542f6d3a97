package ai

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"

	"github.com/myrjola/whodunit/internal/errors"
	"github.com/sashabaranov/go-openai"
)

const MaxTokens = 4096

// Client wraps the OpenAI API with the three interaction shapes the game
// needs: plain completion, streamed completion, and JSON-mode structured
// completion. It also serves embeddings for the retrieval index.
type Client struct {
	client *openai.Client
	model  string
}

func NewClient(apiKey string, model string) *Client {
	if model == "" {
		model = openai.GPT4TurboPreview
	}
	return &Client{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

func (c *Client) SyncCompletion(ctx context.Context, messages []openai.ChatCompletionMessage) (string, error) {
	completion, err := c.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{ //nolint:exhaustruct // this is better for readability
			Model:     c.model,
			MaxTokens: MaxTokens,
			Messages:  messages,
		},
	)
	if err != nil {
		return "", errors.Wrap(err, "create chat completion")
	}
	if len(completion.Choices) == 0 {
		return "", errors.New("completion returned no choices")
	}
	return completion.Choices[0].Message.Content, nil
}

// StreamCompletion feeds each content delta to onDelta as it arrives and
// returns the assembled completion.
func (c *Client) StreamCompletion(
	ctx context.Context,
	messages []openai.ChatCompletionMessage,
	onDelta func(delta string),
) (string, error) {
	stream, err := c.client.CreateChatCompletionStream(
		ctx,
		openai.ChatCompletionRequest{ //nolint:exhaustruct // this is better for readability
			Model:     c.model,
			MaxTokens: MaxTokens,
			Messages:  messages,
		},
	)
	if err != nil {
		return "", errors.Wrap(err, "create chat completion stream")
	}
	defer stream.Close()

	var full strings.Builder
	for {
		response, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			return full.String(), nil
		}
		if recvErr != nil {
			return "", errors.Wrap(recvErr, "receive completion delta")
		}
		if len(response.Choices) == 0 {
			continue
		}
		delta := response.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		full.WriteString(delta)
		if onDelta != nil {
			onDelta(delta)
		}
	}
}

// CompleteJSON requests a JSON-mode completion and unmarshals it into v.
func (c *Client) CompleteJSON(ctx context.Context, messages []openai.ChatCompletionMessage, v any) error {
	completion, err := c.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{ //nolint:exhaustruct // this is better for readability
			Model:     c.model,
			MaxTokens: MaxTokens,
			Messages:  messages,
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
		},
	)
	if err != nil {
		return errors.Wrap(err, "create JSON completion")
	}
	if len(completion.Choices) == 0 {
		return errors.New("completion returned no choices")
	}
	content := stripCodeFence(completion.Choices[0].Message.Content)
	if err = json.Unmarshal([]byte(content), v); err != nil {
		return errors.Wrap(err, "unmarshal JSON completion", slog.String("content", content))
	}
	return nil
}

// Embed implements retrieval.Embedder.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	response, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{ //nolint:exhaustruct // this is better for readability
		Model: openai.AdaEmbeddingV2,
		Input: []string{text},
	})
	if err != nil {
		return nil, errors.Wrap(err, "create embedding")
	}
	if len(response.Data) == 0 {
		return nil, errors.New("embedding response has no data")
	}
	return response.Data[0].Embedding, nil
}

// stripCodeFence removes a surrounding markdown code fence that some models
// emit even in JSON mode.
func stripCodeFence(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	return strings.TrimSpace(content)
}
