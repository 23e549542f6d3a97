package ai

import (
	"context"
	"log/slog"

	"github.com/myrjola/whodunit/internal/errors"
	"github.com/myrjola/whodunit/internal/models"
	"github.com/sashabaranov/go-openai"
)

// Generator produces all generated game content through the OpenAI backend.
// It implements game.Generator and game.StreamingGenerator.
type Generator struct {
	logger *slog.Logger
	client *Client
}

func NewGenerator(logger *slog.Logger, client *Client) *Generator {
	return &Generator{
		logger: logger.With("source", "ai.Generator"),
		client: client,
	}
}

type castResponse struct {
	Characters []models.Character `json:"characters"`
}

func (g *Generator) Cast(ctx context.Context, environment string, size int) ([]models.Character, error) {
	var response castResponse
	err := g.client.CompleteJSON(ctx, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleUser, Content: castUserPrompt(environment, size)},
	}, &response)
	if err != nil {
		return nil, errors.Wrap(err, "generate cast", slog.String("environment", environment))
	}
	return response.Characters, nil
}

func (g *Generator) Scenario(ctx context.Context, environment string, cast []models.Character) (models.Scenario, error) {
	var scenario models.Scenario
	err := g.client.CompleteJSON(ctx, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleUser, Content: scenarioUserPrompt(environment, cast)},
	}, &scenario)
	if err != nil {
		return models.Scenario{}, errors.Wrap(err, "generate scenario")
	}
	return scenario, nil
}

func (g *Generator) Narration(ctx context.Context, scenario models.Scenario) (string, error) {
	narration, err := g.client.SyncCompletion(ctx, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleUser, Content: narrationUserPrompt(scenario)},
	})
	if err != nil {
		return "", errors.Wrap(err, "generate narration")
	}
	return narration, nil
}

func (g *Generator) Introduction(ctx context.Context, character models.Character, scenario models.Scenario) (string, error) {
	introduction, err := g.client.SyncCompletion(ctx, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleUser, Content: introductionUserPrompt(character, scenario)},
	})
	if err != nil {
		return "", errors.Wrap(err, "generate introduction", slog.String("character", character.Name))
	}
	return introduction, nil
}

func (g *Generator) Question(ctx context.Context, character models.Character, scenario models.Scenario, history []models.Message) (string, error) {
	question, err := g.client.SyncCompletion(ctx, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleUser, Content: questionUserPrompt(character, scenario, history)},
	})
	if err != nil {
		return "", errors.Wrap(err, "generate question", slog.String("character", character.Name))
	}
	return question, nil
}

func (g *Generator) Answer(
	ctx context.Context,
	character models.Character,
	background string,
	scenario models.Scenario,
	history []models.Message,
) (string, error) {
	answer, err := g.client.SyncCompletion(ctx, answerMessages(character, background, scenario, history))
	if err != nil {
		return "", errors.Wrap(err, "generate answer", slog.String("character", character.Name))
	}
	return answer, nil
}

func (g *Generator) AnswerStream(
	ctx context.Context,
	character models.Character,
	background string,
	scenario models.Scenario,
	history []models.Message,
	onDelta func(string),
) (string, error) {
	answer, err := g.client.StreamCompletion(ctx, answerMessages(character, background, scenario, history), onDelta)
	if err != nil {
		return "", errors.Wrap(err, "stream answer", slog.String("character", character.Name))
	}
	return answer, nil
}

// answerMessages maps the conversation onto chat roles: the character speaks
// as the assistant, the detective as the user.
func answerMessages(
	character models.Character,
	background string,
	scenario models.Scenario,
	history []models.Message,
) []openai.ChatCompletionMessage {
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: answerSystemPrompt(character, background, scenario)},
	}
	for _, message := range history {
		switch message.Speaker {
		case models.SpeakerDetective:
			messages = append(messages, openai.ChatCompletionMessage{
				Role: openai.ChatMessageRoleUser, Content: message.Text,
			})
		case models.SpeakerCharacter:
			messages = append(messages, openai.ChatCompletionMessage{
				Role: openai.ChatMessageRoleAssistant, Content: message.Text,
			})
		case models.SpeakerNarrator:
		}
	}
	return messages
}
