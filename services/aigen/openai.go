package aigensvc

import (
	"context"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/pkg/errors"

	"github.com/elimisha/maabara/core"
)

type openaiService struct {
	client openai.Client
	model  string
	logger core.Logger
}

var _ core.GameContentService = (*openaiService)(nil)

func NewOpenAIService(conf *core.Config, logger core.Logger) (core.GameContentService, error) {
	if conf.OpenAIAPIKey == "" {
		return nil, errors.New("openai API key is not configured")
	}
	return &openaiService{
		client: openai.NewClient(option.WithAPIKey(conf.OpenAIAPIKey)),
		model:  conf.OpenAIModel,
		logger: logger,
	}, nil
}

func (svc *openaiService) GenerateGame(ctx context.Context, prompt string) (core.GamePayload, error) {
	raw, err := svc.generate(ctx, gamePrompt+prompt)
	if err != nil {
		return core.GamePayload{}, err
	}
	var payload core.GamePayload
	if err := unmarshalResponse(raw, &payload); err != nil {
		return core.GamePayload{}, err
	}
	return payload, nil
}

func (svc *openaiService) GenerateExperimentContent(ctx context.Context, prompt string) (core.ExperimentContent, error) {
	raw, err := svc.generate(ctx, experimentPrompt+prompt)
	if err != nil {
		return core.ExperimentContent{}, err
	}
	var content core.ExperimentContent
	if err := unmarshalResponse(raw, &content); err != nil {
		return core.ExperimentContent{}, err
	}
	return content, nil
}

func (svc *openaiService) generate(ctx context.Context, prompt string) (string, error) {
	resp, err := svc.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(svc.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", errors.Wrap(err, "openai generation")
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", errors.New("openai returned no content")
	}
	return resp.Choices[0].Message.Content, nil
}
