package aigensvc

import (
	"context"

	"github.com/pkg/errors"
	"google.golang.org/genai"

	"github.com/elimisha/maabara/core"
)

type geminiService struct {
	client *genai.Client
	model  string
	logger core.Logger
}

var _ core.GameContentService = (*geminiService)(nil)

func NewGeminiService(ctx context.Context, conf *core.Config, logger core.Logger) (core.GameContentService, error) {
	if conf.GeminiAPIKey == "" {
		return nil, errors.New("gemini API key is not configured")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: conf.GeminiAPIKey})
	if err != nil {
		return nil, errors.Wrap(err, "creating gemini client")
	}
	return &geminiService{
		client: client,
		model:  conf.GeminiModel,
		logger: logger,
	}, nil
}

func (svc *geminiService) GenerateGame(ctx context.Context, prompt string) (core.GamePayload, error) {
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

func (svc *geminiService) GenerateExperimentContent(ctx context.Context, prompt string) (core.ExperimentContent, error) {
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

func (svc *geminiService) generate(ctx context.Context, prompt string) (string, error) {
	resp, err := svc.client.Models.GenerateContent(
		ctx,
		svc.model,
		genai.Text(prompt),
		&genai.GenerateContentConfig{ResponseMIMEType: "application/json"},
	)
	if err != nil {
		return "", errors.Wrap(err, "gemini generation")
	}
	text := resp.Text()
	if text == "" {
		return "", errors.New("gemini returned no content")
	}
	return text, nil
}
