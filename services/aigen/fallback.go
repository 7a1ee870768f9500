package aigensvc

import (
	"context"
	"fmt"

	"github.com/elimisha/maabara/core"
)

// fallbackService tries the primary provider and silently substitutes the
// static content on any failure. A broken generation feature degrades
// gracefully instead of blocking the educational activity, so this service
// never returns an error.
type fallbackService struct {
	primary core.GameContentService
	logger  core.Logger
}

var _ core.GameContentService = (*fallbackService)(nil)

func NewFallbackService(primary core.GameContentService, logger core.Logger) core.GameContentService {
	return &fallbackService{primary: primary, logger: logger}
}

func (svc *fallbackService) GenerateGame(ctx context.Context, prompt string) (core.GamePayload, error) {
	if svc.primary != nil {
		payload, err := svc.primary.GenerateGame(ctx, prompt)
		if err == nil && payload.HasBehavior() {
			return payload, nil
		}
		if err != nil {
			svc.logger.Warn(fmt.Sprintf("game generation failed, using fallback: %v", err))
		}
	}
	return core.FallbackGamePayload(), nil
}

func (svc *fallbackService) GenerateExperimentContent(ctx context.Context, prompt string) (core.ExperimentContent, error) {
	if svc.primary != nil {
		content, err := svc.primary.GenerateExperimentContent(ctx, prompt)
		if err == nil && !content.IsEmpty() {
			return content, nil
		}
		if err != nil {
			svc.logger.Warn(fmt.Sprintf("experiment content generation failed, using fallback: %v", err))
		}
	}
	return core.FallbackExperimentContent(), nil
}
