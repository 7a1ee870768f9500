package aigensvc

import (
	"context"

	"github.com/elimisha/maabara/core"
)

// dummyService serves the static fallback content. Used directly in DEV/TEST
// and as the substitute provider behind FallbackService.
type dummyService struct{}

var _ core.GameContentService = (*dummyService)(nil)

func NewDummyService() core.GameContentService {
	return &dummyService{}
}

func (dummyService) GenerateGame(_ context.Context, _ string) (core.GamePayload, error) {
	return core.FallbackGamePayload(), nil
}

func (dummyService) GenerateExperimentContent(_ context.Context, _ string) (core.ExperimentContent, error) {
	return core.FallbackExperimentContent(), nil
}
