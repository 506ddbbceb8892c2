package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/visualmatch/backend/internal/domain"
)

// AnalysisService asks the vision model to describe and compare images and
// interprets the free-text replies
type AnalysisService struct {
	model domain.VisionModel
}

// NewAnalysisService creates an analysis service backed by model
func NewAnalysisService(model domain.VisionModel) *AnalysisService {
	return &AnalysisService{model: model}
}

// Analyze describes an uploaded image. Transport failures are returned;
// an unparseable reply degrades to the default record.
func (s *AnalysisService) Analyze(ctx context.Context, img domain.Image) (*domain.AnalysisRecord, error) {
	reply, err := s.model.GenerateContent(ctx, analysisPrompt, img)
	if err != nil {
		return nil, fmt.Errorf("analyze image: %w", err)
	}

	record := ParseAnalysis(reply)
	log.Debug().
		Str("component", "analysis").
		Strs("objects", record.DetectedObjects).
		Str("query", record.SearchQuery).
		Float64("confidence", record.Confidence).
		Msg("image analyzed")

	return &record, nil
}

// Compare scores the visual similarity of the uploaded image and a candidate
// thumbnail. An empty reply is not an error: it yields the default comparison.
func (s *AnalysisService) Compare(ctx context.Context, uploaded, candidate domain.Image) (*domain.ComparisonResult, error) {
	reply, err := s.model.GenerateContent(ctx, comparisonPrompt, uploaded, candidate)
	if err != nil && !errors.Is(err, domain.ErrEmptyReply) {
		return nil, fmt.Errorf("compare images: %w", err)
	}

	result := ParseComparison(reply)
	return &result, nil
}
