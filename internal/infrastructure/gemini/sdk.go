package gemini

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/visualmatch/backend/internal/domain"
	"google.golang.org/genai"
)

// SDKClient implements domain.VisionModel on top of the official Gen AI SDK
type SDKClient struct {
	client *genai.Client
	model  string
}

// NewSDKClient creates a Gemini API backed SDK client. BaseURL and
// APIVersion are only overridden when set.
func NewSDKClient(ctx context.Context, opts ClientOpts, apiVersion string) (*SDKClient, error) {
	httpOptions := genai.HTTPOptions{BaseURL: opts.BaseURL, APIVersion: apiVersion}
	if opts.Timeout > 0 {
		timeout := opts.Timeout
		httpOptions.Timeout = &timeout
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      opts.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: httpOptions,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := opts.Model
	if model == "" {
		model = DefaultModel
	}

	return &SDKClient{client: client, model: model}, nil
}

// GenerateContent sends the prompt and images as one user turn
func (s *SDKClient) GenerateContent(ctx context.Context, prompt string, images ...domain.Image) (string, error) {
	parts := []*genai.Part{genai.NewPartFromText(prompt)}
	for _, img := range images {
		parts = append(parts, &genai.Part{InlineData: &genai.Blob{Data: img.Data, MIMEType: mimeTypeOf(img)}})
	}

	contents := []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}

	start := time.Now()
	result, err := s.client.Models.GenerateContent(ctx, s.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrAIAPIFailure, err)
	}

	if len(result.Candidates) == 0 || result.Candidates[0].Content == nil || len(result.Candidates[0].Content.Parts) == 0 {
		return "", domain.ErrEmptyReply
	}

	text := result.Text()
	if strings.TrimSpace(text) == "" {
		return "", domain.ErrEmptyReply
	}

	event := log.Debug().Str("component", "gemini").Str("model", s.model).Dur("elapsed", time.Since(start))
	if result.UsageMetadata != nil {
		event = event.Int32("inputTokens", result.UsageMetadata.PromptTokenCount).
			Int32("outputTokens", result.UsageMetadata.CandidatesTokenCount)
	}
	event.Msg("content generated")

	return text, nil
}
