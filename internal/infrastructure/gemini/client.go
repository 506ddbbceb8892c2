package gemini

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
	"github.com/visualmatch/backend/internal/domain"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1"
	DefaultModel   = "gemini-2.0-flash-lite"
	DefaultTimeout = 60 * time.Second
)

// ClientOpts configures both Gemini clients. Zero values select the defaults.
type ClientOpts struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Client calls the Gemini generateContent REST endpoint
type Client struct {
	httpClient *resty.Client
	apiKey     string
	model      string
}

type inlineData struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// NewClient creates a REST client for the generateContent endpoint
func NewClient(opts ClientOpts) *Client {
	c := Client{apiKey: opts.APIKey, model: DefaultModel}
	if opts.Model != "" {
		c.model = opts.Model
	}

	baseURL := DefaultBaseURL
	if opts.BaseURL != "" {
		baseURL = strings.TrimSuffix(opts.BaseURL, "/")
	}
	timeout := DefaultTimeout
	if opts.Timeout > 0 {
		timeout = opts.Timeout
	}

	c.httpClient = resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeaders(map[string]string{
			"Accept":       "application/json",
			"Content-Type": "application/json",
		})

	return &c
}

// Model returns the model name requests are sent to
func (c *Client) Model() string {
	return c.model
}

// GenerateContent sends the prompt and images as a single user turn and
// returns the text of the first candidate's first part
func (c *Client) GenerateContent(ctx context.Context, prompt string, images ...domain.Image) (string, error) {
	parts := make([]part, 0, len(images)+1)
	parts = append(parts, part{Text: prompt})
	for _, img := range images {
		parts = append(parts, part{InlineData: &inlineData{MIMEType: mimeTypeOf(img), Data: img.Base64()}})
	}

	var result generateResponse
	var errResult apiError
	res, err := c.httpClient.R().
		SetContext(ctx).
		SetPathParam("model", c.model).
		SetQueryParam("key", c.apiKey).
		SetBody(generateRequest{Contents: []content{{Parts: parts}}}).
		SetResult(&result).
		SetError(&errResult).
		Post("/models/{model}:generateContent")

	if err := handleError(res, err, &errResult); err != nil {
		return "", err
	}

	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return "", domain.ErrEmptyReply
	}
	text := result.Candidates[0].Content.Parts[0].Text
	if strings.TrimSpace(text) == "" {
		return "", domain.ErrEmptyReply
	}

	log.Debug().Str("component", "gemini").Int("images", len(images)).Int("replyLength", len(text)).Msg("content generated")
	return text, nil
}

func handleError(res *resty.Response, err error, errResult *apiError) error {
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrAIAPIFailure, err)
	}
	if res.IsError() {
		if msg := errResult.Error.Message; msg != "" {
			return fmt.Errorf("%w: status %d: %s", domain.ErrAIAPIFailure, res.StatusCode(), msg)
		}
		return fmt.Errorf("%w: status %d: %s", domain.ErrAIAPIFailure, res.StatusCode(), res.String())
	}
	return nil
}

func mimeTypeOf(img domain.Image) string {
	if img.MIMEType == "" {
		return domain.DefaultImageMIMEType
	}
	return img.MIMEType
}
