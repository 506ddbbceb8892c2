package domain

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// AnalysisRecord is the structured interpretation of the AI description of an uploaded image
type AnalysisRecord struct {
	DetectedObjects  []string `json:"detectedObjects"`
	DominantColors   []string `json:"dominantColors"`
	StyleDescription string   `json:"styleDescription"`
	ImageDescription string   `json:"imageDescription"`
	Confidence       float64  `json:"confidence"` // Expected 0-1, not clamped
	SearchQuery      string   `json:"searchQuery"`
}

// ComparisonResult is the parsed outcome of comparing two product images
type ComparisonResult struct {
	SimilarityScore  int      `json:"similarityScore"` // 0-100
	MatchingFeatures []string `json:"matchingFeatures"`
	Confidence       float64  `json:"confidence"`
}

// Image is an embedded image payload sent inline to the AI endpoint
type Image struct {
	Data     []byte
	MIMEType string
}

// DefaultImageMIMEType is assumed when a payload does not declare its type
const DefaultImageMIMEType = "image/jpeg"

// Base64 returns the standard base64 encoding of the image bytes
func (i Image) Base64() string {
	return base64.StdEncoding.EncodeToString(i.Data)
}

// DataURL renders the image as a data URL
func (i Image) DataURL() string {
	return fmt.Sprintf("data:%s;base64,%s", i.MIMEType, i.Base64())
}

// ParseImageData decodes either a data URL ("data:image/png;base64,...") or a bare
// base64 string. Bare payloads are assumed to be JPEG.
func ParseImageData(payload string) (*Image, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil, fmt.Errorf("%w: empty payload", ErrInvalidImage)
	}

	mimeType := DefaultImageMIMEType
	encoded := payload

	if strings.HasPrefix(payload, "data:") {
		header, data, ok := strings.Cut(payload, ",")
		if !ok {
			return nil, fmt.Errorf("%w: malformed data URL", ErrInvalidImage)
		}
		meta := strings.TrimPrefix(header, "data:")
		if !strings.HasSuffix(meta, ";base64") {
			return nil, fmt.Errorf("%w: data URL is not base64 encoded", ErrInvalidImage)
		}
		if declared := strings.TrimSuffix(meta, ";base64"); declared != "" {
			mimeType = declared
		}
		encoded = data
	}

	if !strings.HasPrefix(mimeType, "image/") {
		return nil, fmt.Errorf("%w: unsupported media type %q", ErrInvalidImage, mimeType)
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrInvalidImage)
	}

	return &Image{Data: data, MIMEType: mimeType}, nil
}

// Credentials are the three values whose presence makes the matcher usable
type Credentials struct {
	GeminiAPIKey string
	SearchAPIKey string
	SearchCX     string
}

// Configured reports whether every credential is present
func (c Credentials) Configured() bool {
	return c.GeminiAPIKey != "" && c.SearchAPIKey != "" && c.SearchCX != ""
}

// SearchRequest carries the image to match. Exactly one source must be set.
type SearchRequest struct {
	ImageData string `json:"imageData,omitempty"` // data URL or bare base64
	ImageURL  string `json:"imageUrl,omitempty"`
	Upload    *Image `json:"-"`
}
