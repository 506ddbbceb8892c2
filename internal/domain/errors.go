package domain

import "errors"

var (
	// ErrNotConfigured is returned when one of the Gemini key, search key or search engine ID is missing
	ErrNotConfigured = errors.New("visual matcher is not configured")

	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrInvalidImage is returned when the uploaded image payload cannot be decoded
	ErrInvalidImage = errors.New("invalid image payload")

	// ErrImageFetch is returned when an image cannot be downloaded from its URL
	ErrImageFetch = errors.New("image fetch failed")

	// ErrAIAPIFailure is returned when the Gemini API request fails
	ErrAIAPIFailure = errors.New("AI API request failed")

	// ErrEmptyReply is returned when the Gemini API answers without any text
	ErrEmptyReply = errors.New("empty reply from AI API")

	// ErrSearchAPIFailure is returned when the web or shopping search request fails
	ErrSearchAPIFailure = errors.New("search API request failed")

	// ErrInvalidRange is returned when a similarity range is outside [0,100] or inverted
	ErrInvalidRange = errors.New("invalid similarity range")

	// ErrResultSetNotFound is returned when a result set is unknown or expired
	ErrResultSetNotFound = errors.New("result set not found")
)
