package usecase

import (
	"strings"

	"github.com/lithammer/dedent"
)

func prompt(text string) string {
	return strings.TrimSpace(dedent.Dedent(text))
}

var analysisPrompt = prompt(`
	Analyze this product image and provide detailed structured info:
	1. Main objects detected (comma-separated)
	2. Dominant colors in HEX codes
	3. Style description (modern, vintage, minimalist, etc.)
	4. Image description (one sentence)
	5. Confidence score (0-1)
	6. Search query for finding similar products

	Format:
	objects: [list], colors: [hex codes], style: [description], description: [text], confidence: [number], query: [search terms]
`)

var comparisonPrompt = prompt(`
	Compare these two product images and provide:
	1. Similarity score (0-100)
	2. Matching features (comma-separated)
	3. Confidence in comparison (0-1)
	Format: similarity: [number], features: [list], confidence: [number]
`)
