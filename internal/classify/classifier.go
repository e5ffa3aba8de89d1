// Package classify assigns each speaker's company to a category.
package classify

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/speakerpipe/internal/llm"
	"github.com/ppiankov/speakerpipe/internal/model"
)

const (
	systemPrompt = "You are an expert at classifying companies in the construction industry."
	temperature  = 0.3

	maxResults    = 3
	maxContentLen = 200
)

// Classifier classifies enriched speakers through an LLM provider.
type Classifier struct {
	provider llm.Provider
	model    string
	logger   *zap.Logger
}

// New creates a Classifier. modelName may be empty to use the provider default.
func New(provider llm.Provider, modelName string) *Classifier {
	return &Classifier{
		provider: provider,
		model:    modelName,
		logger:   zap.L(),
	}
}

type reply struct {
	Category   string  `json:"category"`
	Reasoning  string  `json:"reasoning"`
	Confidence float64 `json:"confidence"`
}

// Classify never fails. Any provider or parse error yields the degraded
// classification, and an unrecognized category becomes Other.
func (c *Classifier) Classify(ctx context.Context, s model.Speaker) model.Classification {
	resp, err := c.provider.Complete(ctx, llm.Request{
		System:      systemPrompt,
		Prompt:      Prompt(s),
		Model:       c.model,
		Temperature: temperature,
		JSON:        true,
	})
	if err != nil {
		return c.fail(s, err)
	}

	var r reply
	if err := llm.ExtractJSON(resp.Text, &r); err != nil {
		return c.fail(s, err)
	}

	out := model.Classification{
		Category:   model.ParseCategory(r.Category),
		Reasoning:  r.Reasoning,
		Confidence: clamp(r.Confidence),
	}
	c.logger.Debug("classified",
		zap.String("company", s.Company),
		zap.String("category", string(out.Category)),
		zap.Float64("confidence", out.Confidence),
	)
	return out
}

func (c *Classifier) fail(s model.Speaker, err error) model.Classification {
	c.logger.Warn("classification failed",
		zap.String("company", s.Company),
		zap.String("speaker", s.Name),
		zap.Error(err),
	)
	return model.FailedClassification(err)
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// Prompt builds the classification prompt from the company, the speaker's
// job title and the top search results.
func Prompt(s model.Speaker) string {
	var ctx strings.Builder
	fmt.Fprintf(&ctx, "Company: %s\nSpeaker Job Title: %s\n\n", s.Company, s.JobTitle)
	ctx.WriteString("Search Results:\n")
	for i, r := range s.SearchResults {
		if i >= maxResults {
			break
		}
		fmt.Fprintf(&ctx, "%d. %s\n%s...\n\n", i+1, r.Title, clip(r.Content, maxContentLen))
	}

	return fmt.Sprintf(`Based on the following information about a company, classify it into one of these categories:

1. Builder - General contractors, specialty contractors, engineering firms, construction companies that physically build projects
2. Owner - Property owners, developers, real estate companies, government agencies that commission construction projects
3. Partner - Technology vendors, software companies, consultants that could partner with DroneDeploy
4. Competitor - Companies that offer drone services, aerial imagery, or competing construction tech solutions
5. Customer - Companies already using DroneDeploy
6. Other - Doesn't fit the above categories or unclear

%s
DroneDeploy provides drone-based reality capture and aerial data analytics for construction sites.

Provide your classification in the following JSON format:
{
    "category": "Builder|Owner|Partner|Competitor|Customer|Other",
    "reasoning": "Brief explanation for the classification",
    "confidence": 0.0-1.0
}`, ctx.String())
}

// clip truncates s to at most n runes.
func clip(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
