// Package email drafts outreach emails for eligible speakers.
package email

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ppiankov/speakerpipe/internal/llm"
	"github.com/ppiankov/speakerpipe/internal/model"
)

const (
	systemPrompt = "You are an expert at writing compelling B2B outreach emails for the construction technology industry."
	temperature  = 0.7
)

var categoryMessaging = map[model.Category]string{
	model.CategoryBuilder: "As a construction professional, you understand the challenges of managing complex projects, ensuring safety, and delivering on time and budget. DroneDeploy helps contractors like you capture real-time site progress, identify issues early, and improve communication with stakeholders.",
	model.CategoryOwner:   "As someone overseeing construction projects, you need visibility into progress, budget tracking, and quality assurance. DroneDeploy provides owners with unprecedented transparency into their projects through regular aerial captures and AI-powered insights.",
}

const genericMessaging = "DroneDeploy's construction solutions help organizations capture, analyze, and share reality data from their job sites."

// Generator writes emails through an LLM provider.
type Generator struct {
	provider llm.Provider
	model    string
	eligible map[model.Category]bool
	logger   *zap.Logger
}

// New creates a Generator that only writes to speakers in eligible.
func New(provider llm.Provider, modelName string, eligible map[model.Category]bool) *Generator {
	return &Generator{
		provider: provider,
		model:    modelName,
		eligible: eligible,
		logger:   zap.L(),
	}
}

// Eligible reports whether a speaker's category receives an email.
func (g *Generator) Eligible(s model.Speaker) bool {
	return g.eligible[s.Category]
}

// Generate returns an empty draft for ineligible speakers without calling
// the provider. Failures are logged and also yield an empty draft.
func (g *Generator) Generate(ctx context.Context, s model.Speaker) model.EmailDraft {
	if !g.Eligible(s) {
		return model.EmailDraft{}
	}

	draft, err := g.generate(ctx, s)
	if err != nil {
		g.logger.Warn("email generation failed",
			zap.String("speaker", s.Name),
			zap.String("company", s.Company),
			zap.Error(err),
		)
		return model.EmailDraft{}
	}

	g.logger.Debug("generated email", zap.String("speaker", s.Name), zap.String("company", s.Company))
	return draft
}

func (g *Generator) generate(ctx context.Context, s model.Speaker) (model.EmailDraft, error) {
	resp, err := g.provider.Complete(ctx, llm.Request{
		System:      systemPrompt,
		Prompt:      Prompt(s),
		Model:       g.model,
		Temperature: temperature,
		JSON:        true,
	})
	if err != nil {
		return model.EmailDraft{}, err
	}

	var draft model.EmailDraft
	if err := llm.ExtractJSON(resp.Text, &draft); err != nil {
		return model.EmailDraft{}, err
	}

	draft.Subject = strings.TrimSpace(draft.Subject)
	draft.Body = strings.TrimSpace(draft.Body)
	if draft.Subject == "" || draft.Body == "" {
		return model.EmailDraft{}, eris.New("reply is missing subject or body")
	}
	return draft, nil
}

// SessionContext describes the speaker's talks for the prompt.
func SessionContext(sessions []model.Session) string {
	switch len(sessions) {
	case 0:
		return ""
	case 1:
		return "\n- Speaking session: " + sessions[0].Title
	default:
		return fmt.Sprintf("\n- Speaking at %d sessions including: %s", len(sessions), sessions[0].Title)
	}
}

// Prompt builds the email prompt for one speaker.
func Prompt(s model.Speaker) string {
	messaging, ok := categoryMessaging[s.Category]
	if !ok {
		messaging = genericMessaging
	}

	return fmt.Sprintf(`Generate a personalized email to invite a conference speaker to visit our booth #42 at Digital Construction Week.

Speaker Information:
- Name: %s
- Company: %s
- Job Title: %s
- Category: %s%s

Context: %s

Requirements:
- Subject line should be compelling and relevant to their role/company
- Email body should be 3-4 sentences
- If they have sessions, reference their talk(s) naturally
- Mention booth #42 and free gift
- Professional but engaging tone
- Focus on specific value for their role/company type
- Include a clear call to action

Provide the email in the following JSON format:
{
    "subject": "Email subject line",
    "body": "Email body text"
}`, s.Name, s.Company, s.JobTitle, s.Category, SessionContext(s.Sessions), messaging)
}
