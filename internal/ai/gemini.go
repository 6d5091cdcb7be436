// Package ai binds the pipeline's generative collaborators to the Gemini API.
package ai

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/genai"

	"github.com/skribas/audio-scribe/internal/pipeline"
)

// Gemini implements the detector, transcriber, cleaner, and refiner
// collaborators over one genai client.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini creates the collaborator set.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("no API key")
	}
	if model == "" {
		return nil, fmt.Errorf("no model")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("genai client: %w", err)
	}
	goapp.Log.Info().Str("model", model).Msg("Gemini")
	return &Gemini{client: client, model: model}, nil
}

// Detect returns the spoken language of the recording as a free-text label.
func (g *Gemini) Detect(ctx context.Context, data []byte, mime string) (string, error) {
	contents := []*genai.Content{{Role: genai.RoleUser, Parts: []*genai.Part{
		{Text: detectPrompt},
		{InlineData: &genai.Blob{MIMEType: mime, Data: data}},
	}}}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return "", unwrapAPIErr(err)
	}
	lang := strings.TrimSpace(respText(resp))
	if lang == "" {
		return "", fmt.Errorf("empty detection answer")
	}
	return lang, nil
}

// Transcribe streams raw transcript chunks.
func (g *Gemini) Transcribe(ctx context.Context, data []byte, mime string) iter.Seq2[string, error] {
	contents := []*genai.Content{{Role: genai.RoleUser, Parts: []*genai.Part{
		{Text: transcribePrompt},
		{InlineData: &genai.Blob{MIMEType: mime, Data: data}},
	}}}
	return g.stream(ctx, contents)
}

// Clean streams the formatted transcript.
func (g *Gemini) Clean(ctx context.Context, raw, srcLang, dstLang string) iter.Seq2[string, error] {
	contents := []*genai.Content{{Role: genai.RoleUser, Parts: []*genai.Part{
		{Text: cleanPrompt(srcLang, dstLang)},
		{Text: raw},
	}}}
	return g.stream(ctx, contents)
}

// Refine streams the structured document.
func (g *Gemini) Refine(ctx context.Context, raw string, contentType pipeline.ContentType,
	outputFormat pipeline.OutputFormat, lang string) iter.Seq2[string, error] {
	contents := []*genai.Content{{Role: genai.RoleUser, Parts: []*genai.Part{
		{Text: refinePrompt(contentType, outputFormat, lang)},
		{Text: raw},
	}}}
	return g.stream(ctx, contents)
}

// stream adapts the genai response sequence to plain text chunks, in arrival
// order, at most once each.
func (g *Gemini) stream(ctx context.Context, contents []*genai.Content) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for chunk, err := range g.client.Models.GenerateContentStream(ctx, g.model, contents, nil) {
			if err != nil {
				yield("", unwrapAPIErr(err))
				return
			}
			txt := respText(chunk)
			if txt == "" {
				continue
			}
			if !yield(txt, nil) {
				return
			}
		}
	}
}

func respText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if p.Text != "" {
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}

func unwrapAPIErr(err error) error {
	if e, ok := err.(*apierror.APIError); ok {
		if u := e.Unwrap(); u != nil {
			return u
		}
	}
	return err
}
