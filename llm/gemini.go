package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// geminiProvider implements Provider for Google's Gemini API using the
// native genai SDK rather than the OpenAI-compatible shim, which caps
// the number of inline images per request too low for multi-page
// documents.
//
// Supported vision models:
//
//	gemini-2.5-flash   fast, cost-effective, default
//	gemini-2.5-pro     highest capability
//
// API key: set via config or the GEMINI_API_KEY env var.
type geminiProvider struct {
	cfg Config
}

// NewGemini creates a provider for Google Gemini.
func NewGemini(cfg Config) Provider {
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-flash"
	}
	return &geminiProvider{cfg: cfg}
}

func (p *geminiProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	system, parts := splitChatMessages(req.Messages)
	return p.generate(ctx, req.Model, system, parts, req.Temperature, req.MaxTokens)
}

func (p *geminiProvider) ChatWithImages(ctx context.Context, req VisionChatRequest) (*ChatResponse, error) {
	system, parts, err := splitVisionMessages(req.Messages)
	if err != nil {
		return nil, err
	}
	return p.generate(ctx, req.Model, system, parts, req.Temperature, req.MaxTokens)
}

func (p *geminiProvider) generate(ctx context.Context, model, system string, parts []genai.Part, temperature float64, maxTokens int) (*ChatResponse, error) {
	if len(parts) == 0 {
		return nil, fmt.Errorf("no content parts in request")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(p.cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	defer client.Close()

	if model == "" {
		model = p.cfg.Model
	}
	m := client.GenerativeModel(model)
	temp := float32(temperature)
	m.GenerationConfig = genai.GenerationConfig{Temperature: &temp}
	if maxTokens > 0 {
		tokens := int32(maxTokens)
		m.GenerationConfig.MaxOutputTokens = &tokens
	}
	if system != "" {
		m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}

	resp, err := m.GenerateContent(ctx, parts...)
	if err != nil {
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}

	text := firstText(resp)
	if text == "" {
		return nil, fmt.Errorf("empty gemini response")
	}

	out := &ChatResponse{Content: text, Model: model}
	if resp.UsageMetadata != nil {
		out.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		out.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
		out.TotalTokens = int(resp.UsageMetadata.TotalTokenCount)
	}
	if len(resp.Candidates) > 0 {
		out.FinishReason = strings.ToLower(resp.Candidates[0].FinishReason.String())
	}
	return out, nil
}

// splitChatMessages separates the system prompt from user text. Gemini
// takes system instructions out of band.
func splitChatMessages(messages []Message) (string, []genai.Part) {
	var system string
	var parts []genai.Part
	for _, msg := range messages {
		if msg.Role == "system" {
			system = msg.Content
			continue
		}
		parts = append(parts, genai.Text(msg.Content))
	}
	return system, parts
}

func splitVisionMessages(messages []VisionMessage) (string, []genai.Part, error) {
	var system string
	var parts []genai.Part
	for _, msg := range messages {
		for _, part := range msg.Content {
			switch part.Type {
			case "text":
				if msg.Role == "system" {
					system = part.Text
					continue
				}
				parts = append(parts, genai.Text(part.Text))
			case "image_url":
				if part.ImageURL == nil {
					continue
				}
				blob, err := blobFromDataURL(part.ImageURL.URL)
				if err != nil {
					return "", nil, err
				}
				parts = append(parts, blob)
			}
		}
	}
	return system, parts, nil
}

// blobFromDataURL decodes a data:<mime>;base64,<payload> URL into an
// inline blob for the genai SDK.
func blobFromDataURL(url string) (*genai.Blob, error) {
	mime := "image/jpeg"
	payload := url
	if strings.HasPrefix(url, "data:") {
		idx := strings.IndexByte(url, ',')
		if idx < 0 {
			return nil, fmt.Errorf("malformed data URL")
		}
		meta := url[len("data:"):idx]
		if semi := strings.IndexByte(meta, ';'); semi >= 0 {
			meta = meta[:semi]
		}
		if meta != "" {
			mime = meta
		}
		payload = url[idx+1:]
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decoding image payload: %w", err)
	}
	return &genai.Blob{MIMEType: mime, Data: data}, nil
}

func firstText(resp *genai.GenerateContentResponse) string {
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok && string(text) != "" {
				return string(text)
			}
		}
	}
	return ""
}
