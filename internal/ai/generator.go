package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/creamininja/backend/internal/apperrors"
	"github.com/creamininja/backend/internal/config"
	"github.com/creamininja/backend/internal/logging"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

const systemInstruction = `You are a recipe developer for homemade ice cream and frozen desserts.
Given a request, respond with a single JSON object and nothing else, using exactly these keys:
{"title": string, "description": string, "category": string, "ingredients": [string], "steps": [string]}.
Ingredients include quantities. Steps are numbered-free imperative sentences.`

// GeneratedRecipe is the structured output of a generation call. It carries
// recipe content only; the caller decides whether to persist it.
type GeneratedRecipe struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Ingredients []string `json:"ingredients"`
	Steps       []string `json:"steps"`
}

// Generator produces recipes from a text prompt, optionally guided by an
// image of ingredients or a finished dessert.
type Generator struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
}

// NewGenerator builds a client for the configured provider.
func NewGenerator(cfg config.AIConfig) *Generator {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Generator{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    defaultBaseURL,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
	}
}

// Enabled reports whether generation is configured at all.
func (g *Generator) Enabled() bool {
	return g.apiKey != ""
}

type generateRequest struct {
	SystemInstruction content   `json:"system_instruction"`
	Contents          []content `json:"contents"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// ImageInput is an optional base64-encoded image attached to the prompt.
type ImageInput struct {
	MIMEType string
	Base64   string
}

// Generate asks the model for a recipe matching the prompt. Provider failures
// and unparseable replies surface as upstream errors so handlers map them to
// 502 rather than 500.
func (g *Generator) Generate(ctx context.Context, prompt string, image *ImageInput) (GeneratedRecipe, error) {
	ctx, span := logging.StartSpan(ctx, "ai.generate")
	defer span.End()

	if !g.Enabled() {
		return GeneratedRecipe{}, apperrors.Upstream("recipe generation is not configured", nil)
	}

	parts := []part{{Text: prompt}}
	if image != nil {
		parts = append(parts, part{InlineData: &inlineData{MIMEType: image.MIMEType, Data: image.Base64}})
	}

	payload := generateRequest{
		SystemInstruction: content{Parts: []part{{Text: systemInstruction}}},
		Contents:          []content{{Role: "user", Parts: parts}},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return GeneratedRecipe{}, fmt.Errorf("marshal generation request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.baseURL, g.model, g.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return GeneratedRecipe{}, fmt.Errorf("build generation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return GeneratedRecipe{}, apperrors.Upstream("recipe generation failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return GeneratedRecipe{}, apperrors.Upstream("recipe generation failed",
			fmt.Errorf("provider returned %d: %s", resp.StatusCode, snippet))
	}

	var decoded generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return GeneratedRecipe{}, apperrors.Upstream("recipe generation failed", err)
	}

	text := firstText(decoded)
	if text == "" {
		return GeneratedRecipe{}, apperrors.Upstream("recipe generation returned no content", nil)
	}

	recipe, err := ParseRecipeJSON(text)
	if err != nil {
		return GeneratedRecipe{}, apperrors.Upstream("recipe generation returned malformed content", err)
	}
	return recipe, nil
}

func firstText(resp generateResponse) string {
	for _, c := range resp.Candidates {
		for _, p := range c.Content.Parts {
			if strings.TrimSpace(p.Text) != "" {
				return p.Text
			}
		}
	}
	return ""
}

// ParseRecipeJSON extracts the recipe object from model output. Models often
// wrap JSON in a markdown fence or surround it with prose, so the parser
// strips fences first and falls back to the outermost brace pair.
func ParseRecipeJSON(text string) (GeneratedRecipe, error) {
	candidate := stripJSONFence(text)

	var recipe GeneratedRecipe
	if err := json.Unmarshal([]byte(candidate), &recipe); err != nil {
		block := extractJSONBlock(candidate)
		if block == "" {
			return GeneratedRecipe{}, fmt.Errorf("no JSON object in model output")
		}
		if err := json.Unmarshal([]byte(block), &recipe); err != nil {
			return GeneratedRecipe{}, fmt.Errorf("decode model output: %w", err)
		}
	}

	if strings.TrimSpace(recipe.Title) == "" {
		return GeneratedRecipe{}, fmt.Errorf("model output missing title")
	}
	if len(recipe.Ingredients) == 0 || len(recipe.Steps) == 0 {
		return GeneratedRecipe{}, fmt.Errorf("model output missing ingredients or steps")
	}
	return recipe, nil
}

func stripJSONFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return strings.TrimSpace(trimmed)
}

func extractJSONBlock(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}
