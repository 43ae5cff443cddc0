// Package llm wraps the Vertex AI Gemini API used to write review notes.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"
)

const (
	DefaultLocation = "us-central1"
	DefaultModel    = "gemini-1.5-flash"
)

// Options selects the project, region and model
type Options struct {
	Project         string
	Location        string
	Model           string
	Temperature     float32
	MaxOutputTokens int32
}

// VertexAIClient wraps the Vertex AI Gemini API
type VertexAIClient struct {
	client *genai.Client
	model  *genai.GenerativeModel
	opts   Options
}

// NewVertexAIClient creates a new Vertex AI client
func NewVertexAIClient(ctx context.Context, opts Options) (*VertexAIClient, error) {
	if opts.Project == "" {
		return nil, errors.New("google cloud project not set")
	}
	if opts.Location == "" {
		opts.Location = DefaultLocation
	}
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	if opts.MaxOutputTokens <= 0 {
		opts.MaxOutputTokens = 1024
	}

	client, err := genai.NewClient(ctx, opts.Project, opts.Location)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vertex AI client: %w", err)
	}

	model := client.GenerativeModel(opts.Model)
	model.SetTemperature(opts.Temperature)
	model.SetTopK(40)
	model.SetTopP(0.95)
	model.SetMaxOutputTokens(opts.MaxOutputTokens)
	model.ResponseMIMEType = "application/json"

	return &VertexAIClient{
		client: client,
		model:  model,
		opts:   opts,
	}, nil
}

// GenerateContent sends a prompt to the model and returns the response text
func (v *VertexAIClient) GenerateContent(ctx context.Context, prompt string) (string, error) {
	resp, err := v.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	return responseText(resp)
}

// Model returns the model name in use
func (v *VertexAIClient) Model() string {
	return v.opts.Model
}

// Close closes the Vertex AI client
func (v *VertexAIClient) Close() error {
	return v.client.Close()
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("no response candidates returned")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	if sb.Len() == 0 {
		return "", errors.New("response has no text")
	}
	return sb.String(), nil
}
