package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

const defaultGeminiEmbeddingModel = "text-embedding-004"

// GeminiEmbedder implements Embedder using the Gemini embedContent API.
type GeminiEmbedder struct {
	client *genai.Client
	model  string
	dims   int
}

// NewGeminiEmbedder creates an embedder sharing the Gemini credentials.
func NewGeminiEmbedder(ctx context.Context, cfg GeminiConfig, ecfg EmbeddingConfig) (*GeminiEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create Gemini client: %w", err)
	}

	model := ecfg.Model
	if model == "" {
		model = defaultGeminiEmbeddingModel
	}

	return &GeminiEmbedder{client: client, model: model, dims: ecfg.Dimensions}, nil
}

func (e *GeminiEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = &genai.Content{Parts: []*genai.Part{{Text: t}}}
	}

	var config *genai.EmbedContentConfig
	if e.dims > 0 {
		dims := int32(e.dims)
		config = &genai.EmbedContentConfig{OutputDimensionality: &dims}
	}

	result, err := e.client.Models.EmbedContent(ctx, e.model, contents, config)
	if err != nil {
		return nil, mapGeminiError(err)
	}
	if len(result.Embeddings) != len(texts) {
		return nil, &ErrInvalidResponse{
			Err: fmt.Errorf("expected %d embeddings, got %d", len(texts), len(result.Embeddings)),
		}
	}

	out := make([][]float32, len(texts))
	for i, emb := range result.Embeddings {
		out[i] = emb.Values
	}
	return out, nil
}

func (e *GeminiEmbedder) Dimensions() int {
	return e.dims
}
