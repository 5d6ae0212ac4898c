// Package llm wraps the Gemini API as the pipeline's embedding and
// text-completion capability. The rest of the codebase consumes it through
// the small interfaces declared by each component, so tests can inject
// fakes.
package llm

import (
	"context"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/spf13/viper"
	"google.golang.org/genai"

	"marketintel/internal/apperr"
)

const (
	// DefaultModel is the default Gemini model for grounded answers.
	DefaultModel = "gemini-flash-lite-latest"
	// DefaultEmbeddingModel is the default model for generating embeddings.
	DefaultEmbeddingModel = "gemini-embedding-001"
	// DefaultEmbeddingDimensions is the output dimension for embeddings (Matryoshka).
	DefaultEmbeddingDimensions = int32(768)

	// groundedAnswerPrompt instructs the model to stay inside the supplied
	// context, cite sources, and admit insufficiency rather than fabricate.
	groundedAnswerPrompt = `You are a business intelligence analyst. Use only the provided context to answer the question. Cite sources by title when possible. If the context does not contain enough information to answer, say so clearly instead of guessing.

Context:
%s

Question: %s`
)

// Client talks to the Gemini API for embeddings and completions.
type Client struct {
	modelName      string
	embeddingModel string
	gClient        *genai.Client
}

// NewClient creates a new LLM client. The API key is read from the
// GEMINI_API_KEY environment variable or the ai.gemini.api_key config key.
func NewClient(ctx context.Context, modelName string) (*Client, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		apiKey = viper.GetString("ai.gemini.api_key")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required: set GEMINI_API_KEY or ai.gemini.api_key")
	}

	if modelName == "" {
		modelName = viper.GetString("ai.gemini.model")
		if modelName == "" {
			modelName = DefaultModel
		}
	}
	embeddingModel := viper.GetString("ai.gemini.embedding_model")
	if embeddingModel == "" {
		embeddingModel = DefaultEmbeddingModel
	}

	gClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Client{
		modelName:      modelName,
		embeddingModel: embeddingModel,
		gClient:        gClient,
	}, nil
}

// GenerateEmbedding creates a 768-dimensional embedding for the text.
// Ingestion and query embedding share this method so similarity search
// stays meaningful across both.
func (c *Client) GenerateEmbedding(ctx context.Context, text string) ([]float64, error) {
	contents := []*genai.Content{{
		Parts: []*genai.Part{{Text: text}},
		Role:  "user",
	}}

	dims := DefaultEmbeddingDimensions
	config := &genai.EmbedContentConfig{
		OutputDimensionality: &dims,
	}

	resp, err := c.gClient.Models.EmbedContent(ctx, c.embeddingModel, contents, config)
	if err != nil {
		return nil, apperr.New(apperr.CodeEmbedding, "embedding request failed", err)
	}
	if resp == nil || len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil {
		return nil, apperr.New(apperr.CodeEmbedding, "no embedding values returned from API", nil)
	}

	values := resp.Embeddings[0].Values
	embedding := make([]float64, len(values))
	for i, val := range values {
		embedding[i] = float64(val)
	}
	return embedding, nil
}

// GenerateAnswer produces a grounded answer to the query from the supplied
// context snippets.
func (c *Client) GenerateAnswer(ctx context.Context, query string, contextSnippets []string) (string, error) {
	prompt := fmt.Sprintf(groundedAnswerPrompt, strings.Join(contextSnippets, "\n\n"), query)

	contents := []*genai.Content{{
		Parts: []*genai.Part{{Text: prompt}},
		Role:  "user",
	}}

	temp := viper.GetFloat64("ai.gemini.temperature")
	maxTokens := viper.GetInt32("ai.gemini.max_tokens")
	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(temp)),
		MaxOutputTokens: maxTokens,
	}

	resp, err := c.gClient.Models.GenerateContent(ctx, c.modelName, contents, cfg)
	if err != nil {
		return "", apperr.New(apperr.CodeAnswer, "completion request failed", err)
	}

	text := resp.Text()
	if text == "" {
		return "", apperr.New(apperr.CodeAnswer, "empty response from model", nil)
	}
	return text, nil
}

// ModelName returns the configured completion model identifier.
func (c *Client) ModelName() string {
	return c.modelName
}

// CosineSimilarity calculates the cosine similarity between two embeddings.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
