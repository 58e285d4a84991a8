package ai

import (
	"context"
	"errors"
	"fmt"

	genai "github.com/google/generative-ai-go/genai"
)

// Embed returns an embedding vector for the given text using the configured
// Gemini embedding model (text-embedding-004 by default).
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.EmbedTimeout)
	defer cancel()

	model := c.client.EmbeddingModel(c.cfg.EmbeddingModel)
	resp, err := model.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return nil, err
	}
	if resp.Embedding == nil || len(resp.Embedding.Values) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}

	return resp.Embedding.Values, nil
}
