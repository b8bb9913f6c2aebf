// Package embedding 提供 Embedding 服务客户端
package embedding

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/embedding/openai"
	"github.com/cloudwego/eino/components/embedding"

	"z-video-ai-api/internal/config"
)

// NewEinoEmbedder 创建基于 Eino 的 Embedder
func NewEinoEmbedder(ctx context.Context, cfg *config.EmbeddingConfig) (embedding.Embedder, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("embedding endpoint is required")
	}

	// 使用 Eino 的 OpenAI 适配器
	embedder, err := openai.NewEmbedder(ctx, &openai.EmbeddingConfig{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.Endpoint,
		Model:   cfg.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create eino embedder: %w", err)
	}

	return embedder, nil
}

// BatchEmbedder 按批次调用底层 Embedder，避免单次请求文本过多
type BatchEmbedder struct {
	embedder  embedding.Embedder
	batchSize int
}

// NewBatchEmbedder 创建批量 Embedder
func NewBatchEmbedder(embedder embedding.Embedder, batchSize int) *BatchEmbedder {
	if batchSize <= 0 {
		batchSize = 32
	}
	return &BatchEmbedder{
		embedder:  embedder,
		batchSize: batchSize,
	}
}

// Embed 生成文本向量
func (b *BatchEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	var all [][]float32
	for i := 0; i < len(texts); i += b.batchSize {
		end := i + b.batchSize
		if end > len(texts) {
			end = len(texts)
		}

		vectors, err := b.embedder.EmbedStrings(ctx, texts[i:end])
		if err != nil {
			return nil, fmt.Errorf("failed to embed batch: %w", err)
		}

		for _, vec := range vectors {
			converted := make([]float32, len(vec))
			for j, v := range vec {
				converted[j] = float32(v)
			}
			all = append(all, converted)
		}
	}

	return all, nil
}
