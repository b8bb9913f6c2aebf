package memory

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"z-video-ai-api/internal/infrastructure/persistence/milvus"
)

// QueryEmbedder 查询向量化的最小依赖
type QueryEmbedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Recall 语义召回：把查询文本向量化后在向量索引中检索相关记忆事实。
// 召回是上下文的增强而非硬依赖，调用方拿到 nil Recall 时直接跳过。
type Recall struct {
	embedder QueryEmbedder
	vectors  *milvus.Repository
}

// NewRecall 创建语义召回服务
func NewRecall(embedder QueryEmbedder, vectors *milvus.Repository) *Recall {
	return &Recall{
		embedder: embedder,
		vectors:  vectors,
	}
}

// RelatedFacts 检索与查询语义相关的记忆事实文本，按相似度降序
func (r *Recall) RelatedFacts(ctx context.Context, projectID, query string, topK int) ([]string, error) {
	if r == nil || r.embedder == nil || r.vectors == nil || query == "" {
		return nil, nil
	}

	ctx, span := tracer.Start(ctx, "memory.RelatedFacts",
		trace.WithAttributes(
			attribute.String("project_id", projectID),
			attribute.Int("top_k", topK),
		))
	defer span.End()

	vectors, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, nil
	}

	results, err := r.vectors.SearchFacts(ctx, &milvus.SearchParams{
		ProjectID:   projectID,
		QueryVector: vectors[0],
		TopK:        topK,
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	texts := make([]string, 0, len(results))
	for _, res := range results {
		if res.TextContent != "" {
			texts = append(texts, res.TextContent)
		}
	}
	span.SetAttributes(attribute.Int("result_count", len(texts)))
	return texts, nil
}
