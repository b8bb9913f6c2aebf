// Package milvus 提供 Milvus 向量数据库访问层实现
package milvus

import (
	"context"
	"fmt"

	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Repository 向量检索仓储
type Repository struct {
	client *Client
}

// NewRepository 创建向量检索仓储
func NewRepository(client *Client) *Repository {
	return &Repository{client: client}
}

// SearchParams 检索参数
type SearchParams struct {
	ProjectID   string
	QueryVector []float32
	TopK        int
	FactType    string
}

// SearchResult 检索结果
type SearchResult struct {
	ID          string
	Score       float32
	TextContent string
	RefID       string
	FactType    string
	CreatedAt   int64
}

// CreateCollection 创建集合
func (r *Repository) CreateCollection(ctx context.Context, schema *entity.Schema) error {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return fmt.Errorf("milvus client not configured")
	}
	ctx, span := tracer.Start(ctx, "milvus.CreateCollection",
		trace.WithAttributes(attribute.String("collection", schema.CollectionName)))
	defer span.End()

	collName := r.client.CollectionName(schema.CollectionName)
	schema.CollectionName = collName

	err := r.client.milvus.CreateCollection(ctx, schema, entity.DefaultShardNumber)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create collection: %w", err)
	}

	return nil
}

// CreateIndex 创建 HNSW 索引
func (r *Repository) CreateIndex(ctx context.Context, collection string) error {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return fmt.Errorf("milvus client not configured")
	}
	ctx, span := tracer.Start(ctx, "milvus.CreateIndex",
		trace.WithAttributes(attribute.String("collection", collection)))
	defer span.End()

	collName := r.client.CollectionName(collection)

	idx, err := entity.NewIndexHNSW(
		entity.COSINE,
		r.client.config.HNSWM,
		r.client.config.HNSWEfConstruction,
	)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create index: %w", err)
	}

	err = r.client.milvus.CreateIndex(ctx, collName, "vector", idx, false)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create index: %w", err)
	}

	return nil
}

// CreatePartition 创建项目分区
func (r *Repository) CreatePartition(ctx context.Context, collection, projectID string) error {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return fmt.Errorf("milvus client not configured")
	}
	ctx, span := tracer.Start(ctx, "milvus.CreatePartition",
		trace.WithAttributes(
			attribute.String("collection", collection),
			attribute.String("partition", PartitionName(projectID)),
		))
	defer span.End()

	collName := r.client.CollectionName(collection)
	partitionName := PartitionName(projectID)

	return r.client.milvus.CreatePartition(ctx, collName, partitionName)
}

// SearchFacts 语义检索记忆事实
func (r *Repository) SearchFacts(ctx context.Context, params *SearchParams) ([]*SearchResult, error) {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return nil, fmt.Errorf("milvus client not configured")
	}
	ctx, span := tracer.Start(ctx, "milvus.SearchFacts",
		trace.WithAttributes(
			attribute.String("project_id", params.ProjectID),
			attribute.Int("top_k", params.TopK),
		))
	defer span.End()

	collName := r.client.CollectionName(CollectionMemoryFacts)
	partitionName := PartitionName(params.ProjectID)

	// 新项目分区可能尚未创建，直接返回空结果
	if has, err := r.client.milvus.HasPartition(ctx, collName, partitionName); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to check partition: %w", err)
	} else if !has {
		return []*SearchResult{}, nil
	}

	filter := fmt.Sprintf(`project_id == "%s"`, params.ProjectID)
	if params.FactType != "" {
		filter += fmt.Sprintf(` && fact_type == "%s"`, params.FactType)
	}

	sp, err := entity.NewIndexHNSWSearchParam(128)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to create search param: %w", err)
	}

	results, err := r.client.milvus.Search(ctx,
		collName,
		[]string{partitionName},
		filter,
		[]string{"id", "text_content", "ref_id", "fact_type", "created_at"},
		[]entity.Vector{entity.FloatVector(params.QueryVector)},
		"vector",
		entity.COSINE,
		params.TopK,
		sp,
	)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	var searchResults []*SearchResult
	for _, result := range results {
		for i := 0; i < result.ResultCount; i++ {
			sr := &SearchResult{
				Score: result.Scores[i],
			}

			if idCol, ok := result.Fields.GetColumn("id").(*entity.ColumnVarChar); ok {
				sr.ID = idCol.Data()[i]
			}
			if textCol, ok := result.Fields.GetColumn("text_content").(*entity.ColumnVarChar); ok {
				sr.TextContent = textCol.Data()[i]
			}
			if refCol, ok := result.Fields.GetColumn("ref_id").(*entity.ColumnVarChar); ok {
				sr.RefID = refCol.Data()[i]
			}
			if typeCol, ok := result.Fields.GetColumn("fact_type").(*entity.ColumnVarChar); ok {
				sr.FactType = typeCol.Data()[i]
			}
			if timeCol, ok := result.Fields.GetColumn("created_at").(*entity.ColumnInt64); ok {
				sr.CreatedAt = timeCol.Data()[i]
			}

			searchResults = append(searchResults, sr)
		}
	}

	span.SetAttributes(attribute.Int("result_count", len(searchResults)))
	return searchResults, nil
}

// InsertFacts 插入记忆事实
func (r *Repository) InsertFacts(ctx context.Context, projectID string, facts []*MemoryFact) error {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return fmt.Errorf("milvus client not configured")
	}
	ctx, span := tracer.Start(ctx, "milvus.InsertFacts",
		trace.WithAttributes(
			attribute.String("project_id", projectID),
			attribute.Int("count", len(facts)),
		))
	defer span.End()

	if len(facts) == 0 {
		return nil
	}

	collName := r.client.CollectionName(CollectionMemoryFacts)
	partitionName := PartitionName(projectID)

	// 确保分区存在
	has, _ := r.client.milvus.HasPartition(ctx, collName, partitionName)
	if !has {
		if err := r.CreatePartition(ctx, CollectionMemoryFacts, projectID); err != nil {
			return err
		}
	}

	ids := make([]string, len(facts))
	vectors := make([][]float32, len(facts))
	projectIDs := make([]string, len(facts))
	refIDs := make([]string, len(facts))
	factTypes := make([]string, len(facts))
	createdAts := make([]int64, len(facts))
	textContents := make([]string, len(facts))

	for i, fact := range facts {
		ids[i] = fact.ID
		vectors[i] = fact.Vector
		projectIDs[i] = fact.ProjectID
		refIDs[i] = fact.RefID
		factTypes[i] = fact.FactType
		createdAts[i] = fact.CreatedAt
		textContents[i] = fact.TextContent
	}

	idCol := entity.NewColumnVarChar("id", ids)
	vectorCol := entity.NewColumnFloatVector("vector", VectorDimension, vectors)
	projectCol := entity.NewColumnVarChar("project_id", projectIDs)
	refCol := entity.NewColumnVarChar("ref_id", refIDs)
	typeCol := entity.NewColumnVarChar("fact_type", factTypes)
	timeCol := entity.NewColumnInt64("created_at", createdAts)
	textCol := entity.NewColumnVarChar("text_content", textContents)

	_, err := r.client.milvus.Insert(ctx, collName, partitionName,
		idCol, vectorCol, projectCol, refCol, typeCol, timeCol, textCol)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to insert facts: %w", err)
	}

	return nil
}

// EnsureMemoryFactsCollection 确保 memory_facts 集合与索引可用（不存在则创建）。
// 约束：不会做 drop/rebuild 等破坏性操作。
func (r *Repository) EnsureMemoryFactsCollection(ctx context.Context) error {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return fmt.Errorf("milvus client not configured")
	}

	exists, err := r.client.HasCollection(ctx, CollectionMemoryFacts)
	if err != nil {
		return err
	}
	if !exists {
		if err := r.CreateCollection(ctx, MemoryFactsSchema()); err != nil {
			return err
		}
		// 新建集合时创建索引；若失败，允许后续由运维介入。
		_ = r.CreateIndex(ctx, CollectionMemoryFacts)
	}

	return r.client.LoadCollection(ctx, CollectionMemoryFacts)
}
