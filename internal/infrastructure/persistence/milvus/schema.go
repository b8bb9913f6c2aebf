// Package milvus 提供 Milvus 向量数据库访问层实现
package milvus

import (
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

const (
	// CollectionMemoryFacts 记忆事实集合（图片事实、场景描述等语义召回素材）
	CollectionMemoryFacts = "memory_facts"

	// FactTypeImage 图片分析产出的事实
	FactTypeImage = "image_fact"
	// FactTypeScene 场景描述摘要
	FactTypeScene = "scene"

	// VectorDimension 向量维度
	VectorDimension = 1024
)

// MemoryFactsSchema 记忆事实 Collection Schema
func MemoryFactsSchema() *entity.Schema {
	return &entity.Schema{
		CollectionName: CollectionMemoryFacts,
		Description:    "Project memory facts for semantic recall",
		Fields: []*entity.Field{
			{
				Name:       "id",
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     "vector",
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": "1024",
				},
			},
			{
				Name:     "project_id",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     "ref_id",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     "fact_type",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "32",
				},
			},
			{
				Name:     "created_at",
				DataType: entity.FieldTypeInt64,
			},
			{
				Name:     "text_content",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "65535",
				},
			},
		},
	}
}

// MemoryFact 记忆事实数据结构
type MemoryFact struct {
	ID          string    `json:"id"`
	Vector      []float32 `json:"vector"`
	ProjectID   string    `json:"project_id"`
	RefID       string    `json:"ref_id"`
	FactType    string    `json:"fact_type"`
	CreatedAt   int64     `json:"created_at"`
	TextContent string    `json:"text_content"`
}

// PartitionName 生成项目分区名称
func PartitionName(projectID string) string {
	return "proj_" + projectID
}
