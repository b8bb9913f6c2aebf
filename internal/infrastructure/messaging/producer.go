// Package messaging 提供消息队列实现
package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("messaging")

// Producer 消息生产者
type Producer struct {
	client *redis.Client
	maxLen int64
}

// NewProducer 创建消息生产者
func NewProducer(client *redis.Client, maxLen int64) *Producer {
	if maxLen <= 0 {
		maxLen = 100000
	}
	return &Producer{
		client: client,
		maxLen: maxLen,
	}
}

// Publish 发布消息到指定流
func (p *Producer) Publish(ctx context.Context, stream Stream, msg *Message) (string, error) {
	ctx, span := tracer.Start(ctx, "producer.Publish",
		trace.WithAttributes(
			attribute.String("stream", string(stream)),
			attribute.String("message.id", msg.ID),
			attribute.String("message.type", msg.Type),
		))
	defer span.End()

	data, err := json.Marshal(msg)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to marshal message: %w", err)
	}

	result, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: string(stream),
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"data": string(data),
		},
	}).Result()

	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to publish message: %w", err)
	}

	span.SetAttributes(attribute.String("stream.message_id", result))
	return result, nil
}

// PublishLearnJob 发布偏好学习任务。
// 学习流程脱离请求路径异步执行，失败不影响编排请求。
func (p *Producer) PublishLearnJob(ctx context.Context, job *LearnJobMessage) (string, error) {
	msg, err := NewMessage(job.JobID, "preference_learn", job.UserID, job.ProjectID, job)
	if err != nil {
		return "", err
	}

	if job.RequestID != "" {
		msg.SetMetadata("request_id", job.RequestID)
	}
	if job.TraceID != "" {
		msg.SetMetadata("trace_id", job.TraceID)
	}

	return p.Publish(ctx, StreamLearnJobs, msg)
}

// PublishImageAnalysis 发布图片分析任务
func (p *Producer) PublishImageAnalysis(ctx context.Context, job *ImageAnalysisMessage) (string, error) {
	msg, err := NewMessage(job.ImageID, "image_analysis", job.UserID, job.ProjectID, job)
	if err != nil {
		return "", err
	}

	return p.Publish(ctx, StreamImageAnalysis, msg)
}

// PublishAuditLog 发布审计日志
func (p *Producer) PublishAuditLog(ctx context.Context, log *AuditLogMessage) (string, error) {
	msg, err := NewMessage(log.RequestID, "audit", log.UserID, log.ProjectID, log)
	if err != nil {
		return "", err
	}

	return p.Publish(ctx, StreamAuditLog, msg)
}

// LearnJobMessage 偏好学习任务消息
type LearnJobMessage struct {
	JobID     string `json:"job_id"`
	UserID    string `json:"user_id"`
	ProjectID string `json:"project_id"`
	SessionID string `json:"session_id"`
	RequestID string `json:"request_id,omitempty"`
	TraceID   string `json:"trace_id,omitempty"`
	// Utterance 触发学习的用户原话
	Utterance string `json:"utterance"`
	// TurnCount 会话当前轮次数，学习器用于判断是否满足最小轮次门槛
	TurnCount int `json:"turn_count"`
}

// ImageAnalysisMessage 图片分析任务消息
type ImageAnalysisMessage struct {
	ImageID   string `json:"image_id"`
	UserID    string `json:"user_id"`
	ProjectID string `json:"project_id"`
	ImageURL  string `json:"image_url"`
}

// AuditLogMessage 审计日志消息
type AuditLogMessage struct {
	UserID       string                 `json:"user_id,omitempty"`
	ProjectID    string                 `json:"project_id,omitempty"`
	Action       string                 `json:"action"`
	ResourceType string                 `json:"resource_type"`
	ResourceID   string                 `json:"resource_id,omitempty"`
	RequestID    string                 `json:"request_id"`
	TraceID      string                 `json:"trace_id,omitempty"`
	Changes      map[string]interface{} `json:"changes,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}
