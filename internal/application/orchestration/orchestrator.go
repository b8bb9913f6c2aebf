package orchestration

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"z-video-ai-api/internal/domain/entity"
	"z-video-ai-api/internal/domain/repository"
	"z-video-ai-api/internal/infrastructure/messaging"
	apperrors "z-video-ai-api/pkg/errors"
	"z-video-ai-api/pkg/logger"
	"z-video-ai-api/pkg/metrics"
)

var orchestratorTracer = otel.Tracer("orchestration.orchestrator")

// LearnScheduler 偏好学习任务的投递口
type LearnScheduler interface {
	PublishLearnJob(ctx context.Context, job *messaging.LearnJobMessage) (string, error)
}

// Orchestrator 编排器：请求内同步执行
// 分类 → 构建上下文 → 选择工具 → 执行 → 提交，
// 偏好学习在响应之后异步投递，永不阻塞请求。
type Orchestrator struct {
	builder   *ContextBuilder
	selector  *Selector
	registry  *Registry
	decisions repository.ToolDecisionRepository
	learner   LearnScheduler
}

// NewOrchestrator 创建编排器
func NewOrchestrator(
	builder *ContextBuilder,
	selector *Selector,
	registry *Registry,
	decisions repository.ToolDecisionRepository,
	learner LearnScheduler,
) *Orchestrator {
	return &Orchestrator{
		builder:   builder,
		selector:  selector,
		registry:  registry,
		decisions: decisions,
		learner:   learner,
	}
}

// Run 执行一次编排。progress 可为 nil；非 nil 时保证恰好一个终态事件。
func (o *Orchestrator) Run(ctx context.Context, req *Request, progress *ProgressStream) (*Result, error) {
	ctx, span := orchestratorTracer.Start(ctx, "orchestrator.Run",
		trace.WithAttributes(
			attribute.String("project_id", req.ProjectID),
			attribute.String("request_id", req.RequestID),
		))
	defer span.End()

	start := time.Now()
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}

	tier := ClassifyTier(req.Prompt, req.TargetEntityID)
	span.SetAttributes(attribute.String("context.tier", string(tier)))

	buildStart := time.Now()
	bundle, err := o.builder.Build(ctx, req, tier)
	if err != nil {
		return o.fail(ctx, req, nil, tier, start, progress, err)
	}
	metrics.ContextBuildDuration.WithLabelValues(string(tier)).Observe(time.Since(buildStart).Seconds())

	selection, err := o.selector.Select(ctx, req, bundle)
	if err != nil {
		return o.fail(ctx, req, nil, tier, start, progress, err)
	}
	progress.ToolSelected()

	artifact, err := o.registry.Execute(ctx, req, selection, bundle)
	if err != nil {
		return o.fail(ctx, req, selection, tier, start, progress, err)
	}
	progress.StepCompleted(1, 1)

	if artifact != nil {
		progress.ArtifactCommitted(artifact.EntityID, artifact.VersionToken)
	}

	result := &Result{Selection: selection, Artifact: artifact}
	if selection.Capability == CapabilityAnswerQuestion {
		result.Answer = selection.Reason
	}

	o.recordDecision(ctx, req, selection, tier, "ok", time.Since(start))
	o.scheduleLearning(ctx, req)

	metrics.OrchestrationTotal.WithLabelValues(selection.Capability, string(selection.Complexity), "ok").Inc()
	metrics.OrchestrationDuration.WithLabelValues(selection.Capability).Observe(time.Since(start).Seconds())
	progress.Done()
	return result, nil
}

func (o *Orchestrator) fail(ctx context.Context, req *Request, selection *ToolSelection, tier Tier, start time.Time, progress *ProgressStream, err error) (*Result, error) {
	appErr := apperrors.AsAppError(err)

	capability := "unknown"
	complexity := ""
	if selection != nil {
		capability = selection.Capability
		complexity = string(selection.Complexity)
	}
	o.recordDecision(ctx, req, selection, tier, string(appErr.Code), time.Since(start))

	metrics.OrchestrationTotal.WithLabelValues(capability, complexity, string(appErr.Code)).Inc()
	progress.Fail(appErr.Message)
	return nil, err
}

// recordDecision 审计落盘尽力而为，失败只记日志
func (o *Orchestrator) recordDecision(ctx context.Context, req *Request, selection *ToolSelection, tier Tier, status string, latency time.Duration) {
	if o.decisions == nil {
		return
	}

	decision := &entity.ToolDecision{
		ProjectID:   req.ProjectID,
		RequestID:   req.RequestID,
		ContextTier: string(tier),
		Status:      status,
		LatencyMs:   latency.Milliseconds(),
	}
	if selection != nil {
		decision.Capability = selection.Capability
		decision.Complexity = string(selection.Complexity)
		decision.TargetEntityID = selection.TargetEntityID
		decision.PlanSteps = []string{selection.Capability}
	}

	if err := o.decisions.Record(ctx, decision); err != nil {
		logger.FromContext(ctx).Warn("failed to record tool decision", "error", err)
	}
}

// scheduleLearning 异步投递学习任务。历史不足两轮没有学习信号，不投递。
func (o *Orchestrator) scheduleLearning(ctx context.Context, req *Request) {
	if o.learner == nil || len(req.ConversationHistory) < 2 {
		return
	}

	job := &messaging.LearnJobMessage{
		JobID:     uuid.NewString(),
		UserID:    req.UserID,
		ProjectID: req.ProjectID,
		SessionID: req.SessionID,
		RequestID: req.RequestID,
		Utterance: req.Prompt,
		TurnCount: len(req.ConversationHistory),
	}

	// 脱离请求生命周期，但保留追踪与日志上下文
	detached := context.WithoutCancel(ctx)
	go func() {
		if _, err := o.learner.PublishLearnJob(detached, job); err != nil {
			logger.FromContext(detached).Warn("failed to schedule preference learning",
				"job_id", job.JobID, "error", err)
		}
	}()
}
