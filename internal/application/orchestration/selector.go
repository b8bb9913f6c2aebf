package orchestration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"z-video-ai-api/internal/config"
	wfmodel "z-video-ai-api/internal/workflow/model"
	apperrors "z-video-ai-api/pkg/errors"
	"z-video-ai-api/pkg/logger"
	"z-video-ai-api/pkg/metrics"
)

var selectorTracer = otel.Tracer("orchestration.selector")

// IntentClassifier 选择器对意图分类流程的最小依赖
type IntentClassifier interface {
	ClassifyIntent(ctx context.Context, in *wfmodel.IntentClassifyInput) (*wfmodel.IntentClassifyOutput, error)
}

// Selector 意图/工具选择器。每次请求恰好选出一个能力；
// 意图不明上抛 AmbiguousIntent，模型超时或输出不可用上抛 NoCapabilityMatch，
// 绝不静默挑选任意能力。
type Selector struct {
	classifier IntentClassifier
	resolver   *Resolver
	llm        config.LLMConfig
	timeout    time.Duration
}

// NewSelector 创建工具选择器
func NewSelector(classifier IntentClassifier, resolver *Resolver, llm config.LLMConfig, cfg config.OrchestrationConfig) *Selector {
	return &Selector{
		classifier: classifier,
		resolver:   resolver,
		llm:        llm,
		timeout:    cfg.SelectorTimeout,
	}
}

// Select 选出本次请求要执行的能力
func (s *Selector) Select(ctx context.Context, req *Request, bundle *ContextBundle) (*ToolSelection, error) {
	ctx, span := selectorTracer.Start(ctx, "selector.Select",
		trace.WithAttributes(attribute.String("project_id", req.ProjectID)))
	defer span.End()

	// 词法启发式先给出复杂度先验，模型输出是最终裁决
	heuristic, heuristicMatched := ClassifyComplexity(req.Prompt)

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	out, err := s.classifier.ClassifyIntent(ctx, &wfmodel.IntentClassifyInput{
		Provider:        s.llm.DefaultProvider,
		Utterance:       req.Prompt,
		HistoryBlock:    buildHistoryBlock(bundle),
		SceneListBlock:  buildSceneListBlock(bundle),
		AttachedSceneID: req.TargetEntityID,
	})
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, context.DeadlineExceeded) {
			// 超时不挂起请求，按无匹配能力处理
			metrics.ToolSelectionTotal.WithLabelValues("timeout").Inc()
			return nil, apperrors.ErrNoCapabilityMatch.WithDetail("intent classification timed out")
		}
		metrics.ToolSelectionTotal.WithLabelValues("error").Inc()
		return nil, apperrors.ErrNoCapabilityMatch.WithError(err)
	}

	if out.Ambiguous {
		metrics.ToolSelectionTotal.WithLabelValues("ambiguous").Inc()
		return nil, apperrors.ErrAmbiguousIntent.WithDetail(out.Reason)
	}
	if len(out.Candidates) == 0 {
		metrics.ToolSelectionTotal.WithLabelValues("no_match").Inc()
		return nil, apperrors.ErrNoCapabilityMatch.WithDetail("classifier returned no candidates")
	}

	top := out.Candidates[0]
	selection := &ToolSelection{
		Capability: top.Capability,
		Attribute:  top.Attribute,
		Value:      top.Value,
		Confidence: top.Confidence,
		Reason:     out.Reason,
	}

	if selection.Capability == CapabilityEditScene {
		selection.Complexity = s.mergeComplexity(ctx, top.Complexity, heuristic, heuristicMatched)
	}

	if selection.NeedsTarget() {
		targetID, err := s.resolver.Resolve(ctx, req, bundle, top.TargetOrdinal)
		if err != nil {
			span.RecordError(err)
			metrics.ToolSelectionTotal.WithLabelValues("unresolved_target").Inc()
			return nil, err
		}
		selection.TargetEntityID = targetID
	}

	metrics.ToolSelectionTotal.WithLabelValues(selection.Capability).Inc()
	span.SetAttributes(
		attribute.String("tool.capability", selection.Capability),
		attribute.String("tool.complexity", string(selection.Complexity)),
	)
	return selection, nil
}

// mergeComplexity 模型输出合法时以模型为准，否则退回启发式结果
func (s *Selector) mergeComplexity(ctx context.Context, fromModel string, heuristic Complexity, heuristicMatched bool) Complexity {
	switch Complexity(fromModel) {
	case ComplexitySurgical, ComplexityCreative, ComplexityStructural:
		if heuristicMatched && Complexity(fromModel) != heuristic {
			logger.FromContext(ctx).Debug("complexity heuristic disagrees with classifier",
				"heuristic", string(heuristic), "classifier", fromModel)
		}
		return Complexity(fromModel)
	}
	return heuristic
}

func buildHistoryBlock(bundle *ContextBundle) string {
	var sb strings.Builder
	for _, msg := range bundle.RecentHistory {
		sb.WriteString(string(msg.Role))
		sb.WriteString(": ")
		sb.WriteString(msg.Content)
		sb.WriteString("\n")
	}
	return sb.String()
}

func buildSceneListBlock(bundle *ContextBundle) string {
	var sb strings.Builder
	for _, s := range bundle.EntityList {
		sb.WriteString(fmt.Sprintf("%d. %s (id=%s)\n", s.Position, s.Name, s.ID))
	}
	return sb.String()
}
