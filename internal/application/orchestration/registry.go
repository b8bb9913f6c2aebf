package orchestration

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"z-video-ai-api/internal/application/statesync"
	"z-video-ai-api/internal/application/template"
	"z-video-ai-api/internal/domain/entity"
	"z-video-ai-api/internal/domain/repository"
	apperrors "z-video-ai-api/pkg/errors"
)

var registryTracer = otel.Tracer("orchestration.registry")

// Executor 单个能力的执行函数。只读能力返回 nil 产物。
type Executor func(ctx context.Context, req *Request, sel *ToolSelection, bundle *ContextBundle) (*entity.VersionedArtifact, error)

// Registry 能力注册表。编排器不关心能力内部做什么，
// 只按名字分发并收取 (产物, 错误)。
type Registry struct {
	executors map[string]Executor
}

// NewRegistry 创建能力注册表
func NewRegistry() *Registry {
	return &Registry{executors: make(map[string]Executor)}
}

// Register 注册能力
func (r *Registry) Register(capability string, exec Executor) {
	r.executors[capability] = exec
}

// Execute 分发执行
func (r *Registry) Execute(ctx context.Context, req *Request, sel *ToolSelection, bundle *ContextBundle) (*entity.VersionedArtifact, error) {
	ctx, span := registryTracer.Start(ctx, "registry.Execute",
		trace.WithAttributes(attribute.String("tool.capability", sel.Capability)))
	defer span.End()

	exec, ok := r.executors[sel.Capability]
	if !ok {
		return nil, apperrors.ErrNoCapabilityMatch.WithDetail("unknown capability " + sel.Capability)
	}
	artifact, err := exec(ctx, req, sel, bundle)
	if err != nil {
		span.RecordError(err)
	}
	return artifact, err
}

// Capabilities 内置能力集：场景创建、编辑、属性修改、删除与只读问答。
// 所有状态变更统一经过状态同步层提交。
type Capabilities struct {
	scenes  repository.SceneRepository
	manager *statesync.Manager
	scorer  *template.Scorer
	catalog *template.Catalog
}

// NewCapabilities 创建内置能力集
func NewCapabilities(
	scenes repository.SceneRepository,
	manager *statesync.Manager,
	scorer *template.Scorer,
	catalog *template.Catalog,
) *Capabilities {
	return &Capabilities{
		scenes:  scenes,
		manager: manager,
		scorer:  scorer,
		catalog: catalog,
	}
}

// RegisterAll 注册全部内置能力
func (c *Capabilities) RegisterAll(r *Registry) {
	r.Register(CapabilityCreateScene, c.createScene)
	r.Register(CapabilityEditScene, c.editScene)
	r.Register(CapabilityChangeAttribute, c.changeAttribute)
	r.Register(CapabilityDeleteScene, c.deleteScene)
	r.Register(CapabilityAnswerQuestion, c.answerQuestion)
}

// scenePayload 场景载荷结构，提交时整体替换
type scenePayload struct {
	Prompt     string            `json:"prompt"`
	TemplateID string            `json:"template_id,omitempty"`
	Reasoning  string            `json:"reasoning,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Edits      []sceneEdit       `json:"edits,omitempty"`
}

type sceneEdit struct {
	Prompt     string `json:"prompt"`
	Complexity string `json:"complexity,omitempty"`
}

// createScene 评分选模板并创建场景，初始载荷经提交协议写入
func (c *Capabilities) createScene(ctx context.Context, req *Request, sel *ToolSelection, bundle *ContextBundle) (*entity.VersionedArtifact, error) {
	scored := c.scorer.Score(bundle.BrandProfile, c.catalog.Candidates(),
		promptKeywords(req.Prompt), availableContent(req, bundle))

	payload := scenePayload{Prompt: req.Prompt}
	var templateID string
	if len(scored) > 0 {
		templateID = scored[0].Candidate.ID
		payload.TemplateID = templateID
		payload.Reasoning = scored[0].Reasoning
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal scene payload: %w", err)
	}

	scene := &entity.Scene{
		ID:         uuid.NewString(),
		ProjectID:  req.ProjectID,
		Position:   len(bundle.EntityList) + 1,
		Name:       sceneName(req.Prompt),
		Payload:    json.RawMessage(`{}`),
		Status:     entity.SceneStatusDraft,
		TemplateID: templateID,
	}
	if err := c.scenes.Create(ctx, scene); err != nil {
		return nil, apperrors.ErrGenerationFailed.WithError(err)
	}

	return c.manager.Commit(ctx, scene.ID, raw)
}

// editScene 在现有载荷上追加编辑并整体提交。
// 复杂度标签随编辑记录落盘，贯穿到执行路径。
func (c *Capabilities) editScene(ctx context.Context, req *Request, sel *ToolSelection, bundle *ContextBundle) (*entity.VersionedArtifact, error) {
	payload, err := c.currentPayload(ctx, sel.TargetEntityID)
	if err != nil {
		return nil, err
	}

	payload.Edits = append(payload.Edits, sceneEdit{
		Prompt:     req.Prompt,
		Complexity: string(sel.Complexity),
	})

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal scene payload: %w", err)
	}
	return c.manager.Commit(ctx, sel.TargetEntityID, raw)
}

// changeAttribute 单属性修改，同样整体替换载荷而非下发局部差量
func (c *Capabilities) changeAttribute(ctx context.Context, req *Request, sel *ToolSelection, bundle *ContextBundle) (*entity.VersionedArtifact, error) {
	if sel.Attribute == "" {
		return nil, apperrors.ErrInvalidParam.WithDetail("attribute name is required")
	}

	payload, err := c.currentPayload(ctx, sel.TargetEntityID)
	if err != nil {
		return nil, err
	}

	if payload.Attributes == nil {
		payload.Attributes = make(map[string]string)
	}
	payload.Attributes[sel.Attribute] = sel.Value

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal scene payload: %w", err)
	}
	return c.manager.Commit(ctx, sel.TargetEntityID, raw)
}

func (c *Capabilities) deleteScene(ctx context.Context, req *Request, sel *ToolSelection, bundle *ContextBundle) (*entity.VersionedArtifact, error) {
	if err := c.manager.Delete(ctx, sel.TargetEntityID); err != nil {
		return nil, err
	}
	return nil, nil
}

// answerQuestion 只读能力，不产生状态变更
func (c *Capabilities) answerQuestion(ctx context.Context, req *Request, sel *ToolSelection, bundle *ContextBundle) (*entity.VersionedArtifact, error) {
	return nil, nil
}

func (c *Capabilities) currentPayload(ctx context.Context, entityID string) (*scenePayload, error) {
	artifact, err := c.manager.Observe(ctx, entityID)
	if err != nil {
		return nil, err
	}

	var payload scenePayload
	if len(artifact.Payload) > 0 {
		if err := json.Unmarshal(artifact.Payload, &payload); err != nil {
			// 载荷结构不识别时从空载荷重建，提交仍整体替换
			payload = scenePayload{}
		}
	}
	return &payload, nil
}

// promptKeywords 粗分词：空白切分 + 去短词，供模板关键词匹配
func promptKeywords(prompt string) []string {
	var keywords []string
	for _, token := range strings.Fields(prompt) {
		if len([]rune(token)) >= 2 {
			keywords = append(keywords, token)
		}
	}
	return keywords
}

// availableContent 判定模板硬性要求的素材是否齐备：
// 视觉类要求看图片事实与附件，文案类要求看提示词是否提及
func availableContent(req *Request, bundle *ContextBundle) map[template.Requirement]bool {
	hasVisual := len(bundle.ImageFacts) > 0 || len(req.AttachedImageRefs) > 0
	p := strings.ToLower(req.Prompt)

	return map[template.Requirement]bool{
		template.RequirementLogo:        hasVisual,
		template.RequirementProductShot: hasVisual,
		template.RequirementSocialProof: strings.Contains(p, "评价") || strings.Contains(p, "客户") ||
			strings.Contains(p, "testimonial") || strings.Contains(p, "review"),
		template.RequirementCallToAction: strings.Contains(p, "购买") || strings.Contains(p, "行动") ||
			strings.Contains(p, "cta") || strings.Contains(p, "buy"),
	}
}

func sceneName(prompt string) string {
	runes := []rune(strings.TrimSpace(prompt))
	if len(runes) > 24 {
		return string(runes[:24])
	}
	if len(runes) == 0 {
		return "未命名场景"
	}
	return string(runes)
}
