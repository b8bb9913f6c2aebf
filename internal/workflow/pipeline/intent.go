package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	openaiopts "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"

	wfmodel "z-video-ai-api/internal/workflow/model"
	wfnode "z-video-ai-api/internal/workflow/node"
	workflowprompt "z-video-ai-api/internal/workflow/prompt"
)

// ClassifyIntent 调用 LLM 对用户发言做意图分类。
// 优先使用 json_schema 约束输出；提供商不支持时降级为自由输出再做容错提取，
// 输出不可解析时带着更严格的约束指令重试一次。
func (p *Pipeline) ClassifyIntent(ctx context.Context, in *wfmodel.IntentClassifyInput) (*wfmodel.IntentClassifyOutput, error) {
	if p == nil || p.factory == nil {
		return nil, fmt.Errorf("llm factory not configured")
	}
	if in == nil {
		return nil, fmt.Errorf("input is nil")
	}
	if strings.TrimSpace(in.Utterance) == "" {
		return nil, fmt.Errorf("utterance is empty")
	}

	tpl, err := defaultPromptRegistry.ChatTemplate(workflowprompt.PromptIntentClassifyV1)
	if err != nil {
		return nil, err
	}

	vars := map[string]any{
		"utterance":         wfnode.TruncateByRunes(strings.TrimSpace(in.Utterance), 4000),
		"history_block":     wfnode.TruncateByRunes(strings.TrimSpace(in.HistoryBlock), 12000),
		"scene_list_block":  wfnode.TruncateByRunes(strings.TrimSpace(in.SceneListBlock), 8000),
		"attached_scene_id": strings.TrimSpace(in.AttachedSceneID),
	}

	msgs, err := tpl.Format(ctx, vars)
	if err != nil {
		return nil, err
	}

	chatModel, err := p.factory.Get(ctx, strings.TrimSpace(in.Provider))
	if err != nil {
		return nil, err
	}

	var parsed intentEnvelope
	outMsg, raw, err := generateJSON(ctx, chatModel, msgs,
		func(enableSchema bool) []model.Option {
			return buildIntentModelOptions(in, enableSchema)
		},
		func(raw string) error {
			var env intentEnvelope
			if err := json.Unmarshal([]byte(raw), &env); err != nil {
				return err
			}
			parsed = env
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("failed to classify intent: %w", err)
	}

	meta := wfmodel.LLMUsageMeta{
		Provider:    strings.TrimSpace(in.Provider),
		Model:       strings.TrimSpace(in.Model),
		GeneratedAt: time.Now().UTC(),
	}
	if in.Temperature != nil {
		meta.Temperature = float64(*in.Temperature)
	}
	if outMsg.ResponseMeta != nil && outMsg.ResponseMeta.Usage != nil {
		meta.PromptTokens = outMsg.ResponseMeta.Usage.PromptTokens
		meta.CompletionTokens = outMsg.ResponseMeta.Usage.CompletionTokens
	}

	return &wfmodel.IntentClassifyOutput{
		Candidates: normalizeCandidates(parsed.Candidates),
		Ambiguous:  parsed.Ambiguous,
		Reason:     strings.TrimSpace(parsed.Reason),
		Raw:        raw,
		Meta:       meta,
	}, nil
}

type intentEnvelope struct {
	Candidates []wfmodel.IntentCandidate `json:"candidates"`
	Ambiguous  bool                      `json:"ambiguous"`
	Reason     string                    `json:"reason"`
}

func buildIntentModelOptions(in *wfmodel.IntentClassifyInput, enableSchema bool) []model.Option {
	opts := make([]model.Option, 0, 4)
	if in == nil {
		return opts
	}
	if in.Temperature != nil {
		opts = append(opts, model.WithTemperature(*in.Temperature))
	}
	if in.MaxTokens != nil {
		opts = append(opts, model.WithMaxTokens(*in.MaxTokens))
	}
	if strings.TrimSpace(in.Model) != "" {
		opts = append(opts, model.WithModel(strings.TrimSpace(in.Model)))
	}
	if enableSchema {
		opts = append(opts, openaiopts.WithExtraFields(map[string]any{
			"response_format": map[string]any{
				"type": "json_schema",
				"json_schema": map[string]any{
					"name":   "intent_classify",
					"strict": false,
					"schema": intentClassifyJSONSchema(),
				},
			},
		}))
	}
	return opts
}

func intentClassifyJSONSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []any{"candidates", "ambiguous"},
		"properties": map[string]any{
			"candidates": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"required":             []any{"capability", "confidence"},
					"properties": map[string]any{
						"capability": map[string]any{
							"type": "string",
							"enum": []any{"create_scene", "edit_scene", "change_attribute", "delete_scene", "answer_question"},
						},
						"complexity": map[string]any{
							"type": "string",
							"enum": []any{"surgical", "creative", "structural", ""},
						},
						"target_ordinal": map[string]any{"type": "integer"},
						"target_hint":    map[string]any{"type": "string"},
						"attribute":      map[string]any{"type": "string"},
						"value":          map[string]any{"type": "string"},
						"confidence":     map[string]any{"type": "number"},
					},
				},
			},
			"ambiguous": map[string]any{"type": "boolean"},
			"reason":    map[string]any{"type": "string"},
		},
	}
}

func normalizeCandidates(in []wfmodel.IntentCandidate) []wfmodel.IntentCandidate {
	if len(in) == 0 {
		return nil
	}
	out := make([]wfmodel.IntentCandidate, 0, len(in))
	for i := range in {
		c := in[i]
		c.Capability = strings.TrimSpace(c.Capability)
		if c.Capability == "" {
			continue
		}
		if c.Confidence < 0 {
			c.Confidence = 0
		}
		if c.Confidence > 1 {
			c.Confidence = 1
		}
		if c.TargetOrdinal < 0 {
			c.TargetOrdinal = 0
		}
		out = append(out, c)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
