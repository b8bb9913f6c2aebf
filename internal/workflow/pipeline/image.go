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
	workflowprompt "z-video-ai-api/internal/workflow/prompt"
)

// AnalyzeImage 分析图片并提取客观事实
func (p *Pipeline) AnalyzeImage(ctx context.Context, in *wfmodel.ImageAnalysisInput) (*wfmodel.ImageAnalysisOutput, error) {
	if p == nil || p.factory == nil {
		return nil, fmt.Errorf("llm factory not configured")
	}
	if in == nil {
		return nil, fmt.Errorf("input is nil")
	}
	if strings.TrimSpace(in.ImageURL) == "" {
		return nil, fmt.Errorf("image url is empty")
	}

	tpl, err := defaultPromptRegistry.ChatTemplate(workflowprompt.PromptImageAnalysisV1)
	if err != nil {
		return nil, err
	}

	vars := map[string]any{
		"image_url": strings.TrimSpace(in.ImageURL),
	}

	msgs, err := tpl.Format(ctx, vars)
	if err != nil {
		return nil, err
	}

	chatModel, err := p.factory.Get(ctx, strings.TrimSpace(in.Provider))
	if err != nil {
		return nil, err
	}

	var parsed imageEnvelope
	outMsg, raw, err := generateJSON(ctx, chatModel, msgs,
		func(enableSchema bool) []model.Option {
			return buildImageModelOptions(in, enableSchema)
		},
		func(raw string) error {
			var env imageEnvelope
			if err := json.Unmarshal([]byte(raw), &env); err != nil {
				return err
			}
			parsed = env
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("failed to analyze image: %w", err)
	}

	meta := wfmodel.LLMUsageMeta{
		Provider:    strings.TrimSpace(in.Provider),
		Model:       strings.TrimSpace(in.Model),
		GeneratedAt: time.Now().UTC(),
	}
	if outMsg.ResponseMeta != nil && outMsg.ResponseMeta.Usage != nil {
		meta.PromptTokens = outMsg.ResponseMeta.Usage.PromptTokens
		meta.CompletionTokens = outMsg.ResponseMeta.Usage.CompletionTokens
	}

	return &wfmodel.ImageAnalysisOutput{
		Facts: normalizeFacts(parsed.Facts),
		Raw:   raw,
		Meta:  meta,
	}, nil
}

type imageEnvelope struct {
	Facts []wfmodel.ImageFactItem `json:"facts"`
}

func buildImageModelOptions(in *wfmodel.ImageAnalysisInput, enableSchema bool) []model.Option {
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
					"name":   "image_analysis",
					"strict": false,
					"schema": imageAnalysisJSONSchema(),
				},
			},
		}))
	}
	return opts
}

func imageAnalysisJSONSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []any{"facts"},
		"properties": map[string]any{
			"facts": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"required":             []any{"kind", "content"},
					"properties": map[string]any{
						"kind": map[string]any{
							"type": "string",
							"enum": []any{"color", "subject", "layout", "text", "style"},
						},
						"content":    map[string]any{"type": "string"},
						"confidence": map[string]any{"type": "number"},
					},
				},
			},
		},
	}
}

func normalizeFacts(in []wfmodel.ImageFactItem) []wfmodel.ImageFactItem {
	if len(in) == 0 {
		return nil
	}
	out := make([]wfmodel.ImageFactItem, 0, len(in))
	for i := range in {
		f := in[i]
		f.Content = strings.TrimSpace(f.Content)
		if f.Content == "" {
			continue
		}
		if f.Confidence < 0 {
			f.Confidence = 0
		}
		if f.Confidence > 1 {
			f.Confidence = 1
		}
		out = append(out, f)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
