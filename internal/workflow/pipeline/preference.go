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

// ExtractPreferences 从用户发言和近期对话中提取偏好信号
func (p *Pipeline) ExtractPreferences(ctx context.Context, in *wfmodel.PreferenceExtractInput) (*wfmodel.PreferenceExtractOutput, error) {
	if p == nil || p.factory == nil {
		return nil, fmt.Errorf("llm factory not configured")
	}
	if in == nil {
		return nil, fmt.Errorf("input is nil")
	}
	if strings.TrimSpace(in.Utterance) == "" {
		return nil, fmt.Errorf("utterance is empty")
	}

	tpl, err := defaultPromptRegistry.ChatTemplate(workflowprompt.PromptPreferenceExtractV1)
	if err != nil {
		return nil, err
	}

	vars := map[string]any{
		"utterance":     wfnode.TruncateByRunes(strings.TrimSpace(in.Utterance), 4000),
		"history_block": wfnode.TruncateByRunes(strings.TrimSpace(in.HistoryBlock), 16000),
	}

	msgs, err := tpl.Format(ctx, vars)
	if err != nil {
		return nil, err
	}

	chatModel, err := p.factory.Get(ctx, strings.TrimSpace(in.Provider))
	if err != nil {
		return nil, err
	}

	var parsed preferenceEnvelope
	outMsg, raw, err := generateJSON(ctx, chatModel, msgs,
		func(enableSchema bool) []model.Option {
			return buildPreferenceModelOptions(in, enableSchema)
		},
		func(raw string) error {
			var env preferenceEnvelope
			if err := json.Unmarshal([]byte(raw), &env); err != nil {
				return err
			}
			parsed = env
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("failed to extract preferences: %w", err)
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

	return &wfmodel.PreferenceExtractOutput{
		Signals: normalizeSignals(parsed.Signals),
		Raw:     raw,
		Meta:    meta,
	}, nil
}

type preferenceEnvelope struct {
	Signals []wfmodel.PreferenceSignal `json:"signals"`
}

func buildPreferenceModelOptions(in *wfmodel.PreferenceExtractInput, enableSchema bool) []model.Option {
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
					"name":   "preference_extract",
					"strict": false,
					"schema": preferenceExtractJSONSchema(),
				},
			},
		}))
	}
	return opts
}

func preferenceExtractJSONSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []any{"signals"},
		"properties": map[string]any{
			"signals": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"required":             []any{"key", "value", "kind", "repeats"},
					"properties": map[string]any{
						"key":   map[string]any{"type": "string"},
						"value": map[string]any{"type": "string"},
						"kind": map[string]any{
							"type": "string",
							"enum": []any{"explicit", "pattern"},
						},
						"repeats":     map[string]any{"type": "integer"},
						"contradicts": map[string]any{"type": "string"},
						"evidence":    map[string]any{"type": "string"},
					},
				},
			},
		},
	}
}

func normalizeSignals(in []wfmodel.PreferenceSignal) []wfmodel.PreferenceSignal {
	if len(in) == 0 {
		return nil
	}
	out := make([]wfmodel.PreferenceSignal, 0, len(in))
	for i := range in {
		s := in[i]
		s.Key = strings.TrimSpace(s.Key)
		s.Value = strings.TrimSpace(s.Value)
		if s.Key == "" || s.Value == "" {
			continue
		}
		if s.Kind != "explicit" && s.Kind != "pattern" {
			s.Kind = "pattern"
		}
		if s.Repeats < 1 {
			s.Repeats = 1
		}
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
