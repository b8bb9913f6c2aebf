package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	wfnode "z-video-ai-api/internal/workflow/node"
)

// strictJSONReminder 纠正重试时附加的约束指令
const strictJSONReminder = "上一次输出无法解析。只输出一个严格符合给定 schema 的 JSON 对象，不要包含解释、Markdown 代码块或任何其他文本。"

// generateJSON 调模型并解析 JSON 输出。提供商不支持 response_format 时
// 降级为自由输出再做容错提取；输出提取或解析失败时带着纠正指令
// 重试一次，仍失败才上抛。
func generateJSON(
	ctx context.Context,
	chatModel model.BaseChatModel,
	msgs []*schema.Message,
	buildOpts func(enableSchema bool) []model.Option,
	decode func(raw string) error,
) (*schema.Message, string, error) {
	outMsg, err := generateWithSchemaFallback(ctx, chatModel, msgs, buildOpts)
	if err != nil {
		return nil, "", err
	}

	raw, decodeErr := decodeJSONMessage(outMsg, decode)
	if decodeErr == nil {
		return outMsg, raw, nil
	}

	retryMsgs := make([]*schema.Message, 0, len(msgs)+1)
	retryMsgs = append(retryMsgs, msgs...)
	retryMsgs = append(retryMsgs, schema.UserMessage(strictJSONReminder))

	outMsg, err = generateWithSchemaFallback(ctx, chatModel, retryMsgs, buildOpts)
	if err != nil {
		return nil, "", err
	}
	raw, decodeErr = decodeJSONMessage(outMsg, decode)
	if decodeErr != nil {
		return nil, "", decodeErr
	}
	return outMsg, raw, nil
}

func generateWithSchemaFallback(
	ctx context.Context,
	chatModel model.BaseChatModel,
	msgs []*schema.Message,
	buildOpts func(enableSchema bool) []model.Option,
) (*schema.Message, error) {
	outMsg, err := chatModel.Generate(ctx, msgs, buildOpts(true)...)
	if err != nil && wfnode.IsResponseFormatUnsupportedError(err) {
		outMsg, err = chatModel.Generate(ctx, msgs, buildOpts(false)...)
	}
	return outMsg, err
}

func decodeJSONMessage(msg *schema.Message, decode func(raw string) error) (string, error) {
	if msg == nil {
		return "", fmt.Errorf("empty llm response")
	}
	raw := wfnode.ExtractJSONObject(msg.Content)
	if strings.TrimSpace(raw) == "" {
		return "", fmt.Errorf("no json object in llm output")
	}
	if err := decode(raw); err != nil {
		return "", fmt.Errorf("failed to parse llm json output: %w", err)
	}
	return raw, nil
}
