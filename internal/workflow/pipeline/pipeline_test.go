package pipeline

import (
	"context"
	"fmt"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	wfmodel "z-video-ai-api/internal/workflow/model"
)

type scriptedChatModel struct {
	responses []*schema.Message
	calls     [][]*schema.Message
}

func (m *scriptedChatModel) Generate(ctx context.Context, msgs []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	i := len(m.calls)
	m.calls = append(m.calls, msgs)
	if i >= len(m.responses) {
		return nil, fmt.Errorf("unexpected generate call %d", i)
	}
	return m.responses[i], nil
}

func (m *scriptedChatModel) Stream(ctx context.Context, msgs []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, fmt.Errorf("stream not supported")
}

type scriptedFactory struct {
	chatModel model.BaseChatModel
}

func (f *scriptedFactory) Get(ctx context.Context, name string) (model.BaseChatModel, error) {
	return f.chatModel, nil
}

func newScriptedPipeline(responses ...string) (*Pipeline, *scriptedChatModel) {
	msgs := make([]*schema.Message, 0, len(responses))
	for _, r := range responses {
		msgs = append(msgs, schema.AssistantMessage(r, nil))
	}
	cm := &scriptedChatModel{responses: msgs}
	return New(&scriptedFactory{chatModel: cm}), cm
}

const validIntentJSON = `{"candidates":[{"capability":"create_scene","confidence":0.9}],"ambiguous":false,"reason":"新建场景"}`

func TestClassifyIntentParsesValidOutputWithoutRetry(t *testing.T) {
	p, cm := newScriptedPipeline(validIntentJSON)

	out, err := p.ClassifyIntent(context.Background(), &wfmodel.IntentClassifyInput{
		Provider:  "openai",
		Utterance: "帮我新建一个开场场景",
	})

	require.NoError(t, err)
	assert.Len(t, cm.calls, 1)
	require.Len(t, out.Candidates, 1)
	assert.Equal(t, "create_scene", out.Candidates[0].Capability)
}

func TestClassifyIntentRetriesOnceOnUnparsableOutput(t *testing.T) {
	p, cm := newScriptedPipeline("抱歉，我无法处理这个请求。", validIntentJSON)

	out, err := p.ClassifyIntent(context.Background(), &wfmodel.IntentClassifyInput{
		Provider:  "openai",
		Utterance: "帮我新建一个开场场景",
	})

	require.NoError(t, err)
	require.Len(t, cm.calls, 2)

	// 重试请求在原始消息之后追加了纠正指令
	first, second := cm.calls[0], cm.calls[1]
	require.Len(t, second, len(first)+1)
	assert.Contains(t, second[len(second)-1].Content, "JSON")

	require.Len(t, out.Candidates, 1)
	assert.Equal(t, "create_scene", out.Candidates[0].Capability)
}

func TestClassifyIntentFailsAfterSingleRetry(t *testing.T) {
	p, cm := newScriptedPipeline("抱歉，我无法处理。", "这次也不是结构化输出。")

	_, err := p.ClassifyIntent(context.Background(), &wfmodel.IntentClassifyInput{
		Provider:  "openai",
		Utterance: "帮我新建一个开场场景",
	})

	require.Error(t, err)
	assert.Len(t, cm.calls, 2)
}

func TestExtractPreferencesRetriesOnceOnUnparsableOutput(t *testing.T) {
	valid := `{"signals":[{"key":"style.tone","value":"极简","kind":"explicit","repeats":1}]}`
	p, cm := newScriptedPipeline("好的，我记住了。", valid)

	out, err := p.ExtractPreferences(context.Background(), &wfmodel.PreferenceExtractInput{
		Provider:  "openai",
		Utterance: "以后所有视频都用极简风格",
	})

	require.NoError(t, err)
	assert.Len(t, cm.calls, 2)
	require.Len(t, out.Signals, 1)
	assert.Equal(t, "style.tone", out.Signals[0].Key)
}

func TestAnalyzeImageRetriesOnceOnUnparsableOutput(t *testing.T) {
	valid := `{"facts":[{"kind":"color","content":"主色调为深蓝","confidence":0.8}]}`
	p, cm := newScriptedPipeline("这张图片展示了一个产品。", valid)

	out, err := p.AnalyzeImage(context.Background(), &wfmodel.ImageAnalysisInput{
		Provider: "openai",
		ImageURL: "https://example.com/shot.png",
	})

	require.NoError(t, err)
	assert.Len(t, cm.calls, 2)
	require.Len(t, out.Facts, 1)
	assert.Equal(t, "color", out.Facts[0].Kind)
}
