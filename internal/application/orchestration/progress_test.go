package orchestration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(p *ProgressStream) []Event {
	var events []Event
	for ev := range p.Events() {
		events = append(events, ev)
	}
	return events
}

func TestProgressOrderedEventsWithSingleTerminal(t *testing.T) {
	p := NewProgressStream(16)
	p.ToolSelected()
	p.StepCompleted(1, 1)
	p.ArtifactCommitted("s1", 3)
	p.Done()

	events := drain(p)
	require.Len(t, events, 4)
	assert.Equal(t, EventToolSelected, events[0].Type)
	assert.Equal(t, EventStepCompleted, events[1].Type)
	assert.Equal(t, EventArtifactCommitted, events[2].Type)
	assert.Equal(t, int64(3), events[2].VersionToken)
	assert.Equal(t, EventDone, events[3].Type)
}

func TestProgressNoEventsAfterTerminal(t *testing.T) {
	p := NewProgressStream(16)
	p.Fail("boom")
	p.ToolSelected()
	p.Done()

	events := drain(p)
	require.Len(t, events, 1)
	assert.Equal(t, EventFailed, events[0].Type)
	assert.Equal(t, "boom", events[0].Reason)
}

func TestProgressTerminalDeliveredWhenBufferFull(t *testing.T) {
	p := NewProgressStream(2)
	p.ToolSelected()
	p.StepCompleted(1, 3)
	// 缓冲已满，后续中间事件被丢弃
	p.StepCompleted(2, 3)
	p.Done()

	events := drain(p)
	require.NotEmpty(t, events)
	assert.Equal(t, EventDone, events[len(events)-1].Type)

	terminals := 0
	for _, ev := range events {
		if ev.Type == EventDone || ev.Type == EventFailed {
			terminals++
		}
	}
	assert.Equal(t, 1, terminals)
}

func TestProgressEmitNeverBlocksWithoutConsumer(t *testing.T) {
	p := NewProgressStream(1)
	for i := 0; i < 100; i++ {
		p.StepCompleted(i, 100)
	}
	p.Done()

	events := drain(p)
	assert.Equal(t, EventDone, events[len(events)-1].Type)
}
