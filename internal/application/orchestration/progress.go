package orchestration

import "sync"

// EventType 进度事件类型
type EventType string

const (
	EventToolSelected      EventType = "toolSelected"
	EventStepCompleted     EventType = "stepCompleted"
	EventArtifactCommitted EventType = "artifactCommitted"
	EventDone              EventType = "done"
	EventFailed            EventType = "failed"
)

// Event 单条进度事件。done/failed 是终态，每次请求恰好发出一个。
type Event struct {
	Type EventType `json:"type"`
	// StepIndex / StepTotal 仅 stepCompleted 携带
	StepIndex int `json:"step_index,omitempty"`
	StepTotal int `json:"step_total,omitempty"`
	// EntityID / VersionToken 仅 artifactCommitted 携带
	EntityID     string `json:"entity_id,omitempty"`
	VersionToken int64  `json:"version_token,omitempty"`
	// Reason 仅 failed 携带
	Reason string `json:"reason,omitempty"`
}

// ProgressStream 单次编排调用的进度事件流。
// 发送端绝不因消费方迟缓而阻塞：缓冲满时丢弃中间事件，终态事件必达。
type ProgressStream struct {
	ch chan Event

	mu       sync.Mutex
	terminal bool
}

// NewProgressStream 创建进度流
func NewProgressStream(bufferSize int) *ProgressStream {
	if bufferSize <= 0 {
		bufferSize = 16
	}
	return &ProgressStream{
		ch: make(chan Event, bufferSize),
	}
}

// Events 消费端通道，终态事件发出后关闭
func (p *ProgressStream) Events() <-chan Event {
	return p.ch
}

// ToolSelected 工具选定
func (p *ProgressStream) ToolSelected() {
	p.emit(Event{Type: EventToolSelected})
}

// StepCompleted 计划中的一步完成
func (p *ProgressStream) StepCompleted(index, total int) {
	p.emit(Event{Type: EventStepCompleted, StepIndex: index, StepTotal: total})
}

// ArtifactCommitted 状态变更已提交
func (p *ProgressStream) ArtifactCommitted(entityID string, versionToken int64) {
	p.emit(Event{Type: EventArtifactCommitted, EntityID: entityID, VersionToken: versionToken})
}

// Done 正常终态
func (p *ProgressStream) Done() {
	p.terminate(Event{Type: EventDone})
}

// Fail 失败终态
func (p *ProgressStream) Fail(reason string) {
	p.terminate(Event{Type: EventFailed, Reason: reason})
}

func (p *ProgressStream) emit(ev Event) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.terminal {
		return
	}
	select {
	case p.ch <- ev:
	default:
		// 缓冲满：丢弃中间事件，消费方靠终态事件收敛
	}
}

func (p *ProgressStream) terminate(ev Event) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.terminal {
		return
	}
	p.terminal = true

	// 终态事件必须送达：缓冲满时腾出一个位置
	for {
		select {
		case p.ch <- ev:
			close(p.ch)
			return
		default:
			select {
			case <-p.ch:
			default:
			}
		}
	}
}
