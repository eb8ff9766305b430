package chatflow

// StreamEventType identifies what kind of event StreamTurn emits.
type StreamEventType string

const (
	// EventText is a chunk of LLM response text.
	EventText StreamEventType = "text"

	// EventToolCall fires when the model decides to call a tool, before
	// it executes.
	EventToolCall StreamEventType = "tool_call"

	// EventToolResult fires after a tool has executed and returned.
	EventToolResult StreamEventType = "tool_result"

	// EventError fires if something goes wrong mid-stream.
	EventError StreamEventType = "error"
)

// StreamEvent is the structured payload delivered to a StreamHandler on
// every tick of a streamed turn.
type StreamEvent struct {
	Type StreamEventType

	// EventText: the incremental text chunk from the LLM.
	Content string

	// EventToolCall / EventToolResult
	ToolCallID string
	ToolName   string

	// EventToolCall: raw JSON arguments the LLM sent to the tool.
	ToolInput string

	// EventToolResult: the string the tool returned.
	ToolOutput string

	// EventError
	Err error
}

// StreamHandler receives events as they happen during StreamTurn.
type StreamHandler func(event StreamEvent)
