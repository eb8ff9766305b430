// Package toolx registers callable tools and executes tool calls a
// provider's response asks for, converting tool output back into the
// llm.Message shape a conversation loop re-injects into history.
package toolx

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"sync"

	"github.com/contextgate/gateway/pkg/ai/llm"
	"github.com/contextgate/gateway/pkg/errx"
)

var errorRegistry = errx.NewRegistry("TOOLX")

var (
	ErrToolNotFound = errorRegistry.Register(
		"TOOL_NOT_FOUND",
		errx.TypeNotFound,
		http.StatusNotFound,
		"No tool registered with that name",
	)

	ErrInvalidArguments = errorRegistry.Register(
		"INVALID_ARGUMENTS",
		errx.TypeValidation,
		http.StatusBadRequest,
		"Tool call arguments could not be parsed",
	)
)

// HandlerFunc executes one tool call given its already-decoded arguments
// and returns the string the model should see as the tool's result.
type HandlerFunc func(ctx context.Context, args map[string]any) (string, error)

// registration pairs a tool's advertised schema with its handler.
type registration struct {
	tool    llm.Tool
	handler HandlerFunc
}

// Client registers tools, advertises them to providers via GetTools, and
// executes a ToolCall via Call — the shape the conversation loop expects
// regardless of which provider produced the tool call.
type Client struct {
	mu    sync.RWMutex
	tools map[string]registration
}

// New creates an empty tool registry.
func New() *Client {
	return &Client{tools: make(map[string]registration)}
}

// Register adds a tool under name with the given JSON-schema parameters
// and handler. Re-registering a name overwrites the previous entry.
func (c *Client) Register(name, description string, parameters any, handler HandlerFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tools[name] = registration{
		tool: llm.Tool{
			Type: "function",
			Function: llm.Function{
				Name:        name,
				Description: description,
				Parameters:  parameters,
			},
		},
		handler: handler,
	}
}

// GetTools returns every registered tool's schema, in the shape providers
// advertise as available functions.
func (c *Client) GetTools() []llm.Tool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	tools := make([]llm.Tool, 0, len(c.tools))
	for _, r := range c.tools {
		tools = append(tools, r.tool)
	}
	return tools
}

// Call executes the tool named by tc.Function.Name with its decoded
// arguments and returns an llm.Message carrying the result tagged with
// tc.ID, ready to be appended to conversation history.
func (c *Client) Call(ctx context.Context, tc llm.ToolCall) (llm.Message, error) {
	c.mu.RLock()
	reg, ok := c.tools[tc.Function.Name]
	c.mu.RUnlock()
	if !ok {
		return llm.Message{}, errorRegistry.New(ErrToolNotFound).WithDetail("tool", tc.Function.Name)
	}

	var args map[string]any
	if tc.Function.Arguments != "" {
		if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
			return llm.Message{}, errorRegistry.NewWithCause(ErrInvalidArguments, err).WithDetail("tool", tc.Function.Name)
		}
	}

	result, err := reg.handler(ctx, args)
	if err != nil {
		result = fmt.Sprintf("error: %v", err)
	}

	return llm.NewToolMessage(tc.ID, result), nil
}

// DisplayCall renders a tool call as an HTML-escaped, human-readable
// one-liner for transcript/UI display — the function name and arguments
// are untrusted model output and must not be interpreted as markup.
func DisplayCall(tc llm.ToolCall) string {
	return fmt.Sprintf("<tool-call name=%q>%s</tool-call>",
		html.EscapeString(tc.Function.Name),
		html.EscapeString(tc.Function.Arguments),
	)
}
