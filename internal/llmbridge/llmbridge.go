// Package llmbridge wraps the Anthropic Messages API behind the narrow
// surface the agent engine needs: send a turn, pull text back out, pull
// tool calls back out, and ask whether the model asked for a tool at all.
//
// Grounded on original_source/span/llm/client.py (the method shapes:
// send_message/extract_text/extract_tool_calls/has_tool_use), realized with
// github.com/anthropics/anthropic-sdk-go the way
// teradata-labs-loom/pkg/llm/bedrock/client_sdk.go and the direct-API
// gitsynth agent example build anthropic.MessageNewParams and walk
// anthropic.Message.Content by block type.
package llmbridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// ToolSpec describes one tool the model may invoke, mirroring
// RunShellTool/ApplyPatchTool/ReadFileTool's name/description/parameters
// triad in the Python original.
type ToolSpec struct {
	Name        string
	Description string
	Schema      map[string]any
}

// ToolCall is one tool invocation the model requested.
type ToolCall struct {
	ID    string
	Name  string
	Input json.RawMessage
}

// Bridge sends turns to Claude and decodes its responses.
type Bridge struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// New constructs a Bridge for the given model using apiKey (empty defers to
// the SDK's own ANTHROPIC_API_KEY environment lookup).
func New(model, apiKey string) *Bridge {
	opts := []option.RequestOption{}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	return &Bridge{
		client:    anthropic.NewClient(opts...),
		model:     model,
		maxTokens: 8192,
	}
}

// Message is the provider-agnostic shape the agent engine builds up a
// conversation from; Send converts it to the SDK's wire types.
type Message struct {
	Role    string // "user", "assistant", or "tool"
	Text    string
	Tools   []ToolCall // assistant messages that requested tools
	ToolID  string     // set on tool-result messages
	IsError bool       // set on tool-result messages
}

// Send issues one turn: the full conversation so far plus the system
// prompt and tool specs, and returns the raw SDK message for Extract* to
// decode.
func (b *Bridge) Send(ctx context.Context, system string, messages []Message, tools []ToolSpec) (*anthropic.Message, error) {
	sdkMessages, err := toSDKMessages(messages)
	if err != nil {
		return nil, fmt.Errorf("llmbridge: convert messages: %w", err)
	}
	if len(sdkMessages) == 0 {
		return nil, errors.New("llmbridge: no messages to send")
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(b.model),
		MaxTokens: b.maxTokens,
		Messages:  sdkMessages,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if len(tools) > 0 {
		params.Tools = toSDKTools(tools)
	}

	message, err := b.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("llmbridge: request failed: %w", err)
	}
	return message, nil
}

func toSDKMessages(messages []Message) ([]anthropic.MessageParam, error) {
	var out []anthropic.MessageParam
	i := 0
	for i < len(messages) {
		m := messages[i]
		switch m.Role {
		case "user":
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Text)))
			i++
		case "tool":
			// Consecutive tool-result messages are one turn's worth of results
			// for possibly several tool calls; the API wants them combined
			// into a single user message carrying one block per result.
			var blocks []anthropic.ContentBlockParamUnion
			for i < len(messages) && messages[i].Role == "tool" {
				blocks = append(blocks, anthropic.NewToolResultBlock(messages[i].ToolID, messages[i].Text, messages[i].IsError))
				i++
			}
			out = append(out, anthropic.NewUserMessage(blocks...))
		case "assistant":
			var content []anthropic.ContentBlockParamUnion
			if m.Text != "" {
				content = append(content, anthropic.NewTextBlock(m.Text))
			}
			for _, tc := range m.Tools {
				var input any
				if err := json.Unmarshal(tc.Input, &input); err != nil {
					return nil, fmt.Errorf("decode tool input for %s: %w", tc.Name, err)
				}
				content = append(content, anthropic.NewToolUseBlock(tc.ID, input, tc.Name))
			}
			if len(content) > 0 {
				out = append(out, anthropic.NewAssistantMessage(content...))
			}
			i++
		default:
			return nil, fmt.Errorf("unknown message role: %s", m.Role)
		}
	}
	return out, nil
}

func toSDKTools(tools []ToolSpec) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		schemaJSON, _ := json.Marshal(t.Schema)
		var inputSchema anthropic.ToolInputSchemaParam
		_ = json.Unmarshal(schemaJSON, &inputSchema)
		out = append(out, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        t.Name,
				Description: anthropic.String(t.Description),
				InputSchema: inputSchema,
			},
		})
	}
	return out
}

// ExtractText concatenates every text block in message's content, in order.
func ExtractText(message *anthropic.Message) string {
	var text string
	for _, block := range message.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	return text
}

// ExtractToolCalls returns every tool_use block in message's content.
func ExtractToolCalls(message *anthropic.Message) []ToolCall {
	var calls []ToolCall
	for _, block := range message.Content {
		if block.Type == "tool_use" {
			calls = append(calls, ToolCall{ID: block.ID, Name: block.Name, Input: block.Input})
		}
	}
	return calls
}

// HasToolUse reports whether message contains at least one tool_use block.
func HasToolUse(message *anthropic.Message) bool {
	for _, block := range message.Content {
		if block.Type == "tool_use" {
			return true
		}
	}
	return false
}
