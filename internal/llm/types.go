package llm

import (
	"encoding/json"
	"strings"
)

// Item is one raw entry of a Responses API input list. Model output items
// are kept byte-for-byte so they can be sent back on the next turn.
type Item = json.RawMessage

// Message builds a role/content input item.
func Message(role, content string) Item {
	b, _ := json.Marshal(struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}{role, content})
	return b
}

// FunctionCallOutput builds the item that answers a function_call.
func FunctionCallOutput(callID string, output json.RawMessage) Item {
	b, _ := json.Marshal(struct {
		Type   string `json:"type"`
		CallID string `json:"call_id"`
		Output string `json:"output"`
	}{"function_call_output", callID, string(output)})
	return b
}

type request struct {
	Model       string      `json:"model"`
	Input       []Item      `json:"input"`
	Text        *textParam  `json:"text,omitempty"`
	Tools       []toolParam `json:"tools,omitempty"`
	ToolChoice  string      `json:"tool_choice,omitempty"`
	Temperature float64     `json:"temperature"`
}

type textParam struct {
	Format formatParam `json:"format"`
}

type formatParam struct {
	Type   string          `json:"type"`
	Name   string          `json:"name"`
	Schema json.RawMessage `json:"schema"`
	Strict bool            `json:"strict"`
}

type toolParam struct {
	Type        string          `json:"type"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
	Strict      bool            `json:"strict"`
}

// Response is the subset of a Responses API result the loop consumes.
type Response struct {
	ID     string       `json:"id"`
	Status string       `json:"status"`
	Model  string       `json:"model"`
	Output []OutputItem `json:"output"`
	Error  *errorObject `json:"error"`
	Usage  *Usage       `json:"usage,omitempty"`
}

type Usage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
	TotalTokens  int64 `json:"total_tokens"`
}

type errorObject struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// OutputItem is one produced item: a message, a function_call, reasoning, or
// anything else the service emits. Raw holds the original encoding.
type OutputItem struct {
	Type      string        `json:"type"`
	ID        string        `json:"id,omitempty"`
	Role      string        `json:"role,omitempty"`
	Content   []ContentPart `json:"content,omitempty"`
	Name      string        `json:"name,omitempty"`
	Arguments string        `json:"arguments,omitempty"`
	CallID    string        `json:"call_id,omitempty"`
	Raw       Item          `json:"-"`
}

type ContentPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func (o *OutputItem) UnmarshalJSON(b []byte) error {
	type plain OutputItem
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*o = OutputItem(p)
	o.Raw = append(Item(nil), b...)
	return nil
}

// FunctionCall is a tool invocation requested by the model.
type FunctionCall struct {
	CallID    string
	Name      string
	Arguments json.RawMessage
}

// Items returns the output items in produced order, ready to append to the
// conversation.
func (r *Response) Items() []Item {
	out := make([]Item, 0, len(r.Output))
	for _, o := range r.Output {
		if len(o.Raw) > 0 {
			out = append(out, o.Raw)
			continue
		}
		b, err := json.Marshal(o)
		if err == nil {
			out = append(out, b)
		}
	}
	return out
}

// OutputText concatenates every output_text part of every message item.
func (r *Response) OutputText() string {
	var sb strings.Builder
	for _, o := range r.Output {
		if o.Type != "message" {
			continue
		}
		for _, c := range o.Content {
			if c.Type == "output_text" {
				sb.WriteString(c.Text)
			}
		}
	}
	return sb.String()
}

// FunctionCalls returns the function_call items in produced order.
func (r *Response) FunctionCalls() []FunctionCall {
	var calls []FunctionCall
	for _, o := range r.Output {
		if o.Type != "function_call" {
			continue
		}
		calls = append(calls, FunctionCall{CallID: o.CallID, Name: o.Name, Arguments: json.RawMessage(o.Arguments)})
	}
	return calls
}
