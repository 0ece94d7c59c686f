package agent

import "github.com/mohammad-safakhou/deepresearch/internal/llm"

// Memory is the run transcript. It only grows; items are never reordered,
// replaced or dropped.
type Memory struct {
	items []llm.Item
}

func NewMemory(items ...llm.Item) *Memory {
	m := &Memory{}
	m.Append(items...)
	return m
}

func (m *Memory) Append(items ...llm.Item) {
	for _, it := range items {
		if len(it) == 0 {
			continue
		}
		m.items = append(m.items, it)
	}
}

func (m *Memory) Len() int { return len(m.items) }

// Items returns a copy of the transcript.
func (m *Memory) Items() []llm.Item {
	return append([]llm.Item(nil), m.items...)
}

// With returns the transcript followed by extra items without storing them.
func (m *Memory) With(extra ...llm.Item) []llm.Item {
	out := make([]llm.Item, 0, len(m.items)+len(extra))
	out = append(out, m.items...)
	return append(out, extra...)
}
