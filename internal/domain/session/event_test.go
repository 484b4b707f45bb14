package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func textPart(text string) *genai.Part {
	return genai.NewPartFromText(text)
}

func callPart(name string) *genai.Part {
	return &genai.Part{FunctionCall: &genai.FunctionCall{Name: name}}
}

func responsePart(name string) *genai.Part {
	return &genai.Part{FunctionResponse: &genai.FunctionResponse{Name: name}}
}

func execResultPart() *genai.Part {
	return &genai.Part{CodeExecutionResult: &genai.CodeExecutionResult{Output: "ok"}}
}

func contentOf(parts ...*genai.Part) *genai.Content {
	return &genai.Content{Role: genai.RoleModel, Parts: parts}
}

func TestNewEventDefaults(t *testing.T) {
	ev := NewEvent(Event{Author: "agent"})

	assert.Len(t, ev.ID, 8)
	assert.Regexp(t, `^[A-Za-z0-9]{8}$`, ev.ID)
	assert.Empty(t, ev.InvocationID)
	assert.NotNil(t, ev.LongRunningToolIDs)
	assert.False(t, ev.Timestamp.IsZero())
	assert.Equal(t, "agent", ev.Author)
}

func TestNewEventPreservesSuppliedFields(t *testing.T) {
	in := Event{ID: "fixed123", InvocationID: "inv-1", LongRunningToolIDs: []string{"t1"}}
	ev := NewEvent(in)

	assert.Equal(t, "fixed123", ev.ID)
	assert.Equal(t, "inv-1", ev.InvocationID)
	assert.Equal(t, []string{"t1"}, ev.LongRunningToolIDs)
}

func TestNewEventActionSetIsWritable(t *testing.T) {
	ev := NewEvent(Event{Author: "agent"})

	// A producer populates the action set after construction; the fresh
	// maps must accept writes.
	ev.Actions.StateDelta["app:theme"] = "dark"
	ev.Actions.ArtifactDelta["report.bin"] = 0
	ev.Actions.RequestedAuthConfigs["tool"] = map[string]any{"scheme": "oauth"}
	ev.Actions.RequestedToolConfirmations["tool"] = true

	assert.Equal(t, "dark", ev.Actions.StateDelta["app:theme"])
	assert.Equal(t, 0, ev.Actions.ArtifactDelta["report.bin"])
	assert.True(t, ev.Actions.RequestedToolConfirmations["tool"])
}

func TestNewEventPreservesSuppliedActions(t *testing.T) {
	in := Event{Actions: EventActions{StateDelta: map[string]any{"topic": "intro"}}}
	ev := NewEvent(in)

	assert.Equal(t, "intro", ev.Actions.StateDelta["topic"])
	assert.NotNil(t, ev.Actions.ArtifactDelta)
	assert.NotNil(t, ev.Actions.RequestedAuthConfigs)
	assert.NotNil(t, ev.Actions.RequestedToolConfirmations)
}

func TestFunctionCallAndResponseExtraction(t *testing.T) {
	ev := Event{Content: contentOf(
		textPart("thinking"),
		callPart("search"),
		responsePart("search"),
		callPart("summarize"),
	)}

	calls := ev.FunctionCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, "search", calls[0].Name)
	assert.Equal(t, "summarize", calls[1].Name)

	responses := ev.FunctionResponses()
	require.Len(t, responses, 1)
	assert.Equal(t, "search", responses[0].Name)
}

func TestHasTrailingCodeExecutionResult(t *testing.T) {
	trailing := Event{Content: contentOf(textPart("running"), execResultPart())}
	assert.True(t, trailing.HasTrailingCodeExecutionResult())

	// Only the final part counts.
	interior := Event{Content: contentOf(execResultPart(), textPart("done"))}
	assert.False(t, interior.HasTrailingCodeExecutionResult())

	empty := Event{}
	assert.False(t, empty.HasTrailingCodeExecutionResult())
}

func TestIsFinalResponse(t *testing.T) {
	tests := []struct {
		name  string
		event Event
		want  bool
	}{
		{
			name:  "function call pending",
			event: Event{Content: contentOf(callPart("search"))},
			want:  false,
		},
		{
			name: "function call with skip summarization",
			event: Event{
				Content: contentOf(callPart("search")),
				Actions: EventActions{SkipSummarization: boolPtr(true)},
			},
			want: true,
		},
		{
			name:  "long running tool yields control",
			event: Event{Content: contentOf(callPart("slow")), LongRunningToolIDs: []string{"t1"}},
			want:  true,
		},
		{
			name:  "empty final event",
			event: Event{},
			want:  true,
		},
		{
			name:  "plain text reply",
			event: Event{Content: contentOf(textPart("answer"))},
			want:  true,
		},
		{
			name:  "function response pending",
			event: Event{Content: contentOf(responsePart("search"))},
			want:  false,
		},
		{
			name:  "streaming fragment",
			event: Event{Content: contentOf(textPart("ans")), Partial: true},
			want:  false,
		},
		{
			name:  "trailing execution result owes a summary",
			event: Event{Content: contentOf(textPart("ran code"), execResultPart())},
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.event.IsFinalResponse())
		})
	}
}

func TestTextContent(t *testing.T) {
	ev := Event{Content: contentOf(
		textPart("hello "),
		callPart("tool"),
		textPart("world"),
	)}

	assert.Equal(t, "hello world", ev.TextContent())
	assert.Empty(t, (&Event{}).TextContent())
}
