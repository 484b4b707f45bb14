package session

import (
	"strings"

	"google.golang.org/genai"
)

// FunctionCalls returns every function-call part of the event's content,
// in part order. A single scan; an event may carry calls and responses.
func (e *Event) FunctionCalls() []*genai.FunctionCall {
	if e.Content == nil {
		return nil
	}
	var calls []*genai.FunctionCall
	for _, part := range e.Content.Parts {
		if part != nil && part.FunctionCall != nil {
			calls = append(calls, part.FunctionCall)
		}
	}
	return calls
}

// FunctionResponses returns every function-response part of the event's
// content, in part order.
func (e *Event) FunctionResponses() []*genai.FunctionResponse {
	if e.Content == nil {
		return nil
	}
	var responses []*genai.FunctionResponse
	for _, part := range e.Content.Parts {
		if part != nil && part.FunctionResponse != nil {
			responses = append(responses, part.FunctionResponse)
		}
	}
	return responses
}

// HasTrailingCodeExecutionResult reports whether the last content part is
// a code-execution result. Only the final part matters: a trailing result
// means the agent still owes a textual summary.
func (e *Event) HasTrailingCodeExecutionResult() bool {
	if e.Content == nil || len(e.Content.Parts) == 0 {
		return false
	}
	last := e.Content.Parts[len(e.Content.Parts)-1]
	return last != nil && last.CodeExecutionResult != nil
}

// IsFinalResponse is the turn-boundary predicate: it decides whether the
// orchestration loop should yield this event to the external caller
// instead of continuing internal tool-result processing.
func (e *Event) IsFinalResponse() bool {
	if e.Actions.SkipSummarization != nil && *e.Actions.SkipSummarization {
		return true
	}
	// An in-flight async tool call always yields control.
	if len(e.LongRunningToolIDs) > 0 {
		return true
	}
	return len(e.FunctionCalls()) == 0 &&
		len(e.FunctionResponses()) == 0 &&
		!e.Partial &&
		!e.HasTrailingCodeExecutionResult()
}

// TextContent joins all text-bearing parts in order with no separator,
// skipping non-text parts.
func (e *Event) TextContent() string {
	if e.Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range e.Content.Parts {
		if part != nil && part.Text != "" {
			sb.WriteString(part.Text)
		}
	}
	return sb.String()
}
