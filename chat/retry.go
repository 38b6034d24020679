package chat

import (
	"fmt"
	"strings"
)

const (
	retryInstruction = "You were asked the same question previously, but the response was interrupted before completion. " +
		"Please continue your response from where you left off. " +
		"Do not include the part of the response that was already seen."
	retryOriginalLabel = "Here is the original question:"
	retryPartialLabel  = "Here is the partial response that was successfully received:"
)

var attrEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
)

// RetryPrompt rebuilds a request transcript that asks the model to
// continue an interrupted response. The original events are echoed
// verbatim between an instruction and a user message that carries the
// prefix already delivered, with partial tool calls rendered as
// XML-like tokens. Attribute values are escaped so tool arguments
// containing quotes cannot break the token out of its tag.
func RetryPrompt(original []Event, partial []Delta) []Event {
	events := make([]Event, 0, len(original)+3)
	events = append(events,
		SystemText(retryInstruction),
		SystemText(retryOriginalLabel),
	)
	events = append(events, original...)

	var sb strings.Builder
	sb.WriteString(retryPartialLabel)
	sb.WriteString("\n")
	for _, delta := range partial {
		sb.WriteString(TextContent(delta.Content))
		for _, call := range delta.ToolCalls {
			fmt.Fprintf(&sb, `<tool-call id="%s" name="%s" arguments="%s"/>`,
				attrEscaper.Replace(call.ID),
				attrEscaper.Replace(call.Name),
				attrEscaper.Replace(call.ArgumentsJSON),
			)
		}
	}
	return append(events, Message{Role: RoleUser, Content: []ContentPart{Text{Text: sb.String()}}})
}
