// Package prompt turns released batches into backend-ready text.
package prompt

import (
	"fmt"
	"strings"
	"time"

	"netlens/internal/models"
)

const anomalyPreamble = "Analyze the following network events for anomalies, unusual patterns, or interesting insights. " +
	"Focus on potential security concerns, performance issues, or unusual communication flows. " +
	"Provide a concise summary and highlight any anomalies.\n\n"

const questionPreamble = "You are a network traffic analyst. Answer the question below using only the network events that follow it. " +
	"If the events do not contain enough information, say so.\n\n" +
	"Question: %s\n\n" +
	"Network events:\n"

// Format builds the prompt for batch. An empty question selects the anomaly
// analysis framing. The output depends only on the arguments.
func Format(batch models.Batch, question string) string {
	var sb strings.Builder

	question = strings.TrimSpace(question)
	if question == "" {
		sb.WriteString(anomalyPreamble)
	} else {
		fmt.Fprintf(&sb, questionPreamble, question)
	}

	for _, ev := range batch.Events {
		fmt.Fprintf(&sb, "Timestamp: %s, Source: %s, Dest: %s, Protocol: %s, Summary: %s\n",
			ev.Timestamp.UTC().Format(time.RFC3339Nano), ev.SourceAddress, ev.DestAddress, ev.Transport, ev.Summary)
	}
	return sb.String()
}

// IsQuit reports whether an operator input line asks to leave the prompt loop.
func IsQuit(line string) bool {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "exit", "quit", "/q":
		return true
	}
	return false
}
