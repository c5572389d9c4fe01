package app

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"netlens/internal/prompt"
)

const linePrompt = "netlens> "

// runLines is the plain terminal front end: one question per input line.
// End of input behaves like a quit word.
func (p *Pipeline) runLines(ctx context.Context) error {
	if p.deps.In == nil {
		return nil
	}

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(p.deps.In)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- sc.Err()
		close(lines)
	}()

	out := p.deps.Out
	fmt.Fprintf(out, "Ask about the captured traffic. Type exit, quit or /q to leave.\n%s", linePrompt)
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				if err := <-scanErr; err != nil {
					p.logger.Error("read input failed", "error", err)
				}
				return errQuit
			}
			if prompt.IsQuit(line) {
				return errQuit
			}
			question := strings.TrimSpace(line)
			if question == "" {
				fmt.Fprint(out, linePrompt)
				continue
			}

			ans, err := p.responder.Ask(ctx, question)
			if err != nil {
				p.logger.Error("question failed", "error", err)
				fmt.Fprintf(out, "error: %v\n", err)
			} else {
				fmt.Fprintf(out, "%s\n", ans.Text)
			}
			fmt.Fprint(out, linePrompt)
		}
	}
}
