package admission

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// ConsoleApprover prompts on a terminal and reads y/n answers, one line per answer.
// An empty answer approves.
type ConsoleApprover struct {
	out io.Writer

	once  sync.Once
	in    io.Reader
	lines chan string
	errs  chan error
}

// NewConsoleApprover creates an approver reading answers from in and writing prompts to out.
func NewConsoleApprover(in io.Reader, out io.Writer) *ConsoleApprover {
	return &ConsoleApprover{
		in:    in,
		out:   out,
		lines: make(chan string),
		errs:  make(chan error, 1),
	}
}

func (a *ConsoleApprover) readLoop() {
	scanner := bufio.NewScanner(a.in)
	for scanner.Scan() {
		a.lines <- scanner.Text()
	}
	err := scanner.Err()
	if err == nil {
		err = io.EOF
	}
	a.errs <- err
}

// Approve writes the summary and prompt, then waits for the operator's answer.
func (a *ConsoleApprover) Approve(ctx context.Context, summary string) (bool, error) {
	a.once.Do(func() { go a.readLoop() })

	if _, err := fmt.Fprintf(a.out, "\n%s\nApprove this request? [Y/n]: ", summary); err != nil {
		return false, fmt.Errorf("write prompt: %w", err)
	}

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case err := <-a.errs:
		a.errs <- err
		return false, fmt.Errorf("operator console closed: %w", err)
	case line := <-a.lines:
		return parseAnswer(line), nil
	}
}

func parseAnswer(line string) bool {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "", "y", "yes":
		return true
	default:
		return false
	}
}
