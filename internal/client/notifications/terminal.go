package notifications

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// TerminalRequester asks for permission with a y/n prompt. It stands in for
// the OS permission dialog when the client runs in a terminal.
type TerminalRequester struct {
	reader *bufio.Reader
	writer io.Writer
}

func NewTerminalRequester(reader *bufio.Reader, writer io.Writer) *TerminalRequester {
	return &TerminalRequester{reader: reader, writer: writer}
}

// Request prompts on its own goroutine so the caller is never blocked on the
// user's answer. Anything other than "y"/"yes" counts as a denial.
func (r *TerminalRequester) Request(ctx context.Context, done func(granted bool)) {
	go func() {
		fmt.Fprint(r.writer, "Enable push notifications? [y/n]\n> ")

		line, err := r.reader.ReadString('\n')
		granted := false
		if err == nil || len(line) > 0 {
			switch strings.ToLower(strings.TrimSpace(line)) {
			case "y", "yes":
				granted = true
			}
		}

		if done != nil {
			done(granted)
		}
	}()
}
