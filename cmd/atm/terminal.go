package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"atm-ledger/pkg/directory"

	"golang.org/x/term"
)

// terminal reads menu input line by line and PINs with echo disabled.
// It implements directory.SecretSource.
type terminal struct {
	in    *bufio.Reader
	out   io.Writer
	fd    int
	isTTY bool
}

func newTerminal(in *os.File, out io.Writer) *terminal {
	fd := int(in.Fd())
	return &terminal{
		in:    bufio.NewReader(in),
		out:   out,
		fd:    fd,
		isTTY: term.IsTerminal(fd),
	}
}

// ReadLine prints prompt and returns the next input line without its newline.
func (t *terminal) ReadLine(prompt string) (string, error) {
	fmt.Fprint(t.out, prompt)
	line, err := t.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// Secret prompts for a PIN. On a terminal the PIN is read with echo off
// and one asterisk per character is printed instead.
func (t *terminal) Secret(ctx context.Context, p directory.Prompt) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if p.PreviousFailed {
		printIncorrectPIN(t.out, p.Remaining)
	}

	if !t.isTTY {
		return t.ReadLine("Enter PIN: ")
	}

	fmt.Fprint(t.out, "Enter PIN: ")
	raw, err := term.ReadPassword(t.fd)
	if err != nil {
		return "", err
	}
	fmt.Fprintln(t.out, strings.Repeat("*", len(raw)))
	return string(raw), nil
}

func printIncorrectPIN(w io.Writer, remaining int) {
	fmt.Fprintf(w, "Incorrect PIN. Attempts left: %d\n", remaining)
}
