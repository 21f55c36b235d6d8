package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// prompter reads answers line by line. Passwords are masked when the input
// is a terminal.
type prompter struct {
	sc  *bufio.Scanner
	out io.Writer
	fd  int // terminal descriptor, -1 when input is not a terminal
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	fd := -1
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fd = int(f.Fd())
	}
	return &prompter{sc: bufio.NewScanner(in), out: out, fd: fd}
}

// line prints prompt and returns the trimmed answer. ok is false at end of input.
func (p *prompter) line(prompt string) (string, bool) {
	fmt.Fprint(p.out, prompt)
	if !p.sc.Scan() {
		return "", false
	}
	return strings.TrimSpace(p.sc.Text()), true
}

// password reads a password with masking when possible.
func (p *prompter) password(prompt string) (string, error) {
	if p.fd < 0 {
		answer, ok := p.line(prompt)
		if !ok {
			return "", io.ErrUnexpectedEOF
		}
		return answer, nil
	}
	fmt.Fprint(p.out, prompt)
	bytePassword, err := term.ReadPassword(p.fd)
	if err != nil {
		return "", err
	}
	fmt.Fprintln(p.out) // Add newline after password input
	return strings.TrimSpace(string(bytePassword)), nil
}
