package evaluator

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Prompter supplies input lines for `ask`. Prompt displays prompt without a
// trailing newline and returns one line with its line ending removed. At end
// of input it returns "" and a nil error.
type Prompter interface {
	Prompt(prompt string) (string, error)
}

type readerPrompter struct {
	out io.Writer
	in  *bufio.Reader
}

// NewReaderPrompter returns a Prompter that writes prompts to out and reads
// lines from in.
func NewReaderPrompter(out io.Writer, in io.Reader) Prompter {
	return &readerPrompter{out: out, in: bufio.NewReader(in)}
}

func (p *readerPrompter) Prompt(prompt string) (string, error) {
	fmt.Fprint(p.out, prompt)
	line, err := p.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

type eofPrompter struct {
	out io.Writer
}

func (p eofPrompter) Prompt(prompt string) (string, error) {
	fmt.Fprint(p.out, prompt)
	return "", nil
}
