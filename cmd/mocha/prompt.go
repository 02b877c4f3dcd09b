package main

import (
	"errors"
	"io"

	"github.com/peterh/liner"
)

// linerPrompter reads `ask` input with line editing.
type linerPrompter struct {
	ln *liner.State
}

func (p linerPrompter) Prompt(prompt string) (string, error) {
	line, err := p.ln.Prompt(prompt)
	if errors.Is(err, io.EOF) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return line, nil
}
