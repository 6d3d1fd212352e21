// Package redirect extracts I/O redirection and background markers from a
// tokenized command line.
package redirect

import (
	"errors"
	"fmt"
)

const (
	OpInput      = "<"
	OpOutput     = ">"
	OpAppend     = ">>"
	OpBackground = "&"
)

var (
	// ErrMissingTarget is returned when a redirection operator isn't followed
	// by a path.
	ErrMissingTarget = errors.New("missing redirection target")
	// ErrEmptyCommand is returned when nothing is left to execute after the
	// operators are removed.
	ErrEmptyCommand = errors.New("empty command")
)

// Spec is the result of resolving a command line.
type Spec struct {
	// Args holds the argument vector passed to the program, Args[0] is the
	// program name.
	Args []string
	// Stdin is the path to read standard input from, empty if inherited.
	Stdin string
	// Stdout is the path to write standard output to, empty if inherited.
	Stdout string
	// Append is set if Stdout should be appended to rather than truncated.
	Append bool
	// Background is set if the command ended with &.
	Background bool
}

// Resolve scans tokens once, left to right, and removes redirection
// operators, their paths and a trailing & from the argument vector.
func Resolve(tokens []string) (*Spec, error) {
	spec := &Spec{}

	last := len(tokens) - 1
	if last >= 0 && tokens[last] == OpBackground {
		spec.Background = true
		tokens = tokens[:last]
	}

	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		switch tok {
		case OpInput, OpOutput, OpAppend:
			if i+1 >= len(tokens) || isOperator(tokens[i+1]) {
				return nil, fmt.Errorf("%w after %q", ErrMissingTarget, tok)
			}
			target := tokens[i+1]
			i++

			switch tok {
			case OpInput:
				spec.Stdin = target
			case OpOutput:
				spec.Stdout = target
				spec.Append = false
			case OpAppend:
				spec.Stdout = target
				spec.Append = true
			}
		default:
			spec.Args = append(spec.Args, tok)
		}
	}

	if len(spec.Args) == 0 {
		return nil, ErrEmptyCommand
	}

	return spec, nil
}

func isOperator(tok string) bool {
	switch tok {
	case OpInput, OpOutput, OpAppend, OpBackground:
		return true
	}
	return false
}
