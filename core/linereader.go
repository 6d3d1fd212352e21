package core

import (
	"bufio"
	"errors"
	"io"

	"github.com/abiosoft/readline"
)

// errInterrupted is returned when the user cancels the line being edited.
var errInterrupted = errors.New("interrupted")

const charCtrlZ = 26

// lineReader reads command lines.
type lineReader interface {
	ReadLine(prompt string) (string, error)
	Close() error
}

// editorReader reads lines from a terminal with editing and history.
//
// The editor only reads from the terminal while a line is being edited, so
// foreground jobs get all the input typed while they run.
type editorReader struct {
	instance *readline.Instance
}

var _ lineReader = (*editorReader)(nil)

func newEditorReader(stdin io.Reader, stdout, stderr io.Writer, historyFile string) (*editorReader, error) {
	cfg := &readline.Config{
		Stdin:       readline.NewCancelableStdin(stdin),
		Stdout:      stdout,
		Stderr:      stderr,
		HistoryFile: historyFile,

		// Drop Ctrl-Z at the prompt, the editor would stop the shell's parent.
		FuncFilterInputRune: func(r rune) (rune, bool) {
			return r, r != charCtrlZ
		},
	}

	if err := cfg.Init(); err != nil {
		return nil, err
	}

	instance, err := readline.NewEx(cfg)
	if err != nil {
		return nil, err
	}

	return &editorReader{instance: instance}, nil
}

func (r *editorReader) ReadLine(prompt string) (string, error) {
	r.instance.SetPrompt(prompt)
	line, err := r.instance.Readline()
	if err == readline.ErrInterrupt {
		return line, errInterrupted
	}
	return line, err
}

func (r *editorReader) Close() error {
	return r.instance.Close()
}

// scanReader reads lines from a pipe or file without printing prompts.
type scanReader struct {
	scanner *bufio.Scanner
}

var _ lineReader = (*scanReader)(nil)

func newScanReader(stdin io.Reader) *scanReader {
	return &scanReader{scanner: bufio.NewScanner(stdin)}
}

func (r *scanReader) ReadLine(string) (string, error) {
	if r.scanner.Scan() {
		return r.scanner.Text(), nil
	}
	if err := r.scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

func (r *scanReader) Close() error {
	return nil
}
