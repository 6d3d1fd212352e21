package core

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
)

func TestAllBuiltins(t *testing.T) {
	for _, b := range ListBuiltins() {
		t.Run(b.Name, func(t *testing.T) {
			if b.ShellBuiltin == nil {
				t.Fatal("nil builtin", b.Name)
			}
			assert.NotEmpty(t, b.Doc)
		})
	}

	assert.Len(t, ListBuiltins(), len(AllBuiltins))
}

func TestBuiltinHelp(t *testing.T) {
	g := goldie.New(
		t,
		goldie.WithFixtureDir(filepath.Join("testdata", "golden")),
		goldie.WithDiffEngine(goldie.ColoredDiff),
		goldie.WithTestNameForDir(true),
	)

	cases := map[string][]string{
		"question":  {"?"},
		"help":      {"help"},
		"fg-help":   {"fg", "--help"},
		"bg-help":   {"bg", "-h"},
		"wait-help": {"wait", "--help"},
		"pwd-help":  {"pwd", "--help"},
	}

	for tn, args := range cases {
		t.Run(tn, func(t *testing.T) {
			s := newTestShell(t)

			status := s.Execute(strings.Join(args, " "))
			assert.Equal(t, 0, status)
			assert.Empty(t, s.stderr.String())

			g.Assert(t, tn, s.stdout.Bytes())
		})
	}
}

func TestBuiltinBadFlag(t *testing.T) {
	s := newTestShell(t)

	assert.Equal(t, ExitUsage, s.Execute("wait --bogus"))
	assert.True(t, strings.HasPrefix(s.stderr.String(), "wait: unknown option: --bogus\n"))
	assert.Contains(t, s.stderr.String(), "usage: wait\n")
}
