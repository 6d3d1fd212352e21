package core

import (
	"bytes"
	"errors"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/josephlewis42/jobsh/core/config"
	"github.com/josephlewis42/jobsh/core/jobs"
	"github.com/josephlewis42/jobsh/core/tty"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

type testShell struct {
	*Shell
	stdout bytes.Buffer
	stderr bytes.Buffer
	exited []int
}

func newTestShell(t *testing.T) *testShell {
	t.Helper()

	cfg := config.Default()
	cfg.Color = config.ColorNever

	ts := &testShell{}
	ts.Shell = newShell(cfg, tty.Detached{}, nil, log.New(io.Discard, "", 0))
	ts.Stdout = &ts.stdout
	ts.Stderr = &ts.stderr
	ts.Launcher.Messages = &ts.stdout
	ts.useColor = false
	ts.exit = func(code int) { ts.exited = append(ts.exited, code) }

	t.Cleanup(func() {
		for _, job := range ts.Jobs.Jobs() {
			unix.Kill(-job.Pgid, unix.SIGKILL)
			var ws unix.WaitStatus
			unix.Wait4(job.Pid, &ws, 0, nil)
		}
	})
	return ts
}

func requireSh(t *testing.T) {
	t.Helper()
	if _, err := LookPath(os.Getenv("PATH"), "sh"); err != nil {
		t.Skip("sh not available")
	}
}

// waitStopped blocks until pid reports a stop.
func waitStopped(t *testing.T, pid int) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		var ws unix.WaitStatus
		wpid, err := unix.Wait4(pid, &ws, unix.WUNTRACED|unix.WNOHANG, nil)
		require.NoError(t, err)
		if wpid == pid && ws.Stopped() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("process %d never stopped", pid)
}

func TestBuiltinErrors(t *testing.T) {
	cases := map[string]struct {
		line       string
		wantStatus int
		wantStderr string
	}{
		"fg empty registry": {
			line:       "fg",
			wantStatus: 1,
			wantStderr: "fg: no background jobs\n",
		},
		"bg empty registry": {
			line:       "bg",
			wantStatus: 1,
			wantStderr: "bg: no background jobs\n",
		},
		"fg non-numeric pid": {
			line:       "fg abc",
			wantStatus: 1,
			wantStderr: "fg: invalid pid: \"abc\"\n",
		},
		"bg zero pid": {
			line:       "bg 0",
			wantStatus: 1,
			wantStderr: "bg: invalid pid: \"0\"\n",
		},
		"fg overflowing pid": {
			line:       "fg 99999999999999999999",
			wantStatus: 1,
			wantStderr: "fg: invalid pid: \"99999999999999999999\"\n",
		},
		"fg too many arguments": {
			line:       "fg 1 2",
			wantStatus: 1,
			wantStderr: "fg: too many arguments\n",
		},
		"fg not a child": {
			line:       "fg 1",
			wantStatus: 1,
			wantStderr: "fg: no such job: 1\n",
		},
		"bg missing process": {
			line:       "bg 2147483647",
			wantStatus: 1,
			wantStderr: "bg: no such job: 2147483647\n",
		},
		"cd too many arguments": {
			line:       "cd a b",
			wantStatus: 1,
			wantStderr: "cd: too many arguments\n",
		},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			s := newTestShell(t)

			assert.Equal(t, tc.wantStatus, s.Execute(tc.line))
			assert.Equal(t, tc.wantStderr, s.stderr.String())
			assert.Equal(t, 0, s.Jobs.Len())
		})
	}
}

func TestExecute(t *testing.T) {
	requireSh(t)

	cases := map[string]struct {
		line       string
		wantStatus int
		wantStderr string
	}{
		"empty line":        {line: "   ", wantStatus: 0},
		"exit status":       {line: "sh -c 'exit 5'", wantStatus: 5},
		"quoted arguments":  {line: `sh -c "test 'a b' = \"a b\""`, wantStatus: 0},
		"unterminated":      {line: `echo "oops`, wantStatus: ExitUsage},
		"command not found": {line: "jobsh-no-such-command", wantStatus: 127, wantStderr: "jobsh-no-such-command: command not found\n"},
		"missing path":      {line: "/no/such/binary", wantStatus: 127},
		"dangling redirect": {line: "sh -c true >", wantStatus: 1},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			s := newTestShell(t)

			assert.Equal(t, tc.wantStatus, s.Execute(tc.line))
			if tc.wantStderr != "" {
				assert.Equal(t, tc.wantStderr, s.stderr.String())
			}
		})
	}
}

func TestFgTargetsMostRecent(t *testing.T) {
	requireSh(t)
	s := newTestShell(t)

	require.Equal(t, 0, s.Execute("sh -c 'sleep 2; exit 7' &"))
	first, ok := s.Jobs.MostRecent()
	require.True(t, ok)

	require.Equal(t, 0, s.Execute("sh -c 'sleep 1; exit 8' &"))
	second, ok := s.Jobs.MostRecent()
	require.True(t, ok)
	require.NotEqual(t, first, second)

	assert.Equal(t, 8, s.Execute("fg"))
	mostRecent, ok := s.Jobs.MostRecent()
	require.True(t, ok)
	assert.Equal(t, first, mostRecent)
	_, ok = s.Jobs.Lookup(second)
	assert.False(t, ok)

	assert.Equal(t, 7, s.Execute("fg"))
	assert.Equal(t, 0, s.Jobs.Len())

	s.stderr.Reset()
	assert.Equal(t, 1, s.Execute("fg"))
	assert.Equal(t, "fg: no background jobs\n", s.stderr.String())
}

func TestFgExplicitPid(t *testing.T) {
	requireSh(t)
	s := newTestShell(t)

	require.Equal(t, 0, s.Execute("sh -c 'sleep 1; exit 3' &"))
	first, _ := s.Jobs.MostRecent()
	require.Equal(t, 0, s.Execute("sh -c 'sleep 2; exit 4' &"))

	assert.Equal(t, 3, s.Execute("fg "+strconv.Itoa(first)))
	assert.Equal(t, 1, s.Jobs.Len())
	_, ok := s.Jobs.Lookup(first)
	assert.False(t, ok)
}

func TestFgStoppedAgainIsRequeued(t *testing.T) {
	requireSh(t)
	s := newTestShell(t)

	require.Equal(t, 0, s.Execute("sh -c 'kill -STOP $$; kill -STOP $$; exit 6' &"))
	pid, _ := s.Jobs.MostRecent()
	waitStopped(t, pid)

	// Resumed, then stops itself a second time.
	status := s.Execute("fg")
	assert.Equal(t, 128+int(unix.SIGSTOP), status)

	job, ok := s.Jobs.PeekLast()
	require.True(t, ok)
	assert.Equal(t, pid, job.Pid)
	assert.Equal(t, jobs.Stopped, job.State)

	assert.Equal(t, 6, s.Execute("fg"))
	assert.Equal(t, 0, s.Jobs.Len())
}

func TestFgContinueFailureKeepsJob(t *testing.T) {
	sleep, err := LookPath(os.Getenv("PATH"), "sleep")
	if err != nil {
		t.Skip("sleep not available")
	}
	s := newTestShell(t)

	// Left in the test's process group, so signalling the job's group fails.
	cmd := exec.Command(sleep, "10")
	require.NoError(t, cmd.Start())
	t.Cleanup(func() {
		cmd.Process.Kill()
		cmd.Wait()
	})
	pid := cmd.Process.Pid
	s.Jobs.Push(jobs.New(pid, []string{"sleep", "10"}))

	assert.Equal(t, 1, s.Execute("fg"))
	assert.Contains(t, s.stderr.String(), "fg: cannot continue: ")

	job, ok := s.Jobs.PeekLast()
	require.True(t, ok)
	assert.Equal(t, pid, job.Pid)
	assert.Equal(t, 1, s.Jobs.Len())
}

func TestBgResumesStoppedJob(t *testing.T) {
	requireSh(t)
	s := newTestShell(t)

	require.Equal(t, 0, s.Execute("sh -c 'kill -STOP $$; exit 3' &"))
	pid, _ := s.Jobs.MostRecent()
	waitStopped(t, pid)

	job, _ := s.Jobs.Lookup(pid)
	job.State = jobs.Stopped

	assert.Equal(t, 0, s.Execute("bg"))
	assert.Equal(t, jobs.Running, job.State)
	assert.Equal(t, 1, s.Jobs.Len(), "bg leaves the job registered")

	assert.Equal(t, 0, s.Execute("wait"))
	assert.Equal(t, 0, s.Jobs.Len())
}

func TestWaitDrainsAll(t *testing.T) {
	requireSh(t)
	s := newTestShell(t)

	for _, line := range []string{
		"sh -c 'exit 1' &",
		"sh -c 'sleep 0.2' &",
		"sh -c 'sleep 0.1; exit 2' &",
	} {
		require.Equal(t, 0, s.Execute(line))
	}
	require.Equal(t, 3, s.Jobs.Len())

	assert.Equal(t, 0, s.Execute("wait"))
	assert.Equal(t, 0, s.Jobs.Len())

	var ws unix.WaitStatus
	_, err := unix.Wait4(-1, &ws, unix.WNOHANG, nil)
	assert.True(t, errors.Is(err, unix.ECHILD), "expected no children, got %v", err)
}

func TestReapFinished(t *testing.T) {
	requireSh(t)
	s := newTestShell(t)

	require.Equal(t, 0, s.Execute("sh -c 'exit 0' &"))
	pid, _ := s.Jobs.MostRecent()

	deadline := time.Now().Add(5 * time.Second)
	for s.Jobs.Len() > 0 && time.Now().Before(deadline) {
		s.reapFinished()
		time.Sleep(10 * time.Millisecond)
	}

	assert.Equal(t, 0, s.Jobs.Len())
	assert.Contains(t, s.stdout.String(), "["+strconv.Itoa(pid)+"] Done\tsh -c exit 0\n")
}

func TestCdPwd(t *testing.T) {
	s := newTestShell(t)

	wd, err := os.Getwd()
	require.NoError(t, err)
	t.Cleanup(func() { os.Chdir(wd) })

	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 0, s.Execute("cd "+dir))
	assert.Equal(t, 0, s.Execute("pwd"))
	assert.Equal(t, dir+"\n", s.stdout.String())
	assert.Equal(t, dir, os.Getenv(EnvPWD))

	t.Setenv(EnvHome, dir)
	assert.Equal(t, 0, s.Execute("cd /"))
	assert.Equal(t, 0, s.Execute("cd"))
	now, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, dir, now)

	assert.Equal(t, 1, s.Execute("cd "+filepath.Join(dir, "missing")))
}

func TestExit(t *testing.T) {
	s := newTestShell(t)

	s.Execute("exit")
	assert.Equal(t, []int{0}, s.exited)
}

func TestPrompt(t *testing.T) {
	s := newTestShell(t)
	s.lineNum = 4

	t.Setenv(EnvHome, "/nonexistent-home")
	assert.Equal(t, "4: ", s.expandPrompt(`\#: `))
	assert.Equal(t, "", s.Prompt(), "no prompt without a terminal")

	wd, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, wd+">", s.expandPrompt(`\w>`))

	t.Setenv(EnvHome, wd)
	assert.Equal(t, "~>", s.expandPrompt(`\w>`))
}
