package proc

import (
	"errors"
	"io"
	"log"
	"os/exec"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// startGroup starts sh -c script as the leader of a new process group.
func startGroup(t *testing.T, script string) int {
	t.Helper()

	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}

	pid, err := syscall.ForkExec(sh, []string{"sh", "-c", script}, &syscall.ProcAttr{
		Files: []uintptr{0, 1, 2},
		Sys:   &syscall.SysProcAttr{Setpgid: true},
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		unix.Kill(-pid, unix.SIGKILL)
		var ws unix.WaitStatus
		unix.Wait4(pid, &ws, 0, nil)
	})
	return pid
}

func TestStatusString(t *testing.T) {
	cases := map[string]struct {
		status Status
		want   string
	}{
		"success":  {ExitedWith(1, 0), "done"},
		"failure":  {ExitedWith(1, 3), "exit 3"},
		"killed":   {Status{Signaled: true, Signal: unix.SIGKILL}, "killed (SIGKILL)"},
		"stopped":  {Status{Stopped: true, Signal: unix.SIGTSTP}, "stopped (SIGTSTP)"},
		"no state": {Status{}, "unknown"},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.status.String())
		})
	}
}

func TestWaitGroup(t *testing.T) {
	cases := map[string]struct {
		script         string
		wantExited     bool
		wantStopped    bool
		wantSignaled   bool
		wantCode       int
		wantTerminated bool
	}{
		"exit":    {script: "exit 4", wantExited: true, wantCode: 4, wantTerminated: true},
		"success": {script: "true", wantExited: true, wantCode: 0, wantTerminated: true},
		"stop":    {script: "kill -STOP $$", wantStopped: true, wantCode: 128 + int(unix.SIGSTOP)},
		"killed":  {script: "kill -KILL $$", wantSignaled: true, wantCode: 128 + int(unix.SIGKILL), wantTerminated: true},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			pid := startGroup(t, tc.script)

			status, err := WaitGroup(pid)
			require.NoError(t, err)

			assert.Equal(t, pid, status.Pid)
			assert.Equal(t, tc.wantExited, status.Exited)
			assert.Equal(t, tc.wantStopped, status.Stopped)
			assert.Equal(t, tc.wantSignaled, status.Signaled)
			assert.Equal(t, tc.wantCode, status.Code)
			assert.Equal(t, tc.wantTerminated, status.Terminated())
		})
	}
}

func TestContinue(t *testing.T) {
	pid := startGroup(t, "kill -STOP $$; exit 9")

	status, err := WaitGroup(pid)
	require.NoError(t, err)
	require.True(t, status.Stopped)

	require.NoError(t, Continue(pid))

	status, err = WaitGroup(pid)
	require.NoError(t, err)
	assert.True(t, status.Exited)
	assert.Equal(t, 9, status.Code)
}

func TestProbe(t *testing.T) {
	pid := startGroup(t, "sleep 0.2")

	_, done, err := Probe(pid)
	require.NoError(t, err)
	assert.False(t, done, "still running")

	deadline := time.Now().Add(5 * time.Second)
	var status Status
	for !done && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
		status, done, err = Probe(pid)
		require.NoError(t, err)
	}
	require.True(t, done)
	assert.True(t, status.Success())

	_, _, err = Probe(pid)
	assert.True(t, errors.Is(err, unix.ECHILD), "reaped child, got %v", err)
}

func TestWaitAny_noChildren(t *testing.T) {
	_, err := WaitAny()
	assert.True(t, errors.Is(err, unix.ECHILD), "got %v", err)
}

func TestSignalPolicy(t *testing.T) {
	policy := InstallSignalPolicy(log.New(io.Discard, "", 0))
	defer policy.Stop()

	wantErr := errors.New("boom")
	called := false
	err := policy.WithTerminalControl(func() error {
		called = true
		return wantErr
	})
	assert.True(t, called)
	assert.Equal(t, wantErr, err)

	// Stop is idempotent.
	policy.Stop()
}
