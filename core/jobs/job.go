// Package jobs holds the shell's table of background jobs.
package jobs

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNoJobs is returned when a job is required but the registry is empty.
	ErrNoJobs = errors.New("no background jobs")
	// ErrNoSuchJob is returned when the target job has already terminated or
	// never belonged to the shell.
	ErrNoSuchJob = errors.New("no such job")
	// ErrInvalidPid is returned for pid arguments that aren't positive
	// decimal integers.
	ErrInvalidPid = errors.New("invalid pid")
)

// State is the last known run state of a job.
type State int

const (
	Running State = iota
	Stopped
)

func (s State) String() string {
	switch s {
	case Running:
		return "Running"
	case Stopped:
		return "Stopped"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Job is a process group under shell management.
type Job struct {
	// ID uniquely identifies the job within the event log.
	ID   string
	Pid  int
	Pgid int
	// Args is the command line the job was launched with.
	Args    []string
	Started time.Time
	State   State
}

// New creates a running job whose process group leader is pid.
func New(pid int, args []string) *Job {
	return &Job{
		ID:      uuid.NewString(),
		Pid:     pid,
		Pgid:    pid,
		Args:    append([]string(nil), args...),
		Started: time.Now(),
		State:   Running,
	}
}

// Command returns the job's command line.
func (j *Job) Command() string {
	return strings.Join(j.Args, " ")
}

// ParsePid converts a pid argument, rejecting anything but a positive
// decimal integer that fits in a pid.
func ParsePid(arg string) (int, error) {
	if arg == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidPid)
	}
	for _, r := range arg {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("%w: %q", ErrInvalidPid, arg)
		}
	}

	pid, err := strconv.Atoi(arg)
	if err != nil || pid <= 0 || pid > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPid, arg)
	}
	return pid, nil
}
