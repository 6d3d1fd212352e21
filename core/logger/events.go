package logger

const (
	TypeSessionStart      = "session_start"
	TypeLaunch            = "launch"
	TypeLaunchFailure     = "launch_failure"
	TypeUnknownCommand    = "unknown_command"
	TypeInvalidInvocation = "invalid_invocation"
	TypeForeground        = "foreground"
	TypeContinue          = "continue"
	TypeReaped            = "reaped"
)

// LogType is an event that can be recorded.
type LogType interface {
	EventType() string
	Fields() map[string]interface{}
}

func stringList(in []string) []interface{} {
	out := make([]interface{}, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}

// SessionStart is logged once when the shell starts reading input.
type SessionStart struct {
	Interactive bool
	ShellPgid   int
}

func (e *SessionStart) EventType() string { return TypeSessionStart }

func (e *SessionStart) Fields() map[string]interface{} {
	return map[string]interface{}{
		"interactive": e.Interactive,
		"shell_pgid":  e.ShellPgid,
	}
}

// Launch is logged when a process has been created.
type Launch struct {
	JobID               string
	Pid                 int
	Pgid                int
	Command             []string
	ResolvedCommandPath string
	Background          bool
}

func (e *Launch) EventType() string { return TypeLaunch }

func (e *Launch) Fields() map[string]interface{} {
	return map[string]interface{}{
		"job_id":                e.JobID,
		"pid":                   e.Pid,
		"pgid":                  e.Pgid,
		"command":               stringList(e.Command),
		"resolved_command_path": e.ResolvedCommandPath,
		"background":            e.Background,
	}
}

// LaunchFailure is logged when a process couldn't be created or executed.
type LaunchFailure struct {
	Command []string
	Error   string
}

func (e *LaunchFailure) EventType() string { return TypeLaunchFailure }

func (e *LaunchFailure) Fields() map[string]interface{} {
	return map[string]interface{}{
		"command": stringList(e.Command),
		"error":   e.Error,
	}
}

// UnknownCommand is logged when a command couldn't be resolved.
type UnknownCommand struct {
	Command []string
}

func (e *UnknownCommand) EventType() string { return TypeUnknownCommand }

func (e *UnknownCommand) Fields() map[string]interface{} {
	return map[string]interface{}{
		"command": stringList(e.Command),
	}
}

// InvalidInvocation is logged when a command line or builtin is malformed.
type InvalidInvocation struct {
	Command []string
	Error   string
}

func (e *InvalidInvocation) EventType() string { return TypeInvalidInvocation }

func (e *InvalidInvocation) Fields() map[string]interface{} {
	return map[string]interface{}{
		"command": stringList(e.Command),
		"error":   e.Error,
	}
}

// Foreground is logged when a job gives the terminal back to the shell.
type Foreground struct {
	JobID    string
	Pid      int
	Status   string
	ExitCode int
	Stopped  bool
}

func (e *Foreground) EventType() string { return TypeForeground }

func (e *Foreground) Fields() map[string]interface{} {
	return map[string]interface{}{
		"job_id":    e.JobID,
		"pid":       e.Pid,
		"status":    e.Status,
		"exit_code": e.ExitCode,
		"stopped":   e.Stopped,
	}
}

// Continue is logged when a job is sent SIGCONT.
type Continue struct {
	JobID      string
	Pid        int
	Background bool
}

func (e *Continue) EventType() string { return TypeContinue }

func (e *Continue) Fields() map[string]interface{} {
	return map[string]interface{}{
		"job_id":     e.JobID,
		"pid":        e.Pid,
		"background": e.Background,
	}
}

// Reaped is logged when a terminated background process is collected.
type Reaped struct {
	JobID    string
	Pid      int
	Status   string
	ExitCode int
}

func (e *Reaped) EventType() string { return TypeReaped }

func (e *Reaped) Fields() map[string]interface{} {
	return map[string]interface{}{
		"job_id":    e.JobID,
		"pid":       e.Pid,
		"status":    e.Status,
		"exit_code": e.ExitCode,
	}
}
