package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// ReadJSONLinesLog parses a newline delimited JSON log.
func ReadJSONLinesLog(r io.Reader, handler func(le *LogEntry)) error {
	decoder := json.NewDecoder(r)
	for decoder.More() {
		var rawEntry json.RawMessage
		if err := decoder.Decode(&rawEntry); err != nil {
			return err
		}

		var msg structpb.Struct
		if err := protojson.Unmarshal(rawEntry, &msg); err != nil {
			return err
		}

		handler(entryFromStruct(&msg))
	}
	return nil
}

// Report holds statistics about the logged events.
type Report struct {
	LogEntries     int        `json:"log_entries"`
	Sessions       StrCounter `json:"sessions"`
	InvalidEntries StrCounter `json:"unknown_log_entries,omitempty"`

	Launch            LaunchReport            `json:"launch_report"`
	Foreground        ForegroundReport        `json:"foreground_report"`
	Background        BackgroundReport        `json:"background_report"`
	UnknownCommand    UnknownCommandReport    `json:"unknown_command_report"`
	InvalidInvocation InvalidInvocationReport `json:"invalid_invocation_report"`
}

func (r *Report) Update(le *LogEntry) {
	r.LogEntries++
	if le.SessionID != "" {
		r.Sessions.Increment(le.SessionID)
	}

	switch le.Type {
	case TypeLaunch:
		r.Launch.update(le)
		if le.GetBool("background") {
			r.Background.Launched++
		}
	case TypeLaunchFailure:
		r.Launch.Failures.Increment(le.GetString("error"))
	case TypeForeground:
		r.Foreground.update(le)
	case TypeContinue:
		if le.GetBool("background") {
			r.Background.Continued++
		} else {
			r.Foreground.Continued++
		}
	case TypeReaped:
		r.Background.Reaped.Increment(le.GetString("status"))
	case TypeUnknownCommand:
		r.UnknownCommand.update(le)
	case TypeInvalidInvocation:
		r.InvalidInvocation.update(le)
	case TypeSessionStart:
		// Ignore
	default:
		r.InvalidEntries.Increment(fmt.Sprintf("%q", le.Type))
	}
}

type LaunchReport struct {
	// Name of the resolved command
	ResolvedCommandPaths StrCounter `json:"resolved_command_names"`
	// Name of the command
	CommandNames StrCounter `json:"command_names"`
	// Launch failure messages
	Failures StrCounter `json:"failures"`
}

func (r *LaunchReport) update(le *LogEntry) {
	r.ResolvedCommandPaths.Increment(le.GetString("resolved_command_path"))
	if cmd := le.GetStrings("command"); len(cmd) > 0 {
		r.CommandNames.Increment(cmd[0])
	}
}

type ForegroundReport struct {
	Statuses  StrCounter `json:"statuses"`
	Stopped   int        `json:"stopped"`
	Continued int        `json:"continued"`
}

func (r *ForegroundReport) update(le *LogEntry) {
	r.Statuses.Increment(le.GetString("status"))
	if le.GetBool("stopped") {
		r.Stopped++
	}
}

type BackgroundReport struct {
	Launched  int        `json:"launched"`
	Continued int        `json:"continued"`
	Reaped    StrCounter `json:"reaped"`
}

type UnknownCommandReport struct {
	CommandNames StrCounter `json:"command_names"`
}

func (r *UnknownCommandReport) update(le *LogEntry) {
	if cmd := le.GetStrings("command"); len(cmd) > 0 {
		r.CommandNames.Increment(cmd[0])
	}
}

type InvalidInvocationReport struct {
	Invocations *PathCounter `json:"invocations"`
}

func (r *InvalidInvocationReport) update(le *LogEntry) {
	if r.Invocations == nil {
		r.Invocations = NewPathCounter("command", "error")
	}

	name := ""
	if cmd := le.GetStrings("command"); len(cmd) > 0 {
		name = cmd[0]
	}
	r.Invocations.Increment(name, le.GetString("error"))
}

// StrCounter counts the number of strings seen.
type StrCounter struct {
	internal map[string]int
}

// Increment adds one to the given key.
func (s *StrCounter) Increment(toAdd string) {
	if s.internal == nil {
		s.internal = make(map[string]int)
	}

	s.internal[toAdd]++
}

// Get returns the count for the given key.
func (s *StrCounter) Get(key string) int {
	return s.internal[key]
}

// Len returns the number of distinct keys.
func (s *StrCounter) Len() int {
	return len(s.internal)
}

// MarshalJSON implements custom JSON marshaler.
func (s StrCounter) MarshalJSON() ([]byte, error) {
	if s.internal == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(s.internal)
}

func NewPathCounter(cols ...string) *PathCounter {
	return &PathCounter{
		cols:     cols,
		internal: make(map[string]int),
	}
}

// PathCounter counts tuples of strings.
type PathCounter struct {
	cols     []string
	internal map[string]int
}

// Increment adds one to the given key.
func (ctr *PathCounter) Increment(toAdd ...string) {
	if len(toAdd) != len(ctr.cols) {
		panic("wrong number of columns to add")
	}

	ctr.internal[toKey(toAdd...)]++
}

// MarshalJSON implements custom JSON marshaler.
func (ctr *PathCounter) MarshalJSON() ([]byte, error) {
	type Count struct {
		Count  int               `json:"count"`
		Fields map[string]string `json:"event"`
		Path   string            `json:"-"`
	}

	out := []Count{}
	for k, v := range ctr.internal {
		count := Count{
			Count:  v,
			Path:   k,
			Fields: make(map[string]string),
		}

		splitPath := fromKey(k)
		for colNum, colVal := range ctr.cols {
			count.Fields[colVal] = splitPath[colNum]
		}

		out = append(out, count)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Count == out[j].Count {
			return out[i].Path < out[j].Path
		}
		return out[i].Count > out[j].Count
	})

	return json.Marshal(out)
}

func toKey(vals ...string) string {
	key, _ := json.Marshal(vals)
	return string(key)
}

func fromKey(key string) (out []string) {
	json.Unmarshal([]byte(key), &out)
	return
}
