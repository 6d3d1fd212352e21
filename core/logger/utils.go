package logger

import (
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	fieldTimestamp = "timestamp_micros"
	fieldSessionID = "session_id"
	fieldType      = "type"
	fieldData      = "data"
)

// LogRecorder is a callback that stores events in an external datastore.
type LogRecorder func(le *LogEntry) error

// Logger captures job control events.
type Logger struct {
	Record LogRecorder
}

// NewJsonLinesLogRecorder creates a Logger that exports logs in newline
// delimited JSON object format.
func NewJsonLinesLogRecorder(w io.Writer) *Logger {
	return &Logger{
		Record: func(le *LogEntry) error {
			msg, err := le.toStruct()
			if err != nil {
				return err
			}
			entry, err := protojson.Marshal(msg)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(w, string(entry))
			return err
		},
	}
}

// NewNopLogger creates a Logger that drops everything.
func NewNopLogger() *Logger {
	return &Logger{
		Record: func(*LogEntry) error { return nil },
	}
}

func (l *Logger) recordLogType(sessionID string, event LogType) error {
	le := &LogEntry{
		Timestamp: time.Now(),
		SessionID: sessionID,
		Type:      event.EventType(),
		Data:      event.Fields(),
	}

	return l.Record(le)
}

// NewSession creates a logger with attached session ID.
func (l *Logger) NewSession() *SessionLogger {
	return &SessionLogger{Logger: l, sessionID: uuid.NewString()}
}

// SessionLogger logs messages with a shared session ID.
type SessionLogger struct {
	*Logger
	sessionID string
}

// SessionID returns the ID attached to every entry.
func (l *SessionLogger) SessionID() string {
	return l.sessionID
}

func (l *SessionLogger) Record(event LogType) error {
	return l.recordLogType(l.sessionID, event)
}

// LogEntry is a single decoded event.
type LogEntry struct {
	Timestamp time.Time
	SessionID string
	Type      string
	Data      map[string]interface{}
}

// GetString returns a string field from the entry's data.
func (le *LogEntry) GetString(key string) string {
	s, _ := le.Data[key].(string)
	return s
}

// GetInt returns a numeric field from the entry's data.
func (le *LogEntry) GetInt(key string) int {
	switch v := le.Data[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}

// GetBool returns a boolean field from the entry's data.
func (le *LogEntry) GetBool(key string) bool {
	b, _ := le.Data[key].(bool)
	return b
}

// GetStrings returns a list of strings from the entry's data.
func (le *LogEntry) GetStrings(key string) []string {
	list, _ := le.Data[key].([]interface{})
	var out []string
	for _, v := range list {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func (le *LogEntry) toStruct() (*structpb.Struct, error) {
	data, err := structpb.NewStruct(le.Data)
	if err != nil {
		return nil, fmt.Errorf("encoding %s event: %w", le.Type, err)
	}

	return &structpb.Struct{
		Fields: map[string]*structpb.Value{
			fieldTimestamp: structpb.NewNumberValue(float64(le.Timestamp.UnixMicro())),
			fieldSessionID: structpb.NewStringValue(le.SessionID),
			fieldType:      structpb.NewStringValue(le.Type),
			fieldData:      structpb.NewStructValue(data),
		},
	}, nil
}

func entryFromStruct(msg *structpb.Struct) *LogEntry {
	fields := msg.GetFields()
	le := &LogEntry{
		Timestamp: time.UnixMicro(int64(fields[fieldTimestamp].GetNumberValue())),
		SessionID: fields[fieldSessionID].GetStringValue(),
		Type:      fields[fieldType].GetStringValue(),
		Data:      fields[fieldData].GetStructValue().AsMap(),
	}
	if le.Data == nil {
		le.Data = make(map[string]interface{})
	}
	return le
}
