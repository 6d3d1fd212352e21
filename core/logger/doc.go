// Package logger is a standardized event logging framework for the shell.
//
// Each entry is one JSON object per line, encoded from a structpb.Struct so
// the log can be read back without a fixed schema.
package logger
