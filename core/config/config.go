package config

import (
	_ "embed"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/afero"
	"sigs.k8s.io/yaml"
)

var (
	//go:embed default/config.yaml
	defaultConfigData []byte
)

const (
	ConfigurationName = "config.yaml"

	ColorAlways = "always"
	ColorAuto   = "auto"
	ColorNever  = "never"
)

type Configuration struct {
	configFs afero.Fs

	Prompt      string `json:"prompt"`
	Color       string `json:"color" validate:"required,oneof=always auto never"`
	HistoryFile string `json:"history_file"`
	EventLog    string `json:"event_log"`
	DefaultPath string `json:"default_path" validate:"required"`
	NotifyDone  bool   `json:"notify_done"`
}

// Validate the configuration for basic semantic errors.
func (c *Configuration) Validate() error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		return name
	})

	return validate.Struct(c)
}

func (c *Configuration) fs() afero.Fs {
	return c.configFs
}

// OpenEventLog opens the event log in an append only state. It returns nil
// if the event log is disabled.
func (c *Configuration) OpenEventLog() (afero.File, error) {
	if c.EventLog == "" {
		return nil, nil
	}
	return c.fs().OpenFile(c.EventLog, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
}

func (c *Configuration) ReadEventLog() (afero.File, error) {
	return c.fs().OpenFile(c.EventLog, os.O_RDONLY, 0600)
}

// HistoryPath returns the OS path of the line editor history, or an empty
// string if history is disabled or the configuration isn't on disk.
func (c *Configuration) HistoryPath() string {
	if c.HistoryFile == "" {
		return ""
	}

	bp, ok := c.configFs.(*afero.BasePathFs)
	if !ok {
		return ""
	}

	path, err := bp.RealPath(c.HistoryFile)
	if err != nil {
		return ""
	}
	return path
}

// SearchPath returns PATH, or the configured default if it's unset.
func (c *Configuration) SearchPath() string {
	if path, ok := os.LookupEnv("PATH"); ok {
		return path
	}
	return c.DefaultPath
}

// Default returns the built-in configuration backed by an in-memory
// directory.
func Default() *Configuration {
	cfg := defaultConfig()
	cfg.configFs = afero.NewMemMapFs()
	return cfg
}

func defaultConfig() *Configuration {
	var out Configuration
	if err := yaml.UnmarshalStrict(defaultConfigData, &out); err != nil {
		panic(err)
	}
	return &out
}
