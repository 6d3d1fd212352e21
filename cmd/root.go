package cmd

import (
	"errors"
	"io"
	"io/fs"
	"log"

	"github.com/josephlewis42/jobsh/core"
	"github.com/josephlewis42/jobsh/core/config"
	"github.com/josephlewis42/jobsh/core/logger"
	"github.com/spf13/cobra"
)

var (
	cfgPath string
	verbose bool
)

func loadConfig() (*config.Configuration, error) {
	configuration, err := config.Load(cfgPath)

	if errors.Is(err, fs.ErrNotExist) {
		log.Println("Couldn't load config: did you run init?")
	}

	return configuration, err
}

// diagnosticLogger writes to stderr only if --verbose is set.
func diagnosticLogger(cmd *cobra.Command) *log.Logger {
	if verbose {
		return log.New(cmd.ErrOrStderr(), "jobsh: ", log.Ltime)
	}
	return log.New(io.Discard, "", 0)
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "jobsh",
	Short: "Job control shell",
	Long: `An interactive shell with job control.

Commands ending in & run in the background; fg, bg and wait manage them.
Input is redirected with <file, output with >file or >>file.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		diag := diagnosticLogger(cmd)

		configuration, err := config.Load(cfgPath)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			diag.Printf("no configuration in %q, using defaults", cfgPath)
			configuration = config.Default()
		case err != nil:
			return err
		}

		recorder := logger.NewNopLogger()
		eventLog, err := configuration.OpenEventLog()
		if err != nil {
			return err
		}
		if eventLog != nil {
			defer eventLog.Close()
			recorder = logger.NewJsonLinesLogRecorder(eventLog)
		}

		session := recorder.NewSession()
		diag.Printf("starting session %s", session.SessionID())

		return core.NewShell(configuration, session, diag).Run()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", ".", "config path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "write diagnostics to stderr")
}
