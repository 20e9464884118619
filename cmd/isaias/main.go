package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/reedan88/Isaias/pkg/isaias"
)

const (
	exitOther      = 1
	exitValidation = 2
	exitRequest    = 3
	exitPoll       = 4
)

// configError marks a problem with the configuration or the command line.
type configError struct{ err error }

func (e *configError) Error() string { return e.err.Error() }
func (e *configError) Unwrap() error { return e.err }

var cfgPath string

var rootCmd = &cobra.Command{
	Use:           "isaias",
	Short:         "Fetch OOI datasets through the asynchronous M2M/THREDDS workflow",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "./data/config.yaml", "path to configuration file")
	rootCmd.AddCommand(runCmd, fetchCmd, validateCmd, searchCmd, deploymentsCmd, streamsCmd, metadataCmd, statsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Printf("isaias: %v", err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps an error to the process status: 2 validation, 3 request
// failure, 4 poll timeout, 1 anything else.
func exitCode(err error) int {
	var (
		cfgErr *configError
		reqErr *isaias.RequestError
	)
	switch {
	case errors.As(err, &cfgErr),
		errors.Is(err, isaias.ErrInvalidRefDes),
		errors.Is(err, isaias.ErrInvalidExclusion),
		errors.Is(err, isaias.ErrNotNetCDF),
		errors.Is(err, isaias.ErrNoCredentials):
		return exitValidation
	case errors.As(err, &reqErr):
		return exitRequest
	case errors.Is(err, isaias.ErrPollTimeout):
		return exitPoll
	default:
		return exitOther
	}
}

func loadConfig() (*isaias.Config, error) {
	cfg, err := isaias.LoadConfig(cfgPath)
	if err != nil {
		return nil, &configError{fmt.Errorf("load config %s: %w", cfgPath, err)}
	}
	return cfg, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

var runCmd = &cobra.Command{
	Use:   "run [target...]",
	Short: "Fetch the configured targets and render the configured plots",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return execute(cmd, cfg, args)
	},
}

func execute(cmd *cobra.Command, cfg *isaias.Config, names []string) error {
	rt, err := isaias.NewRuntime(cfg)
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rt.Shutdown(ctx); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}()

	ctx, stop := signalContext()
	defer stop()

	report, err := rt.Run(ctx, names...)
	if report != nil {
		printReport(cmd, report)
	}
	return err
}

func printReport(cmd *cobra.Command, r *isaias.Report) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "run %s\n", r.RunID)
	for name, res := range r.Results {
		fmt.Fprintf(out, "  %-24s ok      files=%d rows=%d written=%d resumed=%v\n",
			name, len(res.Files), res.Dataset.Len(), res.RowsWritten, res.Resumed)
	}
	for name, err := range r.Failures {
		fmt.Fprintf(out, "  %-24s failed  %v\n", name, err)
	}
	for _, p := range r.Plots {
		if p.Artifact != "" {
			fmt.Fprintf(out, "  plot %s -> %s (%s)\n", p.Name, p.Path, p.Artifact)
			continue
		}
		fmt.Fprintf(out, "  plot %s -> %s\n", p.Name, p.Path)
	}
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Load and validate a config file without issuing requests",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "config %s looks good: %d targets, %d plots\n", cfgPath, len(cfg.Targets), len(cfg.Plots))
		if err := cfg.RequireCredentials(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
		}
		return nil
	},
}
