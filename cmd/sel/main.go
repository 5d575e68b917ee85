// Command sel runs an untrusted payload after validating, capturing and
// loading it, then confines it and reports how it came back.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/criyle/go-sel/bootstrap"
	"github.com/criyle/go-sel/config"
	"github.com/criyle/go-sel/loader"
	"github.com/criyle/go-sel/pkg/fault"
	"github.com/criyle/go-sel/pkg/gio"
	"github.com/criyle/go-sel/qualify"
	"github.com/criyle/go-sel/shim"
	"github.com/criyle/go-sel/validator"
)

// options are the operator flags
type options struct {
	manifest          string
	skipValidation    bool
	skipQualification bool
	disableFaults     bool
	quitAfterLoad     bool
	verbosity         int
	etag              bool
	report            string
	logFile           string
}

// shim init
func init() {
	shim.Init()
}

func main() {
	var (
		opt  options
		code int
	)
	cmd := &cobra.Command{
		Use:           "sel -M manifest.yaml [flags]",
		Short:         "Validate, load and run an untrusted payload under confinement",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			code = run(cmd.Context(), &opt)
			return nil
		},
	}
	bindFlags(cmd.Flags(), &opt)
	cmd.MarkFlagRequired("manifest")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := cmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "sel:", err)
		os.Exit(bootstrap.KindConfiguration.ExitCode())
	}
	os.Exit(code)
}

func bindFlags(fs *pflag.FlagSet, opt *options) {
	fs.StringVarP(&opt.manifest, "manifest", "M", "", "Set the run manifest (YAML)")
	fs.BoolVarP(&opt.skipValidation, "skip-validation", "s", false, "Skip static validation of the payload (unsafe)")
	fs.BoolVarP(&opt.skipQualification, "skip-qualification", "Q", false, "Skip platform qualification (unsafe)")
	fs.BoolVarP(&opt.disableFaults, "disable-fault-handling", "S", false, "Do not intercept faults")
	fs.BoolVarP(&opt.quitAfterLoad, "quit-after-load", "F", false, "Exit once the payload is loaded")
	fs.CountVarP(&opt.verbosity, "verbosity", "v", "Increase log verbosity")
	fs.BoolVarP(&opt.etag, "etag", "e", false, "Report the digest of the captured payload")
	fs.StringVar(&opt.report, "report", "stdout", "Set the file name for the report (stdout, stderr or a path)")
	fs.StringVar(&opt.logFile, "log-file", "", "Write logs to a file instead of stderr")
}

func run(ctx context.Context, opt *options) int {
	runID := uuid.NewString()
	logger, closer, err := newLogger(opt.logFile, opt.verbosity, runID)
	if err != nil {
		fmt.Fprintln(os.Stderr, "sel: log:", err)
		return bootstrap.KindConfiguration.ExitCode()
	}

	report, err := openReport(opt.report, logger)
	if err != nil {
		logger.Error("report", "path", opt.report, "error", err)
		if closer != nil {
			closer.Close()
		}
		return bootstrap.KindConfiguration.ExitCode()
	}

	c := bootstrap.NewContext()
	c.Verbosity = opt.verbosity
	c.SkipValidation = opt.skipValidation
	c.SkipQualification = opt.skipQualification
	c.HandleFaults = !opt.disableFaults
	c.QuitAfterLoad = opt.quitAfterLoad
	c.Etag = opt.etag

	faults := fault.NewManager(logger)
	launcher := &shim.Launcher{Logger: logger}
	gateway := &validator.Gateway{Bypass: opt.skipValidation, Logger: logger}
	isolator := &bootstrap.CgroupIsolator{Logger: logger}

	// the validator and the isolation domain are configured by the manifest
	loadManifest := func() (*config.Manifest, error) {
		m, err := config.Load(opt.manifest)
		if err != nil {
			return nil, err
		}
		gateway.Command = m.Validator
		isolator.Root = m.Isolation.Root
		isolator.Disabled = m.Isolation.Disabled
		return m, nil
	}

	o := &bootstrap.Orchestrator{
		Context:   c,
		Logger:    logger,
		RunID:     runID,
		Manifest:  loadManifest,
		Faults:    faults,
		Validator: gateway,
		Qualifier: &qualify.Qualifier{Checks: qualify.Default(faults, launcher), Logger: logger},
		Loader:    &loader.Loader{Logger: logger},
		Isolator:  isolator,
		Launcher:  bootstrap.ShimLauncher{Launcher: launcher},
		Stdio:     shim.Stdio{Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr},
		Report:    report,
		LogCloser: closer,
	}
	return o.Run(ctx)
}

// openReport opens the report channel, stdout and stderr are not owned
func openReport(name string, logger *slog.Logger) (gio.Channel, error) {
	switch name {
	case "stdout", "":
		return gio.NewStream(os.Stdout, logger), nil
	case "stderr":
		return gio.NewStream(os.Stderr, logger), nil
	default:
		s, err := gio.OpenStream(name, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}
