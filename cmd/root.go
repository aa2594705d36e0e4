package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/huanfeng/apkdeploy-cli/internal/config"
	"github.com/huanfeng/apkdeploy-cli/internal/errors"
	"github.com/huanfeng/apkdeploy-cli/internal/i18n"
	"github.com/huanfeng/apkdeploy-cli/internal/version"
	"github.com/huanfeng/apkdeploy-cli/pkg/models"
	"github.com/huanfeng/apkdeploy-cli/pkg/utils"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	cfgFile  string
	verbose  bool
	debug    bool
	logFile  string
	noColor  bool
	langFlag string

	appConfig *models.Config
	logger    utils.Logger = utils.NewNopLogger()
	logSink   *utils.DeployLogger
	sessionID string
	started   time.Time
)

var rootCmd = &cobra.Command{
	Use:   "apkdeploy",
	Short: "Package, install and run builds on Android devices",
	Long: `apkdeploy packages Android builds, installs them on connected devices,
pushes staged content and launches the game.`,
	Version:       version.Short(),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setup()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Debug("%s finished in %s", cmd.CommandPath(), utils.Elapsed(started))
	},
}

// Execute runs the root command and exits with the code mapped from its error.
func Execute() {
	if err := i18n.Init(langFromArgs(os.Args[1:])); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
	applyCommandLocalization()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cmd, err := rootCmd.ExecuteContextC(ctx)
	code := 0
	if err != nil {
		code = reportError(cmd, err)
	}
	if logSink != nil {
		logSink.Close()
	}
	if code != 0 {
		stop()
		os.Exit(code)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default ./apkdeploy.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "debug output with error stacks")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "also write logs to this file")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().StringVar(&langFlag, "lang", "", "interface language (en, zh)")
}

// setup loads the configuration and the session logger.
func setup() error {
	started = time.Now()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	appConfig = cfg

	logCfg := utils.DefaultLoggerConfig()
	logCfg.Level = utils.ParseLogLevel(cfg.Logging.Level)
	logCfg.Format = utils.ParseLogFormat(cfg.Logging.Format)
	logCfg.EnableColor = cfg.Logging.Color && !noColor
	if path := firstNonEmpty(logFile, cfg.Logging.File); path != "" {
		logCfg.EnableFile = true
		logCfg.FilePath = path
	}

	base, err := utils.NewLogger(logCfg)
	if err != nil {
		return err
	}
	if verbose || debug {
		base.SetLevel(utils.LogLevelDebug)
	}
	logSink = base
	sessionID = uuid.NewString()
	logger = base.WithField("session", sessionID)

	logger.Debug("apkdeploy %s, config file %q", version.Short(), config.UsedFile(cfgFile))
	return nil
}

// reportError prints err, saves an error report and returns the exit code.
func reportError(cmd *cobra.Command, err error) int {
	deployErr := errors.AsDeployError(err)
	errors.NewErrorHandler(logger).Handle(deployErr)

	fmt.Fprint(os.Stderr, deployErr.FormatDetailed())
	if debug && len(deployErr.Stack) > 0 {
		fmt.Fprintln(os.Stderr, "\nStack:")
		for _, frame := range deployErr.Stack {
			fmt.Fprintf(os.Stderr, "   %s\n", frame)
		}
	}

	if appConfig != nil && cmd != nil {
		reporter := errors.NewErrorReporter(appConfig.Project.LogDir, version.Short(), toolPaths())
		report := reporter.GenerateReport(deployErr, sessionID, &errors.OperationContext{
			Command:   cmd.CommandPath(),
			Arguments: os.Args[1:],
			Flags:     changedFlags(cmd),
			Device:    strings.Join(deployDevices, ","),
			Duration:  time.Since(started),
		})
		if path, saveErr := reporter.SaveReport(report); saveErr == nil {
			fmt.Fprintln(os.Stderr, i18n.T("errors.reportSaved", map[string]interface{}{"Path": path}))
		} else {
			logger.Warn("Failed to save error report: %v", saveErr)
		}
	}

	return errors.ExitCode(err)
}

func changedFlags(cmd *cobra.Command) map[string]string {
	flags := make(map[string]string)
	cmd.Flags().Visit(func(f *pflag.Flag) {
		flags[f.Name] = f.Value.String()
	})
	return flags
}

// langFromArgs finds --lang before cobra parses flags, so that help text is
// already localized.
func langFromArgs(args []string) string {
	for i, arg := range args {
		if arg == "--" {
			break
		}
		if v, ok := strings.CutPrefix(arg, "--lang="); ok {
			return v
		}
		if arg == "--lang" && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
