package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/huanfeng/apkdeploy-cli/internal/device"
	"github.com/huanfeng/apkdeploy-cli/internal/errors"
	"github.com/huanfeng/apkdeploy-cli/internal/i18n"
	"github.com/huanfeng/apkdeploy-cli/pkg/deploy"
	"github.com/huanfeng/apkdeploy-cli/pkg/models"
	"github.com/huanfeng/apkdeploy-cli/pkg/utils"
	"github.com/spf13/cobra"
)

var (
	deployDeviceFlags []string
	deployAll         bool
	deployMode        string
	deployRun         bool
	deployTimeout     time.Duration
	deployClientApp   string
	deployParallel    int

	// deployDevices is recorded in error reports.
	deployDevices []string
)

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Install the build on devices and push its content",
	Long: `Install the apk matching each device's architecture, write the command line
and push content according to the stage mode:

  stage        push the staged content tree (apks excluded)
  archive      push the expansion file into obb/<package>/
  commandline  push only the command-line file

With --run the game is launched afterwards.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		switch deployMode {
		case "", models.StageModeStage, models.StageModeArchive, models.StageModeCommandLine:
		default:
			return errors.NewConfigurationError(fmt.Sprintf("unknown stage mode %q", deployMode))
		}

		var (
			barMu sync.Mutex
			bar   *utils.ProgressBar
			multi bool
		)
		progress := func(p deploy.TransferProgress) {
			if p.Err != nil {
				logger.Warn("Push of %s failed: %v", filepath.Base(p.Entry), p.Err)
			}
			if multi || verbose {
				logger.Debug("Pushed %s (%d/%d)", p.Entry, p.Done, p.Total)
				return
			}
			barMu.Lock()
			defer barMu.Unlock()
			if bar == nil {
				bar = utils.NewProgressBar(int64(p.Total), i18n.T("deploy.pushing"))
				// Keep stdout for the per-device report lines.
				bar.SetOutput(os.Stderr)
			}
			bar.Update(int64(p.Done))
			if p.Done == p.Total {
				bar.Finish()
				bar = nil
			}
		}

		if err := requireTools(ctx, cmd.Name()); err != nil {
			return err
		}

		target, err := newTarget(ctx, deploy.WithTransferProgress(progress))
		if err != nil {
			return err
		}

		devices, err := resolveTargetDevices(ctx, target, deployDeviceFlags, appConfig.Device.Serial, deployAll)
		if err != nil {
			return err
		}
		deployDevices = devices
		multi = len(devices) > 1

		opts := deploy.DeployOptions{Mode: deployMode}
		var runOpts *deploy.RunOptions
		if deployRun {
			runOpts = &deploy.RunOptions{ClientApp: deployClientApp, Timeout: runTimeout(cmd, deployTimeout)}
		}

		parallel := deployParallel
		if parallel <= 0 {
			parallel = len(devices)
		}

		logger.Info("Deploying %s to %d device(s)", appConfig.Project.ShortName, len(devices))
		results := target.DeployDevices(ctx, devices, opts, runOpts, parallel, func(r device.Result[*deploy.DeviceReport]) {
			printDeviceReport(r)
		})

		var firstErr error
		failed := 0
		for _, r := range results {
			if r.Err != nil {
				failed++
				if firstErr == nil {
					firstErr = fmt.Errorf("%s: %w", r.Key, r.Err)
				}
			}
		}
		if len(results) < len(devices) {
			return ctx.Err()
		}
		if failed == 0 {
			fmt.Println(i18n.T("deploy.done", map[string]interface{}{"Count": len(devices)}))
			return nil
		}
		if len(devices) == 1 {
			return results[0].Err
		}
		return fmt.Errorf("%d of %d devices failed; first failure on %w", failed, len(devices), firstErr)
	},
}

func printDeviceReport(r device.Result[*deploy.DeviceReport]) {
	if r.Err != nil {
		fmt.Printf("❌ %s: %v\n", r.Key, r.Err)
		return
	}

	report := r.Value
	if d := report.Deploy; d != nil {
		arch := string(d.Arch)
		if arch == "" {
			arch = "universal"
		}
		fmt.Printf("✅ %s: %s %s (%s, %s) in %s\n", r.Key, d.Identity.PackageName, d.Identity.VersionCode,
			arch, d.Mode, d.Duration.Round(time.Millisecond))
		if d.Plan != nil {
			logger.Debug("%s: %d entries pushed, %d excluded", r.Key, len(d.Plan.Entries), len(d.Plan.Excluded))
		}
	}
	if run := report.Run; run != nil {
		printRunResult(run)
	}
}

// runTimeout prefers the flag and falls back to device.run_timeout.
func runTimeout(cmd *cobra.Command, flagValue time.Duration) time.Duration {
	if cmd.Flags().Changed("timeout") {
		return flagValue
	}
	return appConfig.Device.RunTimeout
}

func init() {
	rootCmd.AddCommand(deployCmd)

	deployCmd.Flags().StringArrayVarP(&deployDeviceFlags, "device", "s", nil, "target device serial (repeatable, comma separated)")
	deployCmd.Flags().BoolVarP(&deployAll, "all", "a", false, "deploy to every connected device")
	deployCmd.Flags().StringVarP(&deployMode, "mode", "m", "", fmt.Sprintf("stage mode: %s, %s or %s (default device.stage_mode)",
		models.StageModeStage, models.StageModeArchive, models.StageModeCommandLine))
	deployCmd.Flags().BoolVarP(&deployRun, "run", "r", false, "launch the game after deploying")
	deployCmd.Flags().DurationVarP(&deployTimeout, "timeout", "t", 0, "stop waiting for a prebuilt run after this long (0 waits until exit)")
	deployCmd.Flags().StringVar(&deployClientApp, "client-app", "", "launch this package instead (path without architecture and extension)")
	deployCmd.Flags().IntVarP(&deployParallel, "parallel", "p", 0, "devices deployed at once (default all)")
}
