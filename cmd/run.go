package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/huanfeng/apkdeploy-cli/internal/i18n"
	"github.com/huanfeng/apkdeploy-cli/pkg/deploy"
	"github.com/spf13/cobra"
)

var (
	runDevice    string
	runTimeoutFl time.Duration
	runClientApp string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Launch the installed game on a device",
	Long: `Wake the device and start the game activity. For prebuilt packages the
command waits until the game exits (or --timeout passes) and saves the device
log under the staging and log directories.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := requireTools(ctx, cmd.Name()); err != nil {
			return err
		}

		target, err := newTarget(ctx)
		if err != nil {
			return err
		}

		var explicit []string
		if runDevice != "" {
			explicit = []string{runDevice}
		}
		devices, err := resolveTargetDevices(ctx, target, explicit, appConfig.Device.Serial, false)
		if err != nil {
			return err
		}
		if len(devices) > 1 {
			return fmt.Errorf("run targets one device, got %s", strings.Join(devices, ", "))
		}
		deployDevices = devices

		result, err := target.Run(ctx, deploy.RunOptions{
			Device:    devices[0],
			ClientApp: runClientApp,
			Timeout:   runTimeout(cmd, runTimeoutFl),
		})
		if result != nil {
			printRunResult(result)
		}
		return err
	},
}

func printRunResult(r *deploy.RunResult) {
	if r.Launch != nil && r.Launch.Output != "" {
		logger.Debug("%s: am start: %s", r.Device, strings.TrimSpace(r.Launch.Output))
	}

	data := map[string]interface{}{
		"Device":   r.Device,
		"App":      r.AppID,
		"Duration": r.Duration.Round(time.Millisecond).String(),
	}
	switch {
	case r.TimedOut:
		fmt.Println("⏱️  " + i18n.T("run.timedOut", data))
	case r.State == deploy.StateSuccess:
		fmt.Println("🚀 " + i18n.T("run.finished", data))
	default:
		fmt.Println("❌ " + i18n.T("run.failed", data))
	}
	for _, f := range r.LogFiles {
		fmt.Printf("   %s\n", i18n.T("run.logSaved", map[string]interface{}{"Path": f}))
	}
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runDevice, "device", "s", "", "target device serial")
	runCmd.Flags().DurationVarP(&runTimeoutFl, "timeout", "t", 0, "stop waiting for a prebuilt run after this long (0 waits until exit)")
	runCmd.Flags().StringVar(&runClientApp, "client-app", "", "launch this package instead (path without architecture and extension)")
}
