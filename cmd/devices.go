package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/huanfeng/apkdeploy-cli/internal/i18n"
	"github.com/huanfeng/apkdeploy-cli/pkg/adb"
	"github.com/huanfeng/apkdeploy-cli/pkg/deploy"
	"github.com/spf13/cobra"
)

var devicesFormat string

// deviceView is one row of the devices listing.
type deviceView struct {
	adb.Device
	// Build is the architecture tag deploy would install, empty when none fits.
	Build string `json:"build,omitempty"`
}

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List connected Android devices",
	Long:  `List connected Android devices with their state, model, ABI and the build deploy would pick.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireTools(cmd.Context(), cmd.Name()); err != nil {
			return err
		}

		tc := loadToolchain(cmd.Context())
		bridge := tc.bridge()

		devices, err := bridge.Devices(cmd.Context())
		if err != nil {
			return err
		}

		views := make([]deviceView, 0, len(devices))
		for _, d := range devices {
			d = bridge.Describe(cmd.Context(), d)
			v := deviceView{Device: d}
			if d.ABI != "" {
				if arch, err := deploy.SelectArchitecture(appConfig.Build.Archs(), d.ABI); err == nil {
					v.Build = string(arch)
				}
			}
			views = append(views, v)
		}

		switch devicesFormat {
		case "json":
			return showDevicesJSON(views)
		case "table":
			return showDevicesTable(views)
		default:
			return showDevicesDefault(views)
		}
	},
}

// showDevicesDefault displays devices in default format
func showDevicesDefault(devices []deviceView) error {
	fmt.Println(i18n.T("devices.title"))
	fmt.Println("==================")
	fmt.Println()

	if len(devices) == 0 {
		fmt.Println(i18n.T("devices.none"))
		fmt.Println()
		fmt.Println(i18n.T("devices.troubleshooting"))
		fmt.Println("   • Connect your Android device via USB")
		fmt.Println("   • Enable USB debugging in Developer Options")
		fmt.Println("   • Authorize this computer when prompted")
		fmt.Println("   • Try running 'adb devices' manually")
		return nil
	}

	online, other := 0, 0
	for i, d := range devices {
		marker := "🟢"
		switch d.State {
		case adb.StateDevice:
			online++
		case adb.StateUnauthorized:
			marker = "🔒"
			other++
		default:
			marker = "🔴"
			other++
		}
		fmt.Printf("%s %d. %s\n", marker, i+1, formatDeviceInfo(d))
	}

	fmt.Println()
	fmt.Println(i18n.T("devices.summary", map[string]interface{}{
		"Total":   len(devices),
		"Online":  online,
		"Offline": other,
	}))
	return nil
}

// showDevicesTable displays devices in table format
func showDevicesTable(devices []deviceView) error {
	if len(devices) == 0 {
		fmt.Println(i18n.T("devices.none"))
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DEVICE\tSTATE\tMODEL\tANDROID\tABI\tBUILD\tTYPE")
	fmt.Fprintln(w, "------\t-----\t-----\t-------\t---\t-----\t----")

	for _, d := range devices {
		deviceType := "Device"
		if d.IsEmulator {
			deviceType = "Emulator"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			d.Name(), d.State, d.Model, d.AndroidVer, d.ABI, d.Build, deviceType)
	}

	return w.Flush()
}

// showDevicesJSON displays devices in JSON format
func showDevicesJSON(devices []deviceView) error {
	data, err := json.MarshalIndent(devices, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	fmt.Println(string(data))
	return nil
}

// formatDeviceInfo formats device information for display
func formatDeviceInfo(d deviceView) string {
	info := d.Name()
	if d.Model != "" {
		info = fmt.Sprintf("%s (%s)", d.Model, d.Name())
	}
	if d.IsEmulator {
		info += " [Emulator]"
	}
	if d.AndroidVer != "" {
		info += " - Android " + d.AndroidVer
	}
	if d.ABI != "" {
		info += " - " + d.ABI
		if d.Build != "" {
			info += " → " + d.Build
		}
	}
	if d.State != adb.StateDevice {
		info += " [" + d.State + "]"
	}
	return info
}

func init() {
	rootCmd.AddCommand(devicesCmd)

	devicesCmd.Flags().StringVarP(&devicesFormat, "format", "f", "default", "output format (default, table, json)")
}
