package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/huanfeng/apkdeploy-cli/internal/config"
	"github.com/huanfeng/apkdeploy-cli/internal/errors"
	"github.com/huanfeng/apkdeploy-cli/internal/i18n"
	"github.com/huanfeng/apkdeploy-cli/pkg/system"
	"github.com/spf13/cobra"
)

// minFreeSpace is required under the project and archive directories.
const minFreeSpace = 1 << 30

type diagnosis struct {
	passed      bool
	issues      []string
	suggestions []string
}

func (d *diagnosis) fail(issue string, suggestions ...string) {
	d.passed = false
	d.issues = append(d.issues, issue)
	d.suggestions = append(d.suggestions, suggestions...)
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check tools, configuration and devices",
	Long: `The doctor command checks everything apkdeploy needs:

- adb and aapt (PATH, ANDROID_HOME, common SDK locations)
- the configuration file
- free disk space for packaging and archiving
- connected devices and the build each one would receive`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		logger.Info("Starting system diagnostics...")

		fmt.Println(i18n.T("doctor.title"))
		fmt.Println(strings.Repeat("=", 50))

		d := &diagnosis{passed: true}

		fmt.Println("\n🔍 " + i18n.T("doctor.dependencies"))
		checkDependencies(ctx, d)

		fmt.Println("\n⚙️  " + i18n.T("doctor.configuration"))
		configOK := checkConfiguration(d)

		fmt.Println("\n💾 " + i18n.T("doctor.disk"))
		checkDiskSpace(d)

		if configOK {
			fmt.Println("\n📱 " + i18n.T("doctor.devices"))
			checkDevices(ctx, d)
		}

		fmt.Println("\n" + strings.Repeat("=", 50))
		if d.passed {
			fmt.Println("✅ " + i18n.T("doctor.passed"))
			return nil
		}

		fmt.Println("❌ " + i18n.T("doctor.issues", map[string]interface{}{"Count": len(d.issues)}))
		fmt.Println()
		for i, issue := range d.issues {
			fmt.Printf("%d. %s\n", i+1, issue)
		}
		if len(d.suggestions) > 0 {
			fmt.Println("\n💡 " + i18n.T("doctor.suggestions"))
			for i, s := range d.suggestions {
				fmt.Printf("%d. %s\n", i+1, s)
			}
		}

		return errors.NewError(errors.ErrorTypeDependency, "DOCTOR_FAILED",
			fmt.Sprintf("system diagnostics found %d issue(s)", len(d.issues)))
	},
}

// checkDependencies checks all required dependencies
func checkDependencies(ctx context.Context, d *diagnosis) {
	deps := loadToolchain(ctx).deps
	statuses := deps.CheckAll(ctx)

	for _, name := range system.KnownDependencies() {
		dep := statuses[name]
		switch {
		case dep.Available:
			fmt.Printf("   ✅ %s: %s (%s)\n", dep.Name, dep.Version, dep.Path)
		case dep.Required:
			fmt.Printf("   ❌ %s: not found (required)\n", dep.Name)
			d.fail(fmt.Sprintf("Missing required dependency: %s", dep.Name), deps.GetInstallInstructions(name)...)
		default:
			fmt.Printf("   ⚠️  %s: not found (optional, used by %s)\n", dep.Name, strings.Join(dep.UsedBy, ", "))
		}
	}
}

func checkConfiguration(d *diagnosis) bool {
	if used := config.UsedFile(cfgFile); used != "" {
		fmt.Printf("   📄 %s\n", used)
	} else {
		fmt.Println("   ⚠️  no config file, using defaults")
		d.suggestions = append(d.suggestions, "Run 'apkdeploy config init' to create apkdeploy.yaml")
	}

	if err := config.Validate(appConfig); err != nil {
		fmt.Printf("   ❌ %v\n", err)
		d.fail("Invalid configuration", errors.AsDeployError(err).Suggestions...)
		return false
	}
	fmt.Printf("   ✅ %s, %s, stage mode %s\n", appConfig.Project.ShortName,
		strings.Join(appConfig.Build.Architectures, "/"), appConfig.Device.StageMode)
	return true
}

func checkDiskSpace(d *diagnosis) {
	for _, path := range []string{projectDirOrDot(), appConfig.Project.ArchiveDir} {
		if path == "" {
			continue
		}
		usage, err := system.CheckDiskSpace(path)
		if err != nil {
			fmt.Printf("   ⚠️  %s: %v\n", path, err)
			continue
		}
		fmt.Printf("   💿 %s: %.1f%% used (%s available)\n", usage.Path, usage.UsedPct, system.FormatBytes(usage.Available))
		if err := system.RequireFreeSpace(path, minFreeSpace); err != nil {
			d.fail(err.Error(), "Free up disk space before packaging")
		}
	}
}

func checkDevices(ctx context.Context, d *diagnosis) {
	target, err := newTarget(ctx)
	if err != nil {
		d.fail(err.Error())
		return
	}
	online, err := target.ConnectedDevices(ctx)
	if err != nil {
		fmt.Printf("   ❌ %v\n", err)
		d.fail("adb could not list devices", "Run 'adb kill-server && adb start-server'")
		return
	}
	if len(online) == 0 {
		fmt.Println("   ⚠️  " + i18n.T("devices.none"))
		return
	}
	for _, name := range online {
		arch, err := target.Controller(name).SelectDeviceArchitecture(ctx)
		switch {
		case err != nil:
			fmt.Printf("   ❌ %s: %v\n", name, err)
			d.fail(fmt.Sprintf("%s has no compatible build", name), errors.AsDeployError(err).Suggestions...)
		case arch == "":
			fmt.Printf("   ✅ %s: universal package\n", name)
		default:
			fmt.Printf("   ✅ %s: %s\n", name, arch)
		}
	}
}

func projectDirOrDot() string {
	if appConfig.Project.ProjectDir != "" {
		return appConfig.Project.ProjectDir
	}
	return "."
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}
