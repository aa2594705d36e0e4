package cmd

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/huanfeng/apkdeploy-cli/pkg/system"
	"github.com/spf13/cobra"
)

var inspectJSON bool

var inspectCmd = &cobra.Command{
	Use:   "inspect <apk-file>",
	Short: "Show the identity and metadata of a package",
	Long: `Read the package name, version code and further metadata from an apk.
aapt is used when available; otherwise the manifest is parsed directly.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		absPath, err := filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("failed to resolve APK path: %w", err)
		}

		info, err := loadToolchain(cmd.Context()).inspector().Describe(cmd.Context(), absPath)
		if err != nil {
			return err
		}

		if inspectJSON {
			data, err := json.MarshalIndent(info, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal package info: %w", err)
			}
			fmt.Println(string(data))
			return nil
		}

		fmt.Printf("📦 %s\n", filepath.Base(absPath))
		fmt.Printf("   Package:      %s\n", info.PackageName)
		fmt.Printf("   Version code: %s\n", info.VersionCode)
		if info.VersionName != "" {
			fmt.Printf("   Version name: %s\n", info.VersionName)
		}
		if info.Label != "" {
			fmt.Printf("   Label:        %s\n", info.Label)
		}
		if info.MinSDK > 0 {
			fmt.Printf("   SDK:          min %d, target %d\n", info.MinSDK, info.TargetSDK)
		}
		if info.LaunchActivity != "" {
			fmt.Printf("   Activity:     %s\n", info.LaunchActivity)
		}
		if len(info.ABIs) > 0 {
			fmt.Printf("   ABIs:         %s\n", strings.Join(info.ABIs, ", "))
		}
		fmt.Printf("   Size:         %s\n", system.FormatBytes(uint64(info.Size)))
		fmt.Printf("   Read by:      %s\n", info.Parser)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)

	inspectCmd.Flags().BoolVar(&inspectJSON, "json", false, "print as JSON")
}
