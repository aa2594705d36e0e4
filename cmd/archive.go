package cmd

import (
	"fmt"

	"github.com/huanfeng/apkdeploy-cli/internal/i18n"
	"github.com/huanfeng/apkdeploy-cli/pkg/system"
	"github.com/spf13/cobra"
)

var archiveConfigs []string

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Copy packaged builds into the archive directory",
	Long: `Copy every variant's apk, the expansion file and the install scripts into
the archive directory and write an archive.yaml manifest with checksums.
Exactly one target configuration can be archived at a time.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		target, err := newTarget(cmd.Context())
		if err != nil {
			return err
		}

		configs := appConfig.Project.TargetConfigurations
		if len(archiveConfigs) > 0 {
			configs = archiveConfigs
		}

		manifest, err := target.Archive(cmd.Context(), configs, appConfig.Build.Variants())
		if err != nil {
			return err
		}

		fmt.Println(i18n.T("archive.done", map[string]interface{}{"Dir": target.ArchiveDir()}))
		var total int64
		for _, f := range manifest.Files {
			total += f.Size
			fmt.Printf("   %-8s %-48s %10s  %s\n", f.Kind, f.Name, system.FormatBytes(uint64(f.Size)), f.SHA256[:12])
		}
		if manifest.Icon != "" {
			fmt.Printf("   %-8s %s\n", "icon", manifest.Icon)
		}
		fmt.Printf("   %d files, %s\n", len(manifest.Files), system.FormatBytes(uint64(total)))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(archiveCmd)

	archiveCmd.Flags().StringSliceVar(&archiveConfigs, "configuration", nil, "target configuration to archive (overrides project.target_configurations)")
}
