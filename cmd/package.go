package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/huanfeng/apkdeploy-cli/internal/i18n"
	"github.com/huanfeng/apkdeploy-cli/pkg/models"
	"github.com/spf13/cobra"
)

var (
	packageArchs    []string
	packageSeparate bool
)

var packageCmd = &cobra.Command{
	Use:   "package",
	Short: "Create the payload and install scripts for every build variant",
	Long: `For each configured architecture/GPU variant, copy the staged .pak into the
expansion file next to the apk and write an Install_*.bat script that installs
the build and pushes the payload.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(packageArchs) > 0 {
			appConfig.Build.Architectures = packageArchs
		}
		if cmd.Flags().Changed("separate") {
			appConfig.Build.SeparatePackages = packageSeparate
		}

		target, err := newTarget(cmd.Context())
		if err != nil {
			return err
		}

		variants := appConfig.Build.Variants()
		logger.Info("Packaging %d variant(s) of %s", len(variants), appConfig.Project.ShortName)

		sets, err := target.Package(cmd.Context(), variants)
		for _, s := range sets {
			printArtifactSet(s)
		}
		if err != nil {
			return err
		}

		fmt.Println(i18n.T("package.done", map[string]interface{}{"Count": len(sets)}))
		return nil
	},
}

func printArtifactSet(s models.ArtifactSet) {
	fmt.Printf("✅ %s\n", s.Variant)
	fmt.Printf("   apk:    %s\n", s.PrimaryPackage)
	if s.HasPayload {
		fmt.Printf("   obb:    %s\n", s.Payload)
	}
	fmt.Printf("   script: %s\n", filepath.Base(s.InstallScript))
}

func init() {
	rootCmd.AddCommand(packageCmd)

	packageCmd.Flags().StringSliceVar(&packageArchs, "arch", nil, "override build.architectures")
	packageCmd.Flags().BoolVar(&packageSeparate, "separate", false, "one package per architecture")
}
