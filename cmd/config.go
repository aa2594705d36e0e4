package cmd

import (
	"fmt"
	"os"

	"github.com/huanfeng/apkdeploy-cli/internal/config"
	"github.com/huanfeng/apkdeploy-cli/internal/errors"
	"github.com/huanfeng/apkdeploy-cli/internal/i18n"
	"github.com/spf13/cobra"
)

var configInitForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Create or show the configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a commented configuration template",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.DefaultFileName
		if len(args) > 0 {
			path = args[0]
		}

		if _, err := os.Stat(path); err == nil && !configInitForce {
			return errors.NewError(errors.ErrorTypeConfiguration, "CONFIG_EXISTS",
				fmt.Sprintf("%s already exists", path)).
				WithSuggestion("Use --force to overwrite it")
		}
		if err := config.SaveTemplate(path); err != nil {
			return errors.WrapError(err, errors.ErrorTypeFileSystem, "CONFIG_WRITE_FAILED",
				"failed to write the configuration template").WithContext("path", path)
		}

		fmt.Println(i18n.T("config.created", map[string]interface{}{"Path": path}))
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := config.Marshal(appConfig)
		if err != nil {
			return err
		}
		if used := config.UsedFile(cfgFile); used != "" {
			fmt.Printf("# %s\n", used)
		}
		fmt.Print(string(data))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)

	configInitCmd.Flags().BoolVarP(&configInitForce, "force", "f", false, "overwrite an existing file")
}
