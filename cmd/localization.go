package cmd

import "github.com/huanfeng/apkdeploy-cli/internal/i18n"

// applyCommandLocalization updates command and flag descriptions after i18n is initialized.
func applyCommandLocalization() {
	// Root command metadata and flags.
	rootCmd.Short = i18n.T("cmd.root.short")
	rootCmd.Long = i18n.T("cmd.root.long")

	flagUsage := map[string]string{
		"config":   "flags.config",
		"verbose":  "flags.verbose",
		"debug":    "flags.debug",
		"log-file": "flags.logFile",
		"no-color": "flags.noColor",
		"lang":     "flags.lang",
	}
	for name, id := range flagUsage {
		if flag := rootCmd.PersistentFlags().Lookup(name); flag != nil {
			flag.Usage = i18n.T(id)
		}
	}

	// Command descriptions.
	versionCmd.Short = i18n.T("cmd.version.short")
	versionCmd.Long = i18n.T("cmd.version.long")

	devicesCmd.Short = i18n.T("cmd.devices.short")
	devicesCmd.Long = i18n.T("cmd.devices.long")

	inspectCmd.Short = i18n.T("cmd.inspect.short")
	inspectCmd.Long = i18n.T("cmd.inspect.long")

	packageCmd.Short = i18n.T("cmd.package.short")
	packageCmd.Long = i18n.T("cmd.package.long")

	archiveCmd.Short = i18n.T("cmd.archive.short")
	archiveCmd.Long = i18n.T("cmd.archive.long")

	deployCmd.Short = i18n.T("cmd.deploy.short")
	deployCmd.Long = i18n.T("cmd.deploy.long")

	runCmd.Short = i18n.T("cmd.run.short")
	runCmd.Long = i18n.T("cmd.run.long")

	doctorCmd.Short = i18n.T("cmd.doctor.short")
	doctorCmd.Long = i18n.T("cmd.doctor.long")

	configCmd.Short = i18n.T("cmd.config.short")
	configInitCmd.Short = i18n.T("cmd.configInit.short")
	configShowCmd.Short = i18n.T("cmd.configShow.short")
}
