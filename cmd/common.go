package cmd

import (
	"context"
	"path/filepath"

	"github.com/huanfeng/apkdeploy-cli/internal/config"
	"github.com/huanfeng/apkdeploy-cli/internal/errors"
	"github.com/huanfeng/apkdeploy-cli/pkg/adb"
	"github.com/huanfeng/apkdeploy-cli/pkg/apk"
	"github.com/huanfeng/apkdeploy-cli/pkg/deploy"
	"github.com/huanfeng/apkdeploy-cli/pkg/system"
)

// toolchain holds the resolved external tools for one command.
type toolchain struct {
	runner system.Runner
	deps   system.DependencyManager
	adb    string
	aapt   string
}

var tools *toolchain

func loadToolchain(ctx context.Context) *toolchain {
	if tools != nil {
		return tools
	}

	runner := system.NewExecRunner()
	deps := system.NewDependencyManager(
		system.WithRunner(runner),
		system.WithAndroidHome(appConfig.Tools.AndroidHome),
		system.WithToolPath("adb", appConfig.Tools.ADBPath),
		system.WithToolPath("aapt", appConfig.Tools.AAPTPath),
	)

	tc := &toolchain{runner: runner, deps: deps}
	tc.adb = deps.Resolve(ctx, "adb")

	switch {
	case appConfig.Tools.AAPTPath != "":
		tc.aapt = appConfig.Tools.AAPTPath
	default:
		if found, err := apk.FindAAPT(appConfig.Tools.AndroidHome); err == nil {
			tc.aapt = found
		} else {
			logger.Debug("aapt not found under build-tools: %v", err)
			tc.aapt = deps.Resolve(ctx, "aapt")
		}
	}
	logger.Debug("Using adb=%s aapt=%s", tc.adb, tc.aapt)

	tools = tc
	return tc
}

// requireTools fails when a tool the command cannot work without is missing.
// Optional tools only get a debug line.
func requireTools(ctx context.Context, command string) error {
	tc := loadToolchain(ctx)
	for _, status := range tc.deps.CheckForCommand(ctx, command) {
		switch {
		case status.Available:
		case status.Required:
			return errors.NewError(errors.ErrorTypeDependency, "DEPENDENCY_MISSING", status.Error).
				WithContext("dependency", status.Name).
				WithSuggestions(tc.deps.GetInstallInstructions(status.Name))
		default:
			logger.Debug("%s not found; %s uses its fallback", status.Name, command)
		}
	}
	return nil
}

// toolPaths is recorded in error reports.
func toolPaths() map[string]string {
	if tools == nil {
		return nil
	}
	return map[string]string{"adb": tools.adb, "aapt": tools.aapt}
}

func (tc *toolchain) bridge() *adb.Bridge {
	return adb.New(tc.adb, "", tc.runner, adb.WithLogger(logger))
}

// inspector tries aapt first and falls back to reading the manifest directly.
func (tc *toolchain) inspector() *apk.Chain {
	return apk.NewChain(logger,
		apk.NewAAPTInspector(tc.aapt, tc.runner),
		apk.NewBinaryInspector(),
	)
}

// newTarget validates the configuration and builds the Android target.
func newTarget(ctx context.Context, extra ...deploy.Option) (*deploy.Android, error) {
	if err := config.Validate(appConfig); err != nil {
		return nil, err
	}
	resolveProjectPaths()

	tc := loadToolchain(ctx)
	opts := []deploy.Option{
		deploy.WithLogger(logger),
		deploy.WithIconExtractor(apk.NewIconExtractor(0)),
	}
	if len(appConfig.Build.PrepareCommand) > 0 {
		opts = append(opts, deploy.WithPreparer(&deploy.CommandPreparer{
			Command: appConfig.Build.PrepareCommand,
			Project: appConfig.Project,
			Build:   appConfig.Build,
			Runner:  tc.runner,
		}))
	}
	opts = append(opts, extra...)

	return deploy.NewAndroid(appConfig, tc.bridge(), tc.inspector(), opts...), nil
}

// resolveProjectPaths makes relative project directories relative to
// project_dir, which itself is relative to the working directory.
func resolveProjectPaths() {
	p := &appConfig.Project
	if p.ProjectDir == "" {
		p.ProjectDir = "."
	}
	if abs, err := filepath.Abs(p.ProjectDir); err == nil {
		p.ProjectDir = abs
	}
	for _, dir := range []*string{&p.EngineDir, &p.StageDir, &p.BaseStageDir, &p.ArchiveDir, &p.LogDir} {
		if *dir != "" && !filepath.IsAbs(*dir) {
			*dir = filepath.Join(p.ProjectDir, *dir)
		}
	}
}
