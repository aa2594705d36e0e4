package deploy

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/huanfeng/apkdeploy-cli/internal/errors"
	"github.com/huanfeng/apkdeploy-cli/pkg/adb"
	"github.com/huanfeng/apkdeploy-cli/pkg/apk"
	"github.com/huanfeng/apkdeploy-cli/pkg/models"
	"github.com/huanfeng/apkdeploy-cli/pkg/system"
)

const defaultPollInterval = 500 * time.Millisecond

// Log tags echoed to the debug log after a monitored run.
var runLogTags = []string{"UE4", "Debug"}

// DeployOptions selects what Deploy does after installing.
type DeployOptions struct {
	// Device is a serial or "name@serial"; empty targets the only device.
	Device string
	// Mode is one of the models.StageMode* values; empty uses device.stage_mode.
	Mode string
	// Exclude filters staged files; nil excludes packages.
	Exclude ExcludeFunc

	// commandLine is the command-line file already written for this run.
	commandLine string
}

// DeployResult describes a finished deploy.
type DeployResult struct {
	Device      string                 `json:"device"`
	Arch        models.Arch            `json:"arch"`
	Package     string                 `json:"package"`
	Identity    models.PackageIdentity `json:"identity"`
	StorageRoot string                 `json:"storage_root"`
	Mode        string                 `json:"mode"`
	Plan        *models.TransferPlan   `json:"plan,omitempty"`
	States      []State                `json:"-"`
	Duration    time.Duration          `json:"duration"`
}

// RunOptions controls Run.
type RunOptions struct {
	Device string
	// ClientApp is a package path without architecture and extension. When
	// <ClientApp><arch>.apk does not exist the configured package is used.
	ClientApp string
	// Timeout bounds monitoring; 0 waits until the app exits.
	Timeout time.Duration
}

// RunResult describes a launched app.
type RunResult struct {
	Device   string                `json:"device"`
	Arch     models.Arch           `json:"arch"`
	Package  string                `json:"package"`
	AppID    string                `json:"app_id"`
	Launch   *system.CommandResult `json:"-"`
	State    State                 `json:"-"`
	TimedOut bool                  `json:"timed_out"`
	LogFiles []string              `json:"log_files,omitempty"`
	States   []State               `json:"-"`
	Duration time.Duration         `json:"duration"`
}

// Controller deploys to and runs on one device.
type Controller struct {
	cfg       *models.Config
	bridge    *adb.Bridge
	inspector apk.Inspector
	namer     *Namer
	device    string
	opts      options
	machine   *machine
}

// NewController creates a controller for device. bridge is re-targeted at
// device; its runner and tool path are shared.
func NewController(cfg *models.Config, bridge *adb.Bridge, inspector apk.Inspector, device string, opts ...Option) *Controller {
	o := newOptions(opts)
	return &Controller{
		cfg:       cfg,
		bridge:    bridge.ForDevice(device),
		inspector: inspector,
		namer:     NewNamer(cfg.Project, cfg.Build.Prebuilt),
		device:    device,
		opts:      o,
		machine:   newMachine(device, o.logger),
	}
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	return c.machine.state
}

// SelectDeviceArchitecture asks the device for its ABI and picks the build
// to use. A single fat package needs no query and yields the empty tag.
func (c *Controller) SelectDeviceArchitecture(ctx context.Context) (models.Arch, error) {
	if !c.cfg.Build.SeparatePackages {
		return "", nil
	}
	abi, err := c.bridge.CPUABI(ctx)
	if err != nil {
		return "", err
	}
	return selectArchitecture(c.cfg.Build.Archs(), abi, c.device)
}

// enter moves the lifecycle to state to. An invalid transition fails the
// operation instead of leaving the history out of step with the work done.
func (c *Controller) enter(to State) error {
	if err := c.machine.advance(to); err != nil {
		c.opts.logger.Warn("[%s] %v", c.deviceLabel(), err)
		return errors.WrapError(err, errors.ErrorTypeUnknown, "INVALID_STATE", err.Error()).
			WithContext("device", c.device)
	}
	return nil
}

func (c *Controller) fail(err error) error {
	if !c.machine.state.Terminal() {
		// Any live state may fail; enter logs if it cannot.
		_ = c.enter(StateError)
	}
	return err
}

// Deploy installs the package for the device's architecture and then stages
// content, pushes the payload, or pushes only the command line, per mode.
func (c *Controller) Deploy(ctx context.Context, opts DeployOptions) (*DeployResult, error) {
	start := c.opts.now()
	c.machine.reset()

	mode := opts.Mode
	if mode == "" {
		mode = c.cfg.Device.StageMode
	}
	result := &DeployResult{Device: c.device, Mode: mode}
	finish := func(err error) (*DeployResult, error) {
		result.States = c.machine.states()
		result.Duration = c.opts.now().Sub(start)
		if err != nil {
			return result, c.fail(err)
		}
		return result, nil
	}

	if err := checkProjectPaths(c.cfg.Project); err != nil {
		return finish(err)
	}

	arch, err := c.SelectDeviceArchitecture(ctx)
	if err != nil {
		return finish(err)
	}
	result.Arch = arch
	if err := c.enter(StateArchitectureSelected); err != nil {
		return finish(err)
	}

	variant := models.BuildVariant{Arch: arch}
	apkPath := c.namer.PrimaryPackagePath(exeName(c.cfg.Project), variant, true)
	result.Package = apkPath

	if !c.cfg.Build.Prebuilt && c.opts.preparer != nil {
		if err := c.opts.preparer.PrepareForDeploy(ctx, variant); err != nil {
			return finish(err)
		}
	}

	if !fileExists(apkPath) {
		return finish(errors.NewPackageNotFound(apkPath))
	}
	if err := c.enter(StatePackageVerified); err != nil {
		return finish(err)
	}

	id, err := c.inspector.Identity(ctx, apkPath)
	if err != nil {
		return finish(err)
	}
	result.Identity = id

	// Usually fails because nothing was installed yet.
	if res, err := c.bridge.Uninstall(ctx, id.PackageName); err != nil || !res.Success() {
		c.opts.logger.Debug("Uninstall of %s did not succeed, continuing", id.PackageName)
	}
	if err := c.enter(StateUninstalled); err != nil {
		return finish(err)
	}

	c.opts.logger.Info("Installing %s on %s", filepath.Base(apkPath), c.deviceLabel())
	if _, err := c.bridge.Install(ctx, apkPath); err != nil {
		return finish(err)
	}
	if err := c.enter(StateInstalled); err != nil {
		return finish(err)
	}

	cmdLineFile := opts.commandLine
	if cmdLineFile == "" {
		if cmdLineFile, err = WriteCommandLine(c.cfg.Project); err != nil {
			return finish(err)
		}
	}

	storage, err := c.bridge.StorageRoot(ctx)
	if err != nil {
		return finish(err)
	}
	result.StorageRoot = storage

	payload, err := SecondaryPayloadPath(apkPath, id)
	if err != nil {
		return finish(err)
	}
	devicePayload := path.Join(storage, OnDevicePayloadPath(id, payload))
	remoteDir := path.Join(storage, c.cfg.Project.ShortName)
	if remoteDir == path.Clean(storage) {
		return finish(errors.NewConfigurationError(
			fmt.Sprintf("project directory %q resolves to the storage root", remoteDir)).
			WithContext("short_name", c.cfg.Project.ShortName))
	}

	switch mode {
	case models.StageModeArchive:
		if fileExists(payload) {
			if err := c.bridge.Push(ctx, payload, devicePayload); err != nil {
				return finish(errors.NewPushFailed(map[string]error{payload: err}))
			}
		}
		if err := c.enter(StateArchived); err != nil {
			return finish(err)
		}

	case models.StageModeCommandLine:
		remote := RemotePath(cmdLineFile, c.cfg.Project.StageDir, remoteDir)
		if err := c.bridge.Push(ctx, cmdLineFile, remote); err != nil {
			return finish(errors.NewPushFailed(map[string]error{cmdLineFile: err}))
		}
		if err := c.enter(StateCommandLineOnly); err != nil {
			return finish(err)
		}

	default:
		if err := c.bridge.Remove(ctx, remoteDir, true); err != nil {
			c.opts.logger.Debug("Removing %s: %v", remoteDir, err)
		}

		exclude := opts.Exclude
		if exclude == nil {
			exclude = ExcludePackages
		}
		plan, err := PlanAndPush(ctx, c.bridge, c.cfg.Project.StageDir, exclude, remoteDir,
			c.cfg.Device.MaxParallelPushes, c.opts.progress)
		result.Plan = plan
		if err != nil {
			return finish(err)
		}

		// A payload on the device would shadow the loose files just pushed.
		if err := c.bridge.Remove(ctx, devicePayload, false); err != nil {
			c.opts.logger.Debug("Removing %s: %v", devicePayload, err)
		}
		if err := c.enter(StateStaged); err != nil {
			return finish(err)
		}
	}

	return finish(nil)
}

// WriteCommandLine regenerates the command-line file in the staging dir and
// returns its path.
func WriteCommandLine(project models.ProjectConfig) (string, error) {
	if strings.TrimSpace(project.StageDir) == "" {
		return "", errors.NewConfigurationError("project.stage_dir is required")
	}
	file := filepath.Join(project.StageDir, project.CommandLineFile)
	if err := os.Remove(file); err != nil && !os.IsNotExist(err) {
		return "", errors.WrapError(err, errors.ErrorTypeFileSystem, "COMMANDLINE_WRITE_FAILED",
			"failed to remove the old command line").WithContext("path", file)
	}
	if err := os.WriteFile(file, []byte(project.CommandLine), 0644); err != nil {
		return "", errors.WrapError(err, errors.ErrorTypeFileSystem, "COMMANDLINE_WRITE_FAILED",
			"failed to write the command line").WithContext("path", file)
	}
	return file, nil
}

// checkProjectPaths rejects settings that would make a deploy act on the
// storage root or the working directory.
func checkProjectPaths(project models.ProjectConfig) error {
	name := strings.TrimSpace(project.ShortName)
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return errors.NewConfigurationError(
			fmt.Sprintf("project.short_name %q must be a plain directory name", project.ShortName))
	}
	if strings.TrimSpace(project.StageDir) == "" {
		return errors.NewConfigurationError("project.stage_dir is required")
	}
	return nil
}

// Run launches the app. For prebuilt builds it also waits for the app to
// exit, bounded by opts.Timeout, and saves the device log. The launch result
// is returned whatever the monitoring outcome.
func (c *Controller) Run(ctx context.Context, opts RunOptions) (*RunResult, error) {
	start := c.opts.now()
	if c.machine.state.Terminal() {
		c.machine.reset()
	}

	result := &RunResult{Device: c.device}
	finish := func(err error) (*RunResult, error) {
		result.State = c.machine.state
		result.States = c.machine.states()
		result.Duration = c.opts.now().Sub(start)
		if err != nil {
			err = c.fail(err)
			result.State = c.machine.state
			return result, err
		}
		return result, nil
	}

	arch, err := c.SelectDeviceArchitecture(ctx)
	if err != nil {
		return finish(err)
	}
	result.Arch = arch
	if c.machine.state == StateIdle {
		if err := c.enter(StateArchitectureSelected); err != nil {
			return finish(err)
		}
	}

	apkPath := c.clientPackage(opts.ClientApp, arch)
	result.Package = apkPath
	c.opts.logger.Debug("Apk='%s', ClientApp='%s'", apkPath, opts.ClientApp)

	appID, err := c.inspector.Inspect(ctx, apkPath, false)
	if err != nil {
		return finish(err)
	}
	result.AppID = appID

	prebuilt := c.cfg.Build.Prebuilt
	if prebuilt {
		if err := c.bridge.ClearLog(ctx); err != nil {
			c.opts.logger.Warn("Failed to clear the device log: %v", err)
		}
	}

	if err := c.bridge.Wake(ctx); err != nil {
		c.opts.logger.Debug("Wake: %v", err)
	}

	launch, err := c.bridge.StartActivity(ctx, appID, c.activity())
	result.Launch = launch
	if err != nil {
		return finish(err)
	}
	if err := c.enter(StateLaunched); err != nil {
		return finish(err)
	}

	if !prebuilt {
		return finish(c.enter(StateSuccess))
	}

	if err := c.enter(StateMonitoring); err != nil {
		return finish(err)
	}
	timedOut, err := c.monitor(ctx, appID, opts.Timeout)
	if err != nil {
		return finish(err)
	}
	result.TimedOut = timedOut
	end := StateSuccess
	if timedOut {
		end = StateTimeout
	}
	if err := c.enter(end); err != nil {
		return finish(err)
	}

	files, err := c.captureLogs(ctx)
	result.LogFiles = files
	if err != nil {
		c.opts.logger.Warn("Failed to save the device log: %v", err)
	}
	return finish(nil)
}

func (c *Controller) clientPackage(clientApp string, arch models.Arch) string {
	v := models.BuildVariant{Arch: arch}
	if clientApp == "" {
		return c.namer.PrimaryPackagePath(exeName(c.cfg.Project), v, true)
	}
	if candidate := clientApp + string(arch) + packageExt; fileExists(candidate) {
		return candidate
	}
	stem := strings.TrimSuffix(filepath.Base(clientApp), filepath.Ext(clientApp))
	return c.namer.PrimaryPackagePath(stem, v, true)
}

func (c *Controller) activity() string {
	if c.cfg.Device.Activity != "" {
		return c.cfg.Device.Activity
	}
	return "com.epicgames.ue4.GameActivity"
}

// monitor polls the process list until appID disappears. A zero timeout
// waits indefinitely; otherwise the timeout is logged and timedOut is set.
func (c *Controller) monitor(ctx context.Context, appID string, timeout time.Duration) (timedOut bool, err error) {
	interval := c.cfg.Device.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	start := c.opts.now()
	for {
		ps, err := c.bridge.Processes(ctx)
		if err != nil {
			return false, err
		}
		if !strings.Contains(ps, appID) {
			return false, nil
		}

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-ticker.C:
		}

		if timeout > 0 && c.opts.now().Sub(start) > timeout {
			c.opts.logger.Warn("Device: %s timed out while waiting for run to finish", c.deviceLabel())
			return true, nil
		}
	}
}

// captureLogs echoes the tagged log to the debug log and writes the full
// device log under the staging root and the shared log directory.
func (c *Controller) captureLogs(ctx context.Context) ([]string, error) {
	if tagged, err := c.bridge.DumpLog(ctx, runLogTags...); err == nil {
		c.opts.logger.Debug("%s", tagged)
	}

	full, err := c.bridge.DumpLog(ctx)
	if err != nil {
		return nil, err
	}

	name := "devicelog" + c.device + ".log"
	dirs := []string{
		filepath.Join(c.cfg.Project.BaseStageDir, "Android", "logs"),
		c.cfg.Project.LogDir,
	}

	var written []string
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return written, err
		}
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(full), 0644); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

func (c *Controller) deviceLabel() string {
	if c.device == "" {
		return "default device"
	}
	return c.device
}
