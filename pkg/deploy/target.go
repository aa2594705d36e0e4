package deploy

import (
	"context"

	"github.com/huanfeng/apkdeploy-cli/internal/device"
	"github.com/huanfeng/apkdeploy-cli/pkg/adb"
	"github.com/huanfeng/apkdeploy-cli/pkg/apk"
	"github.com/huanfeng/apkdeploy-cli/pkg/models"
)

// DeploymentTarget is one platform the pipeline can package for and deploy to.
type DeploymentTarget interface {
	Platform() string
	Package(ctx context.Context, variants []models.BuildVariant) ([]models.ArtifactSet, error)
	Archive(ctx context.Context, targetConfigs []string, variants []models.BuildVariant) (*models.ArchiveManifest, error)
	Deploy(ctx context.Context, opts DeployOptions) (*DeployResult, error)
	Run(ctx context.Context, opts RunOptions) (*RunResult, error)
	ConnectedDevices(ctx context.Context) ([]string, error)
}

var _ DeploymentTarget = (*Android)(nil)

// Android deploys through adb.
type Android struct {
	cfg       *models.Config
	bridge    *adb.Bridge
	inspector apk.Inspector
	packager  *Packager
	archiver  *Archiver
	opts      []Option
}

// NewAndroid creates the Android target.
func NewAndroid(cfg *models.Config, bridge *adb.Bridge, inspector apk.Inspector, opts ...Option) *Android {
	return &Android{
		cfg:       cfg,
		bridge:    bridge,
		inspector: inspector,
		packager:  NewPackager(cfg, inspector, opts...),
		archiver:  NewArchiver(cfg, inspector, opts...),
		opts:      opts,
	}
}

// Platform implements DeploymentTarget.
func (a *Android) Platform() string { return "Android" }

// Package implements DeploymentTarget.
func (a *Android) Package(ctx context.Context, variants []models.BuildVariant) ([]models.ArtifactSet, error) {
	return a.packager.Package(ctx, variants)
}

// Archive implements DeploymentTarget.
func (a *Android) Archive(ctx context.Context, targetConfigs []string, variants []models.BuildVariant) (*models.ArchiveManifest, error) {
	return a.archiver.Archive(ctx, targetConfigs, variants)
}

// ArchiveDir returns where Archive writes.
func (a *Android) ArchiveDir() string {
	return a.archiver.Dir()
}

// Controller returns a fresh controller for device.
func (a *Android) Controller(device string) *Controller {
	return NewController(a.cfg, a.bridge, a.inspector, device, a.opts...)
}

// Deploy implements DeploymentTarget.
func (a *Android) Deploy(ctx context.Context, opts DeployOptions) (*DeployResult, error) {
	return a.Controller(opts.Device).Deploy(ctx, opts)
}

// Run implements DeploymentTarget.
func (a *Android) Run(ctx context.Context, opts RunOptions) (*RunResult, error) {
	return a.Controller(opts.Device).Run(ctx, opts)
}

// ConnectedDevices implements DeploymentTarget.
func (a *Android) ConnectedDevices(ctx context.Context) ([]string, error) {
	return a.bridge.ConnectedDevices(ctx)
}

// DeviceReport is the outcome of deploying to one device.
type DeviceReport struct {
	Device string        `json:"device"`
	Deploy *DeployResult `json:"deploy,omitempty"`
	Run    *RunResult    `json:"run,omitempty"`
}

// DeployDevices deploys to every device, at most parallel at a time, and runs
// the app afterwards when run is set. Each device gets its own controller;
// the command-line file is written once up front and shared by all of them.
// Results are in device order.
func (a *Android) DeployDevices(ctx context.Context, devices []string, opts DeployOptions, run *RunOptions,
	parallel int, onResult func(device.Result[*DeviceReport])) []device.Result[*DeviceReport] {
	if err := checkProjectPaths(a.cfg.Project); err != nil {
		return failAll(devices, err, onResult)
	}
	cmdLineFile, err := WriteCommandLine(a.cfg.Project)
	if err != nil {
		return failAll(devices, err, onResult)
	}
	opts.commandLine = cmdLineFile

	mopts := []device.Option[*DeviceReport]{device.WithWorkerLimit[*DeviceReport](parallel)}
	if onResult != nil {
		mopts = append(mopts, device.WithResultHook[*DeviceReport](onResult))
	}

	pool := device.NewManager[*DeviceReport](mopts...)
	return pool.Run(ctx, devices, func(ctx context.Context, name string) (*DeviceReport, error) {
		report := &DeviceReport{Device: name}
		ctrl := a.Controller(name)

		dopts := opts
		dopts.Device = name
		res, err := ctrl.Deploy(ctx, dopts)
		report.Deploy = res
		if err != nil || run == nil {
			return report, err
		}

		ropts := *run
		ropts.Device = name
		report.Run, err = ctrl.Run(ctx, ropts)
		return report, err
	})
}

// failAll reports err for every device without starting any of them.
func failAll(devices []string, err error, onResult func(device.Result[*DeviceReport])) []device.Result[*DeviceReport] {
	results := make([]device.Result[*DeviceReport], 0, len(devices))
	for _, name := range devices {
		r := device.Result[*DeviceReport]{Key: name, Value: &DeviceReport{Device: name}, Err: err}
		if onResult != nil {
			onResult(r)
		}
		results = append(results, r)
	}
	return results
}
