// Package adb drives the adb executable for one target device.
package adb

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/huanfeng/apkdeploy-cli/internal/errors"
	"github.com/huanfeng/apkdeploy-cli/pkg/system"
)

// Logger is the subset of the application logger the bridge needs.
type Logger interface {
	Debug(format string, args ...interface{})
	Warn(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Warn(string, ...interface{})  {}

// Device states reported by "adb devices".
const (
	StateDevice       = "device"
	StateOffline      = "offline"
	StateUnauthorized = "unauthorized"
)

// Device is one line of "adb devices".
type Device struct {
	Serial       string `json:"serial"`
	State        string `json:"state"`
	Model        string `json:"model,omitempty"`
	Manufacturer string `json:"manufacturer,omitempty"`
	AndroidVer   string `json:"android_version,omitempty"`
	ABI          string `json:"abi,omitempty"`
	IsEmulator   bool   `json:"is_emulator"`
}

// Name is the device name in the form accepted by --device.
func (d Device) Name() string {
	return "@" + d.Serial
}

// Bridge runs adb commands against a single device, or the only attached
// device when no serial is set.
type Bridge struct {
	adbPath string
	serial  string
	runner  system.Runner
	logger  Logger
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithLogger sets the logger.
func WithLogger(l Logger) Option {
	return func(b *Bridge) {
		if l != nil {
			b.logger = l
		}
	}
}

// New creates a bridge. device may be a bare serial or "name@serial".
func New(adbPath, device string, runner system.Runner, opts ...Option) *Bridge {
	if adbPath == "" {
		adbPath = "adb"
	}
	b := &Bridge{
		adbPath: adbPath,
		serial:  SerialFromDevice(device),
		runner:  runner,
		logger:  nopLogger{},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// SerialFromDevice returns the part after '@' when present.
func SerialFromDevice(device string) string {
	if idx := strings.Index(device, "@"); idx >= 0 {
		return device[idx+1:]
	}
	return device
}

// Serial returns the targeted serial, empty for the default device.
func (b *Bridge) Serial() string {
	return b.serial
}

// ForDevice returns a bridge sharing this one's runner and tool path but targeting device.
func (b *Bridge) ForDevice(device string) *Bridge {
	c := *b
	c.serial = SerialFromDevice(device)
	return &c
}

// Run executes an adb sub-command for the target device.
func (b *Bridge) Run(ctx context.Context, args ...string) (*system.CommandResult, error) {
	full := make([]string, 0, len(args)+2)
	if b.serial != "" {
		full = append(full, "-s", b.serial)
	}
	full = append(full, args...)

	b.logger.Debug("Running: %s", system.CommandLine(b.adbPath, full...))
	result, err := b.runner.Run(ctx, b.adbPath, full...)
	if err != nil {
		return result, errors.WrapError(err, errors.ErrorTypeDependency, "ADB_UNAVAILABLE",
			"failed to run adb").WithSuggestion("Run 'apkdeploy doctor' to check dependencies")
	}
	return result, nil
}

// Shell runs "adb shell <cmd...>".
func (b *Bridge) Shell(ctx context.Context, cmd ...string) (*system.CommandResult, error) {
	return b.Run(ctx, append([]string{"shell"}, cmd...)...)
}

// ParseDevices reads "adb devices" output. Lines before "List of devices
// attached" are ignored; each following line is "<serial>\t<state>".
func ParseDevices(output string) []Device {
	var devices []Device
	found := false
	for _, line := range strings.FieldsFunc(output, func(r rune) bool { return r == '\n' || r == '\r' }) {
		if !found {
			if strings.HasPrefix(line, "List of devices attached") {
				found = true
			}
			continue
		}

		parts := strings.Split(line, "\t")
		if len(parts) != 2 {
			continue
		}
		serial := strings.TrimSpace(parts[0])
		devices = append(devices, Device{
			Serial:     serial,
			State:      strings.TrimSpace(parts[1]),
			IsEmulator: strings.HasPrefix(serial, "emulator-"),
		})
	}
	return devices
}

// Devices lists every attached device regardless of state.
func (b *Bridge) Devices(ctx context.Context) ([]Device, error) {
	// "devices" must not carry -s.
	lister := b.ForDevice("")
	result, err := lister.Run(ctx, "devices")
	if err != nil {
		return nil, err
	}
	return ParseDevices(result.Output), nil
}

// ConnectedDevices returns the usable devices as "@serial" names. Devices in
// any other state are logged and skipped.
func (b *Bridge) ConnectedDevices(ctx context.Context) ([]string, error) {
	devices, err := b.Devices(ctx)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, d := range devices {
		if d.State != StateDevice {
			b.logger.Warn("Device attached but in bad state %s:%s", d.Serial, d.State)
			continue
		}
		names = append(names, d.Name())
	}
	return names, nil
}

// Describe fills in model and version details from device properties.
// Missing properties are left empty.
func (b *Bridge) Describe(ctx context.Context, d Device) Device {
	if d.State != StateDevice {
		return d
	}
	target := b.ForDevice(d.Serial)
	d.Model, _ = target.Property(ctx, "ro.product.model")
	d.Manufacturer, _ = target.Property(ctx, "ro.product.manufacturer")
	d.AndroidVer, _ = target.Property(ctx, "ro.build.version.release")
	d.ABI, _ = target.Property(ctx, "ro.product.cpu.abi")
	return d
}

// Property reads one system property.
func (b *Bridge) Property(ctx context.Context, name string) (string, error) {
	result, err := b.Shell(ctx, "getprop", name)
	if err != nil {
		return "", err
	}
	if !result.Success() {
		return "", fmt.Errorf("getprop %s exited with %d", name, result.ExitCode)
	}
	return strings.TrimSpace(result.Output), nil
}

// CPUABI returns ro.product.cpu.abi, e.g. "arm64-v8a".
func (b *Bridge) CPUABI(ctx context.Context) (string, error) {
	return b.Property(ctx, "ro.product.cpu.abi")
}

// StorageRoot asks the device for its external storage mount point.
func (b *Bridge) StorageRoot(ctx context.Context) (string, error) {
	result, err := b.Shell(ctx, "echo $EXTERNAL_STORAGE")
	if err != nil {
		return "", err
	}
	root := strings.TrimSpace(result.Output)
	if !result.Success() || root == "" {
		return "", errors.NewError(errors.ErrorTypeDevice, "STORAGE_UNAVAILABLE",
			"device did not report $EXTERNAL_STORAGE").WithContext("output", result.Output)
	}
	return root, nil
}

// Uninstall removes pkg. The result is returned for logging only.
func (b *Bridge) Uninstall(ctx context.Context, pkg string) (*system.CommandResult, error) {
	return b.Run(ctx, "uninstall", pkg)
}

// InstallFailure inspects install output. adb sometimes exits 0 and only
// prints "Failure [...]", so both signals count. The reason is the text after
// the marker.
func InstallFailure(result *system.CommandResult) (failed bool, reason string) {
	idx := strings.Index(result.Output, "Failure")
	if result.ExitCode == 0 && idx < 0 {
		return false, ""
	}
	if idx >= 0 {
		reason = strings.TrimSpace(result.Output[idx+len("Failure"):])
	}
	return true, reason
}

// Install installs the package at apkPath.
func (b *Bridge) Install(ctx context.Context, apkPath string) (*system.CommandResult, error) {
	result, err := b.Run(ctx, "install", apkPath)
	if err != nil {
		return result, err
	}

	if failed, reason := InstallFailure(result); failed {
		e := errors.NewAppInstallFailed(apkPath, reason)
		e.WithContext("exit_code", fmt.Sprint(result.ExitCode))
		if code, suggestions := installSuggestions(result.Output); code != "" {
			e.WithContext("install_error", code)
			e.WithSuggestions(suggestions)
		}
		return result, e
	}
	return result, nil
}

var installFailedRe = regexp.MustCompile(`INSTALL_FAILED_[A-Z_]+`)

var installErrorSuggestions = map[string][]string{
	"INSTALL_FAILED_ALREADY_EXISTS": {
		"Uninstall the existing app first",
	},
	"INSTALL_FAILED_VERSION_DOWNGRADE": {
		"Uninstall the existing app first",
		"Raise the version code of the build",
	},
	"INSTALL_FAILED_INSUFFICIENT_STORAGE": {
		"Free up storage space on the device",
		"Clear app caches and data",
	},
	"INSTALL_FAILED_INVALID_APK": {
		"Rebuild the package; the apk file is invalid or corrupted",
	},
	"INSTALL_FAILED_OLDER_SDK": {
		"The device runs an older Android version than the package's minimum SDK",
	},
	"INSTALL_FAILED_NO_MATCHING_ABIS": {
		"The package architecture does not match the device",
		"Add the device architecture to build.architectures",
	},
	"INSTALL_FAILED_UPDATE_INCOMPATIBLE": {
		"The installed app was signed with a different key; uninstall it first",
	},
	"INSTALL_FAILED_MISSING_SHARED_LIBRARY": {
		"Required shared library not found on the device",
	},
}

// installSuggestions returns the INSTALL_FAILED_* code found in output and
// advice for it.
func installSuggestions(output string) (string, []string) {
	code := installFailedRe.FindString(strings.ToUpper(output))
	if code == "" {
		return "", nil
	}
	if s, ok := installErrorSuggestions[code]; ok {
		return code, s
	}
	return code, []string{
		"Check the device log with 'adb logcat' for more details",
		"Verify the package is compatible with the device",
	}
}

// Push copies local to remote. Directories are copied recursively by adb.
func (b *Bridge) Push(ctx context.Context, local, remote string) error {
	result, err := b.Run(ctx, "push", local, remote)
	if err != nil {
		return err
	}
	if !result.Success() {
		return fmt.Errorf("adb push %s exited with %d: %s", local, result.ExitCode, strings.TrimSpace(result.Output))
	}
	return nil
}

// Remove deletes a path on the device. Failures are returned but callers
// usually ignore them; the path may not exist.
func (b *Bridge) Remove(ctx context.Context, path string, recursive bool) error {
	args := []string{"rm"}
	if recursive {
		args = append(args, "-r")
	}
	result, err := b.Shell(ctx, append(args, path)...)
	if err != nil {
		return err
	}
	if !result.Success() {
		return fmt.Errorf("rm %s exited with %d", path, result.ExitCode)
	}
	return nil
}

// Wake sends the menu key, which unlocks most devices without a PIN.
func (b *Bridge) Wake(ctx context.Context) error {
	_, err := b.Shell(ctx, "input", "keyevent", "82")
	return err
}

// StartActivity launches pkg/activity.
func (b *Bridge) StartActivity(ctx context.Context, pkg, activity string) (*system.CommandResult, error) {
	return b.Shell(ctx, "am", "start", "-n", pkg+"/"+activity)
}

// Processes returns the raw "ps" listing.
func (b *Bridge) Processes(ctx context.Context) (string, error) {
	result, err := b.Shell(ctx, "ps")
	if err != nil {
		return "", err
	}
	return result.Output, nil
}

// ClearLog empties the device log buffer.
func (b *Bridge) ClearLog(ctx context.Context) error {
	_, err := b.Run(ctx, "logcat", "-c")
	return err
}

// DumpLog returns the device log buffer, filtered to tags when given.
func (b *Bridge) DumpLog(ctx context.Context, tags ...string) (string, error) {
	args := []string{"logcat", "-d"}
	for _, tag := range tags {
		args = append(args, "-s", tag)
	}
	result, err := b.Run(ctx, args...)
	if err != nil {
		return "", err
	}
	return result.Output, nil
}
