package system

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"
)

// DependencyStatus represents the status of a dependency
type DependencyStatus struct {
	Name        string    `json:"name"`
	Required    bool      `json:"required"`
	Available   bool      `json:"available"`
	Version     string    `json:"version"`
	Path        string    `json:"path"`
	UsedBy      []string  `json:"used_by"`
	LastChecked time.Time `json:"last_checked"`
	Error       string    `json:"error,omitempty"`
}

// DependencyManager manages system dependencies
type DependencyManager interface {
	CheckDependency(ctx context.Context, name string) DependencyStatus
	CheckForCommand(ctx context.Context, command string) []DependencyStatus
	CheckAll(ctx context.Context) map[string]DependencyStatus
	GetInstallInstructions(name string) []string
	Resolve(ctx context.Context, name string) string
}

var _ DependencyManager = (*DefaultDependencyManager)(nil)

// DefaultDependencyManager is the default implementation
type DefaultDependencyManager struct {
	runner      Runner
	androidHome string
	overrides   map[string]string

	cache    map[string]DependencyStatus
	cacheMu  sync.RWMutex
	cacheTTL time.Duration
}

// DependencyOption configures a DefaultDependencyManager.
type DependencyOption func(*DefaultDependencyManager)

// WithAndroidHome searches the given SDK root before the common locations.
func WithAndroidHome(dir string) DependencyOption {
	return func(dm *DefaultDependencyManager) {
		dm.androidHome = dir
	}
}

// WithToolPath pins a dependency to an explicit executable path.
func WithToolPath(name, path string) DependencyOption {
	return func(dm *DefaultDependencyManager) {
		if path != "" {
			dm.overrides[name] = path
		}
	}
}

// WithRunner replaces the runner used for version checks.
func WithRunner(r Runner) DependencyOption {
	return func(dm *DefaultDependencyManager) {
		dm.runner = r
	}
}

// NewDependencyManager creates a new dependency manager
func NewDependencyManager(opts ...DependencyOption) *DefaultDependencyManager {
	dm := &DefaultDependencyManager{
		runner:      NewExecRunner(),
		androidHome: os.Getenv("ANDROID_HOME"),
		overrides:   make(map[string]string),
		cache:       make(map[string]DependencyStatus),
		cacheTTL:    5 * time.Minute,
	}
	for _, opt := range opts {
		opt(dm)
	}
	return dm
}

// DependencyDefinition defines how to check for a dependency
type DependencyDefinition struct {
	Name        string
	Required    bool
	UsedBy      []string
	Description string
	Executable  string
	SDKDir      string
	VersionArgs []string
}

var dependencies = map[string]DependencyDefinition{
	"adb": {
		Name:        "adb",
		Required:    true,
		UsedBy:      []string{"devices", "deploy", "run"},
		Description: "Android Debug Bridge - for device communication",
		Executable:  "adb",
		SDKDir:      "platform-tools",
		VersionArgs: []string{"version"},
	},
	"aapt": {
		Name:        "aapt",
		Required:    false,
		UsedBy:      []string{"package", "deploy", "inspect"},
		Description: "Android Asset Packaging Tool - reads package identity (manifest parsing is the fallback)",
		Executable:  "aapt",
		SDKDir:      "build-tools/*",
		VersionArgs: []string{"version"},
	},
}

// KnownDependencies returns the dependency names in stable order.
func KnownDependencies() []string {
	names := make([]string, 0, len(dependencies))
	for name := range dependencies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CheckDependency checks the status of a specific dependency
func (dm *DefaultDependencyManager) CheckDependency(ctx context.Context, name string) DependencyStatus {
	dm.cacheMu.RLock()
	if cached, exists := dm.cache[name]; exists {
		if time.Since(cached.LastChecked) < dm.cacheTTL {
			dm.cacheMu.RUnlock()
			return cached
		}
	}
	dm.cacheMu.RUnlock()

	def, exists := dependencies[name]
	if !exists {
		return DependencyStatus{
			Name:        name,
			Available:   false,
			Error:       "Unknown dependency",
			LastChecked: time.Now(),
		}
	}

	status := dm.checkDependencyActual(ctx, def)

	dm.cacheMu.Lock()
	dm.cache[name] = status
	dm.cacheMu.Unlock()

	return status
}

// Resolve returns the executable path for name, or the bare name when nothing was found
// so that the caller's PATH lookup still gets a chance.
func (dm *DefaultDependencyManager) Resolve(ctx context.Context, name string) string {
	if p, ok := dm.overrides[name]; ok {
		return p
	}
	if status := dm.CheckDependency(ctx, name); status.Available {
		return status.Path
	}
	return name
}

func (dm *DefaultDependencyManager) checkDependencyActual(ctx context.Context, def DependencyDefinition) DependencyStatus {
	status := DependencyStatus{
		Name:        def.Name,
		Required:    def.Required,
		UsedBy:      def.UsedBy,
		Available:   false,
		LastChecked: time.Now(),
	}

	for _, candidate := range dm.candidates(def) {
		if version := dm.getToolVersion(ctx, candidate, def.VersionArgs); version != "" {
			status.Available = true
			status.Path = candidate
			status.Version = version
			return status
		}
	}

	status.Error = fmt.Sprintf("%s not found in PATH, ANDROID_HOME or common locations", def.Name)
	return status
}

// candidates lists executable paths in lookup order: explicit override, ANDROID_HOME, PATH, common SDK roots.
func (dm *DefaultDependencyManager) candidates(def DependencyDefinition) []string {
	var out []string
	exe := def.Executable
	if runtime.GOOS == "windows" {
		exe += ".exe"
	}

	if p, ok := dm.overrides[def.Name]; ok {
		out = append(out, p)
	}
	if dm.androidHome != "" {
		out = append(out, expandWildcardPath(filepath.Join(dm.androidHome, def.SDKDir, exe))...)
	}
	if p, err := exec.LookPath(def.Executable); err == nil {
		out = append(out, p)
	}
	for _, root := range commonSDKRoots() {
		out = append(out, expandWildcardPath(filepath.Join(root, def.SDKDir, exe))...)
	}
	return out
}

func (dm *DefaultDependencyManager) getToolVersion(ctx context.Context, toolPath string, versionArgs []string) string {
	if _, err := os.Stat(toolPath); err != nil {
		return ""
	}
	if len(versionArgs) == 0 {
		return "unknown"
	}

	result, err := dm.runner.Run(ctx, toolPath, versionArgs...)
	if err != nil || !result.Success() {
		return ""
	}

	lines := strings.Split(result.Output, "\n")
	if version := strings.TrimSpace(lines[0]); version != "" {
		return version
	}
	return "unknown"
}

// expandWildcardPath expands a glob and keeps only existing paths, sorted.
func expandWildcardPath(pattern string) []string {
	if !strings.Contains(pattern, "*") {
		if _, err := os.Stat(pattern); err == nil {
			return []string{pattern}
		}
		return nil
	}

	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil
	}
	sort.Strings(matches)
	return matches
}

// CheckForCommand checks dependencies required for a specific command
func (dm *DefaultDependencyManager) CheckForCommand(ctx context.Context, command string) []DependencyStatus {
	commandDeps := map[string][]string{
		"devices": {"adb"},
		"deploy":  {"adb", "aapt"},
		"run":     {"adb", "aapt"},
		"package": {"aapt"},
		"inspect": {"aapt"},
		"archive": {},
	}

	var statuses []DependencyStatus
	for _, dep := range commandDeps[command] {
		statuses = append(statuses, dm.CheckDependency(ctx, dep))
	}
	return statuses
}

// CheckAll checks all known dependencies
func (dm *DefaultDependencyManager) CheckAll(ctx context.Context) map[string]DependencyStatus {
	result := make(map[string]DependencyStatus)
	for name := range dependencies {
		result[name] = dm.CheckDependency(ctx, name)
	}
	return result
}

// GetInstallInstructions returns installation instructions for a dependency
func (dm *DefaultDependencyManager) GetInstallInstructions(name string) []string {
	switch name {
	case "aapt":
		return getAAPTInstallInstructions()
	case "adb":
		return getADBInstallInstructions()
	default:
		return []string{"Unknown dependency: " + name}
	}
}

func commonSDKRoots() []string {
	var roots []string
	home, _ := os.UserHomeDir()

	switch runtime.GOOS {
	case "linux":
		roots = []string{"/opt/android-sdk", "/usr/lib/android-sdk"}
		if home != "" {
			roots = append(roots, filepath.Join(home, "Android", "Sdk"), filepath.Join(home, ".android-sdk"))
		}
	case "darwin":
		if home != "" {
			roots = append(roots, filepath.Join(home, "Library", "Android", "sdk"))
		}
	case "windows":
		roots = []string{`C:\Android\Sdk`}
		if localAppData := os.Getenv("LOCALAPPDATA"); localAppData != "" {
			roots = append(roots, filepath.Join(localAppData, "Android", "Sdk"))
		}
	}

	return roots
}

func getAAPTInstallInstructions() []string {
	switch runtime.GOOS {
	case "linux":
		return []string{
			"Ubuntu/Debian: sudo apt-get install aapt",
			"Manual: install Android SDK Build Tools with sdkmanager \"build-tools;34.0.0\"",
			"Set ANDROID_HOME to the SDK root",
		}
	case "darwin":
		return []string{
			"Homebrew: brew install --cask android-commandlinetools",
			"Then: sdkmanager \"build-tools;34.0.0\" and set ANDROID_HOME",
		}
	default:
		return []string{
			"Install Android SDK Build Tools from https://developer.android.com/studio#command-tools",
			"Set ANDROID_HOME to the SDK root",
		}
	}
}

func getADBInstallInstructions() []string {
	switch runtime.GOOS {
	case "linux":
		return []string{
			"Ubuntu/Debian: sudo apt-get install adb",
			"Manual: Download Android SDK Platform Tools",
		}
	case "darwin":
		return []string{
			"Homebrew: brew install android-platform-tools",
			"Manual: Download Android SDK Platform Tools",
		}
	default:
		return []string{
			"Download Android SDK Platform Tools",
			"Extract and add to PATH, or set ANDROID_HOME",
		}
	}
}
