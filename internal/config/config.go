package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/huanfeng/apkdeploy-cli/internal/errors"
	"github.com/huanfeng/apkdeploy-cli/pkg/models"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// DefaultFileName is the config file name looked up without --config.
const DefaultFileName = "apkdeploy.yaml"

var defaultConfig = models.Config{
	Project: models.ProjectConfig{
		GenericName:          "UE4Game",
		Configuration:        "Development",
		TargetConfigurations: []string{"Development"},
		StageDir:             filepath.Join("Saved", "StagedBuilds", "Android"),
		BaseStageDir:         filepath.Join("Saved", "StagedBuilds"),
		CommandLineFile:      "UE4CommandLine.txt",
		LogDir:               "logs",
	},
	Build: models.BuildConfig{
		Architectures:    []string{"armv7"},
		GPUArchitectures: []string{},
		SeparatePackages: false,
		PayloadInPackage: false,
		PayloadExtension: ".pak",
	},
	Device: models.DeviceConfig{
		RunTimeout:        0,
		StageMode:         models.StageModeStage,
		MaxParallelPushes: 6,
		PollInterval:      500 * time.Millisecond,
		Activity:          "com.epicgames.ue4.GameActivity",
	},
	Logging: models.LoggingConfig{
		Level:  "info",
		Format: "text",
		Color:  true,
	},
}

// Defaults returns a copy of the built-in configuration.
func Defaults() models.Config {
	cfg := defaultConfig
	cfg.Project.TargetConfigurations = append([]string(nil), defaultConfig.Project.TargetConfigurations...)
	cfg.Build.Architectures = append([]string(nil), defaultConfig.Build.Architectures...)
	cfg.Build.GPUArchitectures = []string{}
	return cfg
}

// Load loads configuration from file and environment
func Load(configPath string) (*models.Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName(strings.TrimSuffix(DefaultFileName, filepath.Ext(DefaultFileName)))
		v.AddConfigPath(".")

		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "apkdeploy"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errors.WrapError(err, errors.ErrorTypeConfiguration, errors.CodeInvalidConfig, "failed to read config file")
		}
		// Config file not found is not an error, we'll use defaults
	}

	v.SetEnvPrefix("APKDEPLOY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var config models.Config
	hooks := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		secondsDurationHook(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&config, hooks); err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeConfiguration, errors.CodeInvalidConfig, "failed to unmarshal config")
	}

	return &config, nil
}

// secondsDurationHook reads a bare number given for a duration as seconds,
// so "run_timeout: 300" and APKDEPLOY_DEVICE_RUN_TIMEOUT=300 mean five minutes.
// Values with a unit ("90s", "500ms") are left to the duration parser.
func secondsDurationHook() mapstructure.DecodeHookFuncType {
	durationType := reflect.TypeOf(time.Duration(0))
	return func(from, to reflect.Type, data interface{}) (interface{}, error) {
		if to != durationType || from == durationType {
			return data, nil
		}
		val := reflect.ValueOf(data)
		switch from.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return time.Duration(val.Int()) * time.Second, nil
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			return time.Duration(val.Uint()) * time.Second, nil
		case reflect.Float32, reflect.Float64:
			return time.Duration(val.Float() * float64(time.Second)), nil
		case reflect.String:
			if secs, err := strconv.ParseFloat(strings.TrimSpace(val.String()), 64); err == nil {
				return time.Duration(secs * float64(time.Second)), nil
			}
		}
		return data, nil
	}
}

// UsedFile returns the config file Load would read, or "" when none exists.
func UsedFile(configPath string) string {
	if configPath != "" {
		return configPath
	}
	candidates := []string{DefaultFileName}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "apkdeploy", DefaultFileName))
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}

func setDefaults(v *viper.Viper) {
	d := defaultConfig
	v.SetDefault("project.short_name", d.Project.ShortName)
	v.SetDefault("project.project_dir", d.Project.ProjectDir)
	v.SetDefault("project.exe_name", d.Project.ExeName)
	v.SetDefault("project.generic_name", d.Project.GenericName)
	v.SetDefault("project.engine_dir", d.Project.EngineDir)
	v.SetDefault("project.stage_dir", d.Project.StageDir)
	v.SetDefault("project.base_stage_dir", d.Project.BaseStageDir)
	v.SetDefault("project.archive_dir", d.Project.ArchiveDir)
	v.SetDefault("project.log_dir", d.Project.LogDir)
	v.SetDefault("project.configuration", d.Project.Configuration)
	v.SetDefault("project.target_configurations", d.Project.TargetConfigurations)
	v.SetDefault("project.command_line", d.Project.CommandLine)
	v.SetDefault("project.command_line_file", d.Project.CommandLineFile)

	v.SetDefault("build.architectures", d.Build.Architectures)
	v.SetDefault("build.gpu_architectures", d.Build.GPUArchitectures)
	v.SetDefault("build.separate_packages", d.Build.SeparatePackages)
	v.SetDefault("build.payload_in_package", d.Build.PayloadInPackage)
	v.SetDefault("build.prebuilt", d.Build.Prebuilt)
	v.SetDefault("build.distribution", d.Build.Distribution)
	v.SetDefault("build.payload_extension", d.Build.PayloadExtension)
	v.SetDefault("build.prepare_command", []string{})

	v.SetDefault("device.serial", d.Device.Serial)
	v.SetDefault("device.run_timeout", d.Device.RunTimeout)
	v.SetDefault("device.stage_mode", d.Device.StageMode)
	v.SetDefault("device.max_parallel_pushes", d.Device.MaxParallelPushes)
	v.SetDefault("device.poll_interval", d.Device.PollInterval)
	v.SetDefault("device.activity", d.Device.Activity)

	v.SetDefault("tools.android_home", "")
	v.SetDefault("tools.adb_path", "")
	v.SetDefault("tools.aapt_path", "")

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.file", d.Logging.File)
	v.SetDefault("logging.color", d.Logging.Color)
}

// Validate rejects settings the deploy pipeline cannot act on.
func Validate(cfg *models.Config) error {
	var problems []string

	// short_name names the on-device directory that deploy removes and refills.
	switch name := strings.TrimSpace(cfg.Project.ShortName); {
	case name == "":
		problems = append(problems, "project.short_name is required")
	case name == "." || name == ".." || strings.ContainsAny(name, `/\`):
		problems = append(problems, fmt.Sprintf("project.short_name %q must be a plain directory name", cfg.Project.ShortName))
	}
	if strings.TrimSpace(cfg.Project.StageDir) == "" {
		problems = append(problems, "project.stage_dir is required")
	}

	for _, a := range cfg.Build.Architectures {
		if !models.ParseArch(a).IsKnown() {
			problems = append(problems, fmt.Sprintf("build.architectures: unknown architecture %q", a))
		}
	}
	if len(cfg.Build.Architectures) == 0 {
		problems = append(problems, "build.architectures: at least one architecture is required")
	}
	for _, g := range cfg.Build.GPUArchitectures {
		switch models.ParseGPUArch(g) {
		case models.GPUNone, models.GPUES2, models.GPUES31:
		default:
			problems = append(problems, fmt.Sprintf("build.gpu_architectures: unknown GPU tag %q", g))
		}
	}
	if cfg.Device.MaxParallelPushes <= 0 {
		problems = append(problems, "device.max_parallel_pushes must be positive")
	}
	if cfg.Device.RunTimeout < 0 {
		problems = append(problems, "device.run_timeout must not be negative (0 waits forever)")
	}
	if cfg.Device.PollInterval <= 0 {
		problems = append(problems, "device.poll_interval must be positive")
	}
	switch cfg.Device.StageMode {
	case models.StageModeStage, models.StageModeArchive, models.StageModeCommandLine:
	default:
		problems = append(problems, fmt.Sprintf("device.stage_mode: unknown mode %q", cfg.Device.StageMode))
	}
	if cfg.Build.PayloadExtension != "" && !strings.HasPrefix(cfg.Build.PayloadExtension, ".") {
		problems = append(problems, "build.payload_extension must start with '.'")
	}

	if len(problems) > 0 {
		e := errors.NewConfigurationError("invalid configuration: " + strings.Join(problems, "; "))
		for i, p := range problems {
			e.WithContext(fmt.Sprintf("problem_%d", i+1), p)
		}
		return e
	}
	return nil
}

// Marshal renders cfg as YAML.
func Marshal(cfg *models.Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}

// SaveTemplate saves a configuration template
func SaveTemplate(path string) error {
	templateContent := `# apkdeploy configuration file

project:
  # Short project name; also the on-device content directory
  short_name: "MyGame"

  # Project root; packages are read from <project_dir>/Binaries/Android
  project_dir: "."

  # Executable name the build produced (without architecture suffix)
  exe_name: "MyGame"

  # Placeholder executable name used by content-only projects
  generic_name: "UE4Game"

  # Engine root, used when exe_name equals generic_name
  engine_dir: ""

  # Staged content to push to the device
  stage_dir: "Saved/StagedBuilds/Android"

  # Staging root; prebuilt packages live in <base_stage_dir>/Android
  base_stage_dir: "Saved/StagedBuilds"

  # Where 'apkdeploy archive' copies the artifacts
  archive_dir: "Archive"

  # Device logs and error reports
  log_dir: "logs"

  configuration: "Development"
  target_configurations:
    - "Development"

  # Command line written to the device before launch
  command_line: ""
  command_line_file: "UE4CommandLine.txt"

build:
  # Architectures built: armv7, arm64, x86, x86_64
  architectures:
    - "armv7"

  # GPU tiers built: es2, es31
  gpu_architectures: []

  # One package per (architecture, GPU) pair instead of one fat package
  separate_packages: false

  # The .pak is embedded in the apk; no .obb is produced
  payload_in_package: false

  # Packages were produced elsewhere; read them from the staging root
  prebuilt: false

  distribution: false
  payload_extension: ".pak"

  # Optional command run before packaging or deploying each variant.
  # {project} {configuration} {arch} {gpu} {distribution} are expanded.
  # prepare_command: ["./prepare-android.sh", "{configuration}", "{arch}"]

device:
  # Target device serial (or name@serial); empty uses the only attached device
  serial: ""

  # How long to wait for the app to exit after launch; 0 waits forever.
  # Bare numbers are seconds (300 = 5m).
  run_timeout: 0s

  # What deploy pushes after installing: stage, archive or commandline
  stage_mode: "stage"

  max_parallel_pushes: 6
  poll_interval: 500ms
  activity: "com.epicgames.ue4.GameActivity"

tools:
  # Android SDK root; defaults to $ANDROID_HOME
  android_home: ""
  adb_path: ""
  aapt_path: ""

logging:
  level: "info"
  format: "text"
  file: ""
  color: true
`

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, []byte(templateContent), 0644)
}
