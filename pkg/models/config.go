package models

import "time"

// Config represents the application configuration
type Config struct {
	Project ProjectConfig `mapstructure:"project" json:"project" yaml:"project"`
	Build   BuildConfig   `mapstructure:"build" json:"build" yaml:"build"`
	Device  DeviceConfig  `mapstructure:"device" json:"device" yaml:"device"`
	Tools   ToolsConfig   `mapstructure:"tools" json:"tools" yaml:"tools"`
	Logging LoggingConfig `mapstructure:"logging" json:"logging" yaml:"logging"`
}

// ProjectConfig identifies the project and its directories.
type ProjectConfig struct {
	ShortName            string   `mapstructure:"short_name" json:"short_name" yaml:"short_name"`
	ProjectDir           string   `mapstructure:"project_dir" json:"project_dir" yaml:"project_dir"`
	ExeName              string   `mapstructure:"exe_name" json:"exe_name" yaml:"exe_name"`
	GenericName          string   `mapstructure:"generic_name" json:"generic_name" yaml:"generic_name"`
	EngineDir            string   `mapstructure:"engine_dir" json:"engine_dir" yaml:"engine_dir"`
	StageDir             string   `mapstructure:"stage_dir" json:"stage_dir" yaml:"stage_dir"`
	BaseStageDir         string   `mapstructure:"base_stage_dir" json:"base_stage_dir" yaml:"base_stage_dir"`
	ArchiveDir           string   `mapstructure:"archive_dir" json:"archive_dir" yaml:"archive_dir"`
	LogDir               string   `mapstructure:"log_dir" json:"log_dir" yaml:"log_dir"`
	Configuration        string   `mapstructure:"configuration" json:"configuration" yaml:"configuration"`
	TargetConfigurations []string `mapstructure:"target_configurations" json:"target_configurations" yaml:"target_configurations"`
	CommandLine          string   `mapstructure:"command_line" json:"command_line" yaml:"command_line"`
	CommandLineFile      string   `mapstructure:"command_line_file" json:"command_line_file" yaml:"command_line_file"`
}

// BuildConfig describes what the build step produced.
type BuildConfig struct {
	Architectures    []string `mapstructure:"architectures" json:"architectures" yaml:"architectures"`
	GPUArchitectures []string `mapstructure:"gpu_architectures" json:"gpu_architectures" yaml:"gpu_architectures"`
	SeparatePackages bool     `mapstructure:"separate_packages" json:"separate_packages" yaml:"separate_packages"`
	PayloadInPackage bool     `mapstructure:"payload_in_package" json:"payload_in_package" yaml:"payload_in_package"`
	Prebuilt         bool     `mapstructure:"prebuilt" json:"prebuilt" yaml:"prebuilt"`
	Distribution     bool     `mapstructure:"distribution" json:"distribution" yaml:"distribution"`
	PayloadExtension string   `mapstructure:"payload_extension" json:"payload_extension" yaml:"payload_extension"`
	PrepareCommand   []string `mapstructure:"prepare_command" json:"prepare_command" yaml:"prepare_command"`
}

// DeviceConfig controls deploy and run behaviour.
type DeviceConfig struct {
	Serial            string        `mapstructure:"serial" json:"serial" yaml:"serial"`
	RunTimeout        time.Duration `mapstructure:"run_timeout" json:"run_timeout" yaml:"run_timeout"` // 0 = wait forever
	StageMode         string        `mapstructure:"stage_mode" json:"stage_mode" yaml:"stage_mode"`    // "stage", "archive", "commandline"
	MaxParallelPushes int           `mapstructure:"max_parallel_pushes" json:"max_parallel_pushes" yaml:"max_parallel_pushes"`
	PollInterval      time.Duration `mapstructure:"poll_interval" json:"poll_interval" yaml:"poll_interval"`
	Activity          string        `mapstructure:"activity" json:"activity" yaml:"activity"`
}

// ToolsConfig locates the Android SDK tools.
type ToolsConfig struct {
	AndroidHome string `mapstructure:"android_home" json:"android_home" yaml:"android_home"`
	ADBPath     string `mapstructure:"adb_path" json:"adb_path" yaml:"adb_path"`
	AAPTPath    string `mapstructure:"aapt_path" json:"aapt_path" yaml:"aapt_path"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level" json:"level" yaml:"level"`
	Format string `mapstructure:"format" json:"format" yaml:"format"`
	File   string `mapstructure:"file" json:"file" yaml:"file"`
	Color  bool   `mapstructure:"color" json:"color" yaml:"color"`
}

// Archs returns the configured architectures in tag form.
func (b BuildConfig) Archs() []Arch {
	out := make([]Arch, 0, len(b.Architectures))
	for _, a := range b.Architectures {
		out = append(out, ParseArch(a))
	}
	return out
}

// GPUs returns the configured GPU tags.
func (b BuildConfig) GPUs() []GPUArch {
	out := make([]GPUArch, 0, len(b.GPUArchitectures))
	for _, g := range b.GPUArchitectures {
		out = append(out, ParseGPUArch(g))
	}
	return out
}

// Variants enumerates the configured build variants.
func (b BuildConfig) Variants() []BuildVariant {
	return Variants(b.Archs(), b.GPUs(), b.SeparatePackages)
}

// Stage modes for deploy.
const (
	StageModeStage       = "stage"
	StageModeArchive     = "archive"
	StageModeCommandLine = "commandline"
)
