package models

import "time"

// PackageIdentity is the identifier and version code read from a package file.
// It is never cached; callers inspect the file again after a rebuild.
type PackageIdentity struct {
	PackageName string `json:"package_name" yaml:"package_name"`
	VersionCode string `json:"version_code" yaml:"version_code"`
}

// PackageInfo is the fuller description shown by the inspect command.
type PackageInfo struct {
	PackageIdentity `yaml:",inline"`
	VersionName     string   `json:"version_name,omitempty" yaml:"version_name,omitempty"`
	Label           string   `json:"label,omitempty" yaml:"label,omitempty"`
	MinSDK          int      `json:"min_sdk,omitempty" yaml:"min_sdk,omitempty"`
	TargetSDK       int      `json:"target_sdk,omitempty" yaml:"target_sdk,omitempty"`
	LaunchActivity  string   `json:"launch_activity,omitempty" yaml:"launch_activity,omitempty"`
	ABIs            []string `json:"abis,omitempty" yaml:"abis,omitempty"`
	Size            int64    `json:"size" yaml:"size"`
	Parser          string   `json:"parser" yaml:"parser"`
}

// ArchiveManifest describes the contents of an archive directory.
type ArchiveManifest struct {
	Project       string         `yaml:"project"`
	Configuration string         `yaml:"configuration"`
	CreatedAt     time.Time      `yaml:"created_at"`
	Package       string         `yaml:"package,omitempty"`
	Files         []ArchivedFile `yaml:"files"`
	Icon          string         `yaml:"icon,omitempty"`
}

// ArchivedFile is one file copied into an archive.
type ArchivedFile struct {
	Name    string `yaml:"name"`
	Kind    string `yaml:"kind"`
	Variant string `yaml:"variant,omitempty"`
	Size    int64  `yaml:"size"`
	SHA256  string `yaml:"sha256"`
}
