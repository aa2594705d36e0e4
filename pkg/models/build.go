package models

import "strings"

// Arch is an architecture tag in its file-name form, e.g. "-arm64".
type Arch string

// Architecture tags produced by the build.
const (
	ArchARMv7  Arch = "-armv7"
	ArchARM64  Arch = "-arm64"
	ArchX86    Arch = "-x86"
	ArchX86_64 Arch = "-x86_64"
)

// KnownArchs lists every architecture tag the build can produce.
var KnownArchs = []Arch{ArchARMv7, ArchARM64, ArchX86, ArchX86_64}

// GPUArch is a GPU capability tag in its file-name form, e.g. "-es2". It may be empty.
type GPUArch string

// GPU capability tags.
const (
	GPUNone GPUArch = ""
	GPUES2  GPUArch = "-es2"
	GPUES31 GPUArch = "-es31"
)

// ParseArch accepts "arm64" or "-arm64" and returns the tag form.
func ParseArch(s string) Arch {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if !strings.HasPrefix(s, "-") {
		s = "-" + s
	}
	return Arch(strings.ToLower(s))
}

// ParseGPUArch accepts "es2" or "-es2" and returns the tag form.
func ParseGPUArch(s string) GPUArch {
	s = strings.TrimSpace(s)
	if s == "" {
		return GPUNone
	}
	if !strings.HasPrefix(s, "-") {
		s = "-" + s
	}
	return GPUArch(strings.ToLower(s))
}

// IsKnown reports whether a is one of KnownArchs.
func (a Arch) IsKnown() bool {
	for _, k := range KnownArchs {
		if a == k {
			return true
		}
	}
	return false
}

// BuildVariant is one (architecture, GPU) pair the build produced.
type BuildVariant struct {
	Arch Arch    `json:"arch" yaml:"arch"`
	GPU  GPUArch `json:"gpu,omitempty" yaml:"gpu,omitempty"`
}

// Suffix is the tag pair as it appears in artifact file names.
func (v BuildVariant) Suffix() string {
	return string(v.Arch) + string(v.GPU)
}

// String implements fmt.Stringer.
func (v BuildVariant) String() string {
	if s := strings.TrimPrefix(v.Suffix(), "-"); s != "" {
		return s
	}
	return "universal"
}

// Variants enumerates the build variants. With separate packages every
// (arch, gpu) pair becomes its own variant; otherwise the build is one fat
// package and a single variant with empty tags is returned.
func Variants(archs []Arch, gpus []GPUArch, separate bool) []BuildVariant {
	if !separate {
		return []BuildVariant{{}}
	}
	if len(gpus) == 0 {
		gpus = []GPUArch{GPUNone}
	}

	variants := make([]BuildVariant, 0, len(archs)*len(gpus))
	for _, a := range archs {
		for _, g := range gpus {
			variants = append(variants, BuildVariant{Arch: a, GPU: g})
		}
	}
	return variants
}

// ArtifactSet holds the host paths produced for one variant.
type ArtifactSet struct {
	Variant        BuildVariant `json:"variant" yaml:"variant"`
	PrimaryPackage string       `json:"primary_package" yaml:"primary_package"`
	Payload        string       `json:"payload" yaml:"payload"`
	InstallScript  string       `json:"install_script" yaml:"install_script"`
	HasPayload     bool         `json:"has_payload" yaml:"has_payload"`
}

// TransferPlan is the minimal set of pushes covering a staging tree.
type TransferPlan struct {
	// Excluded files are never pushed.
	Excluded []string `json:"excluded"`
	// IndividualDirs are walked child by child instead of pushed whole, deepest first.
	IndividualDirs []string `json:"individual_dirs"`
	// Entries are pushed as-is; directories recursively.
	Entries []string `json:"entries"`
}
