package deploy

import (
	"fmt"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/huanfeng/apkdeploy-cli/internal/errors"
	"github.com/huanfeng/apkdeploy-cli/pkg/models"
)

const (
	packageExt = ".apk"
	payloadExt = ".obb"
	scriptExt  = ".bat"
)

// Namer computes artifact paths. It does no I/O.
type Namer struct {
	ProjectDir   string
	EngineDir    string
	BaseStageDir string
	ShortName    string
	// GenericName is the placeholder executable name used by content-only
	// projects, e.g. "UE4Game".
	GenericName string
	Prebuilt    bool
}

// NewNamer creates a Namer from the project settings.
func NewNamer(project models.ProjectConfig, prebuilt bool) *Namer {
	return &Namer{
		ProjectDir:   project.ProjectDir,
		EngineDir:    project.EngineDir,
		BaseStageDir: project.BaseStageDir,
		ShortName:    project.ShortName,
		GenericName:  project.GenericName,
		Prebuilt:     prebuilt,
	}
}

// OutputDir is where packages are written.
func (n *Namer) OutputDir() string {
	if n.Prebuilt {
		return filepath.Join(n.BaseStageDir, "Android")
	}
	return filepath.Join(n.ProjectDir, "Binaries", "Android")
}

// PrimaryPackagePath returns <OutputDir>/<exeName><arch><gpu>.apk. When
// exeName is the generic placeholder, rename substitutes the short name into
// the file name; without rename the engine's own package is used instead.
func (n *Namer) PrimaryPackagePath(exeName string, v models.BuildVariant, rename bool) string {
	dir := n.OutputDir()
	file := exeName + v.Suffix() + packageExt

	if n.GenericName != "" && exeName == n.GenericName {
		if rename {
			file = strings.ReplaceAll(file, n.GenericName, n.ShortName)
		} else {
			dir = filepath.Join(n.EngineDir, "Binaries", "Android")
		}
	}
	return filepath.Join(dir, file)
}

// InstallScriptPath returns Install_<short>_<config><arch><gpu>.bat beside
// the primary package.
func (n *Namer) InstallScriptPath(primary, configName string, v models.BuildVariant) string {
	name := "Install_" + n.ShortName + "_" + configName + v.Suffix() + scriptExt
	return filepath.Join(filepath.Dir(primary), name)
}

// SecondaryPayloadPath returns main.<version>.<package>.obb beside primary.
func SecondaryPayloadPath(primary string, id models.PackageIdentity) (string, error) {
	name, err := PayloadFileName(id)
	if err != nil {
		return "", err
	}
	return filepath.Join(filepath.Dir(primary), name), nil
}

// PayloadFileName returns main.<version>.<package>.obb.
func PayloadFileName(id models.PackageIdentity) (string, error) {
	if id.PackageName == "" {
		return "", errors.NewError(errors.ErrorTypeParsing, errors.CodePackageInfoUnavailable,
			"package name is empty")
	}
	version, err := FormatVersionCode(id.VersionCode)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("main.%s.%s%s", version, id.PackageName, payloadExt), nil
}

// OnDevicePayloadPath is the payload location relative to the storage root.
func OnDevicePayloadPath(id models.PackageIdentity, payload string) string {
	return path.Join("obb", id.PackageName, filepath.Base(payload))
}

// FormatVersionCode zero-pads a numeric version code to five digits.
func FormatVersionCode(code string) (string, error) {
	n, err := strconv.Atoi(strings.TrimSpace(code))
	if err != nil || n < 0 {
		return "", errors.NewError(errors.ErrorTypeParsing, errors.CodePackageInfoUnavailable,
			fmt.Sprintf("invalid package version code %q", code))
	}
	return fmt.Sprintf("%05d", n), nil
}
