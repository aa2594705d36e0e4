package deploy

import (
	"context"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/huanfeng/apkdeploy-cli/internal/errors"
	"github.com/huanfeng/apkdeploy-cli/pkg/apk"
	"github.com/huanfeng/apkdeploy-cli/pkg/models"
)

// ManifestFileName is written into every archive directory.
const ManifestFileName = "archive.yaml"

const iconFileName = "icon.png"

// Archived file kinds.
const (
	KindPackage = "package"
	KindPayload = "payload"
	KindScript  = "script"
)

// Archiver copies packaged artifacts into the archive directory.
type Archiver struct {
	cfg       *models.Config
	namer     *Namer
	inspector apk.Inspector
	opts      options
}

// NewArchiver creates an archiver for cfg.
func NewArchiver(cfg *models.Config, inspector apk.Inspector, opts ...Option) *Archiver {
	return &Archiver{
		cfg:       cfg,
		namer:     NewNamer(cfg.Project, cfg.Build.Prebuilt),
		inspector: inspector,
		opts:      newOptions(opts),
	}
}

// Dir returns the archive directory.
func (a *Archiver) Dir() string {
	if a.cfg.Project.ArchiveDir != "" {
		return a.cfg.Project.ArchiveDir
	}
	return filepath.Join(a.cfg.Project.ProjectDir, "Archive", "Android")
}

// Archive verifies and copies every variant's package, the payload (once)
// and the install scripts. Exactly one target configuration is supported.
func (a *Archiver) Archive(ctx context.Context, targetConfigs []string, variants []models.BuildVariant) (*models.ArchiveManifest, error) {
	if len(targetConfigs) != 1 {
		return nil, errors.NewTargetConfigurationAmbiguous(len(targetConfigs))
	}

	dir := a.Dir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeFileSystem, "ARCHIVE_DIR",
			"failed to create the archive directory").WithContext("path", dir)
	}

	manifest := &models.ArchiveManifest{
		Project:       a.cfg.Project.ShortName,
		Configuration: targetConfigs[0],
		CreatedAt:     a.opts.now().UTC(),
	}
	embedded := a.cfg.Build.PayloadInPackage
	addedPayload := false
	var firstPackage string

	for _, v := range variants {
		primary := a.namer.PrimaryPackagePath(exeName(a.cfg.Project), v, true)
		script := a.namer.InstallScriptPath(primary, manifest.Configuration, v)

		if !fileExists(primary) {
			return nil, errors.NewPackageNotFound(primary)
		}

		var payload string
		if !embedded {
			id, err := a.inspector.Identity(ctx, primary)
			if err != nil {
				return nil, err
			}
			manifest.Package = id.PackageName
			if payload, err = SecondaryPayloadPath(primary, id); err != nil {
				return nil, err
			}
			if !fileExists(payload) {
				return nil, errors.NewPayloadNotFound(payload)
			}
		}

		if err := a.add(manifest, dir, primary, KindPackage, v); err != nil {
			return nil, err
		}
		if firstPackage == "" {
			firstPackage = primary
		}
		if !embedded && !addedPayload {
			addedPayload = true
			if err := a.add(manifest, dir, payload, KindPayload, models.BuildVariant{}); err != nil {
				return nil, err
			}
		}
		if err := a.add(manifest, dir, script, KindScript, v); err != nil {
			return nil, err
		}
	}

	if a.opts.icons != nil && firstPackage != "" {
		a.addIcon(manifest, dir, firstPackage)
	}

	data, err := yaml.Marshal(manifest)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(dir, ManifestFileName), data, 0644); err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeFileSystem, "ARCHIVE_MANIFEST",
			"failed to write the archive manifest").WithContext("path", dir)
	}
	return manifest, nil
}

func (a *Archiver) add(manifest *models.ArchiveManifest, dir, src, kind string, v models.BuildVariant) error {
	name := filepath.Base(src)
	size, sum, err := copyFile(src, filepath.Join(dir, name))
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeFileSystem, "ARCHIVE_COPY_FAILED",
			"failed to archive "+name).WithContext("path", src)
	}
	a.opts.logger.Debug("Archived %s (%d bytes)", name, size)

	f := models.ArchivedFile{Name: name, Kind: kind, Size: size, SHA256: sum}
	if kind != KindPayload {
		f.Variant = v.String()
	}
	manifest.Files = append(manifest.Files, f)
	return nil
}

// addIcon stores a launcher icon preview. Failures only produce a warning.
func (a *Archiver) addIcon(manifest *models.ArchiveManifest, dir, primary string) {
	data, err := a.opts.icons.Extract(primary)
	if err != nil {
		a.opts.logger.Warn("No icon preview for %s: %v", filepath.Base(primary), err)
		return
	}
	if err := os.WriteFile(filepath.Join(dir, iconFileName), data, 0644); err != nil {
		a.opts.logger.Warn("Failed to write icon preview: %v", err)
		return
	}
	manifest.Icon = iconFileName
}
