package deploy

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/huanfeng/apkdeploy-cli/internal/errors"
	"github.com/huanfeng/apkdeploy-cli/pkg/apk"
	"github.com/huanfeng/apkdeploy-cli/pkg/models"
	"github.com/huanfeng/apkdeploy-cli/pkg/system"
)

// BuildPreparer brings the native build output up to date before it is
// packaged or deployed.
type BuildPreparer interface {
	PrepareForDeploy(ctx context.Context, v models.BuildVariant) error
}

// CommandPreparer runs a configured external command. The placeholders
// {project}, {configuration}, {arch}, {gpu} and {distribution} in the
// arguments are replaced per variant.
type CommandPreparer struct {
	Command []string
	Project models.ProjectConfig
	Build   models.BuildConfig
	Runner  system.Runner
}

// PrepareForDeploy implements BuildPreparer.
func (p *CommandPreparer) PrepareForDeploy(ctx context.Context, v models.BuildVariant) error {
	if len(p.Command) == 0 {
		return nil
	}

	r := strings.NewReplacer(
		"{project}", p.Project.ShortName,
		"{configuration}", p.Project.Configuration,
		"{arch}", strings.TrimPrefix(string(v.Arch), "-"),
		"{gpu}", strings.TrimPrefix(string(v.GPU), "-"),
		"{distribution}", strconv.FormatBool(p.Build.Distribution),
	)
	args := make([]string, len(p.Command)-1)
	for i, a := range p.Command[1:] {
		args[i] = r.Replace(a)
	}

	result, err := p.Runner.Run(ctx, p.Command[0], args...)
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeDependency, "PREPARE_FAILED",
			"failed to run the prepare command").WithContext("command", p.Command[0])
	}
	if !result.Success() {
		return errors.NewError(errors.ErrorTypeDependency, "PREPARE_FAILED", "prepare command failed").
			WithContext("command", system.CommandLine(p.Command[0], args...)).
			WithContext("exit_code", strconv.Itoa(result.ExitCode)).
			WithContext("output", strings.TrimSpace(result.Output))
	}
	return nil
}

// Packager produces the package, payload and install script per variant.
type Packager struct {
	cfg       *models.Config
	namer     *Namer
	inspector apk.Inspector
	opts      options
}

// NewPackager creates a packager for cfg.
func NewPackager(cfg *models.Config, inspector apk.Inspector, opts ...Option) *Packager {
	return &Packager{
		cfg:       cfg,
		namer:     NewNamer(cfg.Project, cfg.Build.Prebuilt),
		inspector: inspector,
		opts:      newOptions(opts),
	}
}

// Package processes each variant in order and stops at the first failure.
// The sets produced before the failure are returned with the error.
func (p *Packager) Package(ctx context.Context, variants []models.BuildVariant) ([]models.ArtifactSet, error) {
	if err := checkProjectPaths(p.cfg.Project); err != nil {
		return nil, err
	}
	sets := make([]models.ArtifactSet, 0, len(variants))
	for _, v := range variants {
		set, err := p.packageVariant(ctx, v)
		if err != nil {
			return sets, err
		}
		sets = append(sets, *set)
	}
	return sets, nil
}

func (p *Packager) packageVariant(ctx context.Context, v models.BuildVariant) (*models.ArtifactSet, error) {
	primary := p.namer.PrimaryPackagePath(exeName(p.cfg.Project), v, true)
	script := p.namer.InstallScriptPath(primary, p.cfg.Project.Configuration, v)

	if !p.cfg.Build.Prebuilt && p.opts.preparer != nil {
		p.opts.logger.Debug("Preparing %s for packaging", v)
		if err := p.opts.preparer.PrepareForDeploy(ctx, v); err != nil {
			return nil, err
		}
	}

	stageDir := p.cfg.Project.StageDir
	candidates, err := FindPayloads(stageDir, p.cfg.Build.PayloadExtension)
	if err != nil {
		return nil, err
	}
	if len(candidates) > 1 {
		return nil, errors.NewMultiplePayloadCandidates(len(candidates), stageDir)
	}
	hasPayload := len(candidates) == 1

	if !fileExists(primary) {
		return nil, errors.NewPackageNotFound(primary)
	}
	id, err := p.inspector.Identity(ctx, primary)
	if err != nil {
		return nil, err
	}
	payload, err := SecondaryPayloadPath(primary, id)
	if err != nil {
		return nil, err
	}

	if err := os.Remove(payload); err != nil && !os.IsNotExist(err) {
		return nil, errors.WrapError(err, errors.ErrorTypeFileSystem, "STALE_PAYLOAD",
			"failed to remove the previous payload").WithContext("path", payload)
	}

	embedded := p.cfg.Build.PayloadInPackage
	if !embedded && hasPayload {
		p.opts.logger.Info("Creating %s from %s", payload, candidates[0])
		if _, _, err := copyFile(candidates[0], payload); err != nil {
			return nil, errors.WrapError(err, errors.ErrorTypeFileSystem, "PAYLOAD_COPY_FAILED",
				"failed to create the payload").WithContext("source", candidates[0])
		}
	}

	if embedded {
		p.opts.logger.Info("Writing bat for install with OBB in APK")
	} else {
		p.opts.logger.Info("Writing bat for install with OBB separate")
	}
	err = WriteInstallScript(script, InstallScript{
		PackageName:     id.PackageName,
		PackageFile:     filepath.Base(primary),
		PayloadFile:     filepath.Base(payload),
		DevicePayload:   OnDevicePayloadPath(id, payload),
		ShortName:       p.cfg.Project.ShortName,
		GenericName:     p.cfg.Project.GenericName,
		CommandLineFile: p.cfg.Project.CommandLineFile,
		PushPayload:     hasPayload && !embedded,
	})
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeFileSystem, "SCRIPT_WRITE_FAILED",
			"failed to write the install script").WithContext("path", script)
	}

	return &models.ArtifactSet{
		Variant:        v,
		PrimaryPackage: primary,
		Payload:        payload,
		InstallScript:  script,
		HasPayload:     hasPayload && !embedded,
	}, nil
}

// FindPayloads lists the files under stageDir with extension ext, compared
// case-insensitively, in lexical order.
func FindPayloads(stageDir, ext string) ([]string, error) {
	if ext == "" {
		ext = ".pak"
	}
	var found []string
	err := filepath.WalkDir(stageDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ext) {
			found = append(found, path)
		}
		return nil
	})
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeFileSystem, "STAGE_DIR_UNREADABLE",
			"failed to search the staging directory").WithContext("stage_dir", stageDir)
	}
	sort.Strings(found)
	return found, nil
}

func exeName(project models.ProjectConfig) string {
	if project.ExeName != "" {
		return project.ExeName
	}
	return project.ShortName
}
