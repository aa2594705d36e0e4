package apk

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strconv"
	"strings"

	"github.com/huanfeng/apkdeploy-cli/internal/errors"
	"github.com/huanfeng/apkdeploy-cli/pkg/models"
	"github.com/huanfeng/apkdeploy-cli/pkg/system"
)

const packageMarker = "package:"

// Token positions in the package line once it is split on single quotes:
//
//	package: name='com.example' versionCode='7' versionName='1.0'
const (
	tokenName    = 1
	tokenVersion = 3
)

// FindAAPT returns the aapt binary of the first build-tools release under
// androidHome. ANDROID_HOME is used when androidHome is empty.
func FindAAPT(androidHome string) (string, error) {
	if androidHome == "" {
		androidHome = os.Getenv("ANDROID_HOME")
	}
	dir := filepath.Join(androidHome, "build-tools")

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", errors.NewBuildToolsNotFound(dir)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			return filepath.Join(dir, entry.Name(), aaptBinary()), nil
		}
	}
	return "", errors.NewBuildToolsNotFound(dir)
}

func aaptBinary() string {
	if runtime.GOOS == "windows" {
		return "aapt.exe"
	}
	return "aapt"
}

// AAPTInspector runs "aapt dump badging". Every call captures its own output,
// so concurrent calls need no locking.
type AAPTInspector struct {
	aaptPath string
	runner   system.Runner
}

// NewAAPTInspector creates an inspector for the aapt binary at aaptPath.
func NewAAPTInspector(aaptPath string, runner system.Runner) *AAPTInspector {
	return &AAPTInspector{aaptPath: aaptPath, runner: runner}
}

// Name implements Backend.
func (a *AAPTInspector) Name() string { return "AAPT" }

// Priority implements Backend.
func (a *AAPTInspector) Priority() int { return 1 }

// Available implements Backend.
func (a *AAPTInspector) Available() bool {
	if a.aaptPath == "" || a.runner == nil {
		return false
	}
	if filepath.IsAbs(a.aaptPath) {
		_, err := os.Stat(a.aaptPath)
		return err == nil
	}
	return true
}

func (a *AAPTInspector) badging(ctx context.Context, apkPath string) (string, error) {
	result, err := a.runner.Run(ctx, a.aaptPath, "dump", "badging", apkPath)
	if err != nil {
		return "", errors.WrapError(err, errors.ErrorTypeParsing, errors.CodePackageInfoUnavailable,
			"failed to run aapt").WithContext("path", apkPath)
	}
	return result.Output, nil
}

// Inspect implements Inspector.
func (a *AAPTInspector) Inspect(ctx context.Context, apkPath string, wantVersion bool) (string, error) {
	output, err := a.badging(ctx, apkPath)
	if err != nil {
		return "", err
	}

	idx, what := tokenName, "name"
	if wantVersion {
		idx, what = tokenVersion, "version"
	}
	token, ok := PackageToken(output, idx)
	if !ok {
		return "", errors.NewPackageInfoUnavailable(apkPath, what)
	}
	return token, nil
}

// Identity implements Inspector with a single aapt run.
func (a *AAPTInspector) Identity(ctx context.Context, apkPath string) (models.PackageIdentity, error) {
	output, err := a.badging(ctx, apkPath)
	if err != nil {
		return models.PackageIdentity{}, err
	}
	return identityFromBadging(apkPath, output)
}

func identityFromBadging(apkPath, output string) (models.PackageIdentity, error) {
	name, ok := PackageToken(output, tokenName)
	if !ok {
		return models.PackageIdentity{}, errors.NewPackageInfoUnavailable(apkPath, "name")
	}
	version, ok := PackageToken(output, tokenVersion)
	if !ok {
		return models.PackageIdentity{}, errors.NewPackageInfoUnavailable(apkPath, "version")
	}
	return models.PackageIdentity{PackageName: name, VersionCode: version}, nil
}

// PackageToken returns the quoted token at idx in the first "package:" line
// of badging output. ok is false when there is no such line or the token is
// missing or empty.
func PackageToken(output string, idx int) (string, bool) {
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimRight(line, "\r")
		if !strings.HasPrefix(line, packageMarker) {
			continue
		}
		tokens := strings.Split(line, "'")
		if idx >= len(tokens) || tokens[idx] == "" {
			return "", false
		}
		return tokens[idx], true
	}
	return "", false
}

var (
	launchableRe  = regexp.MustCompile(`^launchable-activity: name='([^']+)'`)
	versionNameRe = regexp.MustCompile(`versionName='([^']*)'`)
	quotedIntRe   = regexp.MustCompile(`'(\d+)'`)
	quotedRe      = regexp.MustCompile(`'([^']+)'`)
)

// Describe implements Backend.
func (a *AAPTInspector) Describe(ctx context.Context, apkPath string) (*models.PackageInfo, error) {
	output, err := a.badging(ctx, apkPath)
	if err != nil {
		return nil, err
	}
	return ParseBadging(apkPath, output)
}

// ParseBadging parses the parts of "aapt dump badging" output shown by the
// inspect command.
func ParseBadging(apkPath, output string) (*models.PackageInfo, error) {
	id, err := identityFromBadging(apkPath, output)
	if err != nil {
		return nil, err
	}
	info := &models.PackageInfo{PackageIdentity: id, Parser: "AAPT"}

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, packageMarker):
			if m := versionNameRe.FindStringSubmatch(line); len(m) > 1 {
				info.VersionName = m[1]
			}
		case strings.HasPrefix(line, "sdkVersion:"):
			if m := quotedIntRe.FindStringSubmatch(line); len(m) > 1 {
				info.MinSDK, _ = strconv.Atoi(m[1])
			}
		case strings.HasPrefix(line, "targetSdkVersion:"):
			if m := quotedIntRe.FindStringSubmatch(line); len(m) > 1 {
				info.TargetSDK, _ = strconv.Atoi(m[1])
			}
		case strings.HasPrefix(line, "application-label:"):
			if m := quotedRe.FindStringSubmatch(line); len(m) > 1 {
				info.Label = m[1]
			}
		case strings.HasPrefix(line, "launchable-activity:"):
			if m := launchableRe.FindStringSubmatch(line); len(m) > 1 {
				info.LaunchActivity = m[1]
			}
		case strings.HasPrefix(line, "native-code:"):
			for _, m := range quotedRe.FindAllStringSubmatch(line, -1) {
				info.ABIs = append(info.ABIs, m[1])
			}
		}
	}

	if fi, err := os.Stat(apkPath); err == nil {
		info.Size = fi.Size()
	}
	return info, nil
}
