package apk

import (
	"archive/zip"
	"context"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/shogo82148/androidbinary/apk"

	"github.com/huanfeng/apkdeploy-cli/internal/errors"
	"github.com/huanfeng/apkdeploy-cli/pkg/models"
)

// BinaryInspector reads the compiled AndroidManifest.xml directly, for hosts
// without the SDK build-tools.
type BinaryInspector struct{}

// NewBinaryInspector creates a manifest-reading inspector.
func NewBinaryInspector() *BinaryInspector {
	return &BinaryInspector{}
}

// Name implements Backend.
func (p *BinaryInspector) Name() string { return "AndroidBinary" }

// Priority implements Backend.
func (p *BinaryInspector) Priority() int { return 2 }

// Available implements Backend. The parser is built in.
func (p *BinaryInspector) Available() bool { return true }

// Inspect implements Inspector.
func (p *BinaryInspector) Inspect(ctx context.Context, apkPath string, wantVersion bool) (string, error) {
	id, err := p.Identity(ctx, apkPath)
	if err != nil {
		return "", err
	}
	if wantVersion {
		return id.VersionCode, nil
	}
	return id.PackageName, nil
}

// Identity implements Inspector.
func (p *BinaryInspector) Identity(ctx context.Context, apkPath string) (models.PackageIdentity, error) {
	info, err := p.Describe(ctx, apkPath)
	if err != nil {
		return models.PackageIdentity{}, err
	}
	return info.PackageIdentity, nil
}

// Describe implements Backend.
func (p *BinaryInspector) Describe(_ context.Context, apkPath string) (*models.PackageInfo, error) {
	pkg, err := apk.OpenFile(apkPath)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeParsing, errors.CodePackageInfoUnavailable,
			"failed to read manifest").WithContext("path", apkPath)
	}
	defer pkg.Close()

	manifest := pkg.Manifest()

	name, err := manifest.Package.String()
	if err != nil || name == "" {
		return nil, errors.NewPackageInfoUnavailable(apkPath, "name")
	}
	code, err := manifest.VersionCode.Int32()
	if err != nil {
		return nil, errors.NewPackageInfoUnavailable(apkPath, "version")
	}

	info := &models.PackageInfo{
		PackageIdentity: models.PackageIdentity{
			PackageName: name,
			VersionCode: strconv.Itoa(int(code)),
		},
		Parser: p.Name(),
		ABIs:   nativeABIs(apkPath),
	}
	info.VersionName, _ = manifest.VersionName.String()
	info.Label, _ = manifest.App.Label.String()
	if v, err := manifest.SDK.Min.Int32(); err == nil {
		info.MinSDK = int(v)
	}
	if v, err := manifest.SDK.Target.Int32(); err == nil {
		info.TargetSDK = int(v)
	}
	if activity, err := pkg.MainActivity(); err == nil {
		info.LaunchActivity = activity
	}
	if fi, err := os.Stat(apkPath); err == nil {
		info.Size = fi.Size()
	}
	return info, nil
}

// nativeABIs lists the lib/<abi>/ directories present in the package.
func nativeABIs(apkPath string) []string {
	reader, err := zip.OpenReader(apkPath)
	if err != nil {
		return nil
	}
	defer reader.Close()

	seen := make(map[string]bool)
	for _, file := range reader.File {
		parts := strings.Split(file.Name, "/")
		if len(parts) >= 3 && parts[0] == "lib" && parts[1] != "" {
			seen[parts[1]] = true
		}
	}

	abis := make([]string, 0, len(seen))
	for abi := range seen {
		abis = append(abis, abi)
	}
	sort.Strings(abis)
	return abis
}
