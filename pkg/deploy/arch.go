// Package deploy packages builds and deploys them to Android devices.
package deploy

import (
	"strings"

	"github.com/huanfeng/apkdeploy-cli/internal/errors"
	"github.com/huanfeng/apkdeploy-cli/pkg/models"
)

var abiTags = map[string]models.Arch{
	"arm64-v8a":   models.ArchARM64,
	"armeabi-v7a": models.ArchARMv7,
	"armeabi":     models.ArchARMv7,
	"x86":         models.ArchX86,
	"x86_64":      models.ArchX86_64,
}

// 32-bit ARM builds run almost everywhere through emulation; nothing else
// is assumed to run on a foreign architecture.
var archFallbacks = map[models.Arch][]models.Arch{
	models.ArchARM64:  {models.ArchARMv7},
	models.ArchX86_64: {models.ArchX86, models.ArchARMv7},
	models.ArchX86:    {models.ArchARMv7},
}

// NormalizeABI maps a device ABI such as "arm64-v8a" to its architecture tag.
// Unknown ABIs are returned as "-<abi>" so they only match a build of the
// same name.
func NormalizeABI(abi string) models.Arch {
	abi = strings.TrimSpace(abi)
	if tag, ok := abiTags[abi]; ok {
		return tag
	}
	return models.ParseArch(abi)
}

// FallbackChain returns tag followed by the tags tried when it was not built.
func FallbackChain(tag models.Arch) []models.Arch {
	return append([]models.Arch{tag}, archFallbacks[tag]...)
}

// SelectArchitecture picks the build to install on a device reporting
// deviceABI from the architectures that were built.
func SelectArchitecture(available []models.Arch, deviceABI string) (models.Arch, error) {
	return selectArchitecture(available, deviceABI, "")
}

func selectArchitecture(available []models.Arch, deviceABI, device string) (models.Arch, error) {
	built := make(map[models.Arch]bool, len(available))
	for _, a := range available {
		built[a] = true
	}

	for _, candidate := range FallbackChain(NormalizeABI(deviceABI)) {
		if built[candidate] {
			return candidate, nil
		}
	}
	return "", errors.NewNoCompatibleArchitecture(device, strings.TrimSpace(deviceABI))
}
