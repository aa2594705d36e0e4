package errors

import (
	"context"
	stderrors "errors"
)

// Process exit codes. 0 is success; 1 is any failure without a more
// specific code.
const (
	ExitOK                           = 0
	ExitUnknown                      = 1
	ExitInvalidConfig                = 2
	ExitNoCompatibleArchitecture     = 10
	ExitPackageNotFound              = 11
	ExitPayloadNotFound              = 12
	ExitMultiplePayloadCandidates    = 13
	ExitTargetConfigurationAmbiguous = 14
	ExitPackageInfoUnavailable       = 15
	ExitAppInstallFailed             = 16
	ExitPushFailed                   = 17
	ExitBuildToolsNotFound           = 18
	ExitCancelled                    = 130
)

var exitCodes = map[string]int{
	CodeInvalidConfig:                ExitInvalidConfig,
	CodeNoCompatibleArchitecture:     ExitNoCompatibleArchitecture,
	CodePackageNotFound:              ExitPackageNotFound,
	CodePayloadNotFound:              ExitPayloadNotFound,
	CodeMultiplePayloadCandidates:    ExitMultiplePayloadCandidates,
	CodeTargetConfigurationAmbiguous: ExitTargetConfigurationAmbiguous,
	CodePackageInfoUnavailable:       ExitPackageInfoUnavailable,
	CodeAppInstallFailed:             ExitAppInstallFailed,
	CodePushFailed:                   ExitPushFailed,
	CodeBuildToolsNotFound:           ExitBuildToolsNotFound,
}

// ExitCode maps err to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	if stderrors.Is(err, context.Canceled) {
		return ExitCancelled
	}
	for e := err; e != nil; e = stderrors.Unwrap(e) {
		if d, ok := e.(*DeployError); ok {
			if code, ok := exitCodes[d.Code]; ok {
				return code
			}
		}
	}
	return ExitUnknown
}
