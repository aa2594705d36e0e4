package errors

import (
	"fmt"
	"runtime"
	"strings"
	"time"
)

// ErrorType represents the type of error
type ErrorType int

const (
	ErrorTypeUnknown ErrorType = iota
	ErrorTypeValidation
	ErrorTypeFileSystem
	ErrorTypeParsing
	ErrorTypeDependency
	ErrorTypeConfiguration
	ErrorTypeDevice
	ErrorTypeTimeout
	ErrorTypeNotFound
	ErrorTypeTransfer
)

// String returns the string representation of the error type
func (et ErrorType) String() string {
	switch et {
	case ErrorTypeValidation:
		return "VALIDATION"
	case ErrorTypeFileSystem:
		return "FILESYSTEM"
	case ErrorTypeParsing:
		return "PARSING"
	case ErrorTypeDependency:
		return "DEPENDENCY"
	case ErrorTypeConfiguration:
		return "CONFIGURATION"
	case ErrorTypeDevice:
		return "DEVICE"
	case ErrorTypeTimeout:
		return "TIMEOUT"
	case ErrorTypeNotFound:
		return "NOT_FOUND"
	case ErrorTypeTransfer:
		return "TRANSFER"
	default:
		return "UNKNOWN"
	}
}

// Stable machine-readable codes for deploy failures.
const (
	CodeNoCompatibleArchitecture     = "NO_COMPATIBLE_ARCHITECTURE"
	CodePackageNotFound              = "PACKAGE_NOT_FOUND"
	CodePayloadNotFound              = "PAYLOAD_NOT_FOUND"
	CodeMultiplePayloadCandidates    = "MULTIPLE_PAYLOAD_CANDIDATES"
	CodeTargetConfigurationAmbiguous = "TARGET_CONFIGURATION_AMBIGUOUS"
	CodePackageInfoUnavailable       = "PACKAGE_INFO_UNAVAILABLE"
	CodeAppInstallFailed             = "APP_INSTALL_FAILED"
	CodePushFailed                   = "PUSH_FAILED"
	CodeBuildToolsNotFound           = "BUILD_TOOLS_NOT_FOUND"
	CodeInvalidConfig                = "INVALID_CONFIG"
)

// Sentinels for errors.Is. Matching compares Type and Code only.
var (
	ErrNoCompatibleArchitecture     = &DeployError{Type: ErrorTypeDevice, Code: CodeNoCompatibleArchitecture}
	ErrPackageNotFound              = &DeployError{Type: ErrorTypeNotFound, Code: CodePackageNotFound}
	ErrPayloadNotFound              = &DeployError{Type: ErrorTypeNotFound, Code: CodePayloadNotFound}
	ErrMultiplePayloadCandidates    = &DeployError{Type: ErrorTypeValidation, Code: CodeMultiplePayloadCandidates}
	ErrTargetConfigurationAmbiguous = &DeployError{Type: ErrorTypeConfiguration, Code: CodeTargetConfigurationAmbiguous}
	ErrPackageInfoUnavailable       = &DeployError{Type: ErrorTypeParsing, Code: CodePackageInfoUnavailable}
	ErrAppInstallFailed             = &DeployError{Type: ErrorTypeDevice, Code: CodeAppInstallFailed}
	ErrPushFailed                   = &DeployError{Type: ErrorTypeTransfer, Code: CodePushFailed}
	ErrBuildToolsNotFound           = &DeployError{Type: ErrorTypeDependency, Code: CodeBuildToolsNotFound}
	ErrInvalidConfig                = &DeployError{Type: ErrorTypeConfiguration, Code: CodeInvalidConfig}
)

// DeployError represents an enhanced error with context and suggestions
type DeployError struct {
	Type        ErrorType         `json:"type"`
	Code        string            `json:"code"`
	Message     string            `json:"message"`
	Cause       error             `json:"-"`
	Context     map[string]string `json:"context,omitempty"`
	Suggestions []string          `json:"suggestions,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
	Stack       []string          `json:"stack,omitempty"`
}

// Error implements the error interface
func (e *DeployError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error
func (e *DeployError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target
func (e *DeployError) Is(target error) bool {
	if t, ok := target.(*DeployError); ok {
		return e.Type == t.Type && e.Code == t.Code
	}
	return false
}

// WithContext adds context to the error
func (e *DeployError) WithContext(key, value string) *DeployError {
	if e.Context == nil {
		e.Context = make(map[string]string)
	}
	e.Context[key] = value
	return e
}

// WithSuggestion adds a suggestion to the error
func (e *DeployError) WithSuggestion(suggestion string) *DeployError {
	e.Suggestions = append(e.Suggestions, suggestion)
	return e
}

// WithSuggestions adds multiple suggestions to the error
func (e *DeployError) WithSuggestions(suggestions []string) *DeployError {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// FormatDetailed returns a detailed error message with context and suggestions
func (e *DeployError) FormatDetailed() string {
	var builder strings.Builder

	builder.WriteString(fmt.Sprintf("❌ %s Error [%s]: %s\n", e.Type.String(), e.Code, e.Message))

	if len(e.Context) > 0 {
		builder.WriteString("\n📋 Context:\n")
		for key, value := range e.Context {
			builder.WriteString(fmt.Sprintf("   %s: %s\n", key, value))
		}
	}

	if e.Cause != nil {
		builder.WriteString(fmt.Sprintf("\n🔍 Underlying cause: %v\n", e.Cause))
	}

	if len(e.Suggestions) > 0 {
		builder.WriteString("\n💡 Suggestions:\n")
		for _, suggestion := range e.Suggestions {
			builder.WriteString(fmt.Sprintf("   • %s\n", suggestion))
		}
	}

	return builder.String()
}

// NewError creates a new DeployError
func NewError(errorType ErrorType, code, message string) *DeployError {
	return &DeployError{
		Type:      errorType,
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
		Context:   make(map[string]string),
		Stack:     captureStack(),
	}
}

// WrapError wraps an existing error with DeployError
func WrapError(err error, errorType ErrorType, code, message string) *DeployError {
	e := NewError(errorType, code, message)
	e.Cause = err
	return e
}

// captureStack captures the current stack trace
func captureStack() []string {
	var stack []string

	for i := 2; i < 10; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}

		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}

		if strings.Contains(file, "apkdeploy-cli") {
			stack = append(stack, fmt.Sprintf("%s:%d %s", file, line, fn.Name()))
		}
	}

	return stack
}

// Deploy failure constructors

// NewNoCompatibleArchitecture reports that no built architecture can run on the device.
func NewNoCompatibleArchitecture(device, deviceArch string) *DeployError {
	label := device
	if label == "" {
		label = "the device"
	}
	return NewError(ErrorTypeDevice, CodeNoCompatibleArchitecture,
		fmt.Sprintf("unable to run because there is no apk usable on %s (device reports %s)", label, deviceArch)).
		WithContext("device", device).
		WithSuggestions([]string{
			"Add the device architecture to build.architectures and rebuild",
			"Build -armv7 to cover most devices through emulation",
		})
}

// NewPackageNotFound reports a missing primary package.
func NewPackageNotFound(path string) *DeployError {
	return NewError(ErrorTypeNotFound, CodePackageNotFound, fmt.Sprintf("could not find apk '%s'", path)).
		WithContext("path", path).
		WithSuggestion("Run 'apkdeploy package' or rebuild the project first")
}

// NewPayloadNotFound reports a missing OBB payload.
func NewPayloadNotFound(path string) *DeployError {
	return NewError(ErrorTypeNotFound, CodePayloadNotFound, fmt.Sprintf("%s was not found", path)).
		WithContext("path", path).
		WithSuggestion("Run 'apkdeploy package' so the obb is generated next to the apk")
}

// NewMultiplePayloadCandidates reports more than one payload candidate in the staging tree.
func NewMultiplePayloadCandidates(count int, dir string) *DeployError {
	return NewError(ErrorTypeValidation, CodeMultiplePayloadCandidates,
		fmt.Sprintf("can't package with more than 1 pak file (found %d pak files in %s)", count, dir)).
		WithContext("stage_dir", dir)
}

// NewTargetConfigurationAmbiguous reports an archive request with the wrong number of configurations.
func NewTargetConfigurationAmbiguous(count int) *DeployError {
	return NewError(ErrorTypeConfiguration, CodeTargetConfigurationAmbiguous,
		fmt.Sprintf("only one target configuration can be archived at a time, but %d were requested", count))
}

// NewPackageInfoUnavailable reports that package identity could not be read.
func NewPackageInfoUnavailable(path, what string) *DeployError {
	return NewError(ErrorTypeParsing, CodePackageInfoUnavailable,
		fmt.Sprintf("failed to get package %s from %s", what, path)).
		WithContext("path", path)
}

// NewAppInstallFailed reports an install failure, appending the device reason when known.
func NewAppInstallFailed(path, reason string) *DeployError {
	msg := fmt.Sprintf("installation of apk '%s' failed", path)
	if reason != "" {
		msg += ": " + reason
	}
	return NewError(ErrorTypeDevice, CodeAppInstallFailed, msg).WithContext("path", path)
}

// NewPushFailed reports one or more failed push operations.
func NewPushFailed(failed map[string]error) *DeployError {
	e := NewError(ErrorTypeTransfer, CodePushFailed, fmt.Sprintf("%d push operation(s) failed", len(failed)))
	for entry, err := range failed {
		e.WithContext(entry, err.Error())
	}
	return e.WithSuggestions([]string{
		"Check that the device has enough free storage",
		"Check the device connection with 'adb devices'",
	})
}

// NewBuildToolsNotFound reports a missing Android build-tools installation.
func NewBuildToolsNotFound(dir string) *DeployError {
	return NewError(ErrorTypeDependency, CodeBuildToolsNotFound,
		fmt.Sprintf("failed to find a build-tools subdirectory in %s", dir)).
		WithSuggestions([]string{
			"Run 'apkdeploy doctor' to check dependencies",
			"Set tools.aapt_path or ANDROID_HOME",
		})
}

// NewConfigurationError creates a configuration error
func NewConfigurationError(message string) *DeployError {
	return NewError(ErrorTypeConfiguration, CodeInvalidConfig, message).
		WithSuggestions([]string{
			"Check the configuration file syntax",
			"Run 'apkdeploy config init' to regenerate configuration",
		})
}

// Logger interface for error logging
type Logger interface {
	Error(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Debug(msg string, args ...interface{})
}

// ErrorHandler provides centralized error handling
type ErrorHandler struct {
	logger Logger
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Handle logs err with its context and returns it as a *DeployError.
func (eh *ErrorHandler) Handle(err error) *DeployError {
	if err == nil {
		return nil
	}

	deployErr := AsDeployError(err)

	if eh.logger != nil {
		eh.logger.Error("Error occurred: %s [%s] %s", deployErr.Type.String(), deployErr.Code, deployErr.Message)
		for key, value := range deployErr.Context {
			eh.logger.Debug("Error context: %s = %s", key, value)
		}
	}

	return deployErr
}

// AsDeployError returns the first *DeployError in err's chain, or wraps err as UNKNOWN.
func AsDeployError(err error) *DeployError {
	for e := err; e != nil; {
		if d, ok := e.(*DeployError); ok {
			return d
		}
		u, ok := e.(interface{ Unwrap() error })
		if !ok {
			break
		}
		e = u.Unwrap()
	}
	return WrapError(err, ErrorTypeUnknown, "UNKNOWN", "unexpected error")
}
