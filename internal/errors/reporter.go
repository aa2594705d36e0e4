package errors

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// ErrorReport represents a comprehensive error report
type ErrorReport struct {
	Timestamp   time.Time         `json:"timestamp"`
	SessionID   string            `json:"session_id,omitempty"`
	Error       *DeployError      `json:"error"`
	Environment *EnvironmentInfo  `json:"environment"`
	Context     *OperationContext `json:"context"`
}

// EnvironmentInfo contains information about the runtime environment
type EnvironmentInfo struct {
	OS           string            `json:"os"`
	Architecture string            `json:"architecture"`
	GoVersion    string            `json:"go_version"`
	ToolVersion  string            `json:"tool_version"`
	WorkingDir   string            `json:"working_dir"`
	Tools        map[string]string `json:"tools,omitempty"`
}

// OperationContext contains information about the operation that failed
type OperationContext struct {
	Command   string            `json:"command"`
	Arguments []string          `json:"arguments"`
	Flags     map[string]string `json:"flags"`
	Device    string            `json:"device,omitempty"`
	Duration  time.Duration     `json:"duration"`
}

// ErrorReporter writes failure reports for later diagnosis.
type ErrorReporter struct {
	reportDir   string
	toolVersion string
	tools       map[string]string
}

// NewErrorReporter creates a new error reporter
func NewErrorReporter(reportDir, toolVersion string, tools map[string]string) *ErrorReporter {
	return &ErrorReporter{
		reportDir:   reportDir,
		toolVersion: toolVersion,
		tools:       tools,
	}
}

// GenerateReport builds a report for err.
func (er *ErrorReporter) GenerateReport(err *DeployError, sessionID string, context *OperationContext) *ErrorReport {
	env := &EnvironmentInfo{
		OS:           runtime.GOOS,
		Architecture: runtime.GOARCH,
		GoVersion:    runtime.Version(),
		ToolVersion:  er.toolVersion,
		Tools:        er.tools,
	}
	if wd, wdErr := os.Getwd(); wdErr == nil {
		env.WorkingDir = wd
	}

	return &ErrorReport{
		Timestamp:   time.Now(),
		SessionID:   sessionID,
		Error:       err,
		Environment: env,
		Context:     context,
	}
}

// SaveReport saves an error report to disk and returns its path.
func (er *ErrorReporter) SaveReport(report *ErrorReport) (string, error) {
	if err := os.MkdirAll(er.reportDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}

	timestamp := report.Timestamp.Format("20060102_150405")
	filename := fmt.Sprintf("error_report_%s_%s.json", timestamp, report.Error.Code)
	path := filepath.Join(er.reportDir, filename)

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal report: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}

	return path, nil
}
