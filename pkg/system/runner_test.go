package system

import (
	"context"
	"runtime"
	"strings"
	"testing"
)

func TestExecRunner_ExitCode(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses /bin/sh")
	}

	r := NewExecRunner()
	res, err := r.Run(context.Background(), "sh", "-c", "echo Failure [X]; exit 3")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", res.ExitCode)
	}
	if !strings.Contains(res.Output, "Failure [X]") {
		t.Errorf("Output = %q, want captured stdout", res.Output)
	}
	if res.Success() {
		t.Errorf("Success() = true for exit 3")
	}
}

func TestExecRunner_MissingBinary(t *testing.T) {
	r := NewExecRunner()
	if _, err := r.Run(context.Background(), "apkdeploy-definitely-missing-tool"); err == nil {
		t.Fatalf("Run() error = nil, want start failure")
	}
}

func TestCommandLine(t *testing.T) {
	got := CommandLine("adb", "-s", "emulator-5554", "push", "/a b/c", "/sdcard/x")
	want := `adb -s emulator-5554 push "/a b/c" /sdcard/x`
	if got != want {
		t.Errorf("CommandLine() = %q, want %q", got, want)
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   uint64
		want string
	}{
		{512, "512 B"},
		{2048, "2.0 KiB"},
		{5 * 1024 * 1024, "5.0 MiB"},
	}
	for _, tt := range tests {
		if got := FormatBytes(tt.in); got != tt.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCheckDiskSpace_MissingPathUsesParent(t *testing.T) {
	dir := t.TempDir()
	usage, err := CheckDiskSpace(dir + "/not/yet/created")
	if err != nil {
		t.Fatalf("CheckDiskSpace() error = %v", err)
	}
	if usage.Total == 0 {
		t.Errorf("Total = 0, want filesystem size")
	}
}
