package deploy

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/huanfeng/apkdeploy-cli/internal/config"
	"github.com/huanfeng/apkdeploy-cli/pkg/adb"
	"github.com/huanfeng/apkdeploy-cli/pkg/apk"
	"github.com/huanfeng/apkdeploy-cli/pkg/models"
	"github.com/huanfeng/apkdeploy-cli/pkg/system"
	"github.com/huanfeng/apkdeploy-cli/pkg/system/systemtest"
)

const (
	testAppID   = "com.epicgames.ShooterGame"
	testBadging = "package: name='com.epicgames.ShooterGame' versionCode='7' versionName='1.0'\n" +
		"application-label:'ShooterGame'\n"
	testPayload = "main.00007.com.epicgames.ShooterGame.obb"
)

// fakeDevice answers aapt and adb invocations for one scripted device.
type fakeDevice struct {
	abi           string
	storage       string
	installExit   int
	installOutput string
	// running is the number of "ps" calls that still list the app.
	running int

	mu      sync.Mutex
	psCalls int
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{
		abi:           "arm64-v8a",
		storage:       "/sdcard",
		installOutput: "Performing Streamed Install\nSuccess\n",
	}
}

func (d *fakeDevice) handle(ctx context.Context, name string, args []string) (*system.CommandResult, error) {
	if name == "aapt" {
		return systemtest.Ok(testBadging), nil
	}
	if len(args) >= 2 && args[0] == "-s" {
		args = args[2:]
	}

	line := strings.Join(args, " ")
	switch {
	case line == "shell getprop ro.product.cpu.abi":
		return systemtest.Ok(d.abi + "\r\n"), nil
	case strings.HasPrefix(line, "install "):
		return systemtest.Exit(d.installExit, d.installOutput), nil
	case line == "shell echo $EXTERNAL_STORAGE":
		return systemtest.Ok(d.storage + "\n"), nil
	case line == "shell ps":
		d.mu.Lock()
		defer d.mu.Unlock()
		d.psCalls++
		if d.psCalls <= d.running {
			return systemtest.Ok("USER PID NAME\nu0_a77 4242 " + testAppID + "\n"), nil
		}
		return systemtest.Ok("USER PID NAME\nroot 1 /init\n"), nil
	case line == "logcat -d":
		return systemtest.Ok("full device log\n"), nil
	case strings.HasPrefix(line, "logcat -d -s"):
		return systemtest.Ok("UE4: tagged\n"), nil
	}
	return systemtest.Ok(""), nil
}

func (d *fakeDevice) psCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.psCalls
}

// adbLines returns the adb argument lines with the serial prefix removed.
func adbLines(r *systemtest.FakeRunner) []string {
	var lines []string
	for _, c := range r.Calls() {
		if c.Name != "adb" {
			continue
		}
		args := c.Args
		if len(args) >= 2 && args[0] == "-s" {
			args = args[2:]
		}
		lines = append(lines, strings.Join(args, " "))
	}
	return lines
}

func indexOf(lines []string, want string) int {
	for i, l := range lines {
		if l == want {
			return i
		}
	}
	return -1
}

func testConfig(t *testing.T) *models.Config {
	t.Helper()
	root := t.TempDir()

	cfg := config.Defaults()
	cfg.Project.ShortName = "ShooterGame"
	cfg.Project.ExeName = "ShooterGame"
	cfg.Project.ProjectDir = filepath.Join(root, "ShooterGame")
	cfg.Project.EngineDir = filepath.Join(root, "Engine")
	cfg.Project.BaseStageDir = filepath.Join(root, "ShooterGame", "Saved", "StagedBuilds")
	cfg.Project.StageDir = filepath.Join(cfg.Project.BaseStageDir, "Android")
	cfg.Project.ArchiveDir = filepath.Join(root, "Archive")
	cfg.Project.LogDir = filepath.Join(root, "logs")
	cfg.Project.CommandLine = "../../../ShooterGame/ShooterGame.uproject -log"
	cfg.Device.PollInterval = time.Millisecond

	mkdir(t, cfg.Project.StageDir)
	return &cfg
}

func mkdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	mkdir(t, filepath.Dir(path))
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

// newTestController wires a controller to a fake device.
func newTestController(t *testing.T, cfg *models.Config, dev *fakeDevice, opts ...Option) (*Controller, *systemtest.FakeRunner) {
	t.Helper()
	runner := &systemtest.FakeRunner{Handler: dev.handle}
	bridge := adb.New("adb", "", runner)
	inspector := apk.NewAAPTInspector("aapt", runner)
	return NewController(cfg, bridge, inspector, "@R58M", opts...), runner
}
