package deploy

import (
	"context"
	stderrors "errors"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/huanfeng/apkdeploy-cli/internal/device"
	"github.com/huanfeng/apkdeploy-cli/internal/errors"
	"github.com/huanfeng/apkdeploy-cli/pkg/adb"
	"github.com/huanfeng/apkdeploy-cli/pkg/apk"
	"github.com/huanfeng/apkdeploy-cli/pkg/models"
	"github.com/huanfeng/apkdeploy-cli/pkg/system/systemtest"
)

func countPrefix(lines []string, prefix string) int {
	n := 0
	for _, l := range lines {
		if strings.HasPrefix(l, prefix) {
			n++
		}
	}
	return n
}

func TestController_InstallFailure(t *testing.T) {
	tests := []struct {
		name   string
		exit   int
		output string
	}{
		{"non-zero exit", 1, "adb: failed to install"},
		{"non-zero exit without output", 1, ""},
		{"failure text with zero exit", 0, "Performing Streamed Install\nFailure [INSTALL_FAILED_OLDER_SDK]\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			writeFile(t, filepath.Join(binariesDir(cfg), "ShooterGame.apk"), "apk")
			writeFile(t, filepath.Join(cfg.Project.StageDir, "ShooterGame", "a.uasset"), "a")

			dev := newFakeDevice()
			dev.installExit, dev.installOutput = tt.exit, tt.output
			ctrl, runner := newTestController(t, cfg, dev)

			_, err := ctrl.Deploy(context.Background(), DeployOptions{})
			if !stderrors.Is(err, errors.ErrAppInstallFailed) {
				t.Fatalf("Deploy() error = %v, want ErrAppInstallFailed", err)
			}
			if ctrl.State() != StateError {
				t.Errorf("state = %s, want error", ctrl.State())
			}
			if n := countPrefix(adbLines(runner), "push "); n != 0 {
				t.Errorf("%d pushes after a failed install", n)
			}
		})
	}
}

func TestController_RejectsUnsafeProjectPaths(t *testing.T) {
	tests := []struct {
		name      string
		shortName string
		noStage   bool
	}{
		{"empty short name", "", false},
		{"blank short name", "  ", false},
		{"current dir", ".", false},
		{"parent dir", "..", false},
		{"nested short name", "Games/Shooter", false},
		{"empty stage dir", "ShooterGame", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			writeFile(t, filepath.Join(binariesDir(cfg), "ShooterGame.apk"), "apk")
			cfg.Project.ShortName = tt.shortName
			if tt.noStage {
				cfg.Project.StageDir = ""
			}
			ctrl, runner := newTestController(t, cfg, newFakeDevice())

			_, err := ctrl.Deploy(context.Background(), DeployOptions{})
			if !stderrors.Is(err, errors.ErrInvalidConfig) {
				t.Fatalf("Deploy() error = %v, want ErrInvalidConfig", err)
			}
			if ctrl.State() != StateError {
				t.Errorf("state = %s, want error", ctrl.State())
			}
			if lines := adbLines(runner); len(lines) != 0 {
				t.Errorf("adb ran before the config was checked: %q", lines)
			}
		})
	}
}

func TestController_EnterRejectsInvalidTransition(t *testing.T) {
	ctrl, _ := newTestController(t, testConfig(t), newFakeDevice())

	err := ctrl.enter(StateInstalled)
	if de := errors.AsDeployError(err); err == nil || de.Code != "INVALID_STATE" {
		t.Fatalf("enter(installed) from idle = %v, want INVALID_STATE", err)
	}
	if ctrl.State() != StateIdle {
		t.Errorf("state = %s, want idle", ctrl.State())
	}
	if err := ctrl.enter(StateArchitectureSelected); err != nil {
		t.Errorf("enter(architecture-selected) = %v", err)
	}
}

func TestController_DeployStage(t *testing.T) {
	cfg := testConfig(t)
	stage := cfg.Project.StageDir
	writeFile(t, filepath.Join(binariesDir(cfg), "ShooterGame.apk"), "apk")
	writeFile(t, filepath.Join(stage, "ShooterGame", "Content", "a.uasset"), "a")
	writeFile(t, filepath.Join(stage, "ShooterGame.apk"), "staged apk")

	var progress int
	ctrl, runner := newTestController(t, cfg, newFakeDevice(), WithTransferProgress(func(TransferProgress) { progress++ }))

	res, err := ctrl.Deploy(context.Background(), DeployOptions{})
	if err != nil {
		t.Fatalf("Deploy() error = %v", err)
	}

	wantStates := []State{StateIdle, StateArchitectureSelected, StatePackageVerified,
		StateUninstalled, StateInstalled, StateStaged}
	if !reflect.DeepEqual(res.States, wantStates) {
		t.Errorf("states = %v, want %v", res.States, wantStates)
	}
	if res.Identity.PackageName != testAppID || res.StorageRoot != "/sdcard" {
		t.Errorf("result = %+v", res)
	}

	if got := readFile(t, filepath.Join(stage, cfg.Project.CommandLineFile)); got != cfg.Project.CommandLine {
		t.Errorf("command line file = %q", got)
	}

	lines := adbLines(runner)
	rmDir := indexOf(lines, "shell rm -r /sdcard/ShooterGame")
	rmPayload := indexOf(lines, "shell rm /sdcard/obb/"+testAppID+"/"+testPayload)
	pushContent := indexOf(lines, "push "+filepath.Join(stage, "ShooterGame")+" /sdcard/ShooterGame/ShooterGame")
	pushCmdLine := indexOf(lines, "push "+filepath.Join(stage, "UE4CommandLine.txt")+" /sdcard/ShooterGame/UE4CommandLine.txt")

	if rmDir < 0 || rmPayload < 0 || pushContent < 0 || pushCmdLine < 0 {
		t.Fatalf("missing commands in %q", lines)
	}
	if rmDir > pushContent || rmDir > pushCmdLine {
		t.Errorf("staging dir removed after pushing: %q", lines)
	}
	if rmPayload < pushContent || rmPayload < pushCmdLine {
		t.Errorf("payload removed before pushing finished: %q", lines)
	}
	if n := countPrefix(lines, "shell rm -r /sdcard/ShooterGame"); n != 1 {
		t.Errorf("staging dir removed %d times", n)
	}
	if n := countPrefix(lines, "push "); n != 2 {
		t.Errorf("pushes = %d, want 2 (staged apk excluded)", n)
	}
	if progress != 2 {
		t.Errorf("progress callbacks = %d, want 2", progress)
	}
	if indexOf(lines, "uninstall "+testAppID) > indexOf(lines, "install "+filepath.Join(binariesDir(cfg), "ShooterGame.apk")) {
		t.Errorf("uninstall must precede install: %q", lines)
	}
}

func TestController_DeployModes(t *testing.T) {
	t.Run("archive pushes the payload", func(t *testing.T) {
		cfg := testConfig(t)
		out := binariesDir(cfg)
		writeFile(t, filepath.Join(out, "ShooterGame.apk"), "apk")
		writeFile(t, filepath.Join(out, testPayload), "obb")
		ctrl, runner := newTestController(t, cfg, newFakeDevice())

		res, err := ctrl.Deploy(context.Background(), DeployOptions{Mode: models.StageModeArchive})
		if err != nil {
			t.Fatalf("Deploy() error = %v", err)
		}
		if last := res.States[len(res.States)-1]; last != StateArchived {
			t.Errorf("final state = %s", last)
		}
		lines := adbLines(runner)
		want := "push " + filepath.Join(out, testPayload) + " /sdcard/obb/" + testAppID + "/" + testPayload
		if indexOf(lines, want) < 0 {
			t.Errorf("payload not pushed: %q", lines)
		}
		if indexOf(lines, "shell rm -r /sdcard/ShooterGame") >= 0 {
			t.Errorf("archive mode cleared the staging dir")
		}
	})

	t.Run("commandline pushes one file", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Device.StageMode = models.StageModeCommandLine
		writeFile(t, filepath.Join(binariesDir(cfg), "ShooterGame.apk"), "apk")
		writeFile(t, filepath.Join(cfg.Project.StageDir, "ShooterGame", "a.uasset"), "a")
		ctrl, runner := newTestController(t, cfg, newFakeDevice())

		res, err := ctrl.Deploy(context.Background(), DeployOptions{})
		if err != nil {
			t.Fatalf("Deploy() error = %v", err)
		}
		if res.Mode != models.StageModeCommandLine || ctrl.State() != StateCommandLineOnly {
			t.Errorf("mode = %s, state = %s", res.Mode, ctrl.State())
		}
		lines := adbLines(runner)
		if n := countPrefix(lines, "push "); n != 1 {
			t.Fatalf("pushes = %d, want 1: %q", n, lines)
		}
		want := "push " + filepath.Join(cfg.Project.StageDir, "UE4CommandLine.txt") + " /sdcard/ShooterGame/UE4CommandLine.txt"
		if indexOf(lines, want) < 0 {
			t.Errorf("command line not pushed: %q", lines)
		}
	})

	t.Run("storage root with trailing slash", func(t *testing.T) {
		cfg := testConfig(t)
		writeFile(t, filepath.Join(binariesDir(cfg), "ShooterGame.apk"), "apk")
		writeFile(t, filepath.Join(cfg.Project.StageDir, "ShooterGame", "a.uasset"), "a")
		dev := newFakeDevice()
		dev.storage = "/sdcard/"
		ctrl, runner := newTestController(t, cfg, dev)

		if _, err := ctrl.Deploy(context.Background(), DeployOptions{}); err != nil {
			t.Fatalf("Deploy() error = %v", err)
		}
		lines := adbLines(runner)
		if indexOf(lines, "shell rm -r /sdcard/ShooterGame") < 0 {
			t.Errorf("staging dir not cleared: %q", lines)
		}
		want := "push " + cfg.Project.StageDir + " /sdcard/ShooterGame"
		if indexOf(lines, want) < 0 {
			t.Errorf("content not pushed under the project dir: %q", lines)
		}
	})

	t.Run("reuses a command line written for the batch", func(t *testing.T) {
		cfg := testConfig(t)
		writeFile(t, filepath.Join(binariesDir(cfg), "ShooterGame.apk"), "apk")
		shared := filepath.Join(cfg.Project.StageDir, "UE4CommandLine.txt")
		writeFile(t, shared, "written once")
		ctrl, runner := newTestController(t, cfg, newFakeDevice())

		_, err := ctrl.Deploy(context.Background(), DeployOptions{Mode: models.StageModeCommandLine, commandLine: shared})
		if err != nil {
			t.Fatalf("Deploy() error = %v", err)
		}
		if got := readFile(t, shared); got != "written once" {
			t.Errorf("command line rewritten: %q", got)
		}
		if len(runner.Find("push "+shared+" ")) != 1 {
			t.Errorf("shared command line not pushed: %q", adbLines(runner))
		}
	})
}

func TestController_DeployArchitecture(t *testing.T) {
	t.Run("falls back to armv7", func(t *testing.T) {
		cfg := separateConfig(t)
		cfg.Build.Architectures = []string{"armv7"}
		apkPath := filepath.Join(binariesDir(cfg), "ShooterGame-armv7.apk")
		writeFile(t, apkPath, "apk")
		ctrl, runner := newTestController(t, cfg, newFakeDevice())

		res, err := ctrl.Deploy(context.Background(), DeployOptions{Mode: models.StageModeCommandLine})
		if err != nil {
			t.Fatalf("Deploy() error = %v", err)
		}
		if res.Arch != models.ArchARMv7 || res.Package != apkPath {
			t.Errorf("arch = %q, package = %q", res.Arch, res.Package)
		}
		if indexOf(adbLines(runner), "install "+apkPath) < 0 {
			t.Errorf("armv7 package not installed")
		}
	})

	t.Run("no compatible build", func(t *testing.T) {
		cfg := separateConfig(t)
		cfg.Build.Architectures = []string{"arm64"}
		dev := newFakeDevice()
		dev.abi = "x86_64"
		ctrl, runner := newTestController(t, cfg, dev)

		_, err := ctrl.Deploy(context.Background(), DeployOptions{})
		if !stderrors.Is(err, errors.ErrNoCompatibleArchitecture) {
			t.Fatalf("Deploy() error = %v, want ErrNoCompatibleArchitecture", err)
		}
		if n := countPrefix(adbLines(runner), "install "); n != 0 {
			t.Errorf("installed despite no compatible build")
		}
	})
}

func TestController_RunProjectBuild(t *testing.T) {
	cfg := testConfig(t)
	ctrl, runner := newTestController(t, cfg, newFakeDevice())

	res, err := ctrl.Run(context.Background(), RunOptions{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.State != StateSuccess || res.AppID != testAppID {
		t.Errorf("result = %+v", res)
	}
	lines := adbLines(runner)
	if indexOf(lines, "shell am start -n "+testAppID+"/com.epicgames.ue4.GameActivity") < 0 {
		t.Errorf("activity not started: %q", lines)
	}
	if countPrefix(lines, "logcat") != 0 || countPrefix(lines, "shell ps") != 0 {
		t.Errorf("project builds are not monitored: %q", lines)
	}
}

func TestController_RunPrebuilt(t *testing.T) {
	t.Run("waits for exit", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Build.Prebuilt = true
		dev := newFakeDevice()
		dev.running = 25
		ctrl, runner := newTestController(t, cfg, dev)

		res, err := ctrl.Run(context.Background(), RunOptions{})
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if res.TimedOut || res.State != StateSuccess {
			t.Errorf("timed out = %v, state = %s", res.TimedOut, res.State)
		}
		if dev.psCount() != 26 {
			t.Errorf("ps polled %d times, want 26", dev.psCount())
		}

		lines := adbLines(runner)
		cleared := indexOf(lines, "logcat -c")
		wake := indexOf(lines, "shell input keyevent 82")
		start := indexOf(lines, "shell am start -n "+testAppID+"/com.epicgames.ue4.GameActivity")
		if cleared < 0 || !(cleared < wake && wake < start) {
			t.Errorf("launch order = %q", lines)
		}
		if indexOf(lines, "logcat -d -s UE4 -s Debug") < 0 {
			t.Errorf("tagged log not dumped: %q", lines)
		}

		wantFiles := []string{
			filepath.Join(cfg.Project.BaseStageDir, "Android", "logs", "devicelog@R58M.log"),
			filepath.Join(cfg.Project.LogDir, "devicelog@R58M.log"),
		}
		if !reflect.DeepEqual(res.LogFiles, wantFiles) {
			t.Fatalf("log files = %v, want %v", res.LogFiles, wantFiles)
		}
		for _, f := range wantFiles {
			if got := readFile(t, f); got != "full device log\n" {
				t.Errorf("%s = %q", f, got)
			}
		}

		wantStates := []State{StateIdle, StateArchitectureSelected, StateLaunched, StateMonitoring, StateSuccess}
		if !reflect.DeepEqual(res.States, wantStates) {
			t.Errorf("states = %v, want %v", res.States, wantStates)
		}
	})

	t.Run("times out", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Build.Prebuilt = true
		dev := newFakeDevice()
		dev.running = 1 << 30
		ctrl, _ := newTestController(t, cfg, dev)

		res, err := ctrl.Run(context.Background(), RunOptions{Timeout: 5 * time.Millisecond})
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if !res.TimedOut || res.State != StateTimeout {
			t.Errorf("timed out = %v, state = %s", res.TimedOut, res.State)
		}
		if res.Launch == nil {
			t.Error("launch result missing")
		}
		if len(res.LogFiles) != 2 {
			t.Errorf("log files = %v", res.LogFiles)
		}
	})
}

func TestController_RunClientApp(t *testing.T) {
	cfg := separateConfig(t)
	cfg.Build.Architectures = []string{"armv7"}
	client := filepath.Join(t.TempDir(), "Client", "ShooterClient")
	writeFile(t, client+"-armv7.apk", "client")
	ctrl, runner := newTestController(t, cfg, newFakeDevice())

	res, err := ctrl.Run(context.Background(), RunOptions{ClientApp: client})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Package != client+"-armv7.apk" {
		t.Errorf("package = %q", res.Package)
	}
	if len(runner.Find("dump badging "+client+"-armv7.apk")) != 1 {
		t.Errorf("client package not inspected")
	}

	res, err = ctrl.Run(context.Background(), RunOptions{ClientApp: filepath.Join(t.TempDir(), "Missing.apk")})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if want := filepath.Join(binariesDir(cfg), "Missing-armv7.apk"); res.Package != want {
		t.Errorf("fallback package = %q, want %q", res.Package, want)
	}
}

func TestAndroid_DeployDevices(t *testing.T) {
	cfg := testConfig(t)
	writeFile(t, filepath.Join(binariesDir(cfg), "ShooterGame.apk"), "apk")
	writeFile(t, filepath.Join(cfg.Project.StageDir, "ShooterGame", "a.uasset"), "a")

	runner := &systemtest.FakeRunner{Handler: newFakeDevice().handle}
	target := NewAndroid(cfg, adb.New("adb", "", runner), apk.NewAAPTInspector("aapt", runner))

	var hooked int
	results := target.DeployDevices(context.Background(), []string{"@A", "@B"},
		DeployOptions{Mode: models.StageModeCommandLine}, &RunOptions{}, 2,
		func(device.Result[*DeviceReport]) { hooked++ })

	if len(results) != 2 || hooked != 2 {
		t.Fatalf("results = %d, hooked = %d", len(results), hooked)
	}
	for i, name := range []string{"@A", "@B"} {
		r := results[i]
		if r.Err != nil {
			t.Fatalf("%s: %v", name, r.Err)
		}
		if r.Key != name || r.Value.Deploy.Device != name || r.Value.Run == nil {
			t.Errorf("%s: report = %+v", name, r.Value)
		}
		serial := strings.TrimPrefix(name, "@")
		if len(runner.Find("-s "+serial+" install ")) != 1 {
			t.Errorf("%s: install not addressed to serial %s", name, serial)
		}
		if len(runner.Find("-s "+serial+" shell am start")) != 1 {
			t.Errorf("%s: app not started", name)
		}
	}
	if got := readFile(t, filepath.Join(cfg.Project.StageDir, "UE4CommandLine.txt")); got != cfg.Project.CommandLine {
		t.Errorf("command line = %q, want %q", got, cfg.Project.CommandLine)
	}
}

func TestAndroid_DeployDevices_InvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Project.StageDir = ""

	runner := &systemtest.FakeRunner{Handler: newFakeDevice().handle}
	target := NewAndroid(cfg, adb.New("adb", "", runner), apk.NewAAPTInspector("aapt", runner))

	var hooked int
	results := target.DeployDevices(context.Background(), []string{"@A", "@B"},
		DeployOptions{}, nil, 2, func(device.Result[*DeviceReport]) { hooked++ })

	if len(results) != 2 || hooked != 2 {
		t.Fatalf("results = %d, hooked = %d", len(results), hooked)
	}
	for _, r := range results {
		if !stderrors.Is(r.Err, errors.ErrInvalidConfig) {
			t.Errorf("%s: error = %v, want ErrInvalidConfig", r.Key, r.Err)
		}
	}
	if calls := runner.Calls(); len(calls) != 0 {
		t.Errorf("%d commands ran with an invalid config", len(calls))
	}
}
