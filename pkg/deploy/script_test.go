package deploy

import (
	"strings"
	"testing"
)

func TestInstallScript_Lines(t *testing.T) {
	s := InstallScript{
		PackageName:     "com.epicgames.ShooterGame",
		PackageFile:     "ShooterGame-arm64.apk",
		PayloadFile:     testPayload,
		DevicePayload:   "obb/com.epicgames.ShooterGame/" + testPayload,
		ShortName:       "ShooterGame",
		GenericName:     "UE4Game",
		CommandLineFile: "UE4CommandLine.txt",
		PushPayload:     true,
	}

	lines := s.Lines()
	want := map[int]string{
		0:  "setlocal",
		5:  "%ADB% %DEVICE% uninstall com.epicgames.ShooterGame",
		6:  "%ADB% %DEVICE% install ShooterGame-arm64.apk",
		8:  "%ADB% %DEVICE% shell rm -r %STORAGE%/ShooterGame",
		9:  "%ADB% %DEVICE% shell rm -r %STORAGE%/UE4Game/UE4CommandLine.txt",
		10: "%ADB% %DEVICE% shell rm -r %STORAGE%/obb/com.epicgames.ShooterGame",
		11: "%ADB% %DEVICE% push " + testPayload + " %STORAGE%/obb/com.epicgames.ShooterGame/" + testPayload,
		12: `if "%ERRORLEVEL%" NEQ "0" goto Error`,
		13: "goto:eof",
		14: ":Error",
	}
	for i, w := range want {
		if lines[i] != w {
			t.Errorf("line %d = %q, want %q", i, lines[i], w)
		}
	}
	if last := lines[len(lines)-1]; last != "@pause" {
		t.Errorf("last line = %q", last)
	}

	s.PushPayload = false
	without := s.Lines()
	if len(without) != len(lines) {
		t.Fatalf("line count changed: %d vs %d", len(without), len(lines))
	}
	if without[11] != "" || without[12] != "" {
		t.Errorf("payload lines = %q, %q; want blank", without[11], without[12])
	}
}

func TestInstallScript_RenderUsesCRLF(t *testing.T) {
	out := InstallScript{PackageName: "a.b", PackageFile: "a.apk"}.Render()
	if !strings.HasSuffix(out, "@pause\r\n") {
		t.Errorf("script does not end with a terminated @pause line")
	}
	if strings.Count(out, "\n") != strings.Count(out, "\r\n") {
		t.Errorf("bare LF in rendered script")
	}
}
