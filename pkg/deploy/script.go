package deploy

import (
	"os"
	"strings"
)

// InstallScript holds what the generated Windows install script needs.
type InstallScript struct {
	PackageName     string
	PackageFile     string // file name of the primary package
	PayloadFile     string // file name of the payload
	DevicePayload   string // payload path relative to the storage root
	ShortName       string
	GenericName     string
	CommandLineFile string
	// PushPayload is set when a payload exists and is shipped separately.
	PushPayload bool
}

// Lines returns the script lines. The two payload lines are left blank when
// there is nothing to push, so line positions are the same for every package.
func (s InstallScript) Lines() []string {
	pushLine, checkLine := "", ""
	if s.PushPayload {
		pushLine = "%ADB% %DEVICE% push " + s.PayloadFile + " %STORAGE%/" + s.DevicePayload
		checkLine = `if "%ERRORLEVEL%" NEQ "0" goto Error`
	}

	return []string{
		"setlocal",
		`set ADB=%ANDROID_HOME%\platform-tools\adb.exe`,
		"set DEVICE=",
		`if not "%1"=="" set DEVICE=-s %1`,
		`for /f "delims=" %%A in ('adb shell "echo $EXTERNAL_STORAGE"') do @set STORAGE=%%A`,
		"%ADB% %DEVICE% uninstall " + s.PackageName,
		"%ADB% %DEVICE% install " + s.PackageFile,
		`@if "%ERRORLEVEL%" NEQ "0" goto Error`,
		"%ADB% %DEVICE% shell rm -r %STORAGE%/" + s.ShortName,
		// A stale command line under the generic name breaks loading.
		"%ADB% %DEVICE% shell rm -r %STORAGE%/" + s.GenericName + "/" + s.CommandLineFile,
		"%ADB% %DEVICE% shell rm -r %STORAGE%/obb/" + s.PackageName,
		pushLine,
		checkLine,
		"goto:eof",
		":Error",
		"@echo.",
		"@echo There was an error installing the game or the obb file. Look above for more info.",
		"@echo.",
		"@echo Things to try:",
		`@echo Check that the device (and only the device) is listed with "%ADB% devices" from a command prompt.`,
		"@echo Make sure all Developer options look normal on the device",
		"@echo Check that the device has an SD card.",
		"@pause",
	}
}

// Render joins the lines with CRLF, terminating the last one.
func (s InstallScript) Render() string {
	return strings.Join(s.Lines(), "\r\n") + "\r\n"
}

// WriteInstallScript writes the script to path.
func WriteInstallScript(path string, s InstallScript) error {
	return os.WriteFile(path, []byte(s.Render()), 0644)
}
