//go:build windows

package i18n

import "golang.org/x/sys/windows"

// getPlatformLocales asks Windows for the UI languages of the user, then of
// the system, since the POSIX locale variables are usually unset there.
func getPlatformLocales() []string {
	sources := []func(uint32) ([]string, error){
		windows.GetUserPreferredUILanguages,
		windows.GetSystemPreferredUILanguages,
	}
	for _, preferred := range sources {
		langs, err := preferred(windows.MUI_LANGUAGE_NAME)
		if err != nil {
			continue
		}
		var locales []string
		for _, l := range langs {
			if l != "" {
				locales = append(locales, l)
			}
		}
		if len(locales) > 0 {
			return locales
		}
	}
	return nil
}
