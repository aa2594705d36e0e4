//go:build !windows

package i18n

// getPlatformLocales has nothing to add outside Windows; LANG and friends
// are already consulted.
func getPlatformLocales() []string { return nil }
