package i18n

import (
	"testing"

	"golang.org/x/text/language"
)

func TestSelectLanguage(t *testing.T) {
	tests := []struct {
		candidates []string
		want       language.Tag
	}{
		{[]string{"zh_CN.UTF-8"}, language.Chinese},
		{[]string{"en_US.UTF-8", "zh_CN"}, language.English},
		{[]string{"C"}, language.English},
		{[]string{"fr_FR"}, language.English},
		{[]string{"zh-Hans"}, language.Chinese},
		{nil, language.English},
	}

	for _, tt := range tests {
		if got := selectLanguage(tt.candidates); got != tt.want {
			t.Errorf("selectLanguage(%v) = %v, want %v", tt.candidates, got, tt.want)
		}
	}
}

func TestT_FallsBackToID(t *testing.T) {
	if err := Init("en"); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if got := T("no.such.message"); got != "no.such.message" {
		t.Errorf("T() = %q, want the message ID", got)
	}
	if got := T("cmd.root.short"); got == "cmd.root.short" {
		t.Errorf("T(cmd.root.short) was not translated")
	}
}

func TestT_Chinese(t *testing.T) {
	if err := Init("zh"); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer Init("en")

	if CurrentLanguage() != language.Chinese {
		t.Fatalf("CurrentLanguage() = %v, want zh", CurrentLanguage())
	}
	en := "Package, install and run builds on Android devices"
	if got := T("cmd.root.short"); got == en || got == "cmd.root.short" {
		t.Errorf("T(cmd.root.short) = %q, want Chinese text", got)
	}
}

func TestT_PluralCount(t *testing.T) {
	if err := Init("en"); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	tests := []struct {
		count int
		want  string
	}{
		{1, "✅ Deployed to 1 device"},
		{3, "✅ Deployed to 3 devices"},
	}
	for _, tt := range tests {
		if got := T("deploy.done", map[string]interface{}{"Count": tt.count}); got != tt.want {
			t.Errorf("T(deploy.done, %d) = %q, want %q", tt.count, got, tt.want)
		}
	}
}
