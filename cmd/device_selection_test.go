package cmd

import (
	"context"
	stderrors "errors"
	"reflect"
	"testing"

	"github.com/huanfeng/apkdeploy-cli/internal/errors"
)

type stubLister struct {
	devices []string
	err     error
	calls   int
}

func (s *stubLister) ConnectedDevices(ctx context.Context) ([]string, error) {
	s.calls++
	return s.devices, s.err
}

func TestParseDeviceList(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"empty", nil, nil},
		{"single", []string{"R58M"}, []string{"R58M"}},
		{"comma separated", []string{"A, B,,C"}, []string{"A", "B", "C"}},
		{"repeated flags deduplicated", []string{"A,B", "B", "A,C"}, []string{"A", "B", "C"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseDeviceList(tt.in); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("parseDeviceList(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestResolveTargetDevices(t *testing.T) {
	tests := []struct {
		name       string
		online     []string
		explicit   []string
		configured string
		all        bool
		want       []string
		wantCode   string
		wantCalls  int
	}{
		{name: "explicit wins", online: []string{"A", "B"}, explicit: []string{"B"}, configured: "C", want: []string{"B"}},
		{name: "configured serial", online: []string{"A", "B"}, configured: "C", want: []string{"C"}},
		{name: "single connected device", online: []string{"A"}, want: []string{"A"}, wantCalls: 1},
		{name: "no devices", wantCode: "NO_DEVICES", wantCalls: 1},
		{name: "several devices", online: []string{"A", "B"}, wantCode: "MULTIPLE_DEVICES", wantCalls: 1},
		{name: "all", online: []string{"A", "B"}, explicit: []string{"C"}, all: true, want: []string{"A", "B"}, wantCalls: 1},
		{name: "all without devices", all: true, wantCode: "NO_DEVICES", wantCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lister := &stubLister{devices: tt.online}
			got, err := resolveTargetDevices(context.Background(), lister, tt.explicit, tt.configured, tt.all)
			if tt.wantCode != "" {
				if err == nil {
					t.Fatalf("resolveTargetDevices() = %v, want error %s", got, tt.wantCode)
				}
				if code := errors.AsDeployError(err).Code; code != tt.wantCode {
					t.Errorf("error code = %s, want %s", code, tt.wantCode)
				}
			} else {
				if err != nil {
					t.Fatalf("resolveTargetDevices() error = %v", err)
				}
				if !reflect.DeepEqual(got, tt.want) {
					t.Errorf("resolveTargetDevices() = %v, want %v", got, tt.want)
				}
			}
			if lister.calls != tt.wantCalls {
				t.Errorf("ConnectedDevices called %d times, want %d", lister.calls, tt.wantCalls)
			}
		})
	}
}

func TestResolveTargetDevices_ListError(t *testing.T) {
	boom := stderrors.New("adb server not running")
	lister := &stubLister{err: boom}

	if _, err := resolveTargetDevices(context.Background(), lister, nil, "", false); !stderrors.Is(err, boom) {
		t.Errorf("error = %v, want %v", err, boom)
	}
}

func TestLangFromArgs(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"deploy", "--lang=zh"}, "zh"},
		{[]string{"--lang", "en", "devices"}, "en"},
		{[]string{"--lang"}, ""},
		{[]string{"run", "--", "--lang=zh"}, ""},
		{nil, ""},
	}

	for _, tt := range tests {
		if got := langFromArgs(tt.args); got != tt.want {
			t.Errorf("langFromArgs(%v) = %q, want %q", tt.args, got, tt.want)
		}
	}
}
