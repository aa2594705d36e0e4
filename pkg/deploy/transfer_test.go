package deploy

import (
	"context"
	stderrors "errors"
	"fmt"
	"path/filepath"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/huanfeng/apkdeploy-cli/internal/errors"
	"github.com/huanfeng/apkdeploy-cli/pkg/models"
)

func TestPlanTransfer_ExcludedFileTwoLevelsDeep(t *testing.T) {
	root := t.TempDir()
	j := func(parts ...string) string { return filepath.Join(append([]string{root}, parts...)...) }

	writeFile(t, j("Engine", "Content", "engine.pak"), "e")
	writeFile(t, j("Game", "Binaries", "Game.apk"), "apk")
	writeFile(t, j("Game", "Binaries", "libUE4.so"), "so")
	writeFile(t, j("Game", "Content", "Maps", "map.umap"), "m")
	writeFile(t, j("Game", "config.ini"), "c")
	writeFile(t, j("manifest.txt"), "m")

	plan, err := PlanTransfer(root, nil)
	if err != nil {
		t.Fatalf("PlanTransfer() error = %v", err)
	}

	if want := []string{j("Game", "Binaries", "Game.apk")}; !reflect.DeepEqual(plan.Excluded, want) {
		t.Errorf("Excluded = %v, want %v", plan.Excluded, want)
	}
	wantDirs := []string{j("Game", "Binaries"), j("Game"), root}
	if !reflect.DeepEqual(plan.IndividualDirs, wantDirs) {
		t.Errorf("IndividualDirs = %v, want %v", plan.IndividualDirs, wantDirs)
	}
	wantEntries := []string{
		j("Game", "Binaries", "libUE4.so"),
		j("Game", "Content"),
		j("Game", "config.ini"),
		j("Engine"),
		j("manifest.txt"),
	}
	if !reflect.DeepEqual(plan.Entries, wantEntries) {
		t.Errorf("Entries = %v, want %v", plan.Entries, wantEntries)
	}
}

func TestPlanTransfer_NoExclusionsPushesRoot(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "Game", "Content", "a.uasset"), "a")
	writeFile(t, filepath.Join(root, "UE4CommandLine.txt"), "-log")

	plan, err := PlanTransfer(root, nil)
	if err != nil {
		t.Fatalf("PlanTransfer() error = %v", err)
	}
	if len(plan.IndividualDirs) != 0 || len(plan.Excluded) != 0 {
		t.Errorf("plan = %+v, want no exclusions", plan)
	}
	if !reflect.DeepEqual(plan.Entries, []string{root}) {
		t.Errorf("Entries = %v, want [%s]", plan.Entries, root)
	}
}

func TestPlanTransfer_ExclusionIsCaseInsensitive(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "Game.APK"), "apk")
	writeFile(t, filepath.Join(root, "data.bin"), "d")

	plan, err := PlanTransfer(root, ExcludePackages)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(plan.Entries, []string{filepath.Join(root, "data.bin")}) {
		t.Errorf("Entries = %v", plan.Entries)
	}
}

func TestRemotePath(t *testing.T) {
	stage := filepath.FromSlash("/stage/Android")
	tests := []struct {
		name       string
		entry      string
		stageRoot  string
		remoteRoot string
		want       string
	}{
		{"nested entry", "/stage/Android/Game/Content", stage, "/sdcard/ShooterGame", "/sdcard/ShooterGame/Game/Content"},
		{"stage root", stage, stage, "/sdcard/ShooterGame", "/sdcard/ShooterGame"},
		{"stage root with trailing slash", "/stage/Android/UE4CommandLine.txt", stage + string(filepath.Separator),
			"/sdcard/ShooterGame", "/sdcard/ShooterGame/UE4CommandLine.txt"},
		{"remote root with trailing slash", "/stage/Android/Game", stage, "/sdcard/ShooterGame/", "/sdcard/ShooterGame/Game"},
		{"sibling with shared prefix", "/stage/Android2/Game", stage, "/sdcard/ShooterGame", "/sdcard/ShooterGame/Game"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RemotePath(filepath.FromSlash(tt.entry), tt.stageRoot, tt.remoteRoot); got != tt.want {
				t.Errorf("RemotePath() = %q, want %q", got, tt.want)
			}
		})
	}
}

type countingPusher struct {
	mu       sync.Mutex
	inFlight int32
	peak     int32
	pushed   map[string]string
	fail     map[string]bool
}

func (p *countingPusher) Push(ctx context.Context, local, remote string) error {
	n := atomic.AddInt32(&p.inFlight, 1)
	defer atomic.AddInt32(&p.inFlight, -1)
	for {
		peak := atomic.LoadInt32(&p.peak)
		if n <= peak || atomic.CompareAndSwapInt32(&p.peak, peak, n) {
			break
		}
	}
	time.Sleep(3 * time.Millisecond)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pushed == nil {
		p.pushed = make(map[string]string)
	}
	p.pushed[local] = remote
	if p.fail[local] {
		return fmt.Errorf("adb push %s exited with 1", local)
	}
	return nil
}

func TestPushPlan_BoundedParallelism(t *testing.T) {
	stage := filepath.FromSlash("/stage")
	plan := &models.TransferPlan{}
	for i := 0; i < 20; i++ {
		plan.Entries = append(plan.Entries, filepath.Join(stage, fmt.Sprintf("entry%02d", i)))
	}

	pusher := &countingPusher{}
	var progress []TransferProgress
	err := PushPlan(context.Background(), pusher, plan, stage, "/sdcard/Game", 6, func(p TransferProgress) {
		progress = append(progress, p)
	})
	if err != nil {
		t.Fatalf("PushPlan() error = %v", err)
	}
	if pusher.peak > 6 {
		t.Errorf("peak in-flight pushes = %d, want <= 6", pusher.peak)
	}
	if len(pusher.pushed) != 20 {
		t.Errorf("pushed %d entries, want 20", len(pusher.pushed))
	}
	if got := pusher.pushed[plan.Entries[3]]; got != "/sdcard/Game/entry03" {
		t.Errorf("remote = %q", got)
	}
	if len(progress) != 20 || progress[19].Done != 20 || progress[19].Total != 20 {
		t.Errorf("progress callbacks = %d, last = %+v", len(progress), progress[len(progress)-1])
	}
}

func TestPushPlan_AggregatesFailures(t *testing.T) {
	stage := filepath.FromSlash("/stage")
	a, b, c := filepath.Join(stage, "a"), filepath.Join(stage, "b"), filepath.Join(stage, "c")
	plan := &models.TransferPlan{Entries: []string{a, b, c}}
	pusher := &countingPusher{fail: map[string]bool{a: true, c: true}}

	err := PushPlan(context.Background(), pusher, plan, stage, "/sdcard/Game", 2, nil)
	if !stderrors.Is(err, errors.ErrPushFailed) {
		t.Fatalf("PushPlan() error = %v, want ErrPushFailed", err)
	}
	de := errors.AsDeployError(err)
	if _, ok := de.Context[a]; !ok {
		t.Errorf("failure for %s not reported: %v", a, de.Context)
	}
	if _, ok := de.Context[c]; !ok {
		t.Errorf("failure for %s not reported: %v", c, de.Context)
	}
	if len(pusher.pushed) != 3 {
		t.Errorf("sibling pushes were cancelled: pushed %d of 3", len(pusher.pushed))
	}
}
