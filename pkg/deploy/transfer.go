package deploy

import (
	"context"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/huanfeng/apkdeploy-cli/internal/device"
	"github.com/huanfeng/apkdeploy-cli/internal/errors"
	"github.com/huanfeng/apkdeploy-cli/pkg/models"
)

// DefaultMaxParallelPushes caps concurrent pushes when no limit is configured.
const DefaultMaxParallelPushes = 6

// ExcludeFunc reports whether a staged file must not be pushed.
type ExcludeFunc func(path string) bool

// ExcludePackages excludes .apk files, which are installed instead.
func ExcludePackages(path string) bool {
	return strings.EqualFold(filepath.Ext(path), packageExt)
}

// Pusher copies a local file or directory tree to the device.
type Pusher interface {
	Push(ctx context.Context, local, remote string) error
}

// TransferProgress is reported after each push finishes.
type TransferProgress struct {
	Entry string
	Done  int
	Total int
	Err   error
}

// PlanTransfer computes the smallest set of entries covering stageRoot
// without any excluded file. adb push has no exclusion option, so every
// directory on the path from an excluded file up to stageRoot is expanded
// into its children instead of being pushed whole.
func PlanTransfer(stageRoot string, exclude ExcludeFunc) (*models.TransferPlan, error) {
	root := filepath.Clean(stageRoot)
	if exclude == nil {
		exclude = ExcludePackages
	}

	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeFileSystem, "STAGE_DIR_UNREADABLE",
			"failed to walk the staging directory").WithContext("stage_dir", root)
	}
	sort.Strings(files)

	excluded := make(map[string]bool)
	individual := make(map[string]bool)
	plan := &models.TransferPlan{}

	for _, f := range files {
		if !exclude(f) {
			continue
		}
		excluded[f] = true
		plan.Excluded = append(plan.Excluded, f)

		for dir := filepath.Dir(f); dir != root && len(dir) > len(root); dir = filepath.Dir(dir) {
			individual[dir] = true
		}
		individual[root] = true
	}

	for dir := range individual {
		plan.IndividualDirs = append(plan.IndividualDirs, dir)
	}
	sort.Slice(plan.IndividualDirs, func(i, j int) bool {
		a, b := plan.IndividualDirs[i], plan.IndividualDirs[j]
		if len(a) != len(b) {
			return len(a) > len(b)
		}
		return a < b
	})

	seen := make(map[string]bool)
	for _, dir := range plan.IndividualDirs {
		children, err := os.ReadDir(dir)
		if err != nil {
			return nil, errors.WrapError(err, errors.ErrorTypeFileSystem, "STAGE_DIR_UNREADABLE",
				"failed to list a staging directory").WithContext("dir", dir)
		}
		for _, child := range children {
			entry := filepath.Join(dir, child.Name())
			if excluded[entry] || individual[entry] || seen[entry] {
				continue
			}
			seen[entry] = true
			plan.Entries = append(plan.Entries, entry)
		}
	}

	if len(plan.Entries) == 0 {
		plan.Entries = []string{root}
	}
	return plan, nil
}

// RemotePath maps a staged path onto the device: the path relative to the
// stage root is joined to remoteRoot with forward slashes. An entry outside
// the stage root keeps only its base name.
func RemotePath(entry, stageRoot, remoteRoot string) string {
	rel, err := filepath.Rel(filepath.Clean(stageRoot), filepath.Clean(entry))
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		rel = filepath.Base(entry)
	}
	return path.Join(toSlash(remoteRoot), toSlash(rel))
}

// toSlash also converts backslashes on hosts where they are not separators;
// device paths never contain them.
func toSlash(p string) string {
	return strings.ReplaceAll(filepath.ToSlash(p), `\`, "/")
}

// PushPlan pushes every entry of plan with at most maxParallel pushes in
// flight. A failed push does not stop the others; all failures are returned
// together as one PushFailed error.
func PushPlan(ctx context.Context, pusher Pusher, plan *models.TransferPlan, stageRoot, remoteRoot string,
	maxParallel int, onProgress func(TransferProgress)) error {
	if maxParallel <= 0 {
		maxParallel = DefaultMaxParallelPushes
	}

	total := len(plan.Entries)
	done := 0
	hook := func(r device.Result[struct{}]) {
		done++
		if onProgress != nil {
			onProgress(TransferProgress{Entry: r.Key, Done: done, Total: total, Err: r.Err})
		}
	}

	pool := device.NewManager[struct{}](
		device.WithWorkerLimit[struct{}](maxParallel),
		device.WithResultHook[struct{}](hook),
	)
	results := pool.Run(ctx, plan.Entries, func(ctx context.Context, entry string) (struct{}, error) {
		return struct{}{}, pusher.Push(ctx, entry, RemotePath(entry, stageRoot, remoteRoot))
	})

	failed := make(map[string]error)
	for _, r := range results {
		if r.Err != nil {
			failed[r.Key] = r.Err
		}
	}
	if len(results) < total && ctx.Err() != nil {
		return ctx.Err()
	}
	if len(failed) > 0 {
		return errors.NewPushFailed(failed)
	}
	return nil
}

// PlanAndPush plans the transfer of stageRoot and pushes it to remoteRoot.
func PlanAndPush(ctx context.Context, pusher Pusher, stageRoot string, exclude ExcludeFunc, remoteRoot string,
	maxParallel int, onProgress func(TransferProgress)) (*models.TransferPlan, error) {
	plan, err := PlanTransfer(stageRoot, exclude)
	if err != nil {
		return nil, err
	}
	return plan, PushPlan(ctx, pusher, plan, stageRoot, remoteRoot, maxParallel, onProgress)
}
