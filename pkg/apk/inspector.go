// Package apk reads package identity and metadata from APK files.
package apk

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/huanfeng/apkdeploy-cli/internal/errors"
	"github.com/huanfeng/apkdeploy-cli/pkg/models"
)

// Inspector resolves the identity of a package file. Results are never
// cached: a rebuilt package must be inspected again.
type Inspector interface {
	// Inspect returns the package identifier, or the version code when
	// wantVersion is set.
	Inspect(ctx context.Context, apkPath string, wantVersion bool) (string, error)
	// Identity returns identifier and version code together.
	Identity(ctx context.Context, apkPath string) (models.PackageIdentity, error)
}

// Backend is an Inspector that can take part in a Chain.
type Backend interface {
	Inspector
	Name() string
	// Priority orders backends; lower runs first.
	Priority() int
	Available() bool
	// Describe returns everything the backend can read about the package.
	Describe(ctx context.Context, apkPath string) (*models.PackageInfo, error)
}

// Logger interface for chain logging
type Logger interface {
	Debug(format string, args ...interface{})
	Warn(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Warn(string, ...interface{})  {}

// Chain tries its backends in priority order until one succeeds.
type Chain struct {
	backends []Backend
	logger   Logger
}

// NewChain creates a chain from the given backends.
func NewChain(logger Logger, backends ...Backend) *Chain {
	if logger == nil {
		logger = nopLogger{}
	}
	c := &Chain{logger: logger}
	for _, b := range backends {
		c.Add(b)
	}
	return c
}

// Add adds a backend to the chain
func (c *Chain) Add(b Backend) {
	c.backends = append(c.backends, b)
	sort.SliceStable(c.backends, func(i, j int) bool {
		return c.backends[i].Priority() < c.backends[j].Priority()
	})
}

// Backends returns the backends in the order they are tried.
func (c *Chain) Backends() []Backend {
	return append([]Backend(nil), c.backends...)
}

// Inspect implements Inspector.
func (c *Chain) Inspect(ctx context.Context, apkPath string, wantVersion bool) (string, error) {
	id, err := c.Identity(ctx, apkPath)
	if err != nil {
		return "", err
	}
	if wantVersion {
		return id.VersionCode, nil
	}
	return id.PackageName, nil
}

// Identity implements Inspector.
func (c *Chain) Identity(ctx context.Context, apkPath string) (models.PackageIdentity, error) {
	var id models.PackageIdentity
	err := c.each(apkPath, func(b Backend) error {
		var err error
		id, err = b.Identity(ctx, apkPath)
		return err
	})
	return id, err
}

// Describe returns the fullest description the first working backend gives.
func (c *Chain) Describe(ctx context.Context, apkPath string) (*models.PackageInfo, error) {
	var info *models.PackageInfo
	err := c.each(apkPath, func(b Backend) error {
		var err error
		info, err = b.Describe(ctx, apkPath)
		return err
	})
	return info, err
}

func (c *Chain) each(apkPath string, fn func(Backend) error) error {
	var failures []string
	var lastErr error

	for _, b := range c.backends {
		if !b.Available() {
			c.logger.Debug("Skipping unavailable inspector: %s", b.Name())
			continue
		}

		start := time.Now()
		err := fn(b)
		if err == nil {
			c.logger.Debug("Inspected %s using %s (took %v)", apkPath, b.Name(), time.Since(start))
			return nil
		}
		c.logger.Warn("Inspector %s failed: %v", b.Name(), err)
		failures = append(failures, fmt.Sprintf("%s: %v", b.Name(), err))
		lastErr = err
	}

	if lastErr == nil {
		return errors.NewPackageInfoUnavailable(apkPath, "identity").
			WithSuggestion("Run 'apkdeploy doctor' to check that aapt is installed")
	}
	if len(failures) == 1 {
		return lastErr
	}
	e := errors.AsDeployError(lastErr)
	return e.WithContext("inspectors", strings.Join(failures, "; "))
}
