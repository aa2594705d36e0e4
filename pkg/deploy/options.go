package deploy

import (
	"time"

	"github.com/huanfeng/apkdeploy-cli/pkg/apk"
)

// Logger is the subset of the application logger used here.
type Logger interface {
	Debug(format string, args ...interface{})
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}

type options struct {
	logger   Logger
	preparer BuildPreparer
	icons    *apk.IconExtractor
	progress func(TransferProgress)
	now      func() time.Time
}

// Option configures the packager, archiver, controller and target.
type Option func(*options)

// WithLogger sets the logger.
func WithLogger(l Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithPreparer sets the step run before packaging or deploying a build that
// is not prebuilt.
func WithPreparer(p BuildPreparer) Option {
	return func(o *options) {
		o.preparer = p
	}
}

// WithIconExtractor makes archives include a launcher icon preview.
func WithIconExtractor(e *apk.IconExtractor) Option {
	return func(o *options) {
		o.icons = e
	}
}

// WithTransferProgress receives a callback after every finished push.
func WithTransferProgress(fn func(TransferProgress)) Option {
	return func(o *options) {
		o.progress = fn
	}
}

func newOptions(opts []Option) options {
	o := options{
		logger: nopLogger{},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
