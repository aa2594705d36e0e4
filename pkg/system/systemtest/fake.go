// Package systemtest provides a scripted system.Runner for tests.
package systemtest

import (
	"context"
	"strings"
	"sync"

	"github.com/huanfeng/apkdeploy-cli/pkg/system"
)

// Call records one invocation.
type Call struct {
	Name string
	Args []string
}

// Line joins the arguments with spaces.
func (c Call) Line() string {
	return strings.Join(c.Args, " ")
}

// HandlerFunc produces the result for one invocation.
type HandlerFunc func(ctx context.Context, name string, args []string) (*system.CommandResult, error)

// FakeRunner records calls and answers them with Handler.
// With no Handler every command succeeds with empty output.
type FakeRunner struct {
	Handler HandlerFunc

	mu    sync.Mutex
	calls []Call
}

// Run implements system.Runner.
func (f *FakeRunner) Run(ctx context.Context, name string, args ...string) (*system.CommandResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, Call{Name: name, Args: append([]string(nil), args...)})
	f.mu.Unlock()

	if f.Handler == nil {
		return &system.CommandResult{}, nil
	}
	return f.Handler(ctx, name, args)
}

// Calls returns a copy of the recorded calls.
func (f *FakeRunner) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// Lines returns the argument line of every call, in order.
func (f *FakeRunner) Lines() []string {
	calls := f.Calls()
	lines := make([]string, len(calls))
	for i, c := range calls {
		lines[i] = c.Line()
	}
	return lines
}

// Find returns the argument lines containing substr.
func (f *FakeRunner) Find(substr string) []string {
	var matched []string
	for _, line := range f.Lines() {
		if strings.Contains(line, substr) {
			matched = append(matched, line)
		}
	}
	return matched
}

// Ok is a successful result with output.
func Ok(output string) *system.CommandResult {
	return &system.CommandResult{Output: output}
}

// Exit is a result with the given exit code and output.
func Exit(code int, output string) *system.CommandResult {
	return &system.CommandResult{Output: output, ExitCode: code}
}
