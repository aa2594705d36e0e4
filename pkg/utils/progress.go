package utils

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// ProgressBar represents a progress bar. It is safe for concurrent use.
type ProgressBar struct {
	mu          sync.Mutex
	out         io.Writer
	total       int64
	current     int64
	description string
	startTime   time.Time
	width       int
	showETA     bool
}

// NewProgressBar creates a new progress bar
func NewProgressBar(total int64, description string) *ProgressBar {
	return &ProgressBar{
		out:         os.Stdout,
		total:       total,
		current:     0,
		description: description,
		startTime:   time.Now(),
		width:       40,
		showETA:     true,
	}
}

// SetOutput redirects rendering.
func (pb *ProgressBar) SetOutput(w io.Writer) {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	pb.out = w
}

// Update updates the progress bar
func (pb *ProgressBar) Update(current int64) {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	pb.current = current
	pb.render()
}

// Finish completes the progress bar
func (pb *ProgressBar) Finish() {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	pb.current = pb.total
	pb.render()
	fmt.Fprintln(pb.out)
}

// render draws the bar; callers hold pb.mu.
func (pb *ProgressBar) render() {
	if pb.total <= 0 {
		return
	}

	current := pb.current
	if current > pb.total {
		current = pb.total
	}

	percentage := float64(current) / float64(pb.total) * 100
	filled := int(float64(pb.width) * float64(current) / float64(pb.total))

	bar := strings.Repeat("█", filled) + strings.Repeat("░", pb.width-filled)

	elapsed := time.Since(pb.startTime)
	var eta string
	if pb.showETA && current > 0 {
		totalTime := time.Duration(float64(elapsed) * float64(pb.total) / float64(current))
		remaining := totalTime - elapsed
		if remaining > 0 {
			eta = fmt.Sprintf(" ETA: %v", remaining.Round(time.Second))
		}
	}

	fmt.Fprintf(pb.out, "\r%s [%s] %.1f%% (%d/%d)%s",
		pb.description, bar, percentage, current, pb.total, eta)
}
