package system

import (
	"fmt"
	"os"
	"path/filepath"
)

// DiskUsage describes the filesystem holding a path.
type DiskUsage struct {
	Path      string  `json:"path"`
	Total     uint64  `json:"total"`
	Used      uint64  `json:"used"`
	Free      uint64  `json:"free"`
	Available uint64  `json:"available"`
	UsedPct   float64 `json:"used_pct"`
}

// CheckDiskSpace returns usage for the filesystem holding path. A path that
// does not exist yet is resolved through its nearest existing parent.
func CheckDiskSpace(path string) (*DiskUsage, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	existing := absPath
	for {
		if _, err := os.Stat(existing); err == nil {
			break
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			break
		}
		existing = parent
	}

	usage, err := getDiskUsage(existing)
	if err != nil {
		return nil, err
	}
	usage.Path = absPath
	if usage.Total > 0 {
		usage.UsedPct = float64(usage.Used) / float64(usage.Total) * 100
	}
	return usage, nil
}

// RequireFreeSpace fails when fewer than min bytes are available under path.
func RequireFreeSpace(path string, min uint64) error {
	usage, err := CheckDiskSpace(path)
	if err != nil {
		return err
	}
	if usage.Available < min {
		return fmt.Errorf("only %s available under %s, need %s", FormatBytes(usage.Available), path, FormatBytes(min))
	}
	return nil
}

// FormatBytes renders a byte count with a binary unit.
func FormatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
