// Package deps checks the external binaries podforge shells out to.
package deps

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"podforge/internal/config"
)

// Requirement defines an external binary the pipeline relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a requirement.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// ForConfig lists the binaries cfg needs.
func ForConfig(cfg *config.Config) []Requirement {
	ffmpeg := "ffmpeg"
	if cfg != nil && strings.TrimSpace(cfg.Pipeline.FFmpegBinary) != "" {
		ffmpeg = strings.TrimSpace(cfg.Pipeline.FFmpegBinary)
	}
	return []Requirement{
		{Name: "FFmpeg", Command: ffmpeg, Description: "Joins speech segments and mixes background music"},
	}
}

// CheckBinaries evaluates the provided requirements and reports availability.
// Commands containing a path separator are checked in place; bare names are
// resolved on PATH and reported with the resolved location.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		status := Status{
			Name:        req.Name,
			Command:     strings.TrimSpace(req.Command),
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		resolved, err := Resolve(status.Command)
		if err != nil {
			status.Detail = err.Error()
		} else {
			status.Command = resolved
			status.Available = true
		}
		results = append(results, status)
	}
	return results
}

// Resolve returns the executable path for command.
func Resolve(command string) (string, error) {
	command = strings.TrimSpace(command)
	if command == "" {
		return "", fmt.Errorf("command not configured")
	}
	if !strings.ContainsRune(command, filepath.Separator) {
		path, err := exec.LookPath(command)
		if err != nil {
			return "", fmt.Errorf("binary %q not found on PATH", command)
		}
		return path, nil
	}
	info, err := os.Stat(command)
	if err != nil || info.IsDir() || info.Mode().Perm()&0o111 == 0 {
		return "", fmt.Errorf("binary %q is not an executable file", command)
	}
	return command, nil
}

// Missing returns the names of unavailable required dependencies.
func Missing(statuses []Status) []string {
	var names []string
	for _, status := range statuses {
		if !status.Available && !status.Optional {
			names = append(names, status.Name)
		}
	}
	return names
}
