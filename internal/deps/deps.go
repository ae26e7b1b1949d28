// Package deps checks the external tools the daemon shells out to.
package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"derivate/internal/config"
)

// Requirement is one external tool the daemon may invoke.
type Requirement struct {
	Name        string
	Command     string
	Description string
	// Optional tools degrade a feature instead of blocking startup.
	Optional bool
}

// Status reports the availability of one requirement.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Requirements lists the configured tools. The encoder is required only
// when converter rules exist; the image converter only when the pdf type
// is enabled.
func Requirements(cfg *config.Config) []Requirement {
	hasRules := len(cfg.ActiveRules("audio")) > 0 || len(cfg.ActiveRules("video")) > 0
	return []Requirement{
		{
			Name:        "Encoder",
			Command:     cfg.Tools.FFmpeg,
			Description: "Transcodes audio and video originals",
			Optional:    !hasRules,
		},
		{
			Name:        "Image converter",
			Command:     cfg.Tools.Convert,
			Description: "Assembles image pages into a PDF",
			Optional:    !cfg.TypeEnabled("pdf"),
		},
	}
}

// Check evaluates every requirement against PATH.
func Check(cfg *config.Config) []Status {
	requirements := Requirements(cfg)
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		results = append(results, lookup(req))
	}
	return results
}

// Missing reports whether any non-optional tool is unavailable.
func Missing(statuses []Status) []Status {
	var missing []Status
	for _, status := range statuses {
		if !status.Available && !status.Optional {
			missing = append(missing, status)
		}
	}
	return missing
}

func lookup(req Requirement) Status {
	command := strings.TrimSpace(req.Command)
	status := Status{
		Name:        req.Name,
		Command:     command,
		Description: req.Description,
		Optional:    req.Optional,
	}
	if command == "" {
		status.Detail = "command not configured"
		return status
	}
	if _, err := exec.LookPath(command); err != nil {
		status.Detail = fmt.Sprintf("binary %q not found", command)
		return status
	}
	status.Available = true
	return status
}
