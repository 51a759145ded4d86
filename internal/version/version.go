// Package version provides build-time metadata for the llmgate service.
// These variables are populated via -ldflags during the release build.
package version

import (
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"
)

// Populated via -ldflags, e.g.
// -X llmgate/internal/version.Version=v1.0.0
var (
	Version   = "unknown" // semantic version or git describe output
	BuildDate = "unknown" // ISO 8601 UTC build timestamp
	GitCommit = "unknown" // commit SHA of the source tree
)

// Info holds build metadata plus per-process runtime identity.
type Info struct {
	Version    string `json:"version"`
	GitCommit  string `json:"git_commit"`
	BuildDate  string `json:"build_date"`
	InstanceID string `json:"instance_id"`
	Hostname   string `json:"hostname"`
}

var infoOnce = sync.OnceValue(func() Info {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return Info{
		Version:    Version,
		GitCommit:  GitCommit,
		BuildDate:  BuildDate,
		InstanceID: uuid.NewString(),
		Hostname:   hostname,
	}
})

// GetInfo returns build metadata and runtime identity. The instance ID and
// hostname are computed once per process.
func GetInfo() Info {
	return infoOnce()
}

// String formats version info for CLI display.
func (i Info) String() string {
	return fmt.Sprintf("llmgate version %s (commit: %s, built: %s)", i.Version, i.GitCommit, i.BuildDate)
}
