// Package version carries build metadata for the leadgate service.
// The package-level variables are overwritten at link time:
//
//	go build -ldflags "-X leadgate/internal/version.Version=v1.2.0 -X leadgate/internal/version.GitCommit=$(git rev-parse --short HEAD)"
package version

import (
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"
)

var (
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// Info is the build metadata plus per-process runtime identity.
type Info struct {
	Version    string `json:"version"`
	GitCommit  string `json:"git_commit"`
	BuildDate  string `json:"build_date"`
	InstanceID string `json:"instance_id"`
	Hostname   string `json:"hostname"`
}

var (
	once sync.Once
	info Info
)

// GetInfo returns build metadata. The instance ID and hostname are resolved
// once per process.
func GetInfo() Info {
	once.Do(func() {
		hostname, err := os.Hostname()
		if err != nil || hostname == "" {
			hostname = "unknown"
		}
		info = Info{
			Version:    Version,
			GitCommit:  GitCommit,
			BuildDate:  BuildDate,
			InstanceID: uuid.NewString(),
			Hostname:   hostname,
		}
	})
	return info
}

// String formats version info for CLI display.
func (i Info) String() string {
	return fmt.Sprintf("leadgate %s (commit: %s, built: %s)", i.Version, i.GitCommit, i.BuildDate)
}

// UserAgent is sent on outbound calls to third-party APIs.
func (i Info) UserAgent() string {
	return "leadgate/" + i.Version
}
