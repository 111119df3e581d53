package buildinfo

// Set at build time, for example:
//
//	go build -ldflags "-X 'github.com/m3rciful/relaybot/core/buildinfo.Version=v0.3.0' \
//	  -X 'github.com/m3rciful/relaybot/core/buildinfo.Commit=$(git rev-parse --short HEAD)' \
//	  -X 'github.com/m3rciful/relaybot/core/buildinfo.Date=$(date -u +%FT%TZ)'" ./cmd/relaybot
var (
	// Version reports the semantic version or tag of the build.
	Version = "dev"
	// Commit reports the source control commit used for the build.
	Commit = "local"
	// Date reports the build timestamp in RFC3339 format.
	Date = ""
)
