// Package utils holds small shared helpers and the build metadata stamped in
// at link time:
//
//	go build -ldflags "-X github.com/memories-sh/memories-go/pkg/utils.Version=v0.3.0"
package utils

var (
	Version   = "dev"
	Sha       = "HEAD"
	Buildtime = "dev"
)

// UserAgent identifies this build on outbound HTTP requests.
func UserAgent() string {
	return "memories-go/" + Version
}
