// Package version carries build metadata set through -ldflags.
package version

import "runtime"

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// Info is build metadata in serializable form.
type Info struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
	Go      string `json:"go"`
}

// Current returns the running binary's build metadata.
func Current() Info {
	return Info{Version: Version, Commit: Commit, Date: Date, Go: runtime.Version()}
}

// String renders build metadata on one line.
func String() string {
	info := Current()
	return "voxlate " + info.Version + " (commit=" + info.Commit + ", date=" + info.Date + ", go=" + info.Go + ")"
}
