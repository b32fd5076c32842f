package buildinfo

import "fmt"

// Set at build time, for example:
//
//	-X 'github.com/m3rciful/financebot/core/buildinfo.Version=v0.3.0'
//	-X 'github.com/m3rciful/financebot/core/buildinfo.Commit=abcdef0'
//	-X 'github.com/m3rciful/financebot/core/buildinfo.Date=2026-01-30T12:00:00Z'
var (
	Version = "dev"
	Commit  = "local"
	Date    = ""
)

// String renders the build identity for startup logs.
func String() string {
	if Date == "" {
		return fmt.Sprintf("%s (%s)", Version, Commit)
	}
	return fmt.Sprintf("%s (%s, %s)", Version, Commit, Date)
}
