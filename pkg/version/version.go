// Package version provides version information for the PlanIt router.
package version

// Version is the current version of the PlanIt routing tier.
const Version = "0.1.0-dev"

// GetVersion returns the current version string.
func GetVersion() string {
	return Version
}
