// Package misc keeps build related information.
package misc

import (
	"os"
	"path/filepath"
	"strings"
)

// Set by linker: -X cascade/misc.version=... -X cascade/misc.gitHash=...
var (
	version = "dev"
	gitHash = "unknown"
	appName = ""
)

// GetVersion returns version of the program.
func GetVersion() string {
	return version
}

// GetGitHash returns git commit the program was built from.
func GetGitHash() string {
	return gitHash
}

// GetAppName returns name of the program, by default derived from executable name.
func GetAppName() string {
	if len(appName) > 0 {
		return appName
	}
	name := filepath.Base(os.Args[0])
	name = strings.TrimSuffix(name, filepath.Ext(name))
	if len(name) == 0 {
		return "cascade"
	}
	return name
}
