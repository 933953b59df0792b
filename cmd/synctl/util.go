package main

import (
	"os"
	"path/filepath"
)

// homeSubdir joins the user's home directory with elems, falling back
// to a relative path under the current directory if the home
// directory cannot be resolved.
func homeSubdir(elems ...string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(elems...)
	}
	return filepath.Join(append([]string{home}, elems...)...)
}

// deviceSecretDir is where the device id and bearer access token are
// persisted (spec §6 Persisted state layout).
func deviceSecretDir() string {
	return homeSubdir(".synapse", "secrets")
}
