package util

import (
	"os"
)

// UserHome returns the directory the default working directory lives under.
// It tries os.UserHomeDir, then $HOME and %USERPROFILE%, then the current
// directory. The keystore creates its directory 0700 wherever this lands.
func UserHome() string {
	home, err := os.UserHomeDir()
	if err == nil {
		return home
	}
	for _, env := range []string{"HOME", "USERPROFILE"} {
		if v := os.Getenv(env); v != "" {
			log.WithError(err).WithField("env", env).Warn("os.UserHomeDir failed, using environment")
			return v
		}
	}
	if wd, wdErr := os.Getwd(); wdErr == nil {
		log.WithError(err).Warn("no home directory, using working directory")
		return wd
	}
	panic("go-onionpath: unable to determine a home directory; set $HOME")
}
