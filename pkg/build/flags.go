// SPDX-License-Identifier: MIT
//
// Package build exposes the metadata stamped into the soundbridge binary
// at link time:
//
//	go build -ldflags "-X github.com/MatthiasKeysermann/ICALA/pkg/build.buildName=soundbridge \
//	  -X github.com/MatthiasKeysermann/ICALA/pkg/build.buildVersion=0.3.0 ..."
//
// Development builds run without ldflags; Initialize reports the missing
// fields and the "dev" placeholders stay in place.
package build

import (
	"fmt"
	"strings"
)

// Info is the build metadata of the running binary.
type Info struct {
	Name        string
	Description string
	Time        string
	Commit      string
	Version     string
}

var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildInfo    = defaultInfo()
)

func defaultInfo() *Info {
	return &Info{
		Name:        "soundbridge",
		Description: "Microphone spectrum analyzer and sine-bank resynthesizer",
		Time:        "dev",
		Commit:      "dev",
		Version:     "dev",
	}
}

// Initialize copies the ldflags variables into the build info. Every
// field that was not stamped is listed in the returned error; the fields
// that were stamped are applied regardless.
func Initialize() error {
	var missing []string
	set := func(dst *string, v, name string) {
		if v == "" {
			missing = append(missing, name)
			return
		}
		*dst = v
	}
	set(&buildInfo.Name, buildName, "BuildName")
	set(&buildInfo.Time, buildTime, "BuildTime")
	set(&buildInfo.Commit, buildCommit, "BuildCommit")
	set(&buildInfo.Version, buildVersion, "BuildVersion")

	if len(missing) > 0 {
		return fmt.Errorf("%s not set", strings.Join(missing, ", "))
	}
	return nil
}

// Get returns the current build information.
func Get() *Info {
	return buildInfo
}

// String renders the info as "name version (commit, time)".
func (i *Info) String() string {
	return fmt.Sprintf("%s %s (%s, %s)", i.Name, i.Version, i.Commit, i.Time)
}
