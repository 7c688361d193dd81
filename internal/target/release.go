package target

import (
	"fmt"
	"strings"
)

// OS names the distribution family a Target belongs to. It doubles as the
// top-level directory below the output root.
type OS string

const (
	OSAlpine OS = "alpine"
	OSUbuntu OS = "ubuntu"
)

// DisplayName is the capitalized name used in the metadata index.
func (o OS) DisplayName() string {
	if o == "" {
		return ""
	}
	return strings.ToUpper(string(o[:1])) + string(o[1:])
}

// Release is one distribution release.
type Release struct {
	Version string
	// Codename is what apt and debootstrap call the suite, e.g. "jammy".
	Codename string
	// Name is the human-readable release name, e.g. "Jammy Jellyfish".
	Name string
}

var ubuntuReleases = map[string]Release{
	"14.04": {Version: "14.04", Codename: "trusty", Name: "Trusty Tahr"},
	"16.04": {Version: "16.04", Codename: "xenial", Name: "Xenial Xerus"},
	"18.04": {Version: "18.04", Codename: "bionic", Name: "Bionic Beaver"},
	"20.04": {Version: "20.04", Codename: "focal", Name: "Focal Fossa"},
	"22.04": {Version: "22.04", Codename: "jammy", Name: "Jammy Jellyfish"},
	"24.04": {Version: "24.04", Codename: "noble", Name: "Noble Numbat"},
}

// UbuntuRelease looks up an Ubuntu release by its version number.
func UbuntuRelease(version string) (Release, error) {
	r, ok := ubuntuReleases[version]
	if !ok {
		return Release{}, fmt.Errorf("unknown Ubuntu release %q", version)
	}
	return r, nil
}

// AlpineRelease describes an Alpine point release such as "3.20.3".
func AlpineRelease(version string) (Release, error) {
	parts := strings.Split(version, ".")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return Release{}, fmt.Errorf("invalid Alpine version %q", version)
	}
	return Release{
		Version: version,
		Name:    fmt.Sprintf("%s-%s", OSAlpine.DisplayName(), version),
	}, nil
}

// Branch returns the major.minor part of the version, which is how
// Alpine mirrors name release directories (v3.20).
func (r Release) Branch() string {
	parts := strings.SplitN(r.Version, ".", 3)
	if len(parts) < 2 {
		return r.Version
	}
	return parts[0] + "." + parts[1]
}

// DisplayName is the codename shown in the metadata index.
func (r Release) DisplayName() string {
	if r.Name != "" {
		return r.Name
	}
	return r.Version
}

// ReleaseFor resolves a version for the given OS.
func ReleaseFor(os OS, version string) (Release, error) {
	switch os {
	case OSUbuntu:
		return UbuntuRelease(version)
	case OSAlpine:
		return AlpineRelease(version)
	}
	return Release{}, fmt.Errorf("unknown operating system %q", os)
}
