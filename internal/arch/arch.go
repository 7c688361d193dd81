// Package arch defines the CPU architectures rootfs-composer can produce
// root filesystems for and maps them to the names used by the external
// tools involved (Alpine release mirrors, debootstrap and qemu-user).
package arch

import (
	"errors"
	"fmt"
	"runtime"
)

// Arch is a supported target architecture. The zero value is invalid.
type Arch int

const (
	ArchAmd64 Arch = iota + 1
	ArchArm64
	ArchArmhf
	ArchI386
)

// All lists every supported architecture in canonical order.
var All = []Arch{ArchAmd64, ArchArm64, ArchArmhf, ArchI386}

// Scheme selects the naming convention of one external tool.
type Scheme int

const (
	// SchemeCanonical is the Debian-style token used in output paths.
	SchemeCanonical Scheme = iota
	// SchemeAlpine is used in Alpine release download URLs.
	SchemeAlpine
	// SchemeDebootstrap is passed to debootstrap --arch.
	SchemeDebootstrap
	// SchemeQemu names the qemu-user binary and its binfmt entry.
	SchemeQemu
)

func (s Scheme) String() string {
	switch s {
	case SchemeCanonical:
		return "canonical"
	case SchemeAlpine:
		return "alpine"
	case SchemeDebootstrap:
		return "debootstrap"
	case SchemeQemu:
		return "qemu"
	}
	return fmt.Sprintf("scheme(%d)", int(s))
}

// ErrUnsupported is matched by every UnsupportedError.
var ErrUnsupported = errors.New("unsupported architecture")

// UnsupportedError is returned when a token has no entry in the lookup
// tables.
type UnsupportedError struct {
	Token  string
	Scheme Scheme
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("unsupported architecture %q for %s naming", e.Token, e.Scheme)
}

func (e *UnsupportedError) Is(target error) bool {
	return target == ErrUnsupported
}

var aliases = map[string]Arch{
	"amd64":   ArchAmd64,
	"x86_64":  ArchAmd64,
	"arm64":   ArchArm64,
	"aarch64": ArchArm64,
	"armhf":   ArchArmhf,
	"i386":    ArchI386,
	"x86":     ArchI386,
}

// Parse accepts the canonical tokens and the common aliases
// (x86_64, aarch64, x86).
func Parse(token string) (Arch, error) {
	if a, ok := aliases[token]; ok {
		return a, nil
	}
	return 0, &UnsupportedError{Token: token, Scheme: SchemeCanonical}
}

// Name returns the architecture's token in the given scheme. It panics
// on an invalid Arch value, which can only be produced by converting an
// arbitrary integer.
func (a Arch) Name(s Scheme) string {
	switch s {
	case SchemeAlpine:
		switch a {
		case ArchAmd64:
			return "x86_64"
		case ArchArm64:
			return "aarch64"
		case ArchArmhf:
			return "armhf"
		case ArchI386:
			return "x86"
		}
	case SchemeQemu:
		switch a {
		case ArchAmd64:
			return "x86_64"
		case ArchArm64:
			return "aarch64"
		case ArchArmhf:
			return "arm"
		case ArchI386:
			return "i386"
		}
	case SchemeCanonical, SchemeDebootstrap:
		switch a {
		case ArchAmd64:
			return "amd64"
		case ArchArm64:
			return "arm64"
		case ArchArmhf:
			return "armhf"
		case ArchI386:
			return "i386"
		}
	}
	panic(fmt.Sprintf("invalid architecture %d for %s naming", int(a), s))
}

func (a Arch) String() string {
	if a < ArchAmd64 || a > ArchI386 {
		return fmt.Sprintf("arch(%d)", int(a))
	}
	return a.Name(SchemeCanonical)
}

// ResolveName maps an architecture token to the name the external tool
// behind scheme expects.
func ResolveName(token string, s Scheme) (string, error) {
	a, err := Parse(token)
	if err != nil {
		return "", &UnsupportedError{Token: token, Scheme: s}
	}
	return a.Name(s), nil
}

// Ported reports whether Ubuntu publishes this architecture on the
// ports mirror instead of the primary archive.
func (a Arch) Ported() bool {
	return a == ArchArm64 || a == ArchArmhf
}

// RunsOn reports whether binaries for a execute natively on host.
func (a Arch) RunsOn(host Arch) bool {
	if a == host {
		return true
	}
	return a == ArchI386 && host == ArchAmd64
}

// QemuBinary is the statically linked qemu-user binary name.
func (a Arch) QemuBinary() string {
	return "qemu-" + a.Name(SchemeQemu) + "-static"
}

// BinfmtEntry is the binfmt_misc entry name registered by
// qemu-user-static.
func (a Arch) BinfmtEntry() string {
	return "qemu-" + a.Name(SchemeQemu)
}

// goarch is the architecture Host reports, replaced in tests.
var goarch = runtime.GOARCH

// Host returns the architecture of the running machine.
func Host() (Arch, error) {
	switch goarch {
	case "amd64":
		return ArchAmd64, nil
	case "arm64":
		return ArchArm64, nil
	case "arm":
		return ArchArmhf, nil
	case "386":
		return ArchI386, nil
	}
	return 0, &UnsupportedError{Token: goarch, Scheme: SchemeCanonical}
}
