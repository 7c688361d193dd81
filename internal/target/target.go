// Package target enumerates the (release, architecture) matrix and
// derives the on-disk location of everything produced for one entry.
package target

import (
	"fmt"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/osbuild/rootfs-composer/internal/arch"
)

// Target is one (release, architecture) pair to process. ArchToken is
// kept as configured so that an unsupported token fails only this
// Target when it is resolved.
type Target struct {
	OS        OS
	Release   Release
	ArchToken string
}

func (t Target) String() string {
	return fmt.Sprintf("%s-%s-%s", t.OS, t.Release.Version, t.ArchToken)
}

// Arch resolves the architecture token.
func (t Target) Arch() (arch.Arch, error) {
	return arch.Parse(t.ArchToken)
}

// Fields returns the logrus fields identifying the Target.
func (t Target) Fields() logrus.Fields {
	return logrus.Fields{
		"os":      string(t.OS),
		"version": t.Release.Version,
		"arch":    t.ArchToken,
	}
}

// Matrix returns the cartesian product of releases and architecture
// tokens, release-major.
func Matrix(os OS, releases []Release, archTokens []string) []Target {
	targets := make([]Target, 0, len(releases)*len(archTokens))
	for _, r := range releases {
		for _, a := range archTokens {
			targets = append(targets, Target{OS: os, Release: r, ArchToken: a})
		}
	}
	return targets
}

// Filter keeps the targets whose version and architecture are in the
// given sets. An empty set matches everything.
func Filter(targets []Target, versions, archTokens []string) []Target {
	match := func(set []string, v string) bool {
		if len(set) == 0 {
			return true
		}
		for _, s := range set {
			if s == v {
				return true
			}
		}
		return false
	}

	var out []Target
	for _, t := range targets {
		if match(versions, t.Release.Version) && match(archTokens, t.ArchToken) {
			out = append(out, t)
		}
	}
	return out
}

// Layout maps Targets to paths below Root, which is the per-OS output
// directory (<output>/<os>).
type Layout struct {
	Root string
}

// Dir is <root>/<version>/<arch>.
func (l Layout) Dir(t Target) string {
	return filepath.Join(l.Root, t.Release.Version, t.ArchToken)
}

// ArchiveName is <os>-<version>-<arch>-rootfs.tar.gz.
func ArchiveName(t Target) string {
	return fmt.Sprintf("%s-%s-%s-rootfs.tar.gz", t.OS, t.Release.Version, t.ArchToken)
}

func (l Layout) ArchivePath(t Target) string {
	return filepath.Join(l.Dir(t), ArchiveName(t))
}

func (l Layout) ChecksumPath(t Target) string {
	return l.ArchivePath(t) + ".md5"
}

// WorkingRoot is the transient tree a build populates before packaging.
func (l Layout) WorkingRoot(t Target) string {
	return filepath.Join(l.Dir(t), "rootfs")
}
