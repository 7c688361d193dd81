// Package artifact finds packaged root filesystems below an output
// directory.
package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/osbuild/rootfs-composer/internal/checksum"
	"github.com/osbuild/rootfs-composer/internal/target"
)

// ArchiveSuffix ends the name of every packaged root filesystem.
const ArchiveSuffix = "-rootfs.tar.gz"

// Artifact is one archive stored at <output>/<os>/<version>/<arch>/.
type Artifact struct {
	OS      target.OS
	Version string
	Arch    string
	Path    string
	Size    int64
	// MD5 is empty when the checksum file is missing or unreadable.
	MD5 string
}

func (a Artifact) Filename() string {
	return filepath.Base(a.Path)
}

func (a Artifact) ChecksumPath() string {
	return checksum.PathFor(a.Path)
}

// RelPath is the path of the archive relative to the output root,
// always slash separated.
func (a Artifact) RelPath() string {
	return strings.Join([]string{string(a.OS), a.Version, a.Arch, a.Filename()}, "/")
}

func subdirs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// Scan lists the artifacts of one OS below output, sorted by version and
// architecture. A missing OS directory yields no artifacts and no error.
// When an architecture directory holds several archives the first in
// lexical order is used.
func Scan(output string, osName target.OS) ([]Artifact, error) {
	osDir := filepath.Join(output, string(osName))
	versions, err := subdirs(osDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("cannot list %s: %w", osDir, err)
	}

	var out []Artifact
	for _, version := range versions {
		arches, err := subdirs(filepath.Join(osDir, version))
		if err != nil {
			return nil, err
		}
		for _, a := range arches {
			found, err := scanArch(osName, version, a, filepath.Join(osDir, version, a))
			if err != nil {
				return nil, err
			}
			if found != nil {
				out = append(out, *found)
			}
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Version != out[j].Version {
			return out[i].Version < out[j].Version
		}
		return out[i].Arch < out[j].Arch
	})
	return out, nil
}

// scanArch picks the first archive in dir that has a readable checksum.
// An archive without one is only returned when no other qualifies.
func scanArch(osName target.OS, version, arch, dir string) (*Artifact, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var unsummed *Artifact
	for _, e := range entries {
		if !e.Type().IsRegular() || !strings.HasSuffix(e.Name(), ArchiveSuffix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, err
		}
		a := &Artifact{
			OS:      osName,
			Version: version,
			Arch:    arch,
			Path:    filepath.Join(dir, e.Name()),
			Size:    info.Size(),
		}
		sum, err := checksum.Read(a.ChecksumPath())
		if err != nil {
			if unsummed == nil {
				unsummed = a
			}
			continue
		}
		a.MD5 = sum
		return a, nil
	}
	return unsummed, nil
}
