// Package index generates rootfs_metadata.json, the catalogue clients
// read to discover which root filesystems can be downloaded.
package index

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/renameio"
	"github.com/sirupsen/logrus"

	"github.com/osbuild/rootfs-composer/internal/artifact"
	"github.com/osbuild/rootfs-composer/internal/target"
)

// Filename is the name of the index below the output root.
const Filename = "rootfs_metadata.json"

// ValidABIs are the architecture directory names the index accepts.
var ValidABIs = []string{"arm64", "armhf", "amd64", "i386", "x86", "x86_64", "aarch64"}

// OperatingSystems are indexed in this order.
var OperatingSystems = []target.OS{target.OSAlpine, target.OSUbuntu}

type File struct {
	FileName     string `json:"file_name"`
	DownloadSize int64  `json:"download_size"`
	DownloadURL  string `json:"download_url"`
	MD5          string `json:"md5_checksum"`
}

type Version struct {
	Codename      string          `json:"codename"`
	Architectures map[string]File `json:"architectures"`
}

type VersionEntry struct {
	Version string
	Info    Version
}

// Versions keep their order when encoded as a JSON object.
type Versions []VersionEntry

func (v Versions) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range v {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := encode(&buf, e.Version); err != nil {
			return nil, err
		}
		buf.WriteByte(':')
		if err := encode(&buf, e.Info); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Lookup returns the entry of version.
func (v Versions) Lookup(version string) (Version, bool) {
	for _, e := range v {
		if e.Version == version {
			return e.Info, true
		}
	}
	return Version{}, false
}

type Distribution struct {
	Name     string   `json:"name"`
	Versions Versions `json:"versions"`
}

type Index struct {
	Distributions []Distribution `json:"distributions"`
}

func encode(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return nil
}

func validABI(name string) bool {
	for _, abi := range ValidABIs {
		if abi == name {
			return true
		}
	}
	return false
}

func codename(osName target.OS, version string) string {
	if osName == target.OSUbuntu {
		if r, err := target.UbuntuRelease(version); err == nil {
			return r.Name
		}
		return ""
	}
	return fmt.Sprintf("%s-%s", osName.DisplayName(), version)
}

// DownloadURL joins baseURL and the artifact location. An empty baseURL
// gives a path relative to the index.
func DownloadURL(baseURL string, a artifact.Artifact) string {
	if baseURL == "" {
		return a.RelPath()
	}
	return strings.TrimSuffix(baseURL, "/") + "/" + a.RelPath()
}

// Generate builds the index of everything packaged below output. Every OS
// directory that exists is listed, even when it holds no valid artifact.
func Generate(output, baseURL string, logger logrus.FieldLogger) (*Index, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	idx := &Index{Distributions: []Distribution{}}

	for _, osName := range OperatingSystems {
		if fi, err := os.Stat(filepath.Join(output, string(osName))); err != nil || !fi.IsDir() {
			continue
		}
		artifacts, err := artifact.Scan(output, osName)
		if err != nil {
			return nil, err
		}

		byVersion := map[string]map[string]File{}
		for _, a := range artifacts {
			if !validABI(a.Arch) {
				logger.Debugf("Skipping %s: %s is not a valid ABI", a.Path, a.Arch)
				continue
			}
			if a.MD5 == "" {
				logger.Warnf("Skipping %s: no readable checksum file", a.Path)
				continue
			}
			if byVersion[a.Version] == nil {
				byVersion[a.Version] = map[string]File{}
			}
			byVersion[a.Version][a.Arch] = File{
				FileName:     a.Filename(),
				DownloadSize: a.Size,
				DownloadURL:  DownloadURL(baseURL, a),
				MD5:          a.MD5,
			}
		}

		versions := make([]string, 0, len(byVersion))
		for v := range byVersion {
			versions = append(versions, v)
		}
		sort.Sort(sort.Reverse(sort.StringSlice(versions)))

		dist := Distribution{Name: osName.DisplayName(), Versions: Versions{}}
		for _, v := range versions {
			dist.Versions = append(dist.Versions, VersionEntry{
				Version: v,
				Info:    Version{Codename: codename(osName, v), Architectures: byVersion[v]},
			})
		}
		idx.Distributions = append(idx.Distributions, dist)
	}
	return idx, nil
}

// Encode writes idx as JSON indented by four spaces.
func (idx *Index) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	return enc.Encode(idx)
}

// WriteFile stores idx at path atomically.
func (idx *Index) WriteFile(path string) error {
	var buf bytes.Buffer
	if err := idx.Encode(&buf); err != nil {
		return fmt.Errorf("cannot encode index: %w", err)
	}
	if err := renameio.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("cannot write index %s: %w", path, err)
	}
	return nil
}
