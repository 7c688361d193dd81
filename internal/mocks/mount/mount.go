// Package mount provides fake mount syscalls backed by a mountinfo file,
// so the real mount table parser is exercised in tests.
//
// Like the kernel, the fake records targets absolute and with symlinks
// resolved, whatever form the caller passed.
package mount

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

type Fake struct {
	mu        sync.Mutex
	path      string
	mounted   map[string]bool
	Calls     []string
	FailMount map[string]bool
}

// New returns a fake writing its table to path. Existing entries can be
// given as initially mounted targets.
func New(path string, initial ...string) (*Fake, error) {
	f := &Fake{path: path, mounted: map[string]bool{}}
	for _, p := range initial {
		f.mounted[kernelPath(p)] = true
	}
	return f, f.flush()
}

func kernelPath(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		return p
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	return abs
}

func escape(p string) string {
	return strings.NewReplacer(" ", `\040`, "\t", `\011`, "\n", `\012`, `\`, `\134`).Replace(p)
}

func (f *Fake) flush() error {
	points := make([]string, 0, len(f.mounted)+1)
	for p := range f.mounted {
		points = append(points, p)
	}
	sort.Strings(points)

	var b strings.Builder
	b.WriteString("22 1 8:1 / / rw,relatime shared:1 - ext4 /dev/sda1 rw\n")
	for i, p := range points {
		fmt.Fprintf(&b, "%d 22 0:%d / %s rw,relatime shared:%d - proc proc rw\n", 100+i, 20+i, escape(p), 2+i)
	}
	return os.WriteFile(f.path, []byte(b.String()), 0600)
}

func (f *Fake) BindMount(source, target string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, "mount "+target)
	if f.FailMount[target] {
		return fmt.Errorf("permission denied")
	}
	target = kernelPath(target)
	if f.mounted[target] {
		return fmt.Errorf("%s: device or resource busy", target)
	}
	f.mounted[target] = true
	return f.flush()
}

func (f *Fake) Unmount(target string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, "umount "+target)
	target = kernelPath(target)
	if !f.mounted[target] {
		return fmt.Errorf("%s: not mounted", target)
	}
	delete(f.mounted, target)
	return f.flush()
}

// Mounted returns the targets currently mounted, sorted.
func (f *Fake) Mounted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for p := range f.mounted {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
