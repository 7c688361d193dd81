package ubuntu

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/google/renameio"

	"github.com/osbuild/rootfs-composer/internal/arch"
	"github.com/osbuild/rootfs-composer/internal/target"
)

var resolvers = []string{"8.8.8.8", "8.8.4.4", "1.1.1.1", "1.0.0.1"}

const shellMarker = "# rootfs-composer shell setup"

var sourcesList = template.Must(template.New("sources.list").Parse(`deb {{.Mirror}} {{.Codename}} main restricted universe multiverse
deb {{.Mirror}} {{.Codename}}-updates main restricted universe multiverse
deb {{.Mirror}} {{.Codename}}-security main restricted universe multiverse
deb {{.Mirror}} {{.Codename}}-backports main restricted universe multiverse
`))

const fstab = `# /etc/fstab: static file system information.
#
# <file system> <mount point>   <type>  <options>       <dump>  <pass>
proc            /proc           proc    defaults        0       0
tmpfs           /tmp            tmpfs   defaults        0       0
`

const interfaces = `# interfaces(5) file used by ifup(8) and ifdown(8)
auto lo
iface lo inet loopback

allow-hotplug /*/=eth
iface eth inet dhcp
`

var shellSetup = template.Must(template.New("bashrc").Parse(shellMarker + `
export LANG={{.Locale}}
export LC_ALL={{.Locale}}
PS1='\[\e[1;32m\]\u@\h\[\e[0m\]:\[\e[1;34m\]\w\[\e[0m\]\$ '
if [ -d /etc/update-motd.d ]; then
    run-parts /etc/update-motd.d
fi
`))

// localeLine turns en_US.UTF-8 into the locale.gen entry "en_US.UTF-8 UTF-8".
func localeLine(locale string) string {
	charset := "UTF-8"
	if i := strings.LastIndex(locale, "."); i >= 0 && i < len(locale)-1 {
		charset = locale[i+1:]
	}
	return fmt.Sprintf("%s %s\n", locale, charset)
}

func render(t *template.Template, data interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeFile replaces rel below root, including a symlink left there by
// the bootstrap.
func writeFile(root, rel string, data []byte) error {
	path := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	if fi, err := os.Lstat(path); err == nil && fi.Mode()&os.ModeSymlink != 0 {
		if err := os.Remove(path); err != nil {
			return err
		}
	}
	if err := renameio.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("cannot write %s: %w", rel, err)
	}
	return nil
}

// appendOnce appends data to rel below root unless marker is already
// present in the file.
func appendOnce(root, rel, marker string, data []byte) error {
	path := filepath.Join(root, rel)
	existing, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	if bytes.Contains(existing, []byte(marker)) {
		return nil
	}
	if len(existing) > 0 && !bytes.HasSuffix(existing, []byte("\n")) {
		existing = append(existing, '\n')
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	mode := os.FileMode(0644)
	if fi, err := os.Stat(path); err == nil {
		mode = fi.Mode().Perm()
	}
	if err := renameio.WriteFile(path, append(existing, data...), mode); err != nil {
		return fmt.Errorf("cannot append to %s: %w", rel, err)
	}
	return nil
}

// mirrorFor picks the ports mirror for architectures the primary archive
// does not carry.
func (b *Builder) mirrorFor(a arch.Arch) string {
	if a.Ported() {
		return b.cfg.PortsMirror
	}
	return b.cfg.Mirror
}

// configure writes the files that make the image network and locale
// ready.
func (b *Builder) configure(root string, t target.Target, a arch.Arch) error {
	sources, err := render(sourcesList, struct{ Mirror, Codename string }{b.mirrorFor(a), t.Release.Codename})
	if err != nil {
		return err
	}

	var resolv strings.Builder
	for _, ns := range resolvers {
		fmt.Fprintf(&resolv, "nameserver %s\n", ns)
	}

	files := []struct {
		path string
		data []byte
	}{
		{"etc/locale.gen", []byte(localeLine(b.cfg.Locale))},
		{"etc/apt/sources.list", sources},
		{"etc/fstab", []byte(fstab)},
		{"etc/network/interfaces", []byte(interfaces)},
		{"etc/resolv.conf", []byte(resolv.String())},
	}
	for _, f := range files {
		if err := writeFile(root, f.path, f.data); err != nil {
			return err
		}
	}

	shell, err := render(shellSetup, struct{ Locale string }{b.cfg.Locale})
	if err != nil {
		return err
	}
	for _, rc := range []string{"root/.bashrc", "etc/bash.bashrc"} {
		if err := appendOnce(root, rc, shellMarker, shell); err != nil {
			return err
		}
	}
	return nil
}
