package ubuntu

const (
	DefaultMirror      = "http://archive.ubuntu.com/ubuntu"
	DefaultPortsMirror = "http://ports.ubuntu.com/ubuntu-ports"
	DefaultVariant     = "minbase"
	DefaultLocale      = "en_US.UTF-8"
	DefaultQemuDir     = "/usr/bin"
)

// DefaultStrip lists the root-relative globs removed before packaging.
// Only non-directory entries are removed; "**" crosses directories.
var DefaultStrip = []string{
	"var/cache/apt/archives/*.deb",
	"var/cache/apt/*.bin",
	"var/lib/apt/lists/*",
	"tmp/**",
	"var/tmp/**",
	"var/log/**",
	"etc/ssh/ssh_host_*",
	"root/.bash_history",
	"home/*/.bash_history",
	"root/.wget-hsts",
}

// Preload installs a shared library into the image and lists it in
// /etc/ld.so.preload. It is off unless Enabled is set.
type Preload struct {
	Enabled bool
	URL     string
	// Path is the install location inside the root.
	Path string
	// MD5 is checked against the download when not empty.
	MD5 string
}

type Config struct {
	Variant     string
	Include     []string
	Mirror      string
	PortsMirror string
	Locale      string
	// InstallMissingTools installs missing host tools with apt-get.
	InstallMissingTools bool
	// RemoveFailedRoot deletes the working root of a failed build. It is
	// kept for inspection otherwise.
	RemoveFailedRoot bool
	// QemuDir holds the qemu-*-static binaries copied into foreign roots.
	QemuDir string
	Strip   []string
	Preload Preload

	CompressionLevel int
	// CompressionConcurrency is the number of gzip blocks compressed in
	// parallel.
	CompressionConcurrency int
}

func (c *Config) setDefaults() {
	if c.Variant == "" {
		c.Variant = DefaultVariant
	}
	if c.Mirror == "" {
		c.Mirror = DefaultMirror
	}
	if c.PortsMirror == "" {
		c.PortsMirror = DefaultPortsMirror
	}
	if c.Locale == "" {
		c.Locale = DefaultLocale
	}
	if c.QemuDir == "" {
		c.QemuDir = DefaultQemuDir
	}
	if c.Strip == nil {
		c.Strip = DefaultStrip
	}
}
