package prometheus

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	Namespace = "rootfs_composer"
)

// WriteTextfile dumps every registered metric to path in the text
// exposition format read by the node exporter textfile collector.
func WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("cannot create metrics directory: %w", err)
	}
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
