package mount

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// readMountPoints parses a mountinfo file (proc(5)) and returns the set
// of mount points. The fifth field holds the mount point with spaces,
// tabs, newlines and backslashes octal-escaped.
func readMountPoints(path string) (map[string]bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read mount table: %w", err)
	}
	defer f.Close()

	points := make(map[string]bool)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 5 {
			continue
		}
		points[filepath.Clean(unescapeOctal(fields[4]))] = true
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("cannot parse %s: %w", path, err)
	}
	return points, nil
}

func unescapeOctal(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+4 <= len(s) {
			if v, err := strconv.ParseUint(s[i+1:i+4], 8, 8); err == nil {
				b.WriteByte(byte(v))
				i += 3
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
