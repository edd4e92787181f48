package rawio

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"
)

// ExpandDevicePattern expands a device argument containing `*` or `?`
// wildcards into the list of matching entries under /dev, sorted for
// deterministic command output. A pattern with no wildcard characters is
// returned unchanged (as its own single-element slice) without touching
// the filesystem, so callers can always run device arguments through this
// function regardless of whether they actually glob.
func ExpandDevicePattern(pattern string) ([]string, error) {

	if !strings.ContainsAny(pattern, "*?") {
		return []string{pattern}, nil
	}

	dir := filepath.Dir(pattern)
	if dir == "." {
		dir = "/dev"
	}
	base := filepath.Base(pattern)

	g, err := glob.Compile(base)
	if err != nil {
		return nil, fmt.Errorf("invalid device pattern %q: %w", pattern, err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}

	var matches []string
	for _, e := range entries {
		if g.Match(e.Name()) {
			matches = append(matches, filepath.Join(dir, e.Name()))
		}
	}

	sort.Strings(matches)

	if len(matches) == 0 {
		return nil, fmt.Errorf("no devices match pattern %q", pattern)
	}

	return matches, nil
}
