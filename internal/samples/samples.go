// Package samples bundles demo chat transcripts for paste/upload demos.
package samples

import (
	"embed"
	"path"
	"sort"
	"strings"
)

//go:embed data/*.txt
var dataFS embed.FS

// Names returns the available sample names, sorted.
func Names() []string {
	entries, err := dataFS.ReadDir("data")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".txt"))
	}
	sort.Strings(names)
	return names
}

// Load returns a sample transcript by name.
func Load(name string) (string, bool) {
	// embed paths use forward slashes; Clean guards against traversal.
	p := path.Clean("data/" + name + ".txt")
	if !strings.HasPrefix(p, "data/") {
		return "", false
	}
	content, err := dataFS.ReadFile(p)
	if err != nil {
		return "", false
	}
	return string(content), true
}
