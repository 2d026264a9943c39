package document

import (
	"os"
	"sort"
	"strings"

	"github.com/matzehuels/pagewise/pkg/cache"
	"github.com/matzehuels/pagewise/pkg/source"
)

// IncludeDigest hashes the paths and contents of the files that text
// includes, resolved against baseDir. It is "" when text includes nothing.
// A missing file hashes differently from an empty one.
func IncludeDigest(text, baseDir string) string {
	paths := source.Includes(text, baseDir)
	if len(paths) == 0 {
		return ""
	}
	sort.Strings(paths)

	var b strings.Builder
	for _, p := range paths {
		b.WriteString(p)
		b.WriteByte(0)
		if data, err := os.ReadFile(p); err == nil {
			b.WriteString(cache.Hash(data))
		} else {
			b.WriteString("missing")
		}
		b.WriteByte('\n')
	}
	return cache.Hash([]byte(b.String()))
}
