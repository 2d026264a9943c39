package source

import (
	"os"
	"path/filepath"
	"strings"

	perrors "github.com/matzehuels/pagewise/pkg/errors"
)

// MaxIncludeDepth bounds nested !include directives.
const MaxIncludeDepth = 8

// ExpandIncludes replaces every "!include <path>" line of text with the
// contents of that file. Relative paths resolve against baseDir (the working
// directory when empty). Start and end markers inside included files are
// dropped so that a complete diagram file can be included into a page.
func ExpandIncludes(text, baseDir string) (string, error) {
	return expand(text, baseDir, nil)
}

// Includes returns the paths named by !include lines of text, resolved
// against baseDir. Nested includes are not followed.
func Includes(text, baseDir string) []string {
	var paths []string
	for _, line := range splitLines(text) {
		if p, ok := includeLine(strings.TrimSpace(line)); ok {
			paths = append(paths, resolve(p, baseDir))
		}
	}
	return paths
}

func expand(text, baseDir string, stack []string) (string, error) {
	if !strings.Contains(text, "!include") {
		return text, nil
	}
	lines := splitLines(text)
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		p, ok := includeLine(strings.TrimSpace(line))
		if !ok {
			out = append(out, line)
			continue
		}
		path := resolve(p, baseDir)
		for _, seen := range stack {
			if seen == path {
				return "", perrors.New(perrors.ErrCodeCompiler, "include cycle through %s", p)
			}
		}
		if len(stack) >= MaxIncludeDepth {
			return "", perrors.New(perrors.ErrCodeCompiler, "includes nested deeper than %d", MaxIncludeDepth)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return "", perrors.Wrap(perrors.ErrCodeFileNotFound, err, "include %s", p)
		}
		body, err := expand(stripMarkers(string(data)), filepath.Dir(path), append(stack, path))
		if err != nil {
			return "", err
		}
		out = append(out, body)
	}
	return strings.Join(out, "\n"), nil
}

func includeLine(trimmed string) (string, bool) {
	if !strings.HasPrefix(trimmed, "!include ") {
		return "", false
	}
	p := strings.Trim(strings.TrimSpace(trimmed[len("!include "):]), `"`)
	return p, p != ""
}

func resolve(p, baseDir string) string {
	if filepath.IsAbs(p) || baseDir == "" {
		return filepath.Clean(p)
	}
	return filepath.Join(baseDir, p)
}

func stripMarkers(text string) string {
	lines := splitLines(text)
	kept := lines[:0]
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if _, ok := startMarker(trimmed); ok || strings.HasPrefix(trimmed, "@end") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimRight(strings.Join(kept, "\n"), "\n")
}
