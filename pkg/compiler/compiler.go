// Package compiler selects the diagram engine injected into a renderer.
//
// The choice is made once by configuration and passed to
// [render.NewRenderer]. Swapping engines makes existing snapshots obsolete
// because every compiler reports its own version:
//
//	c, err := compiler.New(cfg.Compiler)
//	r := render.NewRenderer(c)
package compiler

import (
	"sort"

	"github.com/matzehuels/pagewise/pkg/compiler/dot"
	"github.com/matzehuels/pagewise/pkg/compiler/text"
	perrors "github.com/matzehuels/pagewise/pkg/errors"
	"github.com/matzehuels/pagewise/pkg/render"
)

// Default is the compiler used when none is configured.
const Default = dot.Name

var registry = map[string]func() render.Compiler{
	dot.Name:  func() render.Compiler { return dot.New() },
	text.Name: func() render.Compiler { return text.New() },
}

// New returns a fresh compiler by name. An empty name selects [Default].
func New(name string) (render.Compiler, error) {
	if name == "" {
		name = Default
	}
	factory, ok := registry[name]
	if !ok {
		return nil, perrors.New(perrors.ErrCodeInvalidConfig, "unknown compiler %q (available: %v)", name, Names())
	}
	return factory(), nil
}

// Names lists the registered compilers in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
