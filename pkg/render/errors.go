package render

import (
	"context"
	"errors"
	"fmt"

	perrors "github.com/matzehuels/pagewise/pkg/errors"
)

// ErrStructuralFallback reports that a page cannot be rendered in isolation.
// Render never returns it; it switches to full-document rendering instead.
var ErrStructuralFallback = perrors.New(perrors.ErrCodeStructuralFallback, "page cannot be rendered in isolation")

// IsCancelled reports whether err aborts the render instead of becoming an
// error image.
func IsCancelled(err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		perrors.Is(err, perrors.ErrCodeCancelled)
}

// cancelled wraps a cancellation cause so that it still satisfies
// errors.Is(err, context.Canceled).
func cancelled(cause error, format string, args ...any) error {
	if perrors.Is(cause, perrors.ErrCodeCancelled) {
		return cause
	}
	return perrors.Wrap(perrors.ErrCodeCancelled, cause, format, args...)
}

// checkCancelled returns a CANCELLED error once ctx is done.
func checkCancelled(ctx context.Context, page int) error {
	if err := ctx.Err(); err != nil {
		return cancelled(err, "render cancelled before page %d", page+1)
	}
	return nil
}

// guard runs fn and turns a panic into a PAGE_RENDER error. One
// misbehaving compiler call must not take down sibling pages.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = perrors.New(perrors.ErrCodePageRender, "compiler panic: %v", r)
		}
	}()
	return fn()
}

// errorText is the text shown inside an error image.
func errorText(err error) string {
	if err == nil {
		return "unknown error"
	}
	return perrors.UserMessage(err)
}

// pageError classifies a failure raised while rendering page.
func pageError(page int, err error) error {
	what := "document"
	if page != WholeDocument {
		what = fmt.Sprintf("page %d", page+1)
	}
	if IsCancelled(err) {
		return cancelled(err, "render %s", what)
	}
	var pe *perrors.Error
	if errors.As(err, &pe) {
		return err
	}
	return perrors.Wrap(perrors.ErrCodePageRender, err, "%s", what)
}
