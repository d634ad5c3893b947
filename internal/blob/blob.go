// Package blob stores uploaded instruction files and hands back a URL
// that can be saved on a task.
package blob

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/sakif/smartwork/internal/apperror"
)

// Store uploads content under a fresh key derived from name.
//
// The returned URL is either absolute or a path to be resolved against the
// file-serving origin with Resolve.
type Store interface {
	Upload(ctx context.Context, name string, r io.Reader) (string, error)
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Key returns a unique object key that keeps a readable form of name.
func Key(name string) string {
	base := path.Base(strings.ReplaceAll(name, `\`, "/"))
	base = strings.Trim(unsafeChars.ReplaceAllString(base, "_"), "._")
	if base == "" {
		base = "file"
	}
	if len(base) > 100 {
		base = base[len(base)-100:]
	}
	return uuid.NewString() + "-" + base
}

// Resolve returns u unchanged when it is absolute, and otherwise joins it
// to origin.
func Resolve(origin, u string) string {
	if u == "" {
		return ""
	}
	ref, err := url.Parse(u)
	if err != nil || ref.IsAbs() {
		return u
	}
	base, err := url.Parse(origin)
	if err != nil {
		return u
	}
	return base.ResolveReference(ref).String()
}

// LimitReader returns a reader that fails with a validation error once more
// than max bytes have been read.
func LimitReader(r io.Reader, max int64) io.Reader {
	return &limitedReader{r: r, left: max, max: max}
}

type limitedReader struct {
	r    io.Reader
	left int64
	max  int64
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if l.left < 0 {
		return 0, TooLarge(l.max)
	}
	// Read one byte past the limit to tell "exactly max" from "more".
	if int64(len(p)) > l.left+1 {
		p = p[:l.left+1]
	}
	n, err := l.r.Read(p)
	l.left -= int64(n)
	if l.left < 0 {
		return n, TooLarge(l.max)
	}
	return n, err
}

// TooLarge is the error reported for an upload over max bytes.
func TooLarge(max int64) error {
	limit := fmt.Sprintf("%d bytes", max)
	if max >= 1<<20 {
		limit = fmt.Sprintf("%d MiB", max>>20)
	}
	return apperror.ValidationFailed("file", "file exceeds the "+limit+" upload limit")
}
