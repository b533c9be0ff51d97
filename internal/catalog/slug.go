package catalog

import (
	"strings"

	"github.com/gosimple/slug"
)

// Slugify turns a display name into an internal identifier: lowercase ASCII
// words joined by underscores. Slugify(Slugify(s)) == Slugify(s).
func Slugify(name string) string {
	return strings.ReplaceAll(slug.Make(name), "-", "_")
}
