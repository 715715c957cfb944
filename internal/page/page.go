// Package page splices generated fragments into the static portal page
// between fixed marker comments.
package page

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrMarkerNotFound means the target page is missing a required marker
// comment. The write is aborted; the existing page is left untouched.
var ErrMarkerNotFound = errors.New("page: marker not found")

// Section is one marker-delimited region and its replacement fragment.
type Section struct {
	Start    string
	End      string
	Fragment string
}

// Splice replaces the text between start and end in doc with fragment,
// keeping both markers in place. The first occurrence of start and the
// first occurrence of end after it delimit the region.
func Splice(doc, start, end, fragment string) (string, error) {
	i := strings.Index(doc, start)
	if i < 0 {
		return "", fmt.Errorf("%w: %q", ErrMarkerNotFound, start)
	}
	regionStart := i + len(start)

	j := strings.Index(doc[regionStart:], end)
	if j < 0 {
		return "", fmt.Errorf("%w: %q", ErrMarkerNotFound, end)
	}
	regionEnd := regionStart + j

	return doc[:regionStart] + "\n" + fragment + doc[regionEnd:], nil
}

// Update rewrites the page at path with every section spliced in. All
// sections are applied to an in-memory copy first; the file is replaced
// atomically (temp file + rename) only when every marker was found, so a
// bad page is never half-written.
func Update(path string, sections []Section) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("page: read target: %w", err)
	}

	doc := string(data)
	for _, s := range sections {
		doc, err = Splice(doc, s.Start, s.End, s.Fragment)
		if err != nil {
			return err
		}
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".claycal-page-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.WriteString(doc); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	// Carry over the original file mode.
	if info, err := os.Stat(path); err == nil {
		_ = os.Chmod(tmpName, info.Mode().Perm())
	}

	return os.Rename(tmpName, path)
}
