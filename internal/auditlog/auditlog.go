// Package auditlog persists per-AM request documents under a deterministic
// filename for audit/debug (spec.md §6 Persisted state). It is write-only
// and best-effort: a failure here never gates reservation progress, it is
// logged the way the teacher's backup path logs a failed directory create
// without aborting the caller.
package auditlog

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/exoplex/stitchcore/internal/xmldom"
)

var nonSlugChars = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// Slug converts an AM URN into the filesystem-safe token the filename
// convention embeds, e.g. "urn:publicid:IDN+net+authority+am" becomes
// "urn-publicid-IDN-net-authority-am".
func Slug(urn string) string {
	return strings.Trim(nonSlugChars.ReplaceAllString(urn, "-"), "-")
}

// Filename returns the "<slice>-<AM-URN-slug>-<op>-request.xml" name
// spec.md §6 names. A caller with no real slice id (anonymous/ad-hoc runs)
// passes an empty slice; Filename then mints a synthetic one so concurrent
// runs never collide on disk.
func Filename(slice, amURN, op string) string {
	if slice == "" {
		slice = uuid.NewString()
	}
	return fmt.Sprintf("%s-%s-%s-request.xml", slice, Slug(amURN), op)
}

// Writer persists request documents under a base directory. The zero
// Writer (Dir == "") is a no-op, matching runs that don't want an audit
// trail at all.
type Writer struct {
	Dir    string
	Logger zerolog.Logger
}

// Persist renders doc and writes it to Dir/Filename(slice, amURN, op),
// creating Dir if necessary. Errors are logged at Warn and swallowed.
func (w Writer) Persist(slice, amURN, op string, doc *xmldom.Element) {
	if w.Dir == "" || doc == nil {
		return
	}
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		w.Logger.Warn().Err(err).Str("dir", w.Dir).Msg("auditlog: create directory failed")
		return
	}
	body, err := xmldom.Render(doc)
	if err != nil {
		w.Logger.Warn().Err(err).Str("aggregate", amURN).Msg("auditlog: render request document failed")
		return
	}
	path := filepath.Join(w.Dir, Filename(slice, amURN, op))
	if err := os.WriteFile(path, body, 0o644); err != nil {
		w.Logger.Warn().Err(err).Str("path", path).Msg("auditlog: write request document failed")
	}
}
