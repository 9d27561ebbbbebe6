package ingest

import (
	"io"
	"strings"
)

// MaxBodyBytes is the ceiling on stored body size. Bodies beyond it are
// truncated, never rejected.
const MaxBodyBytes = 1 << 20

// CapturedBody is the bounded form of an inbound request body.
type CapturedBody struct {
	// Blob holds at most MaxBodyBytes of the original body.
	Blob []byte
	// Text is a best-effort UTF-8 projection of Blob, nil when Blob is
	// empty. Invalid sequences are replaced, not rejected.
	Text *string
	// Size is the true pre-truncation size in bytes.
	Size int64
	// Truncated reports whether Blob is shorter than the original body.
	Truncated bool
}

// CaptureBody reads r, keeping at most MaxBodyBytes in memory and
// counting the remainder, so an arbitrarily large body costs no more
// than the cap while Size still reflects the true original length.
func CaptureBody(r io.Reader) (CapturedBody, error) {
	var c CapturedBody
	if r == nil {
		return c, nil
	}

	blob, err := io.ReadAll(io.LimitReader(r, MaxBodyBytes))
	if err != nil {
		return c, err
	}
	overflow, err := io.Copy(io.Discard, r)
	if err != nil {
		return c, err
	}

	c.Blob = blob
	c.Size = int64(len(blob)) + overflow
	c.Truncated = overflow > 0
	if len(blob) > 0 {
		text := strings.ToValidUTF8(string(blob), "�")
		c.Text = &text
	}
	return c, nil
}
