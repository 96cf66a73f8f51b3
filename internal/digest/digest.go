package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"io"

	"departure-board-backend/internal/board"
	"departure-board-backend/internal/params"
)

// Compute hashes the board text together with its render parameters. The
// NUL separator keeps "ab"+"c" and "a"+"bc" apart.
func Compute(doc board.Document, p params.Parameters) string {
	h := sha256.New()
	io.WriteString(h, string(doc))
	h.Write([]byte{0})
	io.WriteString(h, p.String())
	return hex.EncodeToString(h.Sum(nil))
}

// ShouldRender reports whether the image is stale. A previous digest is only
// stored after a successful render, so a failed render is retried.
func ShouldRender(current, previous string) bool {
	return current != previous
}
