// Package extract is the text-extraction collaborator: it turns an
// uploaded file into plain text for the chunking pipeline. Binary formats
// such as PDF are out of scope here and belong to an external extractor.
package extract

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrUnsupportedType is returned for a MIME type with no registered reader.
var ErrUnsupportedType = errors.New("unsupported file type")

// Text reads the file at path and returns its textual content. The MIME
// type may carry parameters ("text/plain; charset=utf-8"); only the media
// type is considered.
func Text(path, mimeType string) (string, error) {
	media := strings.TrimSpace(mimeType)
	if i := strings.IndexByte(media, ';'); i >= 0 {
		media = strings.TrimSpace(media[:i])
	}

	switch media {
	case "text/plain", "text/markdown":
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("extract %s: %w", path, err)
		}
		return string(data), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, mimeType)
	}
}
