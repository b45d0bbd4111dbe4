// Package extraction turns receipt images into expense drafts using an external
// vision model.
package extraction

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// MaxImageBytes bounds the decoded size of a receipt image.
const MaxImageBytes = 8 << 20

var (
	ErrEmptyImage       = errors.New("extraction: image is empty")
	ErrImageTooLarge    = errors.New("extraction: image exceeds size limit")
	ErrUnsupportedImage = errors.New("extraction: unsupported image type")
	ErrInvalidDataURI   = errors.New("extraction: invalid data uri")
)

// EncodeDataURI sniffs the image type and returns a base64 data URI.
func EncodeDataURI(image []byte) (string, error) {
	mime, err := sniffImage(image)
	if err != nil {
		return "", err
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(image), nil
}

// ParseDataURI validates a client supplied data URI and returns the decoded image.
// The declared MIME type must agree with the sniffed one.
func ParseDataURI(uri string) (string, []byte, error) {
	uri = strings.TrimSpace(uri)
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return "", nil, fmt.Errorf("%w: missing data scheme", ErrInvalidDataURI)
	}
	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, fmt.Errorf("%w: missing payload", ErrInvalidDataURI)
	}
	declared, ok := strings.CutSuffix(header, ";base64")
	if !ok {
		return "", nil, fmt.Errorf("%w: payload must be base64 encoded", ErrInvalidDataURI)
	}
	if base64.StdEncoding.DecodedLen(len(payload)) > MaxImageBytes+3 {
		return "", nil, ErrImageTooLarge
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidDataURI, err)
	}
	mime, err := sniffImage(data)
	if err != nil {
		return "", nil, err
	}
	if declared != "" && !strings.EqualFold(declared, mime) {
		return "", nil, fmt.Errorf("%w: declared %s but content is %s", ErrUnsupportedImage, declared, mime)
	}
	return mime, data, nil
}

func sniffImage(data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyImage
	}
	if len(data) > MaxImageBytes {
		return "", ErrImageTooLarge
	}
	mt := mimetype.Detect(data)
	mime, _, _ := strings.Cut(mt.String(), ";")
	if !strings.HasPrefix(mime, "image/") {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedImage, mime)
	}
	return mime, nil
}
