package receipt

import (
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

const defaultMimeType = "image/jpeg"

var (
	ErrMissingImage  = errors.New("Missing image field")
	ErrInvalidImage  = errors.New("image is not valid base64")
	ErrImageTooLarge = errors.New("image too large")
)

var mimePattern = regexp.MustCompile(`data:([^;]+);`)

// Image is an inline image ready to be sent to the model.
type Image struct {
	MimeType string
	Data     string // base64
}

// ParseImage accepts either a data URI ("data:image/png;base64,...") or bare
// base64. The mime type defaults to image/jpeg. maxBytes bounds the decoded
// size; zero disables the check.
func ParseImage(s string, maxBytes int) (Image, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Image{}, ErrMissingImage
	}

	img := Image{MimeType: defaultMimeType, Data: s}
	if prefix, data, ok := strings.Cut(s, ","); ok {
		img.Data = data
		if m := mimePattern.FindStringSubmatch(prefix); m != nil {
			img.MimeType = m[1]
		}
	}
	if img.Data == "" {
		return Image{}, ErrMissingImage
	}

	raw, err := base64.StdEncoding.DecodeString(img.Data)
	if err != nil {
		if raw, err = base64.RawStdEncoding.DecodeString(img.Data); err != nil {
			return Image{}, ErrInvalidImage
		}
	}
	if maxBytes > 0 && len(raw) > maxBytes {
		return Image{}, fmt.Errorf("%w: %d bytes (max %d)", ErrImageTooLarge, len(raw), maxBytes)
	}
	return img, nil
}
