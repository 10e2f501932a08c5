package types

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidDataURL is returned by [ParseDataURL] for inputs that are not
// base64 data URLs.
var ErrInvalidDataURL = errors.New("types: invalid data url")

// NewImageBlock base64-encodes raw and returns an [ImageBlock] with the given
// MIME type.
func NewImageBlock(mimeType string, raw []byte) ImageBlock {
	return ImageBlock{
		MIMEType: mimeType,
		Data:     base64.StdEncoding.EncodeToString(raw),
	}
}

// ParseDataURL parses "data:<mime>;base64,<data>" into an [ImageBlock]. The
// payload is checked to be valid base64 but is kept in encoded form.
func ParseDataURL(s string) (ImageBlock, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(s), "data:")
	if !ok {
		return ImageBlock{}, fmt.Errorf("%w: missing data: prefix", ErrInvalidDataURL)
	}
	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return ImageBlock{}, fmt.Errorf("%w: missing comma separator", ErrInvalidDataURL)
	}
	mime, ok := strings.CutSuffix(header, ";base64")
	if !ok {
		return ImageBlock{}, fmt.Errorf("%w: only base64 payloads are supported", ErrInvalidDataURL)
	}
	if mime == "" {
		return ImageBlock{}, fmt.Errorf("%w: empty media type", ErrInvalidDataURL)
	}
	if _, err := base64.StdEncoding.DecodeString(payload); err != nil {
		return ImageBlock{}, fmt.Errorf("%w: %v", ErrInvalidDataURL, err)
	}
	return ImageBlock{MIMEType: mime, Data: payload}, nil
}

// DataURL renders b as a data URL.
func (b ImageBlock) DataURL() string {
	return "data:" + b.MIMEType + ";base64," + b.Data
}
