package sources

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/h2non/filetype"
	"github.com/mitchellh/go-homedir"
)

var ErrBadDataURL = errors.New("malformed data URL")

// SniffMIME guesses the media type from the leading bytes.
func SniffMIME(data []byte) string {
	t, err := filetype.Match(data)
	if err != nil || t == filetype.Unknown {
		return "application/octet-stream"
	}
	return t.MIME.Value
}

// EncodeDataURL embeds data as a base64 data URL with a sniffed media type.
func EncodeDataURL(data []byte) string {
	return "data:" + SniffMIME(data) + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeDataURL returns the payload of a data URL and its media type. A
// missing media type is sniffed from the payload.
func DecodeDataURL(s string) (mime string, data []byte, err error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return "", nil, fmt.Errorf("%w: missing data: prefix", ErrBadDataURL)
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, fmt.Errorf("%w: missing comma", ErrBadDataURL)
	}
	isBase64 := false
	if m, found := strings.CutSuffix(meta, ";base64"); found {
		meta, isBase64 = m, true
	}
	mime, _, _ = strings.Cut(meta, ";")

	if isBase64 {
		data, err = base64.StdEncoding.DecodeString(payload)
		if err != nil {
			// some encoders drop the padding
			data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		}
	} else {
		var text string
		text, err = url.PathUnescape(payload)
		data = []byte(text)
	}
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrBadDataURL, err)
	}
	if mime == "" {
		mime = SniffMIME(data)
	}
	return mime, data, nil
}

// readMedia loads the bytes behind a data URL or a file path.
func readMedia(dataURL, path string) ([]byte, error) {
	if dataURL != "" {
		_, data, err := DecodeDataURL(dataURL)
		return data, err
	}
	if path == "" {
		return nil, fmt.Errorf("%w: neither dataUrl nor path set", ErrBadOption)
	}
	p, err := homedir.Expand(path)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(p)
}
