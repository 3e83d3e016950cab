package deluge

import (
	"encoding/base64"
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

const magnetPrefix = "magnet:?"

// ParseMagnetLink extracts information from a magnet link
func ParseMagnetLink(magnetURI string) (*MagnetLink, error) {
	if !strings.HasPrefix(magnetURI, magnetPrefix) {
		return nil, errors.New("invalid magnet link format")
	}

	values, err := url.ParseQuery(strings.TrimPrefix(magnetURI, magnetPrefix))
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse magnet link query")
	}

	magnet := &MagnetLink{
		Hash:             strings.TrimPrefix(values.Get("xt"), "urn:btih:"),
		DisplayName:      values.Get("dn"),
		Trackers:         values["tr"],
		ExactLength:      values.Get("xl"),
		ExactSource:      values.Get("xs"),
		Keywords:         values.Get("kt"),
		AcceptableSource: values.Get("as"),
	}

	if magnet.Hash == "" {
		return nil, errors.New("magnet link has no exact topic (xt)")
	}

	return magnet, nil
}

// IsMagnetLink reports whether metainfo looks like a magnet URI.
func IsMagnetLink(metainfo string) bool {
	return strings.HasPrefix(metainfo, magnetPrefix)
}

// validateMetainfo accepts a magnet link or base64-encoded torrent data, the
// two forms webapi.add_torrent understands.
func validateMetainfo(metainfo string) error {
	if metainfo == "" {
		return errors.New("metainfo is empty")
	}
	if IsMagnetLink(metainfo) {
		_, err := ParseMagnetLink(metainfo)
		return err
	}
	if _, err := base64.StdEncoding.DecodeString(metainfo); err != nil {
		return errors.Wrap(err, "metainfo is neither a magnet link nor base64 torrent data")
	}
	return nil
}
