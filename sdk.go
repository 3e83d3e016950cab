package deluge

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
)

const (
	methodAddTorrent      = "webapi.add_torrent"
	methodGetTorrents     = "webapi.get_torrents"
	methodGetTorrentFiles = "web.get_torrent_files"
	methodUpdateUI        = "web.update_ui"
)

// Wrappers return errors from Call unwrapped.

// AddTorrent adds a torrent from a magnet link or base64-encoded torrent
// data. It returns the torrent id when deluge reports one.
func (dc *Client) AddTorrent(ctx context.Context, metainfo string, opts *AddTorrentOptions) (string, error) {
	if err := validateMetainfo(metainfo); err != nil {
		return "", fmt.Errorf("failed to add torrent: %w", err)
	}

	if opts == nil {
		opts = &AddTorrentOptions{}
	}

	result, err := dc.Call(ctx, methodAddTorrent, metainfo, opts)
	if err != nil {
		return "", err
	}

	var id string
	if err := json.Unmarshal(result, &id); err == nil {
		return id, nil
	}
	if !truthy(result) {
		return "", fmt.Errorf("failed to add torrent: deluge returned %s", result)
	}
	return "", nil
}

// AddTorrentMagnet adds a torrent from a magnet link.
func (dc *Client) AddTorrentMagnet(ctx context.Context, magnetURI string, opts *AddTorrentOptions) (string, error) {
	if !IsMagnetLink(magnetURI) {
		return "", fmt.Errorf("failed to add torrent: %q is not a magnet link", magnetURI)
	}
	return dc.AddTorrent(ctx, magnetURI, opts)
}

// AddTorrentFile adds a torrent from the raw contents of a .torrent file.
func (dc *Client) AddTorrentFile(ctx context.Context, data []byte, opts *AddTorrentOptions) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("failed to add torrent: empty torrent file")
	}
	return dc.AddTorrent(ctx, base64.StdEncoding.EncodeToString(data), opts)
}

// GetTorrents lists torrents. A nil hashes slice returns every torrent and
// a nil fields slice returns every status key.
func (dc *Client) GetTorrents(ctx context.Context, hashes []string, fields []string) ([]TorrentStatus, error) {
	var torrents []TorrentStatus
	if err := dc.CallInto(ctx, &torrents, methodGetTorrents, hashes, fields); err != nil {
		return nil, err
	}
	return torrents, nil
}

// GetTorrent returns the status of a single torrent.
func (dc *Client) GetTorrent(ctx context.Context, hash string, fields []string) (*TorrentStatus, error) {
	torrents, err := dc.GetTorrents(ctx, []string{hash}, fields)
	if err != nil {
		return nil, err
	}
	if len(torrents) == 0 {
		return nil, fmt.Errorf("torrent not found with hash: %s", hash)
	}
	return &torrents[0], nil
}

// GetTorrentFiles returns the file tree of a torrent.
func (dc *Client) GetTorrentFiles(ctx context.Context, hash string) (*FileTree, error) {
	var tree FileTree
	if err := dc.CallInto(ctx, &tree, methodGetTorrentFiles, hash); err != nil {
		return nil, err
	}
	return &tree, nil
}

// UpdateUI fetches the snapshot the web UI polls for. A nil fields slice
// requests DefaultUIFields; a nil filter matches every torrent.
func (dc *Client) UpdateUI(ctx context.Context, fields []string, filter map[string]any) (*UIState, error) {
	if fields == nil {
		fields = DefaultUIFields
	}
	if filter == nil {
		filter = map[string]any{}
	}

	var state UIState
	if err := dc.CallInto(ctx, &state, methodUpdateUI, fields, filter); err != nil {
		return nil, err
	}
	return &state, nil
}
