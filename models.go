package deluge

import "sort"

// DefaultUIFields are requested by UpdateUI when no field list is given.
var DefaultUIFields = []string{"name", "hash", "download_payload_rate", "upload_payload_rate", "eta", "progress"}

// AddTorrentOptions are passed to webapi.add_torrent. Zero values are left
// out so deluge applies its own defaults.
type AddTorrentOptions struct {
	DownloadLocation    string   `json:"download_location,omitempty"`
	MoveCompletedPath   string   `json:"move_completed_path,omitempty"`
	MoveCompleted       *bool    `json:"move_completed,omitempty"`
	AddPaused           *bool    `json:"add_paused,omitempty"`
	MaxDownloadSpeed    *int     `json:"max_download_speed,omitempty"`
	MaxUploadSpeed      *int     `json:"max_upload_speed,omitempty"`
	MaxConnections      *int     `json:"max_connections,omitempty"`
	PrioritizeFirstLast *bool    `json:"prioritize_first_last_pieces,omitempty"`
	SequentialDownload  *bool    `json:"sequential_download,omitempty"`
	PreAllocateStorage  *bool    `json:"pre_allocate_storage,omitempty"`
	SuperSeeding        *bool    `json:"super_seeding,omitempty"`
	RemoveAtRatio       *bool    `json:"remove_at_ratio,omitempty"`
	StopAtRatio         *bool    `json:"stop_at_ratio,omitempty"`
	StopRatio           *float64 `json:"stop_ratio,omitempty"`
}

// TorrentStatus is a subset of the status keys deluge reports per torrent.
// Keys not requested through a field filter stay at their zero value.
type TorrentStatus struct {
	Hash                string  `json:"hash"`
	Name                string  `json:"name"`
	State               string  `json:"state"`
	Progress            float64 `json:"progress"`
	DownloadPayloadRate int64   `json:"download_payload_rate"`
	UploadPayloadRate   int64   `json:"upload_payload_rate"`
	ETA                 int64   `json:"eta"`
	Ratio               float64 `json:"ratio"`
	TotalSize           int64   `json:"total_size"`
	TotalDone           int64   `json:"total_done"`
	TotalUploaded       int64   `json:"total_uploaded"`
	NumSeeds            int     `json:"num_seeds"`
	NumPeers            int     `json:"num_peers"`
	SavePath            string  `json:"save_path"`
	Label               string  `json:"label"`
	TimeAdded           float64 `json:"time_added"`
	IsFinished          bool    `json:"is_finished"`
	Paused              bool    `json:"paused"`
	Message             string  `json:"message"`
	TrackerHost         string  `json:"tracker_host"`
}

// UIStats is the "stats" section of web.update_ui.
type UIStats struct {
	MaxDownload            float64 `json:"max_download"`
	MaxUpload              float64 `json:"max_upload"`
	MaxNumConnections      int     `json:"max_num_connections"`
	NumConnections         int     `json:"num_connections"`
	UploadRate             float64 `json:"upload_rate"`
	DownloadRate           float64 `json:"download_rate"`
	DownloadProtocolRate   float64 `json:"download_protocol_rate"`
	UploadProtocolRate     float64 `json:"upload_protocol_rate"`
	DHTNodes               int     `json:"dht_nodes"`
	HasIncomingConnections bool    `json:"has_incoming_connections"`
	FreeSpace              int64   `json:"free_space"`
	ExternalIP             string  `json:"external_ip"`
}

// UIState is the snapshot returned by web.update_ui. Filters maps a filter
// name (state, tracker_host, ...) to [value, count] pairs.
type UIState struct {
	Connected bool                     `json:"connected"`
	Torrents  map[string]TorrentStatus `json:"torrents"`
	Filters   map[string][][]any       `json:"filters"`
	Stats     UIStats                  `json:"stats"`
}

// FileTree is the nested listing returned by web.get_torrent_files.
type FileTree struct {
	Type     string               `json:"type"`
	Contents map[string]*FileTree `json:"contents,omitempty"`
	Index    int                  `json:"index"`
	Path     string               `json:"path"`
	Size     int64                `json:"size"`
	Offset   int64                `json:"offset"`
	Progress float64              `json:"progress"`
	Priority int                  `json:"priority"`
}

// TorrentFile is one file of a torrent.
type TorrentFile struct {
	Index    int
	Path     string
	Size     int64
	Progress float64
	Priority int
}

// Files flattens the tree into its files, ordered by index.
func (t *FileTree) Files() []TorrentFile {
	var files []TorrentFile
	var walk func(n *FileTree)
	walk = func(n *FileTree) {
		if n == nil {
			return
		}
		if n.Type == "file" {
			files = append(files, TorrentFile{
				Index:    n.Index,
				Path:     n.Path,
				Size:     n.Size,
				Progress: n.Progress,
				Priority: n.Priority,
			})
			return
		}
		for _, child := range n.Contents {
			walk(child)
		}
	}
	walk(t)

	sort.Slice(files, func(i, j int) bool { return files[i].Index < files[j].Index })
	return files
}

// MagnetLink holds the parts of a magnet URI.
type MagnetLink struct {
	Hash             string
	DisplayName      string
	Trackers         []string
	ExactLength      string
	ExactSource      string
	Keywords         string
	AcceptableSource string
}
