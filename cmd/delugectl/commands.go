package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	deluge "github.com/jfxdev/go-deluge"
)

var (
	addLocation string
	listHashes  []string
	listFields  []string
	uiFields    []string
	uiFilters   []string
)

var addCmd = &cobra.Command{
	Use:   "add <magnet|file.torrent>",
	Short: "Add a torrent from a magnet link or a .torrent file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var opts *deluge.AddTorrentOptions
		if addLocation != "" {
			opts = &deluge.AddTorrentOptions{DownloadLocation: addLocation}
		}

		var (
			id  string
			err error
		)
		if deluge.IsMagnetLink(args[0]) {
			id, err = client.AddTorrentMagnet(cmd.Context(), args[0], opts)
		} else {
			var data []byte
			data, err = os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read torrent file: %w", err)
			}
			id, err = client.AddTorrentFile(cmd.Context(), data, opts)
		}
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), map[string]string{"id": id})
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List torrents",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		torrents, err := client.GetTorrents(cmd.Context(), listHashes, listFields)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), torrents)
	},
}

var filesCmd = &cobra.Command{
	Use:   "files <hash>",
	Short: "List the files of a torrent",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tree, err := client.GetTorrentFiles(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), tree.Files())
	},
}

var uiCmd = &cobra.Command{
	Use:   "ui",
	Short: "Fetch the web UI snapshot (torrents, filters and stats)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		filter, err := parseFilters(uiFilters)
		if err != nil {
			return err
		}
		state, err := client.UpdateUI(cmd.Context(), uiFields, filter)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), state)
	},
}

var callCmd = &cobra.Command{
	Use:   "call <method> [json-param...]",
	Short: "Call any JSON-RPC method",
	Long: `Call any JSON-RPC method. Each parameter is parsed as JSON; a value
that is not valid JSON is sent as a string.

Example:
  delugectl call web.get_torrent_status 3e6d9dd3d9caa1b602bc1f758bd2c869fa05093f '["name","progress"]'`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := client.Call(cmd.Context(), args[0], parseParams(args[1:])...)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), result)
	},
}

func init() {
	addCmd.Flags().StringVar(&addLocation, "location", "", "Download location")

	listCmd.Flags().StringSliceVar(&listHashes, "hash", nil, "Only list these torrent hashes")
	listCmd.Flags().StringSliceVar(&listFields, "field", nil, "Status keys to return (default all)")

	uiCmd.Flags().StringSliceVar(&uiFields, "field", nil, "Torrent keys to return")
	uiCmd.Flags().StringArrayVar(&uiFilters, "filter", nil, "Filter as key=value, e.g. state=Downloading")
}

// parseParams decodes each argument as JSON, falling back to a plain string.
func parseParams(args []string) []any {
	params := make([]any, 0, len(args))
	for _, arg := range args {
		var v any
		if err := json.Unmarshal([]byte(arg), &v); err != nil {
			v = arg
		}
		params = append(params, v)
	}
	return params
}

func parseFilters(filters []string) (map[string]any, error) {
	if len(filters) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(filters))
	for _, f := range filters {
		key, value, ok := strings.Cut(f, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid filter %q, expected key=value", f)
		}
		out[key] = value
	}
	return out, nil
}
