package export

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"

	"github.com/DachengChen/querybot/conversation"
)

// Downloader fetches a file the backend serves. *api.Client implements it.
type Downloader interface {
	Download(ctx context.Context, ref string, w io.Writer) (int64, error)
}

// PlotRefs lists the plot references in msgs, in order and without
// duplicates.
func PlotRefs(msgs []conversation.Message) []string {
	var refs []string
	seen := map[string]bool{}
	for _, m := range msgs {
		if m.Analysis == nil {
			continue
		}
		for _, p := range m.Analysis.Plots {
			if !seen[p] {
				seen[p] = true
				refs = append(refs, p)
			}
		}
	}
	return refs
}

// SavePlots downloads refs into dir, creating it if needed, and returns
// the paths written. It stops at the first failure.
func SavePlots(ctx context.Context, d Downloader, refs []string, dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	var paths []string
	for _, ref := range refs {
		p := filepath.Join(dir, plotName(ref))
		if err := savePlot(ctx, d, ref, p); err != nil {
			return paths, fmt.Errorf("download %s: %w", ref, err)
		}
		paths = append(paths, p)
	}
	return paths, nil
}

func savePlot(ctx context.Context, d Downloader, ref, p string) error {
	f, err := os.Create(p)
	if err != nil {
		return err
	}
	if _, err := d.Download(ctx, ref, f); err != nil {
		f.Close()
		os.Remove(p) //nolint:errcheck
		return err
	}
	return f.Close()
}

func plotName(ref string) string {
	if u, err := url.Parse(ref); err == nil && u.Path != "" {
		ref = u.Path
	}
	name := path.Base(ref)
	if name == "." || name == "/" {
		return "plot.png"
	}
	return name
}
