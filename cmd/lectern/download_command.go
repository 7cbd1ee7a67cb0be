package main

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"lectern/internal/assembly"
	"lectern/internal/config"
	"lectern/internal/delivery"
)

func newDownloadCommand(ctx *commandContext) *cobra.Command {
	var name string
	var dir string

	cmd := &cobra.Command{
		Use:   "download <url>",
		Short: "Save an artifact URL to a local file",
		Long: `Save a video or presentation artifact to disk.

Only https URLs and base64 data URIs are accepted, plus file URLs that point
into the local storage directory. The file name is sanitized before writing.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			target := firstNonEmpty(name, urlBaseName(args[0]), delivery.DefaultFilename)
			saved, err := saveURL(cmd.Context(), cfg, args[0], firstNonEmpty(dir, cfg.Paths.OutputDir), target)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", saved)
			return nil
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "File name to save as (sanitized)")
	cmd.Flags().StringVarP(&dir, "output", "o", "", "Destination directory (default paths.output_dir)")
	return cmd
}

func saveArtifact(ctx context.Context, cfg *config.Config, artifact assembly.Artifact, dir, name string) (string, error) {
	return saveURL(ctx, cfg, artifact.URL, dir, name)
}

// saveURL writes rawURL under dir. File URLs are only honored inside the
// local storage directory; everything else goes through delivery validation.
func saveURL(ctx context.Context, cfg *config.Config, rawURL, dir, name string) (string, error) {
	saver := delivery.NewSaver(dir)
	if local, ok, err := localStoragePath(cfg, rawURL); ok || err != nil {
		if err != nil {
			return "", err
		}
		return saver.CopyFile(name, local)
	}
	return saver.Save(ctx, rawURL, name)
}

func localStoragePath(cfg *config.Config, rawURL string) (string, bool, error) {
	raw := strings.TrimSpace(rawURL)
	if !strings.HasPrefix(strings.ToLower(raw), "file:") {
		return "", false, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", true, fmt.Errorf("parse file url: %w", err)
	}
	root := filepath.Clean(cfg.Storage.LocalDir)
	local := filepath.Clean(filepath.FromSlash(u.Path))
	if strings.TrimSpace(cfg.Storage.LocalDir) == "" || (local != root && !strings.HasPrefix(local, root+string(filepath.Separator))) {
		return "", true, fmt.Errorf("file url %s is outside the local storage directory: %w", raw, delivery.ErrUnsupportedScheme)
	}
	return local, true, nil
}

func urlBaseName(rawURL string) string {
	raw := strings.TrimSpace(rawURL)
	if strings.HasPrefix(raw, "data:") {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	base := path.Base(u.Path)
	if base == "/" || base == "." {
		return ""
	}
	return base
}
