package main

import (
	"context"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/entity-xref/internal/artifact"
	"github.com/sells-group/entity-xref/internal/config"
	"github.com/sells-group/entity-xref/internal/dataset"
	"github.com/sells-group/entity-xref/internal/fetcher"
	"github.com/sells-group/entity-xref/internal/model"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download a dataset into the workspace and record its provenance",
	Long:  "Downloads a dataset over HTTP(S) or FTP, optionally extracts one member of a ZIP archive, writes it into the datasets directory and writes a provenance sidecar next to it.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		datasetID, _ := cmd.Flags().GetString("dataset")
		rawURL, _ := cmd.Flags().GetString("url")
		extract, _ := cmd.Flags().GetString("extract")

		if err := cfg.Validate(config.ModeFetch); err != nil {
			return err
		}
		unlock, err := artifact.Lock(cfg.Workspace.Dir)
		if err != nil {
			return err
		}
		defer unlock()

		prov, err := fetchDataset(cmd.Context(), datasetID, rawURL, extract)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), prov)
	},
}

// fetchTarget returns the manifest path for datasetID, or a path under the
// datasets directory named after the extracted member or the URL.
func fetchTarget(m *dataset.Manifest, datasetID, rawURL, extract string) (string, *dataset.Spec, error) {
	if m != nil {
		if spec, ok := m.Spec(datasetID); ok {
			return spec.Path, &spec, nil
		}
	}
	name := path.Base(extract)
	if extract == "" {
		u, err := url.Parse(rawURL)
		if err != nil {
			return "", nil, eris.Wrapf(err, "fetch: parse url %q", rawURL)
		}
		name = path.Base(u.Path)
	}
	if name == "" || name == "." || name == "/" {
		return "", nil, eris.Errorf("fetch: cannot derive a file name from %s; add the dataset to the manifest first", rawURL)
	}
	return filepath.Join(cfg.Workspace.DatasetsPath(), name), nil, nil
}

func fetchDataset(ctx context.Context, datasetID, rawURL, extract string) (model.Provenance, error) {
	log := zap.L().With(zap.String("component", "fetch"), zap.String("dataset", datasetID))

	var m *dataset.Manifest
	if _, err := os.Stat(cfg.Workspace.ManifestPath()); err == nil {
		if m, err = dataset.LoadManifest(cfg.Workspace.ManifestPath(), cfg.Workspace.DatasetsPath()); err != nil {
			return model.Provenance{}, err
		}
	}
	target, spec, err := fetchTarget(m, datasetID, rawURL, extract)
	if err != nil {
		return model.Provenance{}, err
	}

	f, err := fetcher.ForURL(rawURL, fetcher.OptionsFromConfig(cfg.Fetch))
	if err != nil {
		return model.Provenance{}, err
	}

	accessed := time.Now().UTC()
	var transformations []string
	if extract == "" {
		if _, err := fetcher.ToFile(ctx, f, rawURL, target); err != nil {
			return model.Provenance{}, err
		}
	} else {
		tmpDir, err := os.MkdirTemp("", "xref-fetch-*")
		if err != nil {
			return model.Provenance{}, eris.Wrap(err, "fetch: create temp dir")
		}
		defer os.RemoveAll(tmpDir) //nolint:errcheck

		archive, err := fetcher.ToFile(ctx, f, rawURL, filepath.Join(tmpDir, "archive.zip"))
		if err != nil {
			return model.Provenance{}, err
		}
		if err := fetcher.ExtractMember(archive.Path, extract, target); err != nil {
			return model.Provenance{}, err
		}
		transformations = append(transformations, "unzip "+extract+" (archive sha256 "+archive.SHA256+")")
	}

	size, sum, err := fetcher.HashFile(target)
	if err != nil {
		return model.Provenance{}, err
	}
	prov := model.Provenance{
		SourceURL:       rawURL,
		Path:            target,
		AccessedAt:      &accessed,
		SHA256:          sum,
		Bytes:           size,
		Transformations: transformations,
	}
	if spec != nil {
		prov.Lineage = spec.Lineage
		prov.Reliability = spec.Reliability
		prov.Official = spec.Official
	}
	if err := fetcher.WriteSidecar(target, prov); err != nil {
		return model.Provenance{}, err
	}

	log.Info("fetch: dataset written",
		zap.String("path", target),
		zap.Int64("bytes", size),
		zap.String("sha256", sum),
	)
	if spec == nil {
		log.Warn("fetch: dataset is not in the manifest yet; add it before running resolve")
	}
	return prov, nil
}

func init() {
	fetchCmd.Flags().String("dataset", "", "dataset id")
	fetchCmd.Flags().String("url", "", "http(s) or ftp URL to download")
	fetchCmd.Flags().String("extract", "", "member to extract when the download is a ZIP archive")
	_ = fetchCmd.MarkFlagRequired("dataset")
	_ = fetchCmd.MarkFlagRequired("url")
	rootCmd.AddCommand(fetchCmd)
}
