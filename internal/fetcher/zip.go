package fetcher

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// ExtractMember copies one file out of a ZIP archive to dest. An empty name
// selects the archive's only file.
func ExtractMember(zipPath, name, dest string) error {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return eris.Wrap(err, "fetcher: open zip archive")
	}
	defer r.Close() //nolint:errcheck

	var files []*zip.File
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if name == "" || f.Name == name || filepath.Base(f.Name) == name {
			files = append(files, f)
		}
	}
	switch {
	case len(files) == 0 && name != "":
		return eris.Errorf("fetcher: %q not found in archive", name)
	case len(files) != 1 && name == "":
		return eris.Errorf("fetcher: archive holds %d files; name one to extract", len(files))
	case len(files) != 1:
		return eris.Errorf("fetcher: %q matches %d archive members", name, len(files))
	}
	if strings.Contains(files[0].Name, "..") {
		return eris.Errorf("fetcher: illegal archive path %q", files[0].Name)
	}

	rc, err := files[0].Open()
	if err != nil {
		return eris.Wrap(err, "fetcher: open archive member")
	}
	defer rc.Close() //nolint:errcheck

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return eris.Wrap(err, "fetcher: create directory")
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), filepath.Base(dest)+".part.*")
	if err != nil {
		return eris.Wrap(err, "fetcher: create temp file")
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := io.Copy(tmp, rc); err != nil {
		return eris.Wrap(err, "fetcher: extract archive member")
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrap(err, "fetcher: close extracted file")
	}
	return eris.Wrapf(os.Rename(tmpPath, dest), "fetcher: move extracted file to %s", dest)
}
