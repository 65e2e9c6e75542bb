package emotion

import (
	"context"
	"os"
	"path/filepath"

	"github.com/tphakala/petmood/internal/errors"
	"github.com/tphakala/petmood/internal/httpclient"
	"github.com/tphakala/petmood/internal/logger"
)

// maxModelBytes bounds a model download.
const maxModelBytes = 512 << 20

// ensureModel downloads url to path when path does not exist. The download
// lands in a temporary file in the same directory and is renamed into place,
// so a partial download never looks like a model.
func ensureModel(ctx context.Context, client *httpclient.Client, path, url string, log logger.Logger) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}
	if url == "" {
		return errors.Newf("model file %s not found and no download URL configured", path).
			Component("emotion").
			Category(errors.CategoryModelLoad).
			Build()
	}
	if client == nil {
		client = httpclient.New(nil)
		defer client.Close()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return errors.New(err).
			Component("emotion").
			Category(errors.CategoryFileIO).
			Context("dir", dir).
			Build()
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.part")
	if err != nil {
		return errors.New(err).
			Component("emotion").
			Category(errors.CategoryFileIO).
			Build()
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	log.Info("downloading model", logger.String("url", url), logger.String("path", path))

	n, err := client.Download(ctx, url, tmp, maxModelBytes)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return errors.New(err).
			Component("emotion").
			Category(errors.CategoryModelFetch).
			Context("model_path", path).
			Build()
	}

	if err := os.Rename(tmpName, path); err != nil {
		return errors.New(err).
			Component("emotion").
			Category(errors.CategoryFileIO).
			FileContext(path, n).
			Build()
	}

	log.Info("model downloaded", logger.String("path", path), logger.Int64("bytes", n))
	return nil
}
