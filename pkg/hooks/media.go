package hooks

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/devicelab-dev/mobile-e2e/pkg/core"
	"github.com/devicelab-dev/mobile-e2e/pkg/lifecycle"
	"github.com/devicelab-dev/mobile-e2e/pkg/logger"
)

// Media folders under the configured media directory.
var mediaFolders = []string{"photos", "video"}

func (s *suite) uploadMedia(ctx context.Context, _ *lifecycle.Scenario) error {
	location := ""
	if s.Device.Platform() == core.PlatformAndroid {
		location = AndroidMediaLocation
	}

	var files []string
	for _, folder := range mediaFolders {
		dir := filepath.Join(s.Config.MediaDir, folder)
		entries, err := os.ReadDir(dir)
		if errors.Is(err, fs.ErrNotExist) {
			logger.Warn("media folder %s not found, skipping", dir)
			continue
		}
		if err != nil {
			return fmt.Errorf("read media folder: %w", err)
		}
		for _, e := range entries {
			if !e.IsDir() {
				files = append(files, filepath.Join(dir, e.Name()))
			}
		}
	}

	return PushFiles(ctx, s.Device, location, files)
}

// PushFiles pushes every file to location+basename on the device, a few at
// a time. The first failure cancels the remaining pushes.
func PushFiles(ctx context.Context, dev core.Device, location string, files []string) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(MediaUploadWorkers)

	for _, path := range files {
		g.Go(func() error {
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read media: %w", err)
			}
			remote := location + filepath.Base(path)
			if err := dev.PushFile(ctx, remote, data); err != nil {
				return fmt.Errorf("push %s: %w", remote, err)
			}
			logger.Debug("pushed %s (%d bytes)", remote, len(data))
			return nil
		})
	}
	return g.Wait()
}
