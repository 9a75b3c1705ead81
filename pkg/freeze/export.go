package freeze

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/valyala/gozstd"

	"pyfreeze-tools/pkg/buildlog"
)

// ExportDist packs a finished dist tree into <build_root>/<program>.tzst for
// shipping, honoring the same doublestar exclude patterns as the build.
func ExportDist(layout Layout, programName string, excludePatterns []string, log buildlog.Logger) (string, error) {
	if _, err := os.Stat(layout.Executable(programName)); err != nil {
		return "", fmt.Errorf("no finished build to export: %w", err)
	}

	outPath := filepath.Join(layout.Root, programName+".tzst")
	out, err := os.Create(outPath)
	if err != nil {
		return "", err
	}
	defer out.Close()

	zw := gozstd.NewWriter(out)
	tw := tar.NewWriter(zw)

	err = filepath.Walk(layout.DistDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		relPath, err := filepath.Rel(layout.DistDir, path)
		if err != nil {
			return err
		}
		if relPath == "." {
			return nil
		}
		for _, pattern := range excludePatterns {
			match, err := doublestar.Match(pattern, filepath.ToSlash(relPath))
			if err != nil {
				return err
			}
			if match {
				log.Debug("archive", "pack", "skip", "Excluding path based on pattern", "path", relPath, "pattern", pattern)
				if info.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
		}

		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(relPath)
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if info.Mode().IsRegular() {
			file, err := os.Open(path)
			if err != nil {
				return err
			}
			defer file.Close()
			if _, err := io.Copy(tw, file); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if err := tw.Close(); err != nil {
		return "", err
	}
	if err := zw.Close(); err != nil {
		return "", err
	}

	log.Info("archive", "pack", "success", "Exported dist tree", "path", outPath)
	return outPath, nil
}
