package rnd

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/backmassage/framevault/internal/media"
)

// Discover walks dir recursively and returns its images and videos, each
// sorted lexicographically for a deterministic sequence order. Hidden
// files and directories are skipped.
func Discover(dir string) (images, videos []string, err error) {
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if strings.HasPrefix(d.Name(), ".") && path != dir {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		switch media.TypeOf(path) {
		case media.TypeImage:
			images = append(images, path)
		case media.TypeVideo:
			videos = append(videos, path)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	sort.Strings(images)
	sort.Strings(videos)
	return images, videos, nil
}
