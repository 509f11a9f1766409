package media

import (
	"os"
	"path/filepath"
)

type workspace struct {
	jobID     string
	dir       string
	inDir     string
	chunksDir string
}

func (w workspace) manifestPath() string {
	return filepath.Join(w.dir, manifestFilename)
}

func removeDir(dir string) error {
	if dir == "" {
		return nil
	}
	return os.RemoveAll(dir)
}
