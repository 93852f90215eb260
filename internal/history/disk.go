package history

import (
	"io/fs"
	"os"
	"path/filepath"
)

// DiskUsage is the on-disk size of the history storage.
type DiskUsage struct {
	DatabaseBytes int64 `json:"database_bytes"`
	IndexBytes    int64 `json:"index_bytes"`
}

// Total returns the combined size.
func (u DiskUsage) Total() int64 {
	return u.DatabaseBytes + u.IndexBytes
}

// MeasureDiskUsage sizes the SQLite database at dbPath, including its WAL
// sidecar files, and the index directory at indexPath. Missing paths count as zero.
func MeasureDiskUsage(dbPath, indexPath string) (DiskUsage, error) {
	var u DiskUsage
	for _, p := range []string{dbPath, dbPath + "-wal", dbPath + "-shm"} {
		n, err := pathSize(p)
		if err != nil {
			return DiskUsage{}, err
		}
		u.DatabaseBytes += n
	}
	n, err := pathSize(indexPath)
	if err != nil {
		return DiskUsage{}, err
	}
	u.IndexBytes = n
	return u, nil
}

func pathSize(p string) (int64, error) {
	if p == "" || p == "-wal" || p == "-shm" {
		return 0, nil
	}
	info, err := os.Stat(p)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if !info.IsDir() {
		return info.Size(), nil
	}
	var total int64
	err = filepath.WalkDir(p, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		total += fi.Size()
		return nil
	})
	return total, err
}
