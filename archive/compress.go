// Package archive is the backup boundary: it compresses one table file into
// an opaque archive. The core never interprets the output format.
package archive

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/pierrec/lz4/v4"
)

// CompressFile writes an lz4 frame of srcPath into destPath, creating parent
// directories as needed.
func CompressFile(srcPath, destPath string) error {

	src, openErr := os.Open(srcPath)
	if openErr != nil {
		return fmt.Errorf("unable to open source file: %s", openErr.Error())
	}
	defer src.Close()

	destDir := filepath.Dir(destPath)
	if _, statErr := os.Stat(destDir); statErr != nil {
		if mkdirErr := os.MkdirAll(destDir, 0755); mkdirErr != nil {
			return fmt.Errorf("unable to create backup directory: %s", mkdirErr.Error())
		}
	}

	dest, createErr := os.OpenFile(destPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if createErr != nil {
		return fmt.Errorf("unable to create archive: %s", createErr.Error())
	}
	defer dest.Close()

	zw := lz4.NewWriter(dest)

	if _, copyErr := io.Copy(zw, src); copyErr != nil {
		zw.Close()
		return fmt.Errorf("unable to compress %s: %s", srcPath, copyErr.Error())
	}

	return zw.Close()
}

// BackupName builds a unique archive name: prefix, timestamp, short uuid.
func BackupName(prefix string) string {
	stamp := time.Now().Format("2006-01-02_15-04-05")
	short := uuid.New().String()[:8]
	return fmt.Sprintf("%s_%s_%s.lz4", prefix, stamp, short)
}
