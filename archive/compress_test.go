package archive

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pierrec/lz4/v4"
)

func TestCompressFileRoundTrip(t *testing.T) {

	dir := t.TempDir()

	srcPath := filepath.Join(dir, "data.tbl")
	payload := bytes.Repeat([]byte("fixed width records all day"), 1000)
	if writeErr := os.WriteFile(srcPath, payload, 0644); writeErr != nil {
		t.Fatalf("unable to write source: %v", writeErr)
	}

	destPath := filepath.Join(dir, "backups", "data.lz4")
	if compressErr := CompressFile(srcPath, destPath); compressErr != nil {
		t.Fatalf("compress failed: %v", compressErr)
	}

	archiveFile, openErr := os.Open(destPath)
	if openErr != nil {
		t.Fatalf("archive missing: %v", openErr)
	}
	defer archiveFile.Close()

	restored, readErr := io.ReadAll(lz4.NewReader(archiveFile))
	if readErr != nil {
		t.Fatalf("unable to decompress archive: %v", readErr)
	}

	if !bytes.Equal(restored, payload) {
		t.Errorf("archive does not restore the source bytes")
	}
}

func TestCompressFileMissingSource(t *testing.T) {

	dir := t.TempDir()

	compressErr := CompressFile(filepath.Join(dir, "nope.tbl"), filepath.Join(dir, "out.lz4"))
	if compressErr == nil {
		t.Errorf("expected failure for missing source")
	}
}

func TestBackupNameUnique(t *testing.T) {

	a := BackupName("records")
	b := BackupName("records")

	if !strings.HasPrefix(a, "records_") || !strings.HasSuffix(a, ".lz4") {
		t.Errorf("unexpected backup name shape: %s", a)
	}
	if a == b {
		t.Errorf("backup names must be unique, got %s twice", a)
	}
}
