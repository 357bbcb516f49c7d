package decompress_test

import (
	"bytes"
	"compress/gzip"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"

	"forge-go/internal/decompress"
	"forge-go/internal/forge"
)

func TestDetectFormat(t *testing.T) {
	t.Parallel()
	tests := []struct {
		path string
		want decompress.Format
	}{
		{"disk.img", decompress.FormatNone},
		{"disk", decompress.FormatNone},
		{"disk.img.gz", decompress.FormatGzip},
		{"DISK.IMG.GZ", decompress.FormatGzip},
		{"disk.gzip", decompress.FormatGzip},
		{"disk.img.xz", decompress.FormatXz},
		{"disk.img.lzma", decompress.FormatXz},
		{"disk.img.zst", decompress.FormatZstd},
		{"disk.img.ZSTD", decompress.FormatZstd},
		{"disk.tar", decompress.FormatNone},
	}
	for _, tt := range tests {
		if got := decompress.DetectFormat(tt.path); got != tt.want {
			t.Errorf("DetectFormat(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

// payload returns deterministic non-trivial content for round-trip tests.
func payload() []byte {
	data := make([]byte, 64*1024+7)
	for i := range data {
		data[i] = byte(i * 31)
	}
	return data
}

func writeGzip(t *testing.T, path string, data []byte) {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
}

func writeXz(t *testing.T, path string, data []byte) {
	t.Helper()
	var buf bytes.Buffer
	w, err := xz.NewWriter(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
}

func writeZstd(t *testing.T, path string, data []byte) {
	t.Helper()
	var buf bytes.Buffer
	w, err := zstd.NewWriter(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestNormalizer_Normalize(t *testing.T) {
	t.Run("passes uncompressed images through", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		scratchDir := t.TempDir()
		imgPath := filepath.Join(dir, "disk.img")
		if err := os.WriteFile(imgPath, payload(), 0644); err != nil {
			t.Fatal(err)
		}

		n := decompress.NewNormalizer(scratchDir, forge.NewNopLogger())
		src, err := n.Normalize(imgPath, nil, nil)
		if err != nil {
			t.Fatalf("Normalize() error = %v", err)
		}
		defer src.Close()

		if src.Path != imgPath {
			t.Errorf("Path = %q, want original %q", src.Path, imgPath)
		}
		if src.Size != int64(len(payload())) {
			t.Errorf("Size = %d, want %d", src.Size, len(payload()))
		}
		if src.Scratch() {
			t.Error("pass-through source must not own a scratch file")
		}
		if entries, _ := os.ReadDir(scratchDir); len(entries) != 0 {
			t.Errorf("scratch dir has %d entries, want 0", len(entries))
		}
	})

	t.Run("all formats decode to identical bytes", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		want := payload()

		writeGzip(t, filepath.Join(dir, "disk.img.gz"), want)
		writeXz(t, filepath.Join(dir, "disk.img.xz"), want)
		writeZstd(t, filepath.Join(dir, "disk.img.zst"), want)

		for _, name := range []string{"disk.img.gz", "disk.img.xz", "disk.img.zst"} {
			n := decompress.NewNormalizer(t.TempDir(), forge.NewNopLogger())
			src, err := n.Normalize(filepath.Join(dir, name), nil, nil)
			if err != nil {
				t.Fatalf("Normalize(%s) error = %v", name, err)
			}

			got, err := os.ReadFile(src.Path)
			if err != nil {
				t.Fatalf("reading scratch file: %v", err)
			}
			if !bytes.Equal(got, want) {
				t.Errorf("%s: decoded output differs from original", name)
			}
			if src.Size != int64(len(want)) {
				t.Errorf("%s: Size = %d, want %d", name, src.Size, len(want))
			}
			if !src.Scratch() {
				t.Errorf("%s: decompressed source must own its scratch file", name)
			}

			if err := src.Close(); err != nil {
				t.Fatalf("Close() error = %v", err)
			}
			if _, err := os.Stat(src.Path); !os.IsNotExist(err) {
				t.Errorf("%s: scratch file still exists after Close", name)
			}
		}
	})

	t.Run("reports progress with unknown total", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		writeGzip(t, filepath.Join(dir, "disk.img.gz"), payload())

		var events []forge.ProgressEvent
		n := decompress.NewNormalizer(t.TempDir(), forge.NewNopLogger())
		src, err := n.Normalize(filepath.Join(dir, "disk.img.gz"), func(ev forge.ProgressEvent) {
			events = append(events, ev)
		}, nil)
		if err != nil {
			t.Fatalf("Normalize() error = %v", err)
		}
		defer src.Close()

		if len(events) == 0 {
			t.Fatal("no progress events reported")
		}
		for _, ev := range events {
			if ev.Phase != forge.PhaseDecompressing {
				t.Errorf("Phase = %v, want PhaseDecompressing", ev.Phase)
			}
			if ev.TotalBytes != 0 {
				t.Errorf("TotalBytes = %d, want 0 (unknown)", ev.TotalBytes)
			}
		}
		last := events[len(events)-1]
		if last.BytesDone != int64(len(payload())) {
			t.Errorf("final BytesDone = %d, want %d", last.BytesDone, len(payload()))
		}
	})

	t.Run("malformed input fails with ErrDecode and leaves no scratch file", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		scratchDir := t.TempDir()
		badPath := filepath.Join(dir, "disk.img.gz")
		if err := os.WriteFile(badPath, []byte("this is not gzip"), 0644); err != nil {
			t.Fatal(err)
		}

		n := decompress.NewNormalizer(scratchDir, forge.NewNopLogger())
		_, err := n.Normalize(badPath, nil, nil)
		if !errors.Is(err, forge.ErrDecode) {
			t.Fatalf("error = %v, want ErrDecode", err)
		}
		if entries, _ := os.ReadDir(scratchDir); len(entries) != 0 {
			t.Errorf("scratch dir has %d entries, want 0", len(entries))
		}
	})

	t.Run("corrupted stream fails mid-decode with ErrDecode", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		scratchDir := t.TempDir()
		path := filepath.Join(dir, "disk.img.gz")
		writeGzip(t, path, payload())

		// Flip a byte in the deflate stream, past the header.
		raw, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		raw[len(raw)/2] ^= 0xff
		if err := os.WriteFile(path, raw, 0644); err != nil {
			t.Fatal(err)
		}

		n := decompress.NewNormalizer(scratchDir, forge.NewNopLogger())
		_, err = n.Normalize(path, nil, nil)
		if !errors.Is(err, forge.ErrDecode) {
			t.Fatalf("error = %v, want ErrDecode", err)
		}
		if entries, _ := os.ReadDir(scratchDir); len(entries) != 0 {
			t.Errorf("scratch dir has %d entries, want 0", len(entries))
		}
	})

	t.Run("cancellation removes the scratch file", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		scratchDir := t.TempDir()
		path := filepath.Join(dir, "disk.img.gz")
		writeGzip(t, path, payload())

		cancel := forge.NewCancelFlag()
		cancel.Cancel()

		n := decompress.NewNormalizer(scratchDir, forge.NewNopLogger())
		_, err := n.Normalize(path, nil, cancel)
		if !errors.Is(err, forge.ErrCancelled) {
			t.Fatalf("error = %v, want ErrCancelled", err)
		}
		if entries, _ := os.ReadDir(scratchDir); len(entries) != 0 {
			t.Errorf("scratch dir has %d entries, want 0", len(entries))
		}
	})
}
