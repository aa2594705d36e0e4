package apk

import (
	"archive/zip"
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func writeZip(t *testing.T, path string, files map[string][]byte) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	for name, data := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write(data); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
}

func pngBytes(t *testing.T, size int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for x := 0; x < size; x++ {
		img.Set(x, x, color.RGBA{R: 255, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestIconExtractor_Extract(t *testing.T) {
	apkPath := filepath.Join(t.TempDir(), "Game.apk")
	writeZip(t, apkPath, map[string][]byte{
		"AndroidManifest.xml":                          []byte("binary"),
		"res/mipmap-hdpi/ic_launcher.png":              pngBytes(t, 72),
		"res/mipmap-xxhdpi/ic_launcher_foreground.png": pngBytes(t, 10),
	})

	data, err := NewIconExtractor(48).Extract(apkPath)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("output is not a PNG: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 48 || b.Dy() != 48 {
		t.Errorf("icon size = %dx%d, want 48x48", b.Dx(), b.Dy())
	}
}

func TestIconExtractor_NoIcon(t *testing.T) {
	apkPath := filepath.Join(t.TempDir(), "Game.apk")
	writeZip(t, apkPath, map[string][]byte{
		"res/mipmap-hdpi/ic_launcher_background.png": pngBytes(t, 8),
	})

	if _, err := NewIconExtractor(0).Extract(apkPath); err == nil {
		t.Fatal("Extract() succeeded without a launcher icon")
	}
}
