package apk

import (
	"archive/zip"
	"bytes"
	"fmt"
	"image"
	"image/png"
	"io"
	"path"
	"strings"

	"github.com/nfnt/resize"
	"golang.org/x/image/webp"
)

// DefaultIconSize is the edge length of archived icon previews.
const DefaultIconSize = 144

// Launcher icon locations, best density first.
var iconPriorities = []string{
	"res/mipmap-xxxhdpi/ic_launcher.png",
	"res/mipmap-xxhdpi/ic_launcher.png",
	"res/mipmap-xhdpi/ic_launcher.png",
	"res/mipmap-hdpi/ic_launcher.png",
	"res/drawable-xxxhdpi/icon.png",
	"res/drawable-xxhdpi/icon.png",
	"res/drawable-xhdpi/icon.png",
	"res/drawable-hdpi/icon.png",
	"res/drawable-xxxhdpi/ic_launcher.png",
	"res/drawable-xxhdpi/ic_launcher.png",
	"res/drawable-xhdpi/ic_launcher.png",
	"res/drawable-hdpi/ic_launcher.png",
	"res/mipmap-xxxhdpi/ic_launcher.webp",
	"res/mipmap-xxhdpi/ic_launcher.webp",
	"res/mipmap-xhdpi/ic_launcher.webp",
	"res/mipmap-hdpi/ic_launcher.webp",
}

// IconExtractor pulls the launcher icon out of a package as a square PNG.
type IconExtractor struct {
	size uint
}

// NewIconExtractor creates an extractor producing size×size icons.
func NewIconExtractor(size uint) *IconExtractor {
	if size == 0 {
		size = DefaultIconSize
	}
	return &IconExtractor{size: size}
}

// Extract returns the PNG-encoded launcher icon of the package at apkPath.
func (e *IconExtractor) Extract(apkPath string) ([]byte, error) {
	reader, err := zip.OpenReader(apkPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open package: %w", err)
	}
	defer reader.Close()

	files := make(map[string]*zip.File, len(reader.File))
	for _, f := range reader.File {
		files[f.Name] = f
	}

	for _, name := range iconPriorities {
		if f, ok := files[name]; ok {
			if data, err := e.decode(f); err == nil {
				return data, nil
			}
		}
	}

	// Any launcher-ish bitmap that is not an adaptive icon layer.
	for _, f := range reader.File {
		name := f.Name
		ext := path.Ext(name)
		if !strings.Contains(name, "ic_launcher") || (ext != ".png" && ext != ".webp") {
			continue
		}
		if strings.Contains(name, "_foreground") || strings.Contains(name, "_background") {
			continue
		}
		if data, err := e.decode(f); err == nil {
			return data, nil
		}
	}

	return nil, fmt.Errorf("no launcher icon found in %s", apkPath)
}

func (e *IconExtractor) decode(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	raw, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return nil, err
	}
	return e.process(raw, path.Ext(f.Name))
}

func (e *IconExtractor) process(raw []byte, ext string) ([]byte, error) {
	var img image.Image
	var err error

	if ext == ".webp" {
		img, err = webp.Decode(bytes.NewReader(raw))
	} else {
		img, err = png.Decode(bytes.NewReader(raw))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode icon: %w", err)
	}

	resized := resize.Resize(e.size, e.size, img, resize.Lanczos3)

	var buf bytes.Buffer
	if err := png.Encode(&buf, resized); err != nil {
		return nil, fmt.Errorf("failed to encode PNG: %w", err)
	}
	return buf.Bytes(), nil
}
