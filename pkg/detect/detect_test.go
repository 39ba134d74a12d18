package detect

import (
	"context"
	"errors"
	"testing"

	"github.com/pkgarch/archscan/pkg/filesystem"
)

func TestMatch(t *testing.T) {
	for path, want := range map[string]bool{
		"tool.exe":       true,
		"setup.msi":      true,
		"app.appx":       true,
		"app.msix":       true,
		"app.appxbundle": true,
		"app.msixbundle": true,
		"APP.MSIXBUNDLE": true,
		"readme.txt":     false,
		"archive.zip":    false,
		"tool.exe.bak":   false,
	} {
		if got := Match(path); got != want {
			t.Errorf("Match(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestDetectNotApplicable(t *testing.T) {
	path := writeFile(t, "notes.txt", []byte("plain text"))
	_, err := Detect(context.Background(), filesystem.NewLocalFileSystem(), path)
	if !errors.Is(err, ErrNotApplicable) {
		t.Errorf("Detect() error = %v, want ErrNotApplicable", err)
	}
}

func TestDetectRoutesByExtension(t *testing.T) {
	fsys := filesystem.NewLocalFileSystem()
	ctx := context.Background()

	exe := writeFile(t, "tool.exe", peImage(0x8664))
	got, err := Detect(ctx, fsys, exe)
	if err != nil {
		t.Fatalf("Detect(exe) error = %v", err)
	}
	if got != "amd64" {
		t.Errorf("Detect(exe) = %q, want %q", got, "amd64")
	}

	appx := zipFile(t, "app.appx", map[string]string{"AppxManifest.xml": singleManifestX64})
	got, err = Detect(ctx, fsys, appx)
	if err != nil {
		t.Fatalf("Detect(appx) error = %v", err)
	}
	if got != "amd64" {
		t.Errorf("Detect(appx) = %q, want %q", got, "amd64")
	}
}
