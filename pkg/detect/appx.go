package detect

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkgarch/archscan/pkg/arch"
	"github.com/pkgarch/archscan/pkg/filesystem"
)

const (
	bundleManifestName  = "appxbundlemanifest.xml"
	packageManifestName = "appxmanifest.xml"

	// bound on manifest entry reads, a malformed entry must not be slurped
	// unbounded
	maxManifestBytes = 16 << 20
)

var appPackageExtensions = []string{".appx", ".msix", ".appxbundle", ".msixbundle"}

// AppPackageDetector reads the architecture attributes declared in the
// manifest of an appx/msix package or bundle. Bundles may declare several
// architectures; the result is then a comma-joined list in first-seen order.
type AppPackageDetector struct{}

func (d *AppPackageDetector) Name() string { return "app-package" }

func (d *AppPackageDetector) Match(path string) bool {
	ext := filepath.Ext(path)
	for _, e := range appPackageExtensions {
		if strings.EqualFold(ext, e) {
			return true
		}
	}
	return false
}

func (d *AppPackageDetector) Detect(ctx context.Context, fsys filesystem.FileSystem, path string) (architecture string, err error) {
	f, err := fsys.Open(ctx, path)
	if err != nil {
		return
	}
	defer func() {
		if e := f.Close(); e != nil {
			Logger.Warn("could not close file correctly", slog.String("file", path), slog.String("error", e.Error()))
		}
	}()

	size, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return
	}

	zr, err := zip.NewReader(&seekerReaderAt{rs: f}, size)
	if err != nil {
		err = fmt.Errorf("could not open package archive: %w", err)
		return
	}

	// A bundle manifest takes precedence over any single-package manifest in
	// the same archive.
	if entry := findManifest(zr, bundleManifestName); entry != nil {
		return bundleArchitectures(entry)
	}
	entry := findManifest(zr, packageManifestName)
	if entry == nil {
		architecture = string(arch.Unknown)
		return
	}
	return packageArchitecture(entry)
}

// findManifest matches entry names by suffix, case-insensitively and
// regardless of the path separator the packaging tool used.
func findManifest(zr *zip.Reader, name string) *zip.File {
	for _, f := range zr.File {
		entry := strings.ToLower(strings.ReplaceAll(f.Name, `\`, "/"))
		if entry == name || strings.HasSuffix(entry, "/"+name) {
			return f
		}
	}
	return nil
}

// xmlNode is a generic element tree. Matching is done on local names only:
// manifest namespaces vary across packaging tool versions.
type xmlNode struct {
	XMLName xml.Name
	Attrs   []xml.Attr `xml:",any,attr"`
	Nodes   []xmlNode  `xml:",any"`
}

// child returns the first direct child whose local name matches.
func (n *xmlNode) child(local string) *xmlNode {
	for i := range n.Nodes {
		if n.Nodes[i].XMLName.Local == local {
			return &n.Nodes[i]
		}
	}
	return nil
}

// find returns the first element anywhere under n whose local name matches.
func (n *xmlNode) find(local string) *xmlNode {
	if n.XMLName.Local == local {
		return n
	}
	for i := range n.Nodes {
		if found := n.Nodes[i].find(local); found != nil {
			return found
		}
	}
	return nil
}

// attr returns the first present attribute among the given local names.
func (n *xmlNode) attr(locals ...string) (value string, ok bool) {
	for _, local := range locals {
		for _, a := range n.Attrs {
			if a.Name.Local == local {
				return a.Value, true
			}
		}
	}
	return
}

func decodeManifest(entry *zip.File) (root *xmlNode, err error) {
	rc, err := entry.Open()
	if err != nil {
		err = fmt.Errorf("could not open manifest entry: %w", err)
		return
	}
	defer func() {
		if e := rc.Close(); e != nil {
			Logger.Warn("could not close manifest entry", slog.String("entry", entry.Name), slog.String("error", e.Error()))
		}
	}()

	root = &xmlNode{}
	if err = xml.NewDecoder(io.LimitReader(rc, maxManifestBytes)).Decode(root); err != nil {
		err = fmt.Errorf("could not parse manifest %s: %w", entry.Name, err)
		root = nil
	}
	return
}

// bundleArchitectures collects the distinct architectures declared by the
// Package elements of a bundle manifest. A package element without an
// architecture attribute contributes nothing.
func bundleArchitectures(entry *zip.File) (architecture string, err error) {
	root, err := decodeManifest(entry)
	if err != nil {
		return
	}

	packages := root.child("Packages")
	if packages == nil {
		architecture = string(arch.Unknown)
		return
	}

	var found []string
	seen := map[arch.Architecture]bool{}
	for i := range packages.Nodes {
		pkg := &packages.Nodes[i]
		if pkg.XMLName.Local != "Package" {
			continue
		}
		raw, ok := pkg.attr("ProcessorArchitecture", "Architecture")
		if !ok {
			continue
		}
		a := arch.Normalize(raw)
		if a == arch.Unknown || seen[a] {
			continue
		}
		seen[a] = true
		found = append(found, string(a))
	}

	if len(found) == 0 {
		architecture = string(arch.Unknown)
		return
	}
	architecture = strings.Join(found, ",")
	return
}

// packageArchitecture reads the Identity element of a single-package
// manifest. A missing or empty attribute means architecture-neutral by
// manifest convention, not unknown.
func packageArchitecture(entry *zip.File) (architecture string, err error) {
	root, err := decodeManifest(entry)
	if err != nil {
		return
	}

	identity := root.child("Identity")
	if identity == nil {
		identity = root.find("Identity")
	}
	if identity == nil {
		architecture = string(arch.Unknown)
		return
	}

	raw, ok := identity.attr("ProcessorArchitecture")
	if !ok || raw == "" {
		raw = "neutral"
	}
	architecture = string(arch.Normalize(raw))
	return
}

// seekerReaderAt adapts the filesystem's ReadSeeker to the io.ReaderAt the
// zip reader needs. Serialized: seek-then-read is not concurrency safe.
type seekerReaderAt struct {
	rs io.ReadSeeker
	mu sync.Mutex
}

func (r *seekerReaderAt) ReadAt(p []byte, off int64) (n int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err = r.rs.Seek(off, io.SeekStart); err != nil {
		return
	}
	n, err = io.ReadFull(r.rs, p)
	if err == io.ErrUnexpectedEOF {
		err = io.EOF
	}
	return
}
