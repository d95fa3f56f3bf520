package toolchain

import (
	"archive/tar"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ulikunitz/xz"

	"github.com/buckleypaul/droidclang/internal/checkout"
)

type tarEntry struct {
	name string
	body string
	dir  bool
	link string
}

func writeTarXz(t *testing.T, path string, entries []tarEntry) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	xw, err := xz.NewWriter(f)
	if err != nil {
		t.Fatal(err)
	}
	tw := tar.NewWriter(xw)
	for _, e := range entries {
		hdr := &tar.Header{Name: e.name, Mode: 0o755}
		switch {
		case e.dir:
			hdr.Typeflag = tar.TypeDir
		case e.link != "":
			hdr.Typeflag = tar.TypeSymlink
			hdr.Linkname = e.link
		default:
			hdr.Typeflag = tar.TypeReg
			hdr.Size = int64(len(e.body))
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		if !e.dir && e.link == "" {
			if _, err := tw.Write([]byte(e.body)); err != nil {
				t.Fatal(err)
			}
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := xw.Close(); err != nil {
		t.Fatal(err)
	}
}

func packageName() string {
	return "clang-dev-" + checkout.HostOS() + "-x86.tar.xz"
}

func TestFindPackage(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, packageName()), nil, 0o644)
	os.WriteFile(filepath.Join(dir, "clang-dev-windows-x86.zip"), nil, 0o644)
	os.WriteFile(filepath.Join(dir, "notes.txt"), nil, 0o644)

	got, err := FindPackage(dir, checkout.HostOS())
	if err != nil {
		t.Fatalf("FindPackage failed: %v", err)
	}
	if filepath.Base(got) != packageName() {
		t.Errorf("FindPackage = %s", got)
	}
}

func TestFindPackageNone(t *testing.T) {
	_, err := FindPackage(t.TempDir(), "linux")
	if !errors.Is(err, ErrPackaging) {
		t.Fatalf("expected ErrPackaging, got %v", err)
	}
}

func TestFindPackageAmbiguous(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "clang-r1-linux-x86.tar.bz2"), nil, 0o644)
	os.WriteFile(filepath.Join(dir, "clang-r2-linux-x86.tar.xz"), nil, 0o644)

	_, err := FindPackage(dir, "linux")
	if !errors.Is(err, ErrPackaging) {
		t.Fatalf("expected ErrPackaging, got %v", err)
	}
}

func TestExtractPackageSingleDirectory(t *testing.T) {
	pkgDir := t.TempDir()
	writeTarXz(t, filepath.Join(pkgDir, packageName()), []tarEntry{
		{name: "clang-dev/", dir: true},
		{name: "clang-dev/bin/", dir: true},
		{name: "clang-dev/bin/clang", body: "#!/bin/sh\n"},
	})

	extractDir := filepath.Join(t.TempDir(), "extracted")
	os.MkdirAll(filepath.Join(extractDir, "stale-previous-run"), 0o755)

	root, err := ExtractPackage(pkgDir, extractDir)
	if err != nil {
		t.Fatalf("ExtractPackage failed: %v", err)
	}
	if root != filepath.Join(extractDir, "clang-dev") {
		t.Errorf("root = %s", root)
	}
	if _, err := os.Stat(filepath.Join(root, "bin", "clang")); err != nil {
		t.Errorf("clang not extracted: %v", err)
	}
	if _, err := os.Stat(filepath.Join(extractDir, "stale-previous-run")); !os.IsNotExist(err) {
		t.Error("stale extraction was not cleared")
	}
}

func TestExtractPackageRejectsMultipleTopLevelEntries(t *testing.T) {
	pkgDir := t.TempDir()
	writeTarXz(t, filepath.Join(pkgDir, packageName()), []tarEntry{
		{name: "clang-dev/", dir: true},
		{name: "README", body: "hi"},
	})

	extractDir := filepath.Join(t.TempDir(), "extracted")
	_, err := ExtractPackage(pkgDir, extractDir)
	if !errors.Is(err, ErrPackaging) {
		t.Fatalf("expected ErrPackaging, got %v", err)
	}
	if _, err := os.Stat(extractDir); !os.IsNotExist(err) {
		t.Error("partial extraction left in place")
	}
}

func TestExtractPackageRejectsFileRoot(t *testing.T) {
	pkgDir := t.TempDir()
	writeTarXz(t, filepath.Join(pkgDir, packageName()), []tarEntry{
		{name: "clang", body: "not a dir"},
	})

	_, err := ExtractPackage(pkgDir, filepath.Join(t.TempDir(), "extracted"))
	if !errors.Is(err, ErrPackaging) {
		t.Fatalf("expected ErrPackaging, got %v", err)
	}
}

func TestExtractPackageRejectsEscapingEntries(t *testing.T) {
	pkgDir := t.TempDir()
	writeTarXz(t, filepath.Join(pkgDir, packageName()), []tarEntry{
		{name: "../evil", body: "x"},
	})

	_, err := ExtractPackage(pkgDir, filepath.Join(t.TempDir(), "extracted"))
	if !errors.Is(err, ErrPackaging) {
		t.Fatalf("expected ErrPackaging, got %v", err)
	}
}

func TestExtractPackageNoMatchLeavesNothing(t *testing.T) {
	extractDir := filepath.Join(t.TempDir(), "extracted")
	os.MkdirAll(extractDir, 0o755)

	_, err := ExtractPackage(t.TempDir(), extractDir)
	if !errors.Is(err, ErrPackaging) {
		t.Fatalf("expected ErrPackaging, got %v", err)
	}
	if _, err := os.Stat(extractDir); !os.IsNotExist(err) {
		t.Error("stale extraction dir should be cleared")
	}
}

func TestExtractPackageRejectsWritesThroughSymlink(t *testing.T) {
	outside := t.TempDir()
	pkgDir := t.TempDir()
	writeTarXz(t, filepath.Join(pkgDir, packageName()), []tarEntry{
		{name: "clang/", dir: true},
		{name: "clang/link", link: outside},
		{name: "clang/link/evil", body: "x"},
	})

	_, err := ExtractPackage(pkgDir, filepath.Join(t.TempDir(), "extracted"))
	if !errors.Is(err, ErrPackaging) {
		t.Fatalf("expected ErrPackaging, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(outside, "evil")); !os.IsNotExist(err) {
		t.Error("file was written outside the extraction dir")
	}
}

func TestExtractPackageRejectsRelativeEscapingSymlink(t *testing.T) {
	pkgDir := t.TempDir()
	writeTarXz(t, filepath.Join(pkgDir, packageName()), []tarEntry{
		{name: "clang/", dir: true},
		{name: "clang/up", link: "../../.."},
	})

	_, err := ExtractPackage(pkgDir, filepath.Join(t.TempDir(), "extracted"))
	if !errors.Is(err, ErrPackaging) {
		t.Fatalf("expected ErrPackaging, got %v", err)
	}
}

func TestExtractPackageRejectsFileThroughInternalSymlink(t *testing.T) {
	pkgDir := t.TempDir()
	writeTarXz(t, filepath.Join(pkgDir, packageName()), []tarEntry{
		{name: "clang/", dir: true},
		{name: "clang/lib/", dir: true},
		{name: "clang/lib64", link: "lib"},
		{name: "clang/lib64/libc++.so", body: "elf"},
	})

	_, err := ExtractPackage(pkgDir, filepath.Join(t.TempDir(), "extracted"))
	if !errors.Is(err, ErrPackaging) {
		t.Fatalf("expected ErrPackaging, got %v", err)
	}
}

func TestExtractPackageKeepsInternalSymlinks(t *testing.T) {
	pkgDir := t.TempDir()
	writeTarXz(t, filepath.Join(pkgDir, packageName()), []tarEntry{
		{name: "clang/", dir: true},
		{name: "clang/bin/", dir: true},
		{name: "clang/bin/clang", body: "#!/bin/sh\n"},
		{name: "clang/bin/clang++", link: "clang"},
	})

	root, err := ExtractPackage(pkgDir, filepath.Join(t.TempDir(), "extracted"))
	if err != nil {
		t.Fatalf("ExtractPackage failed: %v", err)
	}
	link, err := os.Readlink(filepath.Join(root, "bin", "clang++"))
	if err != nil || link != "clang" {
		t.Errorf("expected clang++ -> clang, got %q (%v)", link, err)
	}
}
