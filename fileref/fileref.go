// Package fileref resolves and loads content-addressed block.Fileref and
// block.Pathref values against a list of location roots, and creates new
// ones when building a block. A location array maps a small integer
// locidx to an absolute root directory; every fileref/pathref is relative
// to one of those roots, never to an absolute path.
package fileref

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/toddfratello/pyomcore/block"
	"github.com/toddfratello/pyomcore/errs"
)

// LocationArray maps locidx to an absolute root directory.
type LocationArray []string

// Resolve returns the absolute, symlink-resolved path a fileref or
// pathref (identified by locidx+filename) refers to, rejecting absolute
// filenames and any path that escapes its location root once symlinks
// are followed.
func Resolve(locs LocationArray, locidx int, filename string) (string, error) {
	if locidx < 0 || locidx >= len(locs) {
		return "", errs.Newf(errs.LayoutCorruption, "locidx %d out of range (have %d locations)", locidx, len(locs))
	}
	if filepath.IsAbs(filename) {
		return "", errs.Newf(errs.PathEscape, "absolute path in fileref: %s", filename)
	}
	root := locs[locidx]
	full := filepath.Join(root, filename)

	realRoot, err := realOrClean(root)
	if err != nil {
		return "", errs.Wrapf(errs.IOError, err, "resolve root %s", root)
	}
	realFull, err := realOrClean(full)
	if err != nil {
		return "", errs.Wrapf(errs.IOError, err, "resolve path %s", full)
	}
	rel, err := filepath.Rel(realRoot, realFull)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errs.Newf(errs.PathEscape, "path traversal attempt: %s escapes %s", filename, root)
	}
	return realFull, nil
}

// realOrClean resolves symlinks for paths that exist, and falls back to
// filepath.Clean for paths that don't exist yet (e.g. a write target).
func realOrClean(p string) (string, error) {
	real, err := filepath.EvalSymlinks(p)
	if err != nil {
		if os.IsNotExist(err) {
			return filepath.Clean(p), nil
		}
		return "", err
	}
	return real, nil
}

// Load resolves ref and returns its contents, failing if the magic
// number or the SHA-512 digest doesn't match.
func Load(locs LocationArray, ref block.Fileref) ([]byte, error) {
	if ref.Magic != block.FilerefMagic {
		return nil, errs.New(errs.Schema, "bad fileref magic number")
	}
	full, err := Resolve(locs, ref.Locidx, ref.Filename)
	if err != nil {
		return nil, err
	}
	content, err := os.ReadFile(full)
	if err != nil {
		return nil, errs.Wrapf(errs.IOError, err, "read fileref %s", full)
	}
	if got := block.SHA512Hex(content); got != ref.SHA512 {
		return nil, errs.Newf(errs.HashMismatch, "hash mismatch on fileref %s: expected %s got %s", full, ref.SHA512, got)
	}
	return content, nil
}

// ResolvePathref resolves a pathref (no digest check, used for
// directories such as a git repository checkout).
func ResolvePathref(locs LocationArray, ref block.Pathref) (string, error) {
	return Resolve(locs, ref.Locidx, ref.Filename)
}

// Create reads rootdir/relpath and returns a Fileref over its contents,
// addressed against locidx.
func Create(rootdir string, locidx int, relpath string) (block.Fileref, error) {
	full := filepath.Join(rootdir, relpath)
	content, err := os.ReadFile(full)
	if err != nil {
		return block.Fileref{}, errs.Wrapf(errs.IOError, err, "read %s", full)
	}
	return block.NewFileref(locidx, filepath.ToSlash(relpath), block.SHA512Hex(content)), nil
}

// CreatePathref builds a Pathref with no digest, typically for a
// directory.
func CreatePathref(locidx int, relpath string) block.Pathref {
	return block.NewPathref(locidx, filepath.ToSlash(relpath))
}

// CheckAll walks v recursively (maps, slices, and any json-shaped value
// reachable through them) and verifies every embedded fileref's digest.
// It mirrors the original implementation's practice of scanning an
// entire decoded block/transaction for pyom_fileref_magic objects rather
// than only checking the filerefs a given action declares explicitly.
func CheckAll(locs LocationArray, v any) error {
	switch t := v.(type) {
	case map[string]any:
		if magic, ok := t["pyom_fileref_magic"]; ok {
			if s, ok := magic.(string); ok && s == block.FilerefMagic {
				ref, err := filerefFromMap(t)
				if err != nil {
					return err
				}
				if _, err := Load(locs, ref); err != nil {
					return err
				}
			}
		}
		for _, val := range t {
			if err := CheckAll(locs, val); err != nil {
				return err
			}
		}
	case []any:
		for _, item := range t {
			if err := CheckAll(locs, item); err != nil {
				return err
			}
		}
	}
	return nil
}

func filerefFromMap(m map[string]any) (block.Fileref, error) {
	locidxF, _ := m["locidx"].(float64)
	filename, _ := m["filename"].(string)
	sha, _ := m["SHA-512"].(string)
	if filename == "" || sha == "" {
		return block.Fileref{}, errs.New(errs.Schema, "malformed fileref")
	}
	return block.NewFileref(int(locidxF), filename, sha), nil
}
