// Package store implements the on-disk blockchain/ directory layout:
// a content-addressed, hierarchical tree of (block, blockref, signature)
// file triples, enumerated and validated in strict sorted order.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/toddfratello/pyomcore/block"
	"github.com/toddfratello/pyomcore/errs"
)

// Store is a handle on one verifier's rootdir.
type Store struct {
	Rootdir string
}

// New returns a Store rooted at rootdir.
func New(rootdir string) *Store {
	return &Store{Rootdir: rootdir}
}

func (s *Store) blockchainDir() string {
	return filepath.Join(s.Rootdir, block.BlockchainDirname)
}

// folderForFilename mirrors the original recursive grouping: pairs of
// hex digits become nested directories, except the final <=4 character
// remainder, which contributes only its first two characters and is not
// split further (its last two characters live only in the filename).
func folderForFilename(s string) string {
	if len(s) <= 4 {
		return s[0:2]
	}
	return filepath.Join(s[0:2], folderForFilename(s[2:]))
}

// idxHex formats idx as the 16 hex digit string every block filename is
// built from.
func idxHex(idx int64) string {
	return fmt.Sprintf("%016x", idx)
}

// BlockPath returns the rootdir-relative path for block idx with the
// given extension (block.BlockExtJSON/Ref/Sig).
func BlockPath(idx int64, ext string) string {
	idxstr := idxHex(idx)
	return filepath.Join(block.BlockchainDirname, folderForFilename(idxstr), idxstr+ext)
}

func (s *Store) blockPath(idx int64, ext string) string {
	return filepath.Join(s.Rootdir, BlockPath(idx, ext))
}

// WriteTriple atomically writes the block/blockref/signature triple for
// idx, creating parent directories as needed. Each file is written to a
// temp path and renamed into place so a crash never leaves a partial
// triple visible to a concurrent reader.
func (s *Store) WriteTriple(idx int64, blockContent, blockrefContent, sigContent []byte) error {
	paths := []string{
		s.blockPath(idx, block.BlockExtJSON),
		s.blockPath(idx, block.BlockExtRef),
		s.blockPath(idx, block.BlockExtSig),
	}
	contents := [][]byte{blockContent, blockrefContent, sigContent}
	if err := os.MkdirAll(filepath.Dir(paths[0]), 0o755); err != nil {
		return errs.Wrapf(errs.IOError, err, "mkdir for block %d", idx)
	}
	for i, p := range paths {
		if err := writeAtomic(p, contents[i]); err != nil {
			return errs.Wrapf(errs.IOError, err, "write %s", p)
		}
	}
	return nil
}

func writeAtomic(path string, content []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, content, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// ReadTriple reads the three files for block idx.
func (s *Store) ReadTriple(idx int64) (blockContent, blockrefContent, sigContent []byte, err error) {
	blockContent, err = os.ReadFile(s.blockPath(idx, block.BlockExtJSON))
	if err != nil {
		return nil, nil, nil, errs.Wrapf(errs.NotFound, err, "read block %d", idx)
	}
	blockrefContent, err = os.ReadFile(s.blockPath(idx, block.BlockExtRef))
	if err != nil {
		return nil, nil, nil, errs.Wrapf(errs.NotFound, err, "read blockref %d", idx)
	}
	sigContent, err = os.ReadFile(s.blockPath(idx, block.BlockExtSig))
	if err != nil {
		return nil, nil, nil, errs.Wrapf(errs.NotFound, err, "read signature %d", idx)
	}
	return blockContent, blockrefContent, sigContent, nil
}

// ReadBlock reads and decodes block idx.
func (s *Store) ReadBlock(idx int64) (*block.Block, error) {
	data, err := os.ReadFile(s.blockPath(idx, block.BlockExtJSON))
	if err != nil {
		return nil, errs.Wrapf(errs.NotFound, err, "read block %d", idx)
	}
	var b block.Block
	if err := unmarshalBlock(data, &b); err != nil {
		return nil, errs.Wrapf(errs.Schema, err, "decode block %d", idx)
	}
	return &b, nil
}

// iterDirRecursive lists every regular file under dir in sorted order,
// matching the original's recursive find-like traversal.
func iterDirRecursive(dir string) ([]string, error) {
	var files []string
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	for _, e := range entries {
		p := filepath.Join(dir, e.Name())
		if e.IsDir() {
			sub, err := iterDirRecursive(p)
			if err != nil {
				return nil, err
			}
			files = append(files, sub...)
		} else {
			files = append(files, p)
		}
	}
	return files, nil
}

// Validate walks the blockchain directory in sorted order and checks
// that every file is exactly where BlockPath says it should be, in the
// json/ref/sig cycle, with no gaps or stray files. Returns the number
// of complete block triples found.
func (s *Store) Validate() (int64, error) {
	files, err := iterDirRecursive(s.blockchainDir())
	if err != nil {
		return 0, errs.Wrapf(errs.IOError, err, "walk blockchain dir")
	}
	var n int64
	for _, f := range files {
		idx := n / 3
		var ext string
		switch n % 3 {
		case 0:
			ext = block.BlockExtJSON
		case 1:
			ext = block.BlockExtRef
		default:
			ext = block.BlockExtSig
		}
		expected := s.blockPath(idx, ext)
		if f != expected {
			return 0, errs.Newf(errs.LayoutCorruption, "unexpected file in blockchain dir: %s expected: %s", f, expected)
		}
		n++
	}
	if n%3 != 0 {
		return 0, errs.New(errs.LayoutCorruption, "blockchain dir ends mid-triple")
	}
	return n / 3, nil
}

var jsonNameRe = regexp.MustCompile(`^[0-9a-f]+\.json$`)

// MostRecentIdx returns the highest block index present on disk.
func (s *Store) MostRecentIdx() (int64, error) {
	files, err := iterDirRecursive(s.blockchainDir())
	if err != nil {
		return 0, errs.Wrapf(errs.IOError, err, "walk blockchain dir")
	}
	var best int64 = -1
	for _, f := range files {
		name := filepath.Base(f)
		if !jsonNameRe.MatchString(name) {
			continue
		}
		hexPart := strings.TrimSuffix(name, block.BlockExtJSON)
		idx, err := strconv.ParseInt(hexPart, 16, 64)
		if err != nil {
			continue
		}
		if f != s.blockPath(idx, block.BlockExtJSON) {
			return 0, errs.Newf(errs.LayoutCorruption, "most recent block: bad filename: %s", f)
		}
		if idx > best {
			best = idx
		}
	}
	if best < 0 {
		return 0, errs.Newf(errs.NotFound, "most_recent_block failed in %s", s.Rootdir)
	}
	return best, nil
}

func unmarshalBlock(data []byte, b *block.Block) error {
	return b.UnmarshalJSON(data)
}
