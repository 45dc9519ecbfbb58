// Package fingerprint names output files after their content.
package fingerprint

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/zeebo/xxh3"
)

// HashLength is the number of hex characters kept in an output name.
const HashLength = 8

// ErrEmpty is returned by Write for zero-length content, which is never
// written.
var ErrEmpty = errors.New("empty content")

// Hasher turns content into a hex digest. Only the first HashLength
// characters are used.
type Hasher interface {
	Sum(data []byte) string
}

// HasherFunc adapts a function to the Hasher interface.
type HasherFunc func(data []byte) string

func (f HasherFunc) Sum(data []byte) string { return f(data) }

var (
	SHA256 Hasher = HasherFunc(func(data []byte) string {
		sum := sha256.Sum256(data)
		return hex.EncodeToString(sum[:])
	})
	MD5 Hasher = HasherFunc(func(data []byte) string {
		sum := md5.Sum(data)
		return hex.EncodeToString(sum[:])
	})
	XXH3 Hasher = HasherFunc(func(data []byte) string {
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], xxh3.Hash(data))
		return hex.EncodeToString(buf[:])
	})
)

// HasherByName maps a configured hash name to a Hasher. The empty name
// selects SHA256.
func HasherByName(name string) (Hasher, error) {
	switch strings.ToLower(name) {
	case "", "sha256":
		return SHA256, nil
	case "md5":
		return MD5, nil
	case "xxh3":
		return XXH3, nil
	}
	return nil, fmt.Errorf("unknown hash %q", name)
}

// Writer is the part of the file system the fingerprinter writes through.
type Writer interface {
	Write(path string, data []byte) error
}

// Fingerprinter computes output paths for one source/output root pair.
type Fingerprinter struct {
	SrcRoot string
	OutRoot string
	Hasher  Hasher
	// NoHash patterns exempt matching files from the hash suffix. A pattern
	// is tested against both the source path and the unhashed output path,
	// so `\.html$` also covers templates that compile to HTML.
	NoHash []*regexp.Regexp
}

// New returns a Fingerprinter. A nil hasher selects SHA256.
func New(srcRoot, outRoot string, hasher Hasher, noHash []*regexp.Regexp) *Fingerprinter {
	if hasher == nil {
		hasher = SHA256
	}
	return &Fingerprinter{
		SrcRoot: filepath.Clean(srcRoot),
		OutRoot: filepath.Clean(outRoot),
		Hasher:  hasher,
		NoHash:  noHash,
	}
}

// Suffix returns the short content hash for data.
func (f *Fingerprinter) Suffix(data []byte) string {
	sum := f.Hasher.Sum(data)
	if len(sum) > HashLength {
		sum = sum[:HashLength]
	}
	return sum
}

// OutputPath returns
//
//	<OutRoot>/<dir relative to SrcRoot>/<base without ext>[.<hash>]<outExt>
//
// The result depends only on the arguments.
func (f *Fingerprinter) OutputPath(srcPath, outExt string, data []byte) string {
	rel, err := filepath.Rel(f.SrcRoot, srcPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		rel = filepath.Base(srcPath)
	}
	stem := strings.TrimSuffix(rel, filepath.Ext(rel))
	plain := filepath.Join(f.OutRoot, stem+outExt)
	if f.exempt(srcPath, plain) {
		return plain
	}
	return filepath.Join(f.OutRoot, stem+"."+f.Suffix(data)+outExt)
}

func (f *Fingerprinter) exempt(paths ...string) bool {
	for _, re := range f.NoHash {
		for _, p := range paths {
			if re.MatchString(filepath.ToSlash(p)) {
				return true
			}
		}
	}
	return false
}

// Write computes the output path for data, writes it through w and returns
// the path. Empty data is rejected with ErrEmpty.
func (f *Fingerprinter) Write(w Writer, srcPath, outExt string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrEmpty
	}
	out := f.OutputPath(srcPath, outExt, data)
	if err := w.Write(out, data); err != nil {
		return "", fmt.Errorf("write %s: %w", out, err)
	}
	return out, nil
}
