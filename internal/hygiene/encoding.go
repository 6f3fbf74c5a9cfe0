package hygiene

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/firefly-engineering/skillctl/internal/csvio"
	"github.com/firefly-engineering/skillctl/internal/logging"
)

// Encoding rules.
const (
	RuleInvalidUTF8 = "invalid_utf8"
	RuleShiftJIS    = "shift_jis"
	RuleBOM         = "bom"
	RuleCRLF        = "crlf"
)

var skipDirs = map[string]bool{
	".git":         true,
	".hg":          true,
	"node_modules": true,
	".venv":        true,
	"venv":         true,
	"__pycache__":  true,
	".mypy_cache":  true,
	"dist":         true,
}

var binaryExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".ico": true, ".webp": true,
	".pdf": true, ".zip": true, ".gz": true, ".tgz": true, ".xz": true,
	".xlsx": true, ".xls": true, ".docx": true, ".pptx": true,
	".db": true, ".sqlite": true, ".exe": true, ".so": true, ".dylib": true,
	".woff": true, ".woff2": true, ".ttf": true, ".pyc": true,
}

// EncodingOptions tunes CheckEncoding.
type EncodingOptions struct {
	// AllowBOMExts lists extensions where a UTF-8 BOM is expected, such as
	// ".csv" files meant for Excel.
	AllowBOMExts []string
	AllowCRLF    bool
	// MaxBytes skips larger files. Zero means 5 MiB.
	MaxBytes int64
}

// CheckEncoding walks root and flags text files that are not plain UTF-8
// with LF line endings.
func CheckEncoding(root string, opts EncodingOptions) (*Report, error) {
	if opts.MaxBytes == 0 {
		opts.MaxBytes = 5 << 20
	}
	allowBOM := make(map[string]bool, len(opts.AllowBOMExts))
	for _, ext := range opts.AllowBOMExts {
		allowBOM[strings.ToLower(ext)] = true
	}

	rep := &Report{Check: "encoding", Root: root, Findings: []Finding{}}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if binaryExts[ext] {
			return nil
		}
		info, err := d.Info()
		if err != nil || info.Size() > opts.MaxBytes {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		if looksBinary(data) {
			return nil
		}

		rel, _ := filepath.Rel(root, path)
		rel = filepath.ToSlash(rel)
		rep.Scanned++
		checkFile(rep, rel, data, allowBOM[ext], opts.AllowCRLF)
		return nil
	})
	if err != nil {
		return nil, err
	}

	rep.sort()
	logging.Debug("encoding check finished", "root", root, "scanned", rep.Scanned, "findings", len(rep.Findings))
	return rep, nil
}

func checkFile(rep *Report, rel string, data []byte, allowBOM, allowCRLF bool) {
	switch csvio.Detect(data) {
	case csvio.EncodingSJIS:
		rep.add(rel, RuleShiftJIS, "file appears to be Shift_JIS; convert to UTF-8")
		return
	case csvio.EncodingUnknown:
		rep.add(rel, RuleInvalidUTF8, "file is not valid UTF-8")
		return
	case csvio.EncodingUTF8BOM:
		if !allowBOM {
			rep.add(rel, RuleBOM, "file starts with a UTF-8 byte order mark")
		}
	}
	if !allowCRLF {
		if n := bytes.Count(data, []byte("\r\n")); n > 0 {
			rep.add(rel, RuleCRLF, "%d line(s) end with CRLF", n)
		}
	}
}

// looksBinary reports whether the first 8000 bytes contain a NUL, the same
// heuristic git uses.
func looksBinary(data []byte) bool {
	if len(data) > 8000 {
		data = data[:8000]
	}
	return bytes.IndexByte(data, 0) >= 0
}
