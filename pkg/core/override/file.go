//
//  Copyright © Manetu Inc. All rights reserved.
//

package override

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/manetu/archiveauth/internal/logging"
	"github.com/manetu/archiveauth/pkg/common"
	"github.com/manetu/archiveauth/pkg/core/types"
	"github.com/pkg/errors"
)

var logger = logging.GetLogger("archiveauth.override")

var filenamePattern = regexp.MustCompile(`^override(\.\d+)?\.access$`)

// DirectoryKey identifies the archive directory an override file governs.
type DirectoryKey struct {
	Night         time.Time
	InstrumentDir string
}

// String renders the key as the archive relative directory YYYY-MM/DD/<instrument_dir>.
func (k DirectoryKey) String() string {
	return k.Night.Format("2006-01/02") + "/" + k.InstrumentDir
}

// File is one parsed override access file. Higher sequence ids supersede lower ones.
type File struct {
	ObservingNight time.Time
	InstrumentDir  string
	SequenceID     int
	Rules          []*Rule
}

// Key returns the directory this file applies to.
func (f *File) Key() DirectoryKey {
	return DirectoryKey{Night: f.ObservingNight, InstrumentDir: f.InstrumentDir}
}

// Name returns the file's base name, override.access or override.N.access.
func (f *File) Name() string {
	if f.SequenceID == 0 {
		return "override.access"
	}
	return fmt.Sprintf("override.%d.access", f.SequenceID)
}

// RelPath returns the archive relative path of the file.
func (f *File) RelPath() string {
	return f.Key().String() + "/" + f.Name()
}

// Path returns the file's location under an archive root.
func (f *File) Path(root string) string {
	return filepath.Join(root, filepath.FromSlash(f.RelPath()))
}

func (f *File) String() string {
	return f.RelPath()
}

// CheckFilename reports whether the base name of name is an override access file name.
func CheckFilename(name string) bool {
	return filenamePattern.MatchString(path.Base(filepath.ToSlash(name)))
}

// SequenceID extracts the sequence number from an override access file name.
func SequenceID(name string) (int, error) {
	base := path.Base(filepath.ToSlash(name))
	m := filenamePattern.FindStringSubmatch(base)
	if m == nil {
		return 0, common.NewErrorf(common.ParseError, "invalid override access file name %q", name)
	}
	if m[1] == "" {
		return 0, nil
	}
	seq, err := strconv.Atoi(strings.TrimPrefix(m[1], "."))
	if err != nil {
		return 0, common.NewErrorf(common.ParseError, "invalid override access file name %q: %v", name, err)
	}
	return seq, nil
}

// ParseFile reads and parses the override access file at p.
func ParseFile(p string) (*File, error) {
	logger.SysInfof("Parsing override access file %s", p)

	abs, err := filepath.Abs(p)
	if err != nil {
		return nil, errors.Wrapf(err, "resolving %s", p)
	}

	fd, err := os.Open(abs) // #nosec G304 -- override files are found by scanning the archive
	if err != nil {
		return nil, errors.Wrapf(err, "error reading file %s", p)
	}
	defer func() { _ = fd.Close() }()

	return Parse(fd, abs)
}

// Parse parses override access file contents read from r. The observing night,
// instrument directory and sequence id are taken from p, which must end in
// YYYY-MM/DD/<instrument_dir>/override[.N].access. The first bad line fails the
// whole file.
func Parse(r io.Reader, p string) (*File, error) {
	night, instr, err := types.NightFromPath(p)
	if err != nil {
		return nil, common.NewErrorf(common.ParseError, "invalid override access file path: %v", err)
	}

	seq, err := SequenceID(p)
	if err != nil {
		return nil, err
	}

	f := &File{
		ObservingNight: night,
		InstrumentDir:  instr,
		SequenceID:     seq,
	}

	scanner := bufio.NewScanner(r)
	lineno := 0
	for scanner.Scan() {
		lineno++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		rule, err := ParseRule(line)
		if err != nil {
			return nil, errors.Wrapf(err, "error reading file %s line %d", p, lineno)
		}
		f.Rules = append(f.Rules, rule)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "error reading file %s", p)
	}

	return f, nil
}

// Format writes f in override access file syntax.
func Format(w io.Writer, f *File) error {
	if _, err := fmt.Fprintf(w, "# %s\n", f.RelPath()); err != nil {
		return err
	}
	for _, r := range f.Rules {
		if _, err := fmt.Fprintln(w, r.String()); err != nil {
			return err
		}
	}
	return nil
}
