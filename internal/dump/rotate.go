package dump

import (
	"sort"
	"strings"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/jittakal/audiomemlog/internal/errors"
)

type candidate struct {
	name   string
	stamp  time.Time
	parsed bool
}

// EnforceMaxFiles deletes the oldest files matching target until fewer than
// maxFiles remain, leaving room for newFile. Files match when they are
// regular and their name contains target.Name. Files whose embedded
// timestamp parses are evicted first, earliest timestamp first. Only then are
// unparseable files evicted, oldest modification time first. Ties go to the
// lexically smaller name.
//
// Nothing is deleted when maxFiles is zero or newFile already exists, since
// a second dump within the same second appends to that file.
func (w *Writer) EnforceMaxFiles(target Target, maxFiles int, newFile string) (int, error) {
	if maxFiles <= 0 {
		return 0, nil
	}
	if _, err := w.fs.Stat(newFile); err == nil {
		return 0, nil
	}

	dir := target.listDir()
	infos, err := afero.ReadDir(w.fs, dir)
	if err != nil {
		return 0, &errors.IOError{Operation: "list", Path: dir, Err: err}
	}

	var matches []candidate
	for _, info := range infos {
		if !info.Mode().IsRegular() || !strings.Contains(info.Name(), target.Name) {
			continue
		}
		stamp, parsed := w.parseStamp(target, info.Name())
		if !parsed {
			stamp = info.ModTime()
		}
		matches = append(matches, candidate{name: info.Name(), stamp: stamp, parsed: parsed})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].parsed != matches[j].parsed {
			return matches[i].parsed
		}
		if !matches[i].stamp.Equal(matches[j].stamp) {
			return matches[i].stamp.Before(matches[j].stamp)
		}
		return matches[i].name < matches[j].name
	})

	removed := 0
	for len(matches)-removed >= maxFiles {
		victim := target.Dir + matches[removed].name
		if err := w.fs.Remove(victim); err != nil {
			return removed, &errors.IOError{Operation: "delete", Path: victim, Err: err}
		}
		w.logger.Debug("rotated dump file",
			zap.String("path", victim),
			zap.Int("max_files", maxFiles),
		)
		removed++
	}

	return removed, nil
}

func (w *Writer) parseStamp(target Target, name string) (time.Time, bool) {
	if w.layout == "" {
		return time.Time{}, false
	}
	ts, ok := target.timestampOf(name)
	if !ok {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(w.layout, ts, time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
