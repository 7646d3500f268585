package dump

import "strings"

// Target is an output file template split into its directory, base name and
// extension. Dump files are named Dir + Name + timestamp + Ext.
type Target struct {
	Dir  string
	Name string
	Ext  string
}

// ParseTarget splits an outputFile template. Dir runs through the last '/'
// or '\', Name runs up to the first '.' after Dir, and Ext is the remainder
// including the dot.
//
//	ParseTarget("/data/logs/kpi.bin") // {Dir: "/data/logs/", Name: "kpi", Ext: ".bin"}
func ParseTarget(template string) Target {
	var t Target

	rest := template
	if i := strings.LastIndexAny(template, `/\`); i >= 0 {
		t.Dir = template[:i+1]
		rest = template[i+1:]
	}

	if i := strings.IndexByte(rest, '.'); i >= 0 {
		t.Name = rest[:i]
		t.Ext = rest[i:]
	} else {
		t.Name = rest
	}

	return t
}

// Path returns the full file path for the given formatted timestamp.
func (t Target) Path(timestamp string) string {
	return t.Dir + t.Name + timestamp + t.Ext
}

// listDir is the directory to scan during rotation.
func (t Target) listDir() string {
	if t.Dir == "" {
		return "."
	}
	return t.Dir
}

// String returns the template the target was parsed from.
func (t Target) String() string {
	return t.Dir + t.Name + t.Ext
}

// timestampOf extracts the timestamp portion of a file name produced for
// this target. ok is false when the name does not have the expected shape.
func (t Target) timestampOf(name string) (string, bool) {
	i := strings.Index(name, t.Name)
	if i < 0 {
		return "", false
	}
	ts := name[i+len(t.Name):]
	if t.Ext != "" {
		if !strings.HasSuffix(ts, t.Ext) {
			return "", false
		}
		ts = ts[:len(ts)-len(t.Ext)]
	}
	return ts, ts != ""
}
