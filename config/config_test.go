package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-quicktest/qt"
	"github.com/midbel/xquery/xml"
	"github.com/midbel/xquery/xquery"
	"golang.org/x/tools/txtar"
)

const sessionArchive = `
-- session.yml --
namespaces:
  ex: urn:example
variables:
  limit: 3
  name: world
  ratio: 0.5
  flags: [true, false]
  matrix: [[1, 2], [3]]
  opts:
    depth: 2
    mode: fast
modules:
  dirs: [lib]
  cache: 8
collation: http://www.w3.org/2013/collation/UCA?strength=primary
range-limit: 50
type-cache: 16
log: warn
-- lib/greet.xq --
module namespace g = "urn:greet";
declare function g:hello($who) { "hello " || $who };
`

func writeArchive(t *testing.T, archive string) string {
	t.Helper()
	dir := t.TempDir()
	for _, f := range txtar.Parse([]byte(archive)).Files {
		file := filepath.Join(dir, filepath.FromSlash(f.Name))
		qt.Assert(t, qt.IsNil(os.MkdirAll(filepath.Dir(file), 0o755)))
		qt.Assert(t, qt.IsNil(os.WriteFile(file, f.Data, 0o644)))
	}
	return dir
}

func TestLoad(t *testing.T) {
	dir := writeArchive(t, sessionArchive)
	cfg, err := Load(filepath.Join(dir, "session.yml"))
	qt.Assert(t, qt.IsNil(err))

	qt.Assert(t, qt.DeepEquals(cfg.Namespaces, map[string]string{"ex": "urn:example"}))
	qt.Assert(t, qt.DeepEquals(cfg.Modules.Dirs, []string{filepath.Join(dir, "lib")}))
	qt.Assert(t, qt.Equals(cfg.Modules.Cache, 8))
	qt.Assert(t, qt.Equals(cfg.RangeLimit, int64(50)))
	qt.Assert(t, qt.Equals(cfg.TypeCache, 16))
	qt.Assert(t, qt.IsNil(cfg.Tracer()))
}

func TestOptions(t *testing.T) {
	dir := writeArchive(t, sessionArchive)
	cfg, err := Load(filepath.Join(dir, "session.yml"))
	qt.Assert(t, qt.IsNil(err))

	options, err := cfg.Options()
	qt.Assert(t, qt.IsNil(err))

	tests := []struct {
		Query string
		Want  string
	}{
		{Query: "$limit * 2", Want: "6"},
		{Query: "'hello ' || $name", Want: "hello world"},
		{Query: "$ratio", Want: "0.5"},
		{Query: "count($flags)", Want: "2"},
		{Query: "$matrix[2]?1", Want: "3"},
		{Query: "$opts?mode", Want: "fast"},
		{Query: "'a' = 'A'", Want: "true"},
		{Query: "import module namespace g = 'urn:greet' at 'greet.xq'; g:hello('you')", Want: "hello you"},
	}
	for _, tt := range tests {
		seq, err := xquery.New(options...).Find(tt.Query, nil)
		qt.Assert(t, qt.IsNil(err), qt.Commentf("query: %s", tt.Query))
		qt.Check(t, qt.Equals(seq.String(), tt.Want), qt.Commentf("query: %s", tt.Query))
	}

	doc, err := xml.ParseString(`<r xmlns:a="urn:example"><a:item>one</a:item><item>two</item></r>`)
	qt.Assert(t, qt.IsNil(err))
	seq, err := xquery.New(options...).Find("/r/ex:item ! string()", doc)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(seq.String(), "one"))

	_, err = xquery.New(options...).Find("1 to 100", nil)
	qt.Assert(t, qt.ErrorIs(err, xquery.ErrRange))
}

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse(strings.NewReader(""))
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(cfg.RangeLimit, int64(xquery.DefaultRangeLimit)))
	qt.Assert(t, qt.Equals(cfg.TypeCache, xquery.DefaultTypeCache))

	options, err := cfg.Options()
	qt.Assert(t, qt.IsNil(err))
	seq, err := xquery.New(options...).Find("count(1 to 1000)", nil)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(seq.String(), "1000"))
}

func TestParseInvalid(t *testing.T) {
	tests := []string{
		"range-limit: -1",
		"type-cache: -2",
		"collation: http://example.com/unknown",
		"trace: file",
		"log: verbose",
		"unknown: field",
		"namespaces: [a, b]",
	}
	for _, str := range tests {
		_, err := Parse(strings.NewReader(str))
		qt.Check(t, qt.ErrorIs(err, ErrConfig), qt.Commentf("config: %s", str))
	}
}

func TestTracer(t *testing.T) {
	for _, str := range []string{"stdout", "stderr"} {
		cfg, err := Parse(strings.NewReader("trace: " + str))
		qt.Assert(t, qt.IsNil(err))
		qt.Assert(t, qt.IsNotNil(cfg.Tracer()))
	}
}
