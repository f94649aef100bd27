package xquery

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/go-quicktest/qt"
	"golang.org/x/tools/txtar"
)

// loadArchive splits a txtar archive into the main query, stored in
// main.xq, and a loader serving the other files.
func loadArchive(t *testing.T, archive string) (string, MapLoader) {
	t.Helper()
	var (
		ar     = txtar.Parse([]byte(archive))
		loader = make(MapLoader)
		query  string
	)
	for _, f := range ar.Files {
		if f.Name == "main.xq" {
			query = string(f.Data)
			continue
		}
		loader[f.Name] = string(f.Data)
	}
	qt.Assert(t, qt.Not(qt.Equals(query, "")))
	return query, loader
}

func errorCode(t *testing.T, err error) string {
	t.Helper()
	var x *Error
	qt.Assert(t, qt.ErrorAs(err, &x))
	return x.Code
}

type countingLoader struct {
	Loader

	mu    sync.Mutex
	reads map[string]int
}

func countReads(loader Loader) *countingLoader {
	return &countingLoader{
		Loader: loader,
		reads:  make(map[string]int),
	}
}

func (c *countingLoader) ReadTextResource(location, encoding string) (string, error) {
	c.mu.Lock()
	c.reads[location]++
	c.mu.Unlock()
	return c.Loader.ReadTextResource(location, encoding)
}

func (c *countingLoader) Count(location string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads[location]
}

const importArchive = `
-- main.xq --
import module namespace a = "urn:a" at "a.xq";
a:double($a:x), a:get()
-- a.xq --
module namespace a = "urn:a";
declare variable $a:x := 42;
declare function a:double($n) { $n * 2 };
declare function a:get() { $a:x };
`

func TestModuleImport(t *testing.T) {
	query, loader := loadArchive(t, importArchive)
	seq := run(t, query, nil, WithLoader(loader))
	qt.Assert(t, qt.Equals(seq.String(), "84 42"))
}

func TestModuleImportNested(t *testing.T) {
	const archive = `
-- main.xq --
import module namespace a = "urn:a" at "lib/a.xq";
a:greet("world")
-- lib/a.xq --
module namespace a = "urn:a";
import module namespace b = "urn:b" at "b.xq";
declare function a:greet($name) { b:prefix() || $name };
-- lib/b.xq --
module namespace b = "urn:b";
declare variable $b:prefix := "hello ";
declare function b:prefix() { $b:prefix };
`
	query, loader := loadArchive(t, archive)
	cache := NewModuleCache(nil)
	seq := run(t, query, nil, WithLoader(loader), WithModuleCache(cache))
	qt.Assert(t, qt.Equals(seq.String(), "hello world"))
	qt.Assert(t, qt.Equals(cache.Len(), 2))

	mod, ok := cache.Get("urn:b/")
	qt.Assert(t, qt.IsTrue(ok))
	qt.Assert(t, qt.Equals(mod.Location, "lib/b.xq"))
}

func TestModuleErrors(t *testing.T) {
	tests := []struct {
		Name    string
		Archive string
		Code    string
	}{
		{
			Name: "circular import",
			Archive: `
-- main.xq --
import module namespace a = "urn:a" at "a.xq";
1
-- a.xq --
module namespace a = "urn:a";
import module namespace b = "urn:b" at "b.xq";
declare variable $a:x := 1;
-- b.xq --
module namespace b = "urn:b";
import module namespace a = "urn:a" at "a.xq";
declare variable $b:x := 1;
`,
			Code: CodeCircular,
		},
		{
			Name: "namespace mismatch",
			Archive: `
-- main.xq --
import module namespace a = "urn:a" at "a.xq";
1
-- a.xq --
module namespace other = "urn:other";
declare variable $other:x := 1;
`,
			Code: CodeModuleNS,
		},
		{
			Name: "namespace trailing slash",
			Archive: `
-- main.xq --
import module namespace a = "urn:lib" at "a.xq";
1
-- a.xq --
module namespace a = "urn:lib/";
declare variable $a:x := 1;
`,
			Code: CodeModuleNS,
		},
		{
			Name: "variable outside module namespace",
			Archive: `
-- main.xq --
import module namespace a = "urn:a" at "a.xq";
1
-- a.xq --
module namespace a = "urn:a";
declare namespace o = "urn:o";
declare variable $o:x := 1;
`,
			Code: CodeModuleNS,
		},
		{
			Name: "function outside module namespace",
			Archive: `
-- main.xq --
import module namespace a = "urn:a" at "a.xq";
1
-- a.xq --
module namespace a = "urn:a";
declare function local:f() { 1 };
`,
			Code: CodeModuleNS,
		},
		{
			Name: "missing module",
			Archive: `
-- main.xq --
import module namespace a = "urn:a" at "missing.xq";
1
`,
			Code: CodeModuleLoad,
		},
		{
			Name: "main module imported",
			Archive: `
-- main.xq --
import module namespace a = "urn:a" at "a.xq";
1
-- a.xq --
1 + 1
`,
			Code: CodeModuleLoad,
		},
		{
			Name: "invalid library",
			Archive: `
-- main.xq --
import module namespace a = "urn:a" at "a.xq";
1
-- a.xq --
module namespace a = "urn:a";
declare variable $a:x := ;
`,
			Code: CodeModuleLoad,
		},
	}
	for _, tt := range tests {
		t.Run(tt.Name, func(t *testing.T) {
			query, loader := loadArchive(t, tt.Archive)
			e := New(WithLoader(loader))
			_, err := e.Find(query, nil)
			qt.Assert(t, qt.Equals(errorCode(t, err), tt.Code))

			diags := e.Diagnostics()
			qt.Assert(t, qt.HasLen(diags, 1))
			qt.Assert(t, qt.Equals(diags[0].Code, tt.Code))
		})
	}
}

func TestModuleCircularIsCircular(t *testing.T) {
	const archive = `
-- main.xq --
import module namespace a = "urn:a" at "a.xq";
1
-- a.xq --
module namespace a = "urn:a";
import module namespace a2 = "urn:a" at "a.xq";
`
	query, loader := loadArchive(t, archive)
	_, err := New(WithLoader(loader)).Find(query, nil)
	qt.Assert(t, qt.ErrorIs(err, ErrCircular))
}

func TestModuleFailedImportNotCached(t *testing.T) {
	const archive = `
-- main.xq --
import module namespace a = "urn:a" at "a.xq";
1
-- a.xq --
module namespace a = "urn:a";
import module namespace b = "urn:b" at "b.xq";
declare variable $a:x := 1;
`
	query, loader := loadArchive(t, archive)
	cache := NewModuleCache(nil)
	_, err := New(WithLoader(loader), WithModuleCache(cache)).Find(query, nil)
	qt.Assert(t, qt.Equals(errorCode(t, err), CodeModuleLoad))
	qt.Assert(t, qt.Equals(cache.Len(), 0))

	_, ok := cache.Get("urn:a")
	qt.Assert(t, qt.IsFalse(ok))
}

func TestModuleCacheShared(t *testing.T) {
	query, loader := loadArchive(t, importArchive)
	var (
		counter = countReads(loader)
		cache   = NewModuleCache(counter)
	)
	for range 3 {
		seq := run(t, query, nil, WithModuleCache(cache))
		qt.Assert(t, qt.Equals(seq.String(), "84 42"))
	}
	qt.Assert(t, qt.Equals(counter.Count("a.xq"), 1))
	qt.Assert(t, qt.Equals(cache.Len(), 1))
}

func TestModuleCacheConcurrent(t *testing.T) {
	query, loader := loadArchive(t, importArchive)
	var (
		counter = countReads(loader)
		cache   = NewModuleCache(counter)
		wg      sync.WaitGroup
		errs    = make([]error, 8)
	)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = New(WithModuleCache(cache)).Find(query, nil)
		}(i)
	}
	wg.Wait()
	qt.Assert(t, qt.IsNil(errors.Join(errs...)))
	qt.Assert(t, qt.Equals(counter.Count("a.xq"), 1))
}

func TestModuleCacheRegister(t *testing.T) {
	const library = `
module namespace a = "urn:a";
declare variable $a:x := 21;
declare function a:double($n) { $n * 2 };
`
	lib, err := CompileModule(strings.NewReader(library), "memory:a")
	qt.Assert(t, qt.IsNil(err))

	cache := NewModuleCache(nil)
	qt.Assert(t, qt.IsNil(cache.Register(lib)))

	seq := run(t, `import module namespace a = "urn:a"; a:double($a:x)`, nil, WithModuleCache(cache))
	qt.Assert(t, qt.Equals(seq.String(), "42"))

	main, err := CompileString("1")
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(errorCode(t, cache.Register(main)), CodeModuleLoad))

	const dependent = `
module namespace b = "urn:b";
import module namespace c = "urn:c";
declare variable $b:x := 1;
`
	dep, err := CompileString(dependent)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(errorCode(t, cache.Register(dep)), CodeModuleLoad))
}

func TestRunLibraryModule(t *testing.T) {
	lib, err := CompileString(`module namespace a = "urn:a"; declare variable $a:x := 1;`)
	qt.Assert(t, qt.IsNil(err))

	_, err = New().Run(lib, nil)
	qt.Assert(t, qt.Equals(errorCode(t, err), CodeModuleLoad))
}

func TestCachedLoader(t *testing.T) {
	var (
		counter = countReads(MapLoader{"a.xq": "a", "b.xq": "b"})
		loader  = NewCachedLoader(counter, 1)
	)
	for range 3 {
		src, err := loader.ReadTextResource("a.xq", "")
		qt.Assert(t, qt.IsNil(err))
		qt.Assert(t, qt.Equals(src, "a"))
	}
	qt.Assert(t, qt.Equals(counter.Count("a.xq"), 1))

	_, err := loader.ReadTextResource("b.xq", "")
	qt.Assert(t, qt.IsNil(err))
	_, err = loader.ReadTextResource("a.xq", "")
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(counter.Count("a.xq"), 2))

	_, err = loader.ReadTextResource("missing.xq", "")
	qt.Assert(t, qt.ErrorIs(err, ErrNotFound))
}

func TestCachedLoaderConcurrent(t *testing.T) {
	var (
		counter = countReads(MapLoader{"a.xq": "a"})
		loader  = NewCachedLoader(counter, 4)
		wg      sync.WaitGroup
	)
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			src, err := loader.ReadTextResource("a.xq", "")
			if err != nil || src != "a" {
				t.Errorf("unexpected result: %q, %v", src, err)
			}
		}()
	}
	wg.Wait()
	qt.Assert(t, qt.IsTrue(counter.Count("a.xq") >= 1))

	before := counter.Count("a.xq")
	_, err := loader.ReadTextResource("a.xq", "")
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(counter.Count("a.xq"), before))
}

func TestCandidateLocations(t *testing.T) {
	tests := []struct {
		Hint   string
		Module string
		Doc    string
		Want   []string
	}{
		{
			Hint: "a.xq",
			Want: []string{"a.xq"},
		},
		{
			Hint:   "b.xq",
			Module: "lib/a.xq",
			Want:   []string{"lib/b.xq", "b.xq"},
		},
		{
			Hint:   "b.xq",
			Module: "lib/a.xq",
			Doc:    "data/doc.xml",
			Want:   []string{"lib/b.xq", "data/b.xq", "b.xq"},
		},
		{
			Hint:   "/usr/share/b.xq",
			Module: "lib/a.xq",
			Want:   []string{"/usr/share/b.xq"},
		},
		{
			Hint: "file:///usr/share/b.xq",
			Want: []string{"/usr/share/b.xq"},
		},
		{
			Hint:   "C:/modules/b.xq",
			Module: "lib/a.xq",
			Want:   []string{"C:/modules/b.xq"},
		},
	}
	for _, tt := range tests {
		got := candidateLocations(tt.Hint, tt.Module, tt.Doc)
		qt.Check(t, qt.DeepEquals(got, tt.Want), qt.Commentf("hint: %s", tt.Hint))
	}
}

func TestDecodeText(t *testing.T) {
	str, err := decodeText([]byte{'c', 'a', 'f', 0xe9}, "iso-8859-1")
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(str, "café"))

	_, err = decodeText([]byte("x"), "not-an-encoding")
	qt.Assert(t, qt.IsNotNil(err))
}

func TestGlobalVariables(t *testing.T) {
	before := Metrics()
	seq := run(t, "declare variable $x := count((1, 2, 3)); ($x, $x, $x)", nil)
	delta := MetricsDelta(before, Metrics())
	qt.Assert(t, qt.Equals(seq.String(), "3 3 3"))
	qt.Assert(t, qt.Equals(delta["eval.call"], uint64(1)))
	qt.Assert(t, qt.Equals(delta["eval.variable"], uint64(3)))

	_, err := New().Find("declare variable $x := $y; declare variable $y := $x; $x", nil)
	qt.Assert(t, qt.Equals(errorCode(t, err), CodeCircular))

	_, err = New().Find("declare variable $x := local:f(); declare function local:f() { $x }; $x", nil)
	qt.Assert(t, qt.Equals(errorCode(t, err), CodeCircular))

	_, err = New().Find("declare variable $x as xs:string := 1; $x", nil)
	qt.Assert(t, qt.Equals(errorCode(t, err), CodeType))

	seq = run(t, "declare variable $x := 1; let $x := 2 return $x", nil)
	qt.Assert(t, qt.Equals(seq.String(), "2"))
}
