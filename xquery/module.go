package xquery

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/golang/groupcache/lru"
	"github.com/golang/groupcache/singleflight"
	"golang.org/x/text/encoding/htmlindex"
)

var ErrNotFound = errors.New("resource not found")

// Loader retrieves the source text of modules.
type Loader interface {
	ReadTextResource(location, encoding string) (string, error)
}

// FileLoader reads resources from the file system. Relative locations are
// searched in Dirs when they are not found as given.
type FileLoader struct {
	Dirs []string
}

func (f FileLoader) ReadTextResource(location, encoding string) (string, error) {
	list := []string{location}
	if !filepath.IsAbs(location) {
		for _, d := range f.Dirs {
			list = append(list, filepath.Join(d, location))
		}
	}
	for _, file := range list {
		buf, err := os.ReadFile(file)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return "", err
		}
		return decodeText(buf, encoding)
	}
	return "", fmt.Errorf("%s: %w", location, ErrNotFound)
}

func decodeText(buf []byte, encoding string) (string, error) {
	switch strings.ToLower(encoding) {
	case "", "utf-8", "utf8":
		return string(buf), nil
	}
	enc, err := htmlindex.Get(encoding)
	if err != nil {
		return "", fmt.Errorf("%s: unsupported encoding", encoding)
	}
	buf, err = enc.NewDecoder().Bytes(buf)
	if err != nil {
		return "", err
	}
	return string(buf), nil
}

// MapLoader serves resources from memory, keyed by location.
type MapLoader map[string]string

func (m MapLoader) ReadTextResource(location, _ string) (string, error) {
	if src, ok := m[location]; ok {
		return src, nil
	}
	if src, ok := m[filepath.ToSlash(filepath.Clean(location))]; ok {
		return src, nil
	}
	return "", fmt.Errorf("%s: %w", location, ErrNotFound)
}

// CachedLoader keeps the most recently read resources in memory. Concurrent
// reads of the same location share a single call to the wrapped loader.
type CachedLoader struct {
	loader Loader

	mu    sync.Mutex
	lru   *lru.Cache
	group singleflight.Group
}

func NewCachedLoader(loader Loader, size int) *CachedLoader {
	return &CachedLoader{
		loader: loader,
		lru:    lru.New(size),
	}
}

func (c *CachedLoader) ReadTextResource(location, encoding string) (string, error) {
	key := location + "#" + encoding
	if src, ok := c.get(key); ok {
		loaderHit.Inc(1)
		return src, nil
	}
	loaderMiss.Inc(1)
	src, err := c.group.Do(key, func() (interface{}, error) {
		src, err := c.loader.ReadTextResource(location, encoding)
		if err != nil {
			return nil, err
		}
		c.add(key, src)
		return src, nil
	})
	if err != nil {
		return "", err
	}
	return src.(string), nil
}

func (c *CachedLoader) get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.lru.Get(key)
	if !ok {
		return "", false
	}
	return v.(string), true
}

func (c *CachedLoader) add(key, src string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Add(key, src)
}

// ModuleCache holds the library modules loaded by import declarations,
// keyed by their normalized namespace. A module is only inserted once all
// its own imports have been resolved. The cache can be shared between
// evaluators.
type ModuleCache struct {
	Encoding string

	mu      sync.RWMutex
	modules map[string]*Module
	aliases map[string]string

	loadMu  sync.Mutex
	loading map[string]struct{}

	loader Loader
	logger *slog.Logger
}

func NewModuleCache(loader Loader) *ModuleCache {
	return &ModuleCache{
		modules: make(map[string]*Module),
		aliases: make(map[string]string),
		loading: make(map[string]struct{}),
		loader:  loader,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func (c *ModuleCache) SetLogger(logger *slog.Logger) {
	c.logger = logger
}

func normalizeNamespace(ns string) string {
	ns = strings.TrimSpace(ns)
	return strings.TrimSuffix(ns, "/")
}

// Get returns the cached module of a namespace. The namespace can be given
// in its raw form or in any form registered as an alias.
func (c *ModuleCache) Get(ns string) (*Module, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.get(ns)
}

func (c *ModuleCache) get(ns string) (*Module, bool) {
	key := normalizeNamespace(ns)
	if alias, ok := c.aliases[ns]; ok {
		key = alias
	}
	m, ok := c.modules[key]
	return m, ok
}

func (c *ModuleCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.modules)
}

// Register adds a compiled library module to the cache. Its imports must
// already be in the cache.
func (c *ModuleCache) Register(mod *Module) error {
	c.loadMu.Lock()
	defer c.loadMu.Unlock()
	if err := validateLibrary(mod, mod.Namespace()); err != nil {
		return err
	}
	for _, i := range mod.Prolog.Imports {
		sub, ok := c.Get(i.Namespace)
		if !ok {
			return errorf(CodeModuleLoad, "%s: imported module not loaded", i.Namespace)
		}
		mod.imports[i.Namespace] = sub
	}
	c.insert(mod.Namespace(), mod)
	return nil
}

func (c *ModuleCache) insert(ns string, mod *Module) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := normalizeNamespace(ns)
	c.modules[key] = mod
	if ns != key {
		c.aliases[ns] = key
	}
}

type importer struct {
	loader  Loader
	docBase string
}

// resolveImports loads the modules imported by mod. Loads are serialized;
// a namespace already being loaded when it is requested again denotes a
// circular import.
func (c *ModuleCache) resolveImports(mod *Module, loader Loader, docBase string) error {
	if len(mod.Prolog.Imports) == 0 {
		return nil
	}
	c.loadMu.Lock()
	defer c.loadMu.Unlock()

	if c.loader != nil {
		loader = c.loader
	}
	imp := importer{
		loader:  loader,
		docBase: docBase,
	}
	for _, i := range mod.Prolog.Imports {
		sub, err := c.load(i, mod, imp)
		if err != nil {
			return err
		}
		mod.imports[i.Namespace] = sub
	}
	return nil
}

func (c *ModuleCache) load(decl Import, from *Module, imp importer) (*Module, error) {
	key := normalizeNamespace(decl.Namespace)
	if m, ok := c.Get(decl.Namespace); ok {
		moduleCacheHit.Inc(1)
		c.logger.Debug("module cache hit", "namespace", decl.Namespace)
		return m, nil
	}
	moduleCacheMiss.Inc(1)
	if _, ok := c.loading[key]; ok {
		return nil, errorf(CodeCircular, "%s: circular module import", decl.Namespace)
	}
	c.loading[key] = struct{}{}
	defer delete(c.loading, key)

	mod, err := c.fetch(decl, from, imp)
	if err != nil {
		return nil, err
	}
	if err := validateLibrary(mod, decl.Namespace); err != nil {
		return nil, err
	}
	for _, i := range mod.Prolog.Imports {
		sub, err := c.load(i, mod, imp)
		if err != nil {
			return nil, err
		}
		mod.imports[i.Namespace] = sub
	}
	c.insert(decl.Namespace, mod)
	c.logger.Debug("module loaded", "namespace", decl.Namespace, "location", mod.Location)
	return mod, nil
}

func (c *ModuleCache) fetch(decl Import, from *Module, imp importer) (*Module, error) {
	if imp.loader == nil {
		return nil, errorf(CodeModuleLoad, "%s: no loader to retrieve module", decl.Namespace)
	}
	hints := decl.Hints
	if len(hints) == 0 {
		hints = []string{decl.Namespace}
	}
	base := from.Location
	if from.Prolog.BaseURI != "" {
		base = from.Prolog.BaseURI
	}
	var tried []string
	for _, h := range hints {
		for _, loc := range candidateLocations(h, base, imp.docBase) {
			src, err := imp.loader.ReadTextResource(loc, c.Encoding)
			if err != nil {
				tried = append(tried, loc)
				continue
			}
			mod, err := CompileModule(strings.NewReader(src), loc)
			if err != nil {
				return nil, errorf(CodeModuleLoad, "%s: %s", loc, err)
			}
			return mod, nil
		}
	}
	return nil, errorf(CodeModuleLoad, "%s: module can not be loaded (tried %s)", decl.Namespace, strings.Join(tried, ", "))
}

// candidateLocations lists where a location hint is searched: file URIs
// and absolute paths are used as given, relative hints are resolved against
// the location of the importing module then the directory of the
// document.
func candidateLocations(hint, moduleBase, docBase string) []string {
	if strings.HasPrefix(hint, "file:") {
		u, err := url.Parse(hint)
		if err != nil {
			return nil
		}
		p := u.Path
		if u.Opaque != "" {
			p = u.Opaque
		}
		if len(p) > 2 && p[0] == '/' && isDrivePath(p[1:]) {
			p = p[1:]
		}
		return []string{filepath.FromSlash(p)}
	}
	if isDrivePath(hint) || filepath.IsAbs(hint) {
		return []string{hint}
	}
	var list []string
	if moduleBase != "" {
		list = append(list, filepath.Join(filepath.Dir(moduleBase), hint))
	}
	if docBase != "" {
		list = append(list, filepath.Join(filepath.Dir(docBase), hint))
	}
	return append(list, hint)
}

func isDrivePath(str string) bool {
	if len(str) < 3 {
		return false
	}
	c := str[0]
	letter := (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
	return letter && str[1] == ':' && (str[2] == '\\' || str[2] == '/')
}

// validateLibrary checks that mod is a library module for namespace ns and
// that all its declarations belong to it.
func validateLibrary(mod *Module, ns string) error {
	if !mod.Library() {
		return errorf(CodeModuleLoad, "%s: %s is not a library module", ns, mod.Location)
	}
	if mod.Namespace() != ns {
		return errorf(CodeModuleNS, "%s: module declares namespace %s", ns, mod.Namespace())
	}
	for _, v := range mod.Prolog.Variables {
		if v.Name.Uri != mod.Namespace() {
			return errorf(CodeModuleNS, "$%s: variable not in the module namespace %s", v.Name.QualifiedName(), mod.Namespace())
		}
	}
	for _, f := range mod.Prolog.Functions {
		if f.Name.Uri != mod.Namespace() {
			return errorf(CodeModuleNS, "%s: function not in the module namespace %s", f.Name.QualifiedName(), mod.Namespace())
		}
	}
	return nil
}
