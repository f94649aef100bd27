package xquery

import (
	"io"
	"log/slog"

	"github.com/golang/groupcache/lru"
	"github.com/midbel/xquery/environ"
	"github.com/midbel/xquery/schema"
	"github.com/midbel/xquery/xml"
)

const (
	DefaultRangeLimit = 100_000
	DefaultTypeCache  = 256
	MaxCallDepth      = 4096
)

type Option func(*Evaluator)

// WithNamespace binds a prefix for names that are not resolved by the
// prolog. An empty prefix sets the default element namespace.
func WithNamespace(prefix, uri string) Option {
	return func(e *Evaluator) {
		e.namespaces[prefix] = uri
	}
}

// WithVariable binds an external variable. The name can be a local name, a
// prefixed name or an expanded name.
func WithVariable(name string, value any) Option {
	return func(e *Evaluator) {
		var seq Sequence
		switch v := value.(type) {
		case Sequence:
			seq = v
		case []Item:
			seq = v
		default:
			seq = Singleton(v)
		}
		e.externals[name] = seq
	}
}

func WithModuleCache(cache *ModuleCache) Option {
	return func(e *Evaluator) {
		e.cache = cache
	}
}

func WithLoader(loader Loader) Option {
	return func(e *Evaluator) {
		e.loader = loader
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Evaluator) {
		e.logger = logger
	}
}

func WithRangeLimit(limit int64) Option {
	return func(e *Evaluator) {
		e.rangeLimit = limit
	}
}

func WithBaseURI(uri string) Option {
	return func(e *Evaluator) {
		e.baseURI = uri
	}
}

func WithCollation(uri string) Option {
	return func(e *Evaluator) {
		e.collation = uri
	}
}

func WithRegistry(registry schema.Registry) Option {
	return func(e *Evaluator) {
		e.registry = registry
	}
}

func WithTypeCache(size int) Option {
	return func(e *Evaluator) {
		e.types = lru.New(size)
	}
}

type focus struct {
	item Item
	pos  int
	size int
}

// Evaluator is an evaluation session. It owns the dynamic context and the
// memoized values of the global variables. An Evaluator is not safe for
// concurrent use; the ModuleCache it references can be shared.
type Evaluator struct {
	namespaces map[string]string
	externals  map[string]Sequence
	cache      *ModuleCache
	loader     Loader
	logger     *slog.Logger
	registry   schema.Registry
	rangeLimit int64
	baseURI    string
	collation  string
	types      *lru.Cache
	collations map[string]Collation

	module       *Module
	focus        []focus
	locals       *environ.Env[Sequence]
	memo         map[string]Sequence
	initializing map[string]struct{}
	unordered    bool
	depth        int

	diagnostics []Diagnostic
	unsupported bool
}

func New(options ...Option) *Evaluator {
	e := Evaluator{
		namespaces: make(map[string]string),
		externals:  make(map[string]Sequence),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		registry:   schema.Builtins(),
		rangeLimit: DefaultRangeLimit,
		collation:  CodepointCollation,
		types:      lru.New(DefaultTypeCache),
		collations: make(map[string]Collation),
	}
	for _, o := range options {
		o(&e)
	}
	if e.cache == nil {
		e.cache = NewModuleCache(e.loader)
	}
	e.reset()
	return &e
}

func newScope() *environ.Env[Sequence] {
	return environ.Empty[Sequence]().(*environ.Env[Sequence])
}

func (e *Evaluator) reset() {
	e.module = emptyModule()
	e.focus = e.focus[:0]
	e.locals = newScope()
	e.memo = make(map[string]Sequence)
	e.initializing = make(map[string]struct{})
	e.unordered = false
	e.depth = 0
}

// Run evaluates the body of a main module with node as initial context
// item. The imports of the module are resolved through the module cache
// first.
func (e *Evaluator) Run(mod *Module, node xml.Node) (Sequence, error) {
	e.reset()
	if mod.Library() {
		return nil, e.fail(errorf(CodeModuleLoad, "%s: library module can not be evaluated", mod.Prolog.Namespace), nil)
	}
	if err := e.cache.resolveImports(mod, e.loader, e.baseURI); err != nil {
		return nil, e.fail(err, nil)
	}
	e.module = mod
	e.unordered = mod.Prolog.Unordered
	if err := e.checkCollation(); err != nil {
		return nil, e.fail(err, nil)
	}
	if node != nil {
		e.pushFocus(createNode(node), 1, 1)
	}
	e.logger.Debug("run query", "location", mod.Location, "imports", len(mod.imports))
	return e.eval(mod.Body)
}

// Evaluate evaluates an expression tree without prolog.
func (e *Evaluator) Evaluate(expr Expr, node xml.Node) (Sequence, error) {
	e.reset()
	if node != nil {
		e.pushFocus(createNode(node), 1, 1)
	}
	return e.eval(expr)
}

// Find compiles and runs query against node.
func (e *Evaluator) Find(query string, node xml.Node) (Sequence, error) {
	mod, err := CompileString(query)
	if err != nil {
		return nil, err
	}
	mod.Location = e.baseURI
	return e.Run(mod, node)
}

// Diagnostics returns the errors recorded since the evaluator was created.
func (e *Evaluator) Diagnostics() []Diagnostic {
	return e.diagnostics
}

// Unsupported reports whether an expression that can not be evaluated was
// met.
func (e *Evaluator) Unsupported() bool {
	return e.unsupported
}

// RecordError adds a diagnostic on behalf of the host.
func (e *Evaluator) RecordError(msg string, node Expr, fatal bool) {
	d := Diagnostic{
		Message: msg,
		Node:    node,
		Fatal:   fatal,
	}
	e.diagnostics = append(e.diagnostics, d)
	e.logger.Debug("error recorded", "message", msg, "fatal", fatal)
}

// fail records err once, at the point where it is first seen.
func (e *Evaluator) fail(err error, node Expr) error {
	x := errorWrap(CodeUser, err)
	if x.recorded {
		return x
	}
	x.recorded = true
	if x.Node == nil {
		x.Node = node
	}
	if errorsIsUnsupported(x) {
		e.unsupported = true
		unsupportedHit.Inc(1)
	}
	d := Diagnostic{
		Code:    x.Code,
		Message: x.Message,
		Node:    x.Node,
		Fatal:   true,
	}
	e.diagnostics = append(e.diagnostics, d)
	e.logger.Debug("error recorded", "code", x.Code, "message", x.Message)
	return x
}

func errorsIsUnsupported(x *Error) bool {
	return x.cause == ErrUnsupported
}

func (e *Evaluator) pushFocus(item Item, pos, size int) {
	e.focus = append(e.focus, focus{
		item: item,
		pos:  pos,
		size: size,
	})
}

func (e *Evaluator) popFocus() {
	e.focus = e.focus[:len(e.focus)-1]
}

func (e *Evaluator) currentFocus() (focus, error) {
	if len(e.focus) == 0 || e.focus[len(e.focus)-1].item == nil {
		return focus{}, errorf(CodeDynamicContext, "context item is undefined")
	}
	return e.focus[len(e.focus)-1], nil
}

func (e *Evaluator) contextNode() (xml.Node, error) {
	f, err := e.currentFocus()
	if err != nil {
		return nil, err
	}
	n, ok := f.item.(nodeItem)
	if !ok {
		return nil, errorf(CodeNotNode, "context item is not a node")
	}
	return n.node, nil
}

// bind introduces a local variable and returns the function restoring the
// previous binding.
func (e *Evaluator) bind(name xml.QName, value Sequence) func() {
	return e.locals.Bind(e.varKey(name), value)
}

func (e *Evaluator) varKey(name xml.QName) string {
	if n, err := e.resolveName(name); err == nil {
		name = n
	}
	return name.ExpandedName()
}

// resolveURI returns the namespace bound to prefix. Declarations of the
// current module take precedence over the namespaces of the evaluator.
func (e *Evaluator) resolveURI(prefix string) (string, bool) {
	if uri, ok := e.module.Prolog.Namespaces[prefix]; ok {
		return uri, true
	}
	if uri, ok := e.namespaces[prefix]; ok {
		return uri, true
	}
	uri, ok := predeclared[prefix]
	return uri, ok
}

func (e *Evaluator) resolveName(name xml.QName) (xml.QName, error) {
	if name.Uri != "" || name.Space == "" {
		return name, nil
	}
	uri, ok := e.resolveURI(name.Space)
	if !ok {
		return name, errorf(CodeUnknownPrefix, "%s: prefix not bound to a namespace", name.Space)
	}
	name.Uri = uri
	return name, nil
}

func (e *Evaluator) resolveFunctionName(name xml.QName) (xml.QName, error) {
	if name.Space == "" && name.Uri == "" {
		name.Uri = e.module.Prolog.FunctionNS
		if name.Uri == "" {
			name.Uri = NamespaceFunctions
		}
		return name, nil
	}
	return e.resolveName(name)
}

func (e *Evaluator) resolveElementName(name xml.QName) (xml.QName, error) {
	if name.Space == "" && name.Uri == "" {
		name.Uri = e.module.Prolog.ElementNS
		if uri, ok := e.namespaces[""]; ok && name.Uri == "" {
			name.Uri = uri
		}
		return name, nil
	}
	return e.resolveName(name)
}
