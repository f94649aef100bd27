package xquery

import (
	"github.com/midbel/xquery/schema"
	"github.com/midbel/xquery/xml"
)

const (
	NamespaceFunctions = "http://www.w3.org/2005/xpath-functions"
	NamespaceMap       = "http://www.w3.org/2005/xpath-functions/map"
	NamespaceArray     = "http://www.w3.org/2005/xpath-functions/array"
	NamespaceMath      = "http://www.w3.org/2005/xpath-functions/math"
	NamespaceLocal     = "http://www.w3.org/2005/xquery-local-functions"
	NamespaceErrors    = "http://www.w3.org/2005/xqt-errors"
	NamespaceXml       = "http://www.w3.org/XML/1998/namespace"
)

var predeclared = map[string]string{
	"fn":    NamespaceFunctions,
	"map":   NamespaceMap,
	"array": NamespaceArray,
	"math":  NamespaceMath,
	"local": NamespaceLocal,
	"err":   NamespaceErrors,
	"xml":   NamespaceXml,
	"xs":    schema.Namespace,
}

type VarDecl struct {
	Name     xml.QName
	Type     string
	External bool
	Init     Expr
}

type FuncDecl struct {
	Name   xml.QName
	Params []Param
	Return string
	Body   Expr
}

type Import struct {
	Prefix    string
	Namespace string
	Hints     []string
}

// Prolog holds the static context declared at the start of a module.
type Prolog struct {
	Namespace  string
	Prefix     string
	BaseURI    string
	Collation  string
	ElementNS  string
	FunctionNS string
	Unordered  bool

	Namespaces map[string]string
	Formats    map[string]*DecimalFormat
	Imports    []Import
	Variables  []*VarDecl
	Functions  []*FuncDecl

	variables map[string]*VarDecl
	functions map[string]*FuncDecl
}

func NewProlog() *Prolog {
	return &Prolog{
		Namespaces: make(map[string]string),
		Formats:    make(map[string]*DecimalFormat),
		variables:  make(map[string]*VarDecl),
		functions:  make(map[string]*FuncDecl),
	}
}

func (p *Prolog) DeclareVariable(v *VarDecl) error {
	key := v.Name.ExpandedName()
	if _, ok := p.variables[key]; ok {
		return errorf(CodeDuplicateDecl, "$%s: variable already declared", v.Name.QualifiedName())
	}
	p.variables[key] = v
	p.Variables = append(p.Variables, v)
	return nil
}

func (p *Prolog) DeclareFunction(f *FuncDecl) error {
	key := functionKey(f.Name, len(f.Params))
	if _, ok := p.functions[key]; ok {
		return errorf(CodeDuplicateFunc, "%s#%d: function already declared", f.Name.QualifiedName(), len(f.Params))
	}
	p.functions[key] = f
	p.Functions = append(p.Functions, f)
	return nil
}

// DeclareImport registers a module import. A namespace can only be
// imported once.
func (p *Prolog) DeclareImport(imp Import) error {
	for _, i := range p.Imports {
		if i.Namespace == imp.Namespace {
			return errorf(CodeDuplicateNS, "%s: module imported twice", imp.Namespace)
		}
	}
	if imp.Prefix != "" {
		p.Namespaces[imp.Prefix] = imp.Namespace
	}
	p.Imports = append(p.Imports, imp)
	return nil
}

func (p *Prolog) Format(name string) *DecimalFormat {
	if f, ok := p.Formats[name]; ok {
		return f
	}
	if name == "" {
		return defaultFormat()
	}
	return nil
}

// Module is a compiled main or library module.
type Module struct {
	Prolog   *Prolog
	Body     Expr
	Location string

	imports map[string]*Module
}

func emptyModule() *Module {
	return &Module{
		Prolog:  NewProlog(),
		imports: make(map[string]*Module),
	}
}

// Library reports whether the module declares a target namespace.
func (m *Module) Library() bool {
	return m.Prolog.Namespace != ""
}

func (m *Module) Namespace() string {
	return m.Prolog.Namespace
}

// Imports returns the modules resolved for the imports of m.
func (m *Module) Imports() []*Module {
	var list []*Module
	for _, i := range m.Prolog.Imports {
		if x, ok := m.imports[i.Namespace]; ok {
			list = append(list, x)
		}
	}
	return list
}
