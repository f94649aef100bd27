package xquery

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/cockroachdb/apd/v3"
	"github.com/midbel/xquery/xml"
)

type Compiler struct {
	scan *Scanner
	curr Token
	peek Token

	Tracer

	prolog *Prolog

	infix  map[rune]func(Expr) (Expr, error)
	prefix map[rune]func() (Expr, error)
}

func NewCompiler(r io.Reader) *Compiler {
	cp := Compiler{
		scan:   Scan(r),
		Tracer: discardTracer{},
	}

	cp.infix = map[rune]func(Expr) (Expr, error){
		currLevel:  cp.compileStep,
		anyLevel:   cp.compileStep,
		begPred:    cp.compilePredicate,
		begGrp:     cp.compileDynamicCall,
		opQuestion: cp.compileLookup,
		opArrow:    cp.compileArrow,
		opBang:     cp.compileSimpleMap,
		opConcat:   cp.compileBinary,
		opAdd:      cp.compileBinary,
		opSub:      cp.compileBinary,
		opMul:      cp.compileBinary,
		opEq:       cp.compileBinary,
		opNe:       cp.compileBinary,
		opGt:       cp.compileBinary,
		opGe:       cp.compileBinary,
		opLt:       cp.compileBinary,
		opLe:       cp.compileBinary,
		opBefore:   cp.compileBinary,
		opAfter:    cp.compileBinary,
		opUnion:    cp.compileBinary,
		Name:       cp.compileKeyword,
	}
	cp.prefix = map[rune]func() (Expr, error){
		currLevel:  cp.compileRoot,
		anyLevel:   cp.compileRoot,
		Name:       cp.compileName,
		Variable:   cp.compileVariable,
		currNode:   cp.compileCurrent,
		parentNode: cp.compileParent,
		attrNode:   cp.compileAttr,
		Literal:    cp.compileLiteral,
		Integer:    cp.compileNumber,
		Decimal:    cp.compileNumber,
		Double:     cp.compileNumber,
		opSub:      cp.compileUnary,
		opAdd:      cp.compileUnary,
		opMul:      cp.compileWildcard,
		opQuestion: cp.compileUnaryLookup,
		begGrp:     cp.compileGroup,
		begPred:    cp.compileSquareArray,
	}

	cp.next()
	cp.next()
	return &cp
}

func CompileString(q string) (*Module, error) {
	return Compile(strings.NewReader(q))
}

func Compile(r io.Reader) (*Module, error) {
	return NewCompiler(r).Compile()
}

// CompileModule compiles the module read from r and records location as
// its static base.
func CompileModule(r io.Reader, location string) (*Module, error) {
	mod, err := Compile(r)
	if err != nil {
		return nil, err
	}
	mod.Location = location
	return mod, nil
}

func (c *Compiler) Compile() (*Module, error) {
	mod := emptyModule()
	c.prolog = mod.Prolog
	if err := c.compileProlog(); err != nil {
		return nil, err
	}
	if mod.Library() {
		if !c.done() {
			return nil, c.unexpected("module")
		}
		return mod, nil
	}
	if c.done() {
		return nil, syntaxError("module", "query body expected", c.curr.Position)
	}
	body, err := c.compileList()
	if err != nil {
		return nil, err
	}
	if !c.done() {
		return nil, c.unexpected("module")
	}
	mod.Body = body
	return mod, nil
}

func (c *Compiler) compileProlog() error {
	c.Enter("prolog")
	defer c.Leave("prolog")
	for !c.done() {
		var err error
		switch {
		case c.isKeyword(kwXquery) && c.peek.Type == Name:
			err = c.compileVersion()
		case c.isKeyword(kwModule) && c.peekKeyword(kwNamespace):
			err = c.compileModuleDecl()
		case c.isKeyword(kwImport) && (c.peekKeyword(kwModule) || c.peekKeyword(kwSchema)):
			err = c.compileImport()
		case c.isKeyword(kwDeclare) && (c.peek.Type == Name || c.peek.Type == Invalid):
			err = c.compileDeclare()
		default:
			return nil
		}
		if err != nil {
			return err
		}
		if err := c.expect(opSemi, "prolog"); err != nil {
			return err
		}
	}
	return nil
}

func (c *Compiler) compileVersion() error {
	c.Enter("version")
	defer c.Leave("version")
	c.next()
	if c.isKeyword(kwVersion) {
		c.next()
		if !c.is(Literal) {
			return c.unexpected("version")
		}
		c.next()
	}
	if c.isKeyword(kwEncoding) {
		c.next()
		if !c.is(Literal) {
			return c.unexpected("version")
		}
		c.next()
	}
	return nil
}

func (c *Compiler) compileModuleDecl() error {
	c.Enter("module")
	defer c.Leave("module")
	c.next()
	c.next()
	if !c.is(Name) {
		return c.unexpected("module")
	}
	prefix := c.getCurrentLiteral()
	c.next()
	if err := c.expect(opEq, "module"); err != nil {
		return err
	}
	if !c.is(Literal) {
		return c.unexpected("module")
	}
	uri := c.getCurrentLiteral()
	if uri == "" {
		return errorf(CodeModuleNS, "module namespace can not be empty")
	}
	c.prolog.Namespace = uri
	c.prolog.Prefix = prefix
	c.prolog.Namespaces[prefix] = uri
	c.next()
	return nil
}

func (c *Compiler) compileImport() error {
	c.Enter("import")
	defer c.Leave("import")
	c.next()
	if c.isKeyword(kwSchema) {
		return unsupported("import schema")
	}
	c.next()
	var imp Import
	if c.isKeyword(kwNamespace) {
		c.next()
		if !c.is(Name) {
			return c.unexpected("import")
		}
		imp.Prefix = c.getCurrentLiteral()
		c.next()
		if err := c.expect(opEq, "import"); err != nil {
			return err
		}
	}
	if !c.is(Literal) {
		return c.unexpected("import")
	}
	imp.Namespace = c.getCurrentLiteral()
	c.next()
	if c.isKeyword(kwAt) {
		c.next()
		for !c.done() {
			if !c.is(Literal) {
				return c.unexpected("import")
			}
			imp.Hints = append(imp.Hints, c.getCurrentLiteral())
			c.next()
			if !c.is(opSeq) {
				break
			}
			c.next()
		}
	}
	return c.prolog.DeclareImport(imp)
}

func (c *Compiler) compileDeclare() error {
	c.Enter("declare")
	defer c.Leave("declare")
	c.next()
	if c.is(Invalid) {
		if err := c.skipAnnotations(); err != nil {
			return err
		}
		if !c.isKeyword(kwFunction) && !c.isKeyword(kwVariable) {
			return c.unexpected("declare")
		}
	}
	switch c.getCurrentLiteral() {
	case kwNamespace:
		return c.compileNamespaceDecl()
	case kwDefault:
		return c.compileDefaultDecl()
	case kwVariable:
		return c.compileVariableDecl()
	case kwFunction:
		return c.compileFunctionDecl()
	case kwBaseURI:
		c.next()
		if !c.is(Literal) {
			return c.unexpected("declare")
		}
		c.prolog.BaseURI = c.getCurrentLiteral()
		c.next()
		return nil
	case kwOrdering:
		c.next()
		switch c.getCurrentLiteral() {
		case kwOrdered:
			c.prolog.Unordered = false
		case kwUnordered:
			c.prolog.Unordered = true
		default:
			return c.unexpected("declare")
		}
		c.next()
		return nil
	case kwFormat:
		c.next()
		if !c.is(Name) {
			return c.unexpected("declare")
		}
		name := c.getCurrentLiteral()
		c.next()
		return c.compileDecimalFormat(name)
	case kwOption, "boundary-space", "construction", "copy-namespaces", "context":
		return c.skipDeclaration()
	default:
		return c.unexpected("declare")
	}
}

func (c *Compiler) compileNamespaceDecl() error {
	c.next()
	if !c.is(Name) {
		return c.unexpected("namespace")
	}
	prefix := c.getCurrentLiteral()
	c.next()
	if err := c.expect(opEq, "namespace"); err != nil {
		return err
	}
	if !c.is(Literal) {
		return c.unexpected("namespace")
	}
	if prefix == "xml" || prefix == "xmlns" {
		return errorf(CodeDuplicateNS, "%s: prefix can not be redeclared", prefix)
	}
	c.prolog.Namespaces[prefix] = c.getCurrentLiteral()
	c.next()
	return nil
}

func (c *Compiler) compileDefaultDecl() error {
	c.next()
	switch c.getCurrentLiteral() {
	case kwElement, kwFunction:
		elem := c.isKeyword(kwElement)
		c.next()
		if err := c.expectKeyword(kwNamespace, "default"); err != nil {
			return err
		}
		if !c.is(Literal) {
			return c.unexpected("default")
		}
		if elem {
			c.prolog.ElementNS = c.getCurrentLiteral()
		} else {
			c.prolog.FunctionNS = c.getCurrentLiteral()
		}
		c.next()
	case kwCollation:
		c.next()
		if !c.is(Literal) {
			return c.unexpected("default")
		}
		uri := c.getCurrentLiteral()
		if _, err := ParseCollation(uri); err != nil {
			return errorf(CodeDefaultColl, "%s: unknown default collation", uri)
		}
		c.prolog.Collation = uri
		c.next()
	case kwFormat:
		c.next()
		return c.compileDecimalFormat("")
	case kwOrder:
		return c.skipDeclaration()
	default:
		return c.unexpected("default")
	}
	return nil
}

func (c *Compiler) compileDecimalFormat(name string) error {
	c.Enter("decimal-format")
	defer c.Leave("decimal-format")
	if _, ok := c.prolog.Formats[name]; ok {
		return errorf(CodeDuplicateDecl, "%s: decimal format already declared", name)
	}
	format := defaultFormat()
	for c.is(Name) {
		prop := c.getCurrentLiteral()
		c.next()
		if err := c.expect(opEq, "decimal-format"); err != nil {
			return err
		}
		if !c.is(Literal) {
			return c.unexpected("decimal-format")
		}
		if err := format.Set(prop, c.getCurrentLiteral()); err != nil {
			return err
		}
		c.next()
	}
	c.prolog.Formats[name] = format
	return nil
}

func (c *Compiler) compileVariableDecl() error {
	c.Enter("declare-variable")
	defer c.Leave("declare-variable")
	c.next()
	if !c.is(Variable) {
		return c.unexpected("declare-variable")
	}
	name, err := c.declaredName()
	if err != nil {
		return err
	}
	decl := VarDecl{
		Name: name,
	}
	c.next()
	if c.isKeyword(kwAs) {
		c.next()
		if decl.Type, err = c.compileType(true); err != nil {
			return err
		}
	}
	if c.isKeyword(kwExternal) {
		decl.External = true
		c.next()
	}
	if c.is(opAssign) {
		c.next()
		if decl.Init, err = c.compileExpr(powLowest); err != nil {
			return err
		}
	} else if !decl.External {
		return c.unexpected("declare-variable")
	}
	return c.prolog.DeclareVariable(&decl)
}

func (c *Compiler) compileFunctionDecl() error {
	c.Enter("declare-function")
	defer c.Leave("declare-function")
	c.next()
	if !c.is(Name) {
		return c.unexpected("declare-function")
	}
	name, err := c.declaredName()
	if err != nil {
		return err
	}
	if name.Space == "" && !strings.HasPrefix(c.getCurrentLiteral(), "Q{") {
		return syntaxError("declare-function", fmt.Sprintf("%s: function name must have a prefix", name.Name), c.curr.Position)
	}
	decl := FuncDecl{
		Name: name,
	}
	c.next()
	if decl.Params, err = c.compileParams(); err != nil {
		return err
	}
	if c.isKeyword(kwAs) {
		c.next()
		if decl.Return, err = c.compileType(true); err != nil {
			return err
		}
	}
	if c.isKeyword(kwExternal) {
		c.next()
	} else if decl.Body, err = c.compileEnclosed(); err != nil {
		return err
	}
	return c.prolog.DeclareFunction(&decl)
}

// declaredName returns the name of a declaration. Its prefix must be known
// when the declaration is read.
func (c *Compiler) declaredName() (xml.QName, error) {
	name, err := parseQName(c.getCurrentLiteral())
	if err != nil {
		return name, syntaxError("declare", err.Error(), c.curr.Position)
	}
	if name.Space == "" || name.Uri != "" {
		return name, nil
	}
	name = c.resolve(name)
	if name.Uri == "" {
		return name, errorf(CodeUnknownPrefix, "%s: prefix not bound to a namespace", name.Space)
	}
	return name, nil
}

func (c *Compiler) skipAnnotations() error {
	for c.is(Invalid) && c.getCurrentLiteral() == "%" {
		c.next()
		if !c.is(Name) {
			return c.unexpected("annotation")
		}
		c.next()
		if c.is(begGrp) {
			for !c.done() && !c.is(endGrp) {
				c.next()
			}
			if err := c.expect(endGrp, "annotation"); err != nil {
				return err
			}
		}
	}
	return nil
}

// skipDeclaration moves to the semicolon ending a declaration that has no
// effect on evaluation.
func (c *Compiler) skipDeclaration() error {
	var depth int
	for !c.done() {
		switch {
		case c.is(begGrp), c.is(begCurl), c.is(begPred):
			depth++
		case c.is(endGrp), c.is(endCurl), c.is(endPred):
			depth--
		case c.is(opSemi) && depth == 0:
			return nil
		}
		c.next()
	}
	return c.unexpected("declare")
}

func (c *Compiler) compileParams() ([]Param, error) {
	c.Enter("params")
	defer c.Leave("params")
	if err := c.expect(begGrp, "params"); err != nil {
		return nil, err
	}
	var list []Param
	for !c.done() && !c.is(endGrp) {
		if !c.is(Variable) {
			return nil, c.unexpected("params")
		}
		var p Param
		name, err := c.qname()
		if err != nil {
			return nil, err
		}
		p.Name = name
		c.next()
		if c.isKeyword(kwAs) {
			c.next()
			if p.Type, err = c.compileType(true); err != nil {
				return nil, err
			}
		}
		list = append(list, p)
		switch {
		case c.is(opSeq):
			c.next()
			if c.is(endGrp) {
				return nil, c.unexpected("params")
			}
		case c.is(endGrp):
		default:
			return nil, c.unexpected("params")
		}
	}
	return list, c.expect(endGrp, "params")
}

// compileEnclosed compiles an expression between curly braces. Empty
// braces give the empty sequence.
func (c *Compiler) compileEnclosed() (Expr, error) {
	c.Enter("enclosed")
	defer c.Leave("enclosed")
	if err := c.expect(begCurl, "enclosed"); err != nil {
		return nil, err
	}
	if c.is(endCurl) {
		c.next()
		return &SequenceExpr{}, nil
	}
	expr, err := c.compileList()
	if err != nil {
		return nil, err
	}
	return expr, c.expect(endCurl, "enclosed")
}

func (c *Compiler) compileList() (Expr, error) {
	c.Enter("list")
	defer c.Leave("list")
	var list []Expr
	for {
		expr, err := c.compileExpr(powLowest)
		if err != nil {
			return nil, err
		}
		list = append(list, expr)
		if !c.is(opSeq) {
			break
		}
		c.next()
	}
	if len(list) == 1 {
		return list[0], nil
	}
	return &SequenceExpr{Items: list}, nil
}

func (c *Compiler) compileExpr(pow int) (Expr, error) {
	c.Enter("expr")
	defer c.Leave("expr")
	fn, ok := c.prefix[c.curr.Type]
	if !ok {
		return nil, c.unexpected("expr")
	}
	left, err := fn()
	if err != nil {
		return nil, err
	}
	for !c.done() && pow < c.power() {
		fn, ok := c.infix[c.curr.Type]
		if !ok {
			return nil, c.unexpected("expr")
		}
		left, err = fn(left)
		if err != nil {
			return nil, err
		}
	}
	return left, nil
}

func (c *Compiler) compileName() (Expr, error) {
	lit := c.getCurrentLiteral()
	switch c.peek.Type {
	case opAxis:
		return c.compileAxis()
	case Variable:
		switch lit {
		case kwFor, kwLet:
			return c.compileFLWOR()
		case kwSome, kwEvery:
			return c.compileQuantified()
		}
	case begCurl:
		switch lit {
		case kwMap:
			return c.compileMap()
		case kwArray:
			return c.compileCurlyArray()
		case kwOrdered, kwUnordered:
			return c.compileOrdered()
		}
	case begGrp:
		switch lit {
		case kwIf:
			return c.compileIf()
		case kwTypeswitch:
			return c.compileTypeswitch()
		case kwFunction:
			return c.compileInlineFunction()
		}
		if _, ok := kindTests[lit]; ok {
			return c.compileKindTest(AxisChild)
		}
		if isReserved(lit) {
			return nil, unsupported("%s: expression not supported", lit)
		}
		return c.compileCall()
	case opHash:
		return c.compileFunctionRef()
	}
	return c.compileNameTest(AxisChild)
}

func (c *Compiler) compileAxis() (Expr, error) {
	c.Enter("axis")
	defer c.Leave("axis")
	axis, ok := axisNames[c.getCurrentLiteral()]
	if !ok {
		return nil, syntaxError("axis", fmt.Sprintf("%s: unknown axis", c.getCurrentLiteral()), c.curr.Position)
	}
	c.next()
	c.next()
	switch {
	case c.is(opMul):
		return c.compileWildcardOn(axis)
	case c.is(Name) && c.peek.Type == begGrp:
		if _, ok := kindTests[c.getCurrentLiteral()]; ok {
			return c.compileKindTest(axis)
		}
		return nil, c.unexpected("axis")
	case c.is(Name):
		return c.compileNameTest(axis)
	default:
		return nil, c.unexpected("axis")
	}
}

var kindTests = map[string]xml.NodeType{
	"node":                   xml.TypeNode,
	"text":                   xml.TypeText,
	"comment":                xml.TypeComment,
	"element":                xml.TypeElement,
	"attribute":              xml.TypeAttribute,
	"document-node":          xml.TypeDocument,
	"processing-instruction": xml.TypeInstruction,
}

func (c *Compiler) compileKindTest(axis Axis) (Expr, error) {
	c.Enter("kind-test")
	defer c.Leave("kind-test")
	var (
		lit  = c.getCurrentLiteral()
		step = Step{Axis: axis}
	)
	step.Test.Type = kindTests[lit]
	if step.Test.Type == xml.TypeAttribute && axis == AxisChild {
		step.Axis = AxisAttribute
	}
	c.next()
	c.next()
	switch step.Test.Type {
	case xml.TypeElement, xml.TypeAttribute:
		if c.is(opMul) {
			step.Test.Wildcard = true
			step.Test.AnyNS = true
			c.next()
		} else if c.is(Name) {
			name, err := c.qname()
			if err != nil {
				return nil, err
			}
			step.Test.Name = name
			c.next()
		}
		if c.is(opSeq) {
			c.next()
			if _, err := c.compileType(true); err != nil {
				return nil, err
			}
		}
	case xml.TypeInstruction:
		if c.is(Name) || c.is(Literal) {
			step.Test.Name = xml.LocalName(c.getCurrentLiteral())
			c.next()
		}
	case xml.TypeDocument:
		if c.is(Name) {
			if _, err := c.compileType(false); err != nil {
				return nil, err
			}
		}
	}
	if err := c.expect(endGrp, "kind-test"); err != nil {
		return nil, err
	}
	return &step, nil
}

func (c *Compiler) compileNameTest(axis Axis) (Expr, error) {
	c.Enter("name-test")
	defer c.Leave("name-test")
	step := Step{Axis: axis}
	lit := c.getCurrentLiteral()
	switch {
	case strings.HasPrefix(lit, "*:"):
		step.Test.AnyNS = true
		step.Test.Name = xml.LocalName(lit[2:])
	case strings.HasSuffix(lit, ":*") || (strings.HasPrefix(lit, "Q{") && strings.HasSuffix(lit, "}*")):
		step.Test.Wildcard = true
		if strings.HasPrefix(lit, "Q{") {
			step.Test.Name.Uri = strings.TrimSuffix(lit[2:], "}*")
		} else {
			step.Test.Name = c.resolve(xml.QualifiedName("", strings.TrimSuffix(lit, ":*")))
		}
	default:
		name, err := c.qname()
		if err != nil {
			return nil, err
		}
		step.Test.Name = name
	}
	c.next()
	return &step, nil
}

func (c *Compiler) compileWildcard() (Expr, error) {
	return c.compileWildcardOn(AxisChild)
}

func (c *Compiler) compileWildcardOn(axis Axis) (Expr, error) {
	c.Enter("wildcard")
	defer c.Leave("wildcard")
	c.next()
	step := Step{
		Axis: axis,
		Test: NodeTest{
			Wildcard: true,
			AnyNS:    true,
		},
	}
	return &step, nil
}

func (c *Compiler) compileAttr() (Expr, error) {
	c.Enter("attribute")
	defer c.Leave("attribute")
	c.next()
	switch {
	case c.is(opMul):
		return c.compileWildcardOn(AxisAttribute)
	case c.is(Name) && c.peek.Type == begGrp:
		if _, ok := kindTests[c.getCurrentLiteral()]; ok {
			return c.compileKindTest(AxisAttribute)
		}
		return nil, c.unexpected("attribute")
	case c.is(Name):
		return c.compileNameTest(AxisAttribute)
	default:
		return nil, c.unexpected("attribute")
	}
}

func (c *Compiler) compileCurrent() (Expr, error) {
	c.Enter("current")
	defer c.Leave("current")
	c.next()
	return &ContextItem{}, nil
}

func (c *Compiler) compileParent() (Expr, error) {
	c.Enter("parent")
	defer c.Leave("parent")
	c.next()
	step := Step{
		Axis: AxisParent,
		Test: NodeTest{
			Type: xml.TypeNode,
		},
	}
	return &step, nil
}

func descendantStep() Expr {
	return &Step{
		Axis: AxisDescendantOrSelf,
		Test: NodeTest{
			Type: xml.TypeNode,
		},
	}
}

func (c *Compiler) compileRoot() (Expr, error) {
	c.Enter("root")
	defer c.Leave("root")
	descendant := c.is(anyLevel)
	c.next()
	path := Path{
		Root: true,
	}
	if descendant {
		path.Steps = append(path.Steps, descendantStep())
	} else if !c.startStep() {
		return &path, nil
	}
	step, err := c.compileExpr(powStep)
	if err != nil {
		return nil, err
	}
	path.Steps = append(path.Steps, step)
	return &path, nil
}

// startStep reports whether the current token can start the relative path
// following a leading slash.
func (c *Compiler) startStep() bool {
	switch c.curr.Type {
	case Name, Variable, Literal, Integer, Decimal, Double:
	case opMul, attrNode, currNode, parentNode, begGrp:
	default:
		return false
	}
	return true
}

func (c *Compiler) compileStep(left Expr) (Expr, error) {
	c.Enter("step")
	defer c.Leave("step")
	descendant := c.is(anyLevel)
	c.next()
	right, err := c.compileExpr(powStep)
	if err != nil {
		return nil, err
	}
	path, ok := left.(*Path)
	if !ok {
		path = &Path{
			Steps: []Expr{left},
		}
	}
	if descendant {
		path.Steps = append(path.Steps, descendantStep())
	}
	path.Steps = append(path.Steps, right)
	return path, nil
}

func (c *Compiler) compilePredicate(left Expr) (Expr, error) {
	c.Enter("predicate")
	defer c.Leave("predicate")
	c.next()
	pred, err := c.compileList()
	if err != nil {
		return nil, err
	}
	if err := c.expect(endPred, "predicate"); err != nil {
		return nil, err
	}
	switch x := left.(type) {
	case *Step:
		x.Predicates = append(x.Predicates, pred)
		return x, nil
	case *Filter:
		x.Predicates = append(x.Predicates, pred)
		return x, nil
	default:
		f := Filter{
			Expr:       left,
			Predicates: []Expr{pred},
		}
		return &f, nil
	}
}

func (c *Compiler) compileGroup() (Expr, error) {
	c.Enter("group")
	defer c.Leave("group")
	c.next()
	if c.is(endGrp) {
		c.next()
		return &SequenceExpr{}, nil
	}
	expr, err := c.compileList()
	if err != nil {
		return nil, err
	}
	if err := c.expect(endGrp, "group"); err != nil {
		return nil, err
	}
	if step, ok := expr.(*Step); ok {
		expr = &Path{
			Steps: []Expr{step},
		}
	}
	return expr, nil
}

func (c *Compiler) compileArgs() ([]Expr, error) {
	c.Enter("args")
	defer c.Leave("args")
	if err := c.expect(begGrp, "args"); err != nil {
		return nil, err
	}
	var args []Expr
	for !c.done() && !c.is(endGrp) {
		if c.is(opQuestion) && (c.peek.Type == opSeq || c.peek.Type == endGrp) {
			return nil, unsupported("partial function application")
		}
		arg, err := c.compileExpr(powLowest)
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		switch {
		case c.is(opSeq):
			c.next()
			if c.is(endGrp) {
				return nil, c.unexpected("args")
			}
		case c.is(endGrp):
		default:
			return nil, c.unexpected("args")
		}
	}
	return args, c.expect(endGrp, "args")
}

func (c *Compiler) compileCall() (Expr, error) {
	c.Enter("call")
	defer c.Leave("call")
	name, err := c.qname()
	if err != nil {
		return nil, err
	}
	c.next()
	args, err := c.compileArgs()
	if err != nil {
		return nil, err
	}
	call := Call{
		Name: name,
		Args: args,
	}
	return &call, nil
}

func (c *Compiler) compileDynamicCall(left Expr) (Expr, error) {
	c.Enter("dynamic-call")
	defer c.Leave("dynamic-call")
	args, err := c.compileArgs()
	if err != nil {
		return nil, err
	}
	call := DynamicCall{
		Func: left,
		Args: args,
	}
	return &call, nil
}

func (c *Compiler) compileFunctionRef() (Expr, error) {
	c.Enter("function-ref")
	defer c.Leave("function-ref")
	name, err := c.qname()
	if err != nil {
		return nil, err
	}
	c.next()
	c.next()
	if !c.is(Integer) {
		return nil, c.unexpected("function-ref")
	}
	arity, err := strconv.Atoi(c.getCurrentLiteral())
	if err != nil {
		return nil, syntaxError("function-ref", err.Error(), c.curr.Position)
	}
	c.next()
	ref := FunctionRef{
		Name:  name,
		Arity: arity,
	}
	return &ref, nil
}

func (c *Compiler) compileInlineFunction() (Expr, error) {
	c.Enter("inline-function")
	defer c.Leave("inline-function")
	c.next()
	var (
		fn  InlineFunction
		err error
	)
	if fn.Params, err = c.compileParams(); err != nil {
		return nil, err
	}
	if c.isKeyword(kwAs) {
		c.next()
		if fn.Return, err = c.compileType(true); err != nil {
			return nil, err
		}
	}
	if fn.Body, err = c.compileEnclosed(); err != nil {
		return nil, err
	}
	return &fn, nil
}

// compileArrow rewrites the left operand of => as the first argument of
// the call on its right.
func (c *Compiler) compileArrow(left Expr) (Expr, error) {
	c.Enter("arrow")
	defer c.Leave("arrow")
	c.next()
	var fn Expr
	switch {
	case c.is(Name):
		name, err := c.qname()
		if err != nil {
			return nil, err
		}
		c.next()
		args, err := c.compileArgs()
		if err != nil {
			return nil, err
		}
		call := Call{
			Name: name,
			Args: append([]Expr{left}, args...),
		}
		return &call, nil
	case c.is(Variable):
		expr, err := c.compileVariable()
		if err != nil {
			return nil, err
		}
		fn = expr
	case c.is(begGrp):
		expr, err := c.compileGroup()
		if err != nil {
			return nil, err
		}
		fn = expr
	default:
		return nil, c.unexpected("arrow")
	}
	args, err := c.compileArgs()
	if err != nil {
		return nil, err
	}
	call := DynamicCall{
		Func: fn,
		Args: append([]Expr{left}, args...),
	}
	return &call, nil
}

func (c *Compiler) compileSimpleMap(left Expr) (Expr, error) {
	c.Enter("simple-map")
	defer c.Leave("simple-map")
	c.next()
	right, err := c.compileExpr(powMap)
	if err != nil {
		return nil, err
	}
	m := SimpleMap{
		Left:  left,
		Right: right,
	}
	return &m, nil
}

func (c *Compiler) compileBinary(left Expr) (Expr, error) {
	c.Enter("binary")
	defer c.Leave("binary")
	var (
		op  = c.curr.Type
		pow = bindings[op]
	)
	c.next()
	right, err := c.compileExpr(pow)
	if err != nil {
		return nil, err
	}
	b := Binary{
		Op:    tokenOps[op],
		Left:  left,
		Right: right,
	}
	return &b, nil
}

// compileKeyword handles the operators written as names.
func (c *Compiler) compileKeyword(left Expr) (Expr, error) {
	c.Enter("keyword")
	defer c.Leave("keyword")
	lit := c.getCurrentLiteral()
	switch lit {
	case kwInstance:
		c.next()
		if err := c.expectKeyword(kwOf, "instance-of"); err != nil {
			return nil, err
		}
		typ, err := c.compileType(true)
		if err != nil {
			return nil, err
		}
		return &InstanceOf{Expr: left, Type: typ}, nil
	case kwTreat:
		c.next()
		if err := c.expectKeyword(kwAs, "treat-as"); err != nil {
			return nil, err
		}
		typ, err := c.compileType(true)
		if err != nil {
			return nil, err
		}
		return &TreatAs{Expr: left, Type: typ}, nil
	case kwCast, kwCastable:
		c.next()
		if err := c.expectKeyword(kwAs, "cast-as"); err != nil {
			return nil, err
		}
		typ, err := c.compileSingleType()
		if err != nil {
			return nil, err
		}
		if lit == kwCastable {
			return &CastableAs{Expr: left, Type: typ}, nil
		}
		return &CastAs{Expr: left, Type: typ}, nil
	}
	op, ok := keywordOps[lit]
	if !ok {
		return nil, c.unexpected("keyword")
	}
	c.next()
	right, err := c.compileExpr(keywords[lit])
	if err != nil {
		return nil, err
	}
	b := Binary{
		Op:    op,
		Left:  left,
		Right: right,
	}
	return &b, nil
}

func (c *Compiler) compileUnary() (Expr, error) {
	c.Enter("unary")
	defer c.Leave("unary")
	op := OpNeg
	if c.is(opAdd) {
		op = OpPlus
	}
	c.next()
	expr, err := c.compileExpr(powPrefix)
	if err != nil {
		return nil, err
	}
	u := Unary{
		Op:      op,
		Operand: expr,
	}
	return &u, nil
}

func (c *Compiler) compileVariable() (Expr, error) {
	c.Enter("variable")
	defer c.Leave("variable")
	name, err := c.qname()
	if err != nil {
		return nil, err
	}
	c.next()
	return &VarRef{Name: name}, nil
}

func (c *Compiler) compileLiteral() (Expr, error) {
	c.Enter("literal")
	defer c.Leave("literal")
	defer c.next()
	return &LiteralExpr{Value: c.getCurrentLiteral()}, nil
}

func (c *Compiler) compileNumber() (Expr, error) {
	c.Enter("number")
	defer c.Leave("number")
	var (
		lit = c.getCurrentLiteral()
		val any
		err error
	)
	switch c.curr.Type {
	case Integer:
		val, err = strconv.ParseInt(lit, 10, 64)
	case Decimal:
		val, _, err = apd.NewFromString(lit)
	default:
		val, err = strconv.ParseFloat(lit, 64)
	}
	if err != nil {
		return nil, syntaxError("number", fmt.Sprintf("%s: invalid numeric literal", lit), c.curr.Position)
	}
	c.next()
	return &LiteralExpr{Value: val}, nil
}

func (c *Compiler) compileFLWOR() (Expr, error) {
	c.Enter("flwor")
	defer c.Leave("flwor")
	var expr FLWOR
	for !c.done() && !c.isKeyword(kwReturn) {
		if n := len(expr.Clauses); n > 0 {
			if _, ok := expr.Clauses[n-1].(*OrderClause); ok {
				return nil, syntaxError("flwor", "order by must be the last clause", c.curr.Position)
			}
		}
		var (
			clause Clause
			err    error
		)
		switch {
		case c.isKeyword(kwFor):
			clause, err = c.compileForClause()
		case c.isKeyword(kwLet):
			clause, err = c.compileLetClause()
		case c.isKeyword(kwWhere):
			c.next()
			var cond Expr
			if cond, err = c.compileExpr(powLowest); err == nil {
				clause = &WhereClause{Cond: cond}
			}
		case c.isKeyword(kwOrder), c.isKeyword(kwStable):
			clause, err = c.compileOrderClause()
		default:
			return nil, c.unexpected("flwor")
		}
		if err != nil {
			return nil, err
		}
		expr.Clauses = append(expr.Clauses, clause)
	}
	if err := c.expectKeyword(kwReturn, "flwor"); err != nil {
		return nil, err
	}
	ret, err := c.compileExpr(powLowest)
	if err != nil {
		return nil, err
	}
	expr.Return = ret
	return &expr, nil
}

func (c *Compiler) compileForClause() (Clause, error) {
	c.Enter("for")
	defer c.Leave("for")
	c.next()
	list, err := c.compileBindings(kwIn, true)
	if err != nil {
		return nil, err
	}
	return &ForClause{Bindings: list}, nil
}

func (c *Compiler) compileLetClause() (Clause, error) {
	c.Enter("let")
	defer c.Leave("let")
	c.next()
	list, err := c.compileBindings("", false)
	if err != nil {
		return nil, err
	}
	return &LetClause{Bindings: list}, nil
}

// compileBindings reads the comma separated bindings of a for, let, some
// or every clause. An empty keyword means the := of a let binding.
func (c *Compiler) compileBindings(keyword string, positional bool) ([]Binding, error) {
	var list []Binding
	for {
		if !c.is(Variable) {
			return nil, c.unexpected("binding")
		}
		var (
			b   Binding
			err error
		)
		if b.Name, err = c.qname(); err != nil {
			return nil, err
		}
		c.next()
		if c.isKeyword(kwAs) {
			c.next()
			if b.Type, err = c.compileType(true); err != nil {
				return nil, err
			}
		}
		if positional && c.isKeyword(kwAt) {
			c.next()
			if !c.is(Variable) {
				return nil, c.unexpected("binding")
			}
			if b.Pos, err = c.qname(); err != nil {
				return nil, err
			}
			c.next()
		}
		if keyword == "" {
			err = c.expect(opAssign, "binding")
		} else {
			err = c.expectKeyword(keyword, "binding")
		}
		if err != nil {
			return nil, err
		}
		if b.Expr, err = c.compileExpr(powLowest); err != nil {
			return nil, err
		}
		list = append(list, b)
		if !c.is(opSeq) {
			break
		}
		c.next()
	}
	return list, nil
}

func (c *Compiler) compileOrderClause() (Clause, error) {
	c.Enter("order")
	defer c.Leave("order")
	var clause OrderClause
	if c.isKeyword(kwStable) {
		clause.Stable = true
		c.next()
	}
	if err := c.expectKeyword(kwOrder, "order"); err != nil {
		return nil, err
	}
	if err := c.expectKeyword(kwBy, "order"); err != nil {
		return nil, err
	}
	for {
		expr, err := c.compileExpr(powLowest)
		if err != nil {
			return nil, err
		}
		spec := OrderSpec{
			Expr:       expr,
			EmptyLeast: true,
		}
		switch {
		case c.isKeyword(kwAscending):
			c.next()
		case c.isKeyword(kwDescending):
			spec.Descending = true
			c.next()
		}
		if c.isKeyword(kwEmpty) {
			c.next()
			switch {
			case c.isKeyword(kwGreatest):
				spec.EmptyLeast = false
			case c.isKeyword(kwLeast):
			default:
				return nil, c.unexpected("order")
			}
			c.next()
		}
		if c.isKeyword(kwCollation) {
			c.next()
			if !c.is(Literal) {
				return nil, c.unexpected("order")
			}
			spec.Collation = c.getCurrentLiteral()
			c.next()
		}
		clause.Specs = append(clause.Specs, spec)
		if !c.is(opSeq) {
			break
		}
		c.next()
	}
	return &clause, nil
}

func (c *Compiler) compileQuantified() (Expr, error) {
	c.Enter("quantified")
	defer c.Leave("quantified")
	expr := Quantified{
		Every: c.isKeyword(kwEvery),
	}
	c.next()
	list, err := c.compileBindings(kwIn, false)
	if err != nil {
		return nil, err
	}
	expr.Bindings = list
	if err := c.expectKeyword(kwSatisfies, "quantified"); err != nil {
		return nil, err
	}
	if expr.Satisfies, err = c.compileExpr(powLowest); err != nil {
		return nil, err
	}
	return &expr, nil
}

func (c *Compiler) compileIf() (Expr, error) {
	c.Enter("if")
	defer c.Leave("if")
	c.next()
	var (
		expr If
		err  error
	)
	if expr.Test, err = c.compileCondition(); err != nil {
		return nil, err
	}
	if err := c.expectKeyword(kwThen, "if"); err != nil {
		return nil, err
	}
	if expr.Then, err = c.compileExpr(powLowest); err != nil {
		return nil, err
	}
	if c.isKeyword(kwElse) {
		c.next()
		if expr.Else, err = c.compileExpr(powLowest); err != nil {
			return nil, err
		}
	}
	return &expr, nil
}

func (c *Compiler) compileCondition() (Expr, error) {
	if err := c.expect(begGrp, "condition"); err != nil {
		return nil, err
	}
	expr, err := c.compileList()
	if err != nil {
		return nil, err
	}
	return expr, c.expect(endGrp, "condition")
}

func (c *Compiler) compileTypeswitch() (Expr, error) {
	c.Enter("typeswitch")
	defer c.Leave("typeswitch")
	c.next()
	var (
		expr Typeswitch
		err  error
	)
	if expr.Operand, err = c.compileCondition(); err != nil {
		return nil, err
	}
	for c.isKeyword(kwCase) {
		c.next()
		var tc TypeCase
		if c.is(Variable) {
			if tc.Var, err = c.qname(); err != nil {
				return nil, err
			}
			c.next()
			if err := c.expectKeyword(kwAs, "typeswitch"); err != nil {
				return nil, err
			}
		}
		for {
			typ, err := c.compileType(true)
			if err != nil {
				return nil, err
			}
			tc.Types = append(tc.Types, typ)
			if !c.is(opUnion) {
				break
			}
			c.next()
		}
		if err := c.expectKeyword(kwReturn, "typeswitch"); err != nil {
			return nil, err
		}
		if tc.Return, err = c.compileExpr(powLowest); err != nil {
			return nil, err
		}
		expr.Cases = append(expr.Cases, tc)
	}
	if len(expr.Cases) == 0 {
		return nil, syntaxError("typeswitch", "at least one case expected", c.curr.Position)
	}
	if err := c.expectKeyword(kwDefault, "typeswitch"); err != nil {
		return nil, err
	}
	if c.is(Variable) {
		if expr.Default.Var, err = c.qname(); err != nil {
			return nil, err
		}
		c.next()
	}
	if err := c.expectKeyword(kwReturn, "typeswitch"); err != nil {
		return nil, err
	}
	if expr.Default.Return, err = c.compileExpr(powLowest); err != nil {
		return nil, err
	}
	return &expr, nil
}

func (c *Compiler) compileMap() (Expr, error) {
	c.Enter("map")
	defer c.Leave("map")
	c.next()
	c.next()
	var expr MapConstructor
	for !c.done() && !c.is(endCurl) {
		var (
			entry MapEntry
			err   error
		)
		if entry.Key, err = c.compileExpr(powLowest); err != nil {
			return nil, err
		}
		if err := c.expect(opColon, "map"); err != nil {
			return nil, err
		}
		if entry.Value, err = c.compileExpr(powLowest); err != nil {
			return nil, err
		}
		expr.Entries = append(expr.Entries, entry)
		switch {
		case c.is(opSeq):
			c.next()
			if c.is(endCurl) {
				return nil, c.unexpected("map")
			}
		case c.is(endCurl):
		default:
			return nil, c.unexpected("map")
		}
	}
	if err := c.expect(endCurl, "map"); err != nil {
		return nil, err
	}
	return &expr, nil
}

func (c *Compiler) compileCurlyArray() (Expr, error) {
	c.Enter("array")
	defer c.Leave("array")
	c.next()
	body, err := c.compileEnclosed()
	if err != nil {
		return nil, err
	}
	expr := ArrayConstructor{
		Members: []Expr{body},
		Curly:   true,
	}
	return &expr, nil
}

func (c *Compiler) compileSquareArray() (Expr, error) {
	c.Enter("array")
	defer c.Leave("array")
	c.next()
	var expr ArrayConstructor
	for !c.done() && !c.is(endPred) {
		member, err := c.compileExpr(powLowest)
		if err != nil {
			return nil, err
		}
		expr.Members = append(expr.Members, member)
		switch {
		case c.is(opSeq):
			c.next()
			if c.is(endPred) {
				return nil, c.unexpected("array")
			}
		case c.is(endPred):
		default:
			return nil, c.unexpected("array")
		}
	}
	if err := c.expect(endPred, "array"); err != nil {
		return nil, err
	}
	return &expr, nil
}

func (c *Compiler) compileLookup(left Expr) (Expr, error) {
	c.Enter("lookup")
	defer c.Leave("lookup")
	c.next()
	key, err := c.compileKeySpecifier()
	if err != nil {
		return nil, err
	}
	return &Lookup{Expr: left, Key: key}, nil
}

func (c *Compiler) compileUnaryLookup() (Expr, error) {
	c.Enter("lookup")
	defer c.Leave("lookup")
	c.next()
	key, err := c.compileKeySpecifier()
	if err != nil {
		return nil, err
	}
	return &Lookup{Key: key}, nil
}

// compileKeySpecifier returns the key of a lookup. The wildcard gives a nil
// key.
func (c *Compiler) compileKeySpecifier() (Expr, error) {
	switch {
	case c.is(Name):
		defer c.next()
		return &LiteralExpr{Value: c.getCurrentLiteral()}, nil
	case c.is(Integer):
		return c.compileNumber()
	case c.is(begGrp):
		return c.compileGroup()
	case c.is(opMul):
		c.next()
		return nil, nil
	default:
		return nil, c.unexpected("lookup")
	}
}

func (c *Compiler) compileOrdered() (Expr, error) {
	c.Enter("ordered")
	defer c.Leave("ordered")
	ordered := c.isKeyword(kwOrdered)
	c.next()
	body, err := c.compileEnclosed()
	if err != nil {
		return nil, err
	}
	expr := Ordered{
		Expr:    body,
		Ordered: ordered,
	}
	return &expr, nil
}

// compileType returns the source text of a sequence type. The text is
// parsed by the evaluator when the type is first used.
func (c *Compiler) compileType(occurrence bool) (string, error) {
	c.Enter("type")
	defer c.Leave("type")
	var parts []string
	switch {
	case c.is(Name):
		name := c.getCurrentLiteral()
		parts = append(parts, name)
		c.next()
		if !c.is(begGrp) {
			break
		}
		args, err := c.compileTypeArgs()
		if err != nil {
			return "", err
		}
		parts = append(parts, args)
		if name == kwFunction && c.isKeyword(kwAs) {
			c.next()
			ret, err := c.compileType(true)
			if err != nil {
				return "", err
			}
			return joinType(append(parts, kwAs, ret)), nil
		}
		if name == "empty-sequence" {
			return joinType(parts), nil
		}
	case c.is(begGrp):
		args, err := c.compileTypeArgs()
		if err != nil {
			return "", err
		}
		parts = append(parts, args)
	default:
		return "", c.unexpected("type")
	}
	if occurrence && (c.is(opQuestion) || c.is(opMul) || c.is(opAdd)) {
		parts = append(parts, c.curr.text())
		c.next()
	}
	return joinType(parts), nil
}

// compileSingleType reads the target of cast and castable: an atomic type
// name with an optional question mark.
func (c *Compiler) compileSingleType() (string, error) {
	if !c.is(Name) {
		return "", c.unexpected("type")
	}
	str := c.getCurrentLiteral()
	c.next()
	if c.is(opQuestion) {
		str += "?"
		c.next()
	}
	return str, nil
}

func (c *Compiler) compileTypeArgs() (string, error) {
	var parts []string
	for depth := 0; ; {
		if c.done() {
			return "", c.unexpected("type")
		}
		switch {
		case c.is(begGrp):
			depth++
		case c.is(endGrp):
			depth--
		}
		parts = append(parts, c.curr.text())
		c.next()
		if depth == 0 {
			break
		}
	}
	return joinType(parts), nil
}

// joinType rebuilds the text of a type from its tokens. A space only
// separates two names, follows a comma and surrounds the as keyword.
func joinType(parts []string) string {
	var str strings.Builder
	for i, p := range parts {
		if i > 0 {
			prev := parts[i-1]
			if prev == "," || prev == kwAs || p == kwAs || (isTypeWord(prev) && isTypeWord(p)) {
				str.WriteByte(' ')
			}
		}
		str.WriteString(p)
	}
	return str.String()
}

func isTypeWord(str string) bool {
	if str == "" {
		return false
	}
	c := str[len(str)-1]
	return c == '_' || c == '-' || (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// qname parses the name of the current token. Prefixes declared so far are
// resolved, the others are left to the evaluator.
func (c *Compiler) qname() (xml.QName, error) {
	name, err := parseQName(c.getCurrentLiteral())
	if err != nil {
		return name, syntaxError("name", err.Error(), c.curr.Position)
	}
	return c.resolve(name), nil
}

func (c *Compiler) resolve(name xml.QName) xml.QName {
	if name.Uri != "" || name.Space == "" {
		return name
	}
	if uri, ok := c.prolog.Namespaces[name.Space]; ok {
		name.Uri = uri
	} else if uri, ok := predeclared[name.Space]; ok {
		name.Uri = uri
	}
	return name
}

func parseQName(str string) (xml.QName, error) {
	if !strings.HasPrefix(str, "Q{") {
		return xml.ParseName(str)
	}
	uri, local, ok := strings.Cut(str[2:], "}")
	if !ok || local == "" {
		return xml.QName{}, fmt.Errorf("%s: invalid uri qualified name", str)
	}
	return xml.ExpandedName(local, "", uri), nil
}

func (c *Compiler) unexpected(rule string) error {
	err := syntaxError(rule, fmt.Sprintf("unexpected token %s", c.curr), c.curr.Position)
	c.Error(rule, err)
	return err
}

func (c *Compiler) expect(kind rune, rule string) error {
	if !c.is(kind) {
		return c.unexpected(rule)
	}
	c.next()
	return nil
}

func (c *Compiler) expectKeyword(kw, rule string) error {
	if !c.isKeyword(kw) {
		return c.unexpected(rule)
	}
	c.next()
	return nil
}

func (c *Compiler) power() int {
	if c.is(Name) {
		return keywords[c.getCurrentLiteral()]
	}
	return bindings[c.curr.Type]
}

func (c *Compiler) getCurrentLiteral() string {
	return c.curr.Literal
}

func (c *Compiler) is(kind rune) bool {
	return c.curr.Type == kind
}

func (c *Compiler) isKeyword(kw string) bool {
	return c.is(Name) && c.getCurrentLiteral() == kw
}

func (c *Compiler) peekKeyword(kw string) bool {
	return c.peek.Type == Name && c.peek.Literal == kw
}

func (c *Compiler) done() bool {
	return c.is(EOF)
}

func (c *Compiler) next() {
	c.curr = c.peek
	c.peek = c.scan.Scan()
}

const (
	powLowest = iota
	powOr
	powAnd
	powCmp
	powConcat
	powRange
	powAdd
	powMul
	powUnion
	powIntersect
	powInstance
	powTreat
	powCastable
	powCast
	powArrow
	powPrefix
	powMap
	powStep
	powPostfix
)

var bindings = map[rune]int{
	opEq:       powCmp,
	opNe:       powCmp,
	opGt:       powCmp,
	opGe:       powCmp,
	opLt:       powCmp,
	opLe:       powCmp,
	opBefore:   powCmp,
	opAfter:    powCmp,
	opConcat:   powConcat,
	opAdd:      powAdd,
	opSub:      powAdd,
	opMul:      powMul,
	opUnion:    powUnion,
	opArrow:    powArrow,
	opBang:     powMap,
	currLevel:  powStep,
	anyLevel:   powStep,
	begPred:    powPostfix,
	begGrp:     powPostfix,
	opQuestion: powPostfix,
}

var keywords = map[string]int{
	kwOr:        powOr,
	kwAnd:       powAnd,
	kwEq:        powCmp,
	kwNe:        powCmp,
	kwLt:        powCmp,
	kwLe:        powCmp,
	kwGt:        powCmp,
	kwGe:        powCmp,
	kwIs:        powCmp,
	kwTo:        powRange,
	kwDiv:       powMul,
	kwIdiv:      powMul,
	kwMod:       powMul,
	kwUnion:     powUnion,
	kwIntersect: powIntersect,
	kwExcept:    powIntersect,
	kwInstance:  powInstance,
	kwTreat:     powTreat,
	kwCastable:  powCastable,
	kwCast:      powCast,
}

var tokenOps = map[rune]Op{
	opEq:     OpEq,
	opNe:     OpNe,
	opGt:     OpGt,
	opGe:     OpGe,
	opLt:     OpLt,
	opLe:     OpLe,
	opBefore: OpBefore,
	opAfter:  OpAfter,
	opConcat: OpConcat,
	opAdd:    OpAdd,
	opSub:    OpSub,
	opMul:    OpMul,
	opUnion:  OpUnion,
}

var keywordOps = map[string]Op{
	kwOr:        OpOr,
	kwAnd:       OpAnd,
	kwEq:        OpValEq,
	kwNe:        OpValNe,
	kwLt:        OpValLt,
	kwLe:        OpValLe,
	kwGt:        OpValGt,
	kwGe:        OpValGe,
	kwIs:        OpIs,
	kwTo:        OpRange,
	kwDiv:       OpDiv,
	kwIdiv:      OpIdiv,
	kwMod:       OpMod,
	kwUnion:     OpUnion,
	kwIntersect: OpIntersect,
	kwExcept:    OpExcept,
}
