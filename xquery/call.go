package xquery

import (
	"fmt"
	"slices"

	"github.com/midbel/xquery/environ"
	"github.com/midbel/xquery/xml"
)

func (e *Evaluator) evalVariable(x *VarRef) (Sequence, error) {
	name, err := e.resolveName(x.Name)
	if err != nil {
		return nil, err
	}
	if v, err := e.locals.Resolve(name.ExpandedName()); err == nil {
		return v, nil
	}
	return e.globalVariable(name)
}

// globalVariable returns the value of a variable declared in a prolog or
// given by the host. Declared variables are evaluated once per session; a
// variable whose initializer needs its own value is an error.
func (e *Evaluator) globalVariable(name xml.QName) (Sequence, error) {
	key := name.ExpandedName()
	if v, ok := e.memo[key]; ok {
		return v, nil
	}
	decl, mod := e.findVariable(name)
	if decl == nil {
		if v, ok := e.external(name); ok {
			return v, nil
		}
		return nil, errorf(CodeUndefinedName, "$%s: variable not defined", name.QualifiedName())
	}
	if _, ok := e.initializing[key]; ok {
		return nil, errorf(CodeCircular, "$%s: circular variable initialization", name.QualifiedName())
	}
	e.initializing[key] = struct{}{}
	defer delete(e.initializing, key)

	value, err := e.initVariable(decl, mod)
	if err != nil {
		return nil, err
	}
	e.memo[key] = value
	return value, nil
}

func (e *Evaluator) findVariable(name xml.QName) (*VarDecl, *Module) {
	key := name.ExpandedName()
	if v, ok := e.module.Prolog.variables[key]; ok {
		return v, e.module
	}
	if mod, ok := e.module.imports[name.Uri]; ok {
		if v, ok := mod.Prolog.variables[key]; ok {
			return v, mod
		}
	}
	return nil, nil
}

func (e *Evaluator) external(name xml.QName) (Sequence, bool) {
	for _, k := range []string{name.ExpandedName(), name.QualifiedName(), name.LocalName()} {
		if v, ok := e.externals[k]; ok {
			return v, true
		}
	}
	return nil, false
}

func (e *Evaluator) initVariable(decl *VarDecl, mod *Module) (Sequence, error) {
	var (
		value Sequence
		err   error
	)
	if decl.External {
		if v, ok := e.external(decl.Name); ok {
			value = v
		} else if decl.Init == nil {
			return nil, errorf(CodeDynamicContext, "$%s: no value given for external variable", decl.Name.QualifiedName())
		}
	}
	if value == nil && decl.Init != nil {
		prevLocals, prevModule, prevFocus := e.locals, e.module, e.focus
		e.locals = newScope()
		e.module = mod
		e.focus = slices.Clone(e.focus[:min(len(e.focus), 1)])
		value, err = e.eval(decl.Init)
		e.locals, e.module, e.focus = prevLocals, prevModule, prevFocus
		if err != nil {
			return nil, err
		}
	}
	if decl.Type != "" {
		if err := e.conform(value, decl.Type, CodeType, "$"+decl.Name.QualifiedName()); err != nil {
			return nil, err
		}
	}
	return value, nil
}

func (e *Evaluator) evalCall(x *Call) (Sequence, error) {
	name, err := e.resolveFunctionName(x.Name)
	if err != nil {
		return nil, err
	}
	fn, err := e.lookupFunction(name, len(x.Args))
	if err != nil {
		return nil, err
	}
	args := make([]Sequence, 0, len(x.Args))
	for i := range x.Args {
		seq, err := e.eval(x.Args[i])
		if err != nil {
			return nil, err
		}
		args = append(args, seq)
	}
	return e.callFunction(fn, args)
}

func (e *Evaluator) callFunction(fn *FunctionItem, args []Sequence) (Sequence, error) {
	if len(args) != fn.Arity && fn.Arity >= 0 {
		return nil, errorf(CodeType, "%s: expected %d argument(s), got %d", fn, fn.Arity, len(args))
	}
	if e.depth >= MaxCallDepth {
		return nil, errorf(CodeOverflow, "%s: maximum call depth reached", fn)
	}
	e.depth++
	defer func() {
		e.depth--
	}()
	return fn.call(e, args)
}

// lookupFunction finds a function by name and arity in the declarations
// of the current module, then in the imported module of its namespace,
// then in the builtin library.
func (e *Evaluator) lookupFunction(name xml.QName, arity int) (*FunctionItem, error) {
	if decl, mod := e.findFunction(name, arity); decl != nil {
		fn := FunctionItem{
			Name:  decl.Name,
			Arity: arity,
			call: func(e *Evaluator, args []Sequence) (Sequence, error) {
				return e.invoke(decl, mod, args)
			},
		}
		return &fn, nil
	}
	if b, ok := lookupBuiltin(name, arity); ok {
		fn := FunctionItem{
			Name:  name,
			Arity: arity,
			call:  b.call,
		}
		return &fn, nil
	}
	return nil, errorf(CodeUndefinedFunc, "%s#%d: function not defined", name.QualifiedName(), arity)
}

func (e *Evaluator) findFunction(name xml.QName, arity int) (*FuncDecl, *Module) {
	key := functionKey(name, arity)
	if fn, ok := e.module.Prolog.functions[key]; ok {
		return fn, e.module
	}
	if mod, ok := e.module.imports[name.Uri]; ok {
		if fn, ok := mod.Prolog.functions[key]; ok {
			return fn, mod
		}
	}
	return nil, nil
}

func functionKey(name xml.QName, arity int) string {
	return fmt.Sprintf("%s#%d", name.ExpandedName(), arity)
}

// invoke runs a declared function. Its body sees only its parameters, the
// global variables of its module and no context item.
func (e *Evaluator) invoke(decl *FuncDecl, mod *Module, args []Sequence) (Sequence, error) {
	if decl.Body == nil {
		return nil, unsupported("%s: external function not available", decl.Name.QualifiedName())
	}
	for i, p := range decl.Params {
		if p.Type == "" {
			continue
		}
		if err := e.conform(args[i], p.Type, CodeType, "$"+p.Name.QualifiedName()); err != nil {
			return nil, err
		}
	}
	prevLocals, prevModule, prevFocus, prevOrder := e.locals, e.module, e.focus, e.unordered
	defer func() {
		e.locals, e.module, e.focus, e.unordered = prevLocals, prevModule, prevFocus, prevOrder
	}()
	e.locals = newScope()
	e.module = mod
	e.focus = nil
	e.unordered = mod.Prolog.Unordered
	for i, p := range decl.Params {
		e.bind(p.Name, args[i])
	}
	res, err := e.eval(decl.Body)
	if err != nil {
		return nil, err
	}
	if decl.Return != "" {
		if err := e.conform(res, decl.Return, CodeType, decl.Name.QualifiedName()); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (e *Evaluator) evalDynamicCall(expr Expr) (Sequence, error) {
	x, ok := expr.(*DynamicCall)
	if !ok {
		return nil, unsupported("%T: not a dynamic call", expr)
	}
	seq, err := e.eval(x.Func)
	if err != nil {
		return nil, err
	}
	if len(seq) != 1 {
		return nil, errorf(CodeType, "dynamic call on a sequence of %d items", len(seq))
	}
	args := make([]Sequence, 0, len(x.Args))
	for i := range x.Args {
		a, err := e.eval(x.Args[i])
		if err != nil {
			return nil, err
		}
		args = append(args, a)
	}
	fn, err := asFunction(seq[0])
	if err != nil {
		return nil, err
	}
	return e.callFunction(fn, args)
}

// asFunction returns the function item of a function, a map or an array.
func asFunction(item Item) (*FunctionItem, error) {
	switch x := item.(type) {
	case *FunctionItem:
		return x, nil
	case *MapItem:
		fn := FunctionItem{
			Arity: 1,
			call: func(_ *Evaluator, args []Sequence) (Sequence, error) {
				key, err := singleKey(args[0])
				if err != nil {
					return nil, err
				}
				v, _ := x.Get(key)
				return v, nil
			},
		}
		return &fn, nil
	case *ArrayItem:
		fn := FunctionItem{
			Arity: 1,
			call: func(_ *Evaluator, args []Sequence) (Sequence, error) {
				ix, err := integerArg(args[0])
				if err != nil {
					return nil, err
				}
				return x.Get(ix)
			},
		}
		return &fn, nil
	default:
		return nil, errorf(CodeType, "%s is not a function", itemKind(item))
	}
}

func (e *Evaluator) evalFunctionRef(expr Expr) (Sequence, error) {
	x, ok := expr.(*FunctionRef)
	if !ok {
		return nil, unsupported("%T: not a function reference", expr)
	}
	name, err := e.resolveFunctionName(x.Name)
	if err != nil {
		return nil, err
	}
	fn, err := e.lookupFunction(name, x.Arity)
	if err != nil {
		return nil, err
	}
	if mod := e.module; fn.call != nil {
		call := fn.call
		fn.call = func(e *Evaluator, args []Sequence) (Sequence, error) {
			prev := e.module
			e.module = mod
			defer func() {
				e.module = prev
			}()
			return call(e, args)
		}
	}
	return Sequence{fn}, nil
}

func (e *Evaluator) evalInlineFunction(expr Expr) (Sequence, error) {
	x, ok := expr.(*InlineFunction)
	if !ok {
		return nil, unsupported("%T: not an inline function", expr)
	}
	var (
		captured = e.locals.Snapshot()
		mod      = e.module
	)
	fn := FunctionItem{
		Arity: len(x.Params),
		call: func(e *Evaluator, args []Sequence) (Sequence, error) {
			for i, p := range x.Params {
				if p.Type == "" {
					continue
				}
				if err := e.conform(args[i], p.Type, CodeType, "$"+p.Name.QualifiedName()); err != nil {
					return nil, err
				}
			}
			prevLocals, prevModule, prevFocus := e.locals, e.module, e.focus
			defer func() {
				e.locals, e.module, e.focus = prevLocals, prevModule, prevFocus
			}()
			e.locals = environ.Enclosed[Sequence](captured).(*environ.Env[Sequence])
			e.module = mod
			e.focus = nil
			for i, p := range x.Params {
				e.bind(p.Name, args[i])
			}
			res, err := e.eval(x.Body)
			if err != nil {
				return nil, err
			}
			if x.Return != "" {
				if err := e.conform(res, x.Return, CodeType, "inline function"); err != nil {
					return nil, err
				}
			}
			return res, nil
		},
	}
	return Sequence{&fn}, nil
}
