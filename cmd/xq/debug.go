package main

import (
	"fmt"
	"os"

	"github.com/midbel/cli"
	"github.com/midbel/xquery/xml"
	"github.com/midbel/xquery/xquery"
)

type DebugCmd struct {
	File bool
	Exec bool
	SessionOptions
}

var debugCmd = cli.Command{
	Name:    "debug",
	Summary: "print the compiled form of a query",
	Handler: &DebugCmd{},
}

// Run compiles a query with tracing enabled and prints a summary of its
// prolog. The query is evaluated when requested.
func (d DebugCmd) Run(args []string) error {
	set := cli.NewFlagSet("debug")
	set.BoolVar(&d.File, "file", false, "read query from given file")
	set.BoolVar(&d.Exec, "exec", false, "evaluate query after compilation")
	set.StringVar(&d.Config, "config", "", "session configuration")
	set.Func("var", "bind external variable (name=value)", d.AddVariable)
	if err := set.Parse(args); err != nil {
		return err
	}
	mod, err := compileQuery(set.Arg(0), d.File, xquery.TraceStdout())
	if err != nil {
		return err
	}
	printModule(mod)
	if !d.Exec {
		return nil
	}
	cfg, err := d.Load()
	if err != nil {
		return err
	}
	options, err := d.Options(cfg)
	if err != nil {
		return err
	}
	doc, err := parseDocument(set.Arg(1))
	if err != nil {
		return err
	}
	eval := xquery.New(options...)
	results, err := eval.Run(mod, doc)
	writeDiagnostics(os.Stderr, eval.Diagnostics())
	if err != nil {
		return errFail
	}
	writeSequence(os.Stdout, results, xml.Serializer{MaxDepth: 1}, false)
	return nil
}

func printModule(mod *xquery.Module) {
	p := mod.Prolog
	if mod.Library() {
		fmt.Fprintf(os.Stdout, "library module: %s", mod.Namespace())
		fmt.Fprintln(os.Stdout)
	}
	for _, i := range p.Imports {
		fmt.Fprintf(os.Stdout, "import: %s (%s)", i.Namespace, i.Prefix)
		fmt.Fprintln(os.Stdout)
	}
	for _, v := range p.Variables {
		fmt.Fprintf(os.Stdout, "variable: $%s", v.Name.QualifiedName())
		fmt.Fprintln(os.Stdout)
	}
	for _, f := range p.Functions {
		fmt.Fprintf(os.Stdout, "function: %s#%d = %s", f.Name.QualifiedName(), len(f.Params), xquery.Debug(f.Body))
		fmt.Fprintln(os.Stdout)
	}
	if p.Collation != "" {
		fmt.Fprintf(os.Stdout, "collation: %s", p.Collation)
		fmt.Fprintln(os.Stdout)
	}
	if mod.Body != nil {
		fmt.Fprintf(os.Stdout, "body: %s", xquery.Debug(mod.Body))
		fmt.Fprintln(os.Stdout)
	}
}
