package main

import (
	"fmt"
	"os"
	"time"

	"github.com/midbel/cli"
	"github.com/midbel/xquery/xml"
	"github.com/midbel/xquery/xquery"
)

type QueryCmd struct {
	Noout   bool
	Depth   int
	Indent  string
	Text    bool
	File    bool
	Metrics bool
	SessionOptions
}

var queryCmd = cli.Command{
	Name:    "query",
	Summary: "evaluate a query against a document",
	Handler: &QueryCmd{},
}

const queryInfo = "query took %s - %d items returned"

func (q QueryCmd) Run(args []string) error {
	set := cli.NewFlagSet("query")
	set.BoolVar(&q.Noout, "quiet", false, "suppress output - default is to print the result items")
	set.IntVar(&q.Depth, "print-depth", 0, "print depth of nodes")
	set.StringVar(&q.Indent, "indent", "", "indent string used to print nodes - default is compact output")
	set.BoolVar(&q.Text, "text", false, "print only value of nodes")
	set.BoolVar(&q.File, "file", false, "read query from given file")
	set.BoolVar(&q.Metrics, "metrics", false, "print dispatch metrics after evaluation")
	set.StringVar(&q.Config, "config", "", "session configuration")
	set.Func("var", "bind external variable (name=value)", q.AddVariable)
	if err := set.Parse(args); err != nil {
		return err
	}
	cfg, err := q.Load()
	if err != nil {
		return err
	}
	options, err := q.Options(cfg)
	if err != nil {
		return err
	}
	doc, err := parseDocument(set.Arg(1))
	if err != nil {
		return err
	}
	mod, err := compileQuery(set.Arg(0), q.File, cfg.Tracer())
	if err != nil {
		return err
	}

	var (
		eval   = xquery.New(options...)
		before = xquery.Metrics()
		now    = time.Now()
	)
	results, err := eval.Run(mod, doc)
	elapsed := time.Since(now)

	writeDiagnostics(os.Stderr, eval.Diagnostics())
	if q.Metrics {
		for k, v := range xquery.MetricsDelta(before, xquery.Metrics()) {
			fmt.Fprintf(os.Stderr, "%s: %d", k, v)
			fmt.Fprintln(os.Stderr)
		}
	}
	if err != nil {
		return errFail
	}
	if !q.Noout {
		ser := xml.Serializer{
			Indent:   q.Indent,
			MaxDepth: q.Depth + 1,
		}
		writeSequence(os.Stdout, results, ser, q.Text)
	}
	fmt.Fprintf(os.Stdout, queryInfo, elapsed, results.Len())
	fmt.Fprintln(os.Stdout)
	if results.Len() == 0 {
		return errFail
	}
	return nil
}
