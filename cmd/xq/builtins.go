package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/midbel/cli"
	"github.com/midbel/xquery/xquery"
)

type BuiltinsCmd struct {
	Namespace string
}

var builtinsCmd = cli.Command{
	Name:    "builtins",
	Summary: "list the functions available to queries",
	Handler: &BuiltinsCmd{},
}

func (b BuiltinsCmd) Run(args []string) error {
	set := cli.NewFlagSet("builtins")
	set.StringVar(&b.Namespace, "namespace", "", "only list functions of the given namespace")
	if err := set.Parse(args); err != nil {
		return err
	}
	for _, n := range xquery.Builtins() {
		if b.Namespace != "" && !strings.HasPrefix(n, "Q{"+b.Namespace+"}") {
			continue
		}
		fmt.Fprintln(os.Stdout, n)
	}
	return nil
}
