package main

import (
	"testing"

	"github.com/go-quicktest/qt"
	"github.com/midbel/cli"
)

func TestCommands(t *testing.T) {
	root := prepare()

	err := root.Execute([]string{"builtins", "-namespace", "http://www.w3.org/2005/xpath-functions/math"})
	qt.Assert(t, qt.IsNil(err))

	err = root.Execute([]string{"builtin"})
	var suggest cli.SuggestionError
	qt.Assert(t, qt.ErrorAs(err, &suggest))
	qt.Assert(t, qt.Equals(suggest.Name, "builtin"))

	err = root.Execute([]string{"query", "-quiet", "1 to 3"})
	qt.Assert(t, qt.IsNil(err))

	err = root.Execute([]string{"query", "execute", "-quiet", "()"})
	qt.Assert(t, qt.ErrorIs(err, errFail))
}
