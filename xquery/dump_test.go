package xquery

import (
	"testing"

	"github.com/go-quicktest/qt"
)

func TestDebug(t *testing.T) {
	tests := []struct {
		Query string
		Want  string
	}{
		{Query: "1 + 2 * 3", Want: `binary("+", 1, binary("*", 2, 3))`},
		{Query: "'a', 1.5", Want: `sequence("a", 1.5)`},
		{Query: "$x?*", Want: `lookup(var(x), *)`},
		{Query: "if ($x) then 1 else ()", Want: `if(var(x), 1, sequence())`},
		{Query: "for $i in 1 to 3 return $i", Want: `flwor(for($i := binary("to", 1, 3)), return(var(i)))`},
	}
	for _, tt := range tests {
		mod, err := CompileString(tt.Query)
		qt.Assert(t, qt.IsNil(err), qt.Commentf("query: %s", tt.Query))
		qt.Check(t, qt.Equals(Debug(mod.Body), tt.Want), qt.Commentf("query: %s", tt.Query))
	}
	qt.Assert(t, qt.Equals(Debug(bogusExpr{}), "unknown(unknown)"))
}
