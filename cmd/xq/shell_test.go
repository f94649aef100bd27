package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-quicktest/qt"
	"github.com/midbel/xquery/xquery"
)

func TestSession(t *testing.T) {
	file := filepath.Join(t.TempDir(), "doc.xml")
	err := os.WriteFile(file, []byte(`<list><item>a</item><item>b</item></list>`), 0o644)
	qt.Assert(t, qt.IsNil(err))

	sess := session{
		options: []xquery.Option{xquery.WithVariable("sep", "-")},
	}
	out, err := sess.execute("string-join((1, 2, 3), $sep)")
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(out, "1-2-3"))

	_, err = sess.execute(":load " + file)
	qt.Assert(t, qt.IsNil(err))
	out, err = sess.execute("count(//item)")
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(out, "2"))

	out, err = sess.execute(":metrics")
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.StringContains(out, "eval.call"))

	_, err = sess.execute(":unload")
	qt.Assert(t, qt.IsNil(err))
	_, err = sess.execute("count(//item)")
	qt.Assert(t, qt.IsNotNil(err))

	_, err = sess.execute("1 +")
	qt.Assert(t, qt.ErrorIs(err, xquery.ErrSyntax))

	_, err = sess.execute(":unknown")
	qt.Assert(t, qt.IsNotNil(err))

	_, err = sess.execute(":quit")
	qt.Assert(t, qt.ErrorIs(err, errQuit))
}
