package xquery

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/go-quicktest/qt"
)

type bogusExpr struct{}

func (bogusExpr) Kind() Kind { return KindUnknown }

func TestMetricsTypeCache(t *testing.T) {
	before := Metrics()
	seq := run(t, "for $i in 1 to 10 return $i instance of xs:integer", nil)
	delta := MetricsDelta(before, Metrics())

	qt.Assert(t, qt.Equals(seq.String(), strings.TrimSpace(strings.Repeat("true ", 10))))
	qt.Assert(t, qt.Equals(delta["seqtype.miss"], uint64(1)))
	qt.Assert(t, qt.Equals(delta["seqtype.hit"], uint64(9)))
	qt.Assert(t, qt.Equals(delta["eval.instance-of"], uint64(10)))
	qt.Assert(t, qt.Equals(delta["eval.flwor"], uint64(1)))
}

func TestMetricsModuleCache(t *testing.T) {
	query, loader := loadArchive(t, importArchive)
	cache := NewModuleCache(loader)

	before := Metrics()
	run(t, query, nil, WithModuleCache(cache))
	run(t, query, nil, WithModuleCache(cache))
	delta := MetricsDelta(before, Metrics())

	qt.Assert(t, qt.Equals(delta["module.miss"], uint64(1)))
	qt.Assert(t, qt.Equals(delta["module.hit"], uint64(1)))
}

func TestMetricsDelta(t *testing.T) {
	before := map[string]uint64{"a": 1, "b": 2}
	after := map[string]uint64{"a": 1, "b": 5, "c": 1}
	qt.Assert(t, qt.DeepEquals(MetricsDelta(before, after), map[string]uint64{"b": 3, "c": 1}))
}

func TestUnsupportedExpression(t *testing.T) {
	before := Metrics()
	e := New()
	_, err := e.Evaluate(bogusExpr{}, nil)
	delta := MetricsDelta(before, Metrics())

	qt.Assert(t, qt.ErrorIs(err, ErrUnsupported))
	qt.Assert(t, qt.IsTrue(e.Unsupported()))
	qt.Assert(t, qt.Equals(delta["unsupported"], uint64(1)))
	qt.Assert(t, qt.Equals(delta["eval.unknown"], uint64(1)))
	qt.Assert(t, qt.HasLen(e.Diagnostics(), 1))

	_, err = e.Evaluate(&LiteralExpr{Value: int64(1)}, nil)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.IsTrue(e.Unsupported()))
}

func TestUnsupportedNested(t *testing.T) {
	expr := &SequenceExpr{
		Items: []Expr{
			&LiteralExpr{Value: int64(1)},
			&If{
				Test: &LiteralExpr{Value: true},
				Then: bogusExpr{},
			},
		},
	}
	e := New()
	_, err := e.Evaluate(expr, nil)
	qt.Assert(t, qt.ErrorIs(err, ErrUnsupported))
	qt.Assert(t, qt.IsTrue(e.Unsupported()))

	diags := e.Diagnostics()
	qt.Assert(t, qt.HasLen(diags, 1))
	qt.Assert(t, qt.Equals(diags[0].Node, Expr(bogusExpr{})))
}

func TestUnsupportedExternalFunction(t *testing.T) {
	e := New()
	_, err := e.Find("declare function local:f() external; local:f()", nil)
	qt.Assert(t, qt.ErrorIs(err, ErrUnsupported))
	qt.Assert(t, qt.IsTrue(e.Unsupported()))

	_, err = CompileString("import schema namespace s = 'urn:s'; 1")
	qt.Assert(t, qt.ErrorIs(err, ErrUnsupported))
}

func TestDiagnosticsRecordedOnce(t *testing.T) {
	e := New()
	_, err := e.Find("1 + (2 * (3 div 0))", nil)
	qt.Assert(t, qt.ErrorIs(err, ErrZero))

	diags := e.Diagnostics()
	qt.Assert(t, qt.HasLen(diags, 1))
	qt.Assert(t, qt.Equals(diags[0].Code, CodeDivZero))
	qt.Assert(t, qt.IsTrue(diags[0].Fatal))
	qt.Assert(t, qt.IsFalse(e.Unsupported()))

	bin, ok := diags[0].Node.(*Binary)
	qt.Assert(t, qt.IsTrue(ok))
	qt.Assert(t, qt.Equals(bin.Op, OpDiv))
}

func TestRecordError(t *testing.T) {
	var (
		buf    bytes.Buffer
		logger = slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
		e      = New(WithLogger(logger))
	)
	e.RecordError("document not well formed", nil, false)

	diags := e.Diagnostics()
	qt.Assert(t, qt.HasLen(diags, 1))
	qt.Assert(t, qt.IsFalse(diags[0].Fatal))
	qt.Assert(t, qt.Equals(diags[0].String(), "document not well formed"))
	qt.Assert(t, qt.StringContains(buf.String(), "error recorded"))
}

func TestKindString(t *testing.T) {
	qt.Assert(t, qt.Equals(KindFLWOR.String(), "flwor"))
	qt.Assert(t, qt.Equals(Kind(-1).String(), "unknown"))
	qt.Assert(t, qt.Equals(kindCount.String(), "unknown"))
}
