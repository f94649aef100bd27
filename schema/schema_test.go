package schema

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/cockroachdb/apd/v3"
	"github.com/go-quicktest/qt"
)

func TestLookup(t *testing.T) {
	for _, name := range []string{"integer", "xs:integer", "Q{http://www.w3.org/2001/XMLSchema}integer"} {
		typ, err := Lookup(name)
		qt.Assert(t, qt.IsNil(err), qt.Commentf(name))
		qt.Check(t, qt.Equals(typ, Integer))
	}
	_, err := Lookup("fn:integer")
	qt.Assert(t, qt.ErrorIs(err, ErrUnknown))
	_, err = Lookup("xs:unknown")
	qt.Assert(t, qt.ErrorIs(err, ErrUnknown))
}

func TestDerivesFrom(t *testing.T) {
	small, _ := Lookup("byte")
	qt.Check(t, qt.IsTrue(small.DerivesFrom(Integer)))
	qt.Check(t, qt.IsTrue(small.DerivesFrom(Decimal)))
	qt.Check(t, qt.IsTrue(small.DerivesFrom(Numeric)))
	qt.Check(t, qt.IsTrue(Double.DerivesFrom(AnyAtomic)))
	qt.Check(t, qt.IsFalse(Double.DerivesFrom(Decimal)))
	qt.Check(t, qt.IsFalse(String.DerivesFrom(Numeric)))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		Type  string
		Input string
		Err   error
	}{
		{Type: "integer", Input: " 42 "},
		{Type: "integer", Input: "4.2", Err: ErrInvalid},
		{Type: "decimal", Input: "-0.5"},
		{Type: "decimal", Input: "1e3", Err: ErrInvalid},
		{Type: "double", Input: "1e3"},
		{Type: "double", Input: "-INF"},
		{Type: "boolean", Input: "1"},
		{Type: "boolean", Input: "yes", Err: ErrInvalid},
		{Type: "byte", Input: "127"},
		{Type: "byte", Input: "128", Err: ErrRange},
		{Type: "positiveInteger", Input: "0", Err: ErrRange},
		{Type: "unsignedLong", Input: "18446744073709551615"},
		{Type: "date", Input: "2024-02-29"},
		{Type: "date", Input: "2023-02-29", Err: ErrInvalid},
		{Type: "dateTime", Input: "2024-01-01T10:00:00.5+02:00"},
		{Type: "time", Input: "25:00:00", Err: ErrInvalid},
		{Type: "NCName", Input: "a:b", Err: ErrInvalid},
		{Type: "Name", Input: "a:b"},
		{Type: "language", Input: "en-US"},
	}
	for _, tt := range tests {
		typ, err := Lookup(tt.Type)
		qt.Assert(t, qt.IsNil(err))
		err = Validate(tt.Input, typ)
		if tt.Err == nil {
			qt.Check(t, qt.IsNil(err), qt.Commentf("%s(%q)", tt.Type, tt.Input))
			continue
		}
		qt.Check(t, qt.ErrorIs(err, tt.Err), qt.Commentf("%s(%q)", tt.Type, tt.Input))
	}
}

func TestCoerce(t *testing.T) {
	v, err := Coerce("12", Untyped, Integer)
	qt.Assert(t, qt.IsNil(err))
	qt.Check(t, qt.Equals(v, any(int64(12))))

	v, err = Coerce(3.9, Double, Integer)
	qt.Assert(t, qt.IsNil(err))
	qt.Check(t, qt.Equals(v, any(int64(3))))

	v, err = Coerce(apd.New(-25, -1), Decimal, Integer)
	qt.Assert(t, qt.IsNil(err))
	qt.Check(t, qt.Equals(v, any(int64(-2))))

	_, err = Coerce(math.NaN(), Double, Integer)
	qt.Check(t, qt.ErrorIs(err, ErrInvalid))

	small, _ := Lookup("byte")
	_, err = Coerce(int64(300), Integer, small)
	qt.Check(t, qt.ErrorIs(err, ErrRange))

	v, err = Coerce(int64(0), Integer, Boolean)
	qt.Assert(t, qt.IsNil(err))
	qt.Check(t, qt.Equals(v, any(false)))

	v, err = Coerce(apd.New(150, -2), Decimal, String)
	qt.Assert(t, qt.IsNil(err))
	qt.Check(t, qt.Equals(v, any("1.5")))

	dt, err := ParseDateTime("2024-03-01T12:30:00Z")
	qt.Assert(t, qt.IsNil(err))
	v, err = Coerce(dt, DateTime, Date)
	qt.Assert(t, qt.IsNil(err))
	qt.Check(t, qt.Equals(Format(v, Date), "2024-03-01Z"))

	_, err = Coerce(true, Boolean, Date)
	qt.Check(t, qt.IsTrue(errors.Is(err, ErrCast)))
}

func TestFormat(t *testing.T) {
	tests := []struct {
		Value any
		Type  *Type
		Want  string
	}{
		{Value: 1.0, Want: "1"},
		{Value: 0.5, Want: "0.5"},
		{Value: 1e6, Want: "1.0E6"},
		{Value: 1.5e-7, Want: "1.5E-7"},
		{Value: math.Inf(-1), Want: "-INF"},
		{Value: apd.New(100, 0), Want: "100"},
		{Value: apd.New(12300, -3), Want: "12.3"},
		{Value: time.Date(2024, 5, 1, 0, 0, 0, 0, NoZone), Type: Date, Want: "2024-05-01"},
		{Value: time.Date(2024, 5, 1, 8, 5, 0, 0, time.FixedZone("", 3600)), Type: DateTime, Want: "2024-05-01T08:05:00+01:00"},
	}
	for _, tt := range tests {
		qt.Check(t, qt.Equals(Format(tt.Value, tt.Type), tt.Want))
	}
}
