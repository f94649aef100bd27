package xquery

import (
	"math"
	"slices"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/cockroachdb/apd/v3"
)

// DecimalFormat holds the properties of a decimal format declared in a
// prolog and used by fn:format-number.
type DecimalFormat struct {
	DecimalSeparator  rune
	GroupingSeparator rune
	ExponentSeparator rune
	Percent           rune
	PerMille          rune
	ZeroDigit         rune
	Digit             rune
	PatternSeparator  rune
	MinusSign         rune
	Infinity          string
	NaN               string
}

func defaultFormat() *DecimalFormat {
	return &DecimalFormat{
		DecimalSeparator:  '.',
		GroupingSeparator: ',',
		ExponentSeparator: 'e',
		Percent:           '%',
		PerMille:          '‰',
		ZeroDigit:         '0',
		Digit:             '#',
		PatternSeparator:  ';',
		MinusSign:         '-',
		Infinity:          "Infinity",
		NaN:               "NaN",
	}
}

// Set changes a property of the format. Names are the ones of the
// decimal-format declaration.
func (f *DecimalFormat) Set(prop, value string) error {
	switch prop {
	case "infinity":
		f.Infinity = value
		return nil
	case "NaN":
		f.NaN = value
		return nil
	}
	if utf8.RuneCountInString(value) != 1 {
		return errorf(CodeFormat, "%s: property expects a single character, got %q", prop, value)
	}
	r, _ := utf8.DecodeRuneInString(value)
	switch prop {
	case "decimal-separator":
		f.DecimalSeparator = r
	case "grouping-separator":
		f.GroupingSeparator = r
	case "exponent-separator":
		f.ExponentSeparator = r
	case "percent":
		f.Percent = r
	case "per-mille":
		f.PerMille = r
	case "zero-digit":
		if !unicode.IsDigit(r) || unicode.IsDigit(r-1) {
			return errorf(CodeFormat, "%q: zero-digit must be the digit zero of a family", value)
		}
		f.ZeroDigit = r
	case "digit":
		f.Digit = r
	case "pattern-separator":
		f.PatternSeparator = r
	case "minus-sign":
		f.MinusSign = r
	default:
		return errorf(CodeFormat, "%s: unknown decimal format property", prop)
	}
	return nil
}

func (f *DecimalFormat) isDigit(r rune) bool {
	return r >= f.ZeroDigit && r <= f.ZeroDigit+9
}

func (f *DecimalFormat) active(r rune) bool {
	return f.isDigit(r) || r == f.Digit || r == f.DecimalSeparator || r == f.GroupingSeparator
}

type picture struct {
	prefix    string
	suffix    string
	minInt    int
	minFrac   int
	maxFrac   int
	groups    []int
	regular   int
	scale     int
	separator bool
}

func (f *DecimalFormat) parsePicture(str string) (picture, error) {
	var (
		pic   picture
		chars = []rune(str)
		beg   = slices.IndexFunc(chars, f.active)
		end   = len(chars)
	)
	if beg < 0 {
		return pic, errorf(CodePicture, "%q: picture has no digit", str)
	}
	for end > beg && !f.active(chars[end-1]) {
		end--
	}
	pic.prefix = string(chars[:beg])
	pic.suffix = string(chars[end:])
	for _, r := range pic.prefix + pic.suffix {
		switch r {
		case f.Percent:
			if pic.scale != 0 {
				return pic, errorf(CodePicture, "%q: percent and per-mille used together", str)
			}
			pic.scale = 2
		case f.PerMille:
			if pic.scale != 0 {
				return pic, errorf(CodePicture, "%q: percent and per-mille used together", str)
			}
			pic.scale = 3
		}
	}
	var (
		mantissa      = chars[beg:end]
		integer, frac []rune
	)
	if ix := slices.Index(mantissa, f.DecimalSeparator); ix >= 0 {
		integer, frac = mantissa[:ix], mantissa[ix+1:]
		if slices.Contains(frac, f.DecimalSeparator) {
			return pic, errorf(CodePicture, "%q: more than one decimal separator", str)
		}
		pic.separator = true
	} else {
		integer = mantissa
	}
	var digits int
	for i := len(integer) - 1; i >= 0; i-- {
		switch r := integer[i]; {
		case r == f.GroupingSeparator:
			if i == len(integer)-1 && pic.separator {
				return pic, errorf(CodePicture, "%q: grouping separator next to the decimal separator", str)
			}
			if i > 0 && integer[i-1] == f.GroupingSeparator {
				return pic, errorf(CodePicture, "%q: consecutive grouping separators", str)
			}
			pic.groups = append(pic.groups, digits)
		case f.isDigit(r):
			pic.minInt++
			digits++
		case r == f.Digit:
			digits++
		default:
			return pic, errorf(CodePicture, "%q: unexpected character %q in picture", str, r)
		}
	}
	for _, r := range frac {
		switch {
		case f.isDigit(r):
			pic.minFrac++
			pic.maxFrac++
		case r == f.Digit:
			pic.maxFrac++
		default:
			return pic, errorf(CodePicture, "%q: unexpected character %q in fraction", str, r)
		}
	}
	if n := len(pic.groups); n > 0 {
		pic.regular = pic.groups[0]
		for i := range pic.groups {
			if pic.groups[i] != pic.regular*(i+1) {
				pic.regular = 0
				break
			}
		}
	}
	if pic.minInt == 0 && pic.maxFrac == 0 {
		pic.minInt = 1
	}
	return pic, nil
}

// FormatNumber formats value according to a picture string and the
// properties of f.
func (f *DecimalFormat) FormatNumber(value float64, str string) (string, error) {
	var (
		d   apd.Decimal
		nan = math.IsNaN(value)
		inf = math.IsInf(value, 0)
	)
	if !nan && !inf {
		d.SetFloat64(value)
	}
	return f.formatDecimal(&d, value < 0, nan, inf, str)
}

func (f *DecimalFormat) formatDecimal(value *apd.Decimal, neg, nan, inf bool, str string) (string, error) {
	positive, negative, ok := strings.Cut(str, string(f.PatternSeparator))
	if ok && strings.ContainsRune(negative, f.PatternSeparator) {
		return "", errorf(CodePicture, "%q: more than one pattern separator", str)
	}
	pos, err := f.parsePicture(positive)
	if err != nil {
		return "", err
	}
	if nan {
		return f.NaN, nil
	}
	pic := pos
	if neg {
		if ok {
			if pic, err = f.parsePicture(negative); err != nil {
				return "", err
			}
		} else {
			pic.prefix = string(f.MinusSign) + pic.prefix
		}
	}
	if inf {
		return pic.prefix + f.Infinity + pic.suffix, nil
	}
	var (
		x   apd.Decimal
		ctx = *decimalContext
	)
	x.Abs(value)
	if pic.scale > 0 {
		x.Exponent += int32(pic.scale)
	}
	ctx.Rounding = apd.RoundHalfEven
	if _, err := ctx.Quantize(&x, &x, -int32(pic.maxFrac)); err != nil {
		return "", errorf(CodeFormat, "%s", err)
	}
	text := x.Text('f')
	integer, frac, _ := strings.Cut(text, ".")
	frac = strings.TrimRight(frac, "0")
	for len(frac) < pic.minFrac {
		frac += "0"
	}
	integer = strings.TrimLeft(integer, "0")
	for len(integer) < pic.minInt {
		integer = "0" + integer
	}
	if integer == "" && frac == "" {
		integer = "0"
	}
	var out strings.Builder
	out.WriteString(pic.prefix)
	out.WriteString(f.group(f.digits(integer), pic))
	if frac != "" {
		out.WriteRune(f.DecimalSeparator)
		out.WriteString(f.digits(frac))
	}
	out.WriteString(pic.suffix)
	return out.String(), nil
}

func (f *DecimalFormat) digits(str string) string {
	if f.ZeroDigit == '0' {
		return str
	}
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return f.ZeroDigit + (r - '0')
		}
		return r
	}, str)
}

func (f *DecimalFormat) group(str string, pic picture) string {
	if len(pic.groups) == 0 {
		return str
	}
	var (
		chars = []rune(str)
		out   []rune
	)
	for i := len(chars) - 1; i >= 0; i-- {
		n := len(chars) - 1 - i
		if n > 0 && groupAt(n, pic) {
			out = append(out, f.GroupingSeparator)
		}
		out = append(out, chars[i])
	}
	slices.Reverse(out)
	return string(out)
}

func groupAt(n int, pic picture) bool {
	if pic.regular > 0 {
		return n%pic.regular == 0
	}
	return slices.Contains(pic.groups, n)
}

// formatInteger formats value according to the primary format token of
// picture: a decimal digit pattern, a, A, i or I. Unknown tokens fall back
// to the pattern 1.
func formatInteger(value int64, picture string) (string, error) {
	token, _, _ := strings.Cut(picture, ";")
	if token == "" {
		return "", errorf(CodePicture, "empty picture")
	}
	switch token {
	case "a", "A":
		if value <= 0 {
			return strconv.FormatInt(value, 10), nil
		}
		str := alphabetic(value)
		if token == "A" {
			str = strings.ToUpper(str)
		}
		return str, nil
	case "i", "I":
		if value <= 0 || value >= 4000 {
			return strconv.FormatInt(value, 10), nil
		}
		str := roman(value)
		if token == "i" {
			str = strings.ToLower(str)
		}
		return str, nil
	}
	if !strings.ContainsFunc(token, func(r rune) bool { return r == '#' || unicode.IsDigit(r) }) {
		token = "1"
	}
	return formatDigits(value, token)
}

func formatDigits(value int64, picture string) (string, error) {
	var (
		digits = []byte(strings.TrimPrefix(strconv.FormatInt(value, 10), "-"))
		chars  = []rune(picture)
		out    []rune
		ptr    int
		sep    rune
		last   = -1
		every  int
	)
	slices.Reverse(digits)
	mandatory := make([]bool, len(chars))
	for i, seen := 0, false; i < len(chars); i++ {
		mandatory[i] = seen
		if unicode.IsDigit(chars[i]) {
			seen = true
		}
	}
	regular := true
	for i := len(chars) - 1; i >= 0; i-- {
		switch c := chars[i]; {
		case c == '#':
			if ptr < len(digits) {
				out = append(out, rune(digits[ptr]))
			}
			ptr++
		case unicode.IsDigit(c):
			zero := c - rune(digitValue(c))
			if ptr < len(digits) {
				out = append(out, zero+rune(digits[ptr]-'0'))
			} else {
				out = append(out, zero)
			}
			ptr++
		case unicode.IsLetter(c):
			return "", errorf(CodePicture, "%q: unexpected character %q in picture", picture, c)
		default:
			if ptr == 0 || i == 0 {
				return "", errorf(CodePicture, "%q: grouping separator at the edge of the picture", picture)
			}
			if !unicode.IsDigit(chars[i-1]) && chars[i-1] != '#' {
				return "", errorf(CodePicture, "%q: consecutive grouping separators", picture)
			}
			if sep != 0 && c != sep {
				regular = false
			}
			if last < 0 {
				every = ptr
			} else if ptr-last != every {
				regular = false
			}
			last, sep = ptr, c
			if ptr < len(digits) || mandatory[i] {
				out = append(out, c)
			}
		}
	}
	for ; ptr < len(digits); ptr++ {
		if regular && every > 0 && ptr%every == 0 {
			out = append(out, sep)
		}
		out = append(out, rune(digits[ptr]))
	}
	if value < 0 {
		out = append(out, '-')
	}
	slices.Reverse(out)
	return string(out), nil
}

// digitValue returns the value of a decimal digit of any unicode digit
// family.
func digitValue(r rune) int {
	for i := 1; i < 10; i++ {
		if !unicode.IsDigit(r - rune(i)) {
			return i - 1
		}
	}
	return 9
}

func alphabetic(value int64) string {
	var buf []byte
	for value > 0 {
		value--
		buf = append(buf, byte('a'+value%26))
		value /= 26
	}
	slices.Reverse(buf)
	return string(buf)
}

var romans = []struct {
	value  int64
	symbol string
}{
	{1000, "M"},
	{900, "CM"},
	{500, "D"},
	{400, "CD"},
	{100, "C"},
	{90, "XC"},
	{50, "L"},
	{40, "XL"},
	{10, "X"},
	{9, "IX"},
	{5, "V"},
	{4, "IV"},
	{1, "I"},
}

func roman(value int64) string {
	var str strings.Builder
	for _, r := range romans {
		for value >= r.value {
			str.WriteString(r.symbol)
			value -= r.value
		}
	}
	return str.String()
}
