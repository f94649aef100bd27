package schema

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/cockroachdb/apd/v3"
)

var (
	reDecimal  = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)$`)
	reInteger  = regexp.MustCompile(`^[+-]?\d+$`)
	reDouble   = regexp.MustCompile(`^([+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?|[+-]?INF|NaN)$`)
	reLanguage = regexp.MustCompile(`^[a-zA-Z]{1,8}(-[a-zA-Z0-9]{1,8})*$`)
)

// NoZone is the location of temporal values parsed without a timezone.
var NoZone = time.FixedZone("", 0)

// Validate checks str against the lexical space and the facets of t.
func Validate(str string, t *Type) error {
	if t.Abstract {
		return fmt.Errorf("%s: abstract type: %w", t, ErrCast)
	}
	str = normalizeSpace(str, t.space)
	for x := t; x != nil; x = x.Base {
		if x.lexical == nil {
			continue
		}
		if err := x.lexical(str); err != nil {
			return fmt.Errorf("%q is not a valid %s: %w", str, t, err)
		}
	}
	if t.min == nil && t.max == nil {
		return nil
	}
	d, _, err := apd.NewFromString(str)
	if err != nil {
		return fmt.Errorf("%q is not a valid %s: %w", str, t, ErrInvalid)
	}
	return checkBounds(d, t)
}

func checkBounds(d *apd.Decimal, t *Type) error {
	for x := t; x != nil; x = x.Base {
		if x.min != nil && d.Cmp(x.min) < 0 {
			return fmt.Errorf("%s below minimum of %s: %w", d.Text('f'), t, ErrRange)
		}
		if x.max != nil && d.Cmp(x.max) > 0 {
			return fmt.Errorf("%s above maximum of %s: %w", d.Text('f'), t, ErrRange)
		}
	}
	return nil
}

func normalizeSpace(str string, ws whitespace) string {
	switch ws {
	case wsReplace:
		return strings.Map(func(r rune) rune {
			if r == '\t' || r == '\n' || r == '\r' {
				return ' '
			}
			return r
		}, str)
	case wsCollapse:
		return strings.Join(strings.Fields(str), " ")
	default:
		return str
	}
}

func checkBoolean(str string) error {
	switch str {
	case "true", "false", "1", "0":
		return nil
	default:
		return ErrInvalid
	}
}

func checkDecimal(str string) error {
	if !reDecimal.MatchString(str) {
		return ErrInvalid
	}
	return nil
}

func checkInteger(str string) error {
	if !reInteger.MatchString(str) {
		return ErrInvalid
	}
	return nil
}

func checkDouble(str string) error {
	if !reDouble.MatchString(str) {
		return ErrInvalid
	}
	return nil
}

func checkDateTime(str string) error {
	_, err := ParseDateTime(str)
	return err
}

func checkDate(str string) error {
	_, err := ParseDate(str)
	return err
}

func checkTime(str string) error {
	_, err := ParseTime(str)
	return err
}

func checkLanguage(str string) error {
	if !reLanguage.MatchString(str) {
		return ErrInvalid
	}
	return nil
}

func checkNmtoken(str string) error {
	if str == "" {
		return ErrInvalid
	}
	for _, r := range str {
		if !isNameChar(r) {
			return ErrInvalid
		}
	}
	return nil
}

func checkName(nocolon bool) func(string) error {
	return func(str string) error {
		if str == "" {
			return ErrInvalid
		}
		for i, r := range str {
			if nocolon && r == ':' {
				return ErrInvalid
			}
			if i == 0 && !isNameStart(r) {
				return ErrInvalid
			}
			if !isNameChar(r) {
				return ErrInvalid
			}
		}
		return nil
	}
}

func isNameStart(r rune) bool {
	return unicode.IsLetter(r) || r == '_' || r == ':'
}

func isNameChar(r rune) bool {
	return isNameStart(r) || unicode.IsDigit(r) || r == '-' || r == '.' || r == 0xB7
}

const (
	layoutDate     = "2006-01-02"
	layoutTime     = "15:04:05.999999999"
	layoutDateTime = layoutDate + "T" + layoutTime
)

func ParseDateTime(str string) (time.Time, error) {
	return parseTemporal(str, layoutDateTime)
}

func ParseDate(str string) (time.Time, error) {
	return parseTemporal(str, layoutDate)
}

func ParseTime(str string) (time.Time, error) {
	return parseTemporal(str, layoutTime)
}

func parseTemporal(str, layout string) (time.Time, error) {
	str = strings.TrimSpace(str)
	body, zone, err := splitZone(str)
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.ParseInLocation(layout, body, zone)
	if err != nil {
		return t, ErrInvalid
	}
	return t, nil
}

func splitZone(str string) (string, *time.Location, error) {
	if body, ok := strings.CutSuffix(str, "Z"); ok {
		return body, time.UTC, nil
	}
	if n := len(str); n > 6 && (str[n-6] == '+' || str[n-6] == '-') && str[n-3] == ':' {
		off, err := time.Parse("-07:00", str[n-6:])
		if err != nil {
			return "", nil, ErrInvalid
		}
		_, secs := off.Zone()
		return str[:n-6], time.FixedZone("", secs), nil
	}
	return str, NoZone, nil
}
