package xquery

import (
	"errors"
	"fmt"
)

var (
	ErrType        = errors.New("invalid type")
	ErrCast        = errors.New("value can not be cast to target type")
	ErrIndex       = errors.New("index out of range")
	ErrRange       = errors.New("value out of range")
	ErrUndefined   = errors.New("undefined")
	ErrEmpty       = errors.New("sequence is empty")
	ErrZero        = errors.New("division by zero")
	ErrArgument    = errors.New("invalid number of argument(s)")
	ErrSyntax      = errors.New("invalid syntax")
	ErrModule      = errors.New("module error")
	ErrCircular    = errors.New("circular dependency")
	ErrUnsupported = errors.New("unsupported expression")
	ErrUser        = errors.New("user error")
)

const (
	CodeGenericError   = "XPST0003"
	CodeUndefinedName  = "XPST0008"
	CodeUndefinedFunc  = "XPST0017"
	CodeUnknownType    = "XPST0051"
	CodeAbstractType   = "XPST0080"
	CodeUnknownPrefix  = "XPST0081"
	CodeType           = "XPTY0004"
	CodeNotNode        = "XPTY0019"
	CodeTreat          = "XPDY0050"
	CodeDynamicContext = "XPDY0002"
	CodeCast           = "FORG0001"
	CodeBoolean        = "FORG0006"
	CodeDivZero        = "FOAR0001"
	CodeOverflow       = "FOAR0002"
	CodeArrayIndex     = "FOAY0001"
	CodeDuplicateKey   = "FOJS0003"
	CodeZeroOrOne      = "FORG0003"
	CodeOneOrMore      = "FORG0004"
	CodeExactlyOne     = "FORG0005"
	CodeStringValue    = "FOTY0014"
	CodeRegex          = "FORX0002"
	CodeRegexEmpty     = "FORX0003"
	CodeAtomize        = "FOTY0013"
	CodeUser           = "FOER0000"
	CodeDuplicateDecl  = "XQST0049"
	CodeDuplicateFunc  = "XQST0034"
	CodeDuplicateNS    = "XQST0047"
	CodeModuleNS       = "XQST0048"
	CodeModuleLoad     = "XQST0059"
	CodeCircular       = "XQDY0054"
	CodeFormat         = "FODF1310"
	CodePicture        = "FODF1280"
	CodeCollation      = "FOCH0002"
	CodeDefaultColl    = "XQST0038"
)

var codeErrors = map[string]error{
	CodeGenericError:   ErrSyntax,
	CodeUndefinedName:  ErrUndefined,
	CodeUndefinedFunc:  ErrUndefined,
	CodeUnknownType:    ErrType,
	CodeAbstractType:   ErrType,
	CodeUnknownPrefix:  ErrUndefined,
	CodeType:           ErrType,
	CodeNotNode:        ErrType,
	CodeTreat:          ErrType,
	CodeDynamicContext: ErrUndefined,
	CodeCast:           ErrCast,
	CodeBoolean:        ErrType,
	CodeDivZero:        ErrZero,
	CodeOverflow:       ErrRange,
	CodeArrayIndex:     ErrIndex,
	CodeDuplicateKey:   ErrArgument,
	CodeZeroOrOne:      ErrType,
	CodeOneOrMore:      ErrEmpty,
	CodeExactlyOne:     ErrType,
	CodeStringValue:    ErrType,
	CodeRegex:          ErrArgument,
	CodeRegexEmpty:     ErrArgument,
	CodeAtomize:        ErrType,
	CodeUser:           ErrUser,
	CodeDuplicateDecl:  ErrModule,
	CodeDuplicateFunc:  ErrModule,
	CodeDuplicateNS:    ErrModule,
	CodeModuleNS:       ErrModule,
	CodeModuleLoad:     ErrModule,
	CodeCircular:       ErrCircular,
	CodeFormat:         ErrArgument,
	CodePicture:        ErrArgument,
	CodeCollation:      ErrArgument,
	CodeDefaultColl:    ErrUndefined,
}

// Error is a dynamic or static error raised while evaluating an expression.
// It unwraps to one of the package sentinel errors.
type Error struct {
	Code    string
	Message string
	Node    Expr

	cause    error
	recorded bool
}

func errorf(code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		cause:   codeErrors[code],
	}
}

func errorWrap(code string, err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{
		Code:    code,
		Message: err.Error(),
		cause:   err,
	}
}

func (e *Error) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() []error {
	var list []error
	if e.cause != nil {
		list = append(list, e.cause)
	}
	if c, ok := codeErrors[e.Code]; ok && c != e.cause {
		list = append(list, c)
	}
	return list
}

func unsupported(format string, args ...any) *Error {
	return &Error{
		Message: fmt.Sprintf(format, args...),
		cause:   ErrUnsupported,
	}
}

// Diagnostic is an error recorded by the evaluator at the point where it was
// detected.
type Diagnostic struct {
	Code    string
	Message string
	Node    Expr
	Fatal   bool
}

func (d Diagnostic) String() string {
	if d.Code == "" {
		return d.Message
	}
	return fmt.Sprintf("[%s] %s", d.Code, d.Message)
}

type SyntaxError struct {
	Code  string
	Expr  string
	Cause string
	Position
}

func syntaxError(expr, cause string, pos Position) error {
	return SyntaxError{
		Code:     CodeGenericError,
		Expr:     expr,
		Cause:    cause,
		Position: pos,
	}
}

func (e SyntaxError) Error() string {
	return fmt.Sprintf("[%s] %d:%d: %s: %s", e.Code, e.Line, e.Column, e.Expr, e.Cause)
}

func (e SyntaxError) Unwrap() error {
	return ErrSyntax
}
