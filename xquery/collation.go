package xquery

import (
	"cmp"
	"net/url"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

const (
	CodepointCollation = "http://www.w3.org/2005/xpath-functions/collation/codepoint"
	UCACollation       = "http://www.w3.org/2013/collation/UCA"
)

type Collation interface {
	URI() string
	Compare(string, string) int
}

type codepointCollation struct{}

func (codepointCollation) URI() string {
	return CodepointCollation
}

func (codepointCollation) Compare(a, b string) int {
	return strings.Compare(a, b)
}

type ucaCollation struct {
	uri      string
	collator *collate.Collator
}

func (c ucaCollation) URI() string {
	return c.uri
}

func (c ucaCollation) Compare(a, b string) int {
	return c.collator.CompareString(a, b)
}

// ParseCollation returns the collation identified by uri. The UCA family
// accepts the lang, strength and numeric parameters.
func ParseCollation(uri string) (Collation, error) {
	if uri == "" || uri == CodepointCollation {
		return codepointCollation{}, nil
	}
	u, err := url.Parse(uri)
	if err != nil {
		return nil, errorf(CodeCollation, "%s: invalid collation uri", uri)
	}
	base := *u
	base.RawQuery = ""
	if base.String() != UCACollation {
		return nil, errorf(CodeCollation, "%s: unsupported collation", uri)
	}
	var (
		query = u.Query()
		tag   = language.Und
		opts  []collate.Option
	)
	if lang := query.Get("lang"); lang != "" {
		tag, err = language.Parse(lang)
		if err != nil {
			return nil, errorf(CodeCollation, "%s: invalid language", lang)
		}
	}
	switch query.Get("strength") {
	case "primary", "1":
		opts = append(opts, collate.Loose)
	case "secondary", "2":
		opts = append(opts, collate.IgnoreCase, collate.IgnoreWidth)
	}
	if query.Get("numeric") == "yes" {
		opts = append(opts, collate.Numeric)
	}
	c := ucaCollation{
		uri:      uri,
		collator: collate.New(tag, opts...),
	}
	return c, nil
}

func (e *Evaluator) getCollation(uri string) (Collation, error) {
	if c, ok := e.collations[uri]; ok {
		return c, nil
	}
	c, err := ParseCollation(uri)
	if err != nil {
		return nil, err
	}
	e.collations[uri] = c
	return c, nil
}

// checkCollation fails when the default collation of the running module is
// not supported.
func (e *Evaluator) checkCollation() error {
	uri := cmp.Or(e.module.Prolog.Collation, e.collation)
	if _, err := e.getCollation(uri); err != nil {
		return errorf(CodeDefaultColl, "%s: unknown default collation", uri)
	}
	return nil
}

// defaultCollation returns the collation declared by the prolog or the one
// given to the evaluator, falling back to the codepoint collation when it
// can not be built.
func (e *Evaluator) defaultCollation() Collation {
	uri := cmp.Or(e.module.Prolog.Collation, e.collation)
	c, err := e.getCollation(uri)
	if err != nil {
		e.logger.Debug("invalid default collation", "uri", uri, "err", err)
		return codepointCollation{}
	}
	return c
}
