package main

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/midbel/xquery/config"
	"github.com/midbel/xquery/xml"
	"github.com/midbel/xquery/xquery"
)

type SessionOptions struct {
	Config    string
	Variables []string
}

func (s *SessionOptions) Load() (*config.Config, error) {
	if s.Config == "" {
		return config.Default(), nil
	}
	return config.Load(s.Config)
}

// Options returns the evaluator options of the session. Variables given on
// the command line as name=value are bound as untyped atomic values.
func (s *SessionOptions) Options(cfg *config.Config) ([]xquery.Option, error) {
	options, err := cfg.Options()
	if err != nil {
		return nil, err
	}
	for _, v := range s.Variables {
		name, value, ok := strings.Cut(v, "=")
		if !ok {
			return nil, fmt.Errorf("%s: variable should be given as name=value", v)
		}
		options = append(options, xquery.WithVariable(name, value))
	}
	return options, nil
}

func (s *SessionOptions) AddVariable(str string) error {
	s.Variables = append(s.Variables, str)
	return nil
}

// parseDocument returns the context node for a query. No context node is
// given when file is empty.
func parseDocument(file string) (xml.Node, error) {
	if file == "" {
		return nil, nil
	}
	r, err := openFile(file)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	p := xml.NewParser(r)
	p.TrimSpace = true
	doc, err := p.Parse()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}
	doc.BaseURI = file
	return doc, nil
}

func compileQuery(query string, fromFile bool, tracer xquery.Tracer) (*xquery.Module, error) {
	if !fromFile {
		cp := xquery.NewCompiler(strings.NewReader(query))
		if tracer != nil {
			cp.Tracer = tracer
		}
		return cp.Compile()
	}
	r, err := openFile(query)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	cp := xquery.NewCompiler(r)
	if tracer != nil {
		cp.Tracer = tracer
	}
	mod, err := cp.Compile()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", query, err)
	}
	mod.Location = query
	return mod, nil
}

func openFile(file string) (io.ReadCloser, error) {
	u, err := url.Parse(file)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "http", "https":
		req, err := http.NewRequest(http.MethodGet, u.String(), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("accept", "text/xml")
		res, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, err
		}
		if res.StatusCode != http.StatusOK {
			res.Body.Close()
			return nil, fmt.Errorf("fail to retrieve remote file")
		}
		return res.Body, nil
	default:
		return os.Open(file)
	}
}

func writeSequence(w io.Writer, seq xquery.Sequence, ser xml.Serializer, text bool) {
	ser.OmitDeclaration = true
	for i := range seq {
		n := seq[i].Node()
		switch {
		case n == nil:
			fmt.Fprintln(w, xquery.NewSequence(seq[i]).String())
		case text:
			fmt.Fprintln(w, n.Value())
		default:
			ser.Serialize(w, n)
			fmt.Fprintln(w)
		}
	}
}

func writeDiagnostics(w io.Writer, list []xquery.Diagnostic) {
	for _, d := range list {
		level := "warning"
		if d.Fatal {
			level = "error"
		}
		fmt.Fprintf(w, "%s: %s", level, d)
		fmt.Fprintln(w)
	}
}
