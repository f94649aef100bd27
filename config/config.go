package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/midbel/xquery/schema"
	"github.com/midbel/xquery/xquery"
	"gopkg.in/yaml.v3"
)

var ErrConfig = errors.New("invalid configuration")

// Config describes an evaluation session. It is usually loaded from a YAML
// file and converted into evaluator options.
type Config struct {
	Namespaces map[string]string `yaml:"namespaces"`
	Variables  map[string]any    `yaml:"variables"`
	Modules    Modules           `yaml:"modules"`
	Collation  string            `yaml:"collation"`
	BaseURI    string            `yaml:"base-uri"`
	RangeLimit int64             `yaml:"range-limit"`
	TypeCache  int               `yaml:"type-cache"`
	Trace      string            `yaml:"trace"`
	Log        string            `yaml:"log"`
}

type Modules struct {
	Dirs     []string `yaml:"dirs"`
	Cache    int      `yaml:"cache"`
	Encoding string   `yaml:"encoding"`
}

func Default() *Config {
	return &Config{
		RangeLimit: xquery.DefaultRangeLimit,
		TypeCache:  xquery.DefaultTypeCache,
	}
}

// Load reads the configuration stored in file. Relative module directories
// are resolved against the directory of the file.
func Load(file string) (*Config, error) {
	r, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	cfg, err := Parse(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}
	dir := filepath.Dir(file)
	for i, d := range cfg.Modules.Dirs {
		if !filepath.IsAbs(d) {
			cfg.Modules.Dirs[i] = filepath.Join(dir, d)
		}
	}
	return cfg, nil
}

func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %s", ErrConfig, err)
	}
	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	if c.RangeLimit < 0 {
		return fmt.Errorf("%w: range-limit should be positive", ErrConfig)
	}
	if c.TypeCache < 0 || c.Modules.Cache < 0 {
		return fmt.Errorf("%w: cache size should be positive", ErrConfig)
	}
	if c.Collation != "" {
		if _, err := xquery.ParseCollation(c.Collation); err != nil {
			return fmt.Errorf("%w: %s", ErrConfig, err)
		}
	}
	switch c.Trace {
	case "", "none", "stdout", "stderr":
	default:
		return fmt.Errorf("%w: %s: unknown trace output", ErrConfig, c.Trace)
	}
	if _, err := parseLevel(c.Log); err != nil {
		return err
	}
	return nil
}

// Options converts the configuration into evaluator options. The module
// cache created for the module directories is shared by every evaluator
// built with the returned options.
func (c *Config) Options() ([]xquery.Option, error) {
	var options []xquery.Option
	for _, p := range sortedKeys(c.Namespaces) {
		options = append(options, xquery.WithNamespace(p, c.Namespaces[p]))
	}
	for _, n := range sortedKeys(c.Variables) {
		seq, err := convertValue(c.Variables[n])
		if err != nil {
			return nil, fmt.Errorf("variable %s: %w", n, err)
		}
		options = append(options, xquery.WithVariable(n, seq))
	}
	if c.RangeLimit > 0 {
		options = append(options, xquery.WithRangeLimit(c.RangeLimit))
	}
	if c.TypeCache > 0 {
		options = append(options, xquery.WithTypeCache(c.TypeCache))
	}
	if c.Collation != "" {
		options = append(options, xquery.WithCollation(c.Collation))
	}
	if c.BaseURI != "" {
		options = append(options, xquery.WithBaseURI(c.BaseURI))
	}
	logger, err := c.Logger()
	if err != nil {
		return nil, err
	}
	options = append(options, xquery.WithLogger(logger))

	var loader xquery.Loader = xquery.FileLoader{
		Dirs: slices.Clone(c.Modules.Dirs),
	}
	if c.Modules.Cache > 0 {
		loader = xquery.NewCachedLoader(loader, c.Modules.Cache)
	}
	cache := xquery.NewModuleCache(loader)
	cache.Encoding = c.Modules.Encoding
	cache.SetLogger(logger)

	options = append(options, xquery.WithLoader(loader), xquery.WithModuleCache(cache))
	return options, nil
}

// Tracer returns the tracer to give to the compiler.
func (c *Config) Tracer() xquery.Tracer {
	switch c.Trace {
	case "stdout":
		return xquery.TraceStdout()
	case "stderr":
		return xquery.TraceStderr()
	default:
		return nil
	}
}

// Logger returns a logger writing on stderr at the configured level. When no
// level is set, nothing is logged.
func (c *Config) Logger() (*slog.Logger, error) {
	if c.Log == "" {
		return slog.New(slog.NewTextHandler(io.Discard, nil)), nil
	}
	level, err := parseLevel(c.Log)
	if err != nil {
		return nil, err
	}
	opts := slog.HandlerOptions{
		Level: level,
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &opts)), nil
}

func parseLevel(str string) (slog.Level, error) {
	var level slog.Level
	if str == "" {
		return level, nil
	}
	if err := level.UnmarshalText([]byte(str)); err != nil {
		return level, fmt.Errorf("%w: %s: unknown log level", ErrConfig, str)
	}
	return level, nil
}

func convertValue(value any) (xquery.Sequence, error) {
	switch v := value.(type) {
	case nil:
		return xquery.NewSequence(), nil
	case []any:
		var seq xquery.Sequence
		for i := range v {
			if _, ok := v[i].([]any); ok {
				member, err := convertArray(v[i].([]any))
				if err != nil {
					return nil, err
				}
				seq.Append(member)
				continue
			}
			other, err := convertValue(v[i])
			if err != nil {
				return nil, err
			}
			seq.Concat(other)
		}
		return seq, nil
	case map[string]any:
		m := xquery.NewMap()
		for _, k := range sortedKeys(v) {
			seq, err := convertValue(v[k])
			if err != nil {
				return nil, err
			}
			m = m.Put(xquery.NewAtomic(k, schema.String), seq)
		}
		return xquery.Singleton(m), nil
	case string, bool, int, int64, float64:
		return xquery.Singleton(v), nil
	default:
		return nil, fmt.Errorf("%w: %T: unsupported value", ErrConfig, value)
	}
}

func convertArray(list []any) (*xquery.ArrayItem, error) {
	var members []xquery.Sequence
	for i := range list {
		seq, err := convertValue(list[i])
		if err != nil {
			return nil, err
		}
		members = append(members, seq)
	}
	return xquery.NewArray(members...), nil
}

func sortedKeys[T any](set map[string]T) []string {
	var keys []string
	for k := range set {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, strings.Compare)
	return keys
}
