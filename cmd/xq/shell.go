package main

import (
	"bytes"
	"errors"
	"fmt"
	"slices"
	"strings"

	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/midbel/cli"
	"github.com/midbel/xquery/xml"
	"github.com/midbel/xquery/xquery"
)

type ShellCmd struct {
	SessionOptions
}

var shellCmd = cli.Command{
	Name:    "shell",
	Summary: "evaluate queries interactively",
	Handler: &ShellCmd{},
}

func (s ShellCmd) Run(args []string) error {
	set := cli.NewFlagSet("shell")
	set.StringVar(&s.Config, "config", "", "session configuration")
	set.Func("var", "bind external variable (name=value)", s.AddVariable)
	if err := set.Parse(args); err != nil {
		return err
	}
	cfg, err := s.Load()
	if err != nil {
		return err
	}
	options, err := s.Options(cfg)
	if err != nil {
		return err
	}
	sess := session{
		options: options,
	}
	if file := set.Arg(0); file != "" {
		if _, err := sess.execute(":load " + file); err != nil {
			return err
		}
	}
	_, err = tea.NewProgram(createShell(&sess)).Run()
	return err
}

var (
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	infoStyle   = lipgloss.NewStyle().Faint(true)
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
)

const shellHelp = `:load <file>   set the context document
:unload        remove the context document
:metrics       print dispatch counters since the last query
:quit          leave the shell`

// session evaluates the lines entered in the shell. Every query gets its own
// evaluator built from the same options and so shares their module cache.
type session struct {
	options []xquery.Option
	doc     xml.Node
	file    string
	metrics map[string]uint64
	last    map[string]uint64
}

var errQuit = errors.New("quit")

func (s *session) execute(line string) (string, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, ":") {
		return s.query(line)
	}
	cmd, arg, _ := strings.Cut(line[1:], " ")
	switch arg = strings.TrimSpace(arg); cmd {
	case "quit", "q":
		return "", errQuit
	case "help", "h":
		return shellHelp, nil
	case "load":
		doc, err := parseDocument(arg)
		if err != nil {
			return "", err
		}
		s.doc, s.file = doc, arg
		return fmt.Sprintf("context document: %s", arg), nil
	case "unload":
		s.doc, s.file = nil, ""
		return "no context document", nil
	case "metrics":
		return s.writeMetrics(), nil
	default:
		return "", fmt.Errorf("%s: unknown shell command", cmd)
	}
}

func (s *session) query(query string) (string, error) {
	var (
		eval   = xquery.New(s.options...)
		before = xquery.Metrics()
	)
	results, err := eval.Find(query, s.doc)
	s.last = xquery.MetricsDelta(before, xquery.Metrics())

	var buf bytes.Buffer
	writeDiagnostics(&buf, eval.Diagnostics())
	if err != nil {
		if buf.Len() > 0 {
			return "", fmt.Errorf("%s", strings.TrimSpace(buf.String()))
		}
		return "", err
	}
	writeSequence(&buf, results, xml.Serializer{MaxDepth: 1}, false)
	return strings.TrimRight(buf.String(), "\n"), nil
}

func (s *session) writeMetrics() string {
	var (
		keys []string
		buf  bytes.Buffer
	)
	for k := range s.last {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		fmt.Fprintf(&buf, "%s: %d", k, s.last[k])
		fmt.Fprintln(&buf)
	}
	if buf.Len() == 0 {
		return "no metrics"
	}
	return strings.TrimRight(buf.String(), "\n")
}

type shell struct {
	input   textinput.Model
	session *session
	history []string
	index   int
}

func createShell(sess *session) shell {
	input := textinput.New()
	input.Prompt = promptStyle.Render("xq> ")
	input.Placeholder = "enter a query or :help"
	input.Focus()
	return shell{
		input:   input,
		session: sess,
	}
}

func (s shell) Init() tea.Cmd {
	return textinput.Blink
}

func (s shell) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyPressMsg); ok {
		switch msg.String() {
		case "ctrl+c", "ctrl+d":
			return s, tea.Quit
		case "up":
			if s.index > 0 {
				s.index--
				s.input.SetValue(s.history[s.index])
				s.input.CursorEnd()
			}
			return s, nil
		case "down":
			if s.index < len(s.history)-1 {
				s.index++
				s.input.SetValue(s.history[s.index])
				s.input.CursorEnd()
			} else {
				s.index = len(s.history)
				s.input.Reset()
			}
			return s, nil
		case "enter":
			return s.submit()
		}
	}
	var cmd tea.Cmd
	s.input, cmd = s.input.Update(msg)
	return s, cmd
}

func (s shell) submit() (tea.Model, tea.Cmd) {
	line := strings.TrimSpace(s.input.Value())
	s.input.Reset()
	if line == "" {
		return s, nil
	}
	s.history = append(s.history, line)
	s.index = len(s.history)

	echo := tea.Println(infoStyle.Render("xq> " + line))
	out, err := s.session.execute(line)
	if errors.Is(err, errQuit) {
		return s, tea.Quit
	}
	if err != nil {
		return s, tea.Sequence(echo, tea.Println(errorStyle.Render(err.Error())))
	}
	return s, tea.Sequence(echo, tea.Println(out))
}

func (s shell) View() tea.View {
	return tea.NewView(s.input.View())
}
