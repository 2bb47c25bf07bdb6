package pngpal

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/bodgit/pngpal/indexed"
	"go.uber.org/zap"
)

// errQuit ends Run without an error
var errQuit = errors.New("quit")

// An inputError is a mistake in a command line, reported to the user.
type inputError string

func (e inputError) Error() string {
	return string(e)
}

type command struct {
	usage string
	help  string
	nargs []int
	run   func(s *Session, args []string) error
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"info":    {"info", "show image dimensions and table sizes", []int{0}, (*Session).info},
		"palette": {"palette", "list palette entries", []int{0}, (*Session).palette},
		"get":     {"get X Y", "show the palette index of a pixel", []int{2}, (*Session).get},
		"set":     {"set X Y I", "set a pixel to palette index I", []int{3}, (*Session).set},
		"color":   {"color I #RRGGBB", "change palette entry I", []int{2}, (*Session).color},
		"push":    {"push #RRGGBB", "append a palette entry", []int{1}, (*Session).push},
		"alpha":   {"alpha I A", "set the alpha of palette entry I", []int{2}, (*Session).alpha},
		"swap":    {"swap I J", "swap palette entries I and J", []int{2}, (*Session).swap},
		"save":    {"save [PATH]", "save the image", []int{0, 1}, (*Session).save},
		"render":  {"render PATH", "write the rendered image as a true-color PNG", []int{1}, (*Session).render},
		"help":    {"help", "list commands", []int{0}, (*Session).help},
		"quit":    {"quit", "end the session", []int{0}, func(*Session, []string) error { return errQuit }},
	}
}

// Session applies editing commands to an Editor's image, one per line.
type Session struct {
	editor *Editor
	out    io.Writer
}

// NewSession returns a session editing e that writes its replies to out.
func NewSession(e *Editor, out io.Writer) *Session {
	return &Session{
		editor: e,
		out:    out,
	}
}

// Run executes each line read from r until r is exhausted or a quit
// command is read.
func (s *Session) Run(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if err := s.Exec(scanner.Text()); err != nil {
			if err == errQuit {
				return nil
			}
			return err
		}
	}
	return scanner.Err()
}

// Exec executes a single command line. Mistakes in the line and failed
// saves are reported on the session output and nil is returned. An error is
// returned only when the image rejected an operation the session had
// already validated, or for quit.
func (s *Session) Exec(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
		return nil
	}

	name, args := fields[0], fields[1:]
	cmd, ok := commands[name]
	if !ok {
		s.printf("unknown command %q, try help\n", name)
		return nil
	}

	if !acceptsArgs(cmd.nargs, len(args)) {
		s.printf("usage: %s\n", cmd.usage)
		return nil
	}

	err := cmd.run(s, args)
	switch {
	case err == nil, err == errQuit:
		return err
	case indexed.IsContractViolation(err):
		s.editor.logger.Error("image rejected command", zap.String("command", line), zap.Error(err))
		return fmt.Errorf("%s: %w", name, err)
	default:
		s.printf("error: %v\n", err)
		return nil
	}
}

func acceptsArgs(nargs []int, n int) bool {
	for _, v := range nargs {
		if v == n {
			return true
		}
	}
	return false
}

func (s *Session) printf(format string, a ...interface{}) {
	fmt.Fprintf(s.out, format, a...)
}

func (s *Session) index(arg string) (uint8, error) {
	v, err := strconv.ParseUint(arg, 10, 8)
	if err != nil {
		return 0, inputError(fmt.Sprintf("invalid palette index %q", arg))
	}
	if n := s.editor.image.PaletteLen(); int(v) >= n {
		return 0, inputError(fmt.Sprintf("palette index %d out of range, palette has %d colors", v, n))
	}
	return uint8(v), nil
}

func (s *Session) point(xs, ys string) (int, int, error) {
	m := s.editor.image
	x, errx := strconv.Atoi(xs)
	y, erry := strconv.Atoi(ys)
	if errx != nil || erry != nil {
		return 0, 0, inputError(fmt.Sprintf("invalid coordinates %s %s", xs, ys))
	}
	if x < 0 || y < 0 || x >= m.Width() || y >= m.Height() {
		return 0, 0, inputError(fmt.Sprintf("(%d, %d) is outside the %dx%d image", x, y, m.Width(), m.Height()))
	}
	return x, y, nil
}

func (s *Session) rgb(arg string) (indexed.RGB, error) {
	c, err := indexed.ParseRGB(arg)
	if err != nil {
		return indexed.RGB{}, inputError(err.Error())
	}
	return c, nil
}

func (s *Session) info(args []string) error {
	m := s.editor.image
	s.printf("%s: %dx%d, %d colors, %d transparency entries\n",
		s.editor.path, m.Width(), m.Height(), m.PaletteLen(), len(m.Transparency()))
	return nil
}

func (s *Session) palette(args []string) error {
	m := s.editor.image
	for i, c := range m.Palette() {
		s.printf("%3d %s %3d\n", i, c, m.Alpha(uint8(i)))
	}
	return nil
}

func (s *Session) get(args []string) error {
	x, y, err := s.point(args[0], args[1])
	if err != nil {
		return err
	}
	v, err := s.editor.image.Index(x, y)
	if err != nil {
		return err
	}
	s.printf("%d\n", v)
	return nil
}

func (s *Session) set(args []string) error {
	x, y, err := s.point(args[0], args[1])
	if err != nil {
		return err
	}
	i, err := s.index(args[2])
	if err != nil {
		return err
	}
	return s.editor.image.SetPixel(x, y, i)
}

func (s *Session) color(args []string) error {
	i, err := s.index(args[0])
	if err != nil {
		return err
	}
	c, err := s.rgb(args[1])
	if err != nil {
		return err
	}
	return s.editor.image.SetColor(i, c)
}

func (s *Session) push(args []string) error {
	c, err := s.rgb(args[0])
	if err != nil {
		return err
	}
	if s.editor.image.PaletteLen() == indexed.MaxColors {
		return inputError(fmt.Sprintf("palette already has %d colors", indexed.MaxColors))
	}
	i, err := s.editor.image.PushColor(c)
	if err != nil {
		return err
	}
	s.printf("%d\n", i)
	return nil
}

func (s *Session) alpha(args []string) error {
	i, err := s.index(args[0])
	if err != nil {
		return err
	}
	a, err := strconv.ParseUint(args[1], 10, 8)
	if err != nil {
		return inputError(fmt.Sprintf("invalid alpha %q, should be 0 to 255", args[1]))
	}
	return s.editor.image.SetTransparency(i, uint8(a))
}

func (s *Session) swap(args []string) error {
	i, err := s.index(args[0])
	if err != nil {
		return err
	}
	j, err := s.index(args[1])
	if err != nil {
		return err
	}
	return s.editor.image.SwapColors(i, j)
}

func (s *Session) save(args []string) error {
	var path string
	if len(args) > 0 {
		path = args[0]
	}
	if path == "" && s.editor.path == "" {
		return inputError("no file to save to, use save PATH")
	}
	return s.editor.Save(path)
}

func (s *Session) render(args []string) error {
	return s.editor.Render(args[0])
}

func (s *Session) help(args []string) error {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		s.printf("%-16s %s\n", commands[name].usage, commands[name].help)
	}
	return nil
}
