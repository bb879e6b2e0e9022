package command

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/BaSui01/agentforum/types"
)

// directiveHead matches "!name" after optional leading blanks.
var directiveHead = regexp.MustCompile(`^[ \t]*!([A-Za-z][A-Za-z0-9_]*)`)

// blankRuns collapses three or more newlines (two or more blank lines).
var blankRuns = regexp.MustCompile(`\n[ \t]*(\n[ \t]*)+\n`)

// Parse extracts directives from a participant's output.
//
// Directive lines are removed from the display text. Unknown names and
// directives with an unterminated quote are left in place.
func Parse(text string) Result {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var (
		res  Result
		kept []string
		line int
	)
	for pos := 0; pos <= len(text); {
		end := lineEnd(text, pos)

		d, next, matched := parseLine(text, pos, end, line)
		switch {
		case !matched:
			kept = append(kept, text[pos:end])
			pos = end + 1
			line++
		case d == nil:
			// unknown name: fail open
			m := directiveHead.FindStringSubmatch(text[pos:end])
			res.Unknown = append(res.Unknown, strings.ToLower(m[1]))
			kept = append(kept, text[pos:end])
			pos = end + 1
			line++
		case d.Kind == KindUnparseable:
			res.Directives = append(res.Directives, *d)
			kept = append(kept, text[pos:end])
			pos = end + 1
			line++
		default:
			res.Directives = append(res.Directives, *d)
			line += strings.Count(text[pos:next], "\n") + 1
			pos = next + 1
		}
	}

	res.DisplayText = tidy(strings.Join(kept, "\n"))
	return res
}

// parseLine inspects the line text[start:end]. matched is false when the line
// is not a directive at all. A nil directive with matched set means the name
// is unknown. next is the offset of the newline (or len) that ends the
// directive, which may lie past end when a quoted argument spans lines.
func parseLine(text string, start, end, line int) (d *Directive, next int, matched bool) {
	m := directiveHead.FindStringSubmatchIndex(text[start:end])
	if m == nil {
		return nil, end, false
	}
	p := start + m[1]
	if p < end && !isArgStart(text[p]) {
		return nil, end, false
	}
	name := strings.ToLower(text[start+m[2] : start+m[3]])
	kind, ok := directiveNames[name]
	if !ok {
		return nil, end, true
	}

	args, p, perr := scanArgs(text, p)
	if perr != nil {
		return &Directive{
			Kind: KindUnparseable,
			Name: name,
			Raw:  strings.TrimSpace(text[start:end]),
			Line: line,
			Err:  perr,
		}, end, true
	}

	d = &Directive{
		Kind: kind,
		Name: name,
		Args: args,
		Raw:  strings.TrimSpace(text[start:p]),
		Line: line,
	}
	validate(d)
	return d, p, true
}

// scanArgs reads quoted and bare arguments starting at p. It returns the
// offset of the newline (or len) that terminates the argument list.
func scanArgs(text string, p int) ([]string, int, *types.Error) {
	var args []string
	for {
		for p < len(text) && (text[p] == ' ' || text[p] == '\t') {
			p++
		}
		if p >= len(text) || text[p] == '\n' {
			return args, p, nil
		}
		if text[p] == '"' {
			arg, np, ok := readQuoted(text, p+1)
			if !ok {
				return nil, p, types.NewError(types.ErrParseError, "unterminated quoted argument")
			}
			args = append(args, arg)
			p = np
			continue
		}
		e := lineEnd(text, p)
		args = append(args, strings.TrimSpace(text[p:e]))
		return args, e, nil
	}
}

// readQuoted reads up to the closing quote. Only \" and \\ are escapes.
// A quoted argument may span lines but never swallows a following line that
// starts with a known directive.
func readQuoted(text string, p int) (string, int, bool) {
	var b strings.Builder
	for p < len(text) {
		c := text[p]
		switch {
		case c == '\\' && p+1 < len(text) && (text[p+1] == '"' || text[p+1] == '\\'):
			b.WriteByte(text[p+1])
			p += 2
		case c == '"':
			return b.String(), p + 1, true
		case c == '\n' && startsDirective(text[p+1:lineEnd(text, p+1)]):
			return "", p, false
		default:
			b.WriteByte(c)
			p++
		}
	}
	return "", p, false
}

// startsDirective reports whether line opens with a known directive name.
func startsDirective(line string) bool {
	m := directiveHead.FindStringSubmatchIndex(line)
	if m == nil {
		return false
	}
	if m[1] < len(line) && !isArgStart(line[m[1]]) {
		return false
	}
	_, ok := Lookup(line[m[2]:m[3]])
	return ok
}

func validate(d *Directive) {
	switch d.Kind {
	case KindMuteSelf:
		return
	case KindSetTemperature:
		if len(d.Args) == 0 || d.Args[0] == "" {
			d.Err = types.NewError(types.ErrMissingArgument, "temperature requires a value")
			return
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(d.Args[0]), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			d.Err = types.Errorf(types.ErrInvalidArgument, "temperature %q is not a decimal", d.Args[0])
			return
		}
		d.Value = v
	default:
		if strings.TrimSpace(d.Arg(0)) == "" {
			d.Err = types.Errorf(types.ErrMissingArgument, "%s requires an argument", d.Name)
		}
	}
}

func isArgStart(c byte) bool {
	return c == ' ' || c == '\t' || c == '"'
}

func lineEnd(text string, p int) int {
	if p >= len(text) {
		return len(text)
	}
	if i := strings.IndexByte(text[p:], '\n'); i >= 0 {
		return p + i
	}
	return len(text)
}

func tidy(s string) string {
	s = blankRuns.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
