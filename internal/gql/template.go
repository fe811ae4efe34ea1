package gql

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var (
	// ErrInvalidTemplate is returned when a path template cannot be parsed
	ErrInvalidTemplate = errors.New("invalid path template")
	// ErrMissingExport is returned when a template references an export
	// that has not been resolved yet
	ErrMissingExport = errors.New("missing export")
	// ErrMissingArgument is returned when a template references an argument
	// the caller did not supply
	ErrMissingArgument = errors.New("missing argument")
)

// SegmentKind identifies what a template segment holds
type SegmentKind int

const (
	// SegmentLiteral is copied verbatim into the resolved path
	SegmentLiteral SegmentKind = iota
	// SegmentArg references a field argument: {args.X}
	SegmentArg
	// SegmentExport references a value exported by a sibling field: {exportVariables.Y}
	SegmentExport
)

const (
	argsNamespace   = "args"
	exportNamespace = "exportVariables"
)

func (k SegmentKind) String() string {
	switch k {
	case SegmentLiteral:
		return "literal"
	case SegmentArg:
		return argsNamespace
	case SegmentExport:
		return exportNamespace
	default:
		return fmt.Sprintf("SegmentKind(%d)", int(k))
	}
}

// Segment is one node of a path template
type Segment struct {
	Kind SegmentKind
	// Text is the literal text for SegmentLiteral, otherwise the variable name
	Text string
}

// Template is a parsed REST path such as
// "apps/{args.appName}/deployments/{exportVariables.name}/metrics"
type Template struct {
	raw      string
	segments []Segment
}

// ParseTemplate parses a path template into literal and variable segments
func ParseTemplate(s string) (*Template, error) {
	t := &Template{raw: s}
	rest := s
	for rest != "" {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			if strings.IndexByte(rest, '}') >= 0 {
				return nil, fmt.Errorf("%w: unexpected '}' in %q", ErrInvalidTemplate, s)
			}
			t.segments = append(t.segments, Segment{Kind: SegmentLiteral, Text: rest})
			break
		}
		if open > 0 {
			lit := rest[:open]
			if strings.IndexByte(lit, '}') >= 0 {
				return nil, fmt.Errorf("%w: unexpected '}' in %q", ErrInvalidTemplate, s)
			}
			t.segments = append(t.segments, Segment{Kind: SegmentLiteral, Text: lit})
		}

		closing := strings.IndexByte(rest[open:], '}')
		if closing < 0 {
			return nil, fmt.Errorf("%w: unclosed '{' in %q", ErrInvalidTemplate, s)
		}
		inner := rest[open+1 : open+closing]
		if strings.IndexByte(inner, '{') >= 0 {
			return nil, fmt.Errorf("%w: nested '{' in %q", ErrInvalidTemplate, s)
		}

		seg, err := parseVariable(inner)
		if err != nil {
			return nil, fmt.Errorf("%w: %v in %q", ErrInvalidTemplate, err, s)
		}
		t.segments = append(t.segments, seg)
		rest = rest[open+closing+1:]
	}
	return t, nil
}

func parseVariable(inner string) (Segment, error) {
	ns, name, ok := strings.Cut(strings.TrimSpace(inner), ".")
	if !ok {
		return Segment{}, fmt.Errorf("variable %q has no namespace", inner)
	}
	if name == "" {
		return Segment{}, fmt.Errorf("variable %q has an empty name", inner)
	}
	switch ns {
	case argsNamespace:
		return Segment{Kind: SegmentArg, Text: name}, nil
	case exportNamespace:
		return Segment{Kind: SegmentExport, Text: name}, nil
	default:
		return Segment{}, fmt.Errorf("unknown namespace %q", ns)
	}
}

// String returns the template source
func (t *Template) String() string {
	return t.raw
}

// Segments returns a copy of the parsed segments
func (t *Template) Segments() []Segment {
	out := make([]Segment, len(t.segments))
	copy(out, t.segments)
	return out
}

// Exports lists the export names the template depends on
func (t *Template) Exports() []string {
	return t.names(SegmentExport)
}

// Args lists the argument names the template depends on
func (t *Template) Args() []string {
	return t.names(SegmentArg)
}

func (t *Template) names(kind SegmentKind) []string {
	var out []string
	for _, seg := range t.segments {
		if seg.Kind == kind {
			out = append(out, seg.Text)
		}
	}
	return out
}

// Resolve substitutes arguments and exports into the template. Variable
// values are path-escaped. A reference to an export that is absent or nil
// fails with ErrMissingExport.
func (t *Template) Resolve(args, exports map[string]any) (string, error) {
	var b strings.Builder
	for _, seg := range t.segments {
		switch seg.Kind {
		case SegmentLiteral:
			b.WriteString(seg.Text)
		case SegmentArg:
			v, ok := args[seg.Text]
			if !ok || v == nil {
				return "", fmt.Errorf("%w: args.%s", ErrMissingArgument, seg.Text)
			}
			b.WriteString(url.PathEscape(fmt.Sprint(v)))
		case SegmentExport:
			v, ok := exports[seg.Text]
			if !ok || v == nil {
				return "", fmt.Errorf("%w: exportVariables.%s", ErrMissingExport, seg.Text)
			}
			b.WriteString(url.PathEscape(fmt.Sprint(v)))
		}
	}
	return b.String(), nil
}
