package selector

import (
	"regexp"
	"strings"

	parse "github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
	"go.uber.org/zap"
)

// DefaultKind is used when selector does not start with a word.
const DefaultKind = "button"

// DefaultContexts is the vocabulary recognized by "<kind>.<context>" shorthand.
var DefaultContexts = []string{
	"chat", "sidebar", "header", "footer", "toolbar", "modal", "dialog",
	"menu", "settings", "form", "card", "panel", "nav",
}

const (
	contextAttribute    = "data-context"
	identifierAttribute = "data-id"
)

var (
	kindPattern      = regexp.MustCompile(`^\w+`)
	contextShorthand = regexp.MustCompile(`^(\w+)\.([\w-]+)`)
	statePattern     = regexp.MustCompile(`:(\w+)`)
	// unterminated brackets are left in the text and never become matchers
	bracketPattern = regexp.MustCompile(`\[[^\[\]]*\]`)
)

// Parser turns shorthand selectors into Matchers. It never fails, fragments
// it cannot interpret are dropped.
type Parser struct {
	log         *zap.Logger
	defaultKind string
	contexts    map[string]struct{}
}

// Option configures Parser.
type Option func(*Parser)

// WithDefaultKind sets kind used for selectors without leading word.
func WithDefaultKind(kind string) Option {
	return func(p *Parser) {
		if kind != "" {
			p.defaultKind = kind
		}
	}
}

// WithContexts replaces known context vocabulary.
func WithContexts(contexts ...string) Option {
	return func(p *Parser) {
		p.contexts = make(map[string]struct{}, len(contexts))
		for _, c := range contexts {
			if c = strings.TrimSpace(c); c != "" {
				p.contexts[c] = struct{}{}
			}
		}
	}
}

// NewParser creates a new selector parser.
func NewParser(log *zap.Logger, opts ...Option) *Parser {
	if log == nil {
		log = zap.NewNop()
	}
	p := &Parser{log: log.Named("selector"), defaultKind: DefaultKind}
	WithContexts(DefaultContexts...)(p)
	for _, setOpt := range opts {
		setOpt(p)
	}
	return p
}

var defaultParser = NewParser(nil)

// Parse parses selector using default vocabulary.
func Parse(sel string) Matcher {
	return defaultParser.Parse(sel)
}

// IsKnownContext reports whether name is a member of context vocabulary.
func (p *Parser) IsKnownContext(name string) bool {
	_, ok := p.contexts[name]
	return ok
}

// Parse parses a single selector string.
func (p *Parser) Parse(sel string) Matcher {
	m, _ := p.ParseWithWarnings(sel)
	return m
}

// ParseWithWarnings parses selector and describes every dropped fragment.
func (p *Parser) ParseWithWarnings(sel string) (Matcher, []string) {
	var warnings []string
	expanded := p.expand(strings.TrimSpace(sel))

	m := Matcher{Kind: p.defaultKind}
	rest := expanded
	if kind := kindPattern.FindString(expanded); kind != "" {
		m.Kind = kind
		rest = expanded[len(kind):]
	}

	for _, fragment := range bracketPattern.FindAllString(rest, -1) {
		am, ok := lexAttribute(fragment)
		if !ok {
			warnings = append(warnings, "invalid attribute selector: "+fragment)
			continue
		}
		switch am.Attribute {
		case contextAttribute:
			if am.Operator == OpEquals && am.Value != "" && m.Context == "" {
				m.Context = am.Value
				continue
			}
			warnings = append(warnings, "ignored context attribute: "+fragment)
		case identifierAttribute:
			if am.Operator == OpEquals && am.Value != "" && m.Identifier == "" {
				m.Identifier = am.Value
				continue
			}
			warnings = append(warnings, "ignored identifier attribute: "+fragment)
		default:
			m.Attributes = append(m.Attributes, am)
		}
	}

	rest = bracketPattern.ReplaceAllString(rest, " ")
	if loc := statePattern.FindStringSubmatchIndex(rest); loc != nil {
		m.State = rest[loc[2]:loc[3]]
		rest = rest[:loc[0]] + " " + rest[loc[1]:]
	}
	for _, leftover := range strings.Fields(rest) {
		warnings = append(warnings, "unrecognized selector fragment: "+leftover)
	}

	if len(warnings) > 0 {
		p.log.Debug("Selector fragments dropped", zap.String("selector", sel), zap.Strings("warnings", warnings))
	}
	return m, warnings
}

// expand rewrites ".<context>" and "#<identifier>" shorthands into attribute form.
func (p *Parser) expand(sel string) string {
	if loc := contextShorthand.FindStringSubmatchIndex(sel); loc != nil {
		kind, name := sel[loc[2]:loc[3]], sel[loc[4]:loc[5]]
		if p.IsKnownContext(name) {
			sel = kind + `[` + contextAttribute + `="` + name + `"]` + sel[loc[1]:]
		}
	}
	start := hashOutsideBrackets(sel)
	if start < 0 {
		return sel
	}
	end := start + 1
	for end < len(sel) && sel[end] != ':' && sel[end] != '[' {
		end++
	}
	if end == start+1 {
		return sel
	}
	return sel[:start] + `[` + identifierAttribute + `="` + sel[start+1:end] + `"]` + sel[end:]
}

// hashOutsideBrackets returns position of the first '#' which is not part of
// an attribute fragment, or -1.
func hashOutsideBrackets(sel string) int {
	depth := 0
	for i := 0; i < len(sel); i++ {
		switch sel[i] {
		case '[':
			depth++
		case ']':
			if depth > 0 {
				depth--
			}
		case '#':
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// lexAttribute interprets single bracketed fragment: [name] or [name<op>"value"].
func lexAttribute(fragment string) (AttributeMatcher, bool) {
	type token struct {
		tt   css.TokenType
		data string
	}

	var tokens []token
	l := css.NewLexer(parse.NewInputString(fragment))
	for {
		tt, data := l.Next()
		if tt == css.ErrorToken {
			break
		}
		if tt == css.WhitespaceToken || tt == css.CommentToken {
			continue
		}
		tokens = append(tokens, token{tt: tt, data: string(data)})
	}

	n := len(tokens)
	if n < 3 || tokens[0].tt != css.LeftBracketToken || tokens[n-1].tt != css.RightBracketToken || tokens[1].tt != css.IdentToken {
		return AttributeMatcher{}, false
	}
	am := AttributeMatcher{Attribute: tokens[1].data}
	switch n {
	case 3:
		am.Operator = OpExists
		return am, true
	case 5:
	default:
		return AttributeMatcher{}, false
	}

	op, value := tokens[2], tokens[3]
	if value.tt != css.StringToken {
		return AttributeMatcher{}, false
	}
	switch {
	case op.tt == css.DelimToken && op.data == "=":
		am.Operator = OpEquals
	case op.tt == css.IncludeMatchToken:
		am.Operator = OpIncludes
	case op.tt == css.DashMatchToken:
		am.Operator = OpDashMatch
	case op.tt == css.PrefixMatchToken:
		am.Operator = OpPrefix
	case op.tt == css.SuffixMatchToken:
		am.Operator = OpSuffix
	case op.tt == css.SubstringMatchToken:
		am.Operator = OpSubstring
	default:
		return AttributeMatcher{}, false
	}
	am.Value = unquote(value.data)
	return am, true
}

// unquote removes surrounding quotes from a string.
func unquote(s string) string {
	if len(s) < 2 {
		return s
	}
	if (s[0] == '"' && s[len(s)-1] == '"') ||
		(s[0] == '\'' && s[len(s)-1] == '\'') {
		return s[1 : len(s)-1]
	}
	return s
}
