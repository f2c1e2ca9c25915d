package parser

import (
	"regexp"
	"strings"

	"github.com/jptrs93/troto/internal/diag"
)

const pragmaOption = "@option"

var (
	optionKeyRe     = regexp.MustCompile(`^[A-Za-z_(][A-Za-z0-9_.()]*$`)
	numberLiteralRe = regexp.MustCompile(`^-?(0|[1-9][0-9]*)(\.[0-9]+)?([eE][+-]?[0-9]+)?$`)
)

// parsePragmas extracts `@option key=value` lines from the body of a doc
// comment. Lines that do not start with @option are documentation and are
// ignored.
func parsePragmas(pos diag.Pos, body string) ([]Option, error) {
	var opts []Option
	for i, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "*")
		line = strings.TrimSpace(line)
		rest, ok := strings.CutPrefix(line, pragmaOption)
		if !ok {
			continue
		}
		if rest != "" && rest[0] != ' ' && rest[0] != '\t' {
			// @optional, @options and friends are ordinary doc tags.
			continue
		}
		linePos := diag.Pos{File: pos.File, Line: pos.Line + i, Column: 1}
		if i == 0 {
			linePos.Column = pos.Column
		}
		opt, err := parseOptionPair(linePos, strings.TrimSpace(rest))
		if err != nil {
			return nil, err
		}
		opts = append(opts, opt)
	}
	return opts, nil
}

func parseOptionPair(pos diag.Pos, pair string) (Option, error) {
	key, value, ok := strings.Cut(pair, "=")
	if !ok {
		return Option{}, diag.Errorf(diag.KindSyntax, pos, "malformed option pragma %q: expected key=value", pair)
	}
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)
	if !optionKeyRe.MatchString(key) {
		return Option{}, diag.Errorf(diag.KindSyntax, pos, "malformed option pragma %q: invalid key %q", pair, key)
	}
	if value == "" {
		return Option{}, diag.Errorf(diag.KindSyntax, pos, "malformed option pragma %q: missing value", pair)
	}
	return Option{Name: key, Value: pragmaLiteral(value), Pos: pos}, nil
}

// pragmaLiteral classifies a pragma value. Numbers and booleans keep their
// literal kind; everything else, quoted or not, is a string.
func pragmaLiteral(value string) Literal {
	if len(value) >= 2 {
		first, last := value[0], value[len(value)-1]
		if (first == '"' || first == '\'') && first == last {
			return Literal{Kind: LitString, Text: value[1 : len(value)-1]}
		}
	}
	switch {
	case value == "true" || value == "false":
		return Literal{Kind: LitBool, Text: value}
	case numberLiteralRe.MatchString(value):
		return Literal{Kind: LitNumber, Text: value}
	default:
		return Literal{Kind: LitString, Text: value}
	}
}
