//nolint:govet
package main

import (
	"fmt"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer/stateful"
	"github.com/squareup/datatable/perrors"
)

// commandLine is a shell command followed by its arguments. Arguments are checked by the command, so that a bound
// which is not an integer is reported as a type mismatch rather than a syntax error.
type commandLine struct {
	Name string   `parser:"@Ident"`
	Args []string `parser:"(@Ident | @Number | @String)*"`
}

var (
	commandLexer = stateful.MustSimple([]stateful.Rule{
		{Name: `Ident`, Pattern: `[a-zA-Z_][a-zA-Z_0-9]*`, Action: nil},
		{Name: `Number`, Pattern: `[-+]?\d*\.?\d+([eE][-+]?\d+)?`, Action: nil},
		{Name: `String`, Pattern: `'[^']*'|"[^"]*"`, Action: nil},
		{Name: `Punct`, Pattern: `[-+*/%,.()=<>;:\[\]]`, Action: nil},
		{Name: `Whitespace`, Pattern: `\s+`, Action: nil},
	})
	commandParser = participle.MustBuild(&commandLine{},
		participle.Lexer(commandLexer),
		participle.CaseInsensitive("Ident"),
		participle.Elide("Whitespace"),
		participle.Unquote("String"),
	)
)

func parseCommand(line string) (*commandLine, error) {
	cmd := &commandLine{}
	if err := commandParser.ParseString("", line, cmd); err != nil {
		return nil, perrors.NewInvalidArgumentError(fmt.Sprintf("cannot parse %q: %v", line, err))
	}
	return cmd, nil
}
