package config

import (
	"fmt"
	"strings"
	"unicode"
)

// argvLexer splits a command string the way a POSIX shell would for plain
// words: single quotes are literal, double quotes honor \" and \\, and a
// backslash outside quotes escapes the next rune. No expansion happens.
type argvLexer struct {
	words   []string
	word    strings.Builder
	inWord  bool
	pending rune
}

func (l *argvLexer) add(r rune) {
	l.word.WriteRune(r)
	l.inWord = true
}

func (l *argvLexer) end() {
	if l.inWord {
		l.words = append(l.words, l.word.String())
	}
	l.word.Reset()
	l.inWord = false
}

func parseArgv(input string) ([]string, error) {
	input = strings.TrimSpace(input)
	if input == "" || input[0] == '#' {
		return nil, nil
	}

	var l argvLexer
	escaped := false
	for _, r := range input {
		if escaped {
			if l.pending == '"' && r != '"' && r != '\\' {
				l.add('\\')
			}
			l.add(r)
			escaped = false
			continue
		}

		switch l.pending {
		case '\'':
			if r == '\'' {
				l.pending = 0
			} else {
				l.add(r)
			}
		case '"':
			switch r {
			case '"':
				l.pending = 0
			case '\\':
				escaped = true
			default:
				l.add(r)
			}
		default:
			switch {
			case r == '\\':
				escaped = true
			case r == '\'' || r == '"':
				l.pending = r
				l.inWord = true
			case unicode.IsSpace(r):
				l.end()
			default:
				l.add(r)
			}
		}
	}

	if escaped {
		return nil, fmt.Errorf("unterminated escape sequence in command: %q", input)
	}
	if l.pending != 0 {
		return nil, fmt.Errorf("unterminated quote in command: %q", input)
	}
	l.end()
	return l.words, nil
}

func mustParseArgv(input string) []string {
	argv, err := parseArgv(input)
	if err != nil {
		panic(err)
	}
	return argv
}
