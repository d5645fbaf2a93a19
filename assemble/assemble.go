// Package assemble turns a scanner.Token stream into raw.Object values,
// assembling the dictionaries and arrays the tokenizer itself only
// delimits. It is the shared value-reader used by xref (trailer and
// xref-stream dictionaries), objstm, and parser.
package assemble

import (
	"fmt"

	"github.com/yingkitw/pdfrs/ir/raw"
	"github.com/yingkitw/pdfrs/scanner"
)

// ReadValue reads the next complete value from sc: a scalar, or a
// recursively-assembled array/dictionary.
func ReadValue(sc scanner.Scanner) (raw.Object, error) {
	tok, err := sc.Next()
	if err != nil {
		return nil, err
	}
	return ReadValueFrom(sc, tok)
}

// ReadValueFrom assembles a value given its already-consumed leading token.
// Exported so callers that must branch on the first token (e.g. the parser
// distinguishing "N G obj" from a bare value) can peek before delegating.
func ReadValueFrom(sc scanner.Scanner, tok scanner.Token) (raw.Object, error) {
	switch tok.Type {
	case scanner.TokenDict:
		return readDict(sc)
	case scanner.TokenArray:
		return readArray(sc)
	case scanner.TokenName:
		return raw.NameLiteral(tok.Value.(string)), nil
	case scanner.TokenString:
		return raw.Str(tok.Value.([]byte)), nil
	case scanner.TokenNumber:
		switch v := tok.Value.(type) {
		case int64:
			return raw.NumberInt(v), nil
		case float64:
			return raw.NumberFloat(v), nil
		}
		return nil, fmt.Errorf("unexpected numeric token value %T", tok.Value)
	case scanner.TokenBoolean:
		return raw.Bool(tok.Value.(bool)), nil
	case scanner.TokenNull:
		return raw.NullObj{}, nil
	case scanner.TokenRef:
		r, ok := tok.Value.(struct{ Num, Gen int })
		if !ok {
			return nil, fmt.Errorf("malformed reference token value %T", tok.Value)
		}
		return raw.Ref(r.Num, r.Gen), nil
	default:
		return nil, fmt.Errorf("unexpected token type %v at offset %d", tok.Type, tok.Pos)
	}
}

func readDict(sc scanner.Scanner) (raw.Object, error) {
	dict := raw.Dict()
	for {
		tok, err := sc.Next()
		if err != nil {
			return nil, err
		}
		if tok.Type == scanner.TokenKeyword && tok.Value == ">>" {
			return dict, nil
		}
		if tok.Type != scanner.TokenName {
			return nil, fmt.Errorf("expected dictionary key, got token type %v at offset %d", tok.Type, tok.Pos)
		}
		key := tok.Value.(string)
		val, err := ReadValue(sc)
		if err != nil {
			return nil, fmt.Errorf("reading value for key /%s: %w", key, err)
		}
		dict.Set(raw.NameLiteral(key), val)
	}
}

func readArray(sc scanner.Scanner) (raw.Object, error) {
	arr := raw.NewArray()
	for {
		tok, err := sc.Next()
		if err != nil {
			return nil, err
		}
		if tok.Type == scanner.TokenKeyword && tok.Value == "]" {
			return arr, nil
		}
		val, err := ReadValueFrom(sc, tok)
		if err != nil {
			return nil, err
		}
		arr.Append(val)
	}
}
