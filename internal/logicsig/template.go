package logicsig

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

// Template variable names of the pool program.
const (
	VarAsset1ID       = "TMPL_ASSET_ID_1"
	VarAsset2ID       = "TMPL_ASSET_ID_2"
	VarValidatorAppID = "TMPL_VALIDATOR_APP_ID"
)

const poolContract = "pool_logicsig"

// Variable is a placeholder in the compiled template.
type Variable struct {
	Name   string `json:"name"`
	Type   string `json:"type"` // "int" or "bytes"
	Index  int    `json:"index"`
	Length int    `json:"length"`
}

// Template is the compiled pool program with its placeholders.
type Template struct {
	Bytecode  []byte
	Variables []Variable
}

type ascDocument struct {
	Contracts map[string]struct {
		Type  string `json:"type"`
		Logic struct {
			Bytecode  string     `json:"bytecode"`
			Variables []Variable `json:"variables"`
		} `json:"logic"`
	} `json:"contracts"`
}

// LoadTemplate reads the pool program from an ASC JSON file.
func LoadTemplate(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read asc file: %w", err)
	}
	return ParseTemplate(data)
}

func ParseTemplate(data []byte) (*Template, error) {
	var doc ascDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode asc: %w", err)
	}
	c, ok := doc.Contracts[poolContract]
	if !ok {
		return nil, fmt.Errorf("asc has no %s contract", poolContract)
	}
	code, err := base64.StdEncoding.DecodeString(c.Logic.Bytecode)
	if err != nil {
		return nil, fmt.Errorf("decode %s bytecode: %w", poolContract, err)
	}
	if len(code) == 0 {
		return nil, fmt.Errorf("%s bytecode is empty", poolContract)
	}

	vars := append([]Variable(nil), c.Logic.Variables...)
	sort.Slice(vars, func(i, j int) bool { return vars[i].Index < vars[j].Index })
	end := 0
	for _, v := range vars {
		if v.Index < end || v.Length <= 0 || v.Index+v.Length > len(code) {
			return nil, fmt.Errorf("variable %s has invalid span [%d,%d)", v.Name, v.Index, v.Index+v.Length)
		}
		end = v.Index + v.Length
	}
	return &Template{Bytecode: code, Variables: vars}, nil
}

// Program substitutes every variable. Placeholders are replaced in index
// order and the offset shifts by the difference between placeholder and
// encoded lengths.
func (t *Template) Program(values map[string]any) ([]byte, error) {
	out := make([]byte, 0, len(t.Bytecode))
	last := 0
	for _, v := range t.Variables {
		val, ok := values[v.Name]
		if !ok {
			return nil, fmt.Errorf("no value for %s", v.Name)
		}
		enc, err := encodeValue(v, val)
		if err != nil {
			return nil, err
		}
		out = append(out, t.Bytecode[last:v.Index]...)
		out = append(out, enc...)
		last = v.Index + v.Length
	}
	return append(out, t.Bytecode[last:]...), nil
}

func encodeValue(v Variable, val any) ([]byte, error) {
	switch strings.ToLower(v.Type) {
	case "int":
		n, ok := val.(uint64)
		if !ok {
			return nil, fmt.Errorf("%s expects uint64, got %T", v.Name, val)
		}
		return binary.AppendUvarint(nil, n), nil
	case "bytes":
		b, ok := val.([]byte)
		if !ok {
			return nil, fmt.Errorf("%s expects []byte, got %T", v.Name, val)
		}
		return append(binary.AppendUvarint(nil, uint64(len(b))), b...), nil
	default:
		return nil, fmt.Errorf("%s has unknown type %q", v.Name, v.Type)
	}
}
