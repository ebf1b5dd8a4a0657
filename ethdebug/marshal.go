package ethdebug

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/tidwall/pretty"
)

// Mode selects how a document is laid out. It never changes the content.
type Mode int

const (
	Pretty Mode = iota
	Compact
)

func (m Mode) String() string {
	if m == Compact {
		return "json"
	}
	return "pretty"
}

func ParseMode(s string) (Mode, error) {
	switch s {
	case "pretty", "":
		return Pretty, nil
	case "json", "compact":
		return Compact, nil
	}
	return Pretty, fmt.Errorf("unknown output format %q, want json or pretty", s)
}

var prettyOptions = &pretty.Options{
	Width:  80,
	Prefix: "",
	Indent: "  ",
}

// Marshal encodes doc once and then lays it out according to mode, so both
// modes always carry the same content. The result ends in a newline.
func Marshal(doc *Document, mode Mode) ([]byte, error) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	// Source contents are written as they are, with < > & unescaped.
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(doc); err != nil {
		return nil, err
	}
	encoded := buf.Bytes()
	if mode == Compact {
		return append(pretty.Ugly(encoded), '\n'), nil
	}
	return pretty.PrettyOptions(encoded, prettyOptions), nil
}

func Unmarshal(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}
