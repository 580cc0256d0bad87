package internal

import (
	"encoding/json"
	"fmt"
	"io"
)

// JsonPrinter writes one JSON document per line. The first error is kept
// and later prints are skipped.
type JsonPrinter struct {
	W        io.Writer
	Indent   bool
	AccError error
	count    int
}

func (p *JsonPrinter) Print(data any, show bool) {
	if !show || p.AccError != nil {
		return
	}
	var out []byte
	var err error
	if p.Indent {
		out, err = json.MarshalIndent(data, "", "  ")
	} else {
		out, err = json.Marshal(data)
	}
	if err != nil {
		p.AccError = fmt.Errorf("marshal %T: %w", data, err)
		return
	}
	if _, p.AccError = fmt.Fprintln(p.W, string(out)); p.AccError == nil {
		p.count++
	}
}

// Count is the number of documents written so far.
func (p *JsonPrinter) Count() int {
	return p.count
}

func (p *JsonPrinter) Error() error {
	return p.AccError
}
