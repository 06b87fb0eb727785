package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"gopkg.in/yaml.v3"
)

// printer renders command results in the selected format.
type printer struct {
	mu     sync.Mutex
	w      io.Writer
	format string
}

func newPrinter(w io.Writer, format string) (*printer, error) {
	switch format {
	case "yaml", "json":
		return &printer{w: w, format: format}, nil
	default:
		return nil, fmt.Errorf("unsupported output format %q (want yaml or json)", format)
	}
}

func (p *printer) print(v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.format == "json" {
		enc := json.NewEncoder(p.w)
		return enc.Encode(v)
	}
	data, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := p.w.Write(data); err != nil {
		return err
	}
	_, err = fmt.Fprintln(p.w, "---")
	return err
}

// printRaw decodes a JSON payload generically and prints it.
func (p *printer) printRaw(raw json.RawMessage) error {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	return p.print(v)
}
