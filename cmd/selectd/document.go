package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/vango-dev/selector/pkg/selector"
)

// document is one polled JSON snapshot.
type document struct {
	raw json.RawMessage
}

func decodeDocument(data []byte) (*document, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		data = []byte("null")
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("invalid JSON document")
	}
	return &document{raw: append(json.RawMessage(nil), data...)}, nil
}

// MarshalJSON returns the raw document.
func (d *document) MarshalJSON() ([]byte, error) {
	if d == nil {
		return []byte("null"), nil
	}
	return d.raw, nil
}

// scanDocument reads the first column of the first row as the document.
// No rows is an empty (null) document.
func scanDocument(rows *sql.Rows) (*document, error) {
	if !rows.Next() {
		return decodeDocument(nil)
	}
	var raw []byte
	if err := rows.Scan(&raw); err != nil {
		return nil, err
	}
	return decodeDocument(raw)
}

// pathSelector evaluates a gjson path against the document. The async form
// runs the same evaluation as a pending result.
func pathSelector(path string, async bool) selector.Selector[*document, any] {
	eval := func(d *document) (any, error) {
		if d == nil {
			return nil, nil
		}
		return gjson.GetBytes(d.raw, path).Value(), nil
	}
	if async {
		return selector.Async(func(_ context.Context, d *document) (any, error) {
			return eval(d)
		})
	}
	return selector.SyncE(eval)
}
