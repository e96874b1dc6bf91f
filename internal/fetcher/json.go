package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/rotisserie/eris"
)

// DecodeJSONArray decodes a JSON array element by element.
// Both channels are closed when processing completes.
func DecodeJSONArray[T any](ctx context.Context, r io.Reader) (<-chan T, <-chan error) {
	outCh := make(chan T, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(outCh)
		defer close(errCh)

		decoder := json.NewDecoder(r)
		tok, err := decoder.Token()
		if err != nil {
			if err == io.EOF {
				return
			}
			errCh <- eris.Wrap(err, "fetcher: json opening token")
			return
		}
		if delim, ok := tok.(json.Delim); !ok || delim != '[' {
			errCh <- eris.Errorf("fetcher: json: expected '[', got %v", tok)
			return
		}

		for decoder.More() {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "fetcher: json read canceled")
				return
			}
			var item T
			if err := decoder.Decode(&item); err != nil {
				errCh <- eris.Wrap(err, "fetcher: json decode element")
				return
			}
			select {
			case outCh <- item:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "fetcher: json read canceled")
				return
			}
		}

		if _, err := decoder.Token(); err != nil && err != io.EOF {
			errCh <- eris.Wrap(err, "fetcher: json closing token")
		}
	}()

	return outCh, errCh
}

// DecodeJSONObject decodes a single JSON object.
func DecodeJSONObject[T any](r io.Reader) (*T, error) {
	var obj T
	if err := json.NewDecoder(r).Decode(&obj); err != nil {
		return nil, eris.Wrap(err, "fetcher: json decode object")
	}
	return &obj, nil
}

// StreamJSON reads a JSON array of objects and sends one Row per element,
// with nested keys flattened to dotted column names ("address.city").
// Elements that are not objects arrive as rows with Err set.
func StreamJSON(ctx context.Context, r io.Reader) (<-chan Row, <-chan error) {
	rowCh := make(chan Row, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		items, itemErrs := DecodeJSONArray[json.RawMessage](ctx, r)
		i := 0
		for raw := range items {
			row := Row{Ref: fmt.Sprintf("$[%d]", i)}
			i++
			var obj map[string]any
			if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
				row.Err = eris.Errorf("fetcher: json element %s is not an object", row.Ref)
			} else {
				row.Fields = make(map[string]string)
				flatten("", obj, row.Fields)
			}
			select {
			case rowCh <- row:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "fetcher: json read canceled")
				return
			}
		}
		if err := <-itemErrs; err != nil {
			errCh <- err
		}
	}()

	return rowCh, errCh
}

func flatten(prefix string, obj map[string]any, out map[string]string) {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		name := k
		if prefix != "" {
			name = prefix + "." + k
		}
		switch v := obj[k].(type) {
		case nil:
			out[name] = ""
		case string:
			out[name] = v
		case float64:
			out[name] = strconv.FormatFloat(v, 'f', -1, 64)
		case bool:
			out[name] = strconv.FormatBool(v)
		case map[string]any:
			flatten(name, v, out)
		default:
			raw, _ := json.Marshal(v)
			out[name] = string(raw)
		}
	}
}
