package httpx

import (
	"encoding/json"
	"fmt"

	"github.com/PaesslerAG/jsonpath"
)

// Decode unmarshals a JSON body into a generic value suitable for Float.
func Decode(body []byte) (any, error) {
	var jobj any
	if err := json.Unmarshal(body, &jobj); err != nil {
		return nil, err
	}
	return jobj, nil
}

// Float returns the number at path in jobj.
func Float(jobj any, path string) (float64, error) {
	jval, err := jsonpath.Get(path, jobj)
	if err != nil {
		return 0, fmt.Errorf("error parsing %q: %w", path, err)
	}
	// because jsonpath is never clear about wheter it returns a list of 1 answer, or a single answer:
	// by this call I keep the first one if any
	if jlist, ok := jval.([]any); ok && len(jlist) > 0 {
		jval = jlist[0]
	}
	val, ok := jval.(float64)
	if !ok {
		return 0, fmt.Errorf("error parsing %q: not a number %v", path, jval)
	}
	return val, nil
}

// Floats returns all the numbers matched by path in jobj, skipping non numbers.
func Floats(jobj any, path string) ([]float64, error) {
	jval, err := jsonpath.Get(path, jobj)
	if err != nil {
		return nil, fmt.Errorf("error parsing %q: %w", path, err)
	}
	jlist, ok := jval.([]any)
	if !ok {
		jlist = []any{jval}
	}
	var res []float64
	for _, v := range jlist {
		if f, ok := v.(float64); ok {
			res = append(res, f)
		}
	}
	return res, nil
}
