// Package jsonpath queries JSON documents with a small JSONPath subset
// ($.a.b[0]) or with native gjson paths.
package jsonpath

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// Lookup resolves path against json. Paths starting with "$" are
// converted from JSONPath; anything else is passed to gjson unchanged, so
// gjson queries such as phases.#(key=="final_mark").max work too.
func Lookup(json, path string) (gjson.Result, error) {
	if json == "" {
		return gjson.Result{}, errors.New("empty JSON string")
	}
	if path == "" {
		return gjson.Result{}, errors.New("empty JSONPath expression")
	}
	if !gjson.Valid(json) {
		return gjson.Result{}, errors.New("invalid JSON document")
	}

	gpath := path
	if strings.HasPrefix(path, "$") {
		gpath = convertToGjsonPath(path)
	}

	result := gjson.Get(json, gpath)
	if !result.Exists() {
		return gjson.Result{}, fmt.Errorf("path not found: %s", path)
	}
	return result, nil
}

// Extract returns the value at path as a string. Null values render as
// "null"; objects and arrays render as raw JSON.
func Extract(json, path string) (string, error) {
	result, err := Lookup(json, path)
	if err != nil {
		return "", err
	}
	if result.Type == gjson.Null {
		return "null", nil
	}
	return result.String(), nil
}

// ExtractMultiple resolves every named path. Values found are returned
// even when others fail; the error lists the failures.
func ExtractMultiple(json string, paths map[string]string) (map[string]string, error) {
	if len(paths) == 0 {
		return nil, errors.New("no JSONPath expressions provided")
	}

	results := make(map[string]string, len(paths))
	var failures []string
	for name, path := range paths {
		value, err := Extract(json, path)
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", name, err))
			continue
		}
		results[name] = value
	}

	if len(failures) > 0 {
		return results, fmt.Errorf("extraction errors: %s", strings.Join(failures, "; "))
	}
	return results, nil
}

// convertToGjsonPath maps $.a['b'][0].c to a.b.0.c
func convertToGjsonPath(path string) string {
	path = strings.TrimPrefix(path, "$")
	path = strings.TrimPrefix(path, ".")
	if path == "" {
		return "@this"
	}

	var sb strings.Builder
	for i := 0; i < len(path); i++ {
		switch c := path[i]; c {
		case '[':
			end := strings.IndexByte(path[i:], ']')
			if end < 0 {
				sb.WriteString(path[i:])
				return sb.String()
			}
			seg := strings.Trim(path[i+1:i+end], `'"`)
			if sb.Len() > 0 {
				sb.WriteByte('.')
			}
			sb.WriteString(seg)
			i += end
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}
