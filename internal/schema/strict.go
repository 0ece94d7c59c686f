package schema

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// CheckStrict verifies the strict structured-output shape: every object
// declares properties, lists all of them in required, and sets
// additionalProperties to false.
func CheckStrict(raw json.RawMessage) error {
	var root map[string]any
	if err := json.Unmarshal(raw, &root); err != nil {
		return fmt.Errorf("schema is not a JSON object: %w", err)
	}
	return checkNode(root, "#")
}

func checkNode(node map[string]any, path string) error {
	if isObject(node) {
		props, ok := node["properties"].(map[string]any)
		if !ok {
			return fmt.Errorf("%s: object without properties", path)
		}
		if ap, ok := node["additionalProperties"].(bool); !ok || ap {
			return fmt.Errorf("%s: additionalProperties must be false", path)
		}
		required := map[string]bool{}
		if list, ok := node["required"].([]any); ok {
			for _, r := range list {
				if s, ok := r.(string); ok {
					required[s] = true
				}
			}
		}
		var missing []string
		for name := range props {
			if !required[name] {
				missing = append(missing, name)
			}
		}
		if len(missing) > 0 {
			sort.Strings(missing)
			return fmt.Errorf("%s: properties not required: %s", path, strings.Join(missing, ", "))
		}
		for name := range required {
			if _, ok := props[name]; !ok {
				return fmt.Errorf("%s: required property %q is not declared", path, name)
			}
		}
		names := make([]string, 0, len(props))
		for name := range props {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			child, ok := props[name].(map[string]any)
			if !ok {
				continue
			}
			if err := checkNode(child, path+"/properties/"+name); err != nil {
				return err
			}
		}
	}
	if items, ok := node["items"].(map[string]any); ok {
		if err := checkNode(items, path+"/items"); err != nil {
			return err
		}
	}
	for _, key := range []string{"anyOf", "oneOf", "allOf"} {
		list, ok := node[key].([]any)
		if !ok {
			continue
		}
		for i, v := range list {
			if child, ok := v.(map[string]any); ok {
				if err := checkNode(child, fmt.Sprintf("%s/%s/%d", path, key, i)); err != nil {
					return err
				}
			}
		}
	}
	for _, key := range []string{"$defs", "definitions"} {
		defs, ok := node[key].(map[string]any)
		if !ok {
			continue
		}
		for name, v := range defs {
			if child, ok := v.(map[string]any); ok {
				if err := checkNode(child, path+"/"+key+"/"+name); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func isObject(node map[string]any) bool {
	switch t := node["type"].(type) {
	case string:
		return t == "object"
	case []any:
		for _, v := range t {
			if v == "object" {
				return true
			}
		}
	}
	_, hasProps := node["properties"]
	return hasProps
}
