package domain

import (
	"encoding/json"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Extra holds the members of a platform object that the model does not
// declare. They are kept verbatim and written back on encode, so an event that
// is fetched, changed and sent back keeps its sharing group, galaxies, reports
// and everything else the platform attached to it.
type Extra map[string]json.RawMessage

var declaredKeys sync.Map // reflect.Type -> map[string]struct{}

// keysOf lists the JSON member names declared by the struct type of v.
func keysOf(v any) map[string]struct{} {
	t := reflect.TypeOf(v)
	if cached, ok := declaredKeys.Load(t); ok {
		return cached.(map[string]struct{})
	}
	keys := make(map[string]struct{}, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		switch name {
		case "-":
			continue
		case "":
			name = f.Name
		}
		keys[name] = struct{}{}
	}
	declaredKeys.Store(t, keys)
	return keys
}

// collectExtra returns the members of the JSON object data that are not
// declared by the struct type of model.
func collectExtra(data []byte, model any) Extra {
	parsed := gjson.ParseBytes(data)
	if !parsed.IsObject() {
		return nil
	}
	keys := keysOf(model)
	var extra Extra
	parsed.ForEach(func(key, value gjson.Result) bool {
		if _, declared := keys[key.String()]; declared {
			return true
		}
		if extra == nil {
			extra = make(Extra)
		}
		extra[key.String()] = json.RawMessage(value.Raw)
		return true
	})
	return extra
}

// marshalWithExtra encodes v and adds the extra members back. Declared fields
// win over an extra member of the same name.
func marshalWithExtra(v any, extra Extra) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil || len(extra) == 0 {
		return data, err
	}
	names := make([]string, 0, len(extra))
	for name := range extra {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		path := escapePath(name)
		if gjson.GetBytes(data, path).Exists() {
			continue
		}
		if data, err = sjson.SetRawBytes(data, path, extra[name]); err != nil {
			return nil, err
		}
	}
	return data, nil
}

var pathEscaper = strings.NewReplacer(`\`, `\\`, ".", `\.`, "*", `\*`, "?", `\?`, "|", `\|`, "#", `\#`, "@", `\@`, ":", `\:`)

func escapePath(name string) string {
	return pathEscaper.Replace(name)
}
