// SPDX-License-Identifier: MPL-2.0

package config

import (
	"reflect"
	"strings"
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// These tests keep the Go struct tags and the CUE schema field names aligned.

func cueFields(t *testing.T, def string) map[string]bool {
	t.Helper()

	schema := cuecontext.New().CompileString(configSchema)
	if schema.Err() != nil {
		t.Fatalf("failed to compile CUE schema: %v", schema.Err())
	}
	val := schema.LookupPath(cue.ParsePath(def))
	if val.Err() != nil {
		t.Fatalf("failed to lookup %s: %v", def, val.Err())
	}

	iter, err := val.Fields(cue.Definitions(false), cue.Optional(true))
	if err != nil {
		t.Fatalf("failed to iterate CUE fields: %v", err)
	}
	fields := make(map[string]bool)
	for iter.Next() {
		sel := iter.Selector()
		if sel.LabelType().IsHidden() || sel.IsDefinition() {
			continue
		}
		fields[strings.TrimSuffix(sel.String(), "?")] = true
	}
	return fields
}

func goFields(t *testing.T, typ reflect.Type) map[string]bool {
	t.Helper()

	fields := make(map[string]bool)
	for i := range typ.NumField() {
		field := typ.Field(i)
		if !field.IsExported() {
			continue
		}
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			continue
		}
		if ms := field.Tag.Get("mapstructure"); ms != name {
			t.Errorf("%s: json tag %q differs from mapstructure tag %q", field.Name, name, ms)
		}
		fields[name] = true
	}
	return fields
}

func TestSchemaSync(t *testing.T) {
	t.Parallel()

	tests := []struct {
		def string
		typ reflect.Type
	}{
		{"#Config", reflect.TypeFor[Config]()},
		{"#SecurityConfig", reflect.TypeFor[SecurityConfig]()},
		{"#UIConfig", reflect.TypeFor[UIConfig]()},
	}

	for _, tt := range tests {
		t.Run(tt.def, func(t *testing.T) {
			t.Parallel()

			cf := cueFields(t, tt.def)
			gof := goFields(t, tt.typ)
			for f := range cf {
				if !gof[f] {
					t.Errorf("CUE field %q has no Go struct tag", f)
				}
			}
			for f := range gof {
				if !cf[f] {
					t.Errorf("Go tag %q has no CUE field", f)
				}
			}
		})
	}
}
