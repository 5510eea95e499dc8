package slots

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// FromMap decodes loosely typed slot metadata, as sent by chat clients, into
// a slot set. Stacks may arrive as a list or a comma-joined string and a
// budget may arrive as free text; both are normalized.
func (e *Extractor) FromMap(raw map[string]any) (Slots, error) {
	var out Slots
	if len(raw) == 0 {
		return out, nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &out,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			budgetFromTextHook,
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return Slots{}, fmt.Errorf("create slot decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return Slots{}, fmt.Errorf("decode slots: %w", err)
	}

	out.Stack = e.tech.Normalize(out.Stack)
	if len(out.Stack) == 0 {
		out.Stack = nil
	}
	for _, k := range Keys {
		if v := out.text(k); v != strings.TrimSpace(v) {
			out.setText(k, strings.TrimSpace(v))
		}
	}
	if out.Budget.IsEmpty() {
		out.Budget = nil
	}
	return out, nil
}

// FromMap decodes slot metadata with the default extractor.
func FromMap(raw map[string]any) (Slots, error) {
	return defaultExtractor.FromMap(raw)
}

var budgetType = reflect.TypeOf(Budget{})

func budgetFromTextHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to != budgetType {
		return data, nil
	}
	b := extractBudget(data.(string))
	if b == nil {
		return Budget{Raw: strings.TrimSpace(data.(string))}, nil
	}
	return *b, nil
}
