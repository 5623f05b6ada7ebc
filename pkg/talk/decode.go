package talk

import (
	"fmt"
	"reflect"

	"github.com/mitchellh/mapstructure"
)

// decodeInto copies a decoded mapping into a typed struct. XML leaves are
// strings, so input is weakly typed. Unknown keys land in the field tagged
// `mapstructure:",remain"`.
func decodeInto(input map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       emptyStringHook,
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(input); err != nil {
		return &StructureError{Path: fmt.Sprintf("%T", out), Reason: err.Error()}
	}
	return nil
}

// emptyStringHook turns an empty XML element into the zero value of a
// composite target instead of a type error.
func emptyStringHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || reflect.ValueOf(data).String() != "" {
		return data, nil
	}
	switch to.Kind() {
	case reflect.Map, reflect.Struct:
		return map[string]any{}, nil
	case reflect.Slice:
		return []any{}, nil
	case reflect.Ptr, reflect.Interface:
		return nil, nil
	}
	return data, nil
}
