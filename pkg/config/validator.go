package config

import (
	"fmt"
	"reflect"
	"strings"
)

// Required validates that the fields at the given dotted yaml paths are
// not zero.
func Required(paths ...string) Validator {
	return ValidatorFunc(func(config interface{}) error {
		missing := make([]string, 0)
		for _, path := range paths {
			fieldVal, err := lookup(config, path)
			if err != nil {
				return err
			}
			if fieldVal.IsZero() {
				missing = append(missing, path)
			}
		}
		if len(missing) > 0 {
			return fmt.Errorf("required fields are missing: %s", strings.Join(missing, ", "))
		}
		return nil
	})
}

// Range validates that a numeric field lies within [min, max].
func Range(path string, min, max float64) Validator {
	return ValidatorFunc(func(config interface{}) error {
		fieldVal, err := lookup(config, path)
		if err != nil {
			return err
		}

		var numVal float64
		switch fieldVal.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			numVal = float64(fieldVal.Int())
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			numVal = float64(fieldVal.Uint())
		case reflect.Float32, reflect.Float64:
			numVal = fieldVal.Float()
		default:
			return fmt.Errorf("field %s is not numeric", path)
		}

		if numVal < min || numVal > max {
			return fmt.Errorf("field %s value %v is out of range [%v, %v]", path, numVal, min, max)
		}
		return nil
	})
}

// OneOf validates that a string field holds one of allowed, ignoring case.
func OneOf(path string, allowed ...string) Validator {
	return ValidatorFunc(func(config interface{}) error {
		fieldVal, err := lookup(config, path)
		if err != nil {
			return err
		}
		if fieldVal.Kind() != reflect.String {
			return fmt.Errorf("field %s is not a string", path)
		}
		for _, a := range allowed {
			if strings.EqualFold(fieldVal.String(), a) {
				return nil
			}
		}
		return fmt.Errorf("field %s value %q is not one of %s", path, fieldVal.String(), strings.Join(allowed, ", "))
	})
}

// When applies v only if cond holds for the config.
func When(cond func(config interface{}) bool, v Validator) Validator {
	return ValidatorFunc(func(config interface{}) error {
		if !cond(config) {
			return nil
		}
		return v.Validate(config)
	})
}

// lookup resolves a dotted path of yaml names (or Go field names).
func lookup(config interface{}, path string) (reflect.Value, error) {
	current := reflect.ValueOf(config)
	for _, part := range strings.Split(path, ".") {
		if current.Kind() == reflect.Ptr {
			current = current.Elem()
		}
		if current.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field %s not found", path)
		}
		next := reflect.Value{}
		typ := current.Type()
		for i := 0; i < typ.NumField(); i++ {
			if f := typ.Field(i); keyName(f) == part || f.Name == part {
				next = current.Field(i)
				break
			}
		}
		if !next.IsValid() {
			return reflect.Value{}, fmt.Errorf("field %s not found", path)
		}
		current = next
	}
	return current, nil
}
