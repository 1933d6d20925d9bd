package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
)

// applyEnvOverrides walks cfg's fields recursively and, for every field
// carrying an `env:"NAME"` tag, overwrites it with the parsed value of
// that environment variable when set. Struct and pointer-to-struct
// fields are recursed into; slices of string are split on commas.
func applyEnvOverrides(cfg *Config) error {
	return applyEnvOverridesValue(reflect.ValueOf(cfg).Elem())
}

func applyEnvOverridesValue(v reflect.Value) error {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fv := v.Field(i)
		if !fv.CanSet() {
			continue
		}
		switch fv.Kind() {
		case reflect.Struct:
			if err := applyEnvOverridesValue(fv); err != nil {
				return err
			}
			continue
		case reflect.Ptr:
			if fv.Elem().Kind() == reflect.Struct {
				if fv.IsNil() {
					continue
				}
				if err := applyEnvOverridesValue(fv.Elem()); err != nil {
					return err
				}
			}
			continue
		}

		envName := field.Tag.Get("env")
		if envName == "" {
			continue
		}
		raw, ok := os.LookupEnv(envName)
		if !ok {
			continue
		}
		if err := setFieldFromString(fv, raw); err != nil {
			return fmt.Errorf("field %s (env %s): %w", field.Name, envName, err)
		}
	}
	return nil
}

func setFieldFromString(fv reflect.Value, raw string) error {
	switch fv.Kind() {
	case reflect.String:
		if fv.Type() == reflect.TypeOf(SensitiveString("")) {
			fv.Set(reflect.ValueOf(SensitiveString(raw)))
			return nil
		}
		fv.SetString(raw)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		fv.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return err
		}
		fv.SetInt(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return err
		}
		fv.SetFloat(f)
	case reflect.Slice:
		if fv.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(raw, ",")
			out := reflect.MakeSlice(fv.Type(), len(parts), len(parts))
			for i, p := range parts {
				out.Index(i).SetString(strings.TrimSpace(p))
			}
			fv.Set(out)
		}
	}
	return nil
}
