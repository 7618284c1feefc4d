// Package configutil loads json5 configuration in layers: defaults, `<name>.<ext>`,
// `<name>.local.<ext>` and finally environment variables named by `env` struct tags.
package configutil

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"dario.cat/mergo"
	"github.com/titanous/json5"
)

// LocalName returns the path of the uncommitted override file for name,
// `config.json5` becomes `config.local.json5`.
func LocalName(name string) string {
	ext := filepath.Ext(name)
	return strings.TrimSuffix(name, ext) + ".local" + ext
}

func readLayer[T any](path string) (T, bool, error) {
	var out T
	contents, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return out, false, nil
	}
	if err != nil {
		return out, false, err
	}
	if len(contents) == 0 {
		return out, false, nil
	}
	err = json5.Unmarshal(contents, &out)
	if err != nil {
		return out, false, fmt.Errorf("parse %s: %w", path, err)
	}
	return out, true, nil
}

// ReadConfig reads name and its local override file, fields set in the override win. It
// returns os.ErrNotExist when neither file exists.
func ReadConfig[T any](name string) (T, error) {
	var out T
	found := false
	for _, path := range []string{name, LocalName(name)} {
		layer, ok, err := readLayer[T](path)
		if err != nil {
			return out, err
		}
		if !ok {
			continue
		}
		if found {
			slog.Info("merging config with local overrides", "local", path)
		}
		out, err = Merge(out, layer)
		if err != nil {
			return out, err
		}
		found = true
	}
	if !found {
		return out, os.ErrNotExist
	}
	return out, nil
}

// ReadRecursively is ReadConfig but it walks up from the working directory until it finds
// a directory containing name.
func ReadRecursively[T any](name string) (T, error) {
	var out T
	dir, err := os.Getwd()
	if err != nil {
		return out, err
	}
	for {
		config, err := ReadConfig[T](filepath.Join(dir, name))
		if err == nil {
			return config, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return out, err
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return out, os.ErrNotExist
		}
		dir = parent
	}
}

// Merge returns base with every non-zero field of override written over it.
func Merge[T any](base, override T) (T, error) {
	err := mergo.Merge(&base, override, mergo.WithOverride)
	if err != nil {
		return base, fmt.Errorf("merge config: %w", err)
	}
	return base, nil
}

// Load layers defaults, the config files for name (both may be missing) and the environment.
func Load[T any](name string, defaults T) (T, error) {
	config := defaults

	file, err := ReadConfig[T](name)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return config, fmt.Errorf("read config: %w", err)
	}
	if err == nil {
		config, err = Merge(config, file)
		if err != nil {
			return config, err
		}
	}

	return ApplyEnv(config, os.LookupEnv)
}

// ApplyEnv overwrites every field tagged `env:"NAME"` with the value of NAME, nested structs
// are walked. Unset and empty variables leave the field alone.
func ApplyEnv[T any](config T, lookup func(string) (string, bool)) (T, error) {
	value := reflect.ValueOf(&config).Elem()
	if value.Kind() != reflect.Struct {
		return config, fmt.Errorf("apply env: %s is not a struct", value.Type())
	}
	err := applyEnv(value, lookup)
	return config, err
}

func applyEnv(value reflect.Value, lookup func(string) (string, bool)) error {
	t := value.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		fieldValue := value.Field(i)

		name := field.Tag.Get("env")
		if name == "" {
			if fieldValue.Kind() == reflect.Struct {
				err := applyEnv(fieldValue, lookup)
				if err != nil {
					return err
				}
			}
			continue
		}

		raw, ok := lookup(name)
		if !ok || raw == "" {
			continue
		}
		err := setField(fieldValue, raw)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

func setField(field reflect.Value, raw string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(raw)
	case reflect.Bool:
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		field.SetBool(parsed)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		parsed, err := strconv.ParseInt(raw, 10, field.Type().Bits())
		if err != nil {
			return err
		}
		field.SetInt(parsed)
	default:
		return fmt.Errorf("unsupported field kind %s", field.Kind())
	}
	return nil
}
