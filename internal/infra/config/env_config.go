package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrInvalidConfig is returned when the provided config is not a pointer to a struct
	// that embeds EnvConfig.
	ErrInvalidConfig = errors.New("config must be a pointer to a struct embedding EnvConfig")

	// ErrVarNotSet is returned when a required environment variable is not set and has no default.
	ErrVarNotSet = errors.New("env var not set")

	// ErrUnsupportedVarType is returned when trying to parse an environment variable
	// into an unsupported Go type.
	ErrUnsupportedVarType = errors.New("unsupported env var type")
)

//nolint:gochecknoglobals
var durationType = reflect.TypeOf(time.Duration(0))

// EnvConfig is a base type that must be embedded in configuration structs
// to enable environment variable parsing.
type EnvConfig struct {
	namespace string
}

// Namespace returns the prefix the configuration was parsed with.
func (c EnvConfig) Namespace() string {
	return c.namespace
}

//nolint:varnamelen
func getEnvConfig(cfg any) (*EnvConfig, error) {
	v := reflect.ValueOf(cfg)

	if v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Struct {
		return nil, ErrInvalidConfig
	}

	v = v.Elem()
	t := v.Type()

	for i := range t.NumField() {
		field := t.Field(i)
		//nolint:exhaustruct,forcetypeassert
		if field.Anonymous && field.Type == reflect.TypeOf(EnvConfig{}) {
			if ev := v.Field(i); ev.CanAddr() {
				return ev.Addr().Interface().(*EnvConfig), nil
			}
		}
	}

	return nil, ErrInvalidConfig
}

// Parse loads configuration values from environment variables into the provided struct.
// The struct must embed EnvConfig and use `env` tags to specify variable names.
// The namespace parameter is used as a prefix for all environment variables; shorter
// prefixes are tried when the most specific variable is not set.
// Supports string, signed and unsigned ints, float64, bool, time.Duration and
// comma-separated []string fields. Nested structs are supported via `envPrefix`.
func Parse(ctx context.Context, cfg any, namespace string) error {
	envConfig, err := getEnvConfig(cfg)
	if err != nil {
		return fmt.Errorf("get env config: %w", err)
	}

	envConfig.namespace = namespace

	return parse(namespace, "", cfg)
}

func parse(namespace, prefix string, c any) error {
	t := reflect.TypeOf(c).Elem()
	v := reflect.ValueOf(c).Elem()

	for i := range t.NumField() {
		field := t.Field(i)
		structField := v.Field(i)

		if !field.IsExported() {
			continue
		}

		if field.Type.Kind() == reflect.Struct {
			envPrefix := field.Tag.Get("envPrefix")

			if err := parse(namespace, prefix+envPrefix, structField.Addr().Interface()); err != nil {
				return err
			}

			continue
		}

		if err := parseField(namespace, prefix, field, structField); err != nil {
			return fmt.Errorf("parse field: %w", err)
		}
	}

	return nil
}

func lookupEnv(namespace, prefix, envTag string) (string, string, bool) {
	nsParts := strings.Split(namespace, "_")

	// most specific first, the bare name last
	for i := len(nsParts); i >= 0; i-- {
		envName := strings.Join(nsParts[:i], "_")

		if envName != "" {
			envName += "_"
		}

		envName = envName + prefix + envTag

		if envValue, ok := os.LookupEnv(envName); ok {
			return envName, envValue, true
		}
	}

	return "", "", false
}

func parseField(
	namespace string,
	prefix string,
	field reflect.StructField,
	structField reflect.Value,
) error {
	envTag := field.Tag.Get("env")
	if envTag == "" {
		return nil
	}

	defaultValue, hasDefault := field.Tag.Lookup("default")

	envName, envValue, envExists := lookupEnv(namespace, prefix, envTag)
	if !envExists {
		if !hasDefault {
			return fmt.Errorf("%w: %s", ErrVarNotSet, prefix+envTag)
		}

		envName = prefix + envTag
		envValue = defaultValue
	}

	if err := setValue(structField, envValue); err != nil {
		return fmt.Errorf("%s: %w", envName, err)
	}

	return nil
}

//nolint:cyclop,exhaustive
func setValue(structField reflect.Value, envValue string) error {
	if structField.Type() == durationType {
		d, err := time.ParseDuration(envValue)
		if err != nil {
			return fmt.Errorf("invalid duration: %w", err)
		}

		structField.SetInt(int64(d))

		return nil
	}

	switch structField.Kind() {
	case reflect.String:
		structField.SetString(envValue)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(envValue, 10, structField.Type().Bits())
		if err != nil {
			return fmt.Errorf("invalid int: %w", err)
		}

		structField.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(envValue, 10, structField.Type().Bits())
		if err != nil {
			return fmt.Errorf("invalid uint: %w", err)
		}

		structField.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(envValue, structField.Type().Bits())
		if err != nil {
			return fmt.Errorf("invalid float: %w", err)
		}

		structField.SetFloat(f)
	case reflect.Bool:
		b, err := strconv.ParseBool(envValue)
		if err != nil {
			return fmt.Errorf("invalid bool: %w", err)
		}

		structField.SetBool(b)
	case reflect.Slice:
		if structField.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("%w: %v", ErrUnsupportedVarType, structField.Type())
		}

		var items []string

		for _, item := range strings.Split(envValue, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}

		structField.Set(reflect.ValueOf(items))
	default:
		return fmt.Errorf("%w: %v", ErrUnsupportedVarType, structField.Kind())
	}

	return nil
}
