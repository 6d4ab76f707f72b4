// Package config loads service configuration from struct tag defaults,
// an optional YAML or JSON file, and environment variables. Values are
// resolved in priority order:
//
//	envDefault struct tags  (lowest priority)
//	YAML/JSON config file  (medium priority)
//	Environment variables  (highest priority)
//
// Tenant and client identifiers usually arrive as deployment secrets, so
// the environment always wins over anything baked into a file.
//
// # Struct Tags
//
//   - `env:"VAR_NAME"` maps the field to an environment variable. On a
//     nested struct the tag becomes a prefix for the struct's fields.
//   - `envDefault:"value"` sets a default when the field is zero-valued.
//   - `required:"true"` fails validation if the field is still zero after loading.
//
// File loading goes through the `yaml` or `json` tags.
//
// # Usage
//
//	type GatewayConfig struct {
//	    Addr string      `env:"ADDR" envDefault:":8080" yaml:"addr"`
//	    Auth auth.Config `yaml:"auth"`
//	}
//
//	cfg := config.MustLoad[GatewayConfig](
//	    config.New().WithFile("gateway.yaml"),
//	)
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	sserr "github.com/StricklySoft/compliance-auth/pkg/errors"
)

// time.Duration has Kind() == Int64, so it must be told apart from int64.
var durationType = reflect.TypeOf(time.Duration(0))

// LookupFunc resolves an environment variable. It has the signature of
// [os.LookupEnv].
type LookupFunc func(key string) (string, bool)

// Loader resolves configuration into a struct. Use [New] and the With*
// methods to configure it, then call [Loader.Load].
//
// Loader is not safe for concurrent use.
type Loader struct {
	envPrefix string
	filePath  string
	lookup    LookupFunc
}

// New returns a Loader that reads the process environment with no
// prefix and no file.
func New() *Loader {
	return &Loader{lookup: os.LookupEnv}
}

// WithEnvPrefix prepends prefix and an underscore to every environment
// variable name. The prefix is uppercased; empty disables prefixing.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = strings.ToUpper(prefix)
	return l
}

// WithFile sets a YAML (.yaml, .yml) or JSON (.json) file to read. A
// missing file is not an error. Paths containing ".." are rejected at
// load time.
func (l *Loader) WithFile(path string) *Loader {
	l.filePath = path
	return l
}

// WithLookup replaces the environment source. Tests use it to feed a
// map instead of mutating the process environment.
func (l *Loader) WithLookup(fn LookupFunc) *Loader {
	if fn == nil {
		fn = os.LookupEnv
	}
	l.lookup = fn
	return l
}

// Load populates cfg, which must be a non-nil pointer to a struct, and
// validates the result. Loading failures carry
// [sserr.CodeInternalConfiguration]; a missing required field carries
// [sserr.CodeValidationRequired]; a failing [Validator] carries its own
// code, or [sserr.CodeValidation] if it returned a plain error.
func (l *Loader) Load(cfg any) error {
	rv, err := structValue(cfg)
	if err != nil {
		return err
	}

	if err := walk(rv, "", l.envPrefix, applyDefault); err != nil {
		return err
	}

	if l.filePath != "" {
		if err := l.loadFile(cfg); err != nil {
			return err
		}
	}

	if err := walk(rv, "", l.envPrefix, l.applyEnv); err != nil {
		return err
	}

	return validate(cfg, rv)
}

// MustLoad loads a T or panics. Use it in main, where a broken
// configuration should stop the process before it serves traffic.
func MustLoad[T any](loader *Loader) T {
	var cfg T
	if err := loader.Load(&cfg); err != nil {
		panic(fmt.Sprintf("config: MustLoad failed: %v", err))
	}
	return cfg
}

// Variable describes one environment variable a configuration struct
// reads.
type Variable struct {
	Key      string
	Field    string
	Default  string
	Required bool
}

// Variables lists every environment variable cfg reads, sorted by key.
// cfg may be a struct or a pointer to one; it is not modified.
func (l *Loader) Variables(cfg any) ([]Variable, error) {
	rv := reflect.ValueOf(cfg)
	if rv.Kind() == reflect.Pointer && !rv.IsNil() {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, sserr.New(sserr.CodeInternalConfiguration,
			"config: Variables requires a struct")
	}
	// Walk a settable copy so unexported-field checks match Load.
	cp := reflect.New(rv.Type()).Elem()

	var vars []Variable
	err := walk(cp, "", l.envPrefix, func(f field) error {
		if f.envKey == "" {
			return nil
		}
		vars = append(vars, Variable{
			Key:      f.envKey,
			Field:    f.path,
			Default:  f.sf.Tag.Get("envDefault"),
			Required: f.sf.Tag.Get("required") == "true",
		})
		return nil
	})
	sort.Slice(vars, func(i, j int) bool { return vars[i].Key < vars[j].Key })
	return vars, err
}

func structValue(cfg any) (reflect.Value, error) {
	rv := reflect.ValueOf(cfg)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return rv, sserr.New(sserr.CodeInternalConfiguration,
			"config: Load requires a non-nil pointer to a struct")
	}
	rv = rv.Elem()
	if rv.Kind() != reflect.Struct {
		return rv, sserr.New(sserr.CodeInternalConfiguration,
			"config: Load requires a pointer to a struct")
	}
	return rv, nil
}

func (l *Loader) loadFile(cfg any) error {
	if strings.Contains(l.filePath, "..") {
		return sserr.New(sserr.CodeInternalConfiguration,
			"config: file path must not contain directory traversal (..) sequences")
	}

	data, err := os.ReadFile(l.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return sserr.Wrapf(err, sserr.CodeInternalConfiguration,
			"config: failed to read file %q", l.filePath)
	}

	switch ext := strings.ToLower(filepath.Ext(l.filePath)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return sserr.Wrapf(err, sserr.CodeInternalConfiguration,
				"config: failed to parse YAML file %q", l.filePath)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return sserr.Wrapf(err, sserr.CodeInternalConfiguration,
				"config: failed to parse JSON file %q", l.filePath)
		}
	default:
		return sserr.Newf(sserr.CodeInternalConfiguration,
			"config: unsupported file extension %q (use .yaml, .yml, or .json)", ext)
	}
	return nil
}

// field is one settable leaf of a configuration struct.
type field struct {
	value  reflect.Value
	sf     reflect.StructField
	path   string // dotted Go path, e.g. "Auth.TenantID"
	envKey string // fully prefixed variable name, empty if untagged
}

// walk visits every settable leaf of rv depth-first. A nested struct's
// env tag is appended to prefix for its children; time.Duration counts
// as a leaf.
func walk(rv reflect.Value, path, prefix string, fn func(field) error) error {
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		v := rv.Field(i)
		sf := rt.Field(i)
		if !v.CanSet() {
			continue
		}

		p := sf.Name
		if path != "" {
			p = path + "." + sf.Name
		}
		tag := sf.Tag.Get("env")

		if v.Kind() == reflect.Struct && sf.Type != durationType {
			if err := walk(v, p, joinKey(prefix, tag), fn); err != nil {
				return err
			}
			continue
		}

		f := field{value: v, sf: sf, path: p}
		if tag != "" {
			f.envKey = joinKey(prefix, tag)
		}
		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}

func joinKey(prefix, key string) string {
	switch {
	case key == "":
		return prefix
	case prefix == "":
		return key
	default:
		return prefix + "_" + key
	}
}

func applyDefault(f field) error {
	def := f.sf.Tag.Get("envDefault")
	if def == "" || !f.value.IsZero() {
		return nil
	}
	if err := setField(f.value, def); err != nil {
		return sserr.Wrapf(err, sserr.CodeInternalConfiguration,
			"config: failed to apply default for field %q", f.path)
	}
	return nil
}

func (l *Loader) applyEnv(f field) error {
	if f.envKey == "" {
		return nil
	}
	val, ok := l.lookup(f.envKey)
	if !ok {
		return nil
	}
	if err := setField(f.value, val); err != nil {
		return sserr.Wrapf(err, sserr.CodeInternalConfiguration,
			"config: failed to set field %q from env var %q", f.path, f.envKey)
	}
	return nil
}

// setField parses value into v. Supported kinds: string (including named
// string types such as Secret), bool, signed and unsigned integers,
// float64, time.Duration and comma-separated []string.
func setField(v reflect.Value, value string) error {
	if v.Type() == durationType {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("cannot parse duration %q: %w", value, err)
		}
		v.SetInt(int64(d))
		return nil
	}

	switch v.Kind() {
	case reflect.String:
		v.SetString(value)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("cannot parse bool %q: %w", value, err)
		}
		v.SetBool(b)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(value, 10, v.Type().Bits())
		if err != nil {
			return fmt.Errorf("cannot parse integer %q: %w", value, err)
		}
		v.SetInt(n)

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(value, 10, v.Type().Bits())
		if err != nil {
			return fmt.Errorf("cannot parse unsigned integer %q: %w", value, err)
		}
		v.SetUint(n)

	case reflect.Float32, reflect.Float64:
		n, err := strconv.ParseFloat(value, v.Type().Bits())
		if err != nil {
			return fmt.Errorf("cannot parse float %q: %w", value, err)
		}
		v.SetFloat(n)

	case reflect.Slice:
		if v.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice element type %s", v.Type().Elem().Kind())
		}
		parts := strings.Split(value, ",")
		// MakeSlice keeps named slice types (type Roles []string) assignable.
		s := reflect.MakeSlice(v.Type(), 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			s = reflect.Append(s, reflect.ValueOf(p).Convert(v.Type().Elem()))
		}
		v.Set(s)

	default:
		return fmt.Errorf("unsupported field type %s", v.Kind())
	}
	return nil
}
