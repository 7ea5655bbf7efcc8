package feeders

import (
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/golobby/cast"
)

// EnvFeeder reads environment variables named PREFIX_TAG for every field
// carrying an `env` tag. Nested structs extend the prefix with their own
// env tag, when they have one.
type EnvFeeder struct {
	Prefix  string
	tracker FieldTracker
	lookup  func(string) (string, bool)
}

// NewEnvFeeder creates a feeder for variables starting with prefix.
func NewEnvFeeder(prefix string) *EnvFeeder {
	return &EnvFeeder{Prefix: prefix, lookup: os.LookupEnv}
}

func (f *EnvFeeder) SetFieldTracker(tracker FieldTracker) { f.tracker = tracker }

// Feed populates structure from the environment. Empty variables are ignored.
func (f *EnvFeeder) Feed(structure any) error {
	rv, ok := structPointer(structure)
	if !ok {
		return wrapStructureError(structure)
	}
	if f.Prefix == "" {
		return ErrEmptyPrefix
	}
	if f.lookup == nil {
		f.lookup = os.LookupEnv
	}
	return f.processStruct(rv, strings.ToUpper(strings.TrimSuffix(f.Prefix, "_")), "")
}

func (f *EnvFeeder) processStruct(rv reflect.Value, prefix, path string) error {
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		if !sf.IsExported() {
			continue
		}
		field := rv.Field(i)
		fieldPath := joinPath(path, sf.Name)
		tag, hasTag := sf.Tag.Lookup("env")

		if field.Kind() == reflect.Struct {
			nested := prefix
			if hasTag && tag != "" {
				nested = prefix + "_" + strings.ToUpper(tag)
			}
			if err := f.processStruct(field, nested, fieldPath); err != nil {
				return err
			}
			continue
		}
		if !hasTag || tag == "" || tag == "-" {
			continue
		}

		name := prefix + "_" + strings.ToUpper(tag)
		value, ok := f.lookup(name)
		if !ok || value == "" {
			continue
		}
		if err := setFieldValue(field, name, value); err != nil {
			return fmt.Errorf("error in field '%s': %w", sf.Name, err)
		}
		if f.tracker != nil {
			f.tracker.RecordFieldPopulation(FieldPopulation{
				FieldPath:  fieldPath,
				FieldName:  sf.Name,
				FieldType:  sf.Type.String(),
				FeederType: "EnvFeeder",
				SourceType: SourceEnv,
				SourceKey:  name,
				Value:      field.Interface(),
			})
		}
	}
	return nil
}

// setFieldValue converts raw with golobby/cast and assigns it. Slices are
// read as comma separated lists.
func setFieldValue(field reflect.Value, key, raw string) error {
	if !field.CanSet() {
		return ErrFieldNotSettable
	}
	if field.Kind() == reflect.Slice {
		parts := strings.Split(raw, ",")
		slice := reflect.MakeSlice(field.Type(), 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			v, err := convert(p, field.Type().Elem())
			if err != nil {
				return wrapConversionError(key, raw, field.Type().String(), err)
			}
			slice = reflect.Append(slice, v)
		}
		field.Set(slice)
		return nil
	}
	v, err := convert(raw, field.Type())
	if err != nil {
		return wrapConversionError(key, raw, field.Type().String(), err)
	}
	field.Set(v)
	return nil
}

func convert(raw string, t reflect.Type) (reflect.Value, error) {
	converted, err := cast.FromType(raw, t)
	if err != nil {
		return reflect.Value{}, err
	}
	v := reflect.ValueOf(converted)
	if !v.IsValid() {
		return reflect.Value{}, fmt.Errorf("unsupported type %s", t)
	}
	if v.Type() != t {
		if !v.Type().ConvertibleTo(t) {
			return reflect.Value{}, fmt.Errorf("%s is not convertible to %s", v.Type(), t)
		}
		v = v.Convert(t)
	}
	return v, nil
}
