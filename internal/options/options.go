// Package options parses extended options given as namespace.key=value and
// applies them to structs tagged with `option`.
package options

import (
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fdl66/chongshan/internal/errors"
	"github.com/fdl66/chongshan/internal/ui"
)

// Options holds extended options, the keys are lower case.
type Options map[string]string

// Help describes one extended option.
type Help struct {
	Namespace string
	Name      string
	Text      string
}

var registered []Help

// Register makes the tagged fields of cfg known under namespace ns, so they
// are listed by List.
func Register(ns string, cfg interface{}) {
	registered = appendAllOptions(registered, ns, cfg)
}

// List returns all registered options, sorted by namespace and name.
func List() []Help {
	return append([]Help(nil), registered...)
}

func appendAllOptions(list []Help, ns string, cfg interface{}) []Help {
	for _, h := range listOptions(cfg) {
		h.Namespace = ns
		list = append(list, h)
	}

	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Namespace != list[j].Namespace {
			return list[i].Namespace < list[j].Namespace
		}
		return list[i].Name < list[j].Name
	})
	return list
}

// listOptions returns the tagged fields of cfg in declaration order.
func listOptions(cfg interface{}) (list []Help) {
	t := reflect.Indirect(reflect.ValueOf(cfg)).Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name := f.Tag.Get("option")
		if name == "" {
			continue
		}
		list = append(list, Help{Name: name, Text: f.Tag.Get("help")})
	}
	return list
}

// Parse builds Options from key=value strings. Giving the same key twice
// with different values is an error.
func Parse(in []string) (Options, error) {
	opts := make(Options, len(in))

	for _, s := range in {
		key, value, _ := strings.Cut(s, "=")
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		if key == "" {
			return Options{}, errors.Fatalf("empty key is not a valid option")
		}
		if v, ok := opts[key]; ok && v != value {
			return Options{}, errors.Fatalf("key %q present more than once", key)
		}
		opts[key] = value
	}

	return opts, nil
}

// Extract returns the options of namespace ns with the namespace stripped
// from the keys.
func (o Options) Extract(ns string) Options {
	ns = strings.TrimSuffix(ns, ".") + "."

	opts := make(Options)
	for k, v := range o {
		if rest, ok := strings.CutPrefix(k, ns); ok {
			opts[rest] = v
		}
	}
	return opts
}

// Namespaces returns the namespaces used by o.
func (o Options) Namespaces() []string {
	set := make(map[string]struct{})
	for k := range o {
		ns, _, _ := strings.Cut(k, ".")
		set[ns] = struct{}{}
	}

	list := make([]string, 0, len(set))
	for ns := range set {
		list = append(list, ns)
	}
	sort.Strings(list)
	return list
}

// Apply sets the fields of the struct dst points to from o, matching keys to
// `option` tags. ns is only used for error messages. Integer fields accept
// the size suffixes understood by ui.ParseBytes.
func (o Options) Apply(ns string, dst interface{}) error {
	v := reflect.ValueOf(dst).Elem()

	fields := make(map[string]int)
	for i := 0; i < v.NumField(); i++ {
		tag := v.Type().Field(i).Tag.Get("option")
		if tag == "" {
			continue
		}
		if _, ok := fields[tag]; ok {
			panic("option tag " + tag + " is not unique in " + v.Type().Name())
		}
		fields[tag] = i
	}

	for key, value := range o {
		i, ok := fields[key]
		if !ok {
			if ns != "" {
				key = ns + "." + key
			}
			return errors.Fatalf("option %v is not known", key)
		}

		if err := set(v.Field(i), value); err != nil {
			return errors.Fatalf("invalid value %q for option %v.%v: %v", value, ns, key, err)
		}
	}

	return nil
}

func set(field reflect.Value, value string) error {
	if field.Type() == reflect.TypeOf(time.Duration(0)) {
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		field.SetInt(int64(d))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int32, reflect.Int64:
		n, err := ui.ParseBytes(value)
		if err != nil {
			return err
		}
		if field.OverflowInt(n) {
			return strconv.ErrRange
		}
		field.SetInt(n)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	default:
		panic("type " + field.Type().String() + " not handled")
	}
	return nil
}
