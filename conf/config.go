package conf

/*
   conf wraps viper for the harvester. Configuration is read from a local.env
   file when one is found in a known location; any key missing from the file is
   looked up in the process environment and copied into conf so later reads do
   not go back to the OS.

   Assumptions:
   1. The configuration file is an env file
   2. The configuration file stays immutable while the application runs
   (exception is test, see SetEnv/UnsetEnv)
*/

import (
	"os"
	"reflect"
	"strconv"
	"testing"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// An instance of the viper struct containing the conf information. Only made
// accessible through public functions GetEnv, SetEnv, etc.
var envVars viper.Viper

const (
	configgood    uint8 = 0
	configbad     uint8 = 1
	noconfigfound uint8 = 2
)

var state uint8 = configgood

// Tag names understood by Checkout.
const (
	tagKey     = "conf"
	tagDefault = "conf_default"
)

func setup(dir string) *viper.Viper {
	var v = viper.New()
	v.SetConfigName("local")
	v.SetConfigType("env")
	v.AddConfigPath(dir)

	if err := v.ReadInConfig(); err != nil {
		state = configbad
	}

	return v
}

func init() {
	// Possible config file locations: explicit override, container mount, then
	// the working directory.
	var locations = []string{
		os.Getenv("XC_CONFIG_DIR"),
		"/go/src/github.com/CMSgov/xc-harvester/shared_files/decrypted",
		".",
	}

	if success, loc := findEnv(locations); success {
		envVars = *setup(loc)
	} else {
		state = noconfigfound
	}
}

// findEnv walks the candidate locations in order and returns the first one
// holding a local.env file.
func findEnv(location []string) (bool, string) {
	if len(location) == 0 {
		return false, ""
	}

	if location[0] != "" {
		if _, err := os.Stat(location[0] + "/local.env"); err == nil {
			return true, location[0]
		}
	}

	return findEnv(location[1:])
}

// GetEnv retrieves the value stored in conf. If it does not exist the empty
// string is returned.
func GetEnv(key string) string {
	if state == configgood {
		var value = envVars.GetString(key)

		if value == "" {
			var ok bool
			// Copy it over to conf to prevent additional OS calls.
			// UnsetEnv clears both copies.
			if value, ok = os.LookupEnv(key); ok {
				envVars.Set(key, value)
			}
		}

		return value
	}

	return os.Getenv(key)
}

// LookupEnv augments os.LookupEnv to look in conf first.
func LookupEnv(key string) (string, bool) {
	if state == configgood {
		if value := envVars.GetString(key); value != "" {
			return value, true
		}
		if v, exist := os.LookupEnv(key); exist {
			envVars.Set(key, v)
			return v, exist
		}
		return "", false
	}

	return os.LookupEnv(key)
}

// GetEnvInt returns the integer value of key, or defaultVal when the key is
// unset or not a number.
func GetEnvInt(key string, defaultVal int) int {
	v := GetEnv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

// FromEnv returns the value of key or otherwise when it is empty.
func FromEnv(key, otherwise string) string {
	if v := GetEnv(key); v != "" {
		return v
	}
	return otherwise
}

// SetEnv adds key values into conf. This function should only be used either in
// this package itself or testing. Protect parameter is type *testing.T, and is
// there to ensure developers knowingly use it in the appropriate scope.
func SetEnv(protect *testing.T, key string, value string) error {
	if state == configgood {
		envVars.Set(key, value)
		return nil
	}

	return os.Setenv(key, value)
}

// UnsetEnv "unsets" a variable. Like SetEnv, this should only be used either in
// this package itself or testing.
func UnsetEnv(protect *testing.T, key string) error {
	if state == configgood {
		envVars.Set(key, "")
	}

	// GetEnv copies environment values into conf, so both are cleared.
	return os.Unsetenv(key)
}

// Checkout populates the exported fields of the struct pointed to by v. Each
// field is read from the key named by its `conf` tag, or the field name when
// the tag is absent. A tag of "-" skips the field. When the key has no value the
// `conf_default` tag is used. Values are converted with mapstructure's weak
// typing so ints, bools, durations and comma-separated lists can be declared
// directly.
func Checkout(v interface{}) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Struct {
		return errors.Errorf("conf: Checkout requires a pointer to a struct, got %T", v)
	}

	values := make(map[string]interface{})
	collect(rv.Elem().Type(), values)

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
		WeaklyTypedInput: true,
		TagName:          tagKey,
		Squash:           true,
		Result:           v,
	})
	if err != nil {
		return errors.Wrap(err, "conf: failed to build decoder")
	}

	if err := decoder.Decode(values); err != nil {
		return errors.Wrap(err, "conf: failed to decode configuration")
	}

	return nil
}

func collect(t reflect.Type, values map[string]interface{}) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)

		if f.Anonymous && f.Type.Kind() == reflect.Struct {
			collect(f.Type, values)
			continue
		}
		if f.PkgPath != "" {
			continue
		}

		key := f.Tag.Get(tagKey)
		if key == "-" {
			continue
		}
		if key == "" {
			key = f.Name
		}

		if val := GetEnv(key); val != "" {
			values[key] = val
		} else if def, ok := f.Tag.Lookup(tagDefault); ok {
			values[key] = def
		}
	}
}
