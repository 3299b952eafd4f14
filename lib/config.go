package lib

import (
	"fmt"
	"strings"
)

// Config is a map-backed settings bag: plain maps, composed with
// Section/Trim/Filter, rather than a struct-per-component configuration
// type.
type Config map[string]interface{}

// Section returns a new Config containing only the keys starting with
// prefix.
func (config Config) Section(prefix string) Config {
	section := make(Config)
	for key, value := range config {
		if strings.HasPrefix(key, prefix) {
			section[key] = value
		}
	}
	return section
}

// Trim strips prefix off every key.
func (config Config) Trim(prefix string) Config {
	trimmed := make(Config)
	for key, value := range config {
		trimmed[strings.TrimPrefix(key, prefix)] = value
	}
	return trimmed
}

// Filter returns a new Config containing only the keys that contain subs.
func (config Config) Filter(subs string) Config {
	subconfig := make(Config)
	for key, value := range config {
		if strings.Contains(key, subs) {
			subconfig[key] = value
		}
	}
	return subconfig
}

// Bool fetches a required bool setting, panicking if missing or of the
// wrong type.
func (config Config) Bool(key string) bool {
	value, ok := config[key]
	if !ok {
		panic(fmt.Errorf("config: missing %q", key))
	}
	val, ok := value.(bool)
	if !ok {
		panic(fmt.Errorf("config: %q not a bool: %T", key, value))
	}
	return val
}

// Int64 fetches a required integer-ish setting as int64.
func (config Config) Int64(key string) int64 {
	value, ok := config[key]
	if !ok {
		panic(fmt.Errorf("config: missing %q", key))
	}
	switch val := value.(type) {
	case int64:
		return val
	case int:
		return int64(val)
	case int32:
		return int64(val)
	case int16:
		return int64(val)
	case int8:
		return int64(val)
	case uint:
		return int64(val)
	case uint64:
		return int64(val)
	case uint32:
		return int64(val)
	case uint16:
		return int64(val)
	case uint8:
		return int64(val)
	case float64:
		return int64(val)
	case float32:
		return int64(val)
	}
	panic(fmt.Errorf("config: %q not a number: %T", key, value))
}

// Uint32 fetches a required integer-ish setting as uint32.
func (config Config) Uint32(key string) uint32 {
	return uint32(config.Int64(key))
}

// String fetches a required string setting.
func (config Config) String(key string) string {
	value, ok := config[key]
	if !ok {
		panic(fmt.Errorf("config: missing %q", key))
	}
	val, ok := value.(string)
	if !ok {
		panic(fmt.Errorf("config: %q not a string: %T", key, value))
	}
	return val
}

// Int64OrDefault is like Int64 but returns def when key is absent.
func (config Config) Int64OrDefault(key string, def int64) int64 {
	if _, ok := config[key]; !ok {
		return def
	}
	return config.Int64(key)
}

// StringOrDefault is like String but returns def when key is absent.
func (config Config) StringOrDefault(key string, def string) string {
	if _, ok := config[key]; !ok {
		return def
	}
	return config.String(key)
}

// Mixinconfig merges any number of Config or map[string]interface{} values,
// later values winning on key collision. Used to layer defaults,
// environment and caller overrides.
func Mixinconfig(configs ...interface{}) Config {
	update := func(dst Config, src map[string]interface{}) Config {
		for key, value := range src {
			dst[key] = value
		}
		return dst
	}
	dst := make(Config)
	for _, config := range configs {
		switch cnf := config.(type) {
		case Config:
			dst = update(dst, map[string]interface{}(cnf))
		case map[string]interface{}:
			dst = update(dst, cnf)
		}
	}
	return dst
}
