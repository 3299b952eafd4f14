package lib

import "testing"

func TestConfigAccessors(t *testing.T) {
	config := Config{
		"bucketsCount":      int64(32),
		"bucketSizeInBytes": 4096,
		"allocator":         "flist",
		"stats.enabled":     true,
	}

	if v := config.Int64("bucketsCount"); v != 32 {
		t.Errorf("expected 32, got %v", v)
	}
	if v := config.Int64("bucketSizeInBytes"); v != 4096 {
		t.Errorf("expected 4096, got %v", v)
	}
	if v := config.String("allocator"); v != "flist" {
		t.Errorf("expected flist, got %v", v)
	}
	if v := config.Bool("stats.enabled"); v != true {
		t.Errorf("expected true, got %v", v)
	}

	fn := func(key string) {
		defer func() {
			if recover() == nil {
				t.Errorf("expected panic for missing key %q", key)
			}
		}()
		config.Int64(key)
	}
	fn("missing")
}

func TestConfigSectionTrimFilter(t *testing.T) {
	config := Config{
		"stats.cachehit": int64(1),
		"stats.miss":     int64(2),
		"log.level":      "info",
	}

	stats := config.Section("stats.")
	if len(stats) != 2 {
		t.Errorf("expected 2 stats keys, got %v", len(stats))
	}

	trimmed := stats.Trim("stats.")
	if _, ok := trimmed["cachehit"]; !ok {
		t.Errorf("expected trimmed key cachehit")
	}

	filtered := config.Filter("level")
	if len(filtered) != 1 {
		t.Errorf("expected 1 filtered key, got %v", len(filtered))
	}
}

func TestMixinconfig(t *testing.T) {
	defaults := Config{"bucketsCount": int64(16), "allocator": "flist"}
	overrides := map[string]interface{}{"bucketsCount": int64(64)}

	merged := Mixinconfig(defaults, overrides)
	if v := merged.Int64("bucketsCount"); v != 64 {
		t.Errorf("expected override to win, got %v", v)
	}
	if v := merged.String("allocator"); v != "flist" {
		t.Errorf("expected default to survive, got %v", v)
	}
}
