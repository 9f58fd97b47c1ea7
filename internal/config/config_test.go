package config

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func env(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestDefaults(t *testing.T) {
	cfg, err := FromLookup(env(nil))
	if err != nil {
		t.Fatalf("FromLookup: %v", err)
	}
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("config (-want +got):\n%s", diff)
	}
	if cfg.Addr() != ":8080" {
		t.Errorf("Addr = %q", cfg.Addr())
	}
}

func TestOverrides(t *testing.T) {
	cfg, err := FromLookup(env(map[string]string{
		"PORT":             "9090",
		"UPLOAD_DIR":       "/tmp/in",
		"SESSION_TTL":      "1h",
		"MAX_UPLOAD_MB":    "10",
		"SIGNATURE_SCALE":  "0.25",
		"TEXT_SIZE":        "18",
		"FRONTEND_URL":     "https://app.example.com",
		"CLEANUP_INTERVAL": "",
	}))
	if err != nil {
		t.Fatalf("FromLookup: %v", err)
	}
	want := Default()
	want.Port = 9090
	want.UploadDir = "/tmp/in"
	want.SessionTTL = time.Hour
	want.MaxUploadBytes = 10 << 20
	want.SignatureScale = 0.25
	want.TextSize = 18
	want.FrontendURL = "https://app.example.com"
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config (-want +got):\n%s", diff)
	}
}

func TestInvalidValues(t *testing.T) {
	_, err := FromLookup(env(map[string]string{
		"PORT":            "eighty",
		"RENDER_YIELD":    "soon",
		"SIGNATURE_SCALE": "3",
	}))
	if err == nil {
		t.Fatal("FromLookup accepted invalid values")
	}
	for _, key := range []string{"PORT", "RENDER_YIELD", "SIGNATURE_SCALE"} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("error %q does not mention %s", err, key)
		}
	}
}
