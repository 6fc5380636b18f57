package yamlconfig

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/goliatone/go-webhooks/core"
)

const sampleConfig = `
service_name: webhooks-test
database:
  driver: postgres
  dsn: ${WEBHOOKS_DSN}
http:
  addr: ":9090"
  event_token: Bearer registry-token
transport:
  max_response_body_bytes: 1024
  throttle_targets: true
security:
  app_key: ${WEBHOOKS_APP_KEY}
  key_id: app-key-2
redis:
  addr: ${WEBHOOKS_REDIS}
metrics:
  enabled: true
`

func TestFileLoader_ExpandsEnvironment(t *testing.T) {
	env := map[string]string{"WEBHOOKS_DSN": "postgres://u:p@db/webhooks?sslmode=disable"}
	loader := &FileLoader{
		Path: "config.yaml",
		FS:   fstest.MapFS{"config.yaml": {Data: []byte(sampleConfig)}},
		Lookup: func(name string) (string, bool) {
			value, ok := env[name]
			return value, ok
		},
	}

	raw, err := loader.LoadRaw(context.Background())
	if err != nil {
		t.Fatalf("load raw: %v", err)
	}
	database, ok := raw["database"].(map[string]any)
	if !ok {
		t.Fatalf("expected nested database map, got %T", raw["database"])
	}
	if database["dsn"] != env["WEBHOOKS_DSN"] {
		t.Fatalf("expected dsn from environment, got %v", database["dsn"])
	}
	redis := raw["redis"].(map[string]any)
	if redis["addr"] != nil && redis["addr"] != "" {
		t.Fatalf("expected unset variable to expand empty, got %v", redis["addr"])
	}
}

func TestFileLoader_FeedsCfgxProvider(t *testing.T) {
	loader := &FileLoader{
		Path:   "config.yaml",
		FS:     fstest.MapFS{"config.yaml": {Data: []byte(sampleConfig)}},
		Lookup: func(string) (string, bool) { return "", false },
	}

	cfg, err := core.NewCfgxConfigProvider(loader).Load(context.Background(), core.DefaultConfig())
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.ServiceName != "webhooks-test" {
		t.Fatalf("expected service name from file, got %q", cfg.ServiceName)
	}
	if cfg.Database.Driver != "postgres" {
		t.Fatalf("expected postgres driver, got %q", cfg.Database.Driver)
	}
	if cfg.HTTP.Addr != ":9090" {
		t.Fatalf("expected http addr from file, got %q", cfg.HTTP.Addr)
	}
	if cfg.Transport.MaxResponseBodyBytes != 1024 {
		t.Fatalf("expected body limit 1024, got %d", cfg.Transport.MaxResponseBodyBytes)
	}
	if !cfg.Metrics.Enabled {
		t.Fatalf("expected metrics enabled")
	}
	if !cfg.Transport.ThrottleTargets {
		t.Fatalf("expected target throttling enabled")
	}
	if cfg.HTTP.EventToken != "Bearer registry-token" {
		t.Fatalf("expected event token from file, got %q", cfg.HTTP.EventToken)
	}
	if cfg.Security.AppKey != "" || cfg.Security.KeyID != "app-key-2" {
		t.Fatalf("expected unset app key and key id from file, got %#v", cfg.Security)
	}
}

func TestFileLoader_MissingFile(t *testing.T) {
	optional := &FileLoader{Path: "missing.yaml", Optional: true, FS: fstest.MapFS{}}
	raw, err := optional.LoadRaw(context.Background())
	if err != nil {
		t.Fatalf("optional missing file: %v", err)
	}
	if len(raw) != 0 {
		t.Fatalf("expected empty config, got %#v", raw)
	}

	required := &FileLoader{Path: "missing.yaml", FS: fstest.MapFS{}}
	if _, err := required.LoadRaw(context.Background()); err == nil {
		t.Fatalf("expected missing required file to fail")
	}
}

func TestParse_RejectsInvalidYAML(t *testing.T) {
	if _, err := Parse([]byte("service_name: [unterminated"), nil); err == nil {
		t.Fatalf("expected parse error")
	}
	raw, err := Parse(nil, nil)
	if err != nil || len(raw) != 0 {
		t.Fatalf("expected empty map for empty document, got %#v, %v", raw, err)
	}
}
