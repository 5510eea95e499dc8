package logger

import "testing"

func TestConfigOptions(t *testing.T) {
	cfg := config(true, true)
	if cfg.Encoding != "json" || cfg.Level.Level().String() != "debug" {
		t.Fatalf("unexpected base config: %s %s", cfg.Encoding, cfg.Level.Level())
	}

	WithOutput("stderr")(&cfg)
	WithService("hire-intake")(&cfg)

	if len(cfg.OutputPaths) != 1 || cfg.OutputPaths[0] != "stderr" {
		t.Fatalf("output paths = %v", cfg.OutputPaths)
	}
	if cfg.InitialFields[FieldService] != "hire-intake" {
		t.Fatalf("initial fields = %v", cfg.InitialFields)
	}

	plain := config(false, false)
	WithOutput()(&plain)
	WithService("")(&plain)
	if plain.Encoding != "console" || plain.OutputPaths[0] != "stdout" || plain.InitialFields != nil {
		t.Fatalf("empty options changed config: %+v", plain)
	}
}

func TestNew(t *testing.T) {
	log, err := New(false, false, WithOutput("stderr"), WithService("hire-intake"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if log.Core().Enabled(-1) {
		t.Fatal("debug must be disabled without the debug flag")
	}
}
