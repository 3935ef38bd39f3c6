package log

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"
)

var testBuf bytes.Buffer

func TestMain(m *testing.M) {
	// Configure runs once per process, so the whole package shares
	// this buffer-backed logger.
	Configure(Config{Level: "debug", Output: &testBuf, Service: "weft-test"})
	os.Exit(m.Run())
}

func lastLine(t *testing.T) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(testBuf.String()), "\n")
	if len(lines) == 0 {
		t.Fatal("no log output")
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	return entry
}

func TestBaseCarriesService(t *testing.T) {
	testBuf.Reset()
	Base().Info().Msg("hello")

	entry := lastLine(t)
	if entry["service"] != "weft-test" {
		t.Errorf("service = %v, want weft-test", entry["service"])
	}
	if entry["message"] != "hello" {
		t.Errorf("message = %v, want hello", entry["message"])
	}
	if _, ok := entry["time"]; !ok {
		t.Error("entry should carry a timestamp")
	}
}

func TestWithComponent(t *testing.T) {
	testBuf.Reset()
	WithComponent("live").Info().Msg("session started")

	entry := lastLine(t)
	if entry[FieldComponent] != "live" {
		t.Errorf("component = %v, want live", entry[FieldComponent])
	}
}

func TestDerive(t *testing.T) {
	testBuf.Reset()
	l := Derive(nil)
	l.Info().Msg("plain")
	if entry := lastLine(t); entry["service"] != "weft-test" {
		t.Errorf("service = %v, want weft-test", entry["service"])
	}
}

func TestConfigureRunsOnce(t *testing.T) {
	testBuf.Reset()
	var other bytes.Buffer
	Configure(Config{Output: &other})

	Base().Info().Msg("still here")
	if other.Len() != 0 {
		t.Error("second Configure should be a no-op")
	}
	if testBuf.Len() == 0 {
		t.Error("original output should still receive logs")
	}
}
