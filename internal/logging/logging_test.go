package logging

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSetupWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "server.log")
	closer := Setup(path)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })

	log.Printf("[test] hello %d", 42)
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "[test] hello 42") {
		t.Errorf("log line missing from file: %q", data)
	}
}

func TestSetupWithoutFile(t *testing.T) {
	closer := Setup("")
	if err := closer.Close(); err != nil {
		t.Errorf("expected nil close error, got %v", err)
	}
}
