package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"modelkeep/internal/api"
)

func runCommand(t *testing.T, address string, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--address", address}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestSearchCommandRendersTable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(api.SearchResponse{
			Items: []api.ModelInfo{
				{ID: 3, Name: "red cat", Path: "/library/red-cat.safetensors"},
			},
			TotalPage: 1,
		})
	}))
	defer srv.Close()

	out, err := runCommand(t, srv.URL, "search", "red cat")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if !strings.Contains(out, "red cat") || !strings.Contains(out, "page 1 of 1") {
		t.Fatalf("output = %q", out)
	}
}

func TestScanCommandPrintsAck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/maintenance/check" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		json.NewEncoder(w).Encode(api.CommonResponse{Msg: "Check started"})
	}))
	defer srv.Close()

	out, err := runCommand(t, srv.URL, "scan")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if !strings.Contains(out, "Check started") {
		t.Fatalf("output = %q", out)
	}
}

func TestRemoveCommandRejectsBadIDs(t *testing.T) {
	_, err := runCommand(t, "127.0.0.1:1", "rm", "notanumber")
	if err == nil || !strings.Contains(err.Error(), "invalid id") {
		t.Fatalf("err = %v", err)
	}
}

func TestConfigInitWritesSample(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")

	out, err := runCommand(t, "", "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, target) {
		t.Fatalf("output = %q", out)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("sample not written: %v", err)
	}

	if _, err := runCommand(t, "", "config", "init", "--path", target); err == nil {
		t.Fatal("second init without --overwrite should fail")
	}
}

func TestGuessFilename(t *testing.T) {
	cases := []struct {
		url  string
		want string
	}{
		{"https://example.com/files/model.safetensors", "model.safetensors"},
		{"https://example.com/files/model.safetensors?token=x", "model.safetensors"},
		{"https://example.com/api/download/12345", ""},
		{"://bad", ""},
	}
	for _, tc := range cases {
		if got := guessFilename(tc.url); got != tc.want {
			t.Errorf("guessFilename(%q) = %q, want %q", tc.url, got, tc.want)
		}
	}
}
