package main

import (
	"bytes"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"podforge/internal/api"
	"podforge/internal/broadcast"
	"podforge/internal/config"
	"podforge/internal/daemon"
	"podforge/internal/extract"
	"podforge/internal/script"
	"podforge/internal/storage"
	"podforge/internal/store"
	"podforge/internal/testsupport"
	"podforge/internal/workflow"
)

type cliTestEnv struct {
	cfg        *config.Config
	store      *store.Store
	server     *httptest.Server
	configPath string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	homeDir := filepath.Join(t.TempDir(), "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	cfg := testsupport.NewConfig(t, testsupport.WithToken("cli-token"))

	st := testsupport.MustOpenStore(t, cfg)
	mgr := workflow.NewManager(st, nil, nil)
	hub := broadcast.NewHub(st, cfg.SubscribePollInterval(), nil)
	d, err := daemon.New(cfg, daemon.Deps{
		Store:    st,
		Workflow: mgr,
		API: api.NewService(st, mgr, hub, cfg.API.BaseURL, nil).WithPreviews(api.Previews{
			Extractor: extract.New(cfg, nil),
			Scripts:   script.NewGenerator(nil, 1, nil),
		}),
		Layout: storage.NewLayout(cfg.Paths.StorageDir),
	})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	server := httptest.NewServer(d.Handler())
	t.Cleanup(server.Close)

	configPath := filepath.Join(homeDir, ".config", "podforge", "config.toml")
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{cfg: cfg, store: st, server: server, configPath: configPath}
}

func runCLI(t *testing.T, args []string, addr, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if addr != "" {
		flags = append(flags, "--addr", addr)
	}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(`[paths]
data_dir = %q
storage_dir = %q
upload_dir = %q
music_dir = %q
voice_samples_dir = %q
log_dir = %q

[api]
bind = %q
token = %q
base_url = %q
`,
		cfg.Paths.DataDir,
		cfg.Paths.StorageDir,
		cfg.Paths.UploadDir,
		cfg.Paths.MusicDir,
		cfg.Paths.VoiceSamplesDir,
		cfg.Paths.LogDir,
		cfg.API.Bind,
		cfg.API.Token,
		cfg.API.BaseURL,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
