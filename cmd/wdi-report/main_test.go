package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Sternrassler/wdi-report/internal/testutil"
	"github.com/Sternrassler/wdi-report/pkg/dataset"
	"github.com/Sternrassler/wdi-report/pkg/pipeline"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out, "wdi-report ") {
		t.Errorf("unexpected version output %q", out)
	}
}

func TestRunCmd_FileSource(t *testing.T) {
	dir := t.TempDir()
	raw := filepath.Join(dir, "raw.json")
	if err := dataset.Save(raw, testutil.IncomeGroupObservations(2000, 2022)); err != nil {
		t.Fatalf("save records: %v", err)
	}

	report := filepath.Join(dir, "report.pdf")
	out, err := execute(t, "run",
		"--source", "file",
		"--input", raw,
		"--figure", filepath.Join(dir, "fig1.png"),
		"--report", report,
		"--table-out", filepath.Join(dir, "table.csv"),
		"--log-level", "error",
	)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	for _, want := range []string{"Records:  115", "Years:    2000-2022", "Report:   " + report} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRunCmd_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "unknown source", args: []string{"run", "--source", "ftp"}, want: "unknown source"},
		{name: "file without input", args: []string{"run", "--source", "file"}, want: "requires input"},
		{name: "bad policy", args: []string{"run", "--on-http-error", "retry"}, want: "on_http_error"},
		{name: "missing config", args: []string{"run", "--config", "/nonexistent/wdi.yaml"}, want: "config file"},
		{name: "stray argument", args: []string{"run", "extra"}, want: "unknown command"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not contain %q", err, tt.want)
			}
		})
	}
}

func TestRunCmd_StageErrorSurfaces(t *testing.T) {
	dir := t.TempDir()
	raw := filepath.Join(dir, "raw.json")
	if err := dataset.Save(raw, []dataset.Observation{
		testutil.Observation("XM", "Low income", 2000, dataset.Float(19.5)),
	}); err != nil {
		t.Fatalf("save records: %v", err)
	}

	_, err := execute(t, "run",
		"--source", "file",
		"--input", raw,
		"--figure", filepath.Join(dir, "fig1.png"),
		"--report", filepath.Join(dir, "report.pdf"),
		"--log-level", "error",
	)
	if err == nil {
		t.Fatal("expected missing column error")
	}
	if !strings.HasPrefix(err.Error(), pipeline.StageRender+":") {
		t.Errorf("error %q should name the render stage", err)
	}
}

func TestConnectRedis_BadURL(t *testing.T) {
	if _, err := connectRedis(context.Background(), "redis://:bad:url:/x"); err == nil {
		t.Error("expected error for malformed url")
	}
}
