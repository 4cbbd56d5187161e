package pipeline

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dvelkov/subtrans/internal/job"
	"github.com/dvelkov/subtrans/internal/translate"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func testController(tr Translator) *Controller {
	log := slog.New(slog.DiscardHandler)
	return NewController(testOrchestrator(tr, 2), log)
}

func TestController_MultiFileJob(t *testing.T) {
	dir := t.TempDir()
	srtPath := writeFile(t, dir, "movie.srt", "1\n00:00:01,000 --> 00:00:02,000\nHello\n")
	jsonPath := writeFile(t, dir, "ui.json", `{"greet": "Hello", "n": 1}`)

	ctrl := testController(newScriptedTranslator())
	opts := job.Options{TargetLang: "German"}
	results := ctrl.Run(context.Background(), []string{srtPath, jsonPath}, opts, &job.CancelFlag{}, func(job.Event) {})

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	for _, res := range results {
		if res.Status != job.FileCompleted {
			t.Errorf("%s: expected completed, got %q (%s)", res.Path, res.Status, res.Err)
		}
	}

	srtOut, err := os.ReadFile(filepath.Join(dir, "movie_translated_German.srt"))
	if err != nil {
		t.Fatalf("expected srt output: %v", err)
	}
	if !strings.Contains(string(srtOut), "[German] Hello") {
		t.Errorf("unexpected srt output %q", srtOut)
	}

	jsonOut, err := os.ReadFile(filepath.Join(dir, "ui_translated_German.json"))
	if err != nil {
		t.Fatalf("expected json output: %v", err)
	}
	if string(jsonOut) != `{"greet": "[German] Hello", "n": 1}` {
		t.Errorf("unexpected json output %q", jsonOut)
	}
}

func TestController_ContinueOnError(t *testing.T) {
	dir := t.TempDir()
	bad := writeFile(t, dir, "bad.srt", "1\nnot a timing\ntext\n")
	unsupported := writeFile(t, dir, "notes.txt", "hello")
	good := writeFile(t, dir, "good.srt", "1\n00:00:01,000 --> 00:00:02,000\nHi\n")

	ctrl := testController(newScriptedTranslator())
	results := ctrl.Run(context.Background(), []string{bad, unsupported, good}, job.Options{TargetLang: "fr"}, &job.CancelFlag{}, func(job.Event) {})

	if results[0].Status != job.FileFailed || !strings.Contains(results[0].Err, "parse") {
		t.Errorf("expected parse failure for bad.srt, got %+v", results[0])
	}
	if results[1].Status != job.FileFailed {
		t.Errorf("expected failure for unsupported extension, got %+v", results[1])
	}
	if results[2].Status != job.FileCompleted {
		t.Errorf("expected the job to continue to good.srt, got %+v", results[2])
	}
	if _, err := os.Stat(filepath.Join(dir, "bad_translated_fr.srt")); err == nil {
		t.Error("expected no output for a file that failed to parse")
	}
}

func TestController_CancelSkipPolicy(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.json", `{"k": "v"}`)
	b := writeFile(t, dir, "b.json", `{"k": "v"}`)

	cancel := &job.CancelFlag{}
	cancel.Set()
	ctrl := testController(newScriptedTranslator())
	results := ctrl.Run(context.Background(), []string{a, b}, job.Options{TargetLang: "de"}, cancel, func(job.Event) {})

	for _, res := range results {
		if res.Status != job.FileSkipped {
			t.Errorf("%s: expected skipped, got %q", res.Path, res.Status)
		}
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 2 {
		t.Errorf("expected no output files under skip policy, found %d entries", len(entries))
	}
}

func TestController_CancelCopyPolicy(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.json", `{"k": "value"}`)

	cancel := &job.CancelFlag{}
	cancel.Set()
	ctrl := testController(newScriptedTranslator())
	opts := job.Options{TargetLang: "de", OnCancel: job.CancelCopy}
	results := ctrl.Run(context.Background(), []string{a}, opts, cancel, func(job.Event) {})

	if results[0].Status != job.FileCopied {
		t.Fatalf("expected copied, got %q", results[0].Status)
	}
	out, err := os.ReadFile(filepath.Join(dir, "a_translated_de.json"))
	if err != nil {
		t.Fatalf("expected copied output: %v", err)
	}
	if string(out) != `{"k": "value"}` {
		t.Errorf("expected untranslated copy, got %q", out)
	}
}

func TestController_AuthAbortsRemainingFiles(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.srt", "1\n00:00:01,000 --> 00:00:02,000\nHi\n")
	b := writeFile(t, dir, "b.srt", "1\n00:00:01,000 --> 00:00:02,000\nBye\n")

	tr := newScriptedTranslator()
	tr.err = &translate.APIError{Kind: translate.KindAuth, Status: 401, Message: "bad key"}
	ctrl := testController(tr)
	results := ctrl.Run(context.Background(), []string{a, b}, job.Options{TargetLang: "de"}, &job.CancelFlag{}, func(job.Event) {})

	// The file the auth error surfaced in is still reassembled and saved.
	if results[0].Status != job.FilePartial {
		t.Errorf("expected partial for first file, got %q", results[0].Status)
	}
	out, err := os.ReadFile(filepath.Join(dir, "a_translated_de.srt"))
	if err != nil {
		t.Fatalf("expected saved output for first file: %v", err)
	}
	if !strings.Contains(string(out), "Hi") {
		t.Errorf("expected original text preserved, got %q", out)
	}

	if results[1].Status != job.FileSkipped {
		t.Errorf("expected second file skipped after auth failure, got %q", results[1].Status)
	}
	for i, res := range results {
		if !res.AuthFailure {
			t.Errorf("result %d: expected auth failure marked", i)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "b_translated_de.srt")); err == nil {
		t.Error("expected no output for files after auth failure")
	}
}

func TestController_OversizedFileFails(t *testing.T) {
	dir := t.TempDir()
	big := writeFile(t, dir, "big.json", `{"k": "`+strings.Repeat("x", 100)+`"}`)

	ctrl := testController(newScriptedTranslator())
	opts := job.Options{TargetLang: "de", MaxFileBytes: 10}
	results := ctrl.Run(context.Background(), []string{big}, opts, &job.CancelFlag{}, func(job.Event) {})

	if results[0].Status != job.FileFailed || !strings.Contains(results[0].Err, "max size") {
		t.Errorf("expected size failure, got %+v", results[0])
	}
}

func TestOutputPath(t *testing.T) {
	opts := job.Options{TargetLang: "Bulgarian"}
	got := OutputPath(filepath.Join("sub", "movie.srt"), opts)
	want := filepath.Join("sub", "movie_translated_Bulgarian.srt")
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}

	opts = job.Options{TargetLang: "de", OutputDir: "out", OutputSuffix: ".de"}
	got = OutputPath("movie.srt", opts)
	want = filepath.Join("out", "movie.de.srt")
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}
