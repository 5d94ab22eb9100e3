package logfields

import (
	"errors"
	"log/slog"
	"testing"
	"time"
)

// TestHelperKeyNames verifies string-based helper key/value stability.
func TestHelperKeyNames(t *testing.T) {
	cases := []struct {
		name    string
		attrKey string
		attrVal string
		attr    slog.Attr
	}{
		{"BuildID", KeyBuildID, "b1", BuildID("b1")},
		{"Status", KeyStatus, "partial", Status("partial")},
		{"Stage", KeyStage, "transform", Stage("transform")},
		{"Step", KeyStep, "highlight", Step("highlight")},
		{"Path", KeyPath, "blog/a.md", Path("blog/a.md")},
		{"Slug", KeySlug, "blog/a", Slug("blog/a")},
		{"DocType", KeyDocType, "Post", DocType("Post")},
		{"Hook", KeyHook, "nats", Hook("nats")},
		{"Subject", KeySubject, "builds", Subject("builds")},
		{"Policy", KeyPolicy, "skip-invalid", Policy("skip-invalid")},
		{"Trigger", KeyTrigger, "fsnotify", Trigger("fsnotify")},
		{"ConfigPath", KeyConfigPath, "c.yaml", ConfigPath("c.yaml")},
		{"OutputDir", KeyOutputDir, "out", OutputDir("out")},
		{"ContentRoot", KeyContentRoot, "content", ContentRoot("content")},
	}
	for _, c := range cases {
		if c.attr.Key != c.attrKey {
			t.Fatalf("%s key mismatch: got %s want %s", c.name, c.attr.Key, c.attrKey)
		}
		if c.attr.Value.String() != c.attrVal {
			t.Fatalf("%s value mismatch: got %s want %s", c.name, c.attr.Value.String(), c.attrVal)
		}
	}
}

func TestNumericHelpers(t *testing.T) {
	if a := Count(3); a.Key != KeyCount || a.Value.Int64() != 3 {
		t.Fatalf("unexpected count attr: %v", a)
	}
	if a := Worker(2); a.Key != KeyWorker || a.Value.Int64() != 2 {
		t.Fatalf("unexpected worker attr: %v", a)
	}
	if a := Failures(1); a.Key != KeyFailures || a.Value.Int64() != 1 {
		t.Fatalf("unexpected failures attr: %v", a)
	}
	if a := CacheHit(true); a.Key != KeyCacheHit || !a.Value.Bool() {
		t.Fatalf("unexpected cache attr: %v", a)
	}
	if a := Elapsed(time.Now().Add(-time.Second)); a.Key != KeyDurationMS || a.Value.Float64() < 1000 {
		t.Fatalf("unexpected elapsed attr: %v", a)
	}
}

func TestErrorHelper(t *testing.T) {
	if a := Error(nil); a.Value.String() != "" {
		t.Fatalf("expected empty error value, got %q", a.Value.String())
	}
	if a := Error(errors.New("boom")); a.Key != KeyError || a.Value.String() != "boom" {
		t.Fatalf("unexpected error attr: %v", a)
	}
}
