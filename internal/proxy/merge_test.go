package proxy

import (
	"net/http"
	"testing"
	"time"
)

func TestMergeOptionsOverrideWins(t *testing.T) {
	base := &Options{Timeout: 5 * time.Second, XFwd: false}
	override := &Options{Timeout: 10 * time.Second, XFwd: true}

	merged := MergeOptions(base, override)

	if merged.Timeout != 10*time.Second {
		t.Errorf("Timeout = %v, want 10s", merged.Timeout)
	}
	if !merged.XFwd {
		t.Error("XFwd should be true from override")
	}
}

func TestMergeOptionsInheritsUnsetFields(t *testing.T) {
	base := &Options{Auth: "base-auth"}
	override := &Options{}

	merged := MergeOptions(base, override)

	if merged.Auth != "base-auth" {
		t.Errorf("Auth = %q, want inherited base-auth", merged.Auth)
	}
}

func TestMergeOptionsHeadersOverlay(t *testing.T) {
	base := &Options{Headers: http.Header{"X-Base": {"1"}, "X-Shared": {"base"}}}
	override := &Options{Headers: http.Header{"X-Override": {"2"}, "X-Shared": {"override"}}}

	merged := MergeOptions(base, override)

	if merged.Headers.Get("X-Base") != "1" {
		t.Error("expected base header to survive")
	}
	if merged.Headers.Get("X-Override") != "2" {
		t.Error("expected override header to be present")
	}
	if merged.Headers.Get("X-Shared") != "override" {
		t.Error("expected override to win on shared key")
	}
}

func TestMergeOptionsNilBase(t *testing.T) {
	override := &Options{Auth: "x"}
	merged := MergeOptions(nil, override)
	if merged.Auth != "x" {
		t.Errorf("Auth = %q, want x", merged.Auth)
	}
}

func TestMergeOptionsNilOverride(t *testing.T) {
	base := &Options{Auth: "x"}
	merged := MergeOptions(base, nil)
	if merged.Auth != "x" {
		t.Errorf("Auth = %q, want x", merged.Auth)
	}
}
