package proxy

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCompilePredicateEvalTrue(t *testing.T) {
	p, err := CompilePredicate(`method == "GET" && path.startsWith("/api")`)
	if err != nil {
		t.Fatalf("CompilePredicate: %v", err)
	}
	req := httptest.NewRequest("GET", "/api/users", nil)
	if !p.Eval(req) {
		t.Fatal("expected predicate to allow matching request")
	}
}

func TestCompilePredicateEvalFalse(t *testing.T) {
	p, err := CompilePredicate(`method == "POST"`)
	if err != nil {
		t.Fatalf("CompilePredicate: %v", err)
	}
	req := httptest.NewRequest("GET", "/x", nil)
	if p.Eval(req) {
		t.Fatal("expected predicate to reject non-matching request")
	}
}

func TestCompilePredicateRejectsNonBool(t *testing.T) {
	if _, err := CompilePredicate(`"not a bool"`); err == nil {
		t.Fatal("expected error for non-bool expression")
	}
}

func TestCompilePredicateRejectsTooLong(t *testing.T) {
	expr := `method == "` + strings.Repeat("a", maxWhenExpressionLength) + `"`
	if _, err := CompilePredicate(expr); err == nil {
		t.Fatal("expected error for over-long expression")
	}
}

func TestCompilePredicateRejectsTooDeeplyNested(t *testing.T) {
	expr := strings.Repeat("(", maxWhenNestingDepth+1) + "true" + strings.Repeat(")", maxWhenNestingDepth+1)
	if _, err := CompilePredicate(expr); err == nil {
		t.Fatal("expected error for over-nested expression")
	}
}

func TestNilPredicateAlwaysAllows(t *testing.T) {
	var p *Predicate
	req := httptest.NewRequest("GET", "/x", nil)
	if !p.Eval(req) {
		t.Fatal("nil predicate should always allow")
	}
}
