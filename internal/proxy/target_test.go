package proxy

import "testing"

func TestParseTargetPortDefaults(t *testing.T) {
	cases := []struct {
		name     string
		raw      string
		wantPort int
		wantSSL  bool
	}{
		{"http default", "http://upstream/api", 80, false},
		{"https default", "https://upstream/api", 443, true},
		{"explicit port wins", "http://upstream:9000/api", 9000, false},
		{"ws scheme gets 80", "ws://upstream/socket", 80, false},
		{"wss scheme gets 443", "wss://upstream/socket", 443, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			target, err := ParseTarget(tc.raw)
			if err != nil {
				t.Fatalf("ParseTarget(%q) error: %v", tc.raw, err)
			}
			if target.Port != tc.wantPort {
				t.Errorf("port = %d, want %d", target.Port, tc.wantPort)
			}
			if target.IsSSL() != tc.wantSSL {
				t.Errorf("IsSSL() = %v, want %v", target.IsSSL(), tc.wantSSL)
			}
		})
	}
}

func TestParseTargetRejectsEmpty(t *testing.T) {
	if _, err := ParseTarget(""); err == nil {
		t.Fatal("expected error for empty target")
	}
	if _, err := ParseTarget("not-a-host-only-string"); err == nil {
		t.Fatal("expected error for hostless target")
	}
}

func TestTargetCacheRoundTrip(t *testing.T) {
	cache := newTargetCache(2)
	a, err := ParseTarget("http://a:80/x")
	if err != nil {
		t.Fatal(err)
	}
	cache.put("a", a)

	got, ok := cache.get("a")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if got.Host != "a" {
		t.Errorf("Host = %q, want %q", got.Host, "a")
	}
}

func TestTargetCacheEvictsLRU(t *testing.T) {
	cache := newTargetCache(2)
	ta, _ := ParseTarget("http://a/x")
	tb, _ := ParseTarget("http://b/x")
	tc, _ := ParseTarget("http://c/x")
	cache.put("a", ta)
	cache.put("b", tb)
	cache.put("a", ta) // touch a, making b the LRU entry
	cache.put("c", tc) // evicts b

	if _, ok := cache.get("b"); ok {
		t.Error("expected b to be evicted")
	}
	if _, ok := cache.get("a"); !ok {
		t.Error("expected a to survive (recently touched)")
	}
	if _, ok := cache.get("c"); !ok {
		t.Error("expected c to be present")
	}
}
