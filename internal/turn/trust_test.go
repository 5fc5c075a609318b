package turn

import (
	"encoding/json"
	"sync"
	"testing"
)

func TestTrustStoreScopes(t *testing.T) {
	s := NewTrustStore()
	if s.Trusted("shell:ls") {
		t.Fatal("empty store trusts shell:ls")
	}
	s.Trust("shell:ls", TrustSession)
	s.Trust("shell:go", TrustProject)
	s.Trust("read_file", TrustGlobal)

	for _, p := range []string{"shell:ls", "shell:go", "read_file"} {
		if !s.Trusted(p) {
			t.Errorf("Trusted(%q) = false after Trust", p)
		}
	}
	if s.Trusted("shell:rm") {
		t.Error("shell:rm trusted without a grant")
	}
	if got := s.Patterns(TrustProject); len(got) != 1 || got[0] != "shell:go" {
		t.Errorf("Patterns(project) = %v", got)
	}
}

func TestTrustStorePersistHookSkipsSessionScope(t *testing.T) {
	s := NewTrustStore()
	var persisted []string
	s.SetPersistFunc(func(scope TrustScope, pattern string) {
		persisted = append(persisted, string(scope)+"/"+pattern)
	})
	s.Trust("shell:ls", TrustSession)
	s.Trust("shell:go", TrustProject)
	s.Trust("write_file", TrustGlobal)

	if len(persisted) != 2 {
		t.Fatalf("persisted %v, want project and global entries only", persisted)
	}
}

func TestTrustStoreConcurrentWrites(t *testing.T) {
	s := NewTrustStore()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Trust("shell:go", TrustSession)
			_ = s.Trusted("shell:go")
		}()
	}
	wg.Wait()
	if !s.Trusted("shell:go") {
		t.Error("pattern lost under concurrent writes")
	}
}

func TestPatternFor(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"read_file", `{"path":"a.go"}`, "read_file"},
		{"shell", `{"command":"ls -la"}`, "shell:ls"},
		{"shell", `{"command":"  go test ./..."}`, "shell:go"},
		{"shell", `{"command":""}`, "shell"},
		{"shell", `not json`, "shell"},
	}
	for _, tc := range cases {
		got := PatternFor(tc.name, json.RawMessage(tc.input))
		if got != tc.want {
			t.Errorf("PatternFor(%s, %s) = %q, want %q", tc.name, tc.input, got, tc.want)
		}
	}
}
