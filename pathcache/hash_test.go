package pathcache

import (
	"encoding/json"
	"regexp"
	"testing"
)

var hexKey = regexp.MustCompile(`^[0-9a-f]{32}$`)

func TestHash(t *testing.T) {
	h := Hash("/messages")
	if !hexKey.MatchString(h) {
		t.Errorf("Hash() = %q, want 32 lower-case hex chars", h)
	}
	if Hash("/messages") != h {
		t.Error("Hash is not deterministic")
	}
	if Hash("/message") == h {
		t.Error("different inputs hashed to the same value")
	}
}

func TestCumulativeSegments(t *testing.T) {
	if got := cumulativeSegments(nil); len(got) != 1 || got[0] != emptyHash {
		t.Errorf("empty selection = %v, want [hash(\"\")]", got)
	}

	got := cumulativeSegments([]Pair{{"type", "sent"}, {"page", "2"}})
	want := []string{Hash("type=sent"), Hash("type=sent;page=2")}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("cumulativeSegments() = %v, want %v", got, want)
	}
}

func TestJSONValue(t *testing.T) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(`{"s":"x","n":1.5,"b":true,"z":null,"m":{"b":1,"a":[2,{"d":1,"c":2}]}}`), &obj); err != nil {
		t.Fatal(err)
	}

	tests := map[string]string{
		"s": "x",
		"n": "1.5",
		"b": "true",
		"z": "null",
		"m": `{"a":[2,{"c":2,"d":1}],"b":1}`,
	}
	for k, want := range tests {
		got, err := jsonValue(obj[k])
		if err != nil {
			t.Fatalf("jsonValue(%s) error = %v", k, err)
		}
		if got != want {
			t.Errorf("jsonValue(%s) = %s, want %s", k, got, want)
		}
	}
}
