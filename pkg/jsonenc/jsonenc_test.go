package jsonenc

import (
	"encoding/json"
	"testing"
	"time"
)

func TestEnvelopeShape(t *testing.T) {
	b := New(64)
	b.BeginObject()
	b.String("agent", "agent-1")
	b.Int("seq", 42)
	b.Bool("final", false)
	b.BeginArray("events")
	b.BeginArrayObject()
	b.String("id", "e1")
	b.EndObject()
	b.BeginArrayObject()
	b.String("id", "e2")
	b.EndObject()
	b.EndArray()
	b.EndObject()

	var decoded struct {
		Agent  string `json:"agent"`
		Seq    int64  `json:"seq"`
		Final  bool   `json:"final"`
		Events []struct {
			ID string `json:"id"`
		} `json:"events"`
	}
	if err := json.Unmarshal(b.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON %s: %v", b.Bytes(), err)
	}
	if decoded.Agent != "agent-1" || decoded.Seq != 42 || decoded.Final {
		t.Fatalf("unexpected decode: %+v", decoded)
	}
	if len(decoded.Events) != 2 || decoded.Events[1].ID != "e2" {
		t.Fatalf("unexpected events: %+v", decoded.Events)
	}
}

func TestStringEscaping(t *testing.T) {
	b := New(0)
	b.BeginObject()
	b.String("msg", "a\"b\\c\nd\te\x01f")
	b.EndObject()

	var decoded map[string]string
	if err := json.Unmarshal(b.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON %s: %v", b.Bytes(), err)
	}
	if decoded["msg"] != "a\"b\\c\nd\te\x01f" {
		t.Fatalf("escaping round trip failed: %q", decoded["msg"])
	}
}

func TestStringMapAndTime(t *testing.T) {
	at := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

	b := New(0)
	b.BeginObject()
	b.Time("at", at)
	b.StringMap("fields", map[string]string{"peer": "10.0.0.1:443"})
	b.Raw("extra", []byte(`{"n":1}`))
	b.EndObject()

	var decoded struct {
		At     time.Time         `json:"at"`
		Fields map[string]string `json:"fields"`
		Extra  map[string]int    `json:"extra"`
	}
	if err := json.Unmarshal(b.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON %s: %v", b.Bytes(), err)
	}
	if !decoded.At.Equal(at) {
		t.Fatalf("time mismatch: %v", decoded.At)
	}
	if decoded.Fields["peer"] != "10.0.0.1:443" || decoded.Extra["n"] != 1 {
		t.Fatalf("unexpected decode: %+v", decoded)
	}
}

func TestResetReusesCapacity(t *testing.T) {
	b := New(8)
	b.BeginObject()
	b.String("k", "v")
	b.EndObject()
	first := string(b.Bytes())

	b.Reset()
	b.BeginObject()
	b.String("k", "v")
	b.EndObject()

	if got := string(b.Bytes()); got != first {
		t.Fatalf("reuse mismatch: %q vs %q", got, first)
	}
}
