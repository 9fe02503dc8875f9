package types

import (
	"encoding/json"
	"testing"
)

func TestValidation(t *testing.T) {
	t.Run("session ids", func(t *testing.T) {
		tests := []struct {
			id   string
			want bool
		}{
			{"sess-1", true},
			{"abc_DEF-123", true},
			{"", false},
			{"undefined", false},
			{"null", false},
			{"0", false},
			{"has space", false},
			{"path/../escape", false},
			{string(make([]byte, 65)), false},
		}
		for _, tt := range tests {
			if got := IsValidSessionID(tt.id); got != tt.want {
				t.Errorf("IsValidSessionID(%q) = %v, want %v", tt.id, got, tt.want)
			}
		}
	})

	t.Run("tokens", func(t *testing.T) {
		tests := []struct {
			token string
			want  bool
		}{
			{"any-opaque-string", true},
			{"with spaces ok", true},
			{"", false},
			{"undefined", false},
			{"null", false},
			{"0", false},
		}
		for _, tt := range tests {
			if got := IsValidToken(tt.token); got != tt.want {
				t.Errorf("IsValidToken(%q) = %v, want %v", tt.token, got, tt.want)
			}
		}
	})

	t.Run("entry names", func(t *testing.T) {
		tests := []struct {
			name string
			want bool
		}{
			{"main.py", true},
			{"notes and drafts.md", true},
			{"", false},
			{"dir/file.py", false},
			{`dir\file.py`, false},
		}
		for _, tt := range tests {
			if got := IsValidEntryName(tt.name); got != tt.want {
				t.Errorf("IsValidEntryName(%q) = %v, want %v", tt.name, got, tt.want)
			}
		}
	})
}

func TestSessionStateOther(t *testing.T) {
	state := SessionState{
		User1: Participant{ID: "u1", Name: "Alice"},
		User2: Participant{ID: "u2", Name: "Bob"},
	}
	if got := state.Other("u1"); got.ID != "u2" {
		t.Errorf("Other(u1) = %s, want u2", got.ID)
	}
	if got := state.Other("u2"); got.ID != "u1" {
		t.Errorf("Other(u2) = %s, want u1", got.ID)
	}
}

func TestDocumentCloneIsDeep(t *testing.T) {
	doc := Document{
		Entries:     []DocumentEntry{{Name: "a.py", Kind: "python", Content: "x"}},
		ActiveIndex: 0,
	}
	clone := doc.Clone()
	clone.Entries[0].Content = "mutated"
	clone.ActiveIndex = 7

	if doc.Entries[0].Content != "x" || doc.ActiveIndex != 0 {
		t.Errorf("mutating clone changed original: %+v", doc)
	}
}

func TestEnvelopeDecoding(t *testing.T) {
	// One wire object carries the tag and the payload fields together;
	// the payload is re-decoded from the same bytes after dispatch.
	data := []byte(`{"type":"credit_update","user_id":"u1","new_balance":7.5}`)

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("decoding envelope: %v", err)
	}
	if env.Type != TypeCreditUpdate {
		t.Fatalf("type = %q, want %q", env.Type, TypeCreditUpdate)
	}

	var payload CreditUpdatePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		t.Fatalf("decoding payload: %v", err)
	}
	if payload.UserID != "u1" || payload.NewBalance != 7.5 {
		t.Errorf("payload = %+v", payload)
	}
}

func TestDocumentUpdateWireShape(t *testing.T) {
	update := DocumentUpdate{
		Document: Document{
			Entries:     []DocumentEntry{{Name: "main.py", Kind: "python", Content: "pass"}},
			ActiveIndex: 0,
		},
		Origin:   OriginLocal,
		OriginID: "origin-1",
		Seq:      3,
	}
	data, err := json.Marshal(DocumentEnvelope{Type: TypeCodeUpdate, Data: update})
	if err != nil {
		t.Fatalf("marshaling: %v", err)
	}

	var wire map[string]any
	if err := json.Unmarshal(data, &wire); err != nil {
		t.Fatalf("unmarshaling wire form: %v", err)
	}
	inner, ok := wire["data"].(map[string]any)
	if !ok {
		t.Fatalf("wire form missing data object: %s", data)
	}
	// The document fields flatten into the update object.
	if _, ok := inner["files"]; !ok {
		t.Errorf("wire form missing files: %s", data)
	}
	if _, ok := inner["activeIndex"]; !ok {
		t.Errorf("wire form missing activeIndex: %s", data)
	}
	if inner["origin_id"] != "origin-1" {
		t.Errorf("wire form origin_id = %v", inner["origin_id"])
	}
}
