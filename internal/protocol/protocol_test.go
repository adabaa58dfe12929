package protocol

import "testing"

func TestDecode_Valid(t *testing.T) {
	raw := []byte(`{"type":"terminal.data","id":"req-1","payload":{"sessionId":"s1","data":"aGk="}}`)
	f, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if f.Type != TypeTerminalData {
		t.Errorf("Type = %q, want %q", f.Type, TypeTerminalData)
	}
	if f.ID != "req-1" {
		t.Errorf("ID = %q, want %q", f.ID, "req-1")
	}
	if len(f.Payload) == 0 {
		t.Error("Payload should not be empty")
	}
}

func TestDecode_MissingType(t *testing.T) {
	if _, err := Decode([]byte(`{"id":"x"}`)); err == nil {
		t.Fatal("expected error for missing type field")
	}
}

func TestDecode_TypeWrongKind(t *testing.T) {
	if _, err := Decode([]byte(`{"type":42}`)); err == nil {
		t.Fatal("expected error for non-string type field")
	}
}

func TestDecode_EmptyType(t *testing.T) {
	if _, err := Decode([]byte(`{"type":""}`)); err == nil {
		t.Fatal("expected error for empty type field")
	}
}

func TestDecode_InvalidJSON(t *testing.T) {
	if _, err := Decode([]byte(`not json`)); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestDecode_NoPayload(t *testing.T) {
	f, err := Decode([]byte(`{"type":"session.list"}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if f.Payload != nil {
		t.Errorf("Payload = %v, want nil", f.Payload)
	}
}

func TestEncode_RoundTrip(t *testing.T) {
	f := Frame{Type: TypePing, ID: "abc"}
	raw, err := Encode(f)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	back, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if back.Type != f.Type || back.ID != f.ID {
		t.Errorf("round trip mismatch: got %+v, want %+v", back, f)
	}
}

func TestReply_CarriesID(t *testing.T) {
	f, err := Reply("req-9", TypeSessionCreated, map[string]string{"sessionId": "s1"})
	if err != nil {
		t.Fatalf("Reply: %v", err)
	}
	if f.ID != "req-9" {
		t.Errorf("ID = %q, want %q", f.ID, "req-9")
	}
	if f.Type != TypeSessionCreated {
		t.Errorf("Type = %q, want %q", f.Type, TypeSessionCreated)
	}
	if len(f.Payload) == 0 {
		t.Error("Payload should not be empty")
	}
}

func TestEvent_NoID(t *testing.T) {
	f, err := Event(TypeNotification, map[string]string{"kind": "exit"})
	if err != nil {
		t.Fatalf("Event: %v", err)
	}
	if f.ID != "" {
		t.Errorf("ID = %q, want empty", f.ID)
	}
}

func TestReply_NilPayload(t *testing.T) {
	f, err := Reply("req-1", TypePong, nil)
	if err != nil {
		t.Fatalf("Reply: %v", err)
	}
	if f.Payload != nil {
		t.Errorf("Payload = %v, want nil", f.Payload)
	}
}
