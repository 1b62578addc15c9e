package payload

import (
	"encoding/json"
	"testing"

	"messagehub/internal/config"
	"messagehub/internal/logging"
)

func testLogger() *logging.Logger {
	return logging.NewLogger(config.LoggingConfig{Level: "info"})
}

func TestBuild_Generic(t *testing.T) {
	body, err := Build(Request{Recipient: "+15551234567", Content: "hi"}, "Generic", "", "", "", "", testLogger())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if decoded["to"] != "+15551234567" || decoded["text"] != "hi" || decoded["from"] != defaultSenderID {
		t.Errorf("unexpected generic body: %v", decoded)
	}
}

func TestBuild_Twilio(t *testing.T) {
	body, err := Build(Request{Recipient: "+1555", Content: "hi"}, "Twilio", "Acme", "", "", "", testLogger())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	var decoded map[string]string
	json.Unmarshal(body, &decoded)
	if decoded["To"] != "+1555" || decoded["From"] != "Acme" || decoded["Body"] != "hi" {
		t.Errorf("unexpected twilio body: %v", decoded)
	}
}

func TestBuild_CustomFallsBackToGenericWhenEmpty(t *testing.T) {
	body, err := Build(Request{Recipient: "+1555", Content: "hi"}, "Custom", "", "", "", "", testLogger())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	var decoded map[string]interface{}
	json.Unmarshal(body, &decoded)
	if decoded["to"] != "+1555" {
		t.Errorf("expected fallback to generic shape, got %v", decoded)
	}
}

func TestBuild_CustomTemplate(t *testing.T) {
	tmpl := `{"msg":"{{.message}}","to":"{{.recipient}}"}`
	body, err := Build(Request{Recipient: "+1555", Content: "hi", MessageID: "m1", TenantKey: "t1"}, "Custom", "", "", "", tmpl, testLogger())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	var decoded map[string]string
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("custom template did not produce valid JSON: %v, body=%s", err, body)
	}
	if decoded["msg"] != "hi" || decoded["to"] != "+1555" {
		t.Errorf("unexpected custom body: %v", decoded)
	}
}
