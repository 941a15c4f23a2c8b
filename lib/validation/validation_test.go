package validation

import (
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
)

func TestValidateSessionID(t *testing.T) {
	if err := ValidateSessionID("1b4e28ba-2fa1-11d2-883f-0016d3cca427"); err != nil {
		t.Errorf("valid uuid rejected: %v", err)
	}
	if err := ValidateSessionID(""); err == nil {
		t.Error("empty id accepted")
	}
	if err := ValidateSessionID("nope"); err == nil {
		t.Error("malformed id accepted")
	}
}

func TestStruct(t *testing.T) {
	type req struct {
		Titles []string `validate:"required,min=1,dive,required"`
	}

	if err := Struct(&req{Titles: []string{"a"}}); err != nil {
		t.Errorf("valid request rejected: %v", err)
	}
	if err := Struct(&req{}); err == nil {
		t.Error("missing titles accepted")
	}
	if err := Struct(&req{Titles: []string{""}}); err == nil {
		t.Error("empty title accepted")
	}
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, ValidateSessionID(""), 400)

	if rec.Code != 400 {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	if body["error"] == "" {
		t.Error("error field missing from response")
	}
}
