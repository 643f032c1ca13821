package receipt

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"expensa/internal/log"
)

func TestParseImage(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte("fake-png-bytes"))
	tests := []struct {
		name     string
		in       string
		max      int
		wantMime string
		wantErr  error
	}{
		{"data uri", "data:image/png;base64," + payload, 0, "image/png", nil},
		{"plain base64", payload, 0, "image/jpeg", nil},
		{"uri without mime", "garbage," + payload, 0, "image/jpeg", nil},
		{"empty", "  ", 0, "", ErrMissingImage},
		{"empty data", "data:image/png;base64,", 0, "", ErrMissingImage},
		{"not base64", "data:image/png;base64,!!!", 0, "", ErrInvalidImage},
		{"too large", payload, 4, "", ErrImageTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := ParseImage(tt.in, tt.max)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if err == nil && (img.MimeType != tt.wantMime || img.Data != payload) {
				t.Errorf("image = %+v", img)
			}
		})
	}
}

func TestParseItems(t *testing.T) {
	text := "```json\n[{\"item_name\":\"Milk\",\"price\":1.25},{\"item_name\":\"Bread\",\"price\":\"2.10\"}]\n```"
	res, err := ParseItems(text)
	if err != nil {
		t.Fatalf("ParseItems: %v", err)
	}
	if len(res.Items) != 2 || res.Items[1].Name != "Bread" {
		t.Errorf("items = %+v", res.Items)
	}
	if res.Total.Cents != 335 {
		t.Errorf("total = %d, want 335", res.Total.Cents)
	}
	if !strings.HasPrefix(res.Pretty, "[\n  {\n    \"item_name\": \"Milk\"") {
		t.Errorf("pretty = %q", res.Pretty)
	}

	if _, err := ParseItems("I could not read the receipt"); err == nil {
		t.Error("expected error for non-JSON answer")
	}
}

func TestParser_Parse(t *testing.T) {
	var gotReq generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models/gemini-test:generateContent" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("x-goog-api-key"); got != "secret" {
			t.Errorf("x-goog-api-key = %q", got)
		}
		if r.URL.RawQuery != "" {
			t.Errorf("query = %q, want none", r.URL.RawQuery)
		}
		json.NewDecoder(r.Body).Decode(&gotReq)
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"[{\"item_name\":\"Soap\",\"price\":3.5}]"}]}}]}`))
	}))
	defer srv.Close()

	p := NewParser(Config{APIKey: "secret", BaseURL: srv.URL, Model: "gemini-test"}, log.Nop())
	res, err := p.Parse(context.Background(), Image{MimeType: "image/png", Data: "AAAA"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if res.Total.Cents != 350 {
		t.Errorf("total = %d", res.Total.Cents)
	}
	parts := gotReq.Contents[0].Parts
	if len(parts) != 2 || parts[0].Text != Prompt || parts[1].InlineData.MimeType != "image/png" {
		t.Errorf("request parts = %+v", parts)
	}
}

func TestParser_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := NewParser(Config{APIKey: "k", BaseURL: srv.URL, Model: "m"}, nil)
	_, err := p.Parse(context.Background(), Image{MimeType: "image/jpeg", Data: "AAAA"})
	var up *UpstreamError
	if !errors.As(err, &up) || up.Status != http.StatusTooManyRequests {
		t.Errorf("err = %v, want UpstreamError 429", err)
	}

	disabled := NewParser(Config{BaseURL: srv.URL, Model: "m"}, nil)
	if _, err := disabled.Parse(context.Background(), Image{}); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("err = %v, want ErrNotConfigured", err)
	}
}

func TestParser_TransportErrorOmitsKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	base := srv.URL
	srv.Close()

	p := NewParser(Config{APIKey: "very-secret-key", BaseURL: base, Model: "m"}, nil)
	_, err := p.Parse(context.Background(), Image{MimeType: "image/png", Data: "AAAA"})
	if err == nil {
		t.Fatal("expected a transport error")
	}
	if strings.Contains(err.Error(), "very-secret-key") {
		t.Errorf("error leaks the API key: %v", err)
	}
}
