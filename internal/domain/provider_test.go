package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestLookupProvider(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		wantID ProviderID
		wantOK bool
	}{
		{name: "exact id", input: "gemini", wantID: ProviderGemini, wantOK: true},
		{name: "mixed case with spaces", input: "  OpenAI ", wantID: ProviderOpenAI, wantOK: true},
		{name: "label", input: "Anthropic Claude", wantID: ProviderAnthropic, wantOK: true},
		{name: "unknown", input: "mistral", wantOK: false},
		{name: "empty", input: "", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := LookupProvider(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("LookupProvider(%q) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if ok && got.ID != tt.wantID {
				t.Errorf("LookupProvider(%q) = %s, want %s", tt.input, got.ID, tt.wantID)
			}
		})
	}
}

func TestProviders_EveryIDResolvesToOneDescriptor(t *testing.T) {
	seen := make(map[ProviderID]int)
	for _, p := range Providers() {
		if !p.IsValid() {
			t.Errorf("descriptor %q is incomplete", p.ID)
		}
		seen[p.ID]++
	}
	for id, n := range seen {
		if n != 1 {
			t.Errorf("provider %s appears %d times, want 1", id, n)
		}
	}
}

func TestProviderDescriptor_CheckKey(t *testing.T) {
	tests := []struct {
		name     string
		provider ProviderID
		key      string
		wantSub  string
	}{
		{name: "gemini ok", provider: ProviderGemini, key: "AIxxxxxxxxxxxx"},
		{name: "gemini wrong prefix", provider: ProviderGemini, key: "sk-xxxxxxxxxxxx", wantSub: `start with "AI"`},
		{name: "openai project key", provider: ProviderOpenAI, key: "sk-proj-abcdefgh"},
		{name: "openai wrong prefix", provider: ProviderOpenAI, key: "AIxxxxxxxxxxxx", wantSub: `"sk-"`},
		{name: "anthropic generic sk rejected", provider: ProviderAnthropic, key: "sk-xxxxxxxxxxxx", wantSub: `"sk-ant-"`},
		{name: "too short", provider: ProviderGemini, key: "AIshort", wantSub: "too short"},
		{name: "empty", provider: ProviderOpenAI, key: "", wantSub: "Enter an API key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MustProvider(tt.provider).CheckKey(tt.key)
			if tt.wantSub == "" {
				if got != "" {
					t.Errorf("CheckKey(%q) = %q, want no error", tt.key, got)
				}
				return
			}
			if !strings.Contains(got, tt.wantSub) {
				t.Errorf("CheckKey(%q) = %q, want substring %q", tt.key, got, tt.wantSub)
			}
		})
	}
}

func TestAPIError(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := WrapAPIError(CodeNetworkError, MsgNetworkError, "", cause)

	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true")
	}
	if strings.Contains(err.Message, "refused") {
		t.Errorf("Message leaks transport detail: %q", err.Message)
	}
	if got := AsAPIError(err); got != err {
		t.Errorf("AsAPIError returned a different error: %v", got)
	}
	if AsAPIError(cause).Code != "unexpected_error" {
		t.Error("plain errors should normalize to unexpected_error")
	}
	if !NewAPIError(CodeSettingsIncomplete, "x", "").RevealsSettings() {
		t.Error("settings_incomplete should reveal settings")
	}
	if NewAPIError(CodeNetworkError, "x", "").RevealsSettings() {
		t.Error("network_error should not reveal settings")
	}
}

func TestStatusMessage(t *testing.T) {
	if got := StatusMessage(429); got != MsgTooManyRequest {
		t.Errorf("StatusMessage(429) = %q", got)
	}
	if got := StatusMessage(503); got != MsgServerTrouble {
		t.Errorf("StatusMessage(503) = %q", got)
	}
	if got := StatusMessage(404); got != "Server error (404)" {
		t.Errorf("StatusMessage(404) = %q", got)
	}
	if got := HTTPStatusCode(502); got != "http_502" {
		t.Errorf("HTTPStatusCode(502) = %q", got)
	}
}
