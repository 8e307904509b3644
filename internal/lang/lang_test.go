package lang

import (
	"strings"
	"testing"

	"golang.org/x/text/language"
)

func TestTranslate(t *testing.T) {
	if err := SetupLang("en"); err != nil {
		t.Fatalf("SetupLang() error = %v", err)
	}

	tests := []struct {
		name     string
		key      string
		data     map[string]any
		contains string
	}{
		{"plain", "status.done", nil, ""},
		{"nested key", "general.status.done", nil, "Here's your video"},
		{"template", "general.status.progress", map[string]any{"Platform": "YouTube", "Percent": 42}, "YouTube video... 42%"},
		{"error key", "error.size.too_large", map[string]any{"Limit": "50 MiB"}, "over 50 MiB"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Translate(tt.key, tt.data)
			if tt.contains == "" {
				if got != tt.key {
					t.Errorf("Translate(%q) = %q, want the key back", tt.key, got)
				}
				return
			}
			if !strings.Contains(got, tt.contains) {
				t.Errorf("Translate(%q) = %q, want it to contain %q", tt.key, got, tt.contains)
			}
		})
	}
}

func TestTranslateRussianAndFallback(t *testing.T) {
	if err := SetupLang("ru"); err != nil {
		t.Fatalf("SetupLang() error = %v", err)
	}
	t.Cleanup(func() { _ = SetupLang("en") })

	if got := Translate("general.status.done", nil); !strings.Contains(got, "Ваше видео") {
		t.Errorf("Translate() = %q, want Russian text", got)
	}

	if err := SetupLang("de"); err != nil {
		t.Fatalf("SetupLang() error = %v", err)
	}
	if got := Translate("general.status.done", nil); !strings.Contains(got, "Here's your video") {
		t.Errorf("unknown language should fall back to English, got %q", got)
	}
}

func TestHasCatalogue(t *testing.T) {
	tags := []language.Tag{language.English, language.Russian}
	tests := []struct {
		lang string
		want bool
	}{
		{"en", true},
		{"ru", true},
		{"ru-RU", true},
		{"de", false},
		{"not a tag!", false},
	}
	for _, tt := range tests {
		if got := hasCatalogue(tags, tt.lang); got != tt.want {
			t.Errorf("hasCatalogue(%q) = %v, want %v", tt.lang, got, tt.want)
		}
	}
}
