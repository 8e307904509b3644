package platform

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		want     Platform
		wantLink string
	}{
		{"youtube watch", "https://www.youtube.com/watch?v=abc123", YouTube, "https://www.youtube.com/watch?v=abc123"},
		{"youtube short link", "look https://youtu.be/abc123 !", YouTube, "https://youtu.be/abc123"},
		{"youtube upper case", "HTTPS://WWW.YOUTUBE.COM/shorts/xyz", YouTube, "HTTPS://WWW.YOUTUBE.COM/shorts/xyz"},
		{"smule", "https://www.smule.com/recording/song/123456_789012", Smule, "https://www.smule.com/recording/song/123456_789012"},
		{"instagram reel", "https://www.instagram.com/reel/Cx1/", Instagram, "https://www.instagram.com/reel/Cx1/"},
		{"tiktok vm", "https://vm.tiktok.com/ZM1/", TikTok, "https://vm.tiktok.com/ZM1/"},
		{"twitter", "https://twitter.com/user/status/1", Twitter, "https://twitter.com/user/status/1"},
		{"x.com", "https://x.com/user/status/1", Twitter, "https://x.com/user/status/1"},
		{"facebook watch", "https://fb.watch/abc/", Facebook, "https://fb.watch/abc/"},
		{"facebook mobile", "https://m.facebook.com/watch/?v=1", Facebook, "https://m.facebook.com/watch/?v=1"},
		{"bare domain", "youtube.com/watch?v=abc", YouTube, "https://youtube.com/watch?v=abc"},
		{"bare domain in sentence", "please grab tiktok.com/@u/video/1 thanks", TikTok, "https://tiktok.com/@u/video/1"},
		{"trailing punctuation", "see https://x.com/u/status/2.", Twitter, "https://x.com/u/status/2"},
		{"unsupported", "https://vimeo.com/123", Unsupported, "https://vimeo.com/123"},
		{"lookalike host", "https://netflix.com/title/1", Unsupported, "https://netflix.com/title/1"},
		{"suffix trick", "https://youtube.com.evil.example/watch", Unsupported, "https://youtube.com.evil.example/watch"},
		{"no link", "hello there", NoLink, ""},
		{"domain prefix only", "visit x.community today", NoLink, ""},
		{"empty", "", NoLink, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, link := Classify(tt.text)
			if got != tt.want {
				t.Errorf("Classify(%q) platform = %q, want %q", tt.text, got, tt.want)
			}
			if link != tt.wantLink {
				t.Errorf("Classify(%q) link = %q, want %q", tt.text, link, tt.wantLink)
			}
		})
	}
}

func TestForHostFirstMatchWins(t *testing.T) {
	for _, p := range All() {
		if !p.Supported() {
			t.Errorf("%q listed in All() but not supported", p)
		}
	}
	if Unsupported.Supported() || NoLink.Supported() {
		t.Error("sentinel tags must not be supported")
	}
	if got := ForHost("WWW.Smule.COM."); got != Smule {
		t.Errorf("ForHost() = %q, want smule", got)
	}
}

func TestDisplayName(t *testing.T) {
	if Twitter.DisplayName() != "Twitter/X" {
		t.Errorf("DisplayName() = %q", Twitter.DisplayName())
	}
	if Unsupported.DisplayName() != "unsupported" {
		t.Errorf("DisplayName() = %q", Unsupported.DisplayName())
	}
}
