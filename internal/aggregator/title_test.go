package aggregator

import "testing"

func TestNormalizeTitle(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Hello😊 World🚀!", "Hello world!"},
		{"BREAKING NEWS", "Breaking news"},
		{"already lower", "Already lower"},
		{"🔥🔥 Hot Take", "Hot take"},
		{"✂️ Cutting Edge", "Cutting edge"},
		{"東京 Travel VLOG", "東京 travel vlog"},
		{"Ünïcode Títle", "Ünïcode títle"},
		{"😊", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := NormalizeTitle(tt.in); got != tt.want {
				t.Errorf("NormalizeTitle(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
