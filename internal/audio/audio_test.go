package audio

import (
	"testing"

	"github.com/Faultbox/vibble/pkg/jsonutil"
)

func TestMapMusic(t *testing.T) {
	tests := []struct {
		name   string
		info   jsonutil.Object
		path   string
		volume float64
		ok     bool
	}{
		{"missing", jsonutil.Object{}, "", 0, false},
		{"no file", jsonutil.Object{"audio": jsonutil.Object{"volume": 50}}, "", 0, false},
		{"percent", jsonutil.Object{"audio": jsonutil.Object{"music": "a.wav", "volume": 50}}, "a.wav", 0.5, true},
		{"fraction", jsonutil.Object{"audio": jsonutil.Object{"music": "a.wav", "volume": 0.25}}, "a.wav", 0.25, true},
		{"default", jsonutil.Object{"audio": jsonutil.Object{"music": "a.wav"}}, "a.wav", 1, true},
	}
	for _, tt := range tests {
		path, vol, ok := MapMusic(tt.info)
		if path != tt.path || vol != tt.volume || ok != tt.ok {
			t.Errorf("%s: expected (%q, %v, %v), got (%q, %v, %v)", tt.name, tt.path, tt.volume, tt.ok, path, vol, ok)
		}
	}
}
