package pathutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDisplay(t *testing.T) {
	tests := []struct {
		base, path, want string
	}{
		{"/roms", "/roms/snes/game.sfc", "snes/game.sfc"},
		{"/roms/", "/roms/snes", "snes"},
		{"", "/roms/./snes/", "/roms/snes"},
		{"/roms", "/other/game.sfc", "/other/game.sfc"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Display(tt.base, tt.path), "%s rel %s", tt.path, tt.base)
	}
}

func TestStemAndExtension(t *testing.T) {
	tests := []struct {
		path, stem, ext string
	}{
		{"/roms/snes/Chrono Trigger (USA).sfc", "Chrono Trigger (USA)", "sfc"},
		{"archive.tar.gz", "archive.tar", "gz"},
		{".DS_Store", ".DS_Store", ""},
		{"README", "README", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.stem, Stem(tt.path), tt.path)
		assert.Equal(t, tt.ext, Extension(tt.path), tt.path)
	}
}
