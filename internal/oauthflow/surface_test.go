package oauthflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPopupGeometry(t *testing.T) {
	tests := []struct {
		name string
		in   Viewport
		want Geometry
	}{
		{"centered", Viewport{Width: 1600, Height: 1000}, Geometry{Width: 600, Height: 600, Left: 500, Top: 200}},
		{"default viewport", Viewport{}, Geometry{Width: 600, Height: 600, Left: 340, Top: 100}},
		{"small viewport clamps", Viewport{Width: 400, Height: 300}, Geometry{Width: 600, Height: 600, Left: 0, Top: 0}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PopupGeometry(tt.in), tt.name)
	}
}

func TestGeometry_Features(t *testing.T) {
	f := Geometry{Width: 600, Height: 600, Left: 340, Top: 100}.Features()
	assert.Contains(t, f, "width=600, height=600, top=100, left=340")
	assert.Contains(t, f, "toolbar=no")
}

func TestBrowserSurface_UsesOpenBrowser(t *testing.T) {
	var opened string
	orig := OpenBrowser
	OpenBrowser = func(url string) error {
		opened = url
		return nil
	}
	defer func() { OpenBrowser = orig }()

	err := BrowserSurface{}.Open("https://cloud.example.com/authorize", PopupGeometry(Viewport{}))
	assert.NoError(t, err)
	assert.Equal(t, "https://cloud.example.com/authorize", opened)
}
