package oauthflow

import (
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
)

const (
	PopupWidth  = 600
	PopupHeight = 600
)

// DefaultViewport is assumed when the caller does not report its size.
var DefaultViewport = Viewport{Width: 1280, Height: 800}

// Geometry places the authorization popup.
type Geometry struct {
	Width  int
	Height int
	Left   int
	Top    int
}

// PopupGeometry centers a fixed-size popup on v, clamped to the top-left corner.
func PopupGeometry(v Viewport) Geometry {
	if v.Width <= 0 || v.Height <= 0 {
		v = DefaultViewport
	}
	return Geometry{
		Width:  PopupWidth,
		Height: PopupHeight,
		Left:   max(v.Width/2-PopupWidth/2, 0),
		Top:    max(v.Height/2-PopupHeight/2, 0),
	}
}

// Features renders g as a window.open feature string.
func (g Geometry) Features() string {
	return fmt.Sprintf("toolbar=no, location=no, directories=no, status=no, menubar=no, "+
		"scrollbars=no, resizable=no, copyhistory=no, width=%d, height=%d, top=%d, left=%d",
		g.Width, g.Height, g.Top, g.Left)
}

// Surface presents the provider's consent screen to the user.
type Surface interface {
	Open(authURL string, g Geometry) error
}

// BrowserSurface opens the consent screen in the system browser.
type BrowserSurface struct {
	Log *slog.Logger
}

func (s BrowserSurface) Open(authURL string, g Geometry) error {
	if s.Log != nil {
		s.Log.Debug("opening authorization surface", "features", g.Features())
	}
	return OpenBrowser(authURL)
}

// OpenBrowser opens the given URL in the user's default browser.
// It is a variable so tests can override it.
var OpenBrowser = openBrowser

func openBrowser(url string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", url).Start()
	case "linux":
		return exec.Command("xdg-open", url).Start()
	case "windows":
		return exec.Command("cmd", "/c", "start", "", url).Start()
	default:
		return fmt.Errorf("unsupported platform %s: open this URL manually", runtime.GOOS)
	}
}
