package plot

import (
	"sync"

	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	gplot "gonum.org/v1/plot"
	"gonum.org/v1/plot/font"
)

var goRegular = font.Font{Typeface: "Go"}

// registerFonts makes the Go font the default face of every chart. It must
// run before the first gplot.New.
var registerFonts = sync.OnceValue(func() error {
	face, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return err
	}
	font.DefaultCache.Add(font.Collection{{Font: goRegular, Face: face}})
	gplot.DefaultFont = goRegular
	return nil
})
