// Package colors converts between HTML hex colour codes, RGB fractions and CMYK
// percent strings. The conversions are plain arithmetic without colour management.
package colors

import (
	"fmt"
	"html"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	htmlColorRe = regexp.MustCompile(`^#([a-fA-F0-9]{6}|[a-fA-F0-9]{3})$`)
	cmykRe      = regexp.MustCompile(`^(\d{1,3},){3}\d{1,3}$`)
)

// IsHTMLColor reports whether code looks like "#RRGGBB" or "#RGB".
func IsHTMLColor(code string) bool {
	return htmlColorRe.MatchString(code)
}

// IsCMYK reports whether code is four comma separated percent values, e.g. "0,100,100,0".
func IsCMYK(code string) bool {
	if len(code) < 7 || len(code) > 15 || !cmykRe.MatchString(code) {
		return false
	}
	for _, p := range strings.Split(code, ",") {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n > 100 {
			return false
		}
	}
	return true
}

// HTMLToStrings splits "#FFCC00" (or "FFCC00") into ["FF", "CC", "00"].
// Short codes like "#FC0" are expanded first.
func HTMLToStrings(code string) []string {
	code = expand(strings.TrimPrefix(code, "#"))
	if len(code) < 6 {
		return nil
	}
	return []string{code[0:2], code[2:4], code[4:6]}
}

func expand(hex string) string {
	if len(hex) != 3 {
		return hex
	}
	return string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
}

// HTMLToInts converts "#FFCC00" to [255, 204, 0].
func HTMLToInts(code string) ([]int, error) {
	parts := HTMLToStrings(code)
	if parts == nil {
		return nil, fmt.Errorf("invalid colour code %q", code)
	}
	out := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 16, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid colour code %q: %w", code, err)
		}
		out[i] = int(n)
	}
	return out, nil
}

// HTMLToFloats converts "#FFCC00" to [1.0, 0.8, 0.0].
func HTMLToFloats(code string) ([]float64, error) {
	ints, err := HTMLToInts(code)
	if err != nil {
		return nil, err
	}
	out := make([]float64, 3)
	for i, n := range ints {
		out[i] = float64(n) / 255
	}
	return out, nil
}

// RGBToCMYK converts r, g, b fractions (0..1) to C, M, Y, K percent values.
// ucr is the under colour removal factor: 0 keeps a pure CMY separation, 1
// moves the full grey component into K.
func RGBToCMYK(r, g, b, ucr float64) [4]int {
	c, m, y := 1-r, 1-g, 1-b
	k := math.Min(c, math.Min(m, y)) * ucr
	c, m, y = c-k, m-k, y-k
	return [4]int{pct(c), pct(m), pct(y), pct(k)}
}

func pct(x float64) int {
	return int(math.Round(x * 100))
}

// HTMLToCMYK converts a hex code to CMYK percent values.
func HTMLToCMYK(code string, ucr float64) ([4]int, error) {
	f, err := HTMLToFloats(code)
	if err != nil {
		return [4]int{}, err
	}
	return RGBToCMYK(f[0], f[1], f[2], ucr), nil
}

// FormatCMYK renders values the way CMYK fields are stored: "C,M,Y,K".
func FormatCMYK(v [4]int) string {
	return fmt.Sprintf("%d,%d,%d,%d", v[0], v[1], v[2], v[3])
}

// CMYKToRGB converts "100,80,0,0" to RGB channel values 0..255. ok is false for
// invalid input. When a channel plus K exceeds 100, K is reduced to fit.
func CMYKToRGB(cmyk string) (rgb [3]float64, ok bool) {
	if !IsCMYK(cmyk) {
		return rgb, false
	}
	var v [4]float64
	for i, p := range strings.Split(cmyk, ",") {
		n, _ := strconv.Atoi(p)
		v[i] = float64(n)
	}
	c, m, y, k := v[0], v[1], v[2], v[3]
	if math.Max(c+k, math.Max(m+k, y+k)) > 100 {
		k = 100 - math.Max(c, math.Max(m, y))
	}
	for i, x := range []float64{c, m, y} {
		rgb[i] = (1 - (x+k)/100) * 255
	}
	return rgb, true
}

// CMYKToHTML converts "100,80,0,0" to "#0033FF", rounding each channel to the
// nearest integer. Invalid input gives "".
func CMYKToHTML(cmyk string) string {
	rgb, ok := CMYKToRGB(cmyk)
	if !ok {
		return ""
	}
	return fmt.Sprintf("#%02X%02X%02X", int(math.Round(rgb[0])), int(math.Round(rgb[1])), int(math.Round(rgb[2])))
}

// ColorSpot renders a small swatch followed by text (the code itself when text is empty).
func ColorSpot(code, text string) string {
	if text == "" {
		text = code
	}
	return fmt.Sprintf(`<span class="colorspot" style="background-color:%s;">&nbsp;&nbsp;&nbsp;</span>&nbsp;%s`,
		html.EscapeString(code), html.EscapeString(text))
}
