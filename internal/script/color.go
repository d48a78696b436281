package script

import (
	"fmt"
	"strconv"
	"strings"
)

// RGB is a colour with components normalised to [0,1].
type RGB struct {
	R, G, B float64
}

// ParseHexColor parses "#RRGGBB". Anything after the first six hex digits
// is ignored. ok is false for malformed input.
func ParseHexColor(s string) (c RGB, ok bool) {
	if !strings.HasPrefix(s, "#") || len(s) < 7 {
		return RGB{}, false
	}
	var ch [3]float64
	for i := range ch {
		v, err := strconv.ParseUint(s[1+2*i:3+2*i], 16, 8)
		if err != nil {
			return RGB{}, false
		}
		ch[i] = float64(v) / 255.0
	}
	return RGB{ch[0], ch[1], ch[2]}, true
}

func (c RGB) tuple() string {
	return fmt.Sprintf("(%s, %s, %s)", num(c.R), num(c.G), num(c.B))
}

func (c RGB) tupleAlpha() string {
	return fmt.Sprintf("(%s, %s, %s, 1)", num(c.R), num(c.G), num(c.B))
}
