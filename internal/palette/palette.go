// internal/palette/palette.go
//
// Card color palette management.
//
// Responsibilities:
//   - Load the palette from PALETTE_FILE or fall back to the embedded default.
//   - Normalize tokens to "#RRGGBB" and drop invalid or duplicate entries.
//   - Expose Colors/Size for the deck generator and difficulty validation.
//
// Palette file format:
//   One hex color per line, with or without a leading '#'. Blank lines and
//   lines starting with "//" are ignored. Order matters: a round with N pairs
//   uses the first N colors.
//
// Initialization is run once (sync.Once).

package palette

import (
	"bufio"
	"errors"
	"os"
	"strings"
	"sync"

	"github.com/robalobadob/huerush/assets"
)

var (
	initOnce   sync.Once
	colors     []string
	initialErr error
)

// ErrEmpty is returned when no valid color could be loaded.
var ErrEmpty = errors.New("palette: no valid colors")

// Init loads the palette exactly once.
func Init() error {
	initOnce.Do(func() {
		var raw []string
		var err error
		if path := os.Getenv("PALETTE_FILE"); path != "" {
			raw, err = readFile(path)
		} else {
			raw, err = assets.PaletteList()
		}
		if err != nil {
			initialErr = err
			return
		}
		colors = Normalize(raw)
		if len(colors) == 0 {
			initialErr = ErrEmpty
		}
	})
	return initialErr
}

// Colors returns the loaded palette. Callers must not modify the slice.
func Colors() []string {
	_ = Init()
	return colors
}

// Size reports how many distinct colors are available.
func Size() int { return len(Colors()) }

// Normalize converts raw lines into distinct "#RRGGBB" tokens, preserving
// first-seen order.
func Normalize(lines []string) []string {
	seen := make(map[string]struct{}, len(lines))
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		tok, ok := parseToken(line)
		if !ok {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
	}
	return out
}

func parseToken(s string) (string, bool) {
	s = strings.ToUpper(strings.TrimPrefix(strings.TrimSpace(s), "#"))
	if len(s) != 6 {
		return "", false
	}
	for _, r := range s {
		if !(r >= '0' && r <= '9' || r >= 'A' && r <= 'F') {
			return "", false
		}
	}
	return "#" + s, true
}

func readFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}
		out = append(out, line)
	}
	return out, sc.Err()
}
