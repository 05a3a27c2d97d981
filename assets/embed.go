// Package assets embeds the static data the server ships with: the default
// card palette and the SQLite migrations.
package assets

import (
	"bufio"
	"embed"
	"io/fs"
	"strings"
)

//go:embed palette.txt migrations/*.sql
var FS embed.FS

func readLines(name string) ([]string, error) {
	f, err := FS.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		s := strings.TrimSpace(sc.Text())
		if s == "" || strings.HasPrefix(s, "#") {
			continue
		}
		out = append(out, s)
	}
	return out, sc.Err()
}

// PaletteList returns the raw palette lines (comments and blanks removed).
func PaletteList() ([]string, error) {
	return readLines("palette.txt")
}

// Migrations exposes the migrations directory rooted at "migrations".
func Migrations() (fs.FS, error) {
	return fs.Sub(FS, "migrations")
}
