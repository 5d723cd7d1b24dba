package theme

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

type RGB [3]uint8

// Palette is an ordered list of colours sampled by normalized position
type Palette struct {
	Name   string
	Colors []RGB
}

// Plasma is the built-in palette, a few stops of matplotlib's plasma map
func Plasma() *Palette {
	return &Palette{
		Name: "plasma",
		Colors: []RGB{
			{13, 8, 135},
			{84, 2, 163},
			{139, 10, 165},
			{185, 50, 137},
			{219, 92, 104},
			{244, 136, 73},
			{254, 188, 43},
			{240, 249, 33},
		},
	}
}

// LoadGPL reads a GIMP palette file
func LoadGPL(path string) (*Palette, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open palette %s", path)
	}
	defer f.Close()

	p, err := ParseGPL(f)
	if err != nil {
		return nil, errors.Wrapf(err, "palette %s", path)
	}
	return p, nil
}

// ParseGPL reads GIMP palette lines: a header, "Name:", then "R G B [label]" rows
func ParseGPL(r io.Reader) (*Palette, error) {
	p := &Palette{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(line, "Name:"):
			p.Name = strings.TrimSpace(strings.TrimPrefix(line, "Name:"))
			continue
		case line == "", line[0] == '#', strings.HasPrefix(line, "GIMP"), strings.HasPrefix(line, "Columns"):
			continue
		}
		if c, ok := parseRGB(strings.Fields(line)); ok {
			p.Colors = append(p.Colors, c)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(p.Colors) == 0 {
		return nil, errors.New("no colors found")
	}
	return p, nil
}

func parseRGB(fields []string) (RGB, bool) {
	var c RGB
	if len(fields) < 3 {
		return c, false
	}
	for i := 0; i < 3; i++ {
		v, err := strconv.Atoi(fields[i])
		if err != nil || v < 0 || v > 255 {
			return c, false
		}
		c[i] = uint8(v)
	}
	return c, true
}

// Lookup returns interpolated color for normalized value 0-1
func (p *Palette) Lookup(norm float64) RGB {
	last := len(p.Colors) - 1
	switch {
	case norm <= 0 || last == 0:
		return p.Colors[0]
	case norm >= 1:
		return p.Colors[last]
	}

	pos := norm * float64(last)
	i := int(pos)
	frac := pos - float64(i)
	var out RGB
	for ch := range out {
		out[ch] = lerp(p.Colors[i][ch], p.Colors[i+1][ch], frac)
	}
	return out
}

func lerp(a, b uint8, t float64) uint8 {
	return uint8(float64(a)*(1-t) + float64(b)*t)
}
