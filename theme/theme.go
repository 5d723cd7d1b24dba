package theme

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"go-stems/recorder"
)

type Theme struct {
	Palette *Palette
	Symbols Symbols
}

type Symbols struct {
	Pending rune // · not reached yet
	Active  rune // ● capturing
	Done    rune // ✓ persisted
	Failed  rune // ✗ persist or device error

	MeterFull  rune
	MeterEmpty rune
}

func New(palette *Palette) *Theme {
	if palette == nil {
		palette = Plasma()
	}
	return &Theme{
		Palette: palette,
		Symbols: Symbols{
			Pending:    '·',
			Active:     '●',
			Done:       '✓',
			Failed:     '✗',
			MeterFull:  '█',
			MeterEmpty: '░',
		},
	}
}

// Load uses the GIMP palette at path, or the built-in one when path is empty
func Load(path string) (*Theme, error) {
	if path == "" {
		return New(nil), nil
	}
	p, err := LoadGPL(path)
	if err != nil {
		return nil, err
	}
	return New(p), nil
}

// Color roles mapped to palette positions (0-1)
const (
	RoleMuted   = 0.15
	RoleFG      = 0.45
	RoleAccent  = 0.55
	RoleWarning = 0.75
	RoleSuccess = 1.0
)

func (t *Theme) FG() lipgloss.Color      { return t.Color(RoleFG) }
func (t *Theme) Accent() lipgloss.Color  { return t.Color(RoleAccent) }
func (t *Theme) Muted() lipgloss.Color   { return t.Color(RoleMuted) }
func (t *Theme) Warning() lipgloss.Color { return t.Color(RoleWarning) }
func (t *Theme) Success() lipgloss.Color { return t.Color(RoleSuccess) }

// Color returns lipgloss color for any normalized value 0-1
func (t *Theme) Color(norm float64) lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(norm))
}

// Phase maps a recording phase to a colour along the palette
func (t *Theme) Phase(p recorder.Phase) lipgloss.Color {
	switch p {
	case recorder.PhaseIdle:
		return t.Muted()
	case recorder.PhasePersisted, recorder.PhaseDone:
		return t.Success()
	}
	// isolated .. tail spread across the middle of the palette
	return t.Color(0.3 + 0.1*float64(p))
}

// Glyph picks the row marker for a track
func (t *Theme) Glyph(p recorder.Phase, failed bool) rune {
	switch {
	case failed:
		return t.Symbols.Failed
	case p == recorder.PhaseIdle:
		return t.Symbols.Pending
	case p == recorder.PhasePersisted || p == recorder.PhaseDone:
		return t.Symbols.Done
	}
	return t.Symbols.Active
}

func rgbToLipgloss(c RGB) lipgloss.Color {
	return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2]))
}
