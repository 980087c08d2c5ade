package pdfexport

import "fmt"

// Settings is the fixed page layout applied to every export.
type Settings struct {
	PageWidthIn     float64
	PageHeightIn    float64
	MarginIn        float64
	Scale           float64
	PrintBackground bool
}

// DefaultSettings fit a typical one-page resume on US Letter.
func DefaultSettings() Settings {
	return Settings{
		PageWidthIn:     8.5,
		PageHeightIn:    11,
		MarginIn:        0.6,
		Scale:           0.85,
		PrintBackground: true,
	}
}

// Validate rejects layouts Chromium would refuse or that leave no printable area.
func (s Settings) Validate() error {
	switch {
	case s.PageWidthIn <= 0 || s.PageHeightIn <= 0:
		return fmt.Errorf("page size must be positive, got %.2fx%.2fin", s.PageWidthIn, s.PageHeightIn)
	case s.MarginIn < 0 || 2*s.MarginIn >= s.PageWidthIn || 2*s.MarginIn >= s.PageHeightIn:
		return fmt.Errorf("margin %.2fin leaves no printable area", s.MarginIn)
	case s.Scale < 0.1 || s.Scale > 2:
		return fmt.Errorf("scale %.2f outside Chromium's 0.1-2 range", s.Scale)
	}
	return nil
}

func (s Settings) inches(v float64) string { return fmt.Sprintf("%gin", v) }

func floatPtr(v float64) *float64 { return &v }
