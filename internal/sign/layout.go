// Package sign stamps signature blocks onto document files. Each
// supported format has its own stamper; the Signer picks one by file
// extension and enforces the shared contract around missing sources
// and partial output.
package sign

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"sigedoc/internal/domain/services"
)

//go:embed signing.yaml
var layoutYAML []byte

// Anchor names a stamp position on a page.
type Anchor string

const (
	AnchorTopLeft      Anchor = "top-left"
	AnchorTopRight     Anchor = "top-right"
	AnchorBottomCenter Anchor = "bottom-center"
)

// MarkLayout describes where and how one mark type is stamped.
type MarkLayout struct {
	Marker string `yaml:"marker"`
	Anchor Anchor `yaml:"anchor"`
	Label  string `yaml:"label"`
}

// ExcelCells pins a mark to fixed cells on the first sheet.
type ExcelCells struct {
	ImageCell string `yaml:"image_cell"`
	NameCell  string `yaml:"name_cell"`
	DateCell  string `yaml:"date_cell"`
}

// Layout is the full stamp placement configuration.
type Layout struct {
	Marks map[string]MarkLayout `yaml:"marks"`
	Image struct {
		Width  float64 `yaml:"width"`
		Height float64 `yaml:"height"`
	} `yaml:"image"`
	Margin float64               `yaml:"margin"`
	Excel  map[string]ExcelCells `yaml:"excel"`
}

// LoadLayout parses the embedded placement configuration.
func LoadLayout() (*Layout, error) {
	var layout Layout
	if err := yaml.Unmarshal(layoutYAML, &layout); err != nil {
		return nil, fmt.Errorf("parse signing layout: %w", err)
	}
	for _, mark := range []services.MarkType{services.MarkFirmado, services.MarkRevisado, services.MarkAprobado} {
		if _, ok := layout.Marks[string(mark)]; !ok {
			return nil, fmt.Errorf("signing layout missing mark %q", mark)
		}
	}
	return &layout, nil
}

// markLayout returns the placement for a mark. LoadLayout guarantees
// every known mark is present.
func (l *Layout) markLayout(mark services.MarkType) MarkLayout {
	return l.Marks[string(mark)]
}
