package sign

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/unidoc/unipdf/v3/creator"
	"github.com/unidoc/unipdf/v3/extractor"
	"github.com/unidoc/unipdf/v3/model"

	"sigedoc/internal/domain"
	"sigedoc/internal/domain/services"
)

// PDFStamper places a signature block on a PDF. The page is chosen by
// scanning for the mark's placeholder token; when no page carries it
// the last page is used.
type PDFStamper struct {
	layout *Layout
	logger *slog.Logger
}

// NewPDFStamper builds a PDF stamper with the given placement layout.
func NewPDFStamper(layout *Layout, logger *slog.Logger) *PDFStamper {
	return &PDFStamper{layout: layout, logger: logger}
}

// Stamp rewrites the source PDF with exactly one stamp block added.
func (s *PDFStamper) Stamp(ctx context.Context, req *services.StampRequest) error {
	f, err := os.Open(req.SourcePath)
	if err != nil {
		return fmt.Errorf("%w: %s", domain.ErrSourceMissing, req.SourcePath)
	}
	defer f.Close()

	reader, err := model.NewPdfReader(f)
	if err != nil {
		return fmt.Errorf("%w: read pdf: %v", domain.ErrSigningFailed, err)
	}

	numPages, err := reader.GetNumPages()
	if err != nil {
		return fmt.Errorf("%w: page count: %v", domain.ErrSigningFailed, err)
	}
	if numPages == 0 {
		return fmt.Errorf("%w: empty pdf", domain.ErrSigningFailed)
	}

	mark := s.layout.markLayout(req.Mark)
	targetPage := s.findMarkerPage(reader, numPages, mark.Marker)

	c := creator.New()
	for i := 1; i <= numPages; i++ {
		page, err := reader.GetPage(i)
		if err != nil {
			return fmt.Errorf("%w: page %d: %v", domain.ErrSigningFailed, i, err)
		}
		if err := c.AddPage(page); err != nil {
			return fmt.Errorf("%w: copy page %d: %v", domain.ErrSigningFailed, i, err)
		}
		if i == targetPage {
			if err := s.drawBlock(c, page, mark, req); err != nil {
				return err
			}
		}
	}

	// Write next to the final path and rename so a failure mid-write
	// never leaves a truncated file at OutputPath.
	tmp := req.OutputPath + ".tmp"
	if err := c.WriteToFile(tmp); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: write pdf: %v", domain.ErrSigningFailed, err)
	}
	if err := os.Rename(tmp, req.OutputPath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: place output: %v", domain.ErrStorage, err)
	}

	return nil
}

// findMarkerPage extracts each page's text and selects the stamp page.
// Extraction errors on a page count as no match; scanned pages without
// a text layer behave the same way.
func (s *PDFStamper) findMarkerPage(reader *model.PdfReader, numPages int, marker string) int {
	texts := make([]string, numPages)
	for i := 1; i <= numPages; i++ {
		page, err := reader.GetPage(i)
		if err != nil {
			continue
		}
		ex, err := extractor.New(page)
		if err != nil {
			continue
		}
		text, err := ex.ExtractText()
		if err != nil {
			continue
		}
		texts[i-1] = text
	}
	return markerPage(texts, marker)
}

// markerPage returns the 1-based number of the first page whose text
// contains the marker, or the last page when none does.
func markerPage(texts []string, marker string) int {
	for i, text := range texts {
		if strings.Contains(text, marker) {
			return i + 1
		}
	}
	return len(texts)
}

// stampOrigin computes the top-left corner of a stamp block for an
// anchor on a page of the given size.
func stampOrigin(anchor Anchor, pageW, pageH, imgW, blockH, margin float64) (x, y float64) {
	switch anchor {
	case AnchorTopRight:
		return pageW - margin - imgW, margin
	case AnchorBottomCenter:
		return (pageW - imgW) / 2, pageH - margin - blockH
	default:
		return margin, margin
	}
}

func (s *PDFStamper) drawBlock(c *creator.Creator, page *model.PdfPage, mark MarkLayout, req *services.StampRequest) error {
	mbox, err := page.GetMediaBox()
	if err != nil {
		return fmt.Errorf("%w: media box: %v", domain.ErrSigningFailed, err)
	}
	pageW := mbox.Urx - mbox.Llx
	pageH := mbox.Ury - mbox.Lly

	imgW := s.layout.Image.Width
	imgH := s.layout.Image.Height
	margin := s.layout.Margin
	const lineHeight = 12.0

	blockH := imgH + 2*lineHeight
	hasImage := req.SignatureImage != ""
	if !hasImage {
		blockH = 3 * lineHeight
	}

	x, y := stampOrigin(mark.Anchor, pageW, pageH, imgW, blockH, margin)

	textY := y
	if hasImage {
		img, err := c.NewImageFromFile(req.SignatureImage)
		if err != nil {
			return fmt.Errorf("%w: load signature image: %v", domain.ErrSigningFailed, err)
		}
		img.ScaleToWidth(imgW)
		img.SetPos(x, y)
		if err := c.Draw(img); err != nil {
			return fmt.Errorf("%w: draw signature image: %v", domain.ErrSigningFailed, err)
		}
		textY = y + imgH
	} else {
		label := c.NewParagraph(strings.ToUpper(string(req.Mark)))
		label.SetFontSize(11)
		label.SetPos(x, textY)
		if err := c.Draw(label); err != nil {
			return fmt.Errorf("%w: draw mark label: %v", domain.ErrSigningFailed, err)
		}
		textY += lineHeight
	}

	name := c.NewParagraph(fmt.Sprintf("%s: %s", mark.Label, req.SignerName))
	name.SetFontSize(9)
	name.SetPos(x, textY)
	if err := c.Draw(name); err != nil {
		return fmt.Errorf("%w: draw signer name: %v", domain.ErrSigningFailed, err)
	}

	date := c.NewParagraph(time.Now().Format("02/01/2006"))
	date.SetFontSize(9)
	date.SetPos(x, textY+lineHeight)
	if err := c.Draw(date); err != nil {
		return fmt.Errorf("%w: draw date: %v", domain.ErrSigningFailed, err)
	}

	return nil
}
