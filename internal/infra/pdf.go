package infra

// pdf.go: printable door poster for a gym's current entry code, rendered with
// go-pdf/fpdf. A5 portrait:
//   - Gym name header and address
//   - QR image, centered
//   - Points charged per entry
//   - Validity window

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/go-pdf/fpdf"
)

// PosterData is everything printed on an entry poster.
type PosterData struct {
	GymName        string
	GymAddress     string
	PointsRequired int64
	IssuedAt       time.Time
	ExpiresAt      time.Time
	QRPNG          []byte
}

// WriteQRPoster renders the poster as PDF into w.
func WriteQRPoster(w io.Writer, data PosterData) error {
	if len(data.QRPNG) == 0 {
		return fmt.Errorf("pdf: empty QR image")
	}

	pdf := fpdf.New("P", "mm", "A5", "")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()

	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 30

	// ── Header ───────────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "B", 22)
	pdf.CellFormat(contentW, 11, data.GymName, "", 1, "C", false, 0, "")
	if data.GymAddress != "" {
		pdf.SetFont("Helvetica", "", 12)
		pdf.CellFormat(contentW, 7, data.GymAddress, "", 1, "C", false, 0, "")
	}
	pdf.Ln(8)

	// ── QR image ──────────────────────────────────────────────────────────────
	opts := fpdf.ImageOptions{ImageType: "PNG", ReadDpi: false}
	pdf.RegisterImageOptionsReader("entry-qr", opts, bytes.NewReader(data.QRPNG))
	if err := pdf.Error(); err != nil {
		return fmt.Errorf("pdf: register QR image: %w", err)
	}
	const qrW = 100.0
	pdf.ImageOptions("entry-qr", (pageW-qrW)/2, pdf.GetY(), qrW, qrW, false, opts, 0, "")
	pdf.SetY(pdf.GetY() + qrW + 8)

	// ── Pricing ───────────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "B", 15)
	pdf.CellFormat(contentW, 10, fmt.Sprintf("Scan to enter: %d points", data.PointsRequired), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	// ── Validity ──────────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(contentW, 6,
		fmt.Sprintf("Valid %s to %s (UTC)",
			data.IssuedAt.UTC().Format("2006-01-02 15:04"),
			data.ExpiresAt.UTC().Format("2006-01-02 15:04")),
		"", 1, "C", false, 0, "")

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("pdf: write: %w", err)
	}
	return nil
}
