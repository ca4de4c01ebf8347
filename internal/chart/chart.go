// Package chart renders category breakdowns as PNG bar charts.
package chart

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"

	"finbot/internal/core"

	"github.com/disintegration/imaging"
	"github.com/shopspring/decimal"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// ErrNoData is returned when there is nothing to plot.
var ErrNoData = errors.New("chart: no data")

var (
	background = color.NRGBA{255, 255, 255, 255}
	foreground = color.NRGBA{33, 33, 33, 255}
	palette    = []color.NRGBA{
		{66, 133, 244, 255},
		{219, 68, 55, 255},
		{244, 180, 0, 255},
		{15, 157, 88, 255},
		{171, 71, 188, 255},
		{0, 172, 193, 255},
		{255, 112, 67, 255},
		{158, 157, 36, 255},
	}
)

const (
	glyphWidth  = 7
	titleHeight = 28
	valueWidth  = 150
	barPadding  = 5
)

// Renderer draws one horizontal bar per category, largest first.
type Renderer struct {
	Width      int
	RowHeight  int
	Margin     int
	LabelWidth int
	// NoCategoryLabel names the bar of the absent category.
	NoCategoryLabel string

	face font.Face
}

func NewRenderer() *Renderer {
	return &Renderer{
		Width:           800,
		RowHeight:       32,
		Margin:          20,
		LabelWidth:      180,
		NoCategoryLabel: "-",
		face:            basicfont.Face7x13,
	}
}

// Render draws totals under title and returns the PNG bytes.
func (r *Renderer) Render(title string, totals core.CategoryTotals) ([]byte, error) {
	if len(totals) == 0 {
		return nil, ErrNoData
	}
	rows := totals.Sorted()

	sum, peak := decimal.Zero, decimal.Zero
	for _, row := range rows {
		sum = sum.Add(row.Amount)
		if row.Amount.GreaterThan(peak) {
			peak = row.Amount
		}
	}

	img := imaging.New(r.Width, r.height(len(rows)), background)
	r.text(img, r.Margin, r.Margin+13, Transliterate(title))

	x0 := r.Margin + r.LabelWidth
	barMax := r.Width - x0 - r.Margin - valueWidth
	for i, row := range rows {
		y := r.Margin + titleHeight + i*r.RowHeight
		baseline := y + r.RowHeight/2 + 4

		r.text(img, r.Margin, baseline, r.fit(r.label(row.Category)))

		w := barWidth(row.Amount, peak, barMax)
		if w > 0 {
			bar := imaging.New(w, r.RowHeight-2*barPadding, palette[i%len(palette)])
			img = imaging.Paste(img, bar, image.Pt(x0, y+barPadding))
		}
		r.text(img, x0+w+6, baseline, fmt.Sprintf("%s (%s%%)", row.Amount.StringFixed(2), percent(row.Amount, sum)))
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode chart: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) height(rows int) int {
	return 2*r.Margin + titleHeight + rows*r.RowHeight
}

func (r *Renderer) label(c core.Category) string {
	if !c.Valid {
		return r.NoCategoryLabel
	}
	return Transliterate(c.Name)
}

// fit shortens s to the label column.
func (r *Renderer) fit(s string) string {
	n := r.LabelWidth/glyphWidth - 1
	rs := []rune(s)
	if len(rs) <= n {
		return s
	}
	if n <= 3 {
		return string(rs[:n])
	}
	return string(rs[:n-3]) + "..."
}

func (r *Renderer) text(dst *image.NRGBA, x, y int, s string) {
	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(foreground),
		Face: r.face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

// barWidth scales amount against peak. Non-positive amounts get no bar;
// any positive amount gets at least one pixel.
func barWidth(amount, peak decimal.Decimal, limit int) int {
	if !amount.IsPositive() || !peak.IsPositive() || limit <= 0 {
		return 0
	}
	w := int(amount.Div(peak).Mul(decimal.NewFromInt(int64(limit))).IntPart())
	if w < 1 {
		w = 1
	}
	return w
}

func percent(amount, sum decimal.Decimal) string {
	if sum.IsZero() {
		return "0.0"
	}
	return amount.Div(sum).Mul(decimal.NewFromInt(100)).StringFixed(1)
}
