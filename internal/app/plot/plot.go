// Package plot renders two time series against a shared time axis with
// independent left and right y-axes, written as SVG.
package plot

import (
	"errors"
	"fmt"
	"html"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/reedan88/Isaias/internal/domain"
)

var (
	ErrEmptySeries     = errors.New("series has no finite values")
	ErrUnknownVariable = errors.New("variable not in dataset")
)

// Series is one line of the chart. Label may contain a newline separating the
// name from the units.
type Series struct {
	Times  []time.Time
	Values []float64
	Label  string
	Color  string
}

// Chart is a dual-axis figure.
type Chart struct {
	Title  string
	XLabel string
	Left   Series
	Right  Series
	Width  int
	Height int
}

const (
	defaultWidth  = 1000
	defaultHeight = 500
	marginLeft    = 90
	marginRight   = 90
	marginTop     = 50
	marginBottom  = 80
	yTicks        = 5
	xTicks        = 6
)

// SeriesFrom extracts a variable and its label ("long_name\nunits") from an
// assembled dataset.
func SeriesFrom(ds *domain.Dataset, variable, color string) (Series, error) {
	v, ok := ds.Var(variable)
	if !ok {
		return Series{}, fmt.Errorf("%w: %s", ErrUnknownVariable, variable)
	}
	label := v.Label()
	if u := v.Attr(domain.AttrUnits); u != "" {
		label += "\n" + u
	}
	return Series{Times: ds.Time, Values: v.Values, Label: label, Color: color}, nil
}

// XLabelFrom labels the time axis the way the series are labelled.
func XLabelFrom(ds *domain.Dataset) string {
	v, ok := ds.Var(domain.VarTime)
	if !ok {
		return "Time"
	}
	if v.Attr(domain.AttrLong) == "" && v.Attr(domain.AttrStd) == "" {
		return "Time"
	}
	return v.Label()
}

type extent struct{ lo, hi float64 }

func (e extent) span() float64 {
	if e.hi == e.lo {
		return 1
	}
	return e.hi - e.lo
}

func valueExtent(s Series) (extent, bool) {
	e := extent{lo: math.Inf(1), hi: math.Inf(-1)}
	for i, v := range s.Values {
		if i >= len(s.Times) || s.Times[i].IsZero() || math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		e.lo = math.Min(e.lo, v)
		e.hi = math.Max(e.hi, v)
	}
	if math.IsInf(e.lo, 1) {
		return e, false
	}
	if e.lo == e.hi {
		e.lo, e.hi = e.lo-0.5, e.hi+0.5
	}
	return e, true
}

func timeExtent(series ...Series) extent {
	e := extent{lo: math.Inf(1), hi: math.Inf(-1)}
	for _, s := range series {
		for _, t := range s.Times {
			if t.IsZero() {
				continue
			}
			x := float64(t.UnixMilli())
			e.lo = math.Min(e.lo, x)
			e.hi = math.Max(e.hi, x)
		}
	}
	return e
}

// Render writes the chart as a standalone SVG document.
func Render(w io.Writer, c Chart) error {
	if c.Width <= 0 {
		c.Width = defaultWidth
	}
	if c.Height <= 0 {
		c.Height = defaultHeight
	}
	if c.XLabel == "" {
		c.XLabel = "Time"
	}
	ly, ok := valueExtent(c.Left)
	if !ok {
		return fmt.Errorf("left: %w", ErrEmptySeries)
	}
	ry, ok := valueExtent(c.Right)
	if !ok {
		return fmt.Errorf("right: %w", ErrEmptySeries)
	}
	tx := timeExtent(c.Left, c.Right)

	plotW := float64(c.Width - marginLeft - marginRight)
	plotH := float64(c.Height - marginTop - marginBottom)
	x0, y0 := float64(marginLeft), float64(marginTop)

	xPos := func(t time.Time) float64 { return x0 + (float64(t.UnixMilli())-tx.lo)/tx.span()*plotW }
	yPos := func(e extent, v float64) float64 { return y0 + plotH - (v-e.lo)/e.span()*plotH }

	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d" font-family="sans-serif">`+"\n",
		c.Width, c.Height, c.Width, c.Height)
	fmt.Fprintf(&b, `<rect width="%d" height="%d" fill="white"/>`+"\n", c.Width, c.Height)
	if c.Title != "" {
		fmt.Fprintf(&b, `<text class="title" x="%d" y="%d" text-anchor="middle" font-size="16">%s</text>`+"\n",
			c.Width/2, marginTop/2+5, html.EscapeString(c.Title))
	}
	fmt.Fprintf(&b, `<rect x="%s" y="%s" width="%s" height="%s" fill="none" stroke="black"/>`+"\n",
		num(x0), num(y0), num(plotW), num(plotH))

	// x axis
	for i := 0; i <= xTicks; i++ {
		ms := tx.lo + tx.span()*float64(i)/xTicks
		t := time.UnixMilli(int64(ms)).UTC()
		x := xPos(t)
		fmt.Fprintf(&b, `<line x1="%s" y1="%s" x2="%s" y2="%s" stroke="black"/>`+"\n", num(x), num(y0+plotH), num(x), num(y0+plotH+5))
		fmt.Fprintf(&b, `<text x="%s" y="%s" text-anchor="middle" font-size="11">%s</text>`+"\n",
			num(x), num(y0+plotH+20), t.Format("01-02 15:04"))
	}
	fmt.Fprintf(&b, `<text class="xlabel" x="%s" y="%d" text-anchor="middle" font-size="12">%s</text>`+"\n",
		num(x0+plotW/2), c.Height-20, html.EscapeString(c.XLabel))

	axis(&b, "left", c.Left, ly, x0, y0, plotH, yPos)
	axis(&b, "right", c.Right, ry, x0+plotW, y0, plotH, yPos)

	line(&b, c.Left, func(t time.Time, v float64) (float64, float64) { return xPos(t), yPos(ly, v) })
	line(&b, c.Right, func(t time.Time, v float64) (float64, float64) { return xPos(t), yPos(ry, v) })

	b.WriteString("</svg>\n")
	_, err := io.WriteString(w, b.String())
	return err
}

func axis(b *strings.Builder, side string, s Series, e extent, x, y0, plotH float64, yPos func(extent, float64) float64) {
	color := colorOr(s.Color)
	dir, anchor := -1.0, "end"
	if side == "right" {
		dir, anchor = 1.0, "start"
	}
	for i := 0; i <= yTicks; i++ {
		v := e.lo + e.span()*float64(i)/yTicks
		y := yPos(e, v)
		fmt.Fprintf(b, `<line x1="%s" y1="%s" x2="%s" y2="%s" stroke="%s"/>`+"\n", num(x), num(y), num(x+5*dir), num(y), color)
		fmt.Fprintf(b, `<text x="%s" y="%s" text-anchor="%s" font-size="11" fill="%s">%s</text>`+"\n",
			num(x+8*dir), num(y+4), anchor, color, strconv.FormatFloat(v, 'g', 4, 64))
	}

	lx := x + 60*dir
	ly := y0 + plotH/2
	rot := -90
	if side == "right" {
		rot = 90
	}
	fmt.Fprintf(b, `<text class="ylabel-%s" transform="translate(%s,%s) rotate(%d)" text-anchor="middle" font-size="12" fill="%s">`,
		side, num(lx), num(ly), rot, color)
	for i, part := range strings.Split(s.Label, "\n") {
		dy := "0"
		if i > 0 {
			dy = "1.2em"
		}
		fmt.Fprintf(b, `<tspan x="0" dy="%s">%s</tspan>`, dy, html.EscapeString(part))
	}
	b.WriteString("</text>\n")
}

// line draws one polyline per run of finite values so gaps stay visible.
func line(b *strings.Builder, s Series, at func(time.Time, float64) (float64, float64)) {
	var pts []string
	flush := func() {
		if len(pts) > 0 {
			fmt.Fprintf(b, `<polyline fill="none" stroke="%s" stroke-width="1.5" points="%s"/>`+"\n",
				colorOr(s.Color), strings.Join(pts, " "))
		}
		pts = pts[:0]
	}
	for i, v := range s.Values {
		if i >= len(s.Times) {
			break
		}
		if s.Times[i].IsZero() || math.IsNaN(v) || math.IsInf(v, 0) {
			flush()
			continue
		}
		x, y := at(s.Times[i], v)
		pts = append(pts, num(x)+","+num(y))
	}
	flush()
}

// Tableau palette names accepted alongside any SVG color.
var tableau = map[string]string{
	"tab:blue":   "#1f77b4",
	"tab:orange": "#ff7f0e",
	"tab:green":  "#2ca02c",
	"tab:red":    "#d62728",
	"tab:purple": "#9467bd",
	"tab:brown":  "#8c564b",
	"tab:pink":   "#e377c2",
	"tab:gray":   "#7f7f7f",
	"tab:olive":  "#bcbd22",
	"tab:cyan":   "#17becf",
}

func colorOr(c string) string {
	if c == "" {
		return "black"
	}
	if hex, ok := tableau[strings.ToLower(c)]; ok {
		return hex
	}
	return html.EscapeString(c)
}

func num(f float64) string {
	return strconv.FormatFloat(f, 'f', 1, 64)
}
