// Package summary renders pending tickets as a table image.
package summary

import (
	"bytes"
	"fmt"
	"image/color"
	"image/png"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/fogleman/gg"

	"callcenter/internal/api"
	"callcenter/internal/dates"
)

// Rendered at 2x scale for Telegram
const (
	margin       = 40.0
	padX         = 18.0
	padY         = 14.0
	lineGap      = 6.0
	fontSize     = 24.0
	titleFontSz  = 38.0
	titleHeight  = 100.0
	headerHeight = 70.0
	groupHeight  = 56.0
	footerHeight = 80.0
	maxDescRunes = 160
)

var (
	bgColor       = color.RGBA{R: 245, G: 247, B: 250, A: 255}
	inkColor      = color.RGBA{R: 30, G: 41, B: 59, A: 255}
	mutedColor    = color.RGBA{R: 100, G: 116, B: 139, A: 255}
	headerBgColor = color.RGBA{R: 37, G: 99, B: 235, A: 255}
	groupBgColor  = color.RGBA{R: 226, G: 232, B: 240, A: 255}
	borderColor   = color.RGBA{R: 203, G: 213, B: 225, A: 255}

	rowColors = map[ageBand]color.Color{
		fresh: color.White,
		aging: color.RGBA{R: 255, G: 247, B: 230, A: 255},
		stale: color.RGBA{R: 254, G: 235, B: 235, A: 255},
	}

	statusColors = map[string]color.Color{
		"Open":        color.RGBA{R: 37, G: 99, B: 235, A: 255},
		"In Progress": color.RGBA{R: 217, G: 119, B: 6, A: 255},
		"Closed":      color.RGBA{R: 22, G: 163, B: 74, A: 255},
		"Unanswered":  color.RGBA{R: 220, G: 38, B: 38, A: 255},
	}
)

// column is a fixed-width table column. Each returned string starts a new
// line inside the cell and is wrapped further if it is too wide.
type column struct {
	header string
	width  float64
	lines  func(t *api.Ticket, now time.Time) []string
}

var columns = []column{
	{"Ticket", 240, func(t *api.Ticket, _ time.Time) []string {
		return []string{t.TicketID, dates.ParseDisplayDate(t.EntryDateTime)}
	}},
	{"Caller", 250, func(t *api.Ticket, _ time.Time) []string {
		return []string{t.UserName, string(t.Mobile)}
	}},
	{"Role / Query", 270, func(t *api.Ticket, _ time.Time) []string {
		return []string{t.RoleName, t.QueryType}
	}},
	{"Description", 460, func(t *api.Ticket, _ time.Time) []string {
		return []string{truncate(t.QueryDescription, maxDescRunes)}
	}},
	{"Waiting", 130, func(t *api.Ticket, now time.Time) []string {
		return []string{ageLabel(ageDays(t, now))}
	}},
	{"Status", 190, func(t *api.Ticket, _ time.Time) []string {
		return []string{statusLabel(t)}
	}},
}

// row is a ticket laid out into wrapped cell lines.
type row struct {
	cells  [][]string
	height float64
	band   ageBand
	status string
}

// findFont locates a font file across Linux and Windows paths.
func findFont(bold bool) string {
	name := map[bool][2]string{
		false: {"arial.ttf", "DejaVuSans.ttf"},
		true:  {"arialbd.ttf", "DejaVuSans-Bold.ttf"},
	}[bold]

	var candidates []string
	if runtime.GOOS == "windows" {
		root := os.Getenv("WINDIR")
		if root == "" {
			root = `C:\Windows`
		}
		candidates = []string{root + `\Fonts\` + name[0]}
	} else {
		candidates = []string{
			"/usr/share/fonts/truetype/dejavu/" + name[1],
			"/usr/share/fonts/TTF/" + name[1],
		}
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return candidates[0]
}

// wrap breaks text into lines no wider than width.
func wrap(dc *gg.Context, text string, width float64) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{""}
	}
	lines := []string{words[0]}
	for _, w := range words[1:] {
		last := &lines[len(lines)-1]
		if tw, _ := dc.MeasureString(*last + " " + w); tw > width {
			lines = append(lines, w)
			continue
		}
		*last += " " + w
	}
	return lines
}

func layoutRow(dc *gg.Context, t *api.Ticket, now time.Time, lineH float64) row {
	r := row{status: statusLabel(t), band: bandOf(ageDays(t, now))}
	most := 1
	for _, col := range columns {
		var cell []string
		for _, l := range col.lines(t, now) {
			if strings.TrimSpace(l) == "" {
				continue
			}
			cell = append(cell, wrap(dc, l, col.width-padX*2)...)
		}
		if len(cell) > most {
			most = len(cell)
		}
		r.cells = append(r.cells, cell)
	}
	r.height = float64(most)*lineH + padY*2
	return r
}

// RenderTable renders tickets as a table image under title and returns PNG
// bytes. Rows are banded by district with a subtotal per band, tinted by how
// long each ticket has waited. The input slice is not modified.
func RenderTable(tickets []api.Ticket, title string) ([]byte, error) {
	if len(tickets) == 0 {
		return nil, fmt.Errorf("no tickets to render")
	}
	regular, bold := findFont(false), findFont(true)
	now := dates.Now()

	scratch := gg.NewContext(1, 1)
	if err := scratch.LoadFontFace(regular, fontSize); err != nil {
		return nil, fmt.Errorf("failed to load font: %w", err)
	}
	_, lineH := scratch.MeasureString("Ay")
	lineH += lineGap

	groups := groupByDistrict(tickets)
	rows := make([][]row, len(groups))
	tableH := headerHeight
	for gi, g := range groups {
		tableH += groupHeight
		for i := range g.Tickets {
			r := layoutRow(scratch, &g.Tickets[i], now, lineH)
			rows[gi] = append(rows[gi], r)
			tableH += r.height
		}
	}

	tableW := 0.0
	for _, col := range columns {
		tableW += col.width
	}
	width := tableW + margin*2
	height := titleHeight + tableH + footerHeight

	dc := gg.NewContext(int(width), int(height))
	dc.SetColor(bgColor)
	dc.Clear()

	if err := dc.LoadFontFace(bold, titleFontSz); err != nil {
		return nil, fmt.Errorf("failed to load bold font: %w", err)
	}
	dc.SetColor(inkColor)
	heading := fmt.Sprintf("%s  |  %s", title, now.Format("02 Jan 2006, 03:04 PM"))
	dc.DrawStringAnchored(heading, width/2, titleHeight/2, 0.5, 0.5)

	y := titleHeight
	dc.LoadFontFace(bold, fontSize)
	drawHeader(dc, y, tableW)
	y += headerHeight

	for gi, g := range groups {
		dc.LoadFontFace(bold, fontSize)
		drawGroup(dc, g, y, tableW)
		y += groupHeight

		dc.LoadFontFace(regular, fontSize)
		for _, r := range rows[gi] {
			drawRow(dc, r, y, tableW, lineH)
			y += r.height
		}
	}

	dc.SetColor(borderColor)
	dc.SetLineWidth(1)
	dc.DrawRoundedRectangle(margin, titleHeight, tableW, tableH, 12)
	dc.Stroke()

	dc.LoadFontFace(regular, fontSize)
	dc.SetColor(mutedColor)
	dc.DrawStringAnchored(footer(tickets, now), width/2, height-footerHeight/2, 0.5, 0.5)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dc.Image()); err != nil {
		return nil, fmt.Errorf("failed to encode PNG: %w", err)
	}
	return buf.Bytes(), nil
}

func drawHeader(dc *gg.Context, y, tableW float64) {
	dc.SetColor(headerBgColor)
	dc.DrawRectangle(margin, y, tableW, headerHeight)
	dc.Fill()

	dc.SetColor(color.White)
	x := margin
	for _, col := range columns {
		dc.DrawStringAnchored(col.header, x+padX, y+headerHeight/2, 0, 0.5)
		x += col.width
	}
}

// drawGroup draws the district band with its subtotal.
func drawGroup(dc *gg.Context, g group, y, tableW float64) {
	dc.SetColor(groupBgColor)
	dc.DrawRectangle(margin, y, tableW, groupHeight)
	dc.Fill()

	dc.SetColor(inkColor)
	dc.DrawStringAnchored(g.District, margin+padX, y+groupHeight/2, 0, 0.5)
	dc.SetColor(mutedColor)
	dc.DrawStringAnchored(fmt.Sprintf("%d pending  ·  %s", len(g.Tickets), statusTally(g.Tickets)),
		margin+tableW-padX, y+groupHeight/2, 1, 0.5)
}

func drawRow(dc *gg.Context, r row, y, tableW, lineH float64) {
	dc.SetColor(rowColors[r.band])
	dc.DrawRectangle(margin, y, tableW, r.height)
	dc.Fill()

	dc.SetColor(borderColor)
	dc.SetLineWidth(0.5)
	dc.DrawLine(margin, y+r.height, margin+tableW, y+r.height)
	dc.Stroke()

	x := margin
	for i, col := range columns {
		ink := color.Color(inkColor)
		if col.header == "Status" {
			if c, ok := statusColors[r.status]; ok {
				ink = c
			}
		}
		dc.SetColor(ink)
		for li, line := range r.cells[i] {
			dc.DrawStringAnchored(line, x+padX, y+padY+float64(li)*lineH+lineH/2, 0, 0.5)
		}
		x += col.width
	}
}

func footer(tickets []api.Ticket, now time.Time) string {
	s := fmt.Sprintf("Total: %d pending tickets  |  %s", len(tickets), statusTally(tickets))
	if d, ok := oldestDays(tickets, now); ok {
		s += fmt.Sprintf("  |  oldest waiting %s", ageLabel(d, true))
	}
	return s
}
