package components

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/paulmach/orb"

	"github.com/rendis/eyescan/internal/tui/styles"
)

const (
	maxZoom = 20
	minZoom = 0.5
)

// MapView renders hospital locations as a Braille scatter plot. Points are orb
// points (lng, lat); markers are drawn in a second color, e.g. search zone centers.
type MapView struct {
	width    int
	height   int
	points   []orb.Point
	markers  []orb.Point
	selected int

	base orb.Bound // fitted bounds before zoom and pan
	view orb.Bound
	zoom float64
	pan  orb.Point // offset of the view center, degrees
}

func NewMapView(width, height int) MapView {
	return MapView{width: width, height: height, selected: -1, zoom: 1}
}

func (m *MapView) SetSize(width, height int) {
	m.width = width
	m.height = height
}

// SetPoints replaces the plotted points and refits the view around them and the markers.
func (m *MapView) SetPoints(points []orb.Point) {
	m.points = points
	m.fit()
}

func (m *MapView) SetMarkers(markers []orb.Point) {
	m.markers = markers
	m.fit()
}

// SetSelected highlights the point at idx; -1 clears the highlight.
func (m *MapView) SetSelected(idx int) {
	m.selected = idx
}

func (m *MapView) ZoomIn() {
	m.zoom = math.Min(m.zoom*1.5, maxZoom)
	m.apply()
}

func (m *MapView) ZoomOut() {
	m.zoom = math.Max(m.zoom/1.5, minZoom)
	m.apply()
}

func (m *MapView) ZoomReset() {
	m.zoom = 1
	m.pan = orb.Point{}
	m.apply()
}

// Pan moves the view by a tenth of its span per step; positive dLat moves north.
func (m *MapView) Pan(dLat, dLng float64) {
	m.pan[1] += dLat * (m.base.Top() - m.base.Bottom()) * 0.1 / m.zoom
	m.pan[0] += dLng * (m.base.Right() - m.base.Left()) * 0.1 / m.zoom
	m.apply()
}

// Bound is the area currently shown.
func (m MapView) Bound() orb.Bound {
	return m.view
}

func (m *MapView) fit() {
	all := make(orb.MultiPoint, 0, len(m.points)+len(m.markers))
	all = append(all, m.points...)
	all = append(all, m.markers...)
	if len(all) == 0 {
		m.base = orb.Bound{}
		m.apply()
		return
	}

	b := all.Bound()
	latPad := math.Max((b.Top()-b.Bottom())*0.05, 0.01)
	lngPad := math.Max((b.Right()-b.Left())*0.05, 0.01)
	m.base = orb.Bound{
		Min: orb.Point{b.Left() - lngPad, b.Bottom() - latPad},
		Max: orb.Point{b.Right() + lngPad, b.Top() + latPad},
	}
	m.apply()
}

func (m *MapView) apply() {
	c := m.base.Center()
	c[0] += m.pan[0]
	c[1] += m.pan[1]
	halfLng := (m.base.Right() - m.base.Left()) / 2 / m.zoom
	halfLat := (m.base.Top() - m.base.Bottom()) / 2 / m.zoom
	m.view = orb.Bound{
		Min: orb.Point{c[0] - halfLng, c[1] - halfLat},
		Max: orb.Point{c[0] + halfLng, c[1] + halfLat},
	}
}

// Each braille cell is a 2x4 dot grid; a dot at (row, col) sets brailleBits[row][col]
// on top of U+2800.
var brailleBits = [4][2]rune{
	{0x01, 0x08},
	{0x02, 0x10},
	{0x04, 0x20},
	{0x40, 0x80},
}

type layer int

const (
	layerNone layer = iota
	layerMarker
	layerPoint
	layerSelected
)

func (m MapView) View() string {
	if m.width <= 0 || m.height <= 0 {
		return ""
	}

	dotW, dotH := m.width*2, m.height*4
	latRange := m.view.Top() - m.view.Bottom()
	lngRange := m.view.Right() - m.view.Left()
	if latRange <= 0 || lngRange <= 0 {
		return strings.TrimSuffix(strings.Repeat(strings.Repeat(" ", m.width)+"\n", m.height), "\n")
	}

	// Braille dots are roughly square on screen; scale longitude by cos(lat) so
	// the plot keeps its geographic aspect ratio.
	cosLat := math.Cos(m.view.Center().Lat() * math.Pi / 180)
	geoAspect := lngRange * cosLat / latRange
	effW, effH := dotW, dotH
	offX, offY := 0, 0
	if geoAspect < float64(dotW)/float64(dotH) {
		effW = max(int(float64(dotH)*geoAspect), 4)
		offX = (dotW - effW) / 2
	} else {
		effH = max(int(float64(dotW)/geoAspect), 4)
		offY = (dotH - effH) / 2
	}

	grid := make([][]layer, dotH)
	for i := range grid {
		grid[i] = make([]layer, dotW)
	}
	plot := func(p orb.Point, l layer) {
		x := offX + int((p.Lon()-m.view.Left())/lngRange*float64(effW-1))
		y := offY + int((m.view.Top()-p.Lat())/latRange*float64(effH-1))
		if x >= 0 && x < dotW && y >= 0 && y < dotH && grid[y][x] < l {
			grid[y][x] = l
		}
	}
	for _, p := range m.markers {
		plot(p, layerMarker)
	}
	for i, p := range m.points {
		if i == m.selected {
			plot(p, layerSelected)
		} else {
			plot(p, layerPoint)
		}
	}

	cellStyles := map[layer]lipgloss.Style{
		layerMarker:   lipgloss.NewStyle().Foreground(styles.Secondary),
		layerPoint:    lipgloss.NewStyle().Foreground(styles.Success),
		layerSelected: lipgloss.NewStyle().Foreground(styles.Warning).Bold(true),
	}

	var sb strings.Builder
	for row := 0; row < m.height; row++ {
		for col := 0; col < m.width; col++ {
			cell := rune(0x2800)
			top := layerNone
			for dy := 0; dy < 4; dy++ {
				for dx := 0; dx < 2; dx++ {
					if l := grid[row*4+dy][col*2+dx]; l != layerNone {
						cell |= brailleBits[dy][dx]
						top = max(top, l)
					}
				}
			}
			if top == layerNone {
				sb.WriteRune(' ')
				continue
			}
			sb.WriteString(cellStyles[top].Render(string(cell)))
		}
		if row < m.height-1 {
			sb.WriteRune('\n')
		}
	}
	return sb.String()
}
