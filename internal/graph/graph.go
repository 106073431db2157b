// Package graph extracts chart directives from model answers and renders them.
package graph

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/wcharczuk/go-chart/v2"
	"go.uber.org/zap"

	"github.com/docent-ai/docent/internal/models"
)

// markerPattern matches a chart directive of the form
// GRAPH: [x1,x2,...],[y1,y2,...]. Only the first occurrence is honored.
var markerPattern = regexp.MustCompile(`GRAPH:\s*\[([^\[\]]*)\]\s*,\s*\[([^\[\]]*)\]`)

// Extractor pulls chart directives out of answer text.
type Extractor struct {
	logger *zap.Logger
}

// NewExtractor returns an Extractor. logger may be nil.
func NewExtractor(logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{logger: logger}
}

// Extract looks for a chart directive in answer. On a well-formed directive it
// returns the answer with the directive removed plus the parsed payload. A
// directive that cannot be charted (unparsable numbers, mismatched series, or
// fewer than two points) leaves the answer unchanged and returns a nil payload.
func (e *Extractor) Extract(answer string) (string, *models.ChartPayload) {
	loc := markerPattern.FindStringSubmatchIndex(answer)
	if loc == nil {
		return answer, nil
	}
	xs, errX := parseSeries(answer[loc[2]:loc[3]])
	ys, errY := parseSeries(answer[loc[4]:loc[5]])
	if errX != nil || errY != nil {
		e.logger.Warn("unparsable chart directive",
			zap.NamedError("x", errX), zap.NamedError("y", errY))
		return answer, nil
	}
	if len(xs) < 2 || len(xs) != len(ys) {
		e.logger.Warn("chart directive series not chartable",
			zap.Int("x_len", len(xs)), zap.Int("y_len", len(ys)))
		return answer, nil
	}
	clean := strings.TrimSpace(answer[:loc[0]] + answer[loc[1]:])
	return clean, &models.ChartPayload{X: xs, Y: ys}
}

func parseSeries(s string) ([]float64, error) {
	var out []float64
	for _, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return nil, fmt.Errorf("parse %q: %w", field, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// RenderPNG renders the payload as a line chart and returns the PNG bytes.
func RenderPNG(p models.ChartPayload) ([]byte, error) {
	if len(p.X) < 2 {
		return nil, fmt.Errorf("need at least 2 points to render, have %d", len(p.X))
	}
	c := chart.Chart{
		Width:  600,
		Height: 400,
		Series: []chart.Series{
			chart.ContinuousSeries{
				XValues: p.X,
				YValues: p.Y,
				Style: chart.Style{
					StrokeWidth: 2,
					DotWidth:    4,
				},
			},
		},
	}
	var buf bytes.Buffer
	if err := c.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("render chart: %w", err)
	}
	return buf.Bytes(), nil
}

// RenderBase64 renders the payload and returns the PNG as base64, the form the
// API responds with.
func RenderBase64(p models.ChartPayload) (string, error) {
	png, err := RenderPNG(p)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(png), nil
}
