// Package chart provides the chart descriptor models produced by the
// visualization step: vega-lite shaped specs for rendering and plotly shaped
// figures for frontend consumption.
package chart

// VegaLiteSchema is the schema URL stamped on every generated spec.
const VegaLiteSchema = "https://vega.github.io/schema/vega-lite/v5.json"

// Spec is a minimal vega-lite chart description.
type Spec struct {
	Schema      string         `json:"$schema"`
	Description string         `json:"description,omitempty"`
	Data        Data           `json:"data"`
	Mark        any            `json:"mark"`
	Encoding    map[string]Enc `json:"encoding"`
}

// Data holds the inline values of a spec.
type Data struct {
	Values []map[string]any `json:"values"`
}

// Enc is one encoding channel of a spec.
type Enc struct {
	Field string `json:"field"`
	Type  string `json:"type"`
	Title string `json:"title,omitempty"`
}

// PlotlyFigure is a plotly-shaped figure JSON for direct frontend rendering.
type PlotlyFigure struct {
	Data   []PlotlyTrace `json:"data"`
	Layout PlotlyLayout  `json:"layout"`
}

// PlotlyTrace is one data series of a figure.
type PlotlyTrace struct {
	Type string `json:"type"`
	Mode string `json:"mode,omitempty"`
	Name string `json:"name,omitempty"`
	X    []any  `json:"x"`
	Y    []any  `json:"y"`
}

// PlotlyLayout carries figure titles.
type PlotlyLayout struct {
	Title string      `json:"title,omitempty"`
	XAxis *PlotlyAxis `json:"xaxis,omitempty"`
	YAxis *PlotlyAxis `json:"yaxis,omitempty"`
}

// PlotlyAxis titles one axis.
type PlotlyAxis struct {
	Title string `json:"title,omitempty"`
}

// Line builds a two-column line spec with point markers.
func Line(description, xField, xTitle, yField, yTitle string, values []map[string]any) Spec {
	return Spec{
		Schema:      VegaLiteSchema,
		Description: description,
		Data:        Data{Values: values},
		Mark:        map[string]any{"type": "line", "point": true},
		Encoding: map[string]Enc{
			"x": {Field: xField, Type: "quantitative", Title: xTitle},
			"y": {Field: yField, Type: "quantitative", Title: yTitle},
		},
	}
}

// Bar builds a single-metric bar spec.
func Bar(description, metric string, value float64, yTitle string) Spec {
	return Spec{
		Schema:      VegaLiteSchema,
		Description: description,
		Data:        Data{Values: []map[string]any{{"metric": metric, "value": value}}},
		Mark:        "bar",
		Encoding: map[string]Enc{
			"x": {Field: "metric", Type: "nominal"},
			"y": {Field: "value", Type: "quantitative", Title: yTitle},
		},
	}
}
