// Package templates renders the dashboard page shell. View content is
// streamed into it over Datastar SSE.
package templates

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"

	"superstore-dashboard/internal/models"
)

const datastarScript = "https://cdn.jsdelivr.net/gh/starfederation/datastar@v1.0.0-RC.5/bundles/datastar.js"

// NavItem is one entry of the view navigation.
type NavItem struct {
	View  string
	Label string
}

// PageData is everything the shell needs to draw the filter sidebar.
type PageData struct {
	Title          string
	Nav            []NavItem
	Options        models.Options
	DefaultHorizon int
}

func Dashboard(data PageData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder

		signals, err := initialSignals(data)
		if err != nil {
			return err
		}

		b.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n")
		b.WriteString("<meta charset=\"utf-8\">\n<meta name=\"viewport\" content=\"width=device-width, initial-scale=1\">\n")
		fmt.Fprintf(&b, "<title>%s</title>\n", templ.EscapeString(data.Title))
		fmt.Fprintf(&b, "<script type=\"module\" src=\"%s\"></script>\n", datastarScript)
		b.WriteString(styles)
		b.WriteString("</head>\n")

		fmt.Fprintf(&b, "<body data-signals=\"%s\">\n", templ.EscapeString(signals))
		b.WriteString("<aside class=\"sidebar\">\n<h1>Superstore</h1>\n<nav>\n")
		for _, item := range data.Nav {
			fmt.Fprintf(&b, "<button data-on-click=\"$view = '%[1]s'; @get('/sse/%[1]s')\">%[2]s</button>\n",
				templ.EscapeString(item.View), templ.EscapeString(item.Label))
		}
		b.WriteString("</nav>\n<form class=\"filters\" data-on-change=\"@get('/sse/' + $view)\">\n")

		writeChecklist(&b, "Region", "region", data.Options.Regions)
		writeChecklist(&b, "Category", "category", data.Options.Categories)
		writeChecklist(&b, "Segment", "segment", data.Options.Segments)

		b.WriteString("<fieldset><legend>Order Date</legend>\n")
		fmt.Fprintf(&b, "<input type=\"date\" data-bind-start min=\"%[1]s\" max=\"%[2]s\">\n",
			dateAttr(data.Options.MinDate), dateAttr(data.Options.MaxDate))
		fmt.Fprintf(&b, "<input type=\"date\" data-bind-end min=\"%[1]s\" max=\"%[2]s\">\n",
			dateAttr(data.Options.MinDate), dateAttr(data.Options.MaxDate))
		b.WriteString("</fieldset>\n")

		b.WriteString("<fieldset><legend>View Options</legend>\n")
		b.WriteString("<input type=\"search\" placeholder=\"Search\" data-bind-q>\n")
		b.WriteString("<select data-bind-tier><option value=\"all\">All customers</option><option value=\"high\">High-Value</option><option value=\"low\">Low-Value</option></select>\n")
		b.WriteString("<select data-bind-granularity><option value=\"month\">Month</option><option value=\"quarter\">Quarter</option><option value=\"year\">Year</option></select>\n")
		b.WriteString("<select data-bind-dimension><option value=\"region\">Region</option><option value=\"category\">Category</option><option value=\"segment\">Segment</option></select>\n")
		b.WriteString("<input type=\"text\" placeholder=\"Forecast value\" data-bind-value>\n")
		b.WriteString("<input type=\"number\" min=\"3\" max=\"12\" data-bind-horizon>\n")
		b.WriteString("</fieldset>\n</form>\n")
		b.WriteString("<a href=\"/metrics\" class=\"muted\">metrics</a>\n</aside>\n")

		b.WriteString("<main>\n<div id=\"view-content\" data-on-load=\"@get('/sse/home')\">Loading...</div>\n</main>\n")
		b.WriteString("</body>\n</html>\n")

		_, err = io.WriteString(w, b.String())
		return err
	})
}

func writeChecklist(b *strings.Builder, legend, signal string, values []string) {
	fmt.Fprintf(b, "<fieldset><legend>%s</legend>\n", templ.EscapeString(legend))
	for _, v := range values {
		fmt.Fprintf(b, "<label><input type=\"checkbox\" data-bind-%s value=\"%s\"> %s</label>\n",
			signal, templ.EscapeString(v), templ.EscapeString(v))
	}
	b.WriteString("</fieldset>\n")
}

// initialSignals seeds the page signals so every filter starts fully
// selected.
func initialSignals(data PageData) (string, error) {
	signals := map[string]any{
		"view":        "home",
		"region":      nonNil(data.Options.Regions),
		"category":    nonNil(data.Options.Categories),
		"segment":     nonNil(data.Options.Segments),
		"start":       dateAttr(data.Options.MinDate),
		"end":         dateAttr(data.Options.MaxDate),
		"q":           "",
		"tier":        "all",
		"granularity": "month",
		"dimension":   "region",
		"value":       "",
		"horizon":     data.DefaultHorizon,
		"viewData":    nil,
	}
	raw, err := json.Marshal(signals)
	if err != nil {
		return "", fmt.Errorf("encode page signals: %w", err)
	}
	return string(raw), nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func dateAttr(t interface{ Format(string) string }) string {
	return t.Format("2006-01-02")
}

const styles = `<style>
body { display: flex; margin: 0; font-family: system-ui, sans-serif; color: #1f2933; }
.sidebar { width: 280px; padding: 1rem; background: #f5f7fa; min-height: 100vh; }
.sidebar nav button { display: block; width: 100%; margin: 2px 0; text-align: left; }
main { flex: 1; padding: 1.5rem; }
.kpis { display: flex; gap: 1rem; flex-wrap: wrap; }
.kpi { padding: .75rem 1rem; border: 1px solid #d9e2ec; border-radius: 6px; }
.kpi span { display: block; font-size: .8rem; color: #627d98; }
.modern-table { border-collapse: collapse; width: 100%; margin: .5rem 0 1.5rem; }
.modern-table th, .modern-table td { padding: .35rem .6rem; border-bottom: 1px solid #e4e7eb; text-align: left; }
.warning { padding: .75rem; background: #fff3c4; border: 1px solid #f0b429; border-radius: 6px; }
.muted { color: #829ab1; font-size: .85rem; }
</style>
`
