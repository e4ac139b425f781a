package output

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/vnfood/foodctl/pkg/foodctl/client"
)

func newTabWriter(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
}

func WriteHistoryTable(w io.Writer, items []client.HistoryItem) {
	tw := newTabWriter(w)
	_, _ = fmt.Fprintln(tw, "ID\tFOOD\tCONFIDENCE\tTIME")
	for _, item := range items {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", item.ID, item.FoodName, formatConfidence(item.Confidence), formatTimestamp(item.Timestamp))
	}
	_ = tw.Flush()
}

func WriteFoodTable(w io.Writer, page *client.FoodPage) {
	tw := newTabWriter(w)
	_, _ = fmt.Fprintln(tw, "ID\tNAME\tREGION\tDESCRIPTION")
	for _, f := range page.Foods {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", f.ID, f.Name, dash(f.Region), truncate(f.Description, 60))
	}
	_ = tw.Flush()
	p := page.Pagination
	_, _ = fmt.Fprintf(w, "\nPage %d/%d (%d total)\n", p.Page, p.TotalPages, p.Total)
}

func WriteFoodDetail(w io.Writer, info *client.FoodInfo) {
	WriteKeyValues(w, [][2]string{
		{"Name", info.Name},
		{"Region", dash(info.Region)},
		{"Description", dash(info.Description)},
		{"Ingredients", dash(info.Ingredients.String())},
		{"Related", dash(strings.Join(info.Related, ", "))},
	})
}

func WritePredictionTable(w io.Writer, p *client.Prediction) {
	rows := [][2]string{
		{"Food", p.FoodName},
		{"Confidence", formatConfidence(p.Confidence)},
	}
	if p.FoodInfo != nil {
		rows = append(rows,
			[2]string{"Name", p.FoodInfo.Name},
			[2]string{"Region", dash(p.FoodInfo.Region)},
			[2]string{"Description", dash(p.FoodInfo.Description)},
			[2]string{"Ingredients", dash(p.FoodInfo.Ingredients.String())},
		)
	}
	rows = append(rows, [2]string{"Related", dash(strings.Join(p.Related, ", "))})
	WriteKeyValues(w, rows)
}

// WriteKeyValues prints aligned "Key: value" lines.
func WriteKeyValues(w io.Writer, rows [][2]string) {
	tw := newTabWriter(w)
	for _, row := range rows {
		_, _ = fmt.Fprintf(tw, "%s:\t%s\n", row[0], row[1])
	}
	_ = tw.Flush()
}

func formatConfidence(c float64) string {
	return fmt.Sprintf("%.1f%%", c)
}

// formatTimestamp renders RFC 3339 timestamps in local time and passes
// anything else through.
func formatTimestamp(ts string) string {
	if ts == "" {
		return "-"
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999"} {
		if t, err := time.Parse(layout, ts); err == nil {
			return FormatTime(t)
		}
	}
	return ts
}

func FormatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
