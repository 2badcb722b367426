// Package report renders built reports and calibration tables as markdown.
package report

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/okian/matchrank/internal/domain/types"
)

// Writer renders markdown files.
type Writer struct {
	link     string
	linkText string
	dir      string
}

// Option configures a Writer.
type Option func(*Writer)

// WithLink adds a link line at the top and bottom of every report.
func WithLink(url, text string) Option {
	return func(w *Writer) {
		w.link = url
		if text != "" {
			w.linkText = text
		}
	}
}

// WithDir sets the output directory used by WriteFile.
func WithDir(dir string) Option {
	return func(w *Writer) {
		if dir != "" {
			w.dir = dir
		}
	}
}

// NewWriter returns a markdown writer.
func NewWriter(opts ...Option) *Writer {
	w := &Writer{linkText: "Back to main ratings", dir: "."}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// WriteReport renders r, newest snapshot first.
func (w *Writer) WriteReport(out io.Writer, r types.Report) error {
	b := bufio.NewWriter(out)
	if w.link != "" {
		fmt.Fprintf(b, "[%s](%s)\n", w.linkText, w.link)
	}

	unrated := false
	for i, s := range r.Snapshots {
		oldest := i == len(r.Snapshots)-1
		fmt.Fprintf(b, "# %s %s #\n\n", r.Title, s.Label)
		if writeTable(b, s.Entries, r.WithCity, r.WithSpread, !oldest) {
			unrated = true
		}
		b.WriteString("\n")
		if len(s.Factions) > 0 {
			fmt.Fprintf(b, "## %s %s: factions ##\n\n", r.Title, s.Label)
			if writeTable(b, s.Factions, false, r.WithSpread, !oldest) {
				unrated = true
			}
			b.WriteString("\n")
		}
	}

	if r.WithSpread {
		b.WriteString("StD - standard deviation of the rating\n")
	}
	if unrated {
		if r.WithSpread {
			fmt.Fprintf(b, "N/A - rating is uncertain or outdated (StD < %d required)\n", int(math.Round(r.MaxSpread)))
		} else {
			fmt.Fprintf(b, "N/A - not enough matches to rate (<%d)\n", r.MinMatches)
		}
	}
	if w.link != "" {
		fmt.Fprintf(b, "\n---\n\n[%s](%s)\n", w.linkText, w.link)
	}
	return b.Flush()
}

// WriteCalibration renders the calibration histogram as a table.
func (w *Writer) WriteCalibration(out io.Writer, c types.Calibration) error {
	b := bufio.NewWriter(out)
	fmt.Fprintf(b, "# Calibration: %s #\n\n", c.Algorithm)
	b.WriteString("|Gap <     |Matches |Rate    |\n")
	b.WriteString("|----------|--------|--------|\n")
	for _, bucket := range c.Buckets {
		rate := "-"
		if bucket.Matches > 0 {
			rate = strconv.FormatFloat(bucket.Rate, 'f', 3, 64)
		}
		fmt.Fprintf(b, "|%-10s|%-8d|%-8s|\n", formatNumber(bucket.UpperBound), bucket.Matches, rate)
	}
	return b.Flush()
}

// WriteFile renders r into <dir>/<name>.md and returns the path.
func (w *Writer) WriteFile(r types.Report) (string, error) {
	return w.create(r.Name+".md", func(f io.Writer) error { return w.WriteReport(f, r) })
}

// Publish writes r to its file, so a Writer can serve as a publish sink.
func (w *Writer) Publish(_ context.Context, r types.Report) error {
	_, err := w.WriteFile(r)
	return err
}

// WriteCalibrationFile renders c into <dir>/<name>.
func (w *Writer) WriteCalibrationFile(name string, c types.Calibration) (string, error) {
	return w.create(name, func(f io.Writer) error { return w.WriteCalibration(f, c) })
}

func (w *Writer) create(name string, render func(io.Writer) error) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(w.dir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	if err := render(f); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", path, err)
	}
	return path, nil
}

// writeTable prints one leaderboard and reports whether any row was unrated.
func writeTable(b *bufio.Writer, entries []types.Entry, withCity, withSpread, withDelta bool) bool {
	head := []string{"| # |Player                             |"}
	rule := []string{"|---|-----------------------------------|"}
	if withCity {
		head, rule = append(head, "City      |"), append(rule, "----------|")
	}
	head, rule = append(head, "Rating  |"), append(rule, "--------|")
	if withSpread {
		head, rule = append(head, "StD    |"), append(rule, "-------|")
	}
	if withDelta {
		head, rule = append(head, " +/-|"), append(rule, "----|")
	}
	b.WriteString(strings.Join(head, "") + "\n")
	b.WriteString(strings.Join(rule, "") + "\n")

	unrated := false
	prev := 0
	for _, e := range entries {
		cols := []string{""}
		pos := ""
		if e.Position != prev {
			pos = strconv.Itoa(e.Position)
		}
		prev = e.Position
		cols = append(cols, fmt.Sprintf("%3s", pos), fmt.Sprintf("%-35s", e.Name))
		if withCity {
			cols = append(cols, fmt.Sprintf("%-10s", e.City))
		}
		rating := "   N/A"
		if e.Rating != nil {
			rating = formatNumber(*e.Rating)
		} else {
			unrated = true
		}
		cols = append(cols, fmt.Sprintf("%-8s", rating))
		if withSpread {
			cols = append(cols, fmt.Sprintf("%-7s", formatNumber(e.Spread)))
		}
		if withDelta {
			cols = append(cols, formatDelta(e.PositionDelta))
		}
		cols = append(cols, "")
		b.WriteString(strings.Join(cols, "|") + "\n")
	}
	return unrated
}

// formatDelta renders a position change. Newcomers and unchanged rows are blank.
func formatDelta(d *int) string {
	switch {
	case d == nil || *d == 0:
		return "    "
	case *d > 0:
		return fmt.Sprintf("%4s", "+"+strconv.Itoa(*d))
	default:
		return fmt.Sprintf("%4d", *d)
	}
}

// formatNumber rounds to two decimals and always keeps one fractional digit.
func formatNumber(v float64) string {
	s := strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eEN") {
		s += ".0"
	}
	return s
}
