// Package report renders detection results, either as a color table for the
// terminal or as an appendable JSON report file.
package report

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"

	"github.com/pkgarch/archscan/pkg/arch"
	"github.com/pkgarch/archscan/pkg/detect"
)

var Logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))

const (
	headerFile = "FILE"
	headerSize = "SIZE"
	headerArch = "ARCHITECTURE"
)

var (
	okColor          = color.New(color.FgGreen)
	unknownColor     = color.New(color.FgYellow)
	errorColor       = color.New(color.FgRed)
	unavailableColor = color.New(color.FgCyan)
)

// Table writes one aligned row per detection result.
type Table struct {
	out      io.Writer
	colorize bool
}

func NewTable(out io.Writer, colorize bool) *Table {
	return &Table{out: out, colorize: colorize}
}

// MiB formats a byte count as mebibytes with two decimals.
func MiB(sizeBytes int64) string {
	return fmt.Sprintf("%.2f MiB", float64(sizeBytes)/(1024*1024))
}

// label maps the stored architecture value to its display form.
func label(architecture string) string {
	if architecture == string(arch.Unknown) {
		return "Unknown"
	}
	return architecture
}

func (t *Table) paint(architecture string) string {
	text := label(architecture)
	if !t.colorize {
		return text
	}
	switch architecture {
	case detect.StatusError:
		return errorColor.Sprint(text)
	case detect.StatusUnavailable:
		return unavailableColor.Sprint(text)
	case string(arch.Unknown):
		return unknownColor.Sprint(text)
	default:
		return okColor.Sprint(text)
	}
}

// Render writes the results table. Rows are printed in the order given; the
// scanner already sorts by file name.
func (t *Table) Render(results []detect.Result) (err error) {
	nameWidth := len(headerFile)
	sizeWidth := len(headerSize)
	for _, r := range results {
		if len(r.FileName) > nameWidth {
			nameWidth = len(r.FileName)
		}
		if len(MiB(r.SizeBytes)) > sizeWidth {
			sizeWidth = len(MiB(r.SizeBytes))
		}
	}

	w := bufio.NewWriter(t.out)
	fmt.Fprintf(w, "%-*s  %*s  %s\n", nameWidth, headerFile, sizeWidth, headerSize, headerArch)
	fmt.Fprintf(w, "%s  %s  %s\n",
		strings.Repeat("-", nameWidth),
		strings.Repeat("-", sizeWidth),
		strings.Repeat("-", len(headerArch)),
	)
	for _, r := range results {
		// architecture last: color escapes would skew padding widths
		fmt.Fprintf(w, "%-*s  %*s  %s\n", nameWidth, r.FileName, sizeWidth, MiB(r.SizeBytes), t.paint(r.Architecture))
	}
	err = w.Flush()
	return
}

// RenderRow writes a single unaligned row, for streaming modes where column
// widths cannot be known up front.
func (t *Table) RenderRow(r detect.Result) (err error) {
	_, err = fmt.Fprintf(t.out, "%s  %s  %s\n", r.FileName, MiB(r.SizeBytes), t.paint(r.Architecture))
	return
}

// ScanContext identifies one scan pass in a JSON report.
type ScanContext struct {
	ScanID string    `json:"scan-id"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end,omitzero"`
}

func NewScanContext() ScanContext {
	return ScanContext{ScanID: uuid.NewString(), Start: time.Now()}
}

// ReportsWriter appends results to a JSON array on disk, keeping the file a
// valid document after every write.
type ReportsWriter struct {
	dst io.WriteSeeker
}

func NewReportsWriter(dst io.WriteSeeker) *ReportsWriter {
	return &ReportsWriter{dst: dst}
}

type record struct {
	ScanContext
	detect.Result
}

func (rw *ReportsWriter) Write(scan ScanContext, r detect.Result) (err error) {
	// try to seek above last "\n]"
	n, _ := rw.dst.Seek(-2, io.SeekEnd)
	out := bufio.NewWriter(rw.dst)
	if n == 0 {
		// start of file
		if _, err = out.WriteString("[\n"); err != nil {
			return
		}
	} else {
		if _, err = out.WriteString(",\n"); err != nil {
			return
		}
	}

	encoder := json.NewEncoder(out)
	if err = encoder.Encode(record{ScanContext: scan, Result: r}); err != nil {
		return
	}
	if _, err = out.WriteString("]"); err != nil {
		return
	}
	if flushErr := out.Flush(); flushErr != nil {
		Logger.Error("failed to flush buffer", slog.String("error", flushErr.Error()))
	}
	return
}
