// internal/report/encode.go
package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	jsoniter "github.com/json-iterator/go"
	"gopkg.in/yaml.v3"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	FormatText  = "text"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
	FormatSARIF = "sarif"
)

// Encoder writes a report in one format.
type Encoder interface {
	Encode(w io.Writer, r *Report) error
}

// NewEncoder returns the encoder for format.
func NewEncoder(format string) (Encoder, error) {
	switch strings.ToLower(format) {
	case FormatText, "":
		return textEncoder{}, nil
	case FormatJSON:
		return jsonEncoder{}, nil
	case FormatYAML, "yml":
		return yamlEncoder{}, nil
	case FormatSARIF:
		return sarifEncoder{}, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

type jsonEncoder struct{}

func (jsonEncoder) Encode(w io.Writer, r *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

type yamlEncoder struct{}

func (yamlEncoder) Encode(w io.Writer, r *Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return err
	}
	return enc.Close()
}

// textEncoder prints a human summary. Styling follows the writer: colors only reach terminals.
type textEncoder struct{}

func (textEncoder) Encode(w io.Writer, r *Report) error {
	renderer := lipgloss.NewRenderer(w)
	var (
		heading = renderer.NewStyle().Bold(true)
		pass    = renderer.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
		fail    = renderer.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
		muted   = renderer.NewStyle().Foreground(lipgloss.Color("245"))
	)

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", heading.Render("focusmap report"), muted.Render(r.ID))
	fmt.Fprintf(&b, "pages: %d  passed: %d  failed: %d  errored: %d\n",
		r.Summary.Pages, r.Summary.Passed, r.Summary.Failed, r.Summary.Errored)

	for _, p := range r.Pages {
		b.WriteString("\n")
		switch {
		case p.Error != "":
			fmt.Fprintf(&b, "%s %s: %s\n", fail.Render("[ERROR]"), p.Target, p.Error)
			continue
		case p.Passed:
			b.WriteString(pass.Render("[PASS]"))
		default:
			b.WriteString(fail.Render("[FAIL]"))
		}
		fmt.Fprintf(&b, " %s (%s", p.Target, p.Mode)
		if p.StopReason != "" {
			fmt.Fprintf(&b, ", stopped: %s", p.StopReason)
		}
		b.WriteString(")\n")

		tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
		for _, s := range p.Stops {
			fmt.Fprintf(tw, "  %d\t%s\t%s\n", s.Position, strings.Join(s.Target, " >> "), s.Problem)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		for _, m := range p.Missing {
			fmt.Fprintf(&b, "  missing: %s\n", m)
		}
		if p.Overlay != "" {
			fmt.Fprintf(&b, "  overlay: %s\n", p.Overlay)
		}
		if p.Screenshot != "" {
			fmt.Fprintf(&b, "  screenshot: %s\n", p.Screenshot)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

// Write encodes r to path, or to stdout when path is empty or "-".
func Write(r *Report, format, path string, stdout io.Writer) error {
	enc, err := NewEncoder(format)
	if err != nil {
		return err
	}

	var out io.WriteCloser = nopWriteCloser{stdout}
	if path != "" && path != "-" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create output file %s: %w", path, err)
		}
		out = f
	}

	if err := enc.Encode(out, r); err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to encode %s report: %w", format, err)
	}
	return out.Close()
}

// MarshalPage encodes one page section as JSON, the form the store keeps.
func MarshalPage(p PageReport) ([]byte, error) {
	return json.Marshal(p)
}

func UnmarshalPage(data []byte) (PageReport, error) {
	var p PageReport
	if err := json.Unmarshal(data, &p); err != nil {
		return PageReport{}, fmt.Errorf("failed to decode page report: %w", err)
	}
	return p, nil
}
