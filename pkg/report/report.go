// Package report lays out the one-page PDF that presents the figure.
package report

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Sternrassler/wdi-report/pkg/logging"
	"github.com/go-pdf/fpdf"
	"github.com/rs/zerolog"
)

// ErrUnsupportedImage is returned for images the PDF writer cannot embed.
var ErrUnsupportedImage = errors.New("unsupported image type")

// inch in PDF points.
const inch = 72.0

// DefaultOutputPath is the report file written in the working directory.
const DefaultOutputPath = "TechnicalExercisePartI.pdf"

// Commentary is the fixed text printed under the title.
var Commentary = []string{
	"Figure 1 displays access to basic sanitation services grouped by country income groups. ",
	"Visual analysis of Figure 1 suggests that (i) access to basic sanitation is positively ",
	"related to a country's income level, (ii) middle income countries are catching up to high ",
	"income countries with respect to the percentag of the population with access to basic ",
	"sanitation services, and (iii) low income countries lag behind middle income countries ",
	"with basic access to sanitation among low income countries in 2022 near that of lower ",
	"middle income countries in 2000. In particular, access to basic sanitation increased ",
	"from 55.4 percent in 2000 to 80.6 percent in 2022 worldwide, which was primarily driven ",
	"by lower and upper middle income countries; increased from 19.5 percent in 2000 to 31.4 ",
	"percent in 2022 among low income countries; increased from 31.6 percent to 72.5 percent ",
	"among lower middle income countries; increased from 63.8 percent to 93.4 percent among ",
	"upper middle income countries; and increased from 98.6 percent to 99.0 percent among ",
	"high income countries.",
}

// Point is a position in PDF points measured from the lower-left page corner.
type Point struct {
	X, Y float64
}

// Config describes the document. Positions follow PDF convention (origin
// lower left); the writer converts them.
type Config struct {
	OutputPath string
	DocTitle   string
	Title      string
	Lines      []string

	PageSize   string // fpdf size name, e.g. "Letter" or "A4"
	FontFamily string
	TitleSize  float64
	BodySize   float64
	Leading    float64 // line advance as a multiple of BodySize

	TitleAt Point
	TextAt  Point
	ImageAt Point // lower-left corner of the image
}

// DefaultConfig returns the letter-size layout of the sanitation report.
func DefaultConfig() Config {
	return Config{
		OutputPath: DefaultOutputPath,
		DocTitle:   "Technical Exercise Part I",
		Title:      "Technical Exercise Part I",
		Lines:      Commentary,
		PageSize:   "Letter",
		FontFamily: "Helvetica",
		TitleSize:  28,
		BodySize:   12,
		Leading:    1.2,
		TitleAt:    Point{X: 1 * inch, Y: 10 * inch},
		TextAt:     Point{X: 1 * inch, Y: 9 * inch},
		ImageAt:    Point{X: 1 * inch, Y: 1 * inch},
	}
}

// Reporter writes the report document.
type Reporter struct {
	config Config
	logger zerolog.Logger
}

// NewReporter creates a reporter.
func NewReporter(cfg Config) (*Reporter, error) {
	if cfg.OutputPath == "" {
		return nil, fmt.Errorf("report output path is required")
	}
	if cfg.TitleSize <= 0 || cfg.BodySize <= 0 {
		return nil, fmt.Errorf("font sizes must be positive (got %v, %v)", cfg.TitleSize, cfg.BodySize)
	}
	if cfg.Leading <= 0 {
		cfg.Leading = 1.2
	}
	if cfg.PageSize == "" {
		cfg.PageSize = "Letter"
	}
	if cfg.FontFamily == "" {
		cfg.FontFamily = "Helvetica"
	}

	return &Reporter{
		config: cfg,
		logger: logging.NewLogger("report"),
	}, nil
}

// OutputPath returns where Write saves the document.
func (r *Reporter) OutputPath() string {
	return r.config.OutputPath
}

// Build lays out the page around the image at imagePath. The image is placed
// at its native size (one pixel per point) and is not scaled to fit.
func (r *Reporter) Build(imagePath string) (*fpdf.Fpdf, error) {
	imageType, err := ImageType(imagePath)
	if err != nil {
		return nil, err
	}

	w, h, err := imageSize(imagePath)
	if err != nil {
		return nil, err
	}

	cfg := r.config
	pdf := fpdf.New("P", "pt", cfg.PageSize, "")
	pdf.SetTitle(cfg.DocTitle, true)
	pdf.SetCreator("wdi-report", true)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	_, pageH := pdf.GetPageSize()

	pdf.SetFont(cfg.FontFamily, "", cfg.TitleSize)
	pdf.Text(cfg.TitleAt.X, pageH-cfg.TitleAt.Y, cfg.Title)

	pdf.SetFont(cfg.FontFamily, "", cfg.BodySize)
	y := pageH - cfg.TextAt.Y
	for _, line := range cfg.Lines {
		pdf.Text(cfg.TextAt.X, y, strings.TrimRight(line, " "))
		y += cfg.BodySize * cfg.Leading
	}

	pdf.ImageOptions(imagePath,
		cfg.ImageAt.X, pageH-cfg.ImageAt.Y-h, w, h,
		false,
		fpdf.ImageOptions{ImageType: imageType, AllowNegativePosition: true},
		0, "")

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("lay out report: %w", err)
	}
	return pdf, nil
}

// Write builds the document and saves it, overwriting any previous file.
func (r *Reporter) Write(imagePath string) error {
	start := time.Now()

	pdf, err := r.Build(imagePath)
	if err != nil {
		return err
	}

	if err := pdf.OutputFileAndClose(r.config.OutputPath); err != nil {
		return fmt.Errorf("save report %s: %w", r.config.OutputPath, err)
	}

	r.logger.Info().
		Str("path", r.config.OutputPath).
		Str("image", imagePath).
		Int("pages", pdf.PageCount()).
		Dur("duration", time.Since(start)).
		Msg("Report written")

	return nil
}

// ImageType maps a file extension to the fpdf image type used to embed it.
func ImageType(path string) (string, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".jpg", ".jpeg":
		return "JPG", nil
	case ".png":
		return "PNG", nil
	case ".gif":
		return "GIF", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedImage, ext)
	}
}

// imageSize returns the pixel dimensions of the image at path.
func imageSize(path string) (float64, float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, fmt.Errorf("read image header %s: %w", path, err)
	}
	return float64(cfg.Width), float64(cfg.Height), nil
}
