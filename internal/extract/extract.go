// Package extract pulls readable text out of uploaded evidence files.
// Extraction never fails: unreadable input yields an empty string.
package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"civicshield/backend/internal/config"
	"civicshield/backend/internal/logger"
	"civicshield/backend/internal/models"

	"github.com/gabriel-vasile/mimetype"
	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"
)

// Extractor returns the text of one document, or "" when none is readable.
type Extractor interface {
	Extract(ctx context.Context, doc models.Evidence) string
}

// maxPlainTextBytes bounds how much of a text file is read.
const maxPlainTextBytes = 64 << 10

// Local reads evidence from the uploads directory. Images go through the
// tesseract CLI, PDFs through the pdf text layer.
type Local struct {
	dir       string
	tesseract string
	log       *zap.Logger

	runOCR func(ctx context.Context, bin, path string) (string, error)
}

func NewLocal(dir, tesseractBin string, log *zap.Logger) *Local {
	if tesseractBin == "" {
		tesseractBin = "tesseract"
	}
	return &Local{
		dir:       dir,
		tesseract: tesseractBin,
		log:       logger.OrNop(log).Named("extract"),
		runOCR:    runTesseract,
	}
}

// Extract implements Extractor.
func (l *Local) Extract(ctx context.Context, doc models.Evidence) string {
	path, err := l.resolve(doc.Filename)
	if err != nil {
		l.log.Warn("rejecting evidence path", zap.String("filename", doc.Filename), zap.Error(err))
		return ""
	}

	mediaType := doc.MediaType
	if mediaType == "" || mediaType == "application/octet-stream" {
		mt, err := mimetype.DetectFile(path)
		if err != nil {
			l.log.Warn("cannot sniff evidence type", zap.String("filename", doc.Filename), zap.Error(err))
			return ""
		}
		mediaType = mt.String()
	}

	var text string
	switch {
	case strings.HasPrefix(mediaType, "image/"):
		text, err = l.runOCR(ctx, l.tesseract, path)
	case strings.HasPrefix(mediaType, "application/pdf"):
		text, err = readPDF(path)
	case strings.HasPrefix(mediaType, "text/plain"):
		text, err = readPlain(path)
	default:
		return ""
	}
	if err != nil {
		l.log.Warn("text extraction failed",
			zap.String("filename", doc.Filename),
			zap.String("media_type", mediaType),
			zap.Error(err))
		return ""
	}
	return strings.TrimSpace(text)
}

func (l *Local) resolve(filename string) (string, error) {
	base := filepath.Base(filepath.Clean(filename))
	if base == "." || base == string(filepath.Separator) || base == ".." {
		return "", fmt.Errorf("invalid filename %q", filename)
	}
	return filepath.Join(l.dir, base), nil
}

func runTesseract(ctx context.Context, bin, path string) (string, error) {
	if _, err := exec.LookPath(bin); err != nil {
		return "", fmt.Errorf("ocr engine unavailable: %w", err)
	}
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, path, "stdout")
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("tesseract: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

func readPDF(path string) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	plain, err := r.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func readPlain(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxPlainTextBytes))
	if err != nil {
		return "", err
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("not utf-8 text")
	}
	return string(data), nil
}

// Summarize extracts every document and joins the results into one context
// block. Each document's text is capped at limit runes.
func Summarize(ctx context.Context, ex Extractor, docs []models.Evidence, limit int) string {
	if ex == nil || len(docs) == 0 {
		return ""
	}
	if limit <= 0 {
		limit = config.ExtractedTextLimit
	}
	var b strings.Builder
	for i, doc := range docs {
		name := doc.OriginalName
		if name == "" {
			name = doc.Filename
		}
		text := ex.Extract(ctx, doc)
		if text == "" {
			text = "(No readable text detected in this document)"
		} else if utf8.RuneCountInString(text) > limit {
			text = string([]rune(text)[:limit]) + "... (truncated)"
		}
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "--- Document %d: %s ---\n%s", i+1, name, text)
	}
	return b.String()
}
