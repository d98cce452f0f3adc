package stages

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	dcconfig "github.com/JaimeStill/document-context/pkg/config"
	"github.com/JaimeStill/document-context/pkg/document"
	"github.com/JaimeStill/document-context/pkg/encoding"
	"github.com/JaimeStill/document-context/pkg/image"

	"github.com/JaimeStill/go-agents/pkg/agent"
	"github.com/JaimeStill/go-agents/pkg/format"

	"github.com/sampoursoltan11/paddock-sub000/internal/compliance"
	"github.com/sampoursoltan11/paddock-sub000/internal/pipeline"
	"github.com/sampoursoltan11/paddock-sub000/pkg/formatting"
)

const sourcePDF = "source.pdf"

// ImageFinding is the visual analysis of one page image.
type ImageFinding struct {
	PageNumber int                `json:"page_number"`
	Summary    string             `json:"summary"`
	Issues     []compliance.Issue `json:"issues"`
}

// VisualOutput is the visual-analysis stage result.
type VisualOutput struct {
	PagesAnalyzed int            `json:"pages_analyzed"`
	Images        []ImageFinding `json:"images"`
}

// visualResponse is the JSON shape the vision model is instructed to
// return per page.
type visualResponse struct {
	Summary string `json:"summary"`
	Issues  []struct {
		Severity   string  `json:"severity"`
		Category   string  `json:"category"`
		Message    string  `json:"message"`
		Suggestion string  `json:"suggestion"`
		Confidence float64 `json:"confidence"`
	} `json:"issues"`
}

// VisualStage returns the visual-analysis stage. It renders every page
// of the document PDF to PNG via ImageMagick, then analyzes pages in
// parallel using bounded errgroup concurrency. Each goroutine creates
// its own agent, encodes the page image to a data URI, and sends it to
// the vision model. Pages are analyzed independently.
func VisualStage(rt *Runtime) pipeline.Stage {
	return pipeline.NewStage(
		pipeline.StageVisualAnalysis,
		func(ctx context.Context, documentID uuid.UUID, _ pipeline.Outputs) (any, error) {
			tempDir, err := os.MkdirTemp("", "paddock-visual-*")
			if err != nil {
				return nil, fmt.Errorf("%w: create temp directory: %w", ErrRenderFailed, err)
			}
			defer os.RemoveAll(tempDir)

			if err := stagePDF(ctx, rt, documentID, tempDir); err != nil {
				return nil, err
			}

			imagePaths, err := renderPages(ctx, tempDir)
			if err != nil {
				return nil, err
			}

			findings, err := analyzePages(ctx, rt, imagePaths)
			if err != nil {
				return nil, err
			}

			rt.Logger.InfoContext(
				ctx, "visual analysis complete",
				"document_id", documentID,
				"page_count", len(findings),
			)
			return VisualOutput{
				PagesAnalyzed: len(findings),
				Images:        findings,
			}, nil
		},
	)
}

func stagePDF(ctx context.Context, rt *Runtime, documentID uuid.UUID, tempDir string) error {
	doc, err := rt.Documents.Find(ctx, documentID)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDocumentNotFound, err)
	}

	blob, err := rt.Storage.Download(ctx, doc.StorageKey)
	if err != nil {
		return fmt.Errorf("%w: download blob: %w", ErrRenderFailed, err)
	}
	defer blob.Body.Close()

	pdfPath := filepath.Join(tempDir, sourcePDF)
	pdfFile, err := os.Create(pdfPath)
	if err != nil {
		return fmt.Errorf("%w: create temp pdf: %w", ErrRenderFailed, err)
	}

	if _, err := io.Copy(pdfFile, blob.Body); err != nil {
		pdfFile.Close()
		return fmt.Errorf("%w: write temp pdf: %w", ErrRenderFailed, err)
	}

	return pdfFile.Close()
}

func renderPages(ctx context.Context, tempDir string) ([]string, error) {
	pdfDoc, err := document.OpenPDF(filepath.Join(tempDir, sourcePDF))
	if err != nil {
		return nil, fmt.Errorf("%w: open pdf: %w", ErrRenderFailed, err)
	}
	defer pdfDoc.Close()

	renderer, err := image.NewImageMagickRenderer(dcconfig.DefaultImageConfig())
	if err != nil {
		return nil, fmt.Errorf("%w: create renderer: %w", ErrRenderFailed, err)
	}

	allPages, err := pdfDoc.ExtractAllPages()
	if err != nil {
		return nil, fmt.Errorf("%w: extract pages: %w", ErrRenderFailed, err)
	}

	paths := make([]string, len(allPages))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workerCount(len(allPages)))

	for i, page := range allPages {
		pageNum := i + 1
		imgPath := filepath.Join(tempDir, fmt.Sprintf("page-%d.png", pageNum))
		paths[i] = imgPath

		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}

			data, err := page.ToImage(renderer, nil)
			if err != nil {
				return fmt.Errorf("render page %d: %w", pageNum, err)
			}

			if err := os.WriteFile(imgPath, data, 0600); err != nil {
				return fmt.Errorf("write page %d image: %w", pageNum, err)
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRenderFailed, err)
	}

	return paths, nil
}

func analyzePages(ctx context.Context, rt *Runtime, imagePaths []string) ([]ImageFinding, error) {
	prompt := visualPrompt + "\n\n" + visualSpec
	findings := make([]ImageFinding, len(imagePaths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workerCount(len(imagePaths)))

	for i, imgPath := range imagePaths {
		pageNum := i + 1

		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}

			a, err := agent.New(&rt.Agent)
			if err != nil {
				return fmt.Errorf("page %d: create agent: %w", pageNum, err)
			}

			dataURI, err := encodePageImage(imgPath)
			if err != nil {
				return fmt.Errorf("page %d: %w", pageNum, err)
			}

			resp, err := a.Vision(gctx, prompt, []format.Image{{URL: dataURI}})
			if err != nil {
				return fmt.Errorf("page %d: vision call: %w", pageNum, err)
			}

			parsed, err := formatting.Parse[visualResponse](resp.Text())
			if err != nil {
				return fmt.Errorf("page %d: parse response: %w", pageNum, err)
			}

			findings[i] = toFinding(pageNum, parsed)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAnalysisFailed, err)
	}

	return findings, nil
}

func encodePageImage(imagePath string) (string, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}

	dataURI, err := encoding.EncodeImageDataURI(data, document.PNG)
	if err != nil {
		return "", fmt.Errorf("encode image: %w", err)
	}

	return dataURI, nil
}

func toFinding(pageNum int, resp visualResponse) ImageFinding {
	finding := ImageFinding{
		PageNumber: pageNum,
		Summary:    resp.Summary,
		Issues:     make([]compliance.Issue, 0, len(resp.Issues)),
	}

	for i, issue := range resp.Issues {
		finding.Issues = append(finding.Issues, compliance.Issue{
			ID:         fmt.Sprintf("visual-p%d-%d", pageNum, i+1),
			Severity:   parseSeverity(issue.Severity),
			Category:   issue.Category,
			Message:    issue.Message,
			Location:   fmt.Sprintf("page %d", pageNum),
			Suggestion: issue.Suggestion,
			Confidence: issue.Confidence,
		})
	}

	return finding
}

// parseSeverity maps a model-reported severity string to a known level.
// Unknown values degrade to medium rather than failing the stage.
func parseSeverity(s string) compliance.Severity {
	switch compliance.Severity(s) {
	case compliance.SeverityCritical, compliance.SeverityHigh,
		compliance.SeverityMedium, compliance.SeverityLow:
		return compliance.Severity(s)
	default:
		return compliance.SeverityMedium
	}
}

func workerCount(pageCount int) int {
	return max(min(runtime.NumCPU(), pageCount), 1)
}
