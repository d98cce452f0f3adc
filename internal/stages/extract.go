package stages

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/sampoursoltan11/paddock-sub000/internal/pipeline"
	"github.com/sampoursoltan11/paddock-sub000/internal/rules"
)

// ExtractOutput is the content-extraction stage result. Pages carry
// best-effort text per page; pages with no extractable text are present
// with empty text so downstream stages can still address them by number.
type ExtractOutput struct {
	Filename    string           `json:"filename"`
	PageCount   int              `json:"page_count"`
	Pages       []rules.PageText `json:"pages"`
	ArtifactKey string           `json:"artifact_key,omitempty"`
}

// ExtractArtifactKey returns the blob key of the extracted-text artifact.
func ExtractArtifactKey(documentID uuid.UUID) string {
	return fmt.Sprintf("workflows/%s/extracted-text.json", documentID)
}

// ExtractStage returns the content-extraction stage. It downloads the
// document PDF from blob storage, validates it, and extracts per-page
// text by scanning content stream show operators.
func ExtractStage(rt *Runtime) pipeline.Stage {
	return pipeline.NewStage(
		pipeline.StageContentExtraction,
		func(ctx context.Context, documentID uuid.UUID, _ pipeline.Outputs) (any, error) {
			doc, err := rt.Documents.Find(ctx, documentID)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrDocumentNotFound, err)
			}

			data, err := downloadBlob(ctx, rt, doc.StorageKey)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrExtractFailed, err)
			}

			rs := bytes.NewReader(data)
			count, err := api.PageCount(rs, nil)
			if err != nil {
				return nil, fmt.Errorf("%w: page count: %w", ErrExtractFailed, err)
			}

			pages := make([]rules.PageText, 0, count)
			for pageNr := 1; pageNr <= count; pageNr++ {
				text, err := extractPageText(rs, pageNr)
				if err != nil {
					return nil, fmt.Errorf("%w: page %d: %w", ErrExtractFailed, pageNr, err)
				}
				pages = append(pages, rules.PageText{PageNumber: pageNr, Text: text})
			}

			output := ExtractOutput{
				Filename:  doc.Filename,
				PageCount: count,
				Pages:     pages,
			}

			key, err := uploadExtractArtifact(ctx, rt, documentID, output)
			if err != nil {
				// The artifact is a convenience copy; the output itself is
				// durable in workflow state.
				rt.Logger.Warn(
					"extracted text artifact upload failed",
					"document_id", documentID,
					"error", err,
				)
			} else {
				output.ArtifactKey = key
			}

			rt.Logger.InfoContext(
				ctx, "content extraction complete",
				"document_id", documentID,
				"page_count", count,
			)
			return output, nil
		},
	)
}

func downloadBlob(ctx context.Context, rt *Runtime, key string) ([]byte, error) {
	blob, err := rt.Storage.Download(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("download blob: %w", err)
	}
	defer blob.Body.Close()

	data, err := io.ReadAll(blob.Body)
	if err != nil {
		return nil, fmt.Errorf("read blob: %w", err)
	}

	return data, nil
}

func uploadExtractArtifact(
	ctx context.Context,
	rt *Runtime,
	documentID uuid.UUID,
	output ExtractOutput,
) (string, error) {
	data, err := json.Marshal(output.Pages)
	if err != nil {
		return "", fmt.Errorf("marshal pages: %w", err)
	}

	key := ExtractArtifactKey(documentID)
	if err := rt.Storage.Upload(ctx, key, bytes.NewReader(data), "application/json"); err != nil {
		return "", err
	}

	return key, nil
}

func extractPageText(rs *bytes.Reader, pageNr int) (string, error) {
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return "", err
	}

	conf := model.NewDefaultConfiguration()
	conf.Cmd = model.EXTRACTCONTENT
	pctx, err := api.ReadValidateAndOptimize(rs, conf)
	if err != nil {
		return "", err
	}

	content, err := pdfcpu.ExtractPageContent(pctx, pageNr)
	if err != nil {
		return "", err
	}
	if content == nil {
		return "", nil
	}

	stream, err := io.ReadAll(content)
	if err != nil {
		return "", err
	}

	return scanShowText(stream), nil
}

// scanShowText pulls best-effort text from a decoded content stream by
// collecting literal string operands of show operators. CID-encoded text
// behind hex strings is not decoded.
func scanShowText(stream []byte) string {
	var builder strings.Builder

	for i := 0; i < len(stream); i++ {
		if stream[i] != '(' {
			continue
		}

		literal, end := readLiteral(stream, i)
		i = end
		if literal == "" {
			continue
		}

		if builder.Len() > 0 {
			builder.WriteByte(' ')
		}
		builder.WriteString(literal)
	}

	return strings.TrimSpace(builder.String())
}

// readLiteral decodes one parenthesized string literal starting at
// stream[start] == '(' and returns its content plus the index of the
// closing parenthesis. Balanced parentheses and backslash escapes follow
// the literal string syntax of the format.
func readLiteral(stream []byte, start int) (string, int) {
	var builder strings.Builder
	depth := 1

	i := start + 1
	for ; i < len(stream); i++ {
		c := stream[i]
		switch c {
		case '\\':
			if i+1 >= len(stream) {
				return builder.String(), i
			}
			i++
			switch stream[i] {
			case 'n':
				builder.WriteByte('\n')
			case 't':
				builder.WriteByte('\t')
			case 'r', 'b', 'f':
				// control escapes carry no text
			default:
				builder.WriteByte(stream[i])
			}
		case '(':
			depth++
			builder.WriteByte(c)
		case ')':
			depth--
			if depth == 0 {
				return builder.String(), i
			}
			builder.WriteByte(c)
		default:
			builder.WriteByte(c)
		}
	}

	return builder.String(), i
}
