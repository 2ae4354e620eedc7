package docparse

import (
	"fmt"
	"strings"

	"github.com/gen2brain/go-fitz"
)

// ExtractText pulls the raw text out of an uploaded document so it can be
// indexed for retrieval. Plain text passes through, PDFs are extracted page
// by page.
func ExtractText(data []byte, fileType string) (string, error) {
	switch {
	case strings.HasPrefix(fileType, "text/"):
		return string(data), nil
	case fileType == "application/pdf":
		return extractPdfText(data)
	default:
		return "", fmt.Errorf("unsupported document type %q", fileType)
	}
}

func extractPdfText(data []byte) (string, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return "", fmt.Errorf("error opening pdf: %w", err)
	}
	defer doc.Close()

	var builder strings.Builder
	for i := 0; i < doc.NumPage(); i++ {
		text, err := doc.Text(i)
		if err != nil {
			return "", fmt.Errorf("error extracting text from page %d: %w", i, err)
		}
		builder.WriteString(text)
		builder.WriteString("\n")
	}

	return builder.String(), nil
}

// IsImageType reports whether an upload's type is one of the image formats
// the image-grounded pipeline accepts (jpg, jpeg, png).
func IsImageType(fileType string) bool {
	switch strings.ToLower(fileType) {
	case "image/jpg", "image/jpeg", "image/png", "jpg", "jpeg", "png":
		return true
	}
	return false
}
