package transcript

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xhad/askpdf/internal/models"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Markdown renders the transcript with one section per turn. Assistant
// sources are listed under their answer.
func Markdown(turns []models.Turn) string {
	var b strings.Builder
	b.WriteString("# Document Chat\n")

	for _, turn := range turns {
		speaker := "Assistant"
		if turn.Role == models.RoleUser {
			speaker = "You"
		}
		fmt.Fprintf(&b, "\n## %s\n\n%s\n", speaker, strings.TrimSpace(turn.Content))
		if turn.Incomplete {
			b.WriteString("\n_This answer may be incomplete._\n")
		}
		if len(turn.Sources) > 0 {
			fmt.Fprintf(&b, "\n**Sources** (%d document chunks):\n\n", len(turn.Sources))
			for i, src := range turn.Sources {
				fmt.Fprintf(&b, "%d. %s\n", i+1, oneLine(src.Text))
			}
		}
	}
	return b.String()
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

var md = goldmark.New(goldmark.WithExtensions(extension.GFM))

// HTML renders the Markdown transcript as a standalone page.
func HTML(turns []models.Turn) ([]byte, error) {
	var body bytes.Buffer
	if err := md.Convert([]byte(Markdown(turns)), &body); err != nil {
		return nil, fmt.Errorf("rendering transcript: %w", err)
	}

	var page bytes.Buffer
	page.WriteString("<!DOCTYPE html>\n<html>\n<head><meta charset=\"utf-8\"><title>Document Chat</title></head>\n<body>\n")
	page.Write(body.Bytes())
	page.WriteString("</body>\n</html>\n")
	return page.Bytes(), nil
}

// WriteFile picks the format from the file extension: .html/.htm or Markdown.
func WriteFile(path string, turns []models.Turn) error {
	var data []byte
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		html, err := HTML(turns)
		if err != nil {
			return err
		}
		data = html
	default:
		data = []byte(Markdown(turns))
	}
	return os.WriteFile(path, data, 0644)
}
