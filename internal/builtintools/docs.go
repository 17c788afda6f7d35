// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// read_document backs PDF/DOCX/XLSX extraction with a dedicated parser
// per format, as a single on-demand builtin tool rather than a bulk
// ingestion pipeline.
package builtintools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/xuri/excelize/v2"

	"github.com/teeppp/adaptive-agent-runtime/internal/tool"
	"github.com/teeppp/adaptive-agent-runtime/internal/tooldesc"
)

type readDocumentArgs struct {
	Path string `json:"path" jsonschema:"required,description=Filesystem path to a .pdf, .docx, or .xlsx document"`
}

// NewReadDocument builds the read_document builtin.
func NewReadDocument() tool.Tool {
	schema, _ := tooldesc.GenerateSchema[readDocumentArgs]()
	return tool.NewFunc(tool.Descriptor{
		Name:        "read_document",
		Description: "Extract text content from a PDF, DOCX, or XLSX document on disk.",
		InputSchema: schema,
		Source:      tool.SourceBuiltin,
	}, func(ctx context.Context, args map[string]any) (map[string]any, error) {
		a, err := tooldesc.Decode[readDocumentArgs](args)
		if err != nil {
			return nil, fmt.Errorf("read_document: %w", err)
		}
		content, err := extractDocument(a.Path)
		if err != nil {
			return nil, fmt.Errorf("read_document: %w", err)
		}
		return map[string]any{"path": a.Path, "content": content}, nil
	})
}

func extractDocument(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return extractPDF(path)
	case ".docx":
		return extractDocx(path)
	case ".xlsx":
		return extractXlsx(path)
	default:
		return "", fmt.Errorf("unsupported document extension %q", filepath.Ext(path))
	}
}

func extractPDF(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	reader, err := pdf.NewReader(file, info.Size())
	if err != nil {
		return "", fmt.Errorf("parse pdf: %w", err)
	}

	var parts []string
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			parts = append(parts, fmt.Sprintf("--- page %d (extraction failed: %v) ---", pageNum, err))
			continue
		}
		if strings.TrimSpace(text) != "" {
			parts = append(parts, fmt.Sprintf("--- page %d ---\n%s", pageNum, text))
		}
	}
	return strings.Join(parts, "\n\n"), nil
}

func extractDocx(path string) (string, error) {
	doc, err := docx.ReadDocxFile(path)
	if err != nil {
		return "", fmt.Errorf("parse docx: %w", err)
	}
	defer doc.Close()
	return doc.Editable().GetContent(), nil
}

func extractXlsx(path string) (string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return "", fmt.Errorf("parse xlsx: %w", err)
	}
	defer f.Close()

	var b strings.Builder
	for _, sheetName := range f.GetSheetList() {
		fmt.Fprintf(&b, "--- sheet: %s ---\n", sheetName)
		rows, err := f.GetRows(sheetName)
		if err != nil {
			continue
		}
		for _, row := range rows {
			b.WriteString(strings.Join(row, "\t"))
			b.WriteString("\n")
		}
	}
	return b.String(), nil
}
