// Package importer loads leads from spreadsheet files.
package importer

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/store"
)

// Summary reports one import run.
type Summary struct {
	Rows       int
	Created    int
	Duplicates int
	Invalid    int
}

// Row is one parsed spreadsheet row.
type Row struct {
	CompanyName string
	Email       string
	WebsiteURL  string
}

// Importer creates leads from xlsx or csv files. The first row is a
// header; recognized columns are company_name, email, and website_url
// in any order.
type Importer struct {
	store store.Store
}

func New(s store.Store) *Importer {
	return &Importer{store: s}
}

// Import parses the file by extension and creates a lead per row.
// Rows without an email are counted invalid; rows whose email is
// already stored are counted duplicates. Rows are processed strictly
// one at a time.
func (im *Importer) Import(ctx context.Context, path string) (*Summary, error) {
	var rows []Row
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		rows, err = parseXLSX(path)
	case ".csv":
		rows, err = parseCSV(path)
	default:
		return nil, eris.Errorf("importer: unsupported file type %s", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}

	summary := &Summary{Rows: len(rows)}
	for _, row := range rows {
		email := strings.ToLower(strings.TrimSpace(row.Email))
		if email == "" || !strings.Contains(email, "@") {
			summary.Invalid++
			continue
		}

		_, err := im.store.CreateLead(ctx, model.Lead{
			CompanyName:     strings.TrimSpace(row.CompanyName),
			Email:           email,
			WebsiteURL:      strings.TrimSpace(row.WebsiteURL),
			DiscoveryMethod: "import",
			Status:          model.LeadStatusNew,
		})
		if eris.Is(err, store.ErrDuplicate) {
			summary.Duplicates++
			continue
		}
		if err != nil {
			return nil, eris.Wrapf(err, "importer: create lead %s", email)
		}
		summary.Created++
	}

	zap.L().Info("import complete",
		zap.String("file", path),
		zap.Int("rows", summary.Rows),
		zap.Int("created", summary.Created),
		zap.Int("duplicates", summary.Duplicates),
		zap.Int("invalid", summary.Invalid))
	return summary, nil
}

func parseXLSX(path string) ([]Row, error) {
	wb, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "importer: open %s", path)
	}
	if len(wb.Sheets) == 0 {
		return nil, eris.Errorf("importer: %s has no sheets", path)
	}

	sheet := wb.Sheets[0]
	if len(sheet.Rows) == 0 {
		return nil, nil
	}

	var header []string
	for _, cell := range sheet.Rows[0].Cells {
		header = append(header, cell.String())
	}
	cols := columnIndex(header)
	if cols["email"] < 0 {
		return nil, eris.Errorf("importer: %s has no email column", path)
	}

	var rows []Row
	for _, r := range sheet.Rows[1:] {
		cell := func(i int) string {
			if i < 0 || i >= len(r.Cells) {
				return ""
			}
			return r.Cells[i].String()
		}
		rows = append(rows, Row{
			CompanyName: cell(cols["company_name"]),
			Email:       cell(cols["email"]),
			WebsiteURL:  cell(cols["website_url"]),
		})
	}
	return rows, nil
}

func parseCSV(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "importer: open %s", path)
	}
	defer func() { _ = f.Close() }()

	// Excel exports CSV with a UTF-8 BOM; strip it so the first header
	// cell matches.
	reader := csv.NewReader(transform.NewReader(f, unicode.UTF8BOM.NewDecoder()))
	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "importer: read header of %s", path)
	}
	cols := columnIndex(header)
	if cols["email"] < 0 {
		return nil, eris.Errorf("importer: %s has no email column", path)
	}

	var rows []Row
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(err, "importer: read %s", path)
		}
		cell := func(i int) string {
			if i < 0 || i >= len(record) {
				return ""
			}
			return record[i]
		}
		rows = append(rows, Row{
			CompanyName: cell(cols["company_name"]),
			Email:       cell(cols["email"]),
			WebsiteURL:  cell(cols["website_url"]),
		})
	}
	return rows, nil
}

// columnIndex maps the known column names to their position, -1 when
// absent.
func columnIndex(header []string) map[string]int {
	cols := map[string]int{"company_name": -1, "email": -1, "website_url": -1}
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(name))
		if _, known := cols[key]; known {
			cols[key] = i
		}
	}
	return cols
}
