package cli

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/matzehuels/shelfmark/pkg/dataset"
	"github.com/matzehuels/shelfmark/pkg/snapshot"
)

// Export formats.
const (
	FormatJSON    = "json"
	FormatCSV     = "csv"
	FormatTable   = "table"
	FormatParquet = "parquet"
)

var formats = []string{FormatJSON, FormatCSV, FormatTable, FormatParquet}

// maxCell caps cell width in table output.
const maxCell = 40

// column is one exported field. Narrow columns are the ones shown in
// table output; CSV and JSON carry every column.
type column[T any] struct {
	name   string
	narrow bool
	value  func(T) string
}

var bookColumns = []column[dataset.Book]{
	{"id", true, func(b dataset.Book) string { return itoa(b.ID) }},
	{"title", true, func(b dataset.Book) string { return b.Title }},
	{"author", true, func(b dataset.Book) string { return b.Author }},
	{"final_price", true, func(b dataset.Book) string { return itoa(b.FinalPrice) }},
	{"slice_price", false, func(b dataset.Book) string { return itoa(b.SlicePrice) }},
	{"discount", true, func(b dataset.Book) string { return itoa(b.Discount) }},
	{"is_oos", true, func(b dataset.Book) string { return strconv.FormatBool(b.IsOOS) }},
	{"category_slug", true, func(b dataset.Book) string { return b.CategorySlug }},
	{"slug", false, func(b dataset.Book) string { return b.Slug }},
	{"image", false, func(b dataset.Book) string { return b.Image }},
	{"sku", false, func(b dataset.Book) string { return b.SKU }},
	{"format", false, func(b dataset.Book) string { return b.Format }},
	{"applied_promo_slug", false, func(b dataset.Book) string { return b.AppliedPromoSlug }},
	{"store_name", false, func(b dataset.Book) string { return b.StoreName }},
	{"isbn", false, func(b dataset.Book) string { return b.ISBN }},
	{"warehouse_slug", false, func(b dataset.Book) string { return b.WarehouseSlug }},
	{"warehouse_id", false, func(b dataset.Book) string { return itoa(b.WarehouseID) }},
	{"lang", false, func(b dataset.Book) string { return b.Lang }},
	{"description", false, func(b dataset.Book) string { return deref(b.Description) }},
}

var categoryColumns = []column[dataset.Category]{
	{"title", true, func(c dataset.Category) string { return c.Title }},
	{"slug", true, func(c dataset.Category) string { return c.Slug }},
	{"image", false, func(c dataset.Category) string { return c.Image }},
	{"parent_slug", true, func(c dataset.Category) string { return deref(c.ParentSlug) }},
	{"depth", true, func(c dataset.Category) string { return itoa(c.Depth) }},
}

var storeColumns = []column[dataset.StoreLocation]{
	{"name", true, func(s dataset.StoreLocation) string { return s.Name }},
	{"address", true, func(s dataset.StoreLocation) string { return s.Address }},
	{"latitude", false, func(s dataset.StoreLocation) string { return ftoa(s.Latitude) }},
	{"longitude", false, func(s dataset.StoreLocation) string { return ftoa(s.Longitude) }},
	{"open_schedule", false, func(s dataset.StoreLocation) string { return s.OpenSchedule }},
	{"slug", false, func(s dataset.StoreLocation) string { return s.Slug }},
	{"type", true, func(s dataset.StoreLocation) string { return s.Type }},
}

// export writes rows in format.
func export[T any](w io.Writer, format string, rows []T, cols []column[T]) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)

	case FormatCSV:
		cw := csv.NewWriter(w)
		header := make([]string, len(cols))
		for i, col := range cols {
			header[i] = col.name
		}
		if err := cw.Write(header); err != nil {
			return err
		}
		for _, row := range rows {
			rec := make([]string, len(cols))
			for i, col := range cols {
				rec[i] = col.value(row)
			}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()

	case FormatTable:
		_, err := fmt.Fprintln(w, renderTable(rows, cols))
		return err

	case FormatParquet:
		data, err := snapshot.Encode(rows)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	}
	return fmt.Errorf("unknown format %q (want one of json, csv, table, parquet)", format)
}

func renderTable[T any](rows []T, cols []column[T]) string {
	var narrow []column[T]
	for _, col := range cols {
		if col.narrow {
			narrow = append(narrow, col)
		}
	}

	headers := make([]string, len(narrow))
	for i, col := range narrow {
		headers[i] = col.name
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(StyleDim).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return StyleTitle.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
	for _, r := range rows {
		cells := make([]string, len(narrow))
		for i, col := range narrow {
			cells[i] = truncate(col.value(r), maxCell)
		}
		t.Row(cells...)
	}
	return t.Render()
}

// exportKind writes the table for kind to path, or to stdout when path is
// empty or "-".
func exportKind(stdout io.Writer, path, format string, kind dataset.Kind, tables *loadedTables) (err error) {
	w := stdout
	if path != "" && path != "-" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := f.Close(); err == nil {
				err = cerr
			}
		}()
		w = f
	}

	switch kind {
	case dataset.KindBooks:
		return export(w, format, tables.books, bookColumns)
	case dataset.KindCategories:
		return export(w, format, tables.categories, categoryColumns)
	case dataset.KindStores:
		return export(w, format, tables.stores, storeColumns)
	}
	return fmt.Errorf("unknown kind %q", kind)
}

// exportName is the file written for kind when exporting into a directory.
func exportName(kind dataset.Kind, format string) string {
	ext := format
	if format == FormatTable {
		ext = "txt"
	}
	return string(kind) + "." + ext
}

func itoa(n int64) string { return strconv.FormatInt(n, 10) }

func ftoa(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
