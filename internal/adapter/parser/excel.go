package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"github.com/rl1809/order-stock/internal/core/domain"
)

const (
	colCustomerName = iota
	colCustomerAddress
	colProducts
)

type itemRow struct {
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
}

// ExcelParser reads bulk orders from the first sheet of an xlsx workbook.
// Row 1 is a header. Each following row holds the customer name, the
// customer address and a JSON array of items.
type ExcelParser struct {
	log zerolog.Logger
}

func NewExcelParser(log zerolog.Logger) *ExcelParser {
	return &ExcelParser{log: log}
}

// Parse never fails: an unreadable workbook yields no commands, and a row
// whose item JSON is malformed yields a command without items, which the
// order flow rejects as an invalid order.
func (p *ExcelParser) Parse(ctx context.Context, data []byte) []domain.OrderCommand {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		p.log.Error().Err(err).Msg("failed to open workbook")
		return nil
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		p.log.Error().Err(err).Str("sheet", sheets[0]).Msg("failed to read rows")
		return nil
	}

	var commands []domain.OrderCommand
	for i, row := range rows {
		if i == 0 || isBlank(row) {
			continue
		}
		if ctx.Err() != nil {
			p.log.Warn().Int("row", i+1).Msg("parse cancelled")
			break
		}

		items, err := parseItems(cell(row, colProducts))
		if err != nil {
			p.log.Warn().Err(err).Int("row", i+1).Msg("malformed items column")
		}

		commands = append(commands, domain.OrderCommand{
			CustomerName:    cell(row, colCustomerName),
			CustomerAddress: cell(row, colCustomerAddress),
			Items:           items,
		})
	}
	return commands
}

func parseItems(raw string) ([]domain.OrderItemCommand, error) {
	if raw == "" {
		return nil, nil
	}

	var parsed []itemRow
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, err
	}

	items := make([]domain.OrderItemCommand, 0, len(parsed))
	for _, it := range parsed {
		items = append(items, domain.OrderItemCommand{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
		})
	}
	return items, nil
}

func cell(row []string, idx int) string {
	if idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
