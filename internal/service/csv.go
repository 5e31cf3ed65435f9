package service

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"learning_intel_backend/internal/pipeline"
)

// ParseCSVRows 把定界文本解析成原始行，首行为列名
// 值一律按字符串透传，类型判定留给行校验器
// 只有表头没有数据行是合法的空批次
func ParseCSVRows(r io.Reader) ([]pipeline.RawRow, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("missing header row")
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	rows := []pipeline.RawRow{}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row %d: %w", len(rows)+1, err)
		}

		row := make(pipeline.RawRow, len(header))
		for i, name := range header {
			if i < len(record) {
				row[name] = strings.TrimSpace(record[i])
			}
		}
		rows = append(rows, row)
	}

	return rows, nil
}
