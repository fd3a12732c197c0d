package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// ── 导出模块业务错误 ──

var ErrExportGenerateFail = errors.New("生成 Excel 文件失败")

// ═══════════════════════════════════════════════════════════
// ExportHistory 导出代币转移记录为 Excel
// ═══════════════════════════════════════════════════════════
//
// 输出格式：
//   - 单个 Sheet "转移记录"
//   - 第 1 行：代币标题
//   - 第 2 行表头：序号 | 转出地址 | 转入地址 | 积分 | 操作人 | 时间
//   - 首次发放的转出地址显示为 "未分配"
//
// 返回值：buf（Excel 内容）, filename（建议文件名）, error

func (s *ledgerService) ExportHistory(ctx context.Context, tokenID string) (*bytes.Buffer, string, error) {
	token, err := s.getToken(ctx, tokenID)
	if err != nil {
		return nil, "", err
	}
	history, err := s.History(ctx, tokenID)
	if err != nil {
		s.logger.Error("查询转移记录失败", zap.String("token_id", tokenID), zap.Error(err))
		return nil, "", err
	}

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "转移记录"
	idx, _ := f.NewSheet(sheetName)
	f.SetActiveSheet(idx)
	// 删除默认 Sheet1
	f.DeleteSheet("Sheet1")

	// 设置列宽
	f.SetColWidth(sheetName, "A", "A", 8)
	f.SetColWidth(sheetName, "B", "C", 48)
	f.SetColWidth(sheetName, "D", "D", 10)
	f.SetColWidth(sheetName, "E", "E", 20)
	f.SetColWidth(sheetName, "F", "F", 24)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	// 标题行
	f.SetCellValue(sheetName, "A1", fmt.Sprintf("%s (%s)", token.Metadata.Title, token.TokenID))
	f.MergeCell(sheetName, "A1", "F1")
	f.SetCellStyle(sheetName, "A1", "A1", headerStyle)

	// 表头
	headers := []string{"序号", "转出地址", "转入地址", "积分", "操作人", "时间"}
	for i, h := range headers {
		f.SetCellValue(sheetName, cell(colName(i), 2), h)
	}
	f.SetCellStyle(sheetName, "A2", "F2", headerStyle)

	// 数据行
	row := 3
	for _, e := range history {
		from := "未分配"
		if e.FromAddress != nil {
			from = *e.FromAddress
		}
		f.SetCellValue(sheetName, cell("A", row), e.Sequence)
		f.SetCellValue(sheetName, cell("B", row), from)
		f.SetCellValue(sheetName, cell("C", row), e.ToAddress)
		f.SetCellValue(sheetName, cell("D", row), e.PointsAwarded)
		f.SetCellValue(sheetName, cell("E", row), e.InitiatedBy)
		f.SetCellValue(sheetName, cell("F", row), e.Timestamp)
		row++
	}

	// 写入 buffer
	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	filename := fmt.Sprintf("token_%s_history.xlsx", token.TokenID)
	return buf, filename, nil
}

// ── 辅助函数 ──

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
