package leaderboard

import (
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"

	"schoolctf/server/logs"
	"schoolctf/server/store"
)

// HandleExport downloads the current ranking as an Excel workbook for the
// teacher's records. Superuser only.
func HandleExport(c *gin.Context, st store.Store, emoji EmojiFunc) {
	eventID := c.GetString("eventID")

	entries, err := Compute(st, eventID, emoji)
	if err != nil {
		log.Printf("compute leaderboard error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR"})
		return
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := "Leaderboard"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"Rank", "Team", "Points", "Time (s)", "Solved"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}

	for i, entry := range entries {
		row := i + 2
		f.SetCellValue(sheet, fmt.Sprintf("A%d", row), i+1)
		f.SetCellValue(sheet, fmt.Sprintf("B%d", row), entry.Name)
		f.SetCellValue(sheet, fmt.Sprintf("C%d", row), entry.TotalPoints)
		f.SetCellValue(sheet, fmt.Sprintf("D%d", row), entry.TotalTime)
		f.SetCellValue(sheet, fmt.Sprintf("E%d", row), strings.Join(entry.CompletedCTFs, " "))
	}

	logs.Write(st, logs.TypeAdminOp, logs.LevelInfo, c.GetInt64("teamID"), eventID, c.ClientIP(),
		"exported leaderboard")

	filename := fmt.Sprintf("leaderboard-%s-%s.xlsx", eventID, time.Now().Format("20060102-150405"))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	if err := f.Write(c.Writer); err != nil {
		log.Printf("write xlsx error: %v", err)
	}
}
