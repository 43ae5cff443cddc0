package export

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/fmuoria/fair-hire/internal/fairness"
	"github.com/fmuoria/fair-hire/internal/models"
)

const (
	SummarySheet    = "Summary"
	CandidatesSheet = "Ranked Candidates"
	AuditSheet      = "Fairness Audit"

	headerColor = "4472C4"
	hireColor   = "C6EFCE"
	reviewColor = "FFEB9C"
	rejectColor = "FFC7CE"
)

var thinBorder = []excelize.Border{
	{Type: "left", Color: "000000", Style: 1},
	{Type: "right", Color: "000000", Style: 1},
	{Type: "top", Color: "000000", Style: 1},
	{Type: "bottom", Color: "000000", Style: 1},
}

// ExportToExcel writes the screening report and optional fairness audit to an
// .xlsx file, appending the extension when missing. It returns the final path.
func ExportToExcel(report *models.ScreeningReport, audit *fairness.AuditReport, outputPath string) (string, error) {
	if !strings.HasSuffix(strings.ToLower(outputPath), ".xlsx") {
		outputPath = outputPath + ".xlsx"
	}
	outputPath = filepath.Clean(outputPath)

	f, err := Build(report, audit)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if err := f.SaveAs(outputPath); err != nil {
		// fall back to writing the buffer ourselves
		var buf bytes.Buffer
		if writeErr := f.Write(&buf); writeErr != nil {
			return "", fmt.Errorf("failed to save Excel file: direct save failed (%v), buffer write also failed: %w", err, writeErr)
		}
		if fileErr := os.WriteFile(outputPath, buf.Bytes(), 0644); fileErr != nil {
			return "", fmt.Errorf("failed to save Excel file: direct save failed (%v), file write failed: %w", err, fileErr)
		}
	}

	return outputPath, nil
}

// Write streams the workbook to w
func Write(w io.Writer, report *models.ScreeningReport, audit *fairness.AuditReport) error {
	f, err := Build(report, audit)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// Build creates the workbook in memory
func Build(report *models.ScreeningReport, audit *fairness.AuditReport) (*excelize.File, error) {
	if report == nil {
		return nil, fmt.Errorf("screening report is required")
	}

	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		f.Close()
		return nil, err
	}
	for _, name := range []string{CandidatesSheet, AuditSheet} {
		if _, err := f.NewSheet(name); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to create sheet %s: %w", name, err)
		}
	}

	steps := []struct {
		name string
		fn   func() error
	}{
		{"summary", func() error { return createSummarySheet(f, report) }},
		{"ranked candidates", func() error { return createRankedCandidatesSheet(f, report.Applications) }},
		{"fairness audit", func() error { return createAuditSheet(f, audit) }},
	}
	for _, step := range steps {
		if err := step.fn(); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to create %s sheet: %w", step.name, err)
		}
	}

	return f, nil
}

type styles struct {
	title, label, header int
	decision             map[models.Decision]int
	wrap                 int
}

func newStyles(f *excelize.File) (*styles, error) {
	var s styles
	var err error

	if s.title, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{headerColor}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "left", Vertical: "center"},
	}); err != nil {
		return nil, err
	}
	if s.label, err = f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err != nil {
		return nil, err
	}
	if s.header, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{headerColor}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border:    thinBorder,
	}); err != nil {
		return nil, err
	}
	if s.wrap, err = f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
		Border:    thinBorder,
	}); err != nil {
		return nil, err
	}

	s.decision = make(map[models.Decision]int, 3)
	for d, color := range map[models.Decision]string{
		models.DecisionHire:   hireColor,
		models.DecisionReview: reviewColor,
		models.DecisionReject: rejectColor,
	} {
		id, err := f.NewStyle(&excelize.Style{
			Fill:      excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
			Alignment: &excelize.Alignment{Vertical: "top"},
			Border:    thinBorder,
		})
		if err != nil {
			return nil, err
		}
		s.decision[d] = id
	}
	return &s, nil
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}

// createSummarySheet writes job details and decision statistics
func createSummarySheet(f *excelize.File, report *models.ScreeningReport) error {
	st, err := newStyles(f)
	if err != nil {
		return err
	}
	sheet := SummarySheet
	f.SetColWidth(sheet, "A", "A", 28)
	f.SetColWidth(sheet, "B", "B", 50)

	row := 1
	title := func(text string) {
		f.SetCellValue(sheet, cell("A", row), text)
		f.SetCellStyle(sheet, cell("A", row), cell("B", row), st.title)
		f.MergeCell(sheet, cell("A", row), cell("B", row))
		row++
	}
	pair := func(label string, value any) {
		f.SetCellValue(sheet, cell("A", row), label)
		f.SetCellStyle(sheet, cell("A", row), cell("A", row), st.label)
		f.SetCellValue(sheet, cell("B", row), value)
		row++
	}

	job := report.Job
	title("Screening Report")
	row++
	pair("Job Title:", job.Title)
	pair("Seniority:", string(job.Seniority))
	pair("Required Skills:", strings.Join(job.RequiredSkills, ", "))
	pair("Preferred Skills:", strings.Join(job.PreferredSkills, ", "))
	pair("Minimum Years:", job.MinYears)
	pair("Required Education:", job.RequiredEducation.String())
	pair("Generated:", report.Timestamp)
	pair("Candidates Screened:", len(report.Applications))
	row++

	title("Decisions")
	for _, d := range []models.Decision{models.DecisionHire, models.DecisionReview, models.DecisionReject} {
		pair(string(d)+":", report.Counts[d])
	}
	row++

	if len(report.Applications) > 0 {
		title("Score Distribution")
		lo, hi, sum := report.Applications[0].Application.Score, report.Applications[0].Application.Score, 0.0
		for _, r := range report.Applications {
			s := r.Application.Score
			lo = min(lo, s)
			hi = max(hi, s)
			sum += s
		}
		pair("Average Score:", fmt.Sprintf("%.2f", sum/float64(len(report.Applications))))
		pair("Highest Score:", fmt.Sprintf("%.2f", hi))
		pair("Lowest Score:", fmt.Sprintf("%.2f", lo))
	}

	return nil
}

// createRankedCandidatesSheet lists candidates by rank, color-coded by decision
func createRankedCandidatesSheet(f *excelize.File, ranked []models.RankedApplication) error {
	st, err := newStyles(f)
	if err != nil {
		return err
	}
	sheet := CandidatesSheet

	headers := []struct {
		title string
		width float64
	}{
		{"Rank", 8}, {"Candidate", 25}, {"Total Score", 12}, {"Decision", 12},
		{"Skills", 10}, {"Experience", 12}, {"Education", 11}, {"CCI", 8},
		{"Matched Skills", 30}, {"Missing Skills", 30}, {"Review Notes", 60},
	}
	for i, h := range headers {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheet, col, col, h.width)
		f.SetCellValue(sheet, cell(col, 1), h.title)
		f.SetCellStyle(sheet, cell(col, 1), cell(col, 1), st.header)
	}
	lastCol, _ := excelize.ColumnNumberToName(len(headers))

	for i, r := range ranked {
		row := i + 2
		app := r.Application
		b := models.ScoreBreakdown{}
		if app.Breakdown != nil {
			b = *app.Breakdown
		}

		values := []any{
			r.Rank, r.CandidateName, app.Score, string(app.Decision),
			b.SkillMatch, b.Experience, b.Education, b.CCI,
			strings.Join(b.MatchedSkills, ", "), strings.Join(b.MissingSkills, ", "), app.ReviewNotes,
		}
		if err := f.SetSheetRow(sheet, cell("A", row), &values); err != nil {
			return err
		}

		style, ok := st.decision[app.Decision]
		if !ok {
			style = st.wrap
		}
		f.SetCellStyle(sheet, cell("A", row), cell(lastCol, row), style)
	}

	if len(ranked) > 0 {
		f.AutoFilter(sheet, fmt.Sprintf("A1:%s%d", lastCol, len(ranked)+1), []excelize.AutoFilterOptions{})
	}

	return freezeHeader(f, sheet)
}

// createAuditSheet writes parity metrics and the per-group table
func createAuditSheet(f *excelize.File, audit *fairness.AuditReport) error {
	st, err := newStyles(f)
	if err != nil {
		return err
	}
	sheet := AuditSheet
	f.SetColWidth(sheet, "A", "A", 34)
	f.SetColWidth(sheet, "B", "H", 14)

	if audit == nil {
		f.SetCellValue(sheet, "A1", "No fairness audit was requested for this export.")
		return nil
	}

	row := 1
	pair := func(label string, value any) {
		f.SetCellValue(sheet, cell("A", row), label)
		f.SetCellStyle(sheet, cell("A", row), cell("A", row), st.label)
		f.SetCellValue(sheet, cell("B", row), value)
		row++
	}

	f.SetCellValue(sheet, cell("A", row), "Fairness Audit")
	f.SetCellStyle(sheet, cell("A", row), cell("H", row), st.title)
	f.MergeCell(sheet, cell("A", row), cell("H", row))
	row += 2

	pair("Protected Attribute:", audit.Attribute)
	pair("Applications:", audit.Total)
	pair("Selected (HIRE):", audit.Selected)
	pair("Demographic Parity Difference:", audit.DemographicParityDifference)
	pair("Disparate Impact Ratio:", audit.DemographicParityRatio)
	pair("Equal Opportunity Difference:", audit.EqualOpportunityDifference)
	pair("Four-Fifths Threshold:", audit.Options.ParityThreshold)
	pair("Parity Violation:", yesNo(audit.ParityViolation))
	pair("Opportunity Gap:", yesNo(audit.OpportunityGap))
	if audit.InsufficientData {
		pair("Note:", "Fewer than two groups meet the minimum size; parity metrics are not meaningful.")
	}
	row++

	headers := []string{"Group", "Count", "Selected", "Selection Rate", "Impact Ratio", "Passes 80%", "Qualified", "TPR"}
	if err := f.SetSheetRow(sheet, cell("A", row), &headers); err != nil {
		return err
	}
	f.SetCellStyle(sheet, cell("A", row), cell("H", row), st.header)
	row++

	impact := make(map[string]fairness.GroupImpact, len(audit.DisparateImpact))
	for _, gi := range audit.DisparateImpact {
		impact[gi.Group] = gi
	}

	for _, g := range audit.Groups {
		values := []any{g.Group, g.Count, g.Selected, g.SelectionRate, "", "", g.Qualified, ""}
		style := st.wrap
		if gi, ok := impact[g.Group]; ok {
			values[4] = gi.Ratio
			values[5] = yesNo(gi.Passes)
			if gi.Passes {
				style = st.decision[models.DecisionHire]
			} else {
				style = st.decision[models.DecisionReject]
			}
		} else if !g.Eligible {
			values[5] = "excluded"
		}
		if g.TPR != nil {
			values[7] = *g.TPR
		}
		if err := f.SetSheetRow(sheet, cell("A", row), &values); err != nil {
			return err
		}
		f.SetCellStyle(sheet, cell("A", row), cell("H", row), style)
		row++
	}

	return nil
}

func freezeHeader(f *excelize.File, sheet string) error {
	return f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		XSplit:      0,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
