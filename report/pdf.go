package report

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-pdf/fpdf"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"englishbuddy/logger"
)

const (
	pdfFont     = "DejaVuSans"
	fontRegular = "DejaVuSans.ttf"
	fontBold    = "DejaVuSans-Bold.ttf"
)

type PDFRendererProps struct {
	Logger *logger.LogMiddleware
	// FontDir must contain DejaVuSans.ttf and DejaVuSans-Bold.ttf; Cyrillic
	// output needs a full UTF-8 font.
	FontDir   string
	OutputDir string
}

// PDFRenderer writes the full report as a PDF document.
type PDFRenderer struct {
	logger    *logger.LogMiddleware
	fontDir   string
	outputDir string
}

func NewPDFRenderer(args PDFRendererProps) *PDFRenderer {
	fontDir := args.FontDir
	if fontDir == "" {
		fontDir = "fonts"
	}
	outputDir := args.OutputDir
	if outputDir == "" {
		outputDir = "reports"
	}
	return &PDFRenderer{logger: args.Logger, fontDir: fontDir, outputDir: outputDir}
}

func (r *PDFRenderer) Render(data *FullReportData) (string, error) {
	if err := os.MkdirAll(r.outputDir, 0o755); err != nil {
		return "", fmt.Errorf("could not create report directory: %w", err)
	}
	path := filepath.Join(r.outputDir, data.UserInfo.Username+"_full_report.pdf")

	pdf := fpdf.New("P", "mm", "Letter", "")
	pdf.SetMargins(18, 18, 18)
	pdf.AddUTF8Font(pdfFont, "", filepath.Join(r.fontDir, fontRegular))
	pdf.AddUTF8Font(pdfFont, "B", filepath.Join(r.fontDir, fontBold))
	if pdf.Err() {
		return "", fmt.Errorf("could not register fonts: %v", pdf.Error())
	}

	r.titlePage(pdf, data)
	r.studyPlanPages(pdf, &data.StudyPlan)
	r.schedulePage(pdf, &data.StudyPlan)
	r.resourcesPage(pdf, &data.StudyPlan)

	sections := []struct {
		title    string
		analysis Analysis
	}{
		{"Оценка словарного запаса", data.Vocabulary},
		{"Анализ грамматики", data.Grammar},
		{"Оценка стиля речи", data.Style},
		{"Анализ использования времен", data.Tense},
		{"Оценка разговорных навыков", data.Audio},
	}
	for _, section := range sections {
		if err := r.analysisSection(pdf, section.title, section.analysis); err != nil {
			return "", err
		}
	}

	if err := pdf.OutputFileAndClose(path); err != nil {
		return "", fmt.Errorf("could not write PDF: %w", err)
	}

	r.logger.Logger(context.Background()).Info("[PDF] Report document written", zap.String("path", path))
	return path, nil
}

func (r *PDFRenderer) titlePage(pdf *fpdf.Fpdf, data *FullReportData) {
	pdf.AddPage()
	pdf.SetFont(pdfFont, "B", 24)
	pdf.MultiCell(0, 12, "Анализ владения английским языком", "", "L", false)
	pdf.Ln(8)

	heading(pdf, "Информация о пользователе:")
	displayName := cases.Title(language.Russian).String(strings.ToLower(data.UserInfo.Name))
	body(pdf, "Имя: "+displayName)
	body(pdf, "Возраст: "+data.UserInfo.Age)
	body(pdf, "Email: "+data.UserInfo.Email)
}

func (r *PDFRenderer) studyPlanPages(pdf *fpdf.Fpdf, plan *StudyPlan) {
	pdf.AddPage()
	pdf.SetFont(pdfFont, "B", 20)
	pdf.MultiCell(0, 10, "План обучения", "", "L", false)
	pdf.Ln(4)

	heading(pdf, "Введение")
	body(pdf, plan.Introduction.Summary)

	heading(pdf, "Ключевые области для улучшения:")
	bullets(pdf, plan.Introduction.KeyAreasForImprovement)

	periods := []struct {
		label string
		plan  PeriodPlan
	}{
		{"1 месяц", plan.DetailedImprovementPlan.OneMonth},
		{"3 месяца", plan.DetailedImprovementPlan.ThreeMonth},
		{"6 месяцев", plan.DetailedImprovementPlan.SixMonth},
		{"12 месяцев", plan.DetailedImprovementPlan.TwelveMonth},
	}
	for _, period := range periods {
		pdf.AddPage()
		heading(pdf, "План обучения на "+period.label+":")
		subheading(pdf, "Цели:")
		bullets(pdf, period.plan.Goals)
		subheading(pdf, "План действий:")
		bullets(pdf, period.plan.ActionSteps)
	}
}

func (r *PDFRenderer) schedulePage(pdf *fpdf.Fpdf, plan *StudyPlan) {
	pdf.AddPage()
	pdf.SetFont(pdfFont, "B", 20)
	pdf.MultiCell(0, 10, "График Занятий", "", "L", false)
	pdf.Ln(4)

	heading(pdf, "Ежедневные занятия")
	bullets(pdf, plan.ActionSchedule.DailyActions)
	heading(pdf, "Еженедельный план")
	bullets(pdf, plan.ActionSchedule.WeeklyActions)
	heading(pdf, "Ежемесячный план")
	bullets(pdf, plan.ActionSchedule.MonthlyActions)
}

func (r *PDFRenderer) resourcesPage(pdf *fpdf.Fpdf, plan *StudyPlan) {
	pdf.AddPage()
	pdf.SetFont(pdfFont, "B", 20)
	pdf.MultiCell(0, 10, "Рекомендуемые материалы", "", "L", false)
	pdf.Ln(4)

	titleCaser := cases.Title(language.Russian)
	for _, resourceType := range sortedKeys(plan.Resources) {
		heading(pdf, titleCaser.String(resourceType))
		bullets(pdf, plan.Resources[resourceType])
	}
}

func (r *PDFRenderer) analysisSection(pdf *fpdf.Fpdf, title string, analysis Analysis) error {
	var evaluation Evaluation
	if err := evaluation.UnmarshalJSON(analysis.Evaluation); err != nil {
		return fmt.Errorf("could not parse evaluation for %q: %w", title, err)
	}
	var feedback Feedback
	if err := unmarshalFeedback(analysis.Feedback, &feedback); err != nil {
		return fmt.Errorf("could not parse feedback for %q: %w", title, err)
	}

	pdf.AddPage()
	pdf.SetFont(pdfFont, "B", 18)
	pdf.MultiCell(0, 9, title, "", "L", false)
	pdf.Ln(4)

	for _, name := range sortedKeys(evaluation.Criteria) {
		score := evaluation.Criteria[name]
		subheading(pdf, name)
		body(pdf, fmt.Sprintf("Оценка: %.0f/%.0f", score.Score, score.MaxScore))
		body(pdf, "Анализ: "+score.Justification)
		pdf.Ln(2)
	}

	subheading(pdf, "Общая оценка")
	body(pdf, fmt.Sprintf("Общий балл: %.0f/%.0f", evaluation.Overall.Score, evaluation.Overall.MaxScore))
	if len(evaluation.Overall.Strengths) > 0 {
		body(pdf, "Сильные стороны:")
		bullets(pdf, evaluation.Overall.Strengths)
	}
	if len(evaluation.Overall.AreasForImprovement) > 0 {
		body(pdf, "Области для улучшения:")
		bullets(pdf, evaluation.Overall.AreasForImprovement)
	}
	if strings.TrimSpace(evaluation.Overall.Summary) != "" {
		body(pdf, "Итог: "+evaluation.Overall.Summary)
	}

	subheading(pdf, "Детальный анализ")
	feedbackSections := []struct {
		title string
		key   string
	}{
		{"Примеры сильных сторон:", "Specific examples that demonstrate strong skills"},
		{"Области для улучшения:", "Areas where improvement is needed"},
		{"Рекомендуемые упражнения:", "Suggested exercises or practice activities"},
		{"Общие рекомендации:", "General recommendations for further development"},
	}
	for _, section := range feedbackSections {
		items := feedback[section.key]
		if len(items) == 0 {
			continue
		}
		body(pdf, section.title)
		bullets(pdf, items)
	}

	return nil
}

// sortedKeys makes map-driven sections render in a stable order, so the same
// analysis always produces the same document.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func unmarshalFeedback(raw []byte, feedback *Feedback) error {
	if len(raw) == 0 {
		*feedback = Feedback{}
		return nil
	}
	return json.Unmarshal(raw, feedback)
}

func heading(pdf *fpdf.Fpdf, text string) {
	pdf.SetFont(pdfFont, "B", 14)
	pdf.MultiCell(0, 8, text, "", "L", false)
	pdf.Ln(1)
}

func subheading(pdf *fpdf.Fpdf, text string) {
	pdf.SetFont(pdfFont, "B", 12)
	pdf.MultiCell(0, 7, text, "", "L", false)
}

func body(pdf *fpdf.Fpdf, text string) {
	pdf.SetFont(pdfFont, "", 11)
	pdf.MultiCell(0, 6, text, "", "L", false)
}

func bullets(pdf *fpdf.Fpdf, items []string) {
	pdf.SetFont(pdfFont, "", 11)
	for _, item := range items {
		pdf.MultiCell(0, 6, "• "+item, "", "L", false)
	}
	pdf.Ln(2)
}
