// Package reporting renders a patient's questionnaires as an xlsx workbook:
// an overview sheet followed by one sheet per completed questionnaire.
package reporting

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/clinic/clinic/internal/domain/questionnaire"
	"github.com/clinic/clinic/internal/platform/i18n"
)

const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const dateLayout = "02-01-2006"

// PatientInfo is the patient header of the overview sheet.
type PatientInfo struct {
	Name           string
	Age            *int
	Phone          string
	Email          string
	Condition      string
	TreatmentNotes string
}

// Item is one questionnaire with the status shown to staff.
type Item struct {
	Instance *questionnaire.Instance
	Status   questionnaire.Status
}

// Export is everything a workbook is built from.
type Export struct {
	Patient PatientInfo
	Items   []Item
	Locale  string
}

type builder struct {
	f      *excelize.File
	locale string
	bold   int
}

func (b *builder) t(key string) string { return i18n.T(b.locale, key) }

func (b *builder) row(sheet string, n int, values ...interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, n)
	if err != nil {
		return err
	}
	return b.f.SetSheetRow(sheet, cell, &values)
}

func (b *builder) boldRow(sheet string, n, cols int) error {
	from, _ := excelize.CoordinatesToCellName(1, n)
	to, _ := excelize.CoordinatesToCellName(cols, n)
	return b.f.SetCellStyle(sheet, from, to, b.bold)
}

// BuildWorkbook renders exp. The caller owns the returned file and must
// Close it.
func BuildWorkbook(exp *Export) (*excelize.File, error) {
	f := excelize.NewFile()
	b := &builder{f: f, locale: exp.Locale}
	if b.locale == "" {
		b.locale = i18n.Danish
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, err
	}
	b.bold = bold

	overview := b.t(i18n.KeyExportOverview)
	if err := f.SetSheetName("Sheet1", overview); err != nil {
		f.Close()
		return nil, err
	}
	if err := b.writeOverview(overview, exp); err != nil {
		f.Close()
		return nil, fmt.Errorf("write overview: %w", err)
	}

	names := newSheetNamer(overview)
	for _, item := range exp.Items {
		inst := item.Instance
		if inst == nil || !inst.IsCompleted() {
			continue
		}
		title := inst.Title
		if strings.TrimSpace(title) == "" {
			title = b.t(i18n.KeyExportUntitled)
		}
		sheet := names.next(title)
		if _, err := f.NewSheet(sheet); err != nil {
			f.Close()
			return nil, fmt.Errorf("add sheet %q: %w", sheet, err)
		}
		if err := b.writeInstance(sheet, inst); err != nil {
			f.Close()
			return nil, fmt.Errorf("write sheet %q: %w", sheet, err)
		}
	}

	f.SetActiveSheet(0)
	return f, nil
}

func (b *builder) writeOverview(sheet string, exp *Export) error {
	p := exp.Patient
	age := ""
	if p.Age != nil {
		age = strconv.Itoa(*p.Age)
	}
	notes := p.TreatmentNotes
	if strings.TrimSpace(notes) == "" {
		notes = b.t(i18n.KeyExportNoNotes)
	}

	rows := [][]interface{}{
		{b.t(i18n.KeyExportPatient)},
		{b.t(i18n.KeyExportName), p.Name},
		{b.t(i18n.KeyExportAge), age},
		{b.t(i18n.KeyExportPhone), p.Phone},
		{b.t(i18n.KeyExportEmail), p.Email},
		{b.t(i18n.KeyExportCondition), p.Condition},
		{b.t(i18n.KeyExportNotes), notes},
		{},
		{b.t(i18n.KeyExportQuestions)},
		{b.t(i18n.KeyExportTitle), b.t(i18n.KeyExportAssigned), b.t(i18n.KeyExportCompleted), b.t(i18n.KeyExportStatus)},
	}
	for _, item := range exp.Items {
		inst := item.Instance
		if inst == nil {
			continue
		}
		rows = append(rows, []interface{}{
			inst.Title,
			inst.AssignedDate.Format(dateLayout),
			b.date(inst.DateCompleted),
			b.status(item.Status),
		})
	}

	for i, r := range rows {
		if len(r) == 0 {
			continue
		}
		if err := b.row(sheet, i+1, r...); err != nil {
			return err
		}
	}
	for _, n := range []int{1, 9} {
		if err := b.boldRow(sheet, n, 1); err != nil {
			return err
		}
	}
	if err := b.boldRow(sheet, 10, 4); err != nil {
		return err
	}
	if err := b.f.SetColWidth(sheet, "A", "A", 40); err != nil {
		return err
	}
	return b.f.SetColWidth(sheet, "B", "D", 18)
}

func (b *builder) writeInstance(sheet string, inst *questionnaire.Instance) error {
	if err := b.row(sheet, 1, inst.Title); err != nil {
		return err
	}
	if err := b.row(sheet, 2, b.t(i18n.KeyExportCompleted)+":", b.date(inst.DateCompleted)); err != nil {
		return err
	}
	if err := b.row(sheet, 4, b.t(i18n.KeyExportQuestion), b.t(i18n.KeyExportAnswer)); err != nil {
		return err
	}
	for i, q := range inst.Questions {
		if err := b.row(sheet, 5+i, fmt.Sprintf("%d. %s", i+1, q.Text), b.answer(inst.Responses, q.ID)); err != nil {
			return err
		}
	}
	if err := b.boldRow(sheet, 1, 1); err != nil {
		return err
	}
	if err := b.boldRow(sheet, 4, 2); err != nil {
		return err
	}
	if err := b.f.SetColWidth(sheet, "A", "A", 60); err != nil {
		return err
	}
	return b.f.SetColWidth(sheet, "B", "B", 40)
}

func (b *builder) answer(responses questionnaire.Responses, id string) string {
	a, ok := responses[id]
	if !ok || a.IsEmpty() {
		return b.t(i18n.KeyNoAnswer)
	}
	return a.String()
}

func (b *builder) date(t *time.Time) string {
	if t == nil {
		return b.t(i18n.KeyExportNotGiven)
	}
	return t.Format(dateLayout)
}

func (b *builder) status(s questionnaire.Status) string {
	switch s {
	case questionnaire.StatusCompleted:
		return b.t(i18n.KeyStatusCompleted)
	case questionnaire.StatusOverdue:
		return b.t(i18n.KeyStatusOverdue)
	default:
		return b.t(i18n.KeyStatusPending)
	}
}

// Sheet names are limited to 31 characters and may not contain : \ / ? * [ ]
// or start or end with an apostrophe. Excel compares them case-insensitively.
const (
	maxSheetName  = 31
	sheetTitleLen = 25
)

var sheetNameReplacer = strings.NewReplacer(
	":", "-", `\`, "-", "/", "-", "?", "", "*", "", "[", "(", "]", ")",
)

type sheetNamer struct {
	used map[string]bool
}

func newSheetNamer(reserved ...string) *sheetNamer {
	n := &sheetNamer{used: make(map[string]bool)}
	for _, r := range reserved {
		n.used[strings.ToLower(r)] = true
	}
	return n
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}

func sanitizeSheetName(title string) string {
	s := sheetNameReplacer.Replace(strings.TrimSpace(title))
	s = strings.Trim(strings.TrimSpace(truncateRunes(s, sheetTitleLen)), "'")
	if s == "" {
		s = "Ark"
	}
	return s
}

// next returns a unique sheet name for title, suffixing " (n)" on clashes.
func (n *sheetNamer) next(title string) string {
	base := sanitizeSheetName(title)
	name := base
	for i := 2; n.used[strings.ToLower(name)]; i++ {
		suffix := fmt.Sprintf(" (%d)", i)
		name = truncateRunes(base, maxSheetName-utf8.RuneCountInString(suffix)) + suffix
	}
	n.used[strings.ToLower(name)] = true
	return name
}

// Filename is the attachment name for a patient's export on day.
func Filename(patientName string, day time.Time) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', '\n', '\r', '\t':
			return '_'
		}
		return r
	}, strings.TrimSpace(patientName))
	name = strings.ReplaceAll(name, " ", "_")
	if name == "" {
		name = "patient"
	}
	return fmt.Sprintf("%s_questionnaires_%s.xlsx", name, day.Format("2006-01-02"))
}
