package report

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/signintech/gopdf"
	"go.uber.org/zap"

	"clinical-intake-agent/internal/intake"
)

// DejaVuSans locations on Alpine and Debian based images.
var DefaultFontPaths = []string{
	"/usr/share/fonts/ttf-dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
}

const (
	fontFamily = "DejaVu"
	textWidth  = 500.0
	pageBottom = 780.0
)

type TelegramClient interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	SendDocument(ctx context.Context, chatID int64, fileData []byte, fileName string) error
}

// Service renders the triage report for a completed interview and delivers
// it to the doctor's Telegram chat.
type Service struct {
	tgClient     TelegramClient
	doctorChatID int64
	fontPaths    []string
	now          func() time.Time
	logger       *zap.Logger
}

func NewService(tg TelegramClient, doctorChatID int64, fontPaths []string, logger *zap.Logger) *Service {
	if len(fontPaths) == 0 {
		fontPaths = DefaultFontPaths
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		tgClient:     tg,
		doctorChatID: doctorChatID,
		fontPaths:    fontPaths,
		now:          time.Now,
		logger:       logger,
	}
}

// SendTriageReport implements intake.Reporter.
func (s *Service) SendTriageReport(ctx context.Context, sessionID string, rec intake.PatientRecord) error {
	s.logger.Info("generating triage report", zap.String("session_id", sessionID))
	data, err := s.Render(sessionID, rec)
	if err != nil {
		return err
	}

	if err := s.tgClient.SendMessage(ctx, s.doctorChatID, Headline(rec)); err != nil {
		return fmt.Errorf("send headline: %w", err)
	}
	fileName := fmt.Sprintf("triage_%s.pdf", sessionID)
	if err := s.tgClient.SendDocument(ctx, s.doctorChatID, data, fileName); err != nil {
		return fmt.Errorf("send report: %w", err)
	}
	s.logger.Info("triage report sent",
		zap.String("session_id", sessionID),
		zap.Int64("chat_id", s.doctorChatID),
		zap.Int("bytes", len(data)))
	return nil
}

// Render builds the PDF document.
func (s *Service) Render(sessionID string, rec intake.PatientRecord) ([]byte, error) {
	pdf := gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: *gopdf.PageSizeA4})
	pdf.SetMargins(40, 40, 40, 40)
	pdf.AddPage()

	var fontErr error
	fontLoaded := false
	for _, path := range s.fontPaths {
		if err := pdf.AddTTFFont(fontFamily, path); err != nil {
			fontErr = err
			continue
		}
		s.logger.Debug("loaded report font", zap.String("path", path))
		fontLoaded = true
		break
	}
	if !fontLoaded {
		return nil, fmt.Errorf("failed to load font for PDF, tried %s: %w", strings.Join(s.fontPaths, ", "), fontErr)
	}

	w := &writer{pdf: &pdf}
	w.font(20)
	w.line("Patient intake triage report", 30)
	w.font(10)
	w.line("Date: "+s.now().Format("02 Jan 2006 15:04"), 14)
	w.line("Session: "+sessionID, 24)

	for _, sec := range Sections(rec) {
		w.font(14)
		w.line(sec.Title, 18)
		w.font(11)
		for _, l := range sec.Lines {
			w.wrapped(l)
		}
		w.pdf.Br(12)
	}
	if w.err != nil {
		return nil, w.err
	}

	var buf bytes.Buffer
	if _, err := pdf.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}
	return buf.Bytes(), nil
}

// writer keeps the first gopdf error and breaks pages as text flows.
type writer struct {
	pdf *gopdf.GoPdf
	err error
}

func (w *writer) font(size float64) {
	if w.err == nil {
		w.err = w.pdf.SetFont(fontFamily, "", size)
	}
}

func (w *writer) line(text string, advance float64) {
	if w.err != nil {
		return
	}
	if w.pdf.GetY()+advance > pageBottom {
		w.pdf.AddPage()
	}
	w.err = w.pdf.Cell(nil, text)
	w.pdf.Br(advance)
}

func (w *writer) wrapped(text string) {
	if w.err != nil {
		return
	}
	lines, err := w.pdf.SplitText(text, textWidth)
	if err != nil {
		w.err = err
		return
	}
	for _, l := range lines {
		w.line(l, 14)
	}
	w.pdf.Br(4)
}

type Section struct {
	Title string
	Lines []string
}

// Sections lays out the record as the doctor reads it.
func Sections(rec intake.PatientRecord) []Section {
	d := rec.Demographics
	demo := Section{Title: "Patient", Lines: []string{
		"Name: " + orUnknown(d.Name),
		"Age: " + ageText(d.Age),
		"Sex: " + sexText(d.Sex),
	}}

	sym := rec.Symptoms
	symptoms := Section{Title: "Symptoms", Lines: []string{
		"Main: " + listText(sym.Main),
		"Onset: " + orUnknown(sym.Onset),
		"Associated: " + listText(sym.Associated),
	}}
	for _, detail := range sym.AdditionalDetails {
		symptoms.Lines = append(symptoms.Lines, "- "+detail)
	}

	history := Section{Title: "Medical history"}
	if len(rec.HistoryFacts) == 0 {
		history.Lines = []string{"No history facts recorded."}
	}
	for _, f := range rec.HistoryFacts {
		history.Lines = append(history.Lines, "- "+f.String())
	}

	triage := Section{Title: "Triage summary"}
	if s := rec.Summary; s != nil {
		triage.Lines = []string{
			"Urgency: " + string(s.Urgency),
			"Reason for urgency: " + s.ReasonForUrgency,
			"Probable diagnosis: " + s.ProbableDiagnosis,
			"Reason for diagnosis: " + s.ReasonForDiagnosis,
		}
	} else {
		triage.Lines = []string{"No summary was produced."}
	}

	return []Section{demo, symptoms, history, triage}
}

// Headline is the short chat message sent ahead of the PDF.
func Headline(rec intake.PatientRecord) string {
	urgency := "UNKNOWN"
	if rec.Summary != nil {
		urgency = string(rec.Summary.Urgency)
	}
	return fmt.Sprintf("New intake: %s, %s, %s. Urgency: %s",
		orUnknown(rec.Demographics.Name), ageText(rec.Demographics.Age), sexText(rec.Demographics.Sex), urgency)
}

func orUnknown(s *string) string {
	if s == nil || *s == "" {
		return "unknown"
	}
	return *s
}

func ageText(age *int) string {
	if age == nil {
		return "unknown"
	}
	return strconv.Itoa(*age)
}

func sexText(sex *intake.Sex) string {
	if sex == nil {
		return "unknown"
	}
	return string(*sex)
}

func listText(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}
