package ingestion

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fmuoria/fair-hire/internal/models"
	"github.com/fmuoria/fair-hire/internal/skills"
)

var (
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	phonePattern = regexp.MustCompile(`\+?\(?\d[\d\s().\-]{7,}\d`)

	claimedYearsPattern = regexp.MustCompile(`(?i)(\d{1,2}(?:\.\d)?)\+?\s*(?:years?|yrs?)(?:\s+of)?\s+(?:\w+\s+){0,2}?experience`)

	monthExpr     = `jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?`
	yearExpr      = `(?:19|20)\d{2}`
	dateExpr      = `(?:(?:` + monthExpr + `)\.?\s+` + yearExpr + `|\d{1,2}/` + yearExpr + `|` + yearExpr + `)`
	dateRangeExpr = `(?i)\b(` + dateExpr + `)\s*(?:-|–|—|to|until)\s*(` + dateExpr + `|present|current|now|today)\b`
	dateRange     = regexp.MustCompile(dateRangeExpr)
	monthYear     = regexp.MustCompile(`(?i)^(` + monthExpr + `)\.?\s+(\d{4})$`)
	numericMonth  = regexp.MustCompile(`^(\d{1,2})/(\d{4})$`)
)

// educationPatterns is checked from the highest level down
var educationPatterns = []struct {
	level   models.EducationLevel
	pattern *regexp.Regexp
}{
	{models.EducationDoctorate, regexp.MustCompile(`(?i)\bph\.?\s?d\b|\bdoctorate\b|\bdoctoral\b|\bdoctor of\b`)},
	{models.EducationMaster, regexp.MustCompile(`(?i)\bmaster'?s?\b|\bmsc\b|\bm\.sc\b|\bmba\b|\bmeng\b`)},
	{models.EducationBachelor, regexp.MustCompile(`(?i)\bbachelor'?s?\b|\bbsc\b|\bb\.sc\b|\bbeng\b|\bbtech\b|\bb\.tech\b|\bundergraduate degree\b`)},
	{models.EducationAssociate, regexp.MustCompile(`(?i)\bassociate'?s? degree\b|\bassociate of\b|\bdiploma\b`)},
	{models.EducationHighSchool, regexp.MustCompile(`(?i)\bhigh school\b|\bsecondary school\b|\bged\b`)},
}

var sectionHeaders = map[string]bool{
	"resume": true, "cv": true, "curriculum vitae": true, "profile": true,
	"summary": true, "contact": true, "experience": true, "education": true,
	"skills": true, "work experience": true, "employment history": true,
}

// ParsedResume holds the structured fields recovered from resume text
type ParsedResume struct {
	Name            string
	Email           string
	Phone           string
	Skills          []string
	Education       models.EducationLevel
	ClaimedYears    float64 // explicit "N years of experience" statement
	Positions       []models.Position
	YearsExperience float64 // larger of the claim and the merged position span
	Text            string
}

// Candidate converts the parsed fields into a candidate record
func (p *ParsedResume) Candidate() models.Candidate {
	return models.Candidate{
		Name:            p.Name,
		Email:           p.Email,
		Phone:           p.Phone,
		ResumeText:      p.Text,
		Skills:          p.Skills,
		YearsExperience: p.YearsExperience,
		Education:       p.Education,
		Positions:       p.Positions,
	}
}

// Parser extracts candidate fields from plain-text resumes
type Parser struct {
	extractor *skills.Extractor
	now       func() time.Time
}

// NewParser creates a parser using the given skill extractor (nil uses the default taxonomy)
func NewParser(extractor *skills.Extractor) *Parser {
	if extractor == nil {
		extractor = skills.NewExtractor(nil)
	}
	return &Parser{extractor: extractor, now: time.Now}
}

// ParseResume parses resume text with the default taxonomy
func ParseResume(text string) (*ParsedResume, error) {
	return NewParser(nil).Parse(text)
}

// Parse extracts contact details, education, experience and skills from text
func (p *Parser) Parse(text string) (*ParsedResume, error) {
	content, err := DecodeResume([]byte(text))
	if err != nil {
		return nil, err
	}

	lines := strings.Split(content, "\n")
	parsed := &ParsedResume{
		Text:      content,
		Email:     emailPattern.FindString(content),
		Phone:     findPhone(lines),
		Skills:    p.extractor.Extract(content),
		Education: detectEducation(content),
	}
	parsed.Name = detectName(lines)
	parsed.ClaimedYears = claimedYears(content)
	parsed.Positions = p.positions(lines)

	span := mergedYears(parsed.Positions, p.now())
	parsed.YearsExperience = math.Round(math.Max(parsed.ClaimedYears, span)*10) / 10

	return parsed, nil
}

func detectName(lines []string) string {
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(strings.ToLower(line), "name:") {
			return strings.TrimSpace(line[len("name:"):])
		}
		if sectionHeaders[strings.ToLower(strings.Trim(line, " :#*-"))] {
			continue
		}
		if emailPattern.MatchString(line) || strings.ContainsAny(line, "0123456789") {
			continue
		}
		if len(strings.Fields(line)) > 5 {
			continue
		}
		return strings.Trim(line, " #*")
	}
	return ""
}

func findPhone(lines []string) string {
	for _, line := range lines {
		if dateRange.MatchString(line) {
			continue
		}
		for _, m := range phonePattern.FindAllString(line, -1) {
			digits := 0
			for _, r := range m {
				if r >= '0' && r <= '9' {
					digits++
				}
			}
			if digits >= 9 && digits <= 15 {
				return strings.TrimSpace(m)
			}
		}
	}
	return ""
}

func detectEducation(text string) models.EducationLevel {
	for _, e := range educationPatterns {
		if e.pattern.MatchString(text) {
			return e.level
		}
	}
	return models.EducationNone
}

func claimedYears(text string) float64 {
	best := 0.0
	for _, m := range claimedYearsPattern.FindAllStringSubmatch(text, -1) {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil && v > best && v <= 60 {
			best = v
		}
	}
	return best
}

func (p *Parser) positions(lines []string) []models.Position {
	var out []models.Position
	for _, line := range lines {
		loc := dateRange.FindStringSubmatchIndex(line)
		if loc == nil {
			continue
		}
		start, ok := parseDate(line[loc[2]:loc[3]])
		if !ok {
			continue
		}
		pos := models.Position{Start: start}
		endText := line[loc[4]:loc[5]]
		if !isOngoing(endText) {
			end, ok := parseDate(endText)
			if !ok || end.Before(start) {
				continue
			}
			// "2018 - 2020" includes 2020
			if isYearOnly(endText) {
				end = end.AddDate(1, 0, 0)
				if end.After(p.now()) && !start.After(p.now()) {
					end = p.now()
				}
			}
			if !end.After(start) {
				continue
			}
			pos.End = &end
		}
		if start.After(p.now()) {
			continue
		}

		rest := line[:loc[0]] + " " + line[loc[1]:]
		pos.Title, pos.Company = splitTitleCompany(rest)
		out = append(out, pos)
	}
	return out
}

func isYearOnly(s string) bool {
	s = strings.TrimSpace(s)
	_, err := strconv.Atoi(s)
	return err == nil && len(s) == 4
}

func isOngoing(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "present", "current", "now", "today":
		return true
	}
	return false
}

// parseDate accepts "Jan 2019", "January 2019", "03/2017" and "2018"; year-only dates start in January
func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if m := monthYear.FindStringSubmatch(s); m != nil {
		month := monthNumber(m[1])
		year, _ := strconv.Atoi(m[2])
		return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC), month != 0
	}
	if m := numericMonth.FindStringSubmatch(s); m != nil {
		month, _ := strconv.Atoi(m[1])
		year, _ := strconv.Atoi(m[2])
		if month < 1 || month > 12 {
			return time.Time{}, false
		}
		return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC), true
	}
	if year, err := strconv.Atoi(s); err == nil && len(s) == 4 {
		return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC), true
	}
	return time.Time{}, false
}

func monthNumber(name string) time.Month {
	name = strings.ToLower(name)
	if len(name) < 3 {
		return 0
	}
	for m := time.January; m <= time.December; m++ {
		if strings.HasPrefix(strings.ToLower(m.String()), name[:3]) {
			return m
		}
	}
	return 0
}

func splitTitleCompany(s string) (string, string) {
	s = strings.Trim(strings.Join(strings.Fields(s), " "), " ,|-–—():")
	if s == "" {
		return "", ""
	}
	for _, sep := range []string{" at ", " @ ", " | ", ", ", " - ", " – ", " — "} {
		if title, company, ok := strings.Cut(s, sep); ok {
			return strings.Trim(title, " ,|-–—"), strings.Trim(company, " ,|-–—")
		}
	}
	return s, ""
}

// mergedYears sums the position intervals after merging overlaps
func mergedYears(positions []models.Position, now time.Time) float64 {
	if len(positions) == 0 {
		return 0
	}
	type span struct{ start, end time.Time }
	spans := make([]span, 0, len(positions))
	for _, p := range positions {
		end := now
		if p.End != nil {
			end = *p.End
		}
		if end.After(p.Start) {
			spans = append(spans, span{p.Start, end})
		}
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].start.Before(spans[j].start) })

	var total time.Duration
	var cur span
	for i, s := range spans {
		if i == 0 {
			cur = s
			continue
		}
		if !s.start.After(cur.end) {
			if s.end.After(cur.end) {
				cur.end = s.end
			}
			continue
		}
		total += cur.end.Sub(cur.start)
		cur = s
	}
	if len(spans) > 0 {
		total += cur.end.Sub(cur.start)
	}
	return total.Hours() / 24 / 365.25
}
