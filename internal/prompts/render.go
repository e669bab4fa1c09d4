package prompts

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"runtime/debug"
	"strconv"
	"strings"
	"text/template"

	"github.com/Himanshu7614/voicegrow-be/internal/session"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// ErrMissingData means the session lacks the candidate or the interview agent.
var ErrMissingData = errors.New("session is missing required data")

// Neutral phrases used wherever résumé data is absent.
const (
	noSkillsFocus   = "their technical background"
	noSkillsKey     = "their technical skills"
	noCompanies     = "their previous companies"
	noCurrentCo     = "their current company"
	noInstitution   = "their institution"
	noYears         = "professional"
	notSpecified    = "Not specified"
	notListed       = "Not listed"
	noInstructions  = "No additional instructions were provided. Run a well-rounded interview for the role."
	defaultTone     = "standard professional"
	defaultRounds   = "standard"
	defaultCompany  = "the company"
	defaultCandName = "the candidate"
	defaultEmail    = "email not provided"
)

// section is one named template in the rendered prompt. when reports
// whether the section applies; nil means always.
type section struct {
	name string
	when func(*view) bool
}

// sections is the fixed output order.
var sections = []section{
	{name: "header"},
	{name: "resume", when: func(v *view) bool { return v.Resume != nil }},
	{name: "instructions"},
	{name: "guidelines"},
	{name: "questions"},
	{name: "closing"},
}

// SectionNames lists the prompt sections in render order.
func SectionNames() []string {
	names := make([]string, len(sections))
	for i, s := range sections {
		names[i] = s.name
	}
	return names
}

// Renderer turns a session record into the interviewer system prompt.
// It is safe for concurrent use once constructed.
type Renderer struct {
	cfg   Config
	tmpls map[string]*template.Template
}

type rendererOptions struct {
	overrides fs.FS
}

// Option customises a Renderer.
type Option func(*rendererOptions)

// WithTemplateDir replaces built-in section templates with any <section>.tmpl
// files found in dir.
func WithTemplateDir(dir string) Option {
	return func(o *rendererOptions) {
		if dir != "" {
			o.overrides = os.DirFS(dir)
		}
	}
}

// WithTemplateFS is WithTemplateDir for an arbitrary filesystem.
func WithTemplateFS(fsys fs.FS) Option {
	return func(o *rendererOptions) { o.overrides = fsys }
}

// NewRenderer parses every section template, preferring overrides.
func NewRenderer(cfg Config, opts ...Option) (*Renderer, error) {
	var o rendererOptions
	for _, opt := range opts {
		opt(&o)
	}

	r := &Renderer{cfg: cfg, tmpls: make(map[string]*template.Template, len(sections))}
	for _, s := range sections {
		src, origin, err := readSection(o.overrides, s.name)
		if err != nil {
			return nil, err
		}
		tmpl, err := template.New(s.name).Option("missingkey=error").Parse(string(src))
		if err != nil {
			return nil, fmt.Errorf("parse %s template (%s): %w", s.name, origin, err)
		}
		if origin != "embedded" {
			slog.Info("prompt section overridden", "section", s.name, "source", origin)
		}
		r.tmpls[s.name] = tmpl
	}
	return r, nil
}

func readSection(overrides fs.FS, name string) ([]byte, string, error) {
	file := name + ".tmpl"
	if overrides != nil {
		data, err := fs.ReadFile(overrides, file)
		if err == nil {
			return data, file, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, "", fmt.Errorf("read %s override: %w", name, err)
		}
	}
	data, err := templateFS.ReadFile("templates/" + file)
	if err != nil {
		return nil, "", fmt.Errorf("read %s template: %w", name, err)
	}
	return data, "embedded", nil
}

// Render builds the full prompt. It fails with ErrMissingData when the
// candidate or interview agent is absent, or with a template error.
func (r *Renderer) Render(rec *session.Record) (string, error) {
	v, err := r.view(rec)
	if err != nil {
		return "", err
	}

	parts := make([]string, 0, len(sections))
	for _, s := range sections {
		if s.when != nil && !s.when(v) {
			continue
		}
		out, err := r.execute(s.name, v)
		if err != nil {
			return "", err
		}
		parts = append(parts, out)
	}
	return strings.Join(parts, "\n\n"), nil
}

// RenderOr never fails: any error or panic is logged and fallback returned.
func (r *Renderer) RenderOr(rec *session.Record, fallback string) (prompt string) {
	defer func() {
		if p := recover(); p != nil {
			slog.Error("prompt render panic", "session_id", recordID(rec), "panic", p, "stack", string(debug.Stack()))
			prompt = fallback
		}
	}()

	out, err := r.Render(rec)
	if err != nil {
		slog.Error("render prompt from session", "session_id", recordID(rec), "error", err)
		return fallback
	}
	return out
}

// Section renders a single named section. Sections that do not apply to
// rec render as the empty string.
func (r *Renderer) Section(name string, rec *session.Record) (string, error) {
	v, err := r.view(rec)
	if err != nil {
		return "", err
	}
	for _, s := range sections {
		if s.name != name {
			continue
		}
		if s.when != nil && !s.when(v) {
			return "", nil
		}
		return r.execute(name, v)
	}
	return "", fmt.Errorf("unknown prompt section %q", name)
}

func (r *Renderer) execute(name string, v *view) (string, error) {
	var buf bytes.Buffer
	if err := r.tmpls[name].Execute(&buf, v); err != nil {
		return "", fmt.Errorf("execute %s template: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

func recordID(rec *session.Record) string {
	if rec == nil {
		return ""
	}
	return rec.ID
}

// view is the template data. Every field is pre-resolved so templates never
// see nil values.
type view struct {
	Persona        string
	Company        string
	Role           string
	CandidateName  string
	CandidateEmail string
	Rounds         string
	InterviewType  string
	Behavior       string
	Tone           string
	AgentID        string
	Instructions   string

	RoleGuidance      string
	InterviewGuidance string

	Resume *resumeView

	FocusSkills    string
	KeySkills      string
	Companies      string
	CurrentCompany string
	Institution    string
	Years          string

	MinQuestions int
	MaxQuestions int
}

type resumeView struct {
	JobTitle       string
	Years          string
	Location       string
	Phone          string
	Languages      string
	Certifications string
	Summary        string
	Skills         string
	Education      []string
	Experience     []experienceView
	Projects       []projectView
}

type experienceView struct {
	Company      string
	Role         string
	Duration     string
	Location     string
	Achievements []string
}

type projectView struct {
	Description  string
	Technologies string
	Link         string
}

func (r *Renderer) view(rec *session.Record) (*view, error) {
	if rec == nil {
		return nil, fmt.Errorf("%w: no session record", ErrMissingData)
	}
	if rec.Candidate == nil {
		return nil, fmt.Errorf("%w: candidate (session %s)", ErrMissingData, rec.ID)
	}
	if rec.Agent == nil {
		return nil, fmt.Errorf("%w: interview agent (session %s)", ErrMissingData, rec.ID)
	}
	agent := rec.Agent

	typeInput := firstNonBlank(agent.InterviewType, rec.Rounds)
	v := &view{
		Persona:        r.cfg.Persona,
		Company:        or(agent.CompanyName, defaultCompany),
		Role:           or(agent.Role, r.cfg.DefaultRole),
		CandidateName:  or(rec.Candidate.FullName, defaultCandName),
		CandidateEmail: or(rec.Candidate.Email, defaultEmail),
		Rounds:         or(rec.Rounds, defaultRounds),
		InterviewType:  or(typeInput, defaultRounds),
		Behavior:       or(agent.Behavior, r.cfg.DefaultBehavior),
		Tone:           or(strings.ToLower(strings.TrimSpace(agent.Behavior)), defaultTone),
		AgentID:        strings.TrimSpace(agent.ID),
		Instructions:   or(agent.Prompt, noInstructions),

		RoleGuidance:      r.cfg.Role.GuidanceFor(agent.Role),
		InterviewGuidance: r.cfg.InterviewType.GuidanceFor(typeInput),

		FocusSkills:    noSkillsFocus,
		KeySkills:      noSkillsKey,
		Companies:      noCompanies,
		CurrentCompany: noCurrentCo,
		Institution:    noInstitution,
		Years:          noYears,

		MinQuestions: r.cfg.MinQuestions,
		MaxQuestions: r.cfg.MaxQuestions,
	}

	if pr := rec.ParsedResume(); pr != nil {
		v.Resume = newResumeView(pr)
		fillResumeReferences(v, pr)
	}
	return v, nil
}

func newResumeView(pr *session.ParsedResume) *resumeView {
	rv := &resumeView{
		JobTitle:       or(pr.CurrentJobTitle, notSpecified),
		Years:          formatYears(pr.YearsExperience),
		Location:       strings.TrimSpace(pr.Location),
		Phone:          strings.TrimSpace(pr.Phone),
		Languages:      joinNonBlank(pr.Languages, len(pr.Languages)),
		Certifications: joinNonBlank(pr.Certifications, len(pr.Certifications)),
		Summary:        or(pr.Summary, notSpecified),
		Skills:         or(joinNonBlank(pr.Skills, len(pr.Skills)), notListed),
	}

	for _, edu := range pr.Education {
		if line := educationLine(edu); line != "" {
			rv.Education = append(rv.Education, line)
		}
	}
	for _, exp := range pr.WorkExperience {
		ev := experienceView{
			Company:  or(exp.Company, notSpecified),
			Role:     or(exp.Role, notSpecified),
			Duration: or(exp.Duration, notSpecified),
			Location: or(exp.Location, notSpecified),
		}
		for _, d := range exp.Description {
			if d = strings.TrimSpace(d); d != "" {
				ev.Achievements = append(ev.Achievements, d)
			}
		}
		rv.Experience = append(rv.Experience, ev)
	}
	for _, p := range pr.Projects {
		rv.Projects = append(rv.Projects, projectView{
			Description:  or(p.Description, notSpecified),
			Technologies: or(joinNonBlank(p.Technologies, len(p.Technologies)), notSpecified),
			Link:         strings.TrimSpace(p.Link),
		})
	}
	return rv
}

// fillResumeReferences replaces the neutral phrases with résumé data where
// the résumé actually has it.
func fillResumeReferences(v *view, pr *session.ParsedResume) {
	if s := joinNonBlank(pr.Skills, 5); s != "" {
		v.FocusSkills = s
	}
	if s := joinNonBlank(pr.Skills, 3); s != "" {
		v.KeySkills = s
	}

	companies := make([]string, 0, len(pr.WorkExperience))
	for _, exp := range pr.WorkExperience {
		companies = append(companies, exp.Company)
	}
	if s := joinNonBlank(companies, len(companies)); s != "" {
		v.Companies = s
	}
	if len(pr.WorkExperience) > 0 {
		v.CurrentCompany = or(pr.WorkExperience[0].Company, noCurrentCo)
	}
	if len(pr.Education) > 0 {
		v.Institution = or(pr.Education[0].Institution, noInstitution)
	}
	if pr.YearsExperience > 0 {
		v.Years = formatYears(pr.YearsExperience)
	}
}

func educationLine(edu session.Education) string {
	degree := strings.TrimSpace(edu.Degree)
	inst := strings.TrimSpace(edu.Institution)
	switch {
	case degree != "" && inst != "":
		return degree + " from " + inst
	case degree != "":
		return degree
	default:
		return inst
	}
}

func formatYears(y float64) string {
	return strconv.FormatFloat(y, 'f', -1, 64)
}

// joinNonBlank joins up to limit non-blank entries with ", ".
func joinNonBlank(items []string, limit int) string {
	out := make([]string, 0, min(limit, len(items)))
	for _, it := range items {
		if len(out) == limit {
			break
		}
		if it = strings.TrimSpace(it); it != "" {
			out = append(out, it)
		}
	}
	return strings.Join(out, ", ")
}

func or(s, fallback string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return fallback
}

func firstNonBlank(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
