package session

// Record is one scheduled interview as returned by the session API.
// Field names follow the API's JSON, which embeds the referenced documents.
type Record struct {
	ID        string          `json:"_id"`
	Candidate *Candidate      `json:"userId"`
	Agent     *InterviewAgent `json:"interviewAgentId"`
	Resume    *Resume         `json:"resumeId"`
	Rounds    string          `json:"rounds"`
	IsActive  bool            `json:"isActive"`
	Timestamp string          `json:"timestamp"`
	CreatedAt string          `json:"createdAt"`
	UpdatedAt string          `json:"updatedAt"`
}

// Candidate is the interviewee.
type Candidate struct {
	ID       string `json:"_id"`
	FullName string `json:"fullName"`
	Email    string `json:"email"`
}

// InterviewAgent holds the company/role/tone parameters for a session.
type InterviewAgent struct {
	ID            string `json:"_id"`
	CompanyName   string `json:"companyName"`
	Prompt        string `json:"prompt"`
	Behavior      string `json:"interviewBehavior"`
	Role          string `json:"role"`
	InterviewType string `json:"interviewType"`
}

// Resume wraps the parsed résumé document. Parsed is nil when the upload
// was never processed.
type Resume struct {
	ID     string        `json:"_id"`
	Parsed *ParsedResume `json:"parsedData"`
}

// ParsedResume is the structured résumé extracted at upload time.
type ParsedResume struct {
	FullName        string           `json:"fullName"`
	CurrentJobTitle string           `json:"currentJobTitle"`
	Email           string           `json:"email"`
	Phone           string           `json:"phone"`
	Location        string           `json:"location"`
	YearsExperience float64          `json:"totalYearsExperience"`
	LinkedIn        string           `json:"linkedin"`
	Website         string           `json:"website"`
	Summary         string           `json:"summary"`
	Education       []Education      `json:"education"`
	Skills          []string         `json:"skills"`
	WorkExperience  []WorkExperience `json:"workExperience"`
	Projects        []Project        `json:"projects"`
	Certifications  []string         `json:"certifications"`
	Languages       []string         `json:"languages"`
	AdditionalInfo  []string         `json:"additionalInfo"`
}

// Education is one degree or course of study.
type Education struct {
	ID          string `json:"_id"`
	Degree      string `json:"degree"`
	Institution string `json:"institution"`
}

// WorkExperience is one position held by the candidate.
type WorkExperience struct {
	ID                 string   `json:"_id"`
	Company            string   `json:"company"`
	Role               string   `json:"role"`
	Duration           string   `json:"duration"`
	Location           string   `json:"location"`
	Description        []string `json:"description"`
	HiddenDescriptions []string `json:"hiddenDescriptions"`
}

// Project is a résumé project entry.
type Project struct {
	ID           string   `json:"_id"`
	Description  string   `json:"description"`
	Technologies []string `json:"technologies"`
	Link         string   `json:"link"`
}

// ParsedResume returns the parsed résumé or nil when none is attached.
func (r *Record) ParsedResume() *ParsedResume {
	if r == nil || r.Resume == nil {
		return nil
	}
	return r.Resume.Parsed
}
