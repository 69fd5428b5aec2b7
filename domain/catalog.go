package domain

// University is a browsable institution.
type University struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Country  string `json:"country,omitempty"`
	City     string `json:"city,omitempty"`
	Website  string `json:"website,omitempty"`
	Ranking  int    `json:"ranking,omitempty"`
	Summary  string `json:"description,omitempty"`
	LogoURL  string `json:"logo,omitempty"`
	Verified bool   `json:"is_verified,omitempty"`
}

// Course is a programme offered by a university.
type Course struct {
	ID           int64   `json:"id"`
	Name         string  `json:"name"`
	UniversityID int64   `json:"university"`
	Level        string  `json:"level,omitempty"`
	Field        string  `json:"field,omitempty"`
	DurationYrs  float64 `json:"duration_years,omitempty"`
	TuitionFee   float64 `json:"tuition_fee,omitempty"`
	Currency     string  `json:"currency,omitempty"`
	Language     string  `json:"language,omitempty"`
	Summary      string  `json:"description,omitempty"`
}

// CourseFilter narrows a course listing.
type CourseFilter struct {
	UniversityID int64
	Level        string
	Field        string
	Search       string
}

// Feedback is a message submitted by a visitor.
type Feedback struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Subject string `json:"subject,omitempty"`
	Message string `json:"message"`
	Rating  int    `json:"rating,omitempty"`
}

// ChatReply is the AI assistant answer to a chat message.
type ChatReply struct {
	Reply          string `json:"reply"`
	ConversationID string `json:"conversation_id,omitempty"`
}
