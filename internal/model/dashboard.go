package model

// Candidate is the profile shown on the dashboard and palette.
type Candidate struct {
	Name       string `json:"name"`
	RollNumber string `json:"roll_number"`
}

// ExamRules are shown on the instructions screen before starting.
var ExamRules = []string{
	"The clock will be set at the server. The countdown timer in the top right corner of screen will display the remaining time available for you to complete the examination.",
	"When the timer reaches zero, the examination will end by itself. You will not be required to end or submit your examination.",
	"The Question Palette displayed on the right side of screen will show the status of each question.",
	"You can click on the '>' arrow to maximize the question window.",
	"Click on the question number on the Question Palette to go to that question directly.",
}

// Dashboard is the selection/start screen payload.
type Dashboard struct {
	Candidate       Candidate  `json:"candidate"`
	ExamTypes       []ExamType `json:"exam_types"`
	Subjects        []Subject  `json:"subjects"`
	QuestionCount   int        `json:"question_count"`
	DurationSeconds int        `json:"duration_seconds"`
	MarkingScheme   string     `json:"marking_scheme"`
	Rules           []string   `json:"rules"`
}
