package domain

// Question is one extracted exam question. Composite questions carry their
// numbered sub-items in SubQuestions; leaf questions have an empty list.
type Question struct {
	QuestionID      string        `json:"question_id"`
	Grade           string        `json:"grade"`
	Volume          string        `json:"volume"`
	Chapter         string        `json:"chapter"`
	Section         string        `json:"section"`
	Subject         string        `json:"subject"`
	QuestionContent string        `json:"question_content"`
	QuestionOptions []string      `json:"question_options"`
	QuestionImages  []string      `json:"question_images"`
	QuestionTables  []string      `json:"question_tables"`
	AnalysisImages  []string      `json:"analysis_images"`
	Difficulty      string        `json:"difficulty"`
	QuestionType    string        `json:"question_type"`
	Source          string        `json:"source"`
	KnowledgePoints []string      `json:"knowledge_points"`
	SubQuestions    []SubQuestion `json:"sub_questions"`
	Answer          string        `json:"answer"`
	Resolve         string        `json:"resolve"`
	SourceYear      string        `json:"source_year"`
	SourceProvince  string        `json:"source_province"`
}

// SubQuestion is a numbered sub-item of a composite question.
type SubQuestion struct {
	QuestionID   string   `json:"question_id"`
	Question     string   `json:"question"`
	Image        string   `json:"image"`
	QuestionType string   `json:"question_type"`
	Option       []string `json:"option"`
}

// FieldKind is the JSON shape of an empty schema value.
type FieldKind int

const (
	FieldString FieldKind = iota
	FieldList
)

// SchemaField is one key of the Question schema with the shape of its empty value.
type SchemaField struct {
	Key  string
	Kind FieldKind
}

// QuestionKeys lists the question fields in template order.
var QuestionKeys = []SchemaField{
	{"question_id", FieldString},
	{"grade", FieldString},
	{"volume", FieldString},
	{"chapter", FieldString},
	{"section", FieldString},
	{"subject", FieldString},
	{"question_content", FieldString},
	{"question_options", FieldList},
	{"question_images", FieldList},
	{"question_tables", FieldList},
	{"analysis_images", FieldList},
	{"difficulty", FieldString},
	{"question_type", FieldString},
	{"source", FieldString},
	{"knowledge_points", FieldList},
	{"sub_questions", FieldList},
	{"answer", FieldString},
	{"resolve", FieldString},
	{"source_year", FieldString},
	{"source_province", FieldString},
}

// SubQuestionKeys lists the sub-question fields in template order.
var SubQuestionKeys = []SchemaField{
	{"question_id", FieldString},
	{"question", FieldString},
	{"image", FieldString},
	{"question_type", FieldString},
	{"option", FieldList},
}

// Classification metadata keys filled by the labeling utility.
const (
	KeyGrade   = "grade"
	KeyVolume  = "volume"
	KeyChapter = "chapter"
	KeySection = "section"
	KeySubject = "subject"

	KeyQuestionImages = "question_images"
	KeyAnalysisImages = "analysis_images"
	KeySubQuestions   = "sub_questions"
)

// NewQuestion returns a question with every list initialized, so that it
// serializes with [] rather than null.
func NewQuestion() Question {
	return Question{
		QuestionOptions: []string{},
		QuestionImages:  []string{},
		QuestionTables:  []string{},
		AnalysisImages:  []string{},
		KnowledgePoints: []string{},
		SubQuestions:    []SubQuestion{},
	}
}
