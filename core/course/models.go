package course

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/baraza/core"
)

type ChoiceKey string

const (
	ChoiceA ChoiceKey = "A"
	ChoiceB ChoiceKey = "B"
	ChoiceC ChoiceKey = "C"
	ChoiceD ChoiceKey = "D"
)

var (
	ChoiceKeys = []ChoiceKey{ChoiceA, ChoiceB, ChoiceC, ChoiceD}

	errOneCorrectChoice = errors.New("Exactly one choice must be marked as correct")
)

func (k ChoiceKey) Valid() bool {
	switch k {
	case ChoiceA, ChoiceB, ChoiceC, ChoiceD:
		return true
	}
	return false
}

type (
	Course struct {
		ID          string    `json:"id"`
		TeacherID   string    `json:"teacher_id"`
		Title       string    `json:"title"`
		Description string    `json:"description"`
		CreatedAt   time.Time `json:"created_at"`
	}

	Choice struct {
		Text      string `json:"text" validate:"required,notblank"`
		IsCorrect bool   `json:"is_correct"`
	}

	// Choices are the four options of a question. Exactly one is correct.
	Choices struct {
		A Choice `json:"A"`
		B Choice `json:"B"`
		C Choice `json:"C"`
		D Choice `json:"D"`
	}

	Question struct {
		ID          string    `json:"id"`
		CourseID    string    `json:"course_id"`
		Title       string    `json:"title"`
		Prompt      string    `json:"prompt"`
		Context     string    `json:"context,omitempty"`
		ConceptTags []string  `json:"concept_tags"`
		Choices     Choices   `json:"choices"`
		CreatedAt   time.Time `json:"created_at"`
		UpdatedAt   time.Time `json:"updated_at"`
	}

	NewCourse struct {
		Title       string `json:"title" validate:"required,notblank,max=200"`
		Description string `json:"description"`
	}

	NewQuestion struct {
		Title       string   `json:"title" validate:"required,notblank,max=200"`
		Prompt      string   `json:"prompt" validate:"required,notblank"`
		Context     string   `json:"context"`
		ConceptTags []string `json:"concept_tags" validate:"dive,max=50"`
		Choices     Choices  `json:"choices"`
	}

	UpdateCourse   NewCourse
	UpdateQuestion NewQuestion
)

func (c Choices) Get(key ChoiceKey) (Choice, bool) {
	switch key {
	case ChoiceA:
		return c.A, true
	case ChoiceB:
		return c.B, true
	case ChoiceC:
		return c.C, true
	case ChoiceD:
		return c.D, true
	}
	return Choice{}, false
}

// Public returns the question without its answer key, as shown to students.
func (q Question) Public() Question {
	q.Choices.A.IsCorrect = false
	q.Choices.B.IsCorrect = false
	q.Choices.C.IsCorrect = false
	q.Choices.D.IsCorrect = false
	return q
}

// Correct returns the key of the correct choice.
func (c Choices) Correct() (ChoiceKey, bool) {
	for _, key := range ChoiceKeys {
		if ch, _ := c.Get(key); ch.IsCorrect {
			return key, true
		}
	}
	return "", false
}

// Check cleans choice texts and enforces exactly one correct choice.
func (c *Choices) Check() error {
	c.A.Text = core.CleanString(c.A.Text)
	c.B.Text = core.CleanString(c.B.Text)
	c.C.Text = core.CleanString(c.C.Text)
	c.D.Text = core.CleanString(c.D.Text)

	var correct int
	for _, key := range ChoiceKeys {
		if ch, _ := c.Get(key); ch.IsCorrect {
			correct++
		}
	}
	if correct != 1 {
		return core.NewValidationError(errOneCorrectChoice, core.FieldError{Field: "choices", Error: errOneCorrectChoice.Error()})
	}
	return nil
}

func (nc *NewCourse) Validate(validate *validator.Validate) error {
	nc.Title = core.CleanString(nc.Title)
	nc.Description = core.CleanString(nc.Description)
	return validate.Struct(nc)
}

func (uc *UpdateCourse) Validate(validate *validator.Validate) error {
	return (*NewCourse)(uc).Validate(validate)
}

func (nq *NewQuestion) Validate(validate *validator.Validate) error {
	nq.Title = core.CleanString(nq.Title)
	nq.Prompt = core.CleanString(nq.Prompt)
	nq.Context = core.CleanString(nq.Context)
	nq.ConceptTags = core.CleanTags(nq.ConceptTags)
	if err := validate.Struct(nq); err != nil {
		return err
	}
	return nq.Choices.Check()
}

func (uq *UpdateQuestion) Validate(validate *validator.Validate) error {
	return (*NewQuestion)(uq).Validate(validate)
}
