package job

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	fieldwork "github.com/garagescholars/garage-tech-stack-sub001"
	"github.com/garagescholars/garage-tech-stack-sub001/id"
)

// LeadInput is the payload of lead intake.
type LeadInput struct {
	ClientName       string   `json:"client_name" validate:"required,max=200"`
	Phone            string   `json:"phone,omitempty" validate:"omitempty,max=40"`
	Email            string   `json:"email,omitempty" validate:"omitempty,email"`
	Address          string   `json:"address,omitempty" validate:"max=500"`
	Package          string   `json:"package,omitempty" validate:"max=100"`
	Notes            string   `json:"notes,omitempty" validate:"max=4000"`
	IntakePhotoPaths []string `json:"intake_photo_paths,omitempty" validate:"dive,required"`
}

// LineItem is one structured product, shelving or add-on selection.
type LineItem struct {
	Name     string `json:"name" validate:"required"`
	Quantity int    `json:"quantity" validate:"gte=1"`
	Size     string `json:"size,omitempty"`
}

// String renders the display form frozen onto the job, e.g.
// "2 x Overhead rack (4x8)".
func (li LineItem) String() string {
	s := fmt.Sprintf("%d x %s", li.Quantity, li.Name)
	if li.Size != "" {
		s += " (" + li.Size + ")"
	}
	return s
}

// ConversionForm carries the fields captured when a lead is converted.
// They are persisted by the generate action.
type ConversionForm struct {
	ScheduledFor       time.Time  `json:"scheduled_for" validate:"required"`
	TimeWindow         string     `json:"time_window,omitempty" validate:"max=100"`
	Package            string     `json:"package" validate:"required"`
	ProductSelections  []LineItem `json:"product_selections,omitempty" validate:"dive"`
	ShelvingSelections []LineItem `json:"shelving_selections,omitempty" validate:"dive"`
	AddOns             []LineItem `json:"add_ons,omitempty" validate:"dive"`
	Payout             int64      `json:"payout" validate:"gte=0"`
	ClientPrice        int64      `json:"client_price" validate:"gte=0"`
	AccessNotes        string     `json:"access_notes,omitempty" validate:"max=4000"`
	AdminNotes         string     `json:"admin_notes,omitempty" validate:"max=4000"`
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks the lead payload. Violations surface as guard errors
// naming the first offending field.
func (in LeadInput) Validate() error {
	return validationError("intake", validatorInstance().Struct(in))
}

// Validate checks the conversion form.
func (f ConversionForm) Validate() error {
	return validationError(string(ActionGenerate), validatorInstance().Struct(f))
}

func validationError(action string, err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fieldwork.NewGuardError(action, "field:"+fe.Namespace(), "",
			fmt.Sprintf("%s failed %q validation", fe.Field(), fe.Tag()))
	}
	return fieldwork.NewGuardError(action, "payload", "", err.Error())
}

// NewLead builds a LEAD job from validated intake input.
func NewLead(in LeadInput, now time.Time) (*Job, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	return &Job{
		Entity:           fieldwork.Entity{CreatedAt: now, UpdatedAt: now},
		ID:               id.NewJobID(),
		Status:           StateLead,
		ClientName:       strings.TrimSpace(in.ClientName),
		ClientPhone:      in.Phone,
		ClientEmail:      in.Email,
		Address:          in.Address,
		Package:          in.Package,
		LeadNotes:        in.Notes,
		IntakePhotoPaths: cloneSlice(in.IntakePhotoPaths),
	}, nil
}

func renderLineItems(items []LineItem) []string {
	if len(items) == 0 {
		return nil
	}
	out := make([]string, len(items))
	for i, li := range items {
		out[i] = li.String()
	}
	return out
}
