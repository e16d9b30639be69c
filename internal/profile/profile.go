// Package profile holds the candidate profile job postings are compared against.
package profile

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
)

// Profile is read-only reference data: hard requirements plus soft preferences.
type Profile struct {
	Requirements Requirements `json:"requirements"`
	Preferences  Preferences  `json:"preferences"`
}

// Requirements are the constraints a posting must satisfy to be eligible at all.
type Requirements struct {
	Country                string   `json:"country" validate:"required"`
	MinSalaryCAD           int      `json:"min_salary_cad" validate:"gte=0"`
	MaxSalaryCAD           int      `json:"max_salary_cad" validate:"gte=0"`
	MinExperienceYears     int      `json:"min_experience_years" validate:"gte=0"`
	MaxExperienceYears     int      `json:"max_experience_years" validate:"gte=0"`
	HighestEducation       string   `json:"highest_education" validate:"required"`
	SpokenLanguages        []string `json:"spoken_languages" validate:"required,min=1,dive,required"`
	JobField               []string `json:"job_field" validate:"required,min=1,dive,required"`
	EmploymentTypesAllowed []string `json:"employment_types_allowed" validate:"required,min=1,dive,required"`
	MinEmployeesInCompany  int      `json:"min_employees_in_company" validate:"gte=0"`
}

// Preferences separate a good match from a merely acceptable one.
type Preferences struct {
	DesiredSalaryCAD         int                `json:"desired_salary_cad" validate:"gte=0"`
	PreferredWorkMode        []string           `json:"preferred_work_mode" validate:"dive,required"`
	PreferredLocations       []string           `json:"preferred_locations" validate:"dive,required"`
	ExperienceRangePreferred []int              `json:"experience_range_preferred" validate:"omitempty,len=2,dive,gte=0"`
	RolePriorityOrder        []string           `json:"role_priority_order" validate:"dive,required"`
	TechStack                TechStack          `json:"tech_stack"`
	Company                  CompanyPreferences `json:"company"`
	PreferredSeniorityLevels []string           `json:"preferred_seniority_levels" validate:"dive,required"`
}

type TechStack struct {
	ComfortableWith []string `json:"comfortable_with" validate:"dive,required"`
}

type CompanyPreferences struct {
	PreferredSize []string `json:"preferred_size" validate:"dive,required"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

var ErrInvalidProfile = errors.New("invalid candidate profile")

// Validate checks the shape of the profile only: required values are present and
// numbers are not negative. Whether the values make sense is up to the owner.
func (p *Profile) Validate() error {
	if p == nil {
		return fmt.Errorf("%w: profile is nil", ErrInvalidProfile)
	}

	err := validate.Struct(p)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidProfile, err)
	}

	problems := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		problems = append(problems, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", ErrInvalidProfile, strings.Join(problems, "; "))
}

// FromMap decodes a profile from a generic config section keyed by the json field names.
// Unknown keys are rejected so typos do not silently fall back to zero values.
func FromMap(section map[string]any) (*Profile, error) {
	var p Profile
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &p,
		TagName:          "json",
		ErrorUnused:      true,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create profile decoder: %w", err)
	}

	if err := decoder.Decode(section); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProfile, err)
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}
