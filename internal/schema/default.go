package schema

// Default returns the job posting schema used by the extraction stage.
func Default() *Schema {
	return MustNew(
		StringField("title"),
		StringField("company_name"),
		StringField("location"),
		StringField("country_hint"),
		StringField("remote"),
		StringField("employment_type"),
		StringField("salary_text"),
		NumberField("salary_min_cad"),
		NumberField("salary_max_cad"),
		StringField("experience_required_text"),
		NumberField("experience_years_min"),
		NumberField("experience_years_max"),
		ListField("spoken_languages"),
		ListField("programming_languages"),
		ListField("required_skills"),
		ListField("preferred_skills"),
		ListField("responsibilities"),
		ListField("qualifications"),
		StringField("min_education"),
		StringField("seniority_level"),
		StringField("company_size"),
		StringField("posting_date"),
		StringField("closing_date"),
		StringField("application_instructions"),
		StringField("job_field"),
	)
}
