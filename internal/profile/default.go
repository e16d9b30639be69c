package profile

// Default returns the built-in candidate profile. Every call builds a fresh value,
// so callers cannot change what the next caller sees.
func Default() *Profile {
	return &Profile{
		Requirements: Requirements{
			Country:                "Canada",
			MinSalaryCAD:           45000,
			MaxSalaryCAD:           90000,
			MinExperienceYears:     0,
			MaxExperienceYears:     2,
			HighestEducation:       "Bachelors in Computer Engineering",
			SpokenLanguages:        []string{"English"},
			JobField:               []string{"software development", "web development"},
			EmploymentTypesAllowed: []string{"full-time", "internship"},
			MinEmployeesInCompany:  50,
		},
		Preferences: Preferences{
			DesiredSalaryCAD:         65000,
			PreferredWorkMode:        []string{"remote", "hybrid"},
			PreferredLocations:       []string{"Vancouver"},
			ExperienceRangePreferred: []int{0, 1},
			RolePriorityOrder:        []string{"backend", "frontend", "fullstack", "cloud", "data", "other"},
			TechStack: TechStack{
				ComfortableWith: []string{"python", "sql", "fastapi", "flask", "postgres", "react", "docker"},
			},
			Company: CompanyPreferences{
				PreferredSize: []string{"large"},
			},
			PreferredSeniorityLevels: []string{"Entry", "Junior"},
		},
	}
}
