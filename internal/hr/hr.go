// Package hr names the six HR job-change datasets, their keys and the
// literal recoding tables applied during cleaning.
package hr

// Dataset names. They double as sink table names.
const (
	Enrollee             = "enrollee"
	Education            = "enrollies_education"
	WorkExperience       = "work_experience"
	TrainingHours        = "training_hours"
	Employment           = "employment"
	CityDevelopmentIndex = "city_development_index"
)

// Key columns.
const (
	EnrolleeID = "enrollee_id"
	City       = "city"
	CityIndex  = "City" // key column as published by the city index page
)

// Columns touched by the recipes.
const (
	FullName            = "full_name"
	Gender              = "gender"
	EnrolledUniversity  = "enrolled_university"
	EducationLevel      = "education_level"
	MajorDiscipline     = "major_discipline"
	Experience          = "experience"
	CompanyType         = "company_type"
	CompanySize         = "company_size"
	CompanySizeCategory = "company_size_category"
	LastNewJob          = "last_new_job"
	RelevantExperience  = "relevent_experience"
	Employed            = "employed"
)

// Datasets lists every dataset in load order.
var Datasets = []string{
	Enrollee,
	Education,
	WorkExperience,
	TrainingHours,
	CityDevelopmentIndex,
	Employment,
}

// Satellites are the datasets keyed by enrollee_id that reference Enrollee.
var Satellites = []string{Education, WorkExperience, TrainingHours, Employment}

// Defaults for missing categorical values.
var Defaults = map[string]map[string]string{
	Enrollee: {
		Gender: "Non-binary",
	},
	Education: {
		EnrolledUniversity: "no_enrollment",
		EducationLevel:     "Primary School",
		MajorDiscipline:    "STEM",
	},
	WorkExperience: {
		CompanyType: "Other",
	},
}

// ExperienceTokens maps open-ended experience ranges to sentinels.
var ExperienceTokens = map[string]int64{"<1": 0, ">20": 99}

// LastNewJobTokens maps open-ended last_new_job values to sentinels.
var LastNewJobTokens = map[string]int64{"never": 0, ">4": 5}

// MissingSentinel replaces missing experience and last_new_job values.
const MissingSentinel int64 = -1

// CompanySizeBuckets maps raw company_size ranges to ordinal labels.
var CompanySizeBuckets = map[string]string{
	"<10":       "Very Small",
	"10/49":     "Small",
	"50-99":     "Small-Medium",
	"100-500":   "Medium",
	"500-999":   "Medium-Large",
	"1000-4999": "Large",
	"5000-9999": "Very Large",
	"10000+":    "Extra Large",
}
