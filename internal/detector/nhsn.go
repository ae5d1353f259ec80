package detector

// NHSN operative procedure categories relevant to SSI surveillance.
// Procedure codes map to a category; categories flagged implant-window
// eligible extend the surveillance window to 90 days when an implant was
// left in place.

type nhsnCategory struct {
	Code                  string
	Name                  string
	ImplantWindowEligible bool
}

// procedureCategories maps procedure codes to NHSN operative categories.
// The table covers the categories this service surveils; unknown codes
// are not surveillance-eligible.
var procedureCategories = map[string]nhsnCategory{
	// Orthopedic, implant-window eligible
	"27130": {Code: "HPRO", Name: "Hip prosthesis", ImplantWindowEligible: true},
	"27447": {Code: "KPRO", Name: "Knee prosthesis", ImplantWindowEligible: true},
	"22612": {Code: "FUSN", Name: "Spinal fusion", ImplantWindowEligible: true},
	"22630": {Code: "FUSN", Name: "Spinal fusion", ImplantWindowEligible: true},

	// Cardiac, implant-window eligible
	"33533": {Code: "CBGB", Name: "Coronary artery bypass graft", ImplantWindowEligible: true},
	"33405": {Code: "CARD", Name: "Cardiac surgery", ImplantWindowEligible: true},
	"33208": {Code: "PACE", Name: "Pacemaker surgery", ImplantWindowEligible: true},

	// Neuro, implant-window eligible
	"62223": {Code: "VSHN", Name: "Ventricular shunt", ImplantWindowEligible: true},
	"61510": {Code: "CRAN", Name: "Craniotomy", ImplantWindowEligible: false},

	// Abdominal, 30-day window
	"44140": {Code: "COLO", Name: "Colon surgery", ImplantWindowEligible: false},
	"44204": {Code: "COLO", Name: "Colon surgery", ImplantWindowEligible: false},
	"47562": {Code: "CHOL", Name: "Gallbladder surgery", ImplantWindowEligible: false},
	"44950": {Code: "APPY", Name: "Appendix surgery", ImplantWindowEligible: false},
	"58150": {Code: "HYST", Name: "Abdominal hysterectomy", ImplantWindowEligible: false},
	"59510": {Code: "CSEC", Name: "Cesarean section", ImplantWindowEligible: false},
	"49505": {Code: "HER", Name: "Herniorrhaphy", ImplantWindowEligible: true},
}

// lookupProcedureCategory resolves a procedure code to its NHSN category.
func lookupProcedureCategory(procedureCode string) (nhsnCategory, bool) {
	cat, ok := procedureCategories[procedureCode]
	return cat, ok
}
