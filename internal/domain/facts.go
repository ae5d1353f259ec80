package domain

// Typed fact sets, one per HAI type. The rules engines depend on exact
// field identity, so these are named fields rather than a key-value map.

// CAUTIFacts are the clinical facts the CAUTI decision tree consumes.
type CAUTIFacts struct {
	Fever                        bool `json:"fever"`
	SuprapubicTenderness         bool `json:"suprapubic_tenderness"`
	CostovertebralPain           bool `json:"costovertebral_pain"`
	Urgency                      bool `json:"urgency"`
	Frequency                    bool `json:"frequency"`
	Dysuria                      bool `json:"dysuria"`
	AlternateSource              bool `json:"alternate_source"`
	RecentUrologicProcedure      bool `json:"recent_urologic_procedure"`
	CatheterRemovedBeforeCulture bool `json:"catheter_removed_before_culture"`
}

// AnySymptom reports whether at least one NHSN UTI symptom is documented.
func (f *CAUTIFacts) AnySymptom() bool {
	return f.Fever || f.SuprapubicTenderness || f.CostovertebralPain ||
		f.Urgency || f.Frequency || f.Dysuria
}

// CLABSIFacts are the clinical facts the CLABSI decision tree consumes.
type CLABSIFacts struct {
	RecognizedPathogen       bool `json:"recognized_pathogen"`
	CommonCommensal          bool `json:"common_commensal"`
	MatchingCultureCount     int  `json:"matching_culture_count"`
	Fever                    bool `json:"fever"`
	Chills                   bool `json:"chills"`
	Hypotension              bool `json:"hypotension"`
	AlternateInfectionSource bool `json:"alternate_infection_source"`
}

// AnySymptom reports whether a commensal-qualifying symptom is documented.
func (f *CLABSIFacts) AnySymptom() bool {
	return f.Fever || f.Chills || f.Hypotension
}

// VAEFacts are the clinical facts the VAE tier decision tree consumes.
// Trend criteria (PEEP/FiO2 deterioration) come from the candidate's
// detector measurements, not from notes.
type VAEFacts struct {
	AbnormalTemperature        bool `json:"abnormal_temperature"`
	AbnormalWhiteBloodCount    bool `json:"abnormal_white_blood_count"`
	NewAntimicrobialDays       int  `json:"new_antimicrobial_days"`
	PurulentSecretions         bool `json:"purulent_secretions"`
	PositiveRespiratoryCulture bool `json:"positive_respiratory_culture"`
	PositiveHistopathology     bool `json:"positive_histopathology"`
	PositiveViralOrLegionella  bool `json:"positive_viral_or_legionella"`
}

// SSIFacts are the clinical facts the SSI decision tree consumes.
type SSIFacts struct {
	PurulentDrainage      bool `json:"purulent_drainage"`
	PositiveWoundCulture  bool `json:"positive_wound_culture"`
	WoundReopened         bool `json:"wound_reopened"`
	LocalizedPain         bool `json:"localized_pain"`
	LocalizedSwelling     bool `json:"localized_swelling"`
	Erythema              bool `json:"erythema"`
	Fever                 bool `json:"fever"`
	DeepInvolvement       bool `json:"deep_involvement"`
	OrganSpaceInvolvement bool `json:"organ_space_involvement"`
	AlternateSource       bool `json:"alternate_source"`
}

// AnyLocalSign reports whether a localized infection sign is documented.
func (f *SSIFacts) AnyLocalSign() bool {
	return f.LocalizedPain || f.LocalizedSwelling || f.Erythema || f.Fever
}
