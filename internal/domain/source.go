package domain

import "time"

// EventKind distinguishes the raw event streams a detector scans.
type EventKind string

const (
	EventBloodCulture EventKind = "blood_culture"
	EventUrineCulture EventKind = "urine_culture"
	EventWound        EventKind = "wound_event"
	EventProcedure    EventKind = "procedure"
	EventVentilation  EventKind = "ventilation_episode"
)

// RawEvent is one record from an upstream clinical data source. Detectors
// validate each event and skip malformed ones without aborting the scan.
type RawEvent struct {
	ID             string    `json:"id"`
	Kind           EventKind `json:"kind"`
	PatientID      string    `json:"patient_id"`
	EncounterID    string    `json:"encounter_id,omitempty"`
	Time           time.Time `json:"time"`
	ColonyCountCFU int64     `json:"colony_count_cfu,omitempty"`
	OrganismCount  int       `json:"organism_count,omitempty"`
	ProcedureID    string    `json:"procedure_id,omitempty"`
	ProcedureCode  string    `json:"procedure_code,omitempty"`
}

// Validate checks the fields every detector requires.
func (e *RawEvent) Validate() error {
	if e.ID == "" {
		return NewValidationError("id", "missing event id")
	}
	if e.PatientID == "" {
		return NewValidationError("patient_id", "missing patient reference")
	}
	if e.Time.IsZero() {
		return NewValidationError("time", "missing event time")
	}
	return nil
}

// DeviceEpisode is one placement interval for an invasive device.
// RemovedAt is nil while the device is still in place.
type DeviceEpisode struct {
	PatientID  string     `json:"patient_id"`
	InsertedAt time.Time  `json:"inserted_at"`
	RemovedAt  *time.Time `json:"removed_at,omitempty"`
}

// VentilatorDay is one calendar day of ventilator settings, reduced to the
// daily minimums the VAE algorithm operates on.
type VentilatorDay struct {
	Date    time.Time `json:"date"`
	MinFiO2 float64   `json:"min_fio2"` // percent, 21-100
	MinPEEP float64   `json:"min_peep"` // cmH2O
}

// Procedure is one operative procedure relevant to SSI surveillance.
type Procedure struct {
	ID             string    `json:"id"`
	PatientID      string    `json:"patient_id"`
	Code           string    `json:"code"`
	PerformedAt    time.Time `json:"performed_at"`
	ImplantPresent bool      `json:"implant_present"`
}
