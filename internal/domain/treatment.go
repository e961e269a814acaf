package domain

import (
	"fmt"
	"strings"
)

// Treatment is the closed set of waste treatment methods.
type Treatment string

const (
	TreatmentNone           Treatment = ""
	TreatmentRecycling      Treatment = "recycling"
	TreatmentComposting     Treatment = "composting"
	TreatmentReuse          Treatment = "reuse"
	TreatmentEnergyRecovery Treatment = "energy_recovery"
	TreatmentOtherRecovery  Treatment = "other_recovery"
	TreatmentLandfill       Treatment = "landfill"
	TreatmentIncineration   Treatment = "incineration"
	TreatmentOtherDisposal  Treatment = "other_disposal"
	TreatmentUnknown        Treatment = "unknown"
)

var treatmentAliases = map[string]Treatment{
	"recycling":                            TreatmentRecycling,
	"recycled":                             TreatmentRecycling,
	"material recycling":                   TreatmentRecycling,
	"composting":                           TreatmentComposting,
	"composted":                            TreatmentComposting,
	"anaerobic digestion":                  TreatmentComposting,
	"reuse":                                TreatmentReuse,
	"re-use":                               TreatmentReuse,
	"preparation for reuse":                TreatmentReuse,
	"energy recovery":                      TreatmentEnergyRecovery,
	"incineration with energy recovery":    TreatmentEnergyRecovery,
	"waste to energy":                      TreatmentEnergyRecovery,
	"waste-to-energy":                      TreatmentEnergyRecovery,
	"other recovery":                       TreatmentOtherRecovery,
	"other recovery operations":            TreatmentOtherRecovery,
	"recovery":                             TreatmentOtherRecovery,
	"landfill":                             TreatmentLandfill,
	"landfilling":                          TreatmentLandfill,
	"incineration":                         TreatmentIncineration,
	"incineration without energy recovery": TreatmentIncineration,
	"other disposal":                       TreatmentOtherDisposal,
	"other disposal operations":            TreatmentOtherDisposal,
	"disposal":                             TreatmentOtherDisposal,
}

// ParseTreatment maps a reported treatment method onto the closed set.
// Blank input is TreatmentNone. Anything outside the vocabulary is an error
// and TreatmentUnknown.
func ParseTreatment(s string) (Treatment, error) {
	key := normalize(s)
	if key == "" {
		return TreatmentNone, nil
	}
	if t, ok := treatmentAliases[key]; ok {
		return t, nil
	}
	if t := Treatment(strings.ReplaceAll(key, " ", "_")); t.valid() {
		return t, nil
	}
	return TreatmentUnknown, fmt.Errorf("unrecognised treatment method %q", s)
}

func (t Treatment) valid() bool {
	switch t {
	case TreatmentRecycling, TreatmentComposting, TreatmentReuse, TreatmentEnergyRecovery,
		TreatmentOtherRecovery, TreatmentLandfill, TreatmentIncineration, TreatmentOtherDisposal:
		return true
	}
	return false
}

// IsRecovery reports whether the method diverts waste from disposal.
func (t Treatment) IsRecovery() bool {
	switch t {
	case TreatmentRecycling, TreatmentComposting, TreatmentReuse, TreatmentEnergyRecovery, TreatmentOtherRecovery:
		return true
	}
	return false
}

// IsDisposal reports whether the method is a final disposal operation.
func (t Treatment) IsDisposal() bool {
	switch t {
	case TreatmentLandfill, TreatmentIncineration, TreatmentOtherDisposal:
		return true
	}
	return false
}

// Hazard classifies a waste stream's hazardousness.
type Hazard string

const (
	HazardUnspecified  Hazard = ""
	HazardHazardous    Hazard = "hazardous"
	HazardNonHazardous Hazard = "non_hazardous"
)

// ParseHazard maps a reported hazardousness onto the closed set.
func ParseHazard(s string) (Hazard, error) {
	switch normalize(s) {
	case "":
		return HazardUnspecified, nil
	case "hazardous", "haz", "yes", "true":
		return HazardHazardous, nil
	case "non-hazardous", "non hazardous", "nonhazardous", "non_hazardous", "no", "false":
		return HazardNonHazardous, nil
	}
	return HazardUnspecified, fmt.Errorf("unrecognised hazardousness %q", s)
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
