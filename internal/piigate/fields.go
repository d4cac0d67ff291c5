package piigate

import "shelteraccess/internal/access"

// FieldRegistry maps each protected client-data attribute to the minimum
// disclosure tier required to read it. The registry is immutable after
// construction; deployments load it once at startup.
type FieldRegistry struct {
	minimum map[string]access.Level
}

func NewFieldRegistry(minimum map[string]access.Level) *FieldRegistry {
	copied := make(map[string]access.Level, len(minimum))
	for name, level := range minimum {
		copied[name] = level
	}
	return &FieldRegistry{minimum: copied}
}

// DefaultFieldRegistry covers the client attributes the dashboard surfaces.
func DefaultFieldRegistry() *FieldRegistry {
	return NewFieldRegistry(map[string]access.Level{
		"name":            access.LevelBasic,
		"dateOfBirth":     access.LevelBasic,
		"contactPhone":    access.LevelBasic,
		"shelterHistory":  access.LevelBasic,
		"diagnosis":       access.LevelMedical,
		"medications":     access.LevelMedical,
		"caseNotes":       access.LevelMedical,
		"benefitAmount":   access.LevelFinancial,
		"incomeSource":    access.LevelFinancial,
		"ssn":             access.LevelFull,
		"fullCaseFile":    access.LevelFull,
		"immigrationCase": access.LevelFull,
	})
}

// Required returns the minimum level for a field. Unregistered fields are
// unreadable at any tier: the registry fails closed.
func (r *FieldRegistry) Required(name string) (access.Level, bool) {
	level, ok := r.minimum[name]
	return level, ok
}
