package access

// Policy is the static authorization table loaded once at startup. It answers
// two questions: which levels a role may ever request, and which conditional
// requirements (MFA attestation, supervisor co-signature) a level carries.
// Policy changes are a data edit, not a code edit.
type Policy struct {
	eligibility map[Role][]Level
	sensitivity map[Level]SensitivityRule
}

// SensitivityRule describes the conditional requirements attached to
// requesting a given level.
type SensitivityRule struct {
	RequiresMFA        bool
	RequiresSupervisor bool
}

// DefaultPolicy returns the deployment's standard table. Financial is
// supervisor-gated alongside Medical and Full: the conservative reading of
// the compliance requirements until the compliance office rules otherwise.
func DefaultPolicy() *Policy {
	return &Policy{
		eligibility: map[Role][]Level{
			RoleGuest:         {LevelNone},
			RoleVolunteer:     {LevelBasic},
			RoleStaff:         {LevelBasic, LevelMedical},
			RoleCaseManager:   {LevelBasic, LevelMedical, LevelFinancial},
			RoleMedicalStaff:  {LevelBasic, LevelMedical},
			RoleAdministrator: {LevelBasic, LevelMedical, LevelFinancial, LevelFull},
			RoleSystemAdmin:   {LevelBasic, LevelMedical, LevelFinancial, LevelFull},
		},
		sensitivity: map[Level]SensitivityRule{
			LevelNone:      {},
			LevelBasic:     {},
			LevelMedical:   {RequiresMFA: true, RequiresSupervisor: true},
			LevelFinancial: {RequiresMFA: true, RequiresSupervisor: true},
			LevelFull:      {RequiresMFA: true, RequiresSupervisor: true},
		},
	}
}

// EligibleLevels returns the levels the role may request. Unknown roles get
// an empty set, never an error: the table fails closed.
func (p *Policy) EligibleLevels(role Role) []Level {
	levels := p.eligibility[role]
	out := make([]Level, len(levels))
	copy(out, levels)
	return out
}

// Eligible reports whether the role may request the level at all.
func (p *Policy) Eligible(role Role, level Level) bool {
	for _, l := range p.eligibility[role] {
		if l == level {
			return true
		}
	}
	return false
}

// Rule returns the conditional requirements for a level. Levels missing from
// the table get the strictest rule, again failing closed.
func (p *Policy) Rule(level Level) SensitivityRule {
	if rule, ok := p.sensitivity[level]; ok {
		return rule
	}
	return SensitivityRule{RequiresMFA: true, RequiresSupervisor: true}
}
