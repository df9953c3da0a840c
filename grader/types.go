package grader

import (
	"fmt"
	"sort"
	"strings"
)

// Role identifies who sent a transcript message.
type Role string

const (
	RoleStudent Role = "student"
	// RoleCounterpart is the nurse or other party. Counterpart messages never count.
	RoleCounterpart Role = "counterpart"
)

// Tier is the necessity tier assigned to an order by case authoring.
type Tier string

const (
	TierMust     Tier = "must"
	TierShould   Tier = "should"
	TierCould    Tier = "could"
	TierShouldnt Tier = "shouldnt"
	TierMustnt   Tier = "mustnt"
)

// Difficulty is the case difficulty tier. Efficiency and safety thresholds vary by it.
type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

// Order categories recognized by the engine. Escalation and bedside orders satisfy the
// unstable-patient escalation rule.
const (
	CategoryLab        = "lab"
	CategoryMedication = "medication"
	CategoryImaging    = "imaging"
	CategoryConsult    = "consult"
	CategoryEscalation = "escalation"
	CategoryBedside    = "bedside"
	CategoryProcedure  = "procedure"
	CategoryOther      = "other"
)

// Alignment is the categorical verdict of the note comparator.
type Alignment string

const (
	AlignmentNone    Alignment = "none"
	AlignmentPartial Alignment = "partial"
	AlignmentAligned Alignment = "aligned"
)

// Dimension names one of the six rubric dimensions.
type Dimension string

const (
	InformationSharing      Dimension = "information_sharing"
	ResponsiveCommunication Dimension = "responsive_communication"
	EfficiencyDeduction     Dimension = "efficiency_deduction"
	LabsOrdersQuality       Dimension = "labs_orders_quality"
	NoteThoughtProcess      Dimension = "note_thought_process"
	SafetyDeduction         Dimension = "safety_deduction"
)

// Composite names one of the two reported scores.
type Composite string

const (
	Communication         Composite = "communication"
	MedicalDecisionMaking Composite = "medical_decision_making"
)

// CompositeMin and CompositeMax bound both composite scores.
const (
	CompositeMin = 0
	CompositeMax = 5
)

// Dimensions lists every dimension in report order: the three communication
// dimensions followed by the three medical decision making dimensions.
var Dimensions = []Dimension{
	InformationSharing,
	ResponsiveCommunication,
	EfficiencyDeduction,
	LabsOrdersQuality,
	NoteThoughtProcess,
	SafetyDeduction,
}

// compositeOf maps each dimension to the composite it contributes to.
var compositeOf = map[Dimension]Composite{
	InformationSharing:      Communication,
	ResponsiveCommunication: Communication,
	EfficiencyDeduction:     Communication,
	LabsOrdersQuality:       MedicalDecisionMaking,
	NoteThoughtProcess:      MedicalDecisionMaking,
	SafetyDeduction:         MedicalDecisionMaking,
}

// Composite returns the composite a dimension contributes to.
func (d Dimension) Composite() Composite { return compositeOf[d] }

// IsValidDimension returns true if name is one of the six rubric dimensions.
func IsValidDimension(name string) bool {
	_, ok := compositeOf[Dimension(name)]
	return ok
}

var (
	validRoles        = map[string]bool{string(RoleStudent): true, string(RoleCounterpart): true}
	validTiers        = map[string]bool{"must": true, "should": true, "could": true, "shouldnt": true, "mustnt": true}
	validDifficulties = map[string]bool{"beginner": true, "intermediate": true, "advanced": true}
	validAlignments   = map[string]bool{"none": true, "partial": true, "aligned": true}
)

// IsValidRole returns true if role is a recognized sender role.
func IsValidRole(role string) bool { return validRoles[role] }

// IsValidTier returns true if tier is a recognized necessity tier.
func IsValidTier(tier string) bool { return validTiers[tier] }

// IsValidDifficulty returns true if d is a recognized difficulty tier.
func IsValidDifficulty(d string) bool { return validDifficulties[d] }

// IsValidAlignment returns true if a is a recognized alignment verdict.
func IsValidAlignment(a string) bool { return validAlignments[a] }

// ValidDifficulties returns sorted valid difficulty names.
func ValidDifficulties() []string { return sortedNames(validDifficulties) }

// ValidTiers returns sorted valid tier names.
func ValidTiers() []string { return sortedNames(validTiers) }

func sortedNames(m map[string]bool) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Message is one communication turn of the transcript.
type Message struct {
	Role     Role
	Text     string
	Position int // sequence position shared with Order.Position
}

// Order is one clinical action placed by the student.
type Order struct {
	Name            string
	Category        string
	Tier            Tier
	Position        int // sequence position shared with Message.Position
	OffsetMinutes   int // minutes since case start
	Contraindicated bool
}

// Key identifies an order for redundancy and coverage checks. Case and spacing of the
// name and category are ignored.
func (o Order) Key() string { return NormalizeText(o.Category) + "/" + NormalizeText(o.Name) }

// NormalizeText lower-cases s and collapses runs of whitespace.
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// CatalogOrder is an order the case author classified in advance.
type CatalogOrder struct {
	Name     string
	Category string
	Tier     Tier
}

// CaseContext is the case metadata consumed by the engine.
type CaseContext struct {
	ExpectedDiagnosis string
	ExpectedTreatment []string
	CaseGoals         []string
	Difficulty        Difficulty
	ReferenceNote     string

	// Unstable marks a patient whose condition requires early escalation or bedside review.
	Unstable bool
	// OrderCatalog lists every order the case author tiered; coverage is measured against it.
	OrderCatalog []CatalogOrder
	// StatusChanges are sequence positions at which the patient's status changed.
	// A repeated order with a status change between placements is not redundant.
	StatusChanges []int
}

// Input is everything a single evaluation run consumes.
type Input struct {
	ID          string // caller-supplied label, used only in logs and traces
	Messages    []Message
	Orders      []Order
	Case        CaseContext
	StudentNote string
}

// Validate checks roles, tiers and difficulty. Unknown difficulty is a configuration error.
func (in *Input) Validate() error {
	if !IsValidDifficulty(string(in.Case.Difficulty)) {
		return &ConfigError{Reason: fmt.Sprintf("unrecognized difficulty tier %q; valid: %v", in.Case.Difficulty, ValidDifficulties())}
	}
	for i, m := range in.Messages {
		if !IsValidRole(string(m.Role)) {
			return fmt.Errorf("messages[%d]: unknown role %q", i, m.Role)
		}
	}
	for i, o := range in.Orders {
		if !IsValidTier(string(o.Tier)) {
			return fmt.Errorf("orders[%d] %q: unknown tier %q; valid: %v", i, o.Name, o.Tier, ValidTiers())
		}
	}
	for i, c := range in.Case.OrderCatalog {
		if !IsValidTier(string(c.Tier)) {
			return fmt.Errorf("order_catalog[%d] %q: unknown tier %q", i, c.Name, c.Tier)
		}
	}
	return nil
}
