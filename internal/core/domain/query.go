package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Field is a whitelisted facility attribute a structured query may reference.
type Field string

// Queryable fields.
const (
	FieldRegion            Field = "region"
	FieldType              Field = "type"
	FieldOperationalStatus Field = "operational_status"
	FieldBeds              Field = "beds"
	FieldStaffCount        Field = "staff_count"
	FieldEquipment         Field = "equipment"
	FieldSpecialties       Field = "specialties"
	FieldServices          Field = "services"
)

// FieldKind determines which operators and value shapes a field accepts.
type FieldKind int

// Field kinds.
const (
	KindUnknown FieldKind = iota
	KindText
	KindNumber
	KindList
)

// Kind returns the field's kind, KindUnknown when it is not whitelisted.
func (f Field) Kind() FieldKind {
	switch f {
	case FieldRegion, FieldType, FieldOperationalStatus:
		return KindText
	case FieldBeds, FieldStaffCount:
		return KindNumber
	case FieldEquipment, FieldSpecialties, FieldServices:
		return KindList
	default:
		return KindUnknown
	}
}

// Fields lists every queryable field in schema order.
func Fields() []Field {
	return []Field{
		FieldRegion, FieldType, FieldBeds, FieldStaffCount,
		FieldEquipment, FieldSpecialties, FieldServices, FieldOperationalStatus,
	}
}

// Operator is a whitelisted comparison.
type Operator string

// Operators.
const (
	OpEq       Operator = "eq"
	OpNe       Operator = "ne"
	OpContains Operator = "contains"
	OpIn       Operator = "in"
	OpGt       Operator = "gt"
	OpGte      Operator = "gte"
	OpLt       Operator = "lt"
	OpLte      Operator = "lte"
	OpHas      Operator = "has"
	OpHasAny   Operator = "has_any"
	OpHasAll   Operator = "has_all"
	OpMissing  Operator = "missing"
)

var kindOperators = map[FieldKind][]Operator{
	KindText:   {OpEq, OpNe, OpContains, OpIn},
	KindNumber: {OpEq, OpNe, OpGt, OpGte, OpLt, OpLte},
	KindList:   {OpHas, OpHasAny, OpHasAll, OpMissing},
}

// OperatorsFor returns the operators allowed on a field kind.
func OperatorsFor(k FieldKind) []Operator {
	return kindOperators[k]
}

// TakesList reports whether the operator's value is a list of strings.
func (o Operator) TakesList() bool {
	return o == OpIn || o == OpHasAny || o == OpHasAll
}

// Query limits.
const (
	DefaultQueryLimit = 20
	MaxQueryLimit     = 50
)

// Condition is one validated predicate. Exactly one of Text, Number or
// Values carries the operand, chosen by the field kind and operator.
type Condition struct {
	Field  Field
	Op     Operator
	Text   string
	Number float64
	Values []string
}

// MarshalJSON renders the condition in its wire shape.
func (c Condition) MarshalJSON() ([]byte, error) {
	var value any
	switch {
	case c.Field.Kind() == KindNumber:
		value = c.Number
	case c.Op.TakesList():
		value = c.Values
	default:
		value = c.Text
	}
	return json.Marshal(struct {
		Field Field    `json:"field"`
		Op    Operator `json:"op"`
		Value any      `json:"value"`
	}{c.Field, c.Op, value})
}

// SortOrder is asc or desc.
type SortOrder string

// Sort orders.
const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// SortSpec orders query results by a text or number field.
type SortSpec struct {
	Field Field     `json:"field"`
	Order SortOrder `json:"order"`
}

// StructuredQuery is a conjunction of conditions over the whitelisted
// schema. It is only executable after Validate returns nil.
type StructuredQuery struct {
	Conditions []Condition `json:"conditions"`
	Sort       *SortSpec   `json:"sort,omitempty"`
	Limit      int         `json:"limit"`
}

// Validate checks every field, operator and operand against the whitelist.
// Errors wrap ErrTranslation and name the rejected element.
func (q *StructuredQuery) Validate() error {
	if q == nil {
		return fmt.Errorf("%w: empty query", ErrTranslation)
	}
	for i, c := range q.Conditions {
		if err := c.validate(); err != nil {
			return fmt.Errorf("condition %d: %w", i+1, err)
		}
	}
	if q.Sort != nil {
		switch q.Sort.Field.Kind() {
		case KindText, KindNumber:
		case KindList:
			return fmt.Errorf("%w: cannot sort by list field %q", ErrTranslation, q.Sort.Field)
		default:
			return fmt.Errorf("%w: unknown sort field %q", ErrTranslation, q.Sort.Field)
		}
		if q.Sort.Order != SortAsc && q.Sort.Order != SortDesc {
			return fmt.Errorf("%w: unknown sort order %q", ErrTranslation, q.Sort.Order)
		}
	}
	if q.Limit < 1 || q.Limit > MaxQueryLimit {
		return fmt.Errorf("%w: limit %d outside 1..%d", ErrTranslation, q.Limit, MaxQueryLimit)
	}
	return nil
}

func (c Condition) validate() error {
	kind := c.Field.Kind()
	if kind == KindUnknown {
		return fmt.Errorf("%w: unknown field %q", ErrTranslation, c.Field)
	}
	allowed := false
	for _, op := range kindOperators[kind] {
		if op == c.Op {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("%w: operator %q not allowed on field %q", ErrTranslation, c.Op, c.Field)
	}
	if kind == KindNumber {
		return nil
	}
	if c.Op.TakesList() {
		if len(c.Values) == 0 {
			return fmt.Errorf("%w: operator %q on %q needs a non-empty list", ErrTranslation, c.Op, c.Field)
		}
		for _, v := range c.Values {
			if strings.TrimSpace(v) == "" {
				return fmt.Errorf("%w: blank item in list for %q", ErrTranslation, c.Field)
			}
		}
		return nil
	}
	if strings.TrimSpace(c.Text) == "" {
		return fmt.Errorf("%w: operator %q on %q needs a value", ErrTranslation, c.Op, c.Field)
	}
	return nil
}

// Matches reports whether the facility satisfies every condition.
func (q *StructuredQuery) Matches(f Facility) bool {
	for _, c := range q.Conditions {
		if !c.Matches(f) {
			return false
		}
	}
	return true
}

// Matches evaluates a single condition. Text comparisons ignore case.
func (c Condition) Matches(f Facility) bool {
	switch c.Field.Kind() {
	case KindText:
		return matchText(textField(f, c.Field), c)
	case KindNumber:
		return matchNumber(float64(numberField(f, c.Field)), c)
	case KindList:
		return matchList(ListField(f, c.Field), c)
	default:
		return false
	}
}

func textField(f Facility, field Field) string {
	switch field {
	case FieldRegion:
		return f.Region
	case FieldType:
		return f.Type
	case FieldOperationalStatus:
		return f.OperationalStatus
	}
	return ""
}

func numberField(f Facility, field Field) int {
	if field == FieldBeds {
		return f.Beds
	}
	return f.StaffCount
}

// ListField returns the facility list a list-kind field refers to.
func ListField(f Facility, field Field) []string {
	switch field {
	case FieldEquipment:
		return f.Equipment
	case FieldSpecialties:
		return f.Specialties
	case FieldServices:
		return f.Services
	}
	return nil
}

func matchText(v string, c Condition) bool {
	switch c.Op {
	case OpEq:
		return strings.EqualFold(v, c.Text)
	case OpNe:
		return !strings.EqualFold(v, c.Text)
	case OpContains:
		return strings.Contains(strings.ToLower(v), strings.ToLower(c.Text))
	case OpIn:
		for _, want := range c.Values {
			if strings.EqualFold(v, want) {
				return true
			}
		}
	}
	return false
}

func matchNumber(v float64, c Condition) bool {
	switch c.Op {
	case OpEq:
		return v == c.Number
	case OpNe:
		return v != c.Number
	case OpGt:
		return v > c.Number
	case OpGte:
		return v >= c.Number
	case OpLt:
		return v < c.Number
	case OpLte:
		return v <= c.Number
	}
	return false
}

func matchList(list []string, c Condition) bool {
	switch c.Op {
	case OpHas:
		return HasAny(list, c.Text)
	case OpMissing:
		return !HasAny(list, c.Text)
	case OpHasAny:
		return HasAny(list, c.Values...)
	case OpHasAll:
		for _, want := range c.Values {
			if !HasAny(list, want) {
				return false
			}
		}
		return true
	}
	return false
}

// Apply filters, sorts and limits facilities in memory. Facilities are
// ordered by id when no sort is given so results are stable.
func (q *StructuredQuery) Apply(facilities []Facility) []Facility {
	out := make([]Facility, 0, len(facilities))
	for _, f := range facilities {
		if q.Matches(f) {
			out = append(out, f)
		}
	}
	SortFacilities(out, q.Sort)
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

// SortFacilities orders facilities by spec, falling back to id.
func SortFacilities(facilities []Facility, spec *SortSpec) {
	sort.SliceStable(facilities, func(i, j int) bool {
		a, b := facilities[i], facilities[j]
		if spec != nil {
			var cmp int
			if spec.Field.Kind() == KindNumber {
				cmp = numberField(a, spec.Field) - numberField(b, spec.Field)
			} else {
				cmp = strings.Compare(strings.ToLower(textField(a, spec.Field)), strings.ToLower(textField(b, spec.Field)))
			}
			if cmp != 0 {
				if spec.Order == SortDesc {
					return cmp > 0
				}
				return cmp < 0
			}
		}
		return a.ID < b.ID
	})
}

// Explain renders a human-readable description of the filter.
func (q *StructuredQuery) Explain() string {
	var b strings.Builder
	if len(q.Conditions) == 0 {
		b.WriteString("All facilities")
	} else {
		b.WriteString("Facilities where ")
		for i, c := range q.Conditions {
			if i > 0 {
				b.WriteString(" and ")
			}
			b.WriteString(c.describe())
		}
	}
	if q.Sort != nil {
		fmt.Fprintf(&b, ", sorted by %s %s", q.Sort.Field, q.Sort.Order)
	}
	fmt.Fprintf(&b, ", limited to %d", q.Limit)
	return b.String()
}

var opPhrases = map[Operator]string{
	OpEq:       "is",
	OpNe:       "is not",
	OpContains: "contains",
	OpIn:       "is one of",
	OpGt:       "is greater than",
	OpGte:      "is at least",
	OpLt:       "is less than",
	OpLte:      "is at most",
	OpHas:      "includes",
	OpHasAny:   "includes any of",
	OpHasAll:   "includes all of",
	OpMissing:  "does not include",
}

func (c Condition) describe() string {
	var operand string
	switch {
	case c.Field.Kind() == KindNumber:
		operand = strconv.FormatFloat(c.Number, 'f', -1, 64)
	case c.Op.TakesList():
		operand = strings.Join(c.Values, ", ")
	default:
		operand = fmt.Sprintf("%q", c.Text)
	}
	return fmt.Sprintf("%s %s %s", c.Field, opPhrases[c.Op], operand)
}
