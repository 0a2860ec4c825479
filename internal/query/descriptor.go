package query

import (
	"encoding/json"
	"errors"
	"regexp"
)

// Action enumerates the supported store operations. The set is closed:
// decoding an unknown action is an UnsupportedOperationError, not a silent
// default branch.
type Action int

const (
	ActionSelect Action = iota
	ActionInsert
	ActionUpdate
	ActionDelete
	ActionUpsert
	ActionJoin
	ActionSearch
)

var actionNames = map[Action]string{
	ActionSelect: "select",
	ActionInsert: "insert",
	ActionUpdate: "update",
	ActionDelete: "delete",
	ActionUpsert: "upsert",
	ActionJoin:   "join",
	ActionSearch: "search",
}

// ParseAction maps an action name to its Action value.
func ParseAction(s string) (Action, error) {
	for a, name := range actionNames {
		if name == s {
			return a, nil
		}
	}
	return 0, unsupportedf("action %q", s)
}

func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return "unknown"
}

func (a Action) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

func (a *Action) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseAction(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Operator enumerates the supported filter operators.
type Operator int

const (
	OpEq Operator = iota
	OpNeq
	OpGt
	OpLt
	OpGte
	OpLte
	OpLike
	OpILike
	OpIn
	OpContains
	OpRange
)

var operatorNames = map[Operator]string{
	OpEq:       "eq",
	OpNeq:      "neq",
	OpGt:       "gt",
	OpLt:       "lt",
	OpGte:      "gte",
	OpLte:      "lte",
	OpLike:     "like",
	OpILike:    "ilike",
	OpIn:       "in",
	OpContains: "contains",
	OpRange:    "range",
}

// ParseOperator maps an operator name to its Operator value.
func ParseOperator(s string) (Operator, error) {
	for op, name := range operatorNames {
		if name == s {
			return op, nil
		}
	}
	return 0, unsupportedf("filter operator %q", s)
}

func (o Operator) String() string {
	if name, ok := operatorNames[o]; ok {
		return name
	}
	return "unknown"
}

func (o Operator) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.String())
}

func (o *Operator) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseOperator(s)
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}

// JoinType enumerates the supported join kinds.
type JoinType int

const (
	JoinInner JoinType = iota
	JoinLeft
)

func (j JoinType) String() string {
	switch j {
	case JoinInner:
		return "inner"
	case JoinLeft:
		return "left"
	}
	return "unknown"
}

func (j JoinType) MarshalJSON() ([]byte, error) {
	return json.Marshal(j.String())
}

func (j *JoinType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "inner":
		*j = JoinInner
	case "left":
		*j = JoinLeft
	default:
		return unsupportedf("join type %q", s)
	}
	return nil
}

// FilterClause is one conjunctive condition; all filters in a descriptor are
// combined with AND.
type FilterClause struct {
	Column   string   `json:"column"`
	Operator Operator `json:"operator"`
	Value    any      `json:"value"`
}

// OrderClause orders results by one column.
type OrderClause struct {
	Column    string `json:"column"`
	Ascending bool   `json:"ascending"`
}

// Pagination applies after ordering.
type Pagination struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// JoinKeys names the local and foreign key columns of a join.
type JoinKeys struct {
	Local   string `json:"local"`
	Foreign string `json:"foreign"`
}

// JoinSpec contributes columns from one foreign table.
type JoinSpec struct {
	Table        string   `json:"table"`
	On           JoinKeys `json:"on"`
	Type         JoinType `json:"type"`
	Columns      string   `json:"columns,omitempty"`
	ColumnPrefix string   `json:"column_prefix,omitempty"`
}

// Descriptor declaratively describes one store operation.
type Descriptor struct {
	Table         string          `json:"table"`
	Action        Action          `json:"action"`
	Columns       string          `json:"columns,omitempty"`
	Data          json.RawMessage `json:"data,omitempty"`
	Filters       []FilterClause  `json:"filters,omitempty"`
	Order         []OrderClause   `json:"order,omitempty"`
	Pagination    *Pagination     `json:"pagination,omitempty"`
	Join          []JoinSpec      `json:"join,omitempty"`
	SearchTerm    string          `json:"search_term,omitempty"`
	SearchColumns []string        `json:"search_columns,omitempty"`
	OnConflict    string          `json:"on_conflict,omitempty"`
}

// Decode parses a descriptor from raw JSON (e.g. the parameters of a
// query_data call). Unknown actions, operators, and join types surface as
// UnsupportedOperationErrors at decode time.
func Decode(raw []byte) (*Descriptor, error) {
	var d Descriptor
	if err := json.Unmarshal(raw, &d); err != nil {
		var uerr *UnsupportedOperationError
		if errors.As(err, &uerr) {
			return nil, uerr
		}
		return nil, validationf("decoding descriptor: %v", err)
	}
	if d.Table == "" {
		return nil, validationf("table is required")
	}
	return &d, nil
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// validIdent rejects table and column names that cannot be safely
// interpolated into SQL.
func validIdent(name string) error {
	if !identRe.MatchString(name) {
		return validationf("invalid identifier %q", name)
	}
	return nil
}
