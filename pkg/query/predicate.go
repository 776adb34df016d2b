package query

// Predicate is a filter condition. The set of predicates is closed; they
// are translated to SQL by a single compile step.
type Predicate interface {
	predicate()
}

// Equals matches Field = Value.
type Equals struct {
	Field string
	Value any
}

// NotEquals matches Field <> Value.
type NotEquals struct {
	Field string
	Value any
}

// Like matches Field against an SQL LIKE pattern.
type Like struct {
	Field           string
	Pattern         string
	CaseInsensitive bool
	Negate          bool
}

// In matches Field against a slice of values. An empty slice matches
// nothing (everything when negated).
type In struct {
	Field  string
	Values any
	Negate bool
}

// Between matches Low <= Field <= High.
type Between struct {
	Field     string
	Low, High any
}

// Op is a comparison operator.
type Op string

const (
	Gt  Op = ">"
	Lt  Op = "<"
	Gte Op = ">="
	Lte Op = "<="
)

// Compare matches Field <Op> Value.
type Compare struct {
	Field string
	Op    Op
	Value any
}

// IsNull matches Field IS NULL, or IS NOT NULL when negated.
type IsNull struct {
	Field  string
	Negate bool
}

// And groups predicates that must all hold.
type And []Predicate

// Or groups predicates of which one must hold.
type Or []Predicate

func (Equals) predicate()    {}
func (NotEquals) predicate() {}
func (Like) predicate()      {}
func (In) predicate()        {}
func (Between) predicate()   {}
func (Compare) predicate()   {}
func (IsNull) predicate()    {}
func (And) predicate()       {}
func (Or) predicate()        {}
