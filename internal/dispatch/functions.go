package dispatch

// Function identifies one dispatchable operation. The set is closed and
// matched exhaustively; an unknown name never reaches a handler.
type Function int

const (
	FuncQueryData Function = iota
	FuncRetrieveKnowledge
	FuncSynthesizeKnowledge
	FuncSetSpecialization
	FuncListSpecializations
)

var functionNames = map[string]Function{
	"query_data":           FuncQueryData,
	"retrieve_knowledge":   FuncRetrieveKnowledge,
	"synthesize_knowledge": FuncSynthesizeKnowledge,
	"set_specialization":   FuncSetSpecialization,
	"list_specializations": FuncListSpecializations,
}

// ParseFunction maps a requested name to its Function value.
func ParseFunction(name string) (Function, bool) {
	f, ok := functionNames[name]
	return f, ok
}

func (f Function) String() string {
	for name, fn := range functionNames {
		if fn == f {
			return name
		}
	}
	return "unknown"
}
