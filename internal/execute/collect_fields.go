package execute

import (
	"github.com/99designs/gqlgen/graphql"
	"github.com/vektah/gqlparser/v2/ast"
)

// collectFields resolves fragments and @skip/@include for runtimeType.
// gqlgen's CollectFields only matches fragments whose type condition is listed in
// satisfies, so the interfaces and unions the type belongs to are listed too.
func collectFields(exeContext *ExecutionContext, oc *graphql.OperationContext, runtimeType *ast.Definition, selectionSet ast.SelectionSet) []graphql.CollectedField {
	return graphql.CollectFields(oc, selectionSet, exeContext.implementors(runtimeType))
}

func (exeContext *ExecutionContext) implementors(def *ast.Definition) []string {
	exeContext.implementorsMu.Lock()
	defer exeContext.implementorsMu.Unlock()

	if names, ok := exeContext.implementorsCache[def.Name]; ok {
		return names
	}

	names := []string{def.Name}
	for _, impl := range exeContext.Schema.GetImplements(def) {
		names = append(names, impl.Name)
	}
	if exeContext.implementorsCache == nil {
		exeContext.implementorsCache = make(map[string][]string)
	}
	exeContext.implementorsCache[def.Name] = names

	return names
}
