package resolver

// Selection is the part of a response the caller asked for. Fields lists
// scalar fields in request order; Relationships maps a relationship field to
// the selection applied to the entities resolved under it.
type Selection struct {
	Fields        []string
	Relationships map[string]*Selection
}

// Project shapes a resolved tree to sel. A nil sel emits every scalar
// field and no relationships. Selected relationships always appear, as an
// empty list when nothing was resolved under them.
func Project(resolved *ResolvedEntity, sel *Selection) map[string]any {
	if resolved == nil {
		return nil
	}
	if sel == nil {
		out := make(map[string]any, len(resolved.Fields))
		for k, v := range resolved.Fields {
			out[k] = v
		}
		return out
	}

	out := make(map[string]any, len(sel.Fields)+len(sel.Relationships))
	for _, f := range sel.Fields {
		out[f] = resolved.Fields[f]
	}
	for rel, childSel := range sel.Relationships {
		list := make([]any, 0)
		for _, child := range resolved.Children {
			if child.Relationship == rel {
				list = append(list, Project(child, childSel))
			}
		}
		out[rel] = list
	}
	return out
}

// ProjectAll projects each resolved root.
func ProjectAll(resolved []*ResolvedEntity, sel *Selection) []any {
	out := make([]any, len(resolved))
	for i, r := range resolved {
		out[i] = Project(r, sel)
	}
	return out
}
