package ir

// ComponentDef is a compiled declarative component definition.
type ComponentDef struct {
	Name       string     `json:"name"`
	Type       string     `json:"type"`
	Attributes Attributes `json:"attributes"`
}

// References returns the attribute name → component name edges this
// definition declares, in sorted attribute order.
func (d ComponentDef) References() []Reference {
	var refs []Reference
	for _, k := range d.Attributes.SortedKeys() {
		if ref, ok := d.Attributes[k].(Ref); ok {
			refs = append(refs, Reference{Attribute: k, Target: string(ref)})
		}
	}
	return refs
}

// Reference is one attribute-to-component edge of a definition.
type Reference struct {
	Attribute string `json:"attribute"`
	Target    string `json:"target"`
}

// SceneDef is an ordered collection of component definitions.
// Order is declaration order and is preserved by every consumer.
type SceneDef struct {
	Components []ComponentDef `json:"components"`
}

// Lookup returns the definition with the given name.
func (s *SceneDef) Lookup(name string) (ComponentDef, bool) {
	for _, def := range s.Components {
		if def.Name == name {
			return def, true
		}
	}
	return ComponentDef{}, false
}

// Names returns component names in declaration order.
func (s *SceneDef) Names() []string {
	names := make([]string, len(s.Components))
	for i, def := range s.Components {
		names[i] = def.Name
	}
	return names
}
