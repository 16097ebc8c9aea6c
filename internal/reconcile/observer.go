package reconcile

// Resolution describes one successful Object() resolution.
type Resolution struct {
	Component   string
	Kind        TypeID
	Decision    Decision
	Fingerprint string
	Builds      int
	Patches     int
}

// Observer receives lifecycle events from components. The engine journals
// them; tests count them.
type Observer interface {
	Resolved(r Resolution)
	Failed(component string, kind TypeID, err error)
	Subscribed(owner string, dep Dependency, subscriptionID string)
	Released(owner string, dep Dependency, subscriptionID string)
}

// NopObserver ignores every event.
type NopObserver struct{}

// Resolved implements Observer.
func (NopObserver) Resolved(Resolution) {}

// Failed implements Observer.
func (NopObserver) Failed(string, TypeID, error) {}

// Subscribed implements Observer.
func (NopObserver) Subscribed(string, Dependency, string) {}

// Released implements Observer.
func (NopObserver) Released(string, Dependency, string) {}
