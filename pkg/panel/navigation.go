package panel

import "fmt"

// Navigator moves a session between views. Its methods only touch the
// session passed in; SessionManager.Update makes them atomic.
type Navigator struct {
	catalog   *Catalog
	rootLabel string
}

func NewNavigator(catalog *Catalog, rootLabel string) *Navigator {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	if rootLabel == "" {
		rootLabel = DefaultRootLabel
	}
	return &Navigator{catalog: catalog, rootLabel: rootLabel}
}

func (n *Navigator) Catalog() *Catalog { return n.catalog }

func (n *Navigator) RootLabel() string { return n.rootLabel }

// NavigateTo shows target and appends label to the breadcrumb unless it is
// already the last entry. Navigating to main is the same as NavigateHome.
func (n *Navigator) NavigateTo(s *Session, target, label string) error {
	if target == ViewMain {
		n.NavigateHome(s)
		return nil
	}
	ok, err := n.catalog.Reachable(s.CurrentCategory, target)
	if err != nil {
		return fmt.Errorf("navigate to %q: %w", target, err)
	}
	if !ok {
		return fmt.Errorf("navigate from %q to %q: %w", s.CurrentCategory, target, ErrInvalidTransition)
	}
	if label == "" {
		label = n.catalog.Label(target)
	}

	s.CurrentCategory = target
	if target != ViewFieldEditor {
		s.EditingField = ""
	}
	if len(s.Breadcrumb) == 0 {
		s.Breadcrumb = []string{n.rootLabel}
	}
	if s.Breadcrumb[len(s.Breadcrumb)-1] != label {
		s.Breadcrumb = append(s.Breadcrumb, label)
	}
	return nil
}

// NavigateBack pops one breadcrumb entry and resolves the view from the new
// last label. Labels the catalog does not know fall back to main, which also
// resets the breadcrumb to the root.
func (n *Navigator) NavigateBack(s *Session) {
	s.EditingField = ""
	if len(s.Breadcrumb) <= 1 {
		n.NavigateHome(s)
		return
	}
	s.Breadcrumb = s.Breadcrumb[:len(s.Breadcrumb)-1]
	if len(s.Breadcrumb) == 1 {
		s.CurrentCategory = ViewMain
		return
	}
	view := n.catalog.LabelToCategory(s.Breadcrumb[len(s.Breadcrumb)-1])
	if view == ViewMain {
		n.NavigateHome(s)
		return
	}
	s.CurrentCategory = view
}

// NavigateHome resets to the main view with a single root breadcrumb.
func (n *Navigator) NavigateHome(s *Session) {
	s.CurrentCategory = ViewMain
	s.Breadcrumb = []string{n.rootLabel}
	s.EditingField = ""
}
