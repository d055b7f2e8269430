package types

// Suite is the minimal grouping collaborator a runnable hangs off.
// The execution core only ever reads it to compose title paths and to
// inherit the pending flag; suite management itself lives in the runner.
type Suite struct {
	Title   string
	Parent  *Suite
	Pending bool
}

// NewSuite creates a suite under the given parent. A nil parent with an
// empty title denotes the root suite, which is excluded from title paths.
func NewSuite(title string, parent *Suite) *Suite {
	return &Suite{Title: title, Parent: parent}
}

// Root reports whether this is the unnamed top-level suite.
func (s *Suite) Root() bool {
	return s.Parent == nil && s.Title == ""
}

// TitlePath returns the ordered titles from the outermost named suite down
// to this one. The root suite contributes nothing.
func (s *Suite) TitlePath() []string {
	if s == nil {
		return nil
	}
	path := s.Parent.TitlePath()
	if !s.Root() {
		path = append(path, s.Title)
	}
	return path
}

// IsPending reports whether this suite or any of its ancestors is pending.
func (s *Suite) IsPending() bool {
	if s == nil {
		return false
	}
	return s.Pending || s.Parent.IsPending()
}
