package git

// MockRunner implements Executor for testing.
// Each method can be configured with a custom function to control behavior.
type MockRunner struct {
	ConfigureGlobalIdentityFunc func(name, email string) error
	CurrentBranchFunc           func() (string, error)
	TopLevelFunc                func() (string, error)
	SubmoduleStatusFunc         func() (string, error)
	SubmodulePathsFunc          func(recursive bool) ([]string, error)
	SubmoduleUpdateInitFunc     func() error
	SubmoduleUpdateRemoteFunc   func(path string, recursive bool) error
	CheckoutFunc                func(ref string) error
	RevParseHEADFunc            func() (string, error)
	workDir                     string
}

// NewMockRunner creates a new MockRunner with the specified working directory
func NewMockRunner(workDir string) *MockRunner {
	return &MockRunner{
		workDir: workDir,
	}
}

// ConfigureGlobalIdentity sets the global committer identity
func (m *MockRunner) ConfigureGlobalIdentity(name, email string) error {
	if m.ConfigureGlobalIdentityFunc != nil {
		return m.ConfigureGlobalIdentityFunc(name, email)
	}
	return nil
}

// CurrentBranch returns the name of the checked-out branch
func (m *MockRunner) CurrentBranch() (string, error) {
	if m.CurrentBranchFunc != nil {
		return m.CurrentBranchFunc()
	}
	return "", nil
}

// TopLevel returns the absolute path of the repository root
func (m *MockRunner) TopLevel() (string, error) {
	if m.TopLevelFunc != nil {
		return m.TopLevelFunc()
	}
	return m.workDir, nil
}

// SubmoduleStatus returns the raw submodule status output
func (m *MockRunner) SubmoduleStatus() (string, error) {
	if m.SubmoduleStatusFunc != nil {
		return m.SubmoduleStatusFunc()
	}
	return "", nil
}

// SubmodulePaths lists submodule display paths
func (m *MockRunner) SubmodulePaths(recursive bool) ([]string, error) {
	if m.SubmodulePathsFunc != nil {
		return m.SubmodulePathsFunc(recursive)
	}
	return nil, nil
}

// SubmoduleUpdateInit initializes and updates all submodules
func (m *MockRunner) SubmoduleUpdateInit() error {
	if m.SubmoduleUpdateInitFunc != nil {
		return m.SubmoduleUpdateInitFunc()
	}
	return nil
}

// SubmoduleUpdateRemote updates one submodule path to its remote HEAD
func (m *MockRunner) SubmoduleUpdateRemote(path string, recursive bool) error {
	if m.SubmoduleUpdateRemoteFunc != nil {
		return m.SubmoduleUpdateRemoteFunc(path, recursive)
	}
	return nil
}

// Checkout checks out the given ref
func (m *MockRunner) Checkout(ref string) error {
	if m.CheckoutFunc != nil {
		return m.CheckoutFunc(ref)
	}
	return nil
}

// RevParseHEAD returns the commit hash of HEAD
func (m *MockRunner) RevParseHEAD() (string, error) {
	if m.RevParseHEADFunc != nil {
		return m.RevParseHEADFunc()
	}
	return "", nil
}

// WorkDir returns the working directory of the git repository
func (m *MockRunner) WorkDir() string {
	return m.workDir
}

// Ensure MockRunner implements Executor interface
var _ Executor = (*MockRunner)(nil)
