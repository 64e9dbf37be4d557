package git

// Executor defines the interface for git operations.
// This interface allows for mocking git operations in tests.
type Executor interface {
	// ConfigureGlobalIdentity sets user.name and user.email in the global
	// git configuration of the current runner
	ConfigureGlobalIdentity(name, email string) error

	// CurrentBranch returns the name of the checked-out branch
	CurrentBranch() (string, error)

	// TopLevel returns the absolute path of the repository root
	TopLevel() (string, error)

	// SubmoduleStatus returns the raw `git submodule status --recursive` output
	SubmoduleStatus() (string, error)

	// SubmodulePaths lists submodule display paths, optionally recursing
	// into nested submodules
	SubmodulePaths(recursive bool) ([]string, error)

	// SubmoduleUpdateInit runs `submodule update --init --recursive`
	SubmoduleUpdateInit() error

	// SubmoduleUpdateRemote updates one submodule path to its remote HEAD
	SubmoduleUpdateRemote(path string, recursive bool) error

	// Checkout checks out the given ref
	Checkout(ref string) error

	// RevParseHEAD returns the commit hash of HEAD
	RevParseHEAD() (string, error)

	// WorkDir returns the working directory of the git repository
	WorkDir() string
}
