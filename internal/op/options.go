package op

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnsupportedOption is returned for an option the operation kind
	// does not accept.
	ErrUnsupportedOption = errors.New("unsupported option")
	// ErrIncompatibleOptions is returned when two mutually exclusive
	// options are both set.
	ErrIncompatibleOptions = errors.New("incompatible options")
)

// Option is a single togglable flag of an operation.
type Option uint32

const (
	Prune Option = 1 << iota
	Tags
	Force
	ForceWithLease
	NoVerify
	DryRun
	SetUpstream
	FollowTags
	FFOnly
	Rebase
	Autostash
	All
	AllowEmpty
	Verbose
	IncludeUntracked
	KeepIndex
)

// OptionSpec describes how an option appears for one operation kind.
type OptionSpec struct {
	Option      Option
	Key         rune
	Flag        string
	Description string
}

// Name is the flag without leading dashes, as used in configuration.
func (s OptionSpec) Name() string { return strings.TrimLeft(s.Flag, "-") }

var (
	fetchOptions = []OptionSpec{
		{Prune, 'p', "--prune", "Prune deleted branches"},
		{Tags, 't', "--tags", "Fetch all tags"},
		{Force, 'F', "--force", "Force"},
	}
	pushOptions = []OptionSpec{
		{ForceWithLease, 'f', "--force-with-lease", "Force with lease"},
		{Force, 'F', "--force", "Force"},
		{NoVerify, 'h', "--no-verify", "Disable hooks"},
		{DryRun, 'n', "--dry-run", "Dry run"},
		{SetUpstream, 'u', "--set-upstream", "Set upstream"},
		{Tags, 'T', "--tags", "Include all tags"},
		{FollowTags, 't', "--follow-tags", "Include related annotated tags"},
	}
	pullOptions = []OptionSpec{
		{FFOnly, 'f', "--ff-only", "Fast-forward only"},
		{Rebase, 'r', "--rebase", "Rebase local commits"},
		{Autostash, 'a', "--autostash", "Autostash"},
	}
	commitOptions = []OptionSpec{
		{All, 'a', "--all", "Stage all modified and deleted files"},
		{AllowEmpty, 'e', "--allow-empty", "Allow empty commit"},
		{Verbose, 'v', "--verbose", "Show diff of changes to be committed"},
		{NoVerify, 'n', "--no-verify", "Disable hooks"},
	}
	stashOptions = []OptionSpec{
		{IncludeUntracked, 'u', "--include-untracked", "Include untracked files"},
		{KeepIndex, 'k', "--keep-index", "Keep staged changes"},
	}
	tagPushOptions = []OptionSpec{
		{Force, 'F', "--force", "Force"},
		{NoVerify, 'h', "--no-verify", "Disable hooks"},
		{DryRun, 'n', "--dry-run", "Dry run"},
	}
	branchDeleteOptions = []OptionSpec{
		{Force, 'F', "--force", "Delete even if not merged"},
	}
)

// conflicts lists pairs of options that cannot be set together.
var conflicts = [][2]Option{
	{Force, ForceWithLease},
	{FFOnly, Rebase},
}

// OptionSpecs returns the options accepted by kind, in display order.
func OptionSpecs(k Kind) []OptionSpec {
	switch k {
	case Fetch, FetchAll:
		return fetchOptions
	case Push:
		return pushOptions
	case PushTag, PushTags:
		return tagPushOptions
	case Pull:
		return pullOptions
	case Commit, Amend, Fixup:
		return commitOptions
	case StashPush:
		return stashOptions
	case DeleteBranch:
		return branchDeleteOptions
	}
	return nil
}

func specFor(k Kind, o Option) (OptionSpec, bool) {
	for _, s := range OptionSpecs(k) {
		if s.Option == o {
			return s, true
		}
	}
	return OptionSpec{}, false
}

// OptionByKey finds the option bound to key for kind.
func OptionByKey(k Kind, key rune) (Option, bool) {
	for _, s := range OptionSpecs(k) {
		if s.Key == key {
			return s.Option, true
		}
	}
	return 0, false
}

// ParseOption resolves a configuration name such as "force-with-lease".
func ParseOption(k Kind, name string) (Option, error) {
	name = strings.TrimLeft(strings.TrimSpace(name), "-")
	for _, s := range OptionSpecs(k) {
		if s.Name() == name {
			return s.Option, nil
		}
	}
	return 0, fmt.Errorf("%s: %q: %w", k, name, ErrUnsupportedOption)
}

// Options is a set of options.
type Options uint32

// NewOptions returns a set holding opts.
func NewOptions(opts ...Option) Options {
	var s Options
	for _, o := range opts {
		s |= Options(o)
	}
	return s
}

func (s Options) Has(o Option) bool        { return s&Options(o) != 0 }
func (s Options) With(o Option) Options    { return s | Options(o) }
func (s Options) Without(o Option) Options { return s &^ Options(o) }

// For keeps only the options kind accepts.
func (s Options) For(k Kind) Options {
	var out Options
	for _, spec := range OptionSpecs(k) {
		if s.Has(spec.Option) {
			out = out.With(spec.Option)
		}
	}
	return out
}

// Toggle flips o for kind. Turning an option on clears any option that
// conflicts with it.
func (s Options) Toggle(k Kind, o Option) (Options, error) {
	if _, ok := specFor(k, o); !ok {
		return s, fmt.Errorf("%s: %w", k, ErrUnsupportedOption)
	}
	if s.Has(o) {
		return s.Without(o), nil
	}
	for _, c := range conflicts {
		switch o {
		case c[0]:
			s = s.Without(c[1])
		case c[1]:
			s = s.Without(c[0])
		}
	}
	return s.With(o), nil
}

// Validate checks that every option is accepted by kind and that no two
// conflicting options are set.
func (s Options) Validate(k Kind) error {
	for bit := Option(1); bit != 0 && Options(bit) <= s; bit <<= 1 {
		if s.Has(bit) {
			if _, ok := specFor(k, bit); !ok {
				return fmt.Errorf("%s: option %#x: %w", k, uint32(bit), ErrUnsupportedOption)
			}
		}
	}
	for _, c := range conflicts {
		if s.Has(c[0]) && s.Has(c[1]) {
			a, _ := specFor(k, c[0])
			b, _ := specFor(k, c[1])
			return fmt.Errorf("%s: %s and %s: %w", k, a.Flag, b.Flag, ErrIncompatibleOptions)
		}
	}
	return nil
}

// Flags returns the command-line flags for the set, in display order.
func (s Options) Flags(k Kind) []string {
	var flags []string
	for _, spec := range OptionSpecs(k) {
		if s.Has(spec.Option) {
			flags = append(flags, spec.Flag)
		}
	}
	return flags
}
