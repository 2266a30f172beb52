package feature

import "stratum/pkg/item"

// RpmAction discriminates whether an Rpm feature installs or removes
// packages.
type RpmAction string

const (
	RpmActionInstall RpmAction = "install"
	RpmActionRemove  RpmAction = "remove"
)

// Rpm installs or removes one or more named packages via the system
// package manager. Like Tarball and Genrule, the files a package installs
// are not enumerable ahead of running the transaction, so this feature
// declares no provides; see the open question in DESIGN.md about
// dynamically-provided items.
type Rpm struct {
	Action   RpmAction `json:"action"`
	Packages []string  `json:"packages"`
}

func (f Rpm) provides() ([]item.Item, error) { return nil, nil }

func (f Rpm) requires() []item.Requirement { return nil }
