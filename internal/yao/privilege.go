package yao

import (
	"golang.org/x/sys/unix"
)

// Privilege decides whether commands that need root must be re-executed through
// the elevation binary.
type Privilege struct {
	Elevator string
	EUID     func() int
}

// NewPrivilege returns a Privilege using the real effective uid.
func NewPrivilege(elevator string) *Privilege {
	return &Privilege{Elevator: elevator, EUID: unix.Geteuid}
}

// IsRoot reports whether the process already runs with uid 0.
func (p *Privilege) IsRoot() bool {
	return p.EUID() == 0
}

// Wrap returns spec unchanged when already root, otherwise the same spec
// re-targeted at the elevation binary.
func (p *Privilege) Wrap(spec ProcSpec) ProcSpec {
	if p.IsRoot() {
		return spec
	}
	return spec.Elevated(p.Elevator)
}
