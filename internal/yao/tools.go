package yao

import (
	"fmt"

	"github.com/hashicorp/go-hclog"
)

// Workflow selects which external tools must be present.
type Workflow int

const (
	WorkflowSync Workflow = iota
	WorkflowGet
)

// Tools holds the resolved paths of the external binaries.
type Tools struct {
	Bsdtar  string
	Makepkg string
	Pacman  string
	Sudo    string
}

type toolReq struct {
	name string
	dst  *string
}

// ResolveTools locates every binary the workflow depends on before any package
// work begins. The elevation binary is only required when not already root.
func ResolveTools(cfg *Config, wf Workflow, isRoot bool, lookPath func(string) (string, error), log hclog.Logger) (*Tools, error) {
	t := &Tools{}
	need := []toolReq{{cfg.Bsdtar, &t.Bsdtar}}
	if wf == WorkflowSync {
		need = append(need, toolReq{cfg.Makepkg, &t.Makepkg}, toolReq{cfg.Pacman, &t.Pacman})
		if !isRoot {
			need = append(need, toolReq{cfg.Sudo, &t.Sudo})
		}
	}

	for _, n := range need {
		p, err := lookPath(n.name)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrToolMissing, n.name, err)
		}
		log.Debug("using tool", "name", n.name, "path", p)
		*n.dst = p
	}
	return t, nil
}
