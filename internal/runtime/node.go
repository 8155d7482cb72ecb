package runtime

import (
	"fmt"

	"github.com/aretw0/handoff/pkg/domain"
)

// NodeKind enumerates the states of the orchestration graph.
type NodeKind int

const (
	NodeDispatcherAct NodeKind = iota
	NodeDispatcherTools
	NodeEntry
	NodeAct
	NodeSafeExecute
	NodeSensitiveExecute
	NodeLeave
	NodeEnd

	numNodeKinds
)

var nodeNames = [numNodeKinds]string{
	NodeDispatcherAct:    "dispatcher_act",
	NodeDispatcherTools:  "dispatcher_tools",
	NodeEntry:            "entry",
	NodeAct:              "act",
	NodeSafeExecute:      "safe_execute",
	NodeSensitiveExecute: "sensitive_execute",
	NodeLeave:            "leave",
	NodeEnd:              "end",
}

func (k NodeKind) String() string {
	if k < 0 || k >= numNodeKinds {
		return fmt.Sprintf("node(%d)", int(k))
	}
	return nodeNames[k]
}

// Node is one position in the walk. Proposals carry the batch the node acts on,
// so nodes never re-read the message log to find their input.
type Node struct {
	Kind      NodeKind
	Handler   domain.HandlerID
	Proposals []domain.Proposal

	// decision is the approval token for NodeSensitiveExecute.
	// Without it the node suspends the thread.
	decision *domain.Decision
}

func (n Node) String() string {
	if n.Handler == "" {
		return n.Kind.String()
	}
	return fmt.Sprintf("%s(%s)", n.Kind, n.Handler)
}
