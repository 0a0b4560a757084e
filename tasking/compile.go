package tasking

import (
	"fmt"
	"strconv"
)

// cnode is one node of the compiled, static plan. The plan is immutable and
// side-effect-free: compilation never constructs adapters, storage instances
// or scopes. Each Start builds a fresh mutable run-node arena over the same
// plan, so one declaration can back many executions without aliasing.
type cnode struct {
	kind itemKind
	path string

	// group configuration, folded from the group's modifier items
	limit    int // 1 sequential, 0 unbounded, n parallel slots
	policy   WorkflowPolicy
	setup    func(*Scope) TaskAction
	done     func(*Scope)
	fail     func(*Scope)
	shapes   []*storageShape
	children []*cnode

	// leaf payloads
	task    *taskSpec
	sync    func(*Scope) bool
	barrier *storageShape

	// leafs is the task count of the subtree: 1 per task or barrier wait,
	// 0 per sync node. Nested sub-trees are opaque and count as 1.
	leafs int
}

// compile turns the declarative root into a plan, rejecting pathological
// literals up front so nothing fails mid-run. A non-group root is wrapped in
// an implicit group.
func compile(root Item) (*cnode, error) {
	if root.kind != kindGroup {
		root = Group(root)
	}
	return compileGroup(root, "")
}

func compileGroup(item Item, path string) (*cnode, error) {
	g := &cnode{kind: kindGroup, path: path, limit: 1, policy: StopOnError}

	var haveMode, havePolicy bool
	for i, child := range item.children {
		switch child.kind {
		case kindMode:
			if haveMode {
				return nil, groupErr(path, i, "duplicate execution mode")
			}
			if child.limit < 0 {
				return nil, groupErr(path, i, "negative parallel limit")
			}
			haveMode = true
			g.limit = child.limit

		case kindPolicy:
			if havePolicy {
				return nil, groupErr(path, i, "duplicate workflow policy")
			}
			havePolicy = true
			g.policy = child.policy

		case kindGroupSetup:
			if g.setup != nil {
				return nil, groupErr(path, i, "duplicate group setup handler")
			}
			if child.groupSetup == nil {
				return nil, groupErr(path, i, "nil group setup handler")
			}
			g.setup = child.groupSetup

		case kindGroupDone:
			if g.done != nil {
				return nil, groupErr(path, i, "duplicate group done handler")
			}
			if child.groupHook == nil {
				return nil, groupErr(path, i, "nil group done handler")
			}
			g.done = child.groupHook

		case kindGroupError:
			if g.fail != nil {
				return nil, groupErr(path, i, "duplicate group error handler")
			}
			if child.groupHook == nil {
				return nil, groupErr(path, i, "nil group error handler")
			}
			g.fail = child.groupHook

		case kindStorage:
			if child.shape == nil {
				return nil, groupErr(path, i, "zero storage handle")
			}
			for _, shape := range g.shapes {
				if shape == child.shape {
					return nil, groupErr(path, i, "storage handle declared twice in one group")
				}
			}
			g.shapes = append(g.shapes, child.shape)

		default:
			node, err := compileChild(child, childPath(path, len(g.children)))
			if err != nil {
				return nil, err
			}
			g.children = append(g.children, node)
			g.leafs += node.leafs
		}
	}
	return g, nil
}

func compileChild(item Item, path string) (*cnode, error) {
	switch item.kind {
	case kindGroup:
		return compileGroup(item, path)

	case kindTask:
		if item.task == nil || item.task.create == nil {
			return nil, fmt.Errorf("compile node %q: task has no adapter constructor", path)
		}
		return &cnode{kind: kindTask, path: path, task: item.task, leafs: 1}, nil

	case kindSync:
		if item.sync == nil {
			return nil, fmt.Errorf("compile node %q: nil sync function", path)
		}
		return &cnode{kind: kindSync, path: path, sync: item.sync}, nil

	case kindBarrierWait:
		if item.shape == nil {
			return nil, fmt.Errorf("compile node %q: zero barrier handle", path)
		}
		return &cnode{kind: kindBarrierWait, path: path, barrier: item.shape, leafs: 1}, nil

	default:
		return nil, fmt.Errorf("compile node %q: unexpected item kind %d", path, item.kind)
	}
}

func childPath(parent string, index int) string {
	if parent == "" {
		return strconv.Itoa(index)
	}
	return parent + "/" + strconv.Itoa(index)
}

func groupErr(path string, index int, msg string) error {
	if path == "" {
		path = "root"
	}
	return fmt.Errorf("compile group %q: child %d: %s", path, index, msg)
}
