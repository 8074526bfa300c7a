// Package flows assembles Node-RED style flow documents for the target.
//
// Test scenarios describe a graph (a tab plus nodes with wires) and a
// list of injections: messages to push into named nodes once the flow is
// running. The target has no side channel for injections, so they are
// realized as inject nodes appended to the graph, each firing once at
// startup and wired to its destination node. The assembled document is
// what the harness streams over the target's stdin.
package flows

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Node is one entry of a flow document. Flow entries are open-ended
// (every node type brings its own fields), so nodes stay maps and
// helpers read the handful of keys the builder cares about.
type Node map[string]any

// ID returns the node's "id" field, or "".
func (n Node) ID() string {
	s, _ := n["id"].(string)
	return s
}

// Type returns the node's "type" field, or "".
func (n Node) Type() string {
	s, _ := n["type"].(string)
	return s
}

// Flow returns the node's "z" field, the id of the tab it lives on.
func (n Node) Flow() string {
	s, _ := n["z"].(string)
	return s
}

// Injection is a message to deliver to a node when the flow starts.
type Injection struct {
	// NID is the id of the receiving node.
	NID string `json:"nid" yaml:"nid"`

	// Msg holds the message properties, typically payload and topic.
	Msg map[string]any `json:"msg" yaml:"msg"`
}

// BuildDocument returns a flow document containing the given nodes plus
// one synthesized inject node per injection. Inject nodes fire once at
// startup with no delay and carry the injection's message properties.
//
// Each injection's target node must exist and belong to a tab; the
// inject node is placed on the same tab.
func BuildDocument(nodes []Node, injections []Injection, gen IDGenerator) ([]Node, error) {
	byID := make(map[string]Node, len(nodes))
	for _, n := range nodes {
		if n.ID() == "" {
			return nil, fmt.Errorf("flow node missing id: %v", map[string]any(n))
		}
		if _, dup := byID[n.ID()]; dup {
			return nil, fmt.Errorf("duplicate flow node id %q", n.ID())
		}
		byID[n.ID()] = n
	}

	doc := make([]Node, 0, len(nodes)+len(injections))
	doc = append(doc, nodes...)

	for i, inj := range injections {
		dest, ok := byID[inj.NID]
		if !ok {
			return nil, fmt.Errorf("injection %d targets unknown node %q", i, inj.NID)
		}
		tab := dest.Flow()
		if tab == "" {
			return nil, fmt.Errorf("injection %d targets node %q which is not on a tab", i, inj.NID)
		}

		props, err := propertyTriples(inj.Msg)
		if err != nil {
			return nil, fmt.Errorf("injection %d: %w", i, err)
		}

		doc = append(doc, Node{
			"id":        gen.NextID(),
			"type":      "inject",
			"z":         tab,
			"once":      true,
			"onceDelay": 0,
			"props":     props,
			"wires":     []any{[]any{inj.NID}},
		})
	}

	return doc, nil
}

// propertyTriples converts message properties into the {p, v, vt}
// triples an inject node evaluates. Scalars map to the str/num/bool
// property types; composite values are carried as JSON text.
func propertyTriples(msg map[string]any) ([]map[string]any, error) {
	triples := make([]map[string]any, 0, len(msg))
	for _, key := range sortedKeys(msg) {
		v := msg[key]

		var value, vt string
		switch val := v.(type) {
		case string:
			value, vt = val, "str"
		case bool:
			value, vt = fmt.Sprintf("%t", val), "bool"
		case int:
			value, vt = fmt.Sprintf("%d", val), "num"
		case int64:
			value, vt = fmt.Sprintf("%d", val), "num"
		case float64:
			value, vt = trimFloat(val), "num"
		case json.Number:
			value, vt = string(val), "num"
		case map[string]any, []any:
			b, err := json.Marshal(val)
			if err != nil {
				return nil, fmt.Errorf("property %q: %w", key, err)
			}
			value, vt = string(b), "json"
		case nil:
			return nil, fmt.Errorf("property %q: null message properties are not supported", key)
		default:
			return nil, fmt.Errorf("property %q: unsupported type %T", key, v)
		}

		triples = append(triples, map[string]any{"p": key, "v": value, "vt": vt})
	}
	return triples, nil
}

func trimFloat(f float64) string {
	if f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%g", f)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
