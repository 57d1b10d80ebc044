// Package dump renders a data-dependence graph as DOT or XML, the two dump
// formats spec.md section 6 names as observable at each scheduling stage
// ("DDG dump format (DOT/XML) per stage").
package dump

import (
	"encoding/xml"
	"fmt"
	"sort"
	"strings"

	"github.com/ttasched/ttasched/internal/ddg"
	"github.com/ttasched/ttasched/internal/ir"
)

// sortedNodes returns g's nodes ordered by ID, for deterministic output.
func sortedNodes(g *ddg.Graph) []*ir.MoveNode {
	nodes := g.Nodes()
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
	return nodes
}

// DOT renders g as a Graphviz digraph: one node per move, one edge per
// dependence, labelled with its kind and latency. Back-edges are styled
// dashed, matching the usual convention for loop-carried dependences.
func DOT(g *ddg.Graph) string {
	var b strings.Builder
	b.WriteString("digraph ddg {\n")
	for _, n := range sortedNodes(g) {
		b.WriteString(fmt.Sprintf("  n%d [label=%q];\n", n.ID, n.String()))
	}
	for _, n := range sortedNodes(g) {
		for _, e := range g.OutEdges(n.ID) {
			style := ""
			if e.BackEdge {
				style = ", style=dashed"
			}
			b.WriteString(fmt.Sprintf("  n%d -> n%d [label=%q%s];\n", e.From, e.To, fmt.Sprintf("%s/%d", e.Kind, e.Latency), style))
		}
	}
	b.WriteString("}\n")
	return b.String()
}

type xmlGraph struct {
	XMLName xml.Name  `xml:"ddg"`
	Nodes   []xmlNode `xml:"node"`
	Edges   []xmlEdge `xml:"edge"`
}

type xmlNode struct {
	ID     int    `xml:"id,attr"`
	Move   string `xml:"move,attr"`
	Placed bool   `xml:"placed,attr"`
	Cycle  int    `xml:"cycle,attr,omitempty"`
}

type xmlEdge struct {
	From     int    `xml:"from,attr"`
	To       int    `xml:"to,attr"`
	Kind     string `xml:"kind,attr"`
	Latency  int    `xml:"latency,attr"`
	BackEdge bool   `xml:"backEdge,attr,omitempty"`
}

// XML renders g as the XML dump of spec.md section 6, one <node> per move
// and one <edge> per dependence, marshalled with encoding/xml.
func XML(g *ddg.Graph) (string, error) {
	doc := xmlGraph{}
	for _, n := range sortedNodes(g) {
		doc.Nodes = append(doc.Nodes, xmlNode{
			ID:     int(n.ID),
			Move:   n.Move.String(),
			Placed: n.Placement.Placed,
			Cycle:  n.Placement.Cycle,
		})
		for _, e := range g.OutEdges(n.ID) {
			doc.Edges = append(doc.Edges, xmlEdge{
				From:     int(e.From),
				To:       int(e.To),
				Kind:     e.Kind.String(),
				Latency:  e.Latency,
				BackEdge: e.BackEdge,
			})
		}
	}
	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", err
	}
	return string(out), nil
}
