// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/physiograph/pkg/logging"
)

// rawPack is the YAML shape of one knowledge-pack file. Field names follow
// the pack authoring convention (snake_case) rather than Go's exported
// convention; yaml tags bridge the two.
type rawPack struct {
	Name      string         `yaml:"name"`
	Nodes     []rawNode      `yaml:"nodes"`
	Edges     []rawEdge      `yaml:"edges"`
	Syndromes []rawSyndrome  `yaml:"syndromes"`
}

type rawNode struct {
	ID            string             `yaml:"id"`
	Label         string             `yaml:"label"`
	Domain        string             `yaml:"domain"`
	Subdomain     string             `yaml:"subdomain"`
	Type          string             `yaml:"type"`
	StateType     string             `yaml:"state_type"`
	Unit          string             `yaml:"unit"`
	NormalRange   map[string]float64 `yaml:"normal_range"`
	Aliases       []string           `yaml:"aliases"`
	TimeConstant  string             `yaml:"time_constant"`
	BaselineLevel *float64           `yaml:"baseline_level"`
	MinLevel      *float64           `yaml:"min_level"`
	MaxLevel      *float64           `yaml:"max_level"`
}

type rawEdgePhase struct {
	At                  string   `yaml:"at"`
	Rel                 string   `yaml:"rel"`
	Weight              *float64 `yaml:"weight"`
	Priority            string   `yaml:"priority"`
	ActivationDirection string   `yaml:"activation_direction"`
	ActivationThreshold *float64 `yaml:"activation_threshold"`
	Description         string   `yaml:"description"`
}

type rawEdge struct {
	Source              string          `yaml:"source"`
	Target              string          `yaml:"target"`
	Rel                 string          `yaml:"rel"`
	Weight              *float64        `yaml:"weight"`
	Delay               string          `yaml:"delay"`
	Priority            string          `yaml:"priority"`
	ActivationDirection string          `yaml:"activation_direction"`
	ActivationThreshold *float64        `yaml:"activation_threshold"`
	Context             map[string]bool `yaml:"context"`
	TemporalProfile     []rawEdgePhase  `yaml:"temporal_profile"`
	Description         string          `yaml:"description"`
}

type rawSyndrome struct {
	ID       string   `yaml:"id"`
	Label    string   `yaml:"label"`
	Sequence []string `yaml:"sequence"`
}

// Snapshot is a fully loaded and compiled knowledge graph: the immutable
// unit an atomic reload swaps in. It is safe to share by value across
// goroutines because neither Compiled nor its contents are mutated after
// Load returns.
type Snapshot struct {
	Compiled
	AliasIndex map[string]string // lowercased alias -> canonical node id
}

// ResolveID returns the canonical node id for an identifier that may be a
// node id or one of its aliases (case-insensitive on the alias side).
func (s Snapshot) ResolveID(identifier string) (string, bool) {
	if _, ok := s.Nodes[identifier]; ok {
		return identifier, true
	}
	canonical, ok := s.AliasIndex[strings.ToLower(identifier)]
	return canonical, ok
}

// Load walks packsDir for *.yaml/*.yml knowledge packs, merges their nodes,
// edges, and syndromes, validates the loader invariants, compiles the edge
// set, and returns an immutable Snapshot.
//
// Load halts and returns the first LoadError encountered; a caller that
// wants to know about every broken pack file should fix and re-run rather
// than expect partial results (§4.7: no partial results are ever
// surfaced).
func Load(packsDir string, logger *logging.Logger) (*Snapshot, error) {
	if logger == nil {
		logger = logging.Default()
	}

	nodes := make(map[string]Node)
	nodeOrder := make([]string, 0, 64)
	var edges []Edge
	var syndromes []Syndrome
	aliasIndex := make(map[string]string)

	var packPaths []string
	err := filepath.WalkDir(packsDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext == ".yaml" || ext == ".yml" {
			packPaths = append(packPaths, path)
		}
		return nil
	})
	if err != nil {
		return nil, &LoadError{Source: packsDir, Err: err}
	}
	sort.Strings(packPaths)

	for _, path := range packPaths {
		if err := loadPackInto(path, nodes, &nodeOrder, &edges, &syndromes, aliasIndex); err != nil {
			return nil, err
		}
	}

	compiledEdges, adj, rev, err := CompileEdges(nodes, edges)
	if err != nil {
		return nil, err
	}

	logger.Info("knowledge graph loaded",
		"packs", len(packPaths),
		"nodes", len(nodes),
		"edges", len(edges),
		"compiled_edges", len(compiledEdges),
		"syndromes", len(syndromes),
	)

	return &Snapshot{
		Compiled: Compiled{
			Nodes:         nodes,
			NodeOrder:     nodeOrder,
			Edges:         edges,
			CompiledEdges: compiledEdges,
			Adjacency:     adj,
			ReverseAdj:    rev,
			Syndromes:     syndromes,
		},
		AliasIndex: aliasIndex,
	}, nil
}

func loadPackInto(
	path string,
	nodes map[string]Node,
	nodeOrder *[]string,
	edges *[]Edge,
	syndromes *[]Syndrome,
	aliasIndex map[string]string,
) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return &LoadError{Source: path, Err: err}
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}

	var pack rawPack
	if err := yaml.Unmarshal(data, &pack); err != nil {
		return &LoadError{Source: path, Err: err}
	}

	for _, rn := range pack.Nodes {
		node, err := rn.toNode()
		if err != nil {
			return &LoadError{Source: path, Ident: rn.ID, Err: err}
		}
		if _, exists := nodes[node.ID]; exists {
			return &LoadError{Source: path, Ident: node.ID, Err: ErrDuplicateNodeID}
		}
		if canonical, exists := aliasIndex[strings.ToLower(node.ID)]; exists && canonical != node.ID {
			return &LoadError{Source: path, Ident: node.ID, Err: ErrDuplicateAlias}
		}
		nodes[node.ID] = node
		*nodeOrder = append(*nodeOrder, node.ID)

		for _, alias := range node.Aliases {
			key := strings.ToLower(alias)
			if existing, exists := aliasIndex[key]; exists && existing != node.ID {
				return &LoadError{Source: path, Ident: alias, Err: ErrDuplicateAlias}
			}
			aliasIndex[key] = node.ID
		}
	}

	for _, re := range pack.Edges {
		edge, err := re.toEdge()
		if err != nil {
			return &LoadError{Source: path, Ident: fmt.Sprintf("%s->%s", re.Source, re.Target), Err: err}
		}
		*edges = append(*edges, edge)
	}

	for _, rs := range pack.Syndromes {
		syndrome, err := rs.toSyndrome()
		if err != nil {
			return &LoadError{Source: path, Ident: rs.ID, Err: err}
		}
		*syndromes = append(*syndromes, syndrome)
	}

	return nil
}

func (rn rawNode) toNode() (Node, error) {
	domain := Domain(rn.Domain)
	if !domain.Valid() {
		return Node{}, ErrInvalidDomain
	}
	node := Node{
		ID:           rn.ID,
		Label:        rn.Label,
		Domain:       domain,
		Subdomain:    rn.Subdomain,
		Type:         rn.Type,
		StateType:    StateType(rn.StateType),
		Unit:         rn.Unit,
		NormalRange:  rn.NormalRange,
		Aliases:      append([]string(nil), rn.Aliases...),
		TimeConstant: TimeConstant(rn.TimeConstant),
	}
	if !node.StateType.Valid() {
		return Node{}, fmt.Errorf("graph: invalid state_type %q", rn.StateType)
	}
	if !node.TimeConstant.Valid() {
		return Node{}, fmt.Errorf("graph: invalid time_constant %q", rn.TimeConstant)
	}
	if rn.BaselineLevel != nil {
		node.BaselineLevel = *rn.BaselineLevel
	}
	if rn.MinLevel != nil {
		node.MinLevel = *rn.MinLevel
	}
	if rn.MaxLevel != nil {
		node.MaxLevel = *rn.MaxLevel
	}
	return node.normalized(), nil
}

func (re rawEdge) toEdge() (Edge, error) {
	edge := Edge{
		Source:              re.Source,
		Target:              re.Target,
		Rel:                 Relation(re.Rel),
		Delay:               Timescale(re.Delay),
		Priority:            Priority(re.Priority),
		ActivationDirection: Direction(re.ActivationDirection),
		ActivationThreshold: re.ActivationThreshold,
		Context:             re.Context,
		Description:         re.Description,
	}
	if !edge.Rel.Valid() {
		return Edge{}, ErrUnknownRelation
	}
	if !edge.Delay.Valid() || edge.Delay == TimescaleAll {
		return Edge{}, fmt.Errorf("graph: invalid edge delay %q", re.Delay)
	}
	if !edge.Priority.Valid() || edge.Priority == PriorityUltra {
		return Edge{}, fmt.Errorf("graph: invalid edge priority %q", re.Priority)
	}
	if re.Weight != nil {
		if *re.Weight < 0 || *re.Weight > 1 {
			return Edge{}, ErrInvalidWeight
		}
		edge.Weight = *re.Weight
	}

	for _, rp := range re.TemporalProfile {
		phase := EdgePhase{
			At:                  Timescale(rp.At),
			Rel:                 Relation(rp.Rel),
			Weight:              rp.Weight,
			Priority:            Priority(rp.Priority),
			ActivationDirection: Direction(rp.ActivationDirection),
			ActivationThreshold: rp.ActivationThreshold,
			Description:         rp.Description,
		}
		if !phase.At.Valid() || phase.At == "" || phase.At == TimescaleAll {
			return Edge{}, fmt.Errorf("graph: invalid phase at %q", rp.At)
		}
		if phase.Rel != "" && !phase.Rel.Valid() {
			return Edge{}, ErrUnknownRelation
		}
		if phase.Weight != nil && (*phase.Weight < 0 || *phase.Weight > 1) {
			return Edge{}, ErrInvalidWeight
		}
		edge.TemporalProfile = append(edge.TemporalProfile, phase)
	}

	return edge.normalized(), nil
}

func (rs rawSyndrome) toSyndrome() (Syndrome, error) {
	if len(rs.Sequence) == 0 {
		return Syndrome{}, ErrEmptySyndromeSequence
	}
	return Syndrome{
		ID:       rs.ID,
		Label:    rs.Label,
		Sequence: append([]string(nil), rs.Sequence...),
	}, nil
}
